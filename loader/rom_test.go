package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/agbsim/loader"
	"github.com/sarchlab/agbsim/logger"
)

// makeROM builds a cartridge image with a well-formed header.
func makeROM(size int) []byte {
	rom := make([]byte, size)
	binary.LittleEndian.PutUint32(rom, 0xEA00002E) // b 0x080000C0
	copy(rom[0xA0:], "AGBSIM TEST")
	copy(rom[0xAC:], "ATST")
	copy(rom[0xB0:], "01")
	rom[0xB2] = 0x96
	rom[0xBC] = 3

	var sum byte
	for _, b := range rom[0xA0:0xBD] {
		sum -= b
	}
	rom[0xBD] = sum - 0x19
	return rom
}

var _ = Describe("Cartridge header", func() {
	It("should unpack the identification fields", func() {
		h, err := loader.ParseHeader(makeROM(loader.HeaderSize))
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Title()).To(Equal("AGBSIM TEST"))
		Expect(h.GameCode()).To(Equal("ATST"))
		Expect(h.MakerCode()).To(Equal("01"))
		Expect(h.Version).To(Equal(uint8(3)))
		Expect(h.Fixed).To(Equal(uint8(0x96)))
	})

	It("should pass the complement check", func() {
		h, err := loader.ParseHeader(makeROM(loader.HeaderSize))
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Valid()).To(BeTrue())
	})

	It("should fail the complement check after a change", func() {
		rom := makeROM(loader.HeaderSize)
		rom[0xA0] = 'X'
		h, err := loader.ParseHeader(rom)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Valid()).To(BeFalse())
	})

	It("should decode the entry branch", func() {
		h, _ := loader.ParseHeader(makeROM(loader.HeaderSize))
		addr, ok := h.EntryAddress()
		Expect(ok).To(BeTrue())
		Expect(addr).To(Equal(uint32(0x080000C0)))
	})

	It("should reject an entry word that is not a branch", func() {
		rom := makeROM(loader.HeaderSize)
		binary.LittleEndian.PutUint32(rom, 0xE3A00000)
		h, _ := loader.ParseHeader(rom)
		_, ok := h.EntryAddress()
		Expect(ok).To(BeFalse())
	})

	It("should require a full header", func() {
		_, err := loader.ParseHeader(make([]byte, 100))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ROM loading", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "rom-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	It("should read a ROM and log its header", func() {
		path := filepath.Join(tempDir, "game.gba")
		Expect(os.WriteFile(path, makeROM(0x400), 0644)).To(Succeed())
		logger.Clear()

		rom, err := loader.LoadROM(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(rom.Data).To(HaveLen(0x400))
		Expect(rom.Header).NotTo(BeNil())
		Expect(rom.Header.Title()).To(Equal("AGBSIM TEST"))

		entries := logger.Entries()
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Detail).To(ContainSubstring("AGBSIM TEST"))
	})

	It("should log a bad complement", func() {
		rom := makeROM(loader.HeaderSize)
		rom[0xBD]++
		logger.Clear()

		_, err := loader.NewROM(rom)
		Expect(err).NotTo(HaveOccurred())
		Expect(logger.Entries()).To(HaveLen(2))
	})

	It("should accept images without a header", func() {
		rom, err := loader.NewROM([]byte{0, 0, 0xA0, 0xE1})
		Expect(err).NotTo(HaveOccurred())
		Expect(rom.Header).To(BeNil())
	})

	It("should reject images over 32 MiB", func() {
		_, err := loader.NewROM(make([]byte, loader.MaxROMSize+1))
		Expect(err).To(HaveOccurred())
	})

	It("should fail on a missing file", func() {
		_, err := loader.LoadROM(filepath.Join(tempDir, "missing.gba"))
		Expect(err).To(MatchError(ContainSubstring("failed to read ROM")))
	})

	Describe("boot ROM", func() {
		It("should accept exactly 16 KiB", func() {
			path := filepath.Join(tempDir, "bios.bin")
			Expect(os.WriteFile(path, make([]byte, loader.BootROMSize), 0644)).To(Succeed())

			data, err := loader.LoadBootROM(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(HaveLen(16384))
		})

		It("should reject any other size", func() {
			path := filepath.Join(tempDir, "bios.bin")
			Expect(os.WriteFile(path, make([]byte, loader.BootROMSize+4), 0644)).To(Succeed())

			_, err := loader.LoadBootROM(path)
			Expect(err).To(MatchError(ContainSubstring("16384")))
		})
	})
})
