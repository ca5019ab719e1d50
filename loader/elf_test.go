package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/sarchlab/agbsim/loader"
)

const (
	machineARM = 40
	machineX86 = 62

	ptLoad = 1
	ptNote = 4

	pfX = 1
	pfW = 2
	pfR = 4
)

type testSegment struct {
	kind    uint32
	flags   uint32
	addr    uint32
	data    []byte
	memSize uint32
}

// writeELF32 writes a little-endian 32-bit ELF executable with one program
// header per segment and no sections.
func writeELF32(path string, machine uint16, entry uint32, segs ...testSegment) {
	const ehsize, phentsize = 52, 32

	header := make([]byte, ehsize)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 1                                   // 32-bit
	header[5] = 1                                   // little endian
	header[6] = 1                                   // version
	binary.LittleEndian.PutUint16(header[16:18], 2) // executable
	binary.LittleEndian.PutUint16(header[18:20], machine)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], entry)
	binary.LittleEndian.PutUint32(header[28:32], ehsize) // phoff
	binary.LittleEndian.PutUint16(header[40:42], ehsize)
	binary.LittleEndian.PutUint16(header[42:44], phentsize)
	binary.LittleEndian.PutUint16(header[44:46], uint16(len(segs)))
	binary.LittleEndian.PutUint16(header[46:48], 40) // shentsize

	out := append([]byte(nil), header...)
	offset := uint32(ehsize + phentsize*len(segs))
	for _, s := range segs {
		ph := make([]byte, phentsize)
		memSize := s.memSize
		if memSize == 0 {
			memSize = uint32(len(s.data))
		}
		binary.LittleEndian.PutUint32(ph[0:4], s.kind)
		binary.LittleEndian.PutUint32(ph[4:8], offset)
		binary.LittleEndian.PutUint32(ph[8:12], s.addr)
		binary.LittleEndian.PutUint32(ph[12:16], s.addr)
		binary.LittleEndian.PutUint32(ph[16:20], uint32(len(s.data)))
		binary.LittleEndian.PutUint32(ph[20:24], memSize)
		binary.LittleEndian.PutUint32(ph[24:28], s.flags)
		binary.LittleEndian.PutUint32(ph[28:32], 4)
		out = append(out, ph...)
		offset += uint32(len(s.data))
	}
	for _, s := range segs {
		out = append(out, s.data...)
	}

	Expect(os.WriteFile(path, out, 0644)).To(Succeed())
}

// writeELF64 writes a 64-bit ELF header without program headers.
func writeELF64(path string, machine uint16) {
	header := make([]byte, 64)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 2 // 64-bit
	header[5] = 1
	header[6] = 1
	binary.LittleEndian.PutUint16(header[16:18], 2)
	binary.LittleEndian.PutUint16(header[18:20], machine)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint64(header[32:40], 64)
	binary.LittleEndian.PutUint16(header[52:54], 64)
	binary.LittleEndian.PutUint16(header[54:56], 56)

	Expect(os.WriteFile(path, header, 0644)).To(Succeed())
}

type loadCall struct {
	addr uint32
	data []byte
}

type recordingTarget struct {
	calls []loadCall
	fail  bool
}

func (t *recordingTarget) Load(addr uint32, data []byte) error {
	if t.fail {
		return errors.New("no memory there")
	}
	t.calls = append(t.calls, loadCall{addr, data})
	return nil
}

var _ = Describe("ELF Loader", func() {
	var tempDir string

	code := []byte{
		0x2A, 0x00, 0xA0, 0xE3, // mov r0, #42
		0x1E, 0xFF, 0x2F, 0xE1, // bx lr
	}

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "elf-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	Describe("LoadELF", func() {
		Context("with a valid ARM ELF binary", func() {
			var elfPath string

			BeforeEach(func() {
				elfPath = filepath.Join(tempDir, "test.elf")
				writeELF32(elfPath, machineARM, 0x08000000, testSegment{
					kind: ptLoad, flags: pfR | pfX, addr: 0x08000000, data: code,
				})
			})

			It("should extract the entry point", func() {
				prog, err := loader.LoadELF(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint32(0x08000000)))
			})

			It("should load segment contents and flags", func() {
				prog, err := loader.LoadELF(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(1))

				seg := prog.Segments[0]
				Expect(seg.VirtAddr).To(Equal(uint32(0x08000000)))
				Expect(seg.Data).To(Equal(code))
				Expect(seg.Flags & loader.SegmentFlagExecute).NotTo(BeZero())
				Expect(seg.Flags & loader.SegmentFlagWrite).To(BeZero())
			})
		})

		It("should keep the Thumb bit of the entry point", func() {
			elfPath := filepath.Join(tempDir, "thumb.elf")
			writeELF32(elfPath, machineARM, 0x08000001, testSegment{
				kind: ptLoad, flags: pfR | pfX, addr: 0x08000000, data: code,
			})

			prog, err := loader.LoadELF(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(Equal(uint32(0x08000001)))
		})

		It("should load multiple PT_LOAD segments and skip the others", func() {
			elfPath := filepath.Join(tempDir, "multi.elf")
			data := []byte{1, 2, 3, 4}
			writeELF32(elfPath, machineARM, 0x08000000,
				testSegment{kind: ptLoad, flags: pfR | pfX, addr: 0x08000000, data: code},
				testSegment{kind: ptNote, flags: pfR, addr: 0, data: []byte{9, 9, 9, 9}},
				testSegment{kind: ptLoad, flags: pfR | pfW, addr: 0x03000000, data: data},
			)

			prog, err := loader.LoadELF(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(2))
			Expect(prog.Segments[1].VirtAddr).To(Equal(uint32(0x03000000)))
			Expect(prog.Segments[1].Data).To(Equal(data))
			Expect(prog.Segments[1].Flags & loader.SegmentFlagWrite).NotTo(BeZero())
		})

		It("should handle BSS segments where Memsz > Filesz", func() {
			elfPath := filepath.Join(tempDir, "bss.elf")
			writeELF32(elfPath, machineARM, 0x08000000, testSegment{
				kind: ptLoad, flags: pfR | pfW, addr: 0x02000000, data: []byte{1, 2}, memSize: 64,
			})

			prog, err := loader.LoadELF(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments[0].Data).To(Equal([]byte{1, 2}))
			Expect(prog.Segments[0].MemSize).To(Equal(uint32(64)))
		})

		Context("with an invalid file", func() {
			It("should return error for non-existent file", func() {
				_, err := loader.LoadELF("/nonexistent/path/to/file.elf")
				Expect(err).To(MatchError(ContainSubstring("failed to open")))
			})

			It("should return error for non-ELF file", func() {
				path := filepath.Join(tempDir, "not-elf.bin")
				Expect(os.WriteFile(path, []byte("not an elf file"), 0644)).To(Succeed())

				_, err := loader.LoadELF(path)
				Expect(err).To(MatchError(ContainSubstring("ELF")))
			})

			It("should return error for x86 ELF", func() {
				path := filepath.Join(tempDir, "x86.elf")
				writeELF32(path, machineX86, 0)

				_, err := loader.LoadELF(path)
				Expect(err).To(MatchError(ContainSubstring("not an ARM")))
			})

			It("should return error for 64-bit ELF", func() {
				path := filepath.Join(tempDir, "elf64.elf")
				writeELF64(path, machineARM)

				_, err := loader.LoadELF(path)
				Expect(err).To(MatchError(ContainSubstring("not a 32-bit")))
			})
		})
	})

	Describe("LoadInto", func() {
		It("should copy segments and zero-fill BSS", func() {
			prog := &loader.Program{Segments: []loader.Segment{
				{VirtAddr: 0x08000000, Data: code, MemSize: uint32(len(code))},
				{VirtAddr: 0x02000000, Data: []byte{7}, MemSize: 4},
			}}
			target := &recordingTarget{}

			Expect(prog.LoadInto(target)).To(Succeed())
			Expect(target.calls).To(Equal([]loadCall{
				{0x08000000, code},
				{0x02000000, []byte{7, 0, 0, 0}},
			}))
		})

		It("should name the segment that failed", func() {
			prog := &loader.Program{Segments: []loader.Segment{{VirtAddr: 0x04000000, Data: []byte{1}}}}
			err := prog.LoadInto(&recordingTarget{fail: true})
			Expect(err).To(MatchError(ContainSubstring("0x04000000")))
		})
	})
})
