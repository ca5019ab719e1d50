package loader

import (
	"bytes"
	"encoding/binary"
	"os"
	"strings"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/sarchlab/agbsim/logger"
)

// Image size limits.
const (
	HeaderSize  = 0xC0
	MaxROMSize  = 32 << 20
	BootROMSize = 16 << 10

	// ROMBase is where a cartridge is mapped.
	ROMBase uint32 = 0x08000000

	headerFixedValue = 0x96
)

// Header is the cartridge header at the start of every ROM.
type Header struct {
	Entry      uint32
	Logo       [156]byte
	RawTitle   [12]byte
	RawGame    [4]byte
	RawMaker   [2]byte
	Fixed      uint8
	UnitCode   uint8
	DeviceType uint8
	Reserved1  [7]byte
	Version    uint8
	Complement uint8
	Reserved2  [2]byte
}

// ParseHeader unpacks the header at the start of data.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, errors.Errorf("image of %d bytes has no header", len(data))
	}

	h := &Header{}
	if err := struc.UnpackWithOrder(bytes.NewReader(data[:HeaderSize]), h, binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, "failed to unpack header")
	}
	return h, nil
}

func trimField(b []byte) string {
	return strings.TrimRight(string(b), "\x00 ")
}

// Title returns the game title.
func (h *Header) Title() string {
	return trimField(h.RawTitle[:])
}

// GameCode returns the four-character game code.
func (h *Header) GameCode() string {
	return trimField(h.RawGame[:])
}

// MakerCode returns the two-character maker code.
func (h *Header) MakerCode() string {
	return trimField(h.RawMaker[:])
}

// ComputeComplement returns the checksum of header bytes 0xA0-0xBC.
func (h *Header) ComputeComplement() uint8 {
	var sum uint8
	for _, fields := range [][]byte{h.RawTitle[:], h.RawGame[:], h.RawMaker[:],
		{h.Fixed, h.UnitCode, h.DeviceType}, h.Reserved1[:], {h.Version}} {
		for _, b := range fields {
			sum -= b
		}
	}
	return sum - 0x19
}

// Valid reports whether the fixed byte and the complement check match.
func (h *Header) Valid() bool {
	return h.Fixed == headerFixedValue && h.Complement == h.ComputeComplement()
}

// EntryAddress decodes the branch at the start of the ROM. ok is false when
// the first word is not an unconditional branch.
func (h *Header) EntryAddress() (addr uint32, ok bool) {
	if h.Entry>>24 != 0xEA {
		return 0, false
	}
	offset := h.Entry & 0xFFFFFF
	if offset&0x800000 != 0 {
		offset |= 0xFF000000
	}
	return ROMBase + 8 + offset<<2, true
}

// ROM is a cartridge image.
type ROM struct {
	Data []byte
	// Header is nil for images shorter than a header.
	Header *Header
}

// LoadROM reads a cartridge image.
func LoadROM(path string) (*ROM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read ROM")
	}
	return NewROM(data)
}

// NewROM wraps an in-memory cartridge image.
func NewROM(data []byte) (*ROM, error) {
	if len(data) > MaxROMSize {
		return nil, errors.Errorf("ROM of %d bytes exceeds %d", len(data), MaxROMSize)
	}

	rom := &ROM{Data: data}
	if len(data) < HeaderSize {
		return rom, nil
	}

	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	rom.Header = h

	if logger.Enabled() {
		logger.Logf("loader", "rom %q code %q maker %q version %d, %d bytes",
			h.Title(), h.GameCode(), h.MakerCode(), h.Version, len(data))
		if !h.Valid() {
			logger.Logf("loader", "header complement 0x%02x, expected 0x%02x",
				h.Complement, h.ComputeComplement())
		}
	}
	return rom, nil
}

// LoadBootROM reads a boot ROM image, which must be exactly 16 KiB.
func LoadBootROM(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read boot ROM")
	}
	if len(data) != BootROMSize {
		return nil, errors.Errorf("boot ROM must be %d bytes, got %d", BootROMSize, len(data))
	}
	return data, nil
}
