// Package mem implements the memory map seen by the CPU core: work RAM,
// video memory, cartridge ROM and save memory, the IO register file and its
// side effects, and the wait states of every region.
package mem

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/sarchlab/agbsim/emu"
	"github.com/sarchlab/agbsim/ioreg"
	"github.com/sarchlab/agbsim/logger"
	"github.com/sarchlab/agbsim/timing/cache"
	"github.com/sarchlab/agbsim/timing/latency"
)

// Region sizes.
const (
	BIOSSize    = 0x4000
	EWRAMSize   = 0x40000
	IWRAMSize   = 0x8000
	PaletteSize = 0x400
	VRAMSize    = 0x18000
	OAMSize     = 0x400
	SRAMSize    = 0x10000
	MaxROMSize  = 0x2000000
)

// Region base addresses.
const (
	BIOSBase    uint32 = 0x00000000
	EWRAMBase   uint32 = 0x02000000
	IWRAMBase   uint32 = 0x03000000
	PaletteBase uint32 = 0x05000000
	VRAMBase    uint32 = 0x06000000
	OAMBase     uint32 = 0x07000000
	ROMBase     uint32 = 0x08000000
	SRAMBase    uint32 = 0x0E000000
)

// IOListener receives the side effects of IO register accesses. The CPU
// core implements it.
type IOListener interface {
	DMAControl(n int, value uint16)
	TimerControl(n int, value uint16)
	TimerCounter(n int) uint16
	Halt()
}

// Memory is the memory map. It implements emu.Bus.
type Memory struct {
	bios    []byte
	ewram   []byte
	iwram   []byte
	io      []byte
	palette []byte
	vram    []byte
	oam     []byte
	rom     []byte
	sram    []byte

	listener IOListener
	table    *latency.Table
	fetch    *cache.Cache
	romStore *cache.SliceBacking
}

// Option is a functional option for configuring Memory.
type Option func(*Memory)

// WithTimingConfig sets the reset wait states and the fetch buffer size.
func WithTimingConfig(config *latency.TimingConfig) Option {
	return func(m *Memory) {
		m.table = latency.NewTableWithConfig(config)
	}
}

// WithListener attaches the receiver of IO side effects.
func WithListener(l IOListener) Option {
	return func(m *Memory) {
		m.listener = l
	}
}

// NewMemory creates an empty memory map.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		bios:    make([]byte, BIOSSize),
		ewram:   make([]byte, EWRAMSize),
		iwram:   make([]byte, IWRAMSize),
		io:      make([]byte, ioreg.IOSize),
		palette: make([]byte, PaletteSize),
		vram:    make([]byte, VRAMSize),
		oam:     make([]byte, OAMSize),
		sram:    make([]byte, SRAMSize),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.table == nil {
		m.table = latency.NewTable()
	}

	config := m.table.Config()
	m.romStore = cache.NewSliceBacking(m.rom)
	m.fetch = cache.New(cache.Config{
		Size:          config.FetchBufferSize,
		Associativity: config.FetchBufferSize / config.FetchBufferBlock,
		BlockSize:     config.FetchBufferBlock,
	}, m.romStore)

	for i := range m.sram {
		m.sram[i] = 0xFF
	}
	m.WriteIO16(ioreg.KEYINPUT, ioreg.KeysReleased)

	return m
}

// SetListener attaches the receiver of IO side effects.
func (m *Memory) SetListener(l IOListener) {
	m.listener = l
}

// Table returns the wait-state table.
func (m *Memory) Table() *latency.Table {
	return m.table
}

// FetchBuffer returns the ROM fetch buffer.
func (m *Memory) FetchBuffer() *cache.Cache {
	return m.fetch
}

// ROMSize returns the size of the loaded cartridge image.
func (m *Memory) ROMSize() int {
	return len(m.rom)
}

// LoadBIOS maps a boot ROM image at address 0.
func (m *Memory) LoadBIOS(image []byte) error {
	if len(image) != BIOSSize {
		return errors.Errorf("boot ROM must be %d bytes, got %d", BIOSSize, len(image))
	}
	copy(m.bios, image)
	return nil
}

// LoadROM maps a cartridge image at ROMBase and its mirrors.
func (m *Memory) LoadROM(image []byte) error {
	if len(image) > MaxROMSize {
		return errors.Errorf("ROM of %d bytes exceeds %d", len(image), MaxROMSize)
	}
	m.rom = append([]byte(nil), image...)
	m.romChanged()
	return nil
}

func (m *Memory) romChanged() {
	m.romStore.Replace(m.rom)
	m.fetch.Reset()
}

// Load copies data to addr. Cartridge space grows to hold the data; every
// other region must already contain the whole range.
func (m *Memory) Load(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	end := uint64(addr) + uint64(len(data))
	if addr >= ROMBase && addr < SRAMBase {
		offset := int(addr - ROMBase)
		if end > uint64(ROMBase)+MaxROMSize {
			return errors.Errorf("segment 0x%08x+0x%x outside cartridge space", addr, len(data))
		}
		if need := offset + len(data); need > len(m.rom) {
			m.rom = append(m.rom, make([]byte, need-len(m.rom))...)
		}
		copy(m.rom[offset:], data)
		m.romChanged()
		return nil
	}

	for _, r := range m.loadRegions() {
		if addr >= r.base && end <= uint64(r.base)+uint64(len(r.data)) {
			copy(r.data[addr-r.base:], data)
			return nil
		}
	}
	return errors.Errorf("segment 0x%08x+0x%x outside loadable memory", addr, len(data))
}

type loadRegion struct {
	base uint32
	data []byte
}

func (m *Memory) loadRegions() []loadRegion {
	return []loadRegion{
		{BIOSBase, m.bios},
		{EWRAMBase, m.ewram},
		{IWRAMBase, m.iwram},
		{PaletteBase, m.palette},
		{VRAMBase, m.vram},
		{OAMBase, m.oam},
		{SRAMBase, m.sram},
	}
}

// vramOffset folds the 128 KiB VRAM window onto its 96 KiB; the top 32 KiB
// mirror the object area.
func vramOffset(addr uint32) uint32 {
	offset := addr & 0x1FFFF
	if offset >= VRAMSize {
		offset -= 0x8000
	}
	return offset
}

// plain returns the backing slice and offset of addr for regions without
// side effects. ok is false for IO, save memory and unmapped space.
func (m *Memory) plain(addr uint32) (data []byte, offset uint32, ok bool) {
	switch addr >> 24 {
	case 0x00:
		if addr < BIOSSize {
			return m.bios, addr, true
		}
	case 0x02:
		return m.ewram, addr & (EWRAMSize - 1), true
	case 0x03:
		return m.iwram, addr & (IWRAMSize - 1), true
	case 0x05:
		return m.palette, addr & (PaletteSize - 1), true
	case 0x06:
		return m.vram, vramOffset(addr), true
	case 0x07:
		return m.oam, addr & (OAMSize - 1), true
	case 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D:
		offset := addr & (MaxROMSize - 1)
		if int(offset) < len(m.rom) {
			return m.rom, offset, true
		}
	}
	return nil, 0, false
}

func isIO(addr uint32) bool {
	return addr >= ioreg.IOBase && addr < ioreg.IOBase+ioreg.IOSize
}

func isSRAM(addr uint32) bool {
	return addr>>24 == 0x0E || addr>>24 == 0x0F
}

func readLE(data []byte, offset uint32, width emu.Width) uint32 {
	switch width {
	case emu.Byte:
		return uint32(data[offset])
	case emu.Half:
		return uint32(binary.LittleEndian.Uint16(data[offset:]))
	}
	return binary.LittleEndian.Uint32(data[offset:])
}

func writeLE(data []byte, offset uint32, width emu.Width, value uint32) {
	switch width {
	case emu.Byte:
		data[offset] = byte(value)
	case emu.Half:
		binary.LittleEndian.PutUint16(data[offset:], uint16(value))
	default:
		binary.LittleEndian.PutUint32(data[offset:], value)
	}
}

// Read performs an untimed read. IO reads go through the register hooks.
func (m *Memory) Read(addr uint32, width emu.Width) uint32 {
	addr &^= uint32(width) - 1

	if data, offset, ok := m.plain(addr); ok {
		if int(offset)+int(width) > len(data) {
			return 0
		}
		return readLE(data, offset, width)
	}

	switch {
	case isIO(addr):
		return m.readIO(addr-ioreg.IOBase, width)
	case isSRAM(addr):
		// 8-bit bus: the byte is repeated across wider reads.
		return (uint32(m.sram[addr&(SRAMSize-1)]) * 0x01010101) & widthMask(width)
	}

	m.unmapped("unmapped read", addr, width)
	return 0
}

// Write performs an untimed write. IO writes go through the register hooks.
func (m *Memory) Write(addr uint32, width emu.Width, value uint32) {
	addr &^= uint32(width) - 1

	switch page := addr >> 24; {
	case page == 0x00 || (page >= 0x08 && page <= 0x0D):
		m.unmapped("read-only write", addr, width)
		return
	case isIO(addr):
		m.writeIO(addr-ioreg.IOBase, width, value)
		return
	case isSRAM(addr):
		m.sram[addr&(SRAMSize-1)] = byte(value)
		return
	case width == emu.Byte && (page == 0x05 || page == 0x06):
		// Byte writes land on both halves of the halfword.
		addr &^= 1
		width = emu.Half
		value = (value & 0xFF) * 0x0101
	case width == emu.Byte && page == 0x07:
		return
	}

	data, offset, ok := m.plain(addr)
	if !ok || int(offset)+int(width) > len(data) {
		m.unmapped("unmapped write", addr, width)
		return
	}
	writeLE(data, offset, width, value)
}

// ReadTimed reads and returns the cycles taken. Cartridge reads go through
// the fetch buffer, which decides whether the access is sequential.
func (m *Memory) ReadTimed(addr uint32, width emu.Width) (uint32, int) {
	addr &^= uint32(width) - 1

	if page := addr >> 24; page >= 0x08 && page <= 0x0D {
		offset := addr & (MaxROMSize - 1)
		if int(offset) >= len(m.rom) {
			return m.Read(addr, width), m.table.AccessCycles(addr, latency.Width(width), false)
		}
		result := m.fetch.Read(uint64(offset), int(width))
		return uint32(result.Data), m.table.AccessCycles(addr, latency.Width(width), result.Hit)
	}

	return m.Read(addr, width), m.table.AccessCycles(addr, latency.Width(width), false)
}

// WriteTimed writes and returns the cycles taken.
func (m *Memory) WriteTimed(addr uint32, width emu.Width, value uint32) int {
	m.Write(addr, width, value)
	return m.table.AccessCycles(addr, latency.Width(width), false)
}

func widthMask(width emu.Width) uint32 {
	if width == emu.Word {
		return 0xFFFFFFFF
	}
	return 1<<(8*uint32(width)) - 1
}

func (m *Memory) unmapped(what string, addr uint32, width emu.Width) {
	if logger.Enabled() {
		logger.Logf("mem", "%s %s 0x%08x", what, width, addr)
	}
}

// VRAM returns the video memory backing slice.
func (m *Memory) VRAM() []byte {
	return m.vram
}

// Palette returns the palette memory backing slice.
func (m *Memory) Palette() []byte {
	return m.palette
}
