package mem

import (
	"encoding/binary"

	"github.com/sarchlab/agbsim/emu"
	"github.com/sarchlab/agbsim/ioreg"
)

// ReadIO16 reads an IO register without side effects.
func (m *Memory) ReadIO16(offset uint32) uint16 {
	if offset+2 > ioreg.IOSize {
		return 0
	}
	return binary.LittleEndian.Uint16(m.io[offset:])
}

// WriteIO16 writes an IO register without side effects.
func (m *Memory) WriteIO16(offset uint32, value uint16) {
	if offset+2 > ioreg.IOSize {
		return
	}
	binary.LittleEndian.PutUint16(m.io[offset:], value)
}

func (m *Memory) readIO(offset uint32, width emu.Width) uint32 {
	if width == emu.Word {
		return uint32(m.readIO16(offset)) | uint32(m.readIO16(offset+2))<<16
	}

	v := uint32(m.readIO16(offset &^ 1))
	if width == emu.Byte {
		return v >> (8 * (offset & 1)) & 0xFF
	}
	return v
}

// readIO16 reads a halfword register, replacing timer reload values with the
// live counters.
func (m *Memory) readIO16(offset uint32) uint16 {
	if n, reg, ok := timerRegister(offset); ok && reg == ioreg.TimerCNTL && m.listener != nil {
		return m.listener.TimerCounter(n)
	}
	return m.ReadIO16(offset)
}

func (m *Memory) writeIO(offset uint32, width emu.Width, value uint32) {
	switch width {
	case emu.Word:
		m.writeIO16(offset, uint16(value), 0xFFFF)
		m.writeIO16(offset+2, uint16(value>>16), 0xFFFF)
	case emu.Half:
		m.writeIO16(offset, uint16(value), 0xFFFF)
	default:
		shift := 8 * (offset & 1)
		m.writeIO16(offset&^1, uint16(value&0xFF)<<shift, 0xFF<<shift)
	}
}

// writeIO16 writes the bits of mask in the halfword register at offset and
// applies the register's side effects.
func (m *Memory) writeIO16(offset uint32, value, mask uint16) {
	old := m.ReadIO16(offset)
	merged := old&^mask | value&mask

	switch offset {
	case ioreg.IF:
		m.WriteIO16(offset, old&^(value&mask))
		return
	case ioreg.VCOUNT, ioreg.KEYINPUT:
		return
	case ioreg.DISPSTAT:
		merged = old&ioreg.StatReadOnly | merged&^ioreg.StatReadOnly
	case ioreg.WAITCNT:
		m.table.ApplyWAITCNT(merged)
	case ioreg.POSTFLG:
		m.WriteIO16(offset, merged)
		if mask&0xFF00 != 0 && m.listener != nil {
			m.listener.Halt()
		}
		return
	}

	m.WriteIO16(offset, merged)

	if m.listener == nil {
		return
	}
	if n, reg, ok := dmaRegister(offset); ok && reg == ioreg.DMACNTH {
		m.listener.DMAControl(n, merged)
	}
	if n, reg, ok := timerRegister(offset); ok && reg == ioreg.TimerCNTH {
		m.listener.TimerControl(n, merged)
	}
}

func dmaRegister(offset uint32) (n int, reg uint32, ok bool) {
	if offset < ioreg.DMABase || offset >= ioreg.DMABase+4*ioreg.DMAStride {
		return 0, 0, false
	}
	rel := offset - ioreg.DMABase
	return int(rel / ioreg.DMAStride), rel % ioreg.DMAStride, true
}

func timerRegister(offset uint32) (n int, reg uint32, ok bool) {
	if offset < ioreg.TimerBase || offset >= ioreg.TimerBase+4*ioreg.TimerStride {
		return 0, 0, false
	}
	rel := offset - ioreg.TimerBase
	return int(rel / ioreg.TimerStride), rel % ioreg.TimerStride, true
}
