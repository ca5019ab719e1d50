package emu

import (
	"math"

	"github.com/sarchlab/agbsim/ioreg"
	"github.com/sarchlab/agbsim/logger"
)

// BIOS call numbers served without a boot ROM.
const (
	BiosHalt           uint32 = 0x02
	BiosStop           uint32 = 0x03
	BiosIntrWait       uint32 = 0x04
	BiosVBlankIntrWait uint32 = 0x05
	BiosDiv            uint32 = 0x06
	BiosDivArm         uint32 = 0x07
	BiosSqrt           uint32 = 0x08
	BiosCpuSet         uint32 = 0x0B
	BiosCpuFastSet     uint32 = 0x0C
)

// BiosInterruptFlags is where interrupt handlers acknowledge interrupts for
// IntrWait.
const BiosInterruptFlags uint32 = 0x03007FF8

// SyscallResult represents the result of a BIOS call.
type SyscallResult struct {
	// Cycles spent inside the call.
	Cycles int
}

// SyscallHandler serves software interrupts when no boot ROM is mapped.
type SyscallHandler interface {
	// Handle executes BIOS call comment. Arguments and results are in
	// r0-r3 of the emulator's register file.
	Handle(comment uint32) (SyscallResult, error)
}

// DefaultSyscallHandler implements the BIOS calls games rely on most.
type DefaultSyscallHandler struct {
	emu *Emulator

	// waiting is set while an IntrWait call is being restarted.
	waiting bool
}

// NewDefaultSyscallHandler creates a default BIOS call handler.
func NewDefaultSyscallHandler(e *Emulator) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{emu: e}
}

// Handle executes BIOS call comment.
func (h *DefaultSyscallHandler) Handle(comment uint32) (SyscallResult, error) {
	if logger.Enabled() {
		logger.Logf("bios", "swi 0x%02x", comment)
	}

	switch comment {
	case BiosHalt, BiosStop:
		h.emu.Halt()
		return SyscallResult{Cycles: 3}, nil
	case BiosIntrWait:
		r := h.emu.regFile
		return h.handleIntrWait(r.R[0] != 0, r.R[1]&0xFFFF), nil
	case BiosVBlankIntrWait:
		return h.handleIntrWait(true, uint32(ioreg.IRQVBlank.Mask())), nil
	case BiosDiv:
		return h.handleDiv(h.emu.regFile.R[0], h.emu.regFile.R[1])
	case BiosDivArm:
		return h.handleDiv(h.emu.regFile.R[1], h.emu.regFile.R[0])
	case BiosSqrt:
		r := h.emu.regFile
		r.R[0] = uint32(math.Sqrt(float64(r.R[0])))
		return SyscallResult{Cycles: 20}, nil
	case BiosCpuSet:
		return h.handleCpuSet(), nil
	case BiosCpuFastSet:
		return h.handleCpuFastSet(), nil
	}

	return SyscallResult{}, h.emu.fatal(UnsupportedHardware, "bios call 0x%02x", comment)
}

// handleIntrWait waits until one of the interrupts in r1 has been
// acknowledged in BiosInterruptFlags. When none has, the CPU halts and the
// call is restarted after the interrupt handler returns. discard clears
// stale flags on the first pass only.
func (h *DefaultSyscallHandler) handleIntrWait(discard bool, wanted uint32) SyscallResult {
	e := h.emu
	r := e.regFile

	flags := e.bus.Read(BiosInterruptFlags, Half)
	if discard && !h.waiting {
		flags &^= wanted
		e.bus.Write(BiosInterruptFlags, Half, flags)
	}

	e.bus.WriteIO16(ioreg.IME, 1)

	if flags&wanted != 0 {
		e.bus.Write(BiosInterruptFlags, Half, flags&^wanted)
		h.waiting = false
		return SyscallResult{Cycles: 3}
	}

	h.waiting = true
	r.R[0] = 0
	r.R[RegPC] = e.curPC
	e.Halt()
	return SyscallResult{Cycles: 3}
}

func (h *DefaultSyscallHandler) handleDiv(num, den uint32) (SyscallResult, error) {
	if den == 0 {
		return SyscallResult{}, h.emu.fatal(UnsupportedHardware, "bios division by zero")
	}

	n, d := int32(num), int32(den)
	var quot, rem int32
	if n == math.MinInt32 && d == -1 {
		quot, rem = n, 0
	} else {
		quot, rem = n/d, n%d
	}

	abs := quot
	if abs < 0 {
		abs = -abs
	}

	r := h.emu.regFile
	r.R[0] = uint32(quot)
	r.R[1] = uint32(rem)
	r.R[3] = uint32(abs)
	return SyscallResult{Cycles: 40}, nil
}

// handleCpuSet copies or fills r2 bits 0-20 units from r0 to r1. Bit 24 of
// r2 fills with the first source unit, bit 26 selects words.
func (h *DefaultSyscallHandler) handleCpuSet() SyscallResult {
	e := h.emu
	r := e.regFile
	src, dst, ctrl := r.R[0], r.R[1], r.R[2]

	count := ctrl & 0x1FFFFF
	fill := Bit(ctrl, 24)
	width, unit := Half, uint32(2)
	if Bit(ctrl, 26) {
		width, unit = Word, 4
	}
	src &^= unit - 1
	dst &^= unit - 1

	cycles := 3
	for i := uint32(0); i < count; i++ {
		v, rc := e.bus.ReadTimed(src, width)
		wc := e.bus.WriteTimed(dst, width, v)
		cycles += rc + wc
		if !fill {
			src += unit
		}
		dst += unit
	}
	return SyscallResult{Cycles: cycles}
}

// handleCpuFastSet is CpuSet for words in blocks of eight.
func (h *DefaultSyscallHandler) handleCpuFastSet() SyscallResult {
	e := h.emu
	r := e.regFile
	src, dst, ctrl := r.R[0]&^3, r.R[1]&^3, r.R[2]

	count := (ctrl&0x1FFFFF + 7) &^ 7
	fill := Bit(ctrl, 24)

	cycles := 3
	for i := uint32(0); i < count; i++ {
		v, rc := e.bus.ReadTimed(src, Word)
		wc := e.bus.WriteTimed(dst, Word, v)
		cycles += rc + wc
		if !fill {
			src += 4
		}
		dst += 4
	}
	return SyscallResult{Cycles: cycles}
}
