// Package emu provides functional ARMv4T emulation of the handheld console
// CPU: register banks, both instruction sets, and the per-step timer, DMA and
// interrupt orchestration.
package emu

import (
	"fmt"

	"github.com/pkg/errors"
)

// Mode is the value of the CPSR mode field.
type Mode uint32

// Processor modes.
const (
	ModeUser       Mode = 0x10
	ModeFIQ        Mode = 0x11
	ModeIRQ        Mode = 0x12
	ModeSupervisor Mode = 0x13
	ModeAbort      Mode = 0x17
	ModeUndefined  Mode = 0x1B
	ModeSystem     Mode = 0x1F
)

func (m Mode) String() string {
	switch m {
	case ModeUser:
		return "usr"
	case ModeFIQ:
		return "fiq"
	case ModeIRQ:
		return "irq"
	case ModeSupervisor:
		return "svc"
	case ModeAbort:
		return "abt"
	case ModeUndefined:
		return "und"
	case ModeSystem:
		return "sys"
	}
	return fmt.Sprintf("mode(0x%02x)", uint32(m))
}

// Valid reports whether m is one of the seven architectural modes.
func (m Mode) Valid() bool {
	return bankOf(m) >= 0
}

// Privileged reports whether m owns a saved status word.
func (m Mode) Privileged() bool {
	return bankOf(m) > bankUser
}

// CPSR bits.
const (
	FlagN uint32 = 1 << 31
	FlagZ uint32 = 1 << 30
	FlagC uint32 = 1 << 29
	FlagV uint32 = 1 << 28

	StatusIRQDisable uint32 = 1 << 7
	StatusFIQDisable uint32 = 1 << 6
	StatusThumb      uint32 = 1 << 5
	StatusModeMask   uint32 = 0x1F
)

// Register aliases.
const (
	RegSP = 13
	RegLR = 14
	RegPC = 15
)

const (
	bankUser = iota
	bankFIQ
	bankSupervisor
	bankAbort
	bankIRQ
	bankUndefined
	numBanks
)

func bankOf(m Mode) int {
	switch m {
	case ModeUser, ModeSystem:
		return bankUser
	case ModeFIQ:
		return bankFIQ
	case ModeSupervisor:
		return bankSupervisor
	case ModeAbort:
		return bankAbort
	case ModeIRQ:
		return bankIRQ
	case ModeUndefined:
		return bankUndefined
	}
	return -1
}

// RegFile represents the ARMv4T register file.
//
// R is the active copy of r0-r15 and is what the instruction handlers read and
// write. Banked storage is only touched by SwitchMode, which always stores the
// outgoing registers before loading the incoming ones.
type RegFile struct {
	// R holds the active registers. R[15] is the address of the next
	// instruction to fetch.
	R [16]uint32

	// CPSR is the current program status register.
	CPSR uint32

	// r8-r12 exist twice: once for FIQ and once for every other mode.
	highUser [5]uint32
	highFIQ  [5]uint32

	// r13-r14 per bank.
	sp [numBanks]uint32
	lr [numBanks]uint32

	spsr [numBanks]uint32
}

// NewRegFile returns a register file in System mode, ARM state, with all
// registers cleared.
func NewRegFile() *RegFile {
	return &RegFile{CPSR: uint32(ModeSystem)}
}

// Mode returns the current processor mode.
func (r *RegFile) Mode() Mode {
	return Mode(r.CPSR & StatusModeMask)
}

// Thumb reports whether the 16-bit instruction set is active.
func (r *RegFile) Thumb() bool {
	return r.CPSR&StatusThumb != 0
}

// SetThumb selects the instruction set.
func (r *RegFile) SetThumb(on bool) {
	r.CPSR = setMask(r.CPSR, StatusThumb, on)
}

// IRQDisabled reports whether the I bit masks interrupts.
func (r *RegFile) IRQDisabled() bool {
	return r.CPSR&StatusIRQDisable != 0
}

// N returns the negative flag.
func (r *RegFile) N() bool { return r.CPSR&FlagN != 0 }

// Z returns the zero flag.
func (r *RegFile) Z() bool { return r.CPSR&FlagZ != 0 }

// C returns the carry flag.
func (r *RegFile) C() bool { return r.CPSR&FlagC != 0 }

// V returns the overflow flag.
func (r *RegFile) V() bool { return r.CPSR&FlagV != 0 }

// SetNZ sets N and Z from a 32-bit result.
func (r *RegFile) SetNZ(result uint32) {
	r.CPSR = setMask(r.CPSR, FlagN, result&(1<<31) != 0)
	r.CPSR = setMask(r.CPSR, FlagZ, result == 0)
}

// SetC sets the carry flag.
func (r *RegFile) SetC(on bool) {
	r.CPSR = setMask(r.CPSR, FlagC, on)
}

// SetV sets the overflow flag.
func (r *RegFile) SetV(on bool) {
	r.CPSR = setMask(r.CPSR, FlagV, on)
}

func setMask(v, mask uint32, on bool) uint32 {
	if on {
		return v | mask
	}
	return v &^ mask
}

// SwitchMode makes the bank of mode m active and updates the CPSR mode field.
// Registers that both modes share keep their values.
func (r *RegFile) SwitchMode(m Mode) error {
	to := bankOf(m)
	if to < 0 {
		return errors.Errorf("invalid mode 0x%02x", uint32(m))
	}

	from := bankOf(r.Mode())
	if from < 0 {
		return errors.Errorf("invalid current mode 0x%02x", r.CPSR&StatusModeMask)
	}

	if from != to {
		r.sp[from], r.lr[from] = r.R[13], r.R[14]

		if from == bankFIQ && to != bankFIQ {
			copy(r.highFIQ[:], r.R[8:13])
			copy(r.R[8:13], r.highUser[:])
		} else if to == bankFIQ && from != bankFIQ {
			copy(r.highUser[:], r.R[8:13])
			copy(r.R[8:13], r.highFIQ[:])
		}

		r.R[13], r.R[14] = r.sp[to], r.lr[to]
	}

	r.CPSR = r.CPSR&^StatusModeMask | uint32(m)
	return nil
}

// SetCPSR writes the whole CPSR, switching banks when the mode field changes.
func (r *RegFile) SetCPSR(value uint32) error {
	if err := r.SwitchMode(Mode(value & StatusModeMask)); err != nil {
		return err
	}
	r.CPSR = value
	return nil
}

// SPSR returns the saved status word of the current mode. The second result
// is false in User and System mode, which have none.
func (r *RegFile) SPSR() (uint32, bool) {
	if !r.Mode().Privileged() {
		return 0, false
	}
	return r.spsr[bankOf(r.Mode())], true
}

// SetSPSR writes the saved status word of the current mode. It reports false
// in User and System mode.
func (r *RegFile) SetSPSR(value uint32) bool {
	if !r.Mode().Privileged() {
		return false
	}
	r.spsr[bankOf(r.Mode())] = value
	return true
}

// BankedSP returns r13 of mode m as seen from any mode.
func (r *RegFile) BankedSP(m Mode) uint32 {
	if bankOf(m) == bankOf(r.Mode()) {
		return r.R[13]
	}
	return r.sp[bankOf(m)]
}

// SetBankedSP writes r13 of mode m without switching modes.
func (r *RegFile) SetBankedSP(m Mode, value uint32) {
	if bankOf(m) == bankOf(r.Mode()) {
		r.R[13] = value
		return
	}
	r.sp[bankOf(m)] = value
}

// UserReg reads register n of the User bank regardless of the current mode.
func (r *RegFile) UserReg(n int) uint32 {
	current := bankOf(r.Mode())
	switch {
	case n >= 8 && n <= 12 && current == bankFIQ:
		return r.highUser[n-8]
	case n == 13 && current != bankUser:
		return r.sp[bankUser]
	case n == 14 && current != bankUser:
		return r.lr[bankUser]
	}
	return r.R[n]
}

// SetUserReg writes register n of the User bank regardless of the current
// mode.
func (r *RegFile) SetUserReg(n int, value uint32) {
	current := bankOf(r.Mode())
	switch {
	case n >= 8 && n <= 12 && current == bankFIQ:
		r.highUser[n-8] = value
	case n == 13 && current != bankUser:
		r.sp[bankUser] = value
	case n == 14 && current != bankUser:
		r.lr[bankUser] = value
	default:
		r.R[n] = value
	}
}
