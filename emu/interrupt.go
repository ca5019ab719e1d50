package emu

import (
	"github.com/sarchlab/agbsim/ioreg"
	"github.com/sarchlab/agbsim/logger"
)

// RaiseInterrupt sets the request flag of source i in IF.
func (e *Emulator) RaiseInterrupt(i ioreg.Interrupt) {
	flags := e.bus.ReadIO16(ioreg.IF)
	e.bus.WriteIO16(ioreg.IF, flags|i.Mask())
}

// Halt stops instruction execution until an enabled interrupt is requested.
func (e *Emulator) Halt() {
	if !e.halted && logger.Enabled() {
		logger.Logf("cpu", "halt at 0x%08x", e.curPC)
	}
	e.halted = true
}

func (e *Emulator) pendingInterrupts() uint16 {
	return e.bus.ReadIO16(ioreg.IE) & e.bus.ReadIO16(ioreg.IF) & (1<<ioreg.NumInterrupts - 1)
}

// serviceInterrupt takes the IRQ exception when one is pending and unmasked.
// The return address is the next instruction plus 4, matching the
// subs pc, lr, #4 used by handlers.
func (e *Emulator) serviceInterrupt() error {
	if e.bus.ReadIO16(ioreg.IME)&1 == 0 || e.regFile.IRQDisabled() {
		return nil
	}

	pending := e.pendingInterrupts()
	if pending == 0 {
		return nil
	}

	if logger.Enabled() {
		for i := ioreg.Interrupt(0); i < ioreg.NumInterrupts; i++ {
			if pending&i.Mask() != 0 {
				logger.Logf("irq", "%s at 0x%08x", i, e.regFile.R[RegPC])
				break
			}
		}
	}

	if err := e.enterException(ModeIRQ, VectorIRQ, e.regFile.R[RegPC]+4); err != nil {
		return e.fatal(InternalError, "%v", err)
	}
	return nil
}
