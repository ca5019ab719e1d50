package emu

import (
	"github.com/sarchlab/agbsim/ioreg"
	"github.com/sarchlab/agbsim/logger"
)

var timerPrescale = [4]int{1, 64, 256, 1024}

type timer struct {
	counter uint16
	control uint16
	// residue counts cycles not yet worth a tick at the current prescale.
	residue int
}

func (t *timer) running() bool {
	return t.control&ioreg.TimerStart != 0
}

// TimerControl applies a write to TMnCNT_H. Starting a stopped timer reloads
// its counter.
func (e *Emulator) TimerControl(n int, value uint16) {
	t := &e.timers[n]

	if value&ioreg.TimerCountUp != 0 && n > 0 && value&ioreg.TimerStart != 0 {
		e.raiseFault(e.fatal(UnsupportedHardware, "timer %d count-up mode", n))
		return
	}

	if value&ioreg.TimerStart != 0 && !t.running() {
		t.counter = e.bus.ReadIO16(ioreg.TimerOffset(n, ioreg.TimerCNTL))
		t.residue = 0
	}
	t.control = value
}

// TimerCounter returns the live counter of timer n.
func (e *Emulator) TimerCounter(n int) uint16 {
	return e.timers[n].counter
}

func (e *Emulator) advanceTimers(cycles int) {
	for n := range e.timers {
		t := &e.timers[n]
		if !t.running() {
			continue
		}

		prescale := timerPrescale[t.control&ioreg.TimerPrescaleMask]
		t.residue += cycles
		ticks := t.residue / prescale
		t.residue %= prescale
		if ticks == 0 {
			continue
		}

		reload := uint32(e.bus.ReadIO16(ioreg.TimerOffset(n, ioreg.TimerCNTL)))
		count := uint32(t.counter) + uint32(ticks)
		for count > 0xFFFF {
			count = count - 0x10000 + reload
			if t.control&ioreg.TimerIRQ != 0 {
				e.RaiseInterrupt(ioreg.IRQTimer0 + ioreg.Interrupt(n))
			}
			if logger.Enabled() {
				logger.Logf("timer", "timer %d overflow", n)
			}
		}
		t.counter = uint16(count)
	}
}
