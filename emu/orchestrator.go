package emu

// raiseFault records a fatal condition found outside instruction execution,
// typically in a bus hook. The first fault of a step wins.
func (e *Emulator) raiseFault(err error) {
	if e.fault == nil {
		e.fault = err
	}
}

// orchestrate runs the per-step phases in order: timers, video, DMA and the
// interrupt line. DMA cycles are carried into the next step.
func (e *Emulator) orchestrate(cycles int) error {
	e.cycles += uint64(cycles)

	e.advanceTimers(cycles)
	if e.video != nil {
		e.video.Advance(cycles)
	}

	if e.fault != nil {
		return e.fault
	}

	e.carryCycles += e.serviceDMA()

	if e.halted {
		if e.pendingInterrupts() == 0 {
			return nil
		}
		e.halted = false
	}

	return e.serviceInterrupt()
}
