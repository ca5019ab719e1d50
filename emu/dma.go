package emu

import (
	"github.com/sarchlab/agbsim/ioreg"
	"github.com/sarchlab/agbsim/logger"
)

// Address control values of DMA CNT_H.
const (
	dmaIncrement = iota
	dmaDecrement
	dmaFixed
	dmaIncrementReload
)

var (
	dmaSourceMask = [4]uint32{0x07FFFFFF, 0x0FFFFFFF, 0x0FFFFFFF, 0x0FFFFFFF}
	dmaDestMask   = [4]uint32{0x07FFFFFF, 0x07FFFFFF, 0x07FFFFFF, 0x0FFFFFFF}
)

// dmaChannel holds the internal registers of a channel. They are loaded from
// the IO registers when the channel is enabled.
type dmaChannel struct {
	src     uint32
	dst     uint32
	count   uint32
	control uint16
	// armed is set for an immediate transfer that has not run yet.
	armed bool
}

func (c *dmaChannel) enabled() bool {
	return c.control&ioreg.DMAEnable != 0
}

func (c *dmaChannel) timing() ioreg.DMATiming {
	return ioreg.DMATiming(c.control >> ioreg.DMATimingShift & 3)
}

func (e *Emulator) dmaCount(n int) uint32 {
	count := uint32(e.bus.ReadIO16(ioreg.DMAChannelOffset(n, ioreg.DMACNTL)))
	if n < 3 {
		count &= 0x3FFF
	}
	if count == 0 {
		if n == 3 {
			return 0x10000
		}
		return 0x4000
	}
	return count
}

func (e *Emulator) readIO32(offset uint32) uint32 {
	return uint32(e.bus.ReadIO16(offset)) | uint32(e.bus.ReadIO16(offset+2))<<16
}

// DMAControl applies a write to DMAnCNT_H. An enable edge latches source,
// destination and count; an immediate channel then runs after the current
// instruction.
func (e *Emulator) DMAControl(n int, value uint16) {
	c := &e.dma[n]
	wasEnabled := c.enabled()
	c.control = value

	if !c.enabled() {
		c.armed = false
		return
	}

	switch {
	case c.timing() == ioreg.DMASpecial:
		e.raiseFault(e.fatal(UnsupportedHardware, "dma %d special start timing", n))
		return
	case value&ioreg.DMAGamePakDRQ != 0 && n == 3:
		e.raiseFault(e.fatal(UnsupportedHardware, "dma %d game pak transfer", n))
		return
	case value>>ioreg.DMASrcCtrlShift&3 == dmaIncrementReload:
		e.raiseFault(e.fatal(UnsupportedHardware, "dma %d source address control 3", n))
		return
	}

	if wasEnabled {
		return
	}

	c.src = e.readIO32(ioreg.DMAChannelOffset(n, ioreg.DMASAD)) & dmaSourceMask[n]
	c.dst = e.readIO32(ioreg.DMAChannelOffset(n, ioreg.DMADAD)) & dmaDestMask[n]
	c.count = e.dmaCount(n)
	c.armed = c.timing() == ioreg.DMAImmediate
}

// TriggerDMA signals a start timing, typically from the video unit. Matching
// channels run in the DMA phase of the current step.
func (e *Emulator) TriggerDMA(timing ioreg.DMATiming) {
	e.pendingTimings |= 1 << timing
}

// serviceDMA runs every channel whose start condition is met, in priority
// order, and returns the cycles spent.
func (e *Emulator) serviceDMA() int {
	pending := e.pendingTimings
	e.pendingTimings = 0

	cycles := 0
	for n := range e.dma {
		c := &e.dma[n]
		if !c.enabled() {
			continue
		}

		start := c.armed
		if t := c.timing(); t != ioreg.DMAImmediate && pending&(1<<t) != 0 {
			start = true
		}
		if start {
			cycles += e.transferDMA(n)
		}
	}
	return cycles
}

func stepAddress(addr uint32, control uint16, unit uint32) uint32 {
	switch control {
	case dmaIncrement, dmaIncrementReload:
		return addr + unit
	case dmaDecrement:
		return addr - unit
	}
	return addr
}

func (e *Emulator) transferDMA(n int) int {
	c := &e.dma[n]
	c.armed = false

	width, unit := Half, uint32(2)
	if c.control&ioreg.DMAWord != 0 {
		width, unit = Word, 4
	}
	srcControl := c.control >> ioreg.DMASrcCtrlShift & 3
	dstControl := c.control >> ioreg.DMADestCtrlShift & 3

	if logger.Enabled() {
		logger.Logf("dma", "dma %d %s %d x %s 0x%08x -> 0x%08x",
			n, c.timing(), c.count, width, c.src, c.dst)
	}

	cycles := 2
	for i := uint32(0); i < c.count; i++ {
		v, r := e.bus.ReadTimed(c.src&^(unit-1), width)
		w := e.bus.WriteTimed(c.dst&^(unit-1), width, v)
		cycles += r + w

		c.src = stepAddress(c.src, srcControl, unit)
		c.dst = stepAddress(c.dst, dstControl, unit)
	}

	if c.control&ioreg.DMAIRQ != 0 {
		e.RaiseInterrupt(ioreg.IRQDMA0 + ioreg.Interrupt(n))
	}

	if c.control&ioreg.DMARepeat != 0 && c.timing() != ioreg.DMAImmediate {
		c.count = e.dmaCount(n)
		if dstControl == dmaIncrementReload {
			c.dst = e.readIO32(ioreg.DMAChannelOffset(n, ioreg.DMADAD)) & dmaDestMask[n]
		}
		return cycles
	}

	c.control &^= ioreg.DMAEnable
	offset := ioreg.DMAChannelOffset(n, ioreg.DMACNTH)
	e.bus.WriteIO16(offset, e.bus.ReadIO16(offset)&^ioreg.DMAEnable)
	return cycles
}
