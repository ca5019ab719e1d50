package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/agbsim/emu"
	"github.com/sarchlab/agbsim/ioreg"
)

const nop uint32 = 0xE1A00000 // mov r0, r0

func nops(n int) []uint32 {
	words := make([]uint32, n)
	for i := range words {
		words[i] = nop
	}
	return words
}

type fakeVideo struct {
	cycles int
}

func (v *fakeVideo) Advance(cycles int) {
	v.cycles += cycles
}

type countingHook struct {
	calls  int
	quitAt int
	lastPC uint32
	lastOp uint32
}

func (h *countingHook) Hook(e *emu.Emulator, addr, opcode uint32) emu.HookAction {
	h.calls++
	h.lastPC = addr
	h.lastOp = opcode
	if h.calls == h.quitAt {
		return emu.HookQuit
	}
	return emu.HookContinue
}

var _ = Describe("Orchestrator", func() {
	Describe("interrupts", func() {
		var (
			e   *emu.Emulator
			bus *testBus
		)

		BeforeEach(func() {
			e, bus = newCPU(nops(4)...)
			bus.WriteIO16(ioreg.IME, 1)
			bus.WriteIO16(ioreg.IE, ioreg.IRQVBlank.Mask())
		})

		It("should enter IRQ mode after the current instruction", func() {
			bus.WriteIO16(ioreg.IF, ioreg.IRQVBlank.Mask())
			run(e, 1)

			r := e.RegFile()
			Expect(r.Mode()).To(Equal(emu.ModeIRQ))
			Expect(r.R[emu.RegPC]).To(Equal(emu.VectorIRQ))
			Expect(r.R[emu.RegLR]).To(Equal(emu.ROMEntry + 8))
			Expect(r.R[emu.RegSP]).To(Equal(emu.StackIRQ))
			Expect(r.IRQDisabled()).To(BeTrue())
			Expect(r.Thumb()).To(BeFalse())

			spsr, _ := r.SPSR()
			Expect(spsr).To(Equal(uint32(emu.ModeSystem)))
		})

		It("should use the next instruction plus 4 in Thumb state", func() {
			e, bus = newThumbCPU(0x46C0, 0x46C0)
			bus.WriteIO16(ioreg.IME, 1)
			bus.WriteIO16(ioreg.IE, ioreg.IRQVBlank.Mask())
			bus.WriteIO16(ioreg.IF, ioreg.IRQVBlank.Mask())
			run(e, 1)

			r := e.RegFile()
			Expect(r.Thumb()).To(BeFalse())
			Expect(r.R[emu.RegLR]).To(Equal(thumbBase + 6))
			spsr, _ := r.SPSR()
			Expect(spsr & emu.StatusThumb).ToNot(BeZero())
		})

		It("should wait while IME is clear", func() {
			bus.WriteIO16(ioreg.IME, 0)
			bus.WriteIO16(ioreg.IF, ioreg.IRQVBlank.Mask())
			run(e, 1)
			Expect(e.RegFile().Mode()).To(Equal(emu.ModeSystem))
		})

		It("should wait while the I bit is set", func() {
			e.RegFile().CPSR |= emu.StatusIRQDisable
			bus.WriteIO16(ioreg.IF, ioreg.IRQVBlank.Mask())
			run(e, 1)
			Expect(e.RegFile().Mode()).To(Equal(emu.ModeSystem))
		})

		It("should ignore requests that are not enabled", func() {
			e.RaiseInterrupt(ioreg.IRQHBlank)
			run(e, 1)
			Expect(e.RegFile().Mode()).To(Equal(emu.ModeSystem))
			Expect(bus.ReadIO16(ioreg.IF)).To(Equal(ioreg.IRQHBlank.Mask()))
		})

		It("should leave halt when an enabled interrupt is requested", func() {
			bus.WriteIO16(ioreg.IME, 0)
			e.Halt()

			result := e.Step()
			Expect(result.Err).ToNot(HaveOccurred())
			Expect(result.Cycles).To(Equal(emu.DefaultHaltQuantum))
			Expect(e.Halted()).To(BeTrue())
			Expect(e.InstructionCount()).To(BeZero())

			e.RaiseInterrupt(ioreg.IRQVBlank)
			run(e, 1)
			Expect(e.Halted()).To(BeFalse())
			Expect(e.RegFile().R[emu.RegPC]).To(Equal(emu.ROMEntry))
		})
	})

	Describe("timers", func() {
		It("should overflow, reload and raise its interrupt", func() {
			e, bus := newCPU(nops(4)...)
			bus.WriteIO16(ioreg.TimerOffset(0, ioreg.TimerCNTL), 0xFFFE)
			e.TimerControl(0, ioreg.TimerStart|ioreg.TimerIRQ)
			Expect(e.TimerCounter(0)).To(Equal(uint16(0xFFFE)))

			run(e, 1)
			Expect(e.TimerCounter(0)).To(Equal(uint16(0xFFFF)))
			Expect(bus.ReadIO16(ioreg.IF)).To(BeZero())

			run(e, 1)
			Expect(e.TimerCounter(0)).To(Equal(uint16(0xFFFE)))
			Expect(bus.ReadIO16(ioreg.IF)).To(Equal(ioreg.IRQTimer0.Mask()))
		})

		It("should count at the prescaled rate", func() {
			e, _ := newCPU(nops(70)...)
			e.TimerControl(2, ioreg.TimerStart|1)
			run(e, 63)
			Expect(e.TimerCounter(2)).To(BeZero())
			run(e, 1)
			Expect(e.TimerCounter(2)).To(Equal(uint16(1)))
		})

		It("should not count while stopped", func() {
			e, _ := newCPU(nops(4)...)
			run(e, 3)
			Expect(e.TimerCounter(1)).To(BeZero())
		})

		It("should fail loudly on count-up mode", func() {
			e, _ := newCPU(nops(4)...)
			e.TimerControl(1, ioreg.TimerStart|ioreg.TimerCountUp)
			Expect(emu.IsFatal(e.Step().Err, emu.UnsupportedHardware)).To(BeTrue())
		})
	})

	Describe("DMA", func() {
		var (
			e   *emu.Emulator
			bus *testBus
		)

		setup := func(n int, src, dst uint32, count, control uint16) {
			bus.WriteIO16(ioreg.DMAChannelOffset(n, ioreg.DMASAD), uint16(src))
			bus.WriteIO16(ioreg.DMAChannelOffset(n, ioreg.DMASAD)+2, uint16(src>>16))
			bus.WriteIO16(ioreg.DMAChannelOffset(n, ioreg.DMADAD), uint16(dst))
			bus.WriteIO16(ioreg.DMAChannelOffset(n, ioreg.DMADAD)+2, uint16(dst>>16))
			bus.WriteIO16(ioreg.DMAChannelOffset(n, ioreg.DMACNTL), count)
			bus.WriteIO16(ioreg.DMAChannelOffset(n, ioreg.DMACNTH), control)
			e.DMAControl(n, control)
		}

		BeforeEach(func() {
			e, bus = newCPU(nops(4)...)
			bus.loadHalves(ewram, 1, 2, 3, 4, 5)
		})

		It("should copy exactly count units and clear the enable bit", func() {
			setup(3, ewram, ewram+0x1000, 4, ioreg.DMAEnable|ioreg.DMAIRQ)
			run(e, 1)

			for i := uint32(0); i < 4; i++ {
				Expect(bus.Read(ewram+0x1000+i*2, emu.Half)).To(Equal(i + 1))
			}
			Expect(bus.Read(ewram+0x1008, emu.Half)).To(BeZero())
			Expect(bus.ReadIO16(ioreg.DMAChannelOffset(3, ioreg.DMACNTH)) & ioreg.DMAEnable).To(BeZero())
			Expect(bus.ReadIO16(ioreg.IF)).To(Equal(ioreg.IRQDMA3.Mask()))
		})

		It("should carry DMA cycles into the next step", func() {
			setup(3, ewram, ewram+0x1000, 4, ioreg.DMAEnable)
			first := e.Step()
			second := e.Step()
			Expect(second.Cycles).To(BeNumerically(">", first.Cycles))
		})

		It("should copy words with a fixed source", func() {
			control := ioreg.DMAEnable | ioreg.DMAWord | uint16(2)<<ioreg.DMASrcCtrlShift
			setup(0, ewram, ewram+0x1000, 3, control)
			run(e, 1)
			first := bus.Read(ewram, emu.Word)
			for i := uint32(0); i < 3; i++ {
				Expect(bus.Read(ewram+0x1000+i*4, emu.Word)).To(Equal(first))
			}
		})

		It("should wait for its start timing and stay enabled when repeating", func() {
			control := ioreg.DMAEnable | ioreg.DMARepeat | uint16(ioreg.DMAVBlank)<<ioreg.DMATimingShift
			setup(1, ewram, ewram+0x1000, 2, control)
			run(e, 1)
			Expect(bus.Read(ewram+0x1000, emu.Half)).To(BeZero())

			e.TriggerDMA(ioreg.DMAVBlank)
			run(e, 1)
			Expect(bus.Read(ewram+0x1000, emu.Half)).To(Equal(uint32(1)))
			Expect(bus.Read(ewram+0x1002, emu.Half)).To(Equal(uint32(2)))
			Expect(bus.ReadIO16(ioreg.DMAChannelOffset(1, ioreg.DMACNTH)) & ioreg.DMAEnable).ToNot(BeZero())
		})

		It("should reject the special start timing", func() {
			setup(1, ewram, ewram+0x1000, 2, ioreg.DMAEnable|uint16(ioreg.DMASpecial)<<ioreg.DMATimingShift)
			Expect(emu.IsFatal(e.Step().Err, emu.UnsupportedHardware)).To(BeTrue())
		})

		It("should reject game pak transfers", func() {
			setup(3, ewram, ewram+0x1000, 2, ioreg.DMAEnable|ioreg.DMAGamePakDRQ)
			Expect(emu.IsFatal(e.Step().Err, emu.UnsupportedHardware)).To(BeTrue())
		})
	})

	It("should advance the video by the step cycles", func() {
		bus := newTestBus()
		bus.loadWords(emu.ROMEntry, nop, nop)
		video := &fakeVideo{}
		e := emu.NewEmulator(bus, emu.WithVideo(video))

		result := e.Step()
		Expect(result.Err).ToNot(HaveOccurred())
		Expect(video.cycles).To(Equal(result.Cycles))
		Expect(e.Cycles()).To(Equal(uint64(result.Cycles)))
	})

	It("should charge refill fetches after a branch", func() {
		e, _ := newCPU(0xEAFFFFFE) // b .
		result := e.Step()
		Expect(result.Cycles).To(Equal(3))
	})

	It("should offer every instruction to the debug hook", func() {
		bus := newTestBus()
		bus.loadWords(emu.ROMEntry, nop, nop, nop)
		hook := &countingHook{quitAt: 2}
		e := emu.NewEmulator(bus, emu.WithDebugHook(hook))

		Expect(e.Step().Exited).To(BeFalse())
		Expect(hook.lastPC).To(Equal(emu.ROMEntry))
		Expect(hook.lastOp).To(Equal(nop))

		Expect(e.Step().Exited).To(BeTrue())
		Expect(e.InstructionCount()).To(Equal(uint64(1)))
	})
})
