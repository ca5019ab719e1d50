package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/agbsim/emu"
)

const thumbBase uint32 = 0x08000100

// newThumbCPU returns an emulator in Thumb state at thumbBase.
func newThumbCPU(halves ...uint16) (*emu.Emulator, *testBus) {
	bus := newTestBus()
	bus.loadHalves(thumbBase, halves...)
	e := emu.NewEmulator(bus)
	e.LoadProgram(thumbBase | 1)
	return e, bus
}

var _ = Describe("Thumb execution", func() {
	It("should start in Thumb state from an odd entry point", func() {
		e, _ := newThumbCPU()
		Expect(e.RegFile().Thumb()).To(BeTrue())
		Expect(e.RegFile().R[emu.RegPC]).To(Equal(thumbBase))
	})

	It("should run immediate and register arithmetic", func() {
		e, _ := newThumbCPU(
			0x2005, // mov r0, #5
			0x2103, // mov r1, #3
			0x1842, // add r2, r0, r1
			0x1A0B, // sub r3, r1, r0
		)
		run(e, 4)
		r := e.RegFile()
		Expect(r.R[2]).To(Equal(uint32(8)))
		Expect(r.R[3]).To(Equal(uint32(0xFFFFFFFE)))
		Expect(r.N()).To(BeTrue())
		Expect(r.C()).To(BeFalse())
		Expect(r.R[emu.RegPC]).To(Equal(thumbBase + 8))
	})

	It("should treat LSR #0 as a shift by 32", func() {
		e, _ := newThumbCPU(0x0808) // lsr r0, r1, #32
		e.RegFile().R[1] = 0x80000000
		run(e, 1)
		Expect(e.RegFile().R[0]).To(Equal(uint32(0)))
		Expect(e.RegFile().C()).To(BeTrue())
		Expect(e.RegFile().Z()).To(BeTrue())
	})

	It("should run ALU operations", func() {
		e, _ := newThumbCPU(
			0x4248, // neg r0, r1
			0x434A, // mul r2, r1
			0x43CB, // mvn r3, r1
		)
		r := e.RegFile()
		r.R[1] = 3
		r.R[2] = 7
		run(e, 3)
		Expect(r.R[0]).To(Equal(uint32(0xFFFFFFFD)))
		Expect(r.R[2]).To(Equal(uint32(21)))
		Expect(r.R[3]).To(Equal(uint32(0xFFFFFFFC)))
	})

	It("should branch and link in two halves", func() {
		e, _ := newThumbCPU(
			0xF000, // bl, upper half
			0xF87E, // bl, lower half: target thumbBase + 0x100
		)
		run(e, 1)
		Expect(e.RegFile().R[emu.RegLR]).To(Equal(thumbBase + 4))

		run(e, 1)
		Expect(e.RegFile().R[emu.RegPC]).To(Equal(thumbBase + 0x100))
		Expect(e.RegFile().R[emu.RegLR]).To(Equal(thumbBase + 5))
	})

	It("should push and pop through the stack", func() {
		e, bus := newThumbCPU(
			0xB510, // push {r4, lr}
			0x2400, // mov r4, #0
			0xBD10, // pop {r4, pc}
		)
		r := e.RegFile()
		r.R[4] = 4
		r.R[emu.RegLR] = 0x08000401

		run(e, 2)
		Expect(r.R[emu.RegSP]).To(Equal(emu.StackSystem - 8))
		Expect(bus.Read(emu.StackSystem-8, emu.Word)).To(Equal(uint32(4)))
		Expect(bus.Read(emu.StackSystem-4, emu.Word)).To(Equal(uint32(0x08000401)))

		run(e, 1)
		Expect(r.R[4]).To(Equal(uint32(4)))
		Expect(r.R[emu.RegSP]).To(Equal(emu.StackSystem))
		Expect(r.R[emu.RegPC]).To(Equal(uint32(0x08000400)))
		Expect(r.Thumb()).To(BeTrue())
	})

	It("should word-align PC-relative loads", func() {
		e, bus := newThumbCPU(
			0x46C0, // mov r8, r8
			0x4801, // ldr r0, [pc, #4]
		)
		bus.Write(thumbBase+8, emu.Word, 0x600DF00D)
		run(e, 2)
		Expect(e.RegFile().R[0]).To(Equal(uint32(0x600DF00D)))
	})

	It("should take conditional branches only when the condition holds", func() {
		e, _ := newThumbCPU(
			0x2800, // cmp r0, #0
			0xD101, // bne +2
			0xD0FC, // beq -8
		)
		e.RegFile().R[0] = 0
		run(e, 3)
		Expect(e.RegFile().R[emu.RegPC]).To(Equal(thumbBase))
	})

	It("should write back in LDMIA unless the base is loaded", func() {
		e, bus := newThumbCPU(
			0xC806, // ldmia r0!, {r1, r2}
			0xCB08, // ldmia r3!, {r3}
		)
		bus.loadWords(ewram, 1, 2, 3)
		r := e.RegFile()
		r.R[0] = ewram
		r.R[3] = ewram + 8
		run(e, 2)
		Expect(r.R[0]).To(Equal(ewram + 8))
		Expect(r.R[1]).To(Equal(uint32(1)))
		Expect(r.R[2]).To(Equal(uint32(2)))
		Expect(r.R[3]).To(Equal(uint32(3)))
	})

	It("should switch back to ARM with BX", func() {
		e, _ := newThumbCPU(0x4700) // bx r0
		e.RegFile().R[0] = 0x08000200
		run(e, 1)
		Expect(e.RegFile().Thumb()).To(BeFalse())
		Expect(e.RegFile().R[emu.RegPC]).To(Equal(uint32(0x08000200)))
	})

	It("should adjust SP and form addresses", func() {
		e, _ := newThumbCPU(
			0xB082, // sub sp, #8
			0xA901, // add r1, sp, #4
		)
		run(e, 2)
		Expect(e.RegFile().R[emu.RegSP]).To(Equal(emu.StackSystem - 8))
		Expect(e.RegFile().R[1]).To(Equal(emu.StackSystem - 4))
	})

	It("should report unknown opcodes as fatal", func() {
		e, _ := newThumbCPU(0xDE00)
		result := e.Step()
		Expect(emu.IsFatal(result.Err, emu.UnknownOpcode)).To(BeTrue())

		fe, _ := emu.AsFatal(result.Err)
		Expect(fe.Thumb).To(BeTrue())
		Expect(fe.Error()).To(ContainSubstring("opcode 0xde00"))
	})
})
