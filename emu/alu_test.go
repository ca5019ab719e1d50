package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/agbsim/emu"
	"github.com/sarchlab/agbsim/insts"
)

var _ = Describe("ALU", func() {
	var (
		regFile *emu.RegFile
		alu     *emu.ALU
	)

	BeforeEach(func() {
		regFile = emu.NewRegFile()
		alu = emu.NewALU(regFile)
	})

	Describe("addition", func() {
		It("should set V and not C on signed overflow", func() {
			Expect(alu.Add(0x7FFFFFFF, 1, true)).To(Equal(uint32(0x80000000)))
			Expect(regFile.V()).To(BeTrue())
			Expect(regFile.C()).To(BeFalse())
			Expect(regFile.N()).To(BeTrue())
		})

		It("should set C and not V on unsigned overflow", func() {
			Expect(alu.Add(0xFFFFFFFF, 1, true)).To(Equal(uint32(0)))
			Expect(regFile.C()).To(BeTrue())
			Expect(regFile.V()).To(BeFalse())
			Expect(regFile.Z()).To(BeTrue())
		})

		It("should fold in the carry for ADC", func() {
			regFile.SetC(true)
			Expect(alu.Adc(1, 1, false)).To(Equal(uint32(3)))
		})

		It("should report carry from the carry-in alone", func() {
			regFile.SetC(true)
			Expect(alu.Adc(0xFFFFFFFF, 0, true)).To(Equal(uint32(0)))
			Expect(regFile.C()).To(BeTrue())
			Expect(regFile.V()).To(BeFalse())
		})
	})

	Describe("subtraction", func() {
		It("should set Z and C and clear N for equal operands", func() {
			Expect(alu.Sub(5, 5, true)).To(Equal(uint32(0)))
			Expect(regFile.Z()).To(BeTrue())
			Expect(regFile.C()).To(BeTrue())
			Expect(regFile.N()).To(BeFalse())
			Expect(regFile.V()).To(BeFalse())
		})

		It("should clear C on borrow", func() {
			Expect(alu.Sub(0, 1, true)).To(Equal(uint32(0xFFFFFFFF)))
			Expect(regFile.C()).To(BeFalse())
			Expect(regFile.N()).To(BeTrue())
		})

		It("should set V on signed underflow", func() {
			Expect(alu.Sub(0x80000000, 1, true)).To(Equal(uint32(0x7FFFFFFF)))
			Expect(regFile.V()).To(BeTrue())
			Expect(regFile.C()).To(BeTrue())
		})

		It("should subtract the inverted carry for SBC", func() {
			regFile.SetC(false)
			Expect(alu.Sbc(5, 2, false)).To(Equal(uint32(2)))
			regFile.SetC(true)
			Expect(alu.Sbc(5, 2, false)).To(Equal(uint32(3)))
		})

		It("should reverse operands for RSB and RSC", func() {
			Expect(alu.Execute(insts.OpRSB, 1, 5, false, false)).To(Equal(uint32(4)))
			regFile.SetC(false)
			Expect(alu.Execute(insts.OpRSC, 1, 5, false, false)).To(Equal(uint32(3)))
		})
	})

	Describe("logical operations", func() {
		It("should take C from the shifter", func() {
			Expect(alu.And(0xF0, 0x0F, true, true)).To(Equal(uint32(0)))
			Expect(regFile.Z()).To(BeTrue())
			Expect(regFile.C()).To(BeTrue())
		})

		It("should leave V alone", func() {
			regFile.SetV(true)
			alu.Orr(1, 2, false, true)
			Expect(regFile.V()).To(BeTrue())
			Expect(regFile.C()).To(BeFalse())
		})

		It("should not touch flags without the S bit", func() {
			before := regFile.CPSR
			Expect(alu.Eor(0xFF, 0xFF, true, false)).To(Equal(uint32(0)))
			Expect(alu.Bic(0xFF, 0x0F, true, false)).To(Equal(uint32(0xF0)))
			Expect(regFile.CPSR).To(Equal(before))
		})

		It("should execute MOV and MVN on operand 2", func() {
			Expect(alu.Execute(insts.OpMOV, 7, 9, false, false)).To(Equal(uint32(9)))
			Expect(alu.Execute(insts.OpMVN, 7, 0, false, false)).To(Equal(uint32(0xFFFFFFFF)))
		})
	})

	It("should compute AddWithCarry directly", func() {
		result, c, v := emu.AddWithCarry(0x80000000, 0x80000000, false)
		Expect(result).To(Equal(uint32(0)))
		Expect(c).To(BeTrue())
		Expect(v).To(BeTrue())
	})
})

var _ = Describe("Condition evaluation", func() {
	reference := map[insts.Cond]func(n, z, c, v bool) bool{
		insts.CondEQ: func(n, z, c, v bool) bool { return z },
		insts.CondNE: func(n, z, c, v bool) bool { return !z },
		insts.CondCS: func(n, z, c, v bool) bool { return c },
		insts.CondCC: func(n, z, c, v bool) bool { return !c },
		insts.CondMI: func(n, z, c, v bool) bool { return n },
		insts.CondPL: func(n, z, c, v bool) bool { return !n },
		insts.CondVS: func(n, z, c, v bool) bool { return v },
		insts.CondVC: func(n, z, c, v bool) bool { return !v },
		insts.CondHI: func(n, z, c, v bool) bool { return c && !z },
		insts.CondLS: func(n, z, c, v bool) bool { return !c || z },
		insts.CondGE: func(n, z, c, v bool) bool { return n == v },
		insts.CondLT: func(n, z, c, v bool) bool { return n != v },
		insts.CondGT: func(n, z, c, v bool) bool { return !z && n == v },
		insts.CondLE: func(n, z, c, v bool) bool { return z || n != v },
		insts.CondAL: func(n, z, c, v bool) bool { return true },
	}

	It("should match the truth table for all flag combinations", func() {
		for cond, want := range reference {
			for flags := 0; flags < 16; flags++ {
				n, z, c, v := flags&8 != 0, flags&4 != 0, flags&2 != 0, flags&1 != 0
				got, ok := emu.ConditionHolds(cond, n, z, c, v)
				Expect(ok).To(BeTrue())
				Expect(got).To(Equal(want(n, z, c, v)), "cond %v flags %04b", cond, flags)
			}
		}
	})

	It("should reject the reserved code", func() {
		for flags := 0; flags < 16; flags++ {
			_, ok := emu.ConditionHolds(insts.CondNV, flags&8 != 0, flags&4 != 0, flags&2 != 0, flags&1 != 0)
			Expect(ok).To(BeFalse())
		}
	})

	It("should read flags from the CPSR", func() {
		regFile := emu.NewRegFile()
		regFile.CPSR |= emu.FlagZ
		pass, ok := regFile.CheckCondition(insts.CondEQ)
		Expect(ok).To(BeTrue())
		Expect(pass).To(BeTrue())
	})
})
