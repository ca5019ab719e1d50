package emu

import "github.com/sarchlab/agbsim/insts"

// AddWithCarry returns a + b + carry together with the unsigned carry-out and
// the signed overflow of the addition. Subtraction is AddWithCarry(a, ^b, c)
// so C after a subtract means "no borrow".
func AddWithCarry(a, b uint32, carry bool) (result uint32, c, v bool) {
	var cin uint64
	if carry {
		cin = 1
	}
	sum := uint64(a) + uint64(b) + cin
	result = uint32(sum)
	c = sum>>32 != 0
	v = (a^result)&(b^result)&(1<<31) != 0
	return result, c, v
}

// ALU implements the data-processing operations.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

func (a *ALU) arith(x, y uint32, carry, setFlags bool) uint32 {
	result, c, v := AddWithCarry(x, y, carry)
	if setFlags {
		a.regFile.SetNZ(result)
		a.regFile.SetC(c)
		a.regFile.SetV(v)
	}
	return result
}

func (a *ALU) logic(result uint32, shifterCarry, setFlags bool) uint32 {
	if setFlags {
		a.regFile.SetNZ(result)
		a.regFile.SetC(shifterCarry)
	}
	return result
}

// Add computes x + y.
func (a *ALU) Add(x, y uint32, setFlags bool) uint32 {
	return a.arith(x, y, false, setFlags)
}

// Adc computes x + y + C.
func (a *ALU) Adc(x, y uint32, setFlags bool) uint32 {
	return a.arith(x, y, a.regFile.C(), setFlags)
}

// Sub computes x - y.
func (a *ALU) Sub(x, y uint32, setFlags bool) uint32 {
	return a.arith(x, ^y, true, setFlags)
}

// Sbc computes x - y - !C.
func (a *ALU) Sbc(x, y uint32, setFlags bool) uint32 {
	return a.arith(x, ^y, a.regFile.C(), setFlags)
}

// And computes x & y. C comes from the shifter.
func (a *ALU) And(x, y uint32, shifterCarry, setFlags bool) uint32 {
	return a.logic(x&y, shifterCarry, setFlags)
}

// Orr computes x | y.
func (a *ALU) Orr(x, y uint32, shifterCarry, setFlags bool) uint32 {
	return a.logic(x|y, shifterCarry, setFlags)
}

// Eor computes x ^ y.
func (a *ALU) Eor(x, y uint32, shifterCarry, setFlags bool) uint32 {
	return a.logic(x^y, shifterCarry, setFlags)
}

// Bic computes x &^ y.
func (a *ALU) Bic(x, y uint32, shifterCarry, setFlags bool) uint32 {
	return a.logic(x&^y, shifterCarry, setFlags)
}

// Execute runs one of the sixteen data-processing operations. Compare
// operations return their result too; the caller decides whether to write it.
func (a *ALU) Execute(op insts.DataOp, x, y uint32, shifterCarry, setFlags bool) uint32 {
	switch op {
	case insts.OpAND, insts.OpTST:
		return a.And(x, y, shifterCarry, setFlags)
	case insts.OpEOR, insts.OpTEQ:
		return a.Eor(x, y, shifterCarry, setFlags)
	case insts.OpSUB, insts.OpCMP:
		return a.Sub(x, y, setFlags)
	case insts.OpRSB:
		return a.Sub(y, x, setFlags)
	case insts.OpADD, insts.OpCMN:
		return a.Add(x, y, setFlags)
	case insts.OpADC:
		return a.Adc(x, y, setFlags)
	case insts.OpSBC:
		return a.Sbc(x, y, setFlags)
	case insts.OpRSC:
		return a.Sbc(y, x, setFlags)
	case insts.OpORR:
		return a.Orr(x, y, shifterCarry, setFlags)
	case insts.OpMOV:
		return a.logic(y, shifterCarry, setFlags)
	case insts.OpBIC:
		return a.Bic(x, y, shifterCarry, setFlags)
	}
	return a.logic(^y, shifterCarry, setFlags)
}
