package emu

import (
	"github.com/sarchlab/agbsim/insts"
)

// executeARM runs one 32-bit opcode and returns the cycles it spent beyond
// its fetch.
func (e *Emulator) executeARM(op uint32) (int, error) {
	pass, ok := e.regFile.CheckCondition(insts.Cond(op >> 28))
	if !ok {
		return 0, e.fatal(InternalError, "reserved condition code 0xf")
	}
	if !pass {
		return 0, nil
	}

	switch kind := e.decoder.ARM(op); kind {
	case insts.ArmDataProcessing:
		return e.armDataProcessing(op)
	case insts.ArmPSRTransfer:
		return e.armPSRTransfer(op)
	case insts.ArmMultiply:
		return e.armMultiply(op)
	case insts.ArmMultiplyLong:
		return e.armMultiplyLong(op)
	case insts.ArmSwap:
		return e.armSwap(op)
	case insts.ArmBranchExchange:
		return e.branchExchange(e.reg(op & 0xF))
	case insts.ArmHalfwordTransfer:
		return e.armHalfwordTransfer(op)
	case insts.ArmSingleTransfer:
		return e.armSingleTransfer(op)
	case insts.ArmBlockTransfer:
		return e.armBlockTransfer(op)
	case insts.ArmBranch:
		return e.armBranch(op)
	case insts.ArmSoftwareInterrupt:
		return e.softwareInterrupt((op >> 16) & 0xFF)
	}

	return 0, e.fatal(UnknownOpcode, "no handler for slice 0x%03x", insts.ARMSlice(op))
}

func (e *Emulator) armDataProcessing(op uint32) (int, error) {
	opcode := insts.DataOp(Bits(op, 24, 21))
	setFlags := Bit(op, 20)
	rn := Bits(op, 19, 16)
	rd := Bits(op, 15, 12)

	cycles := 0
	carry := e.regFile.C()
	operand1 := e.reg(rn)

	var operand2 uint32
	switch {
	case Bit(op, 25):
		operand2, carry = RotatedImmediate(op&0xFFF, carry)
	case Bit(op, 4):
		// The shift amount register is read in an extra cycle, so R15 is
		// one more word ahead.
		rm := op & 0xF
		value := e.reg(rm)
		if rm == RegPC {
			value += 4
		}
		if rn == RegPC {
			operand1 += 4
		}
		amount := e.reg(Bits(op, 11, 8)) & 0xFF
		operand2, carry = Shift(insts.ShiftType(Bits(op, 6, 5)), value, amount, carry, false)
		cycles++
	default:
		operand2, carry = Shift(insts.ShiftType(Bits(op, 6, 5)), e.reg(op&0xF), Bits(op, 11, 7), carry, true)
	}

	if opcode.IsCompare() {
		e.alu.Execute(opcode, operand1, operand2, carry, true)
		return cycles, nil
	}

	if rd != RegPC {
		e.regFile.R[rd] = e.alu.Execute(opcode, operand1, operand2, carry, setFlags)
		return cycles, nil
	}

	result := e.alu.Execute(opcode, operand1, operand2, carry, false)
	if setFlags {
		if err := e.restoreSPSR(); err != nil {
			return cycles, err
		}
	}
	e.branchTo(result)
	return cycles, nil
}

// psrFieldMask expands the four field bits of an MSR opcode to a byte mask.
func psrFieldMask(op uint32) uint32 {
	var mask uint32
	for i := uint(0); i < 4; i++ {
		if Bit(op, 16+i) {
			mask |= 0xFF << (8 * i)
		}
	}
	return mask
}

func (e *Emulator) armPSRTransfer(op uint32) (int, error) {
	useSPSR := Bit(op, 22)

	if !Bit(op, 21) {
		value := e.regFile.CPSR
		if useSPSR {
			spsr, ok := e.regFile.SPSR()
			if !ok {
				return 0, e.fatal(IllegalPrivilege, "mrs spsr in %s mode", e.regFile.Mode())
			}
			value = spsr
		}
		e.setReg(Bits(op, 15, 12), value)
		return 0, nil
	}

	var value uint32
	if Bit(op, 25) {
		value, _ = RotatedImmediate(op&0xFFF, false)
	} else {
		value = e.reg(op & 0xF)
	}
	mask := psrFieldMask(op)

	if useSPSR {
		spsr, ok := e.regFile.SPSR()
		if !ok {
			return 0, e.fatal(IllegalPrivilege, "msr spsr in %s mode", e.regFile.Mode())
		}
		e.regFile.SetSPSR(spsr&^mask | value&mask)
		return 0, nil
	}

	if e.regFile.Mode() == ModeUser {
		mask &= 0xFF000000
	}
	mask &^= StatusThumb

	cpsr := e.regFile.CPSR&^mask | value&mask
	if err := e.regFile.SetCPSR(cpsr); err != nil {
		return 0, e.fatal(InternalError, "msr: %v", err)
	}
	return 0, nil
}

func (e *Emulator) armBranch(op uint32) (int, error) {
	offset := SignExtend(op&0xFFFFFF, 24) << 2
	if Bit(op, 24) {
		e.regFile.R[RegLR] = e.curPC + 4
	}
	e.branchTo(e.pipePC + offset)
	return 0, nil
}

// branchExchange jumps to target and selects the instruction set from bit 0.
func (e *Emulator) branchExchange(target uint32) (int, error) {
	e.regFile.SetThumb(target&1 != 0)
	e.branchTo(target)
	return 0, nil
}

// multiplierCycles returns the early-termination cycle count of a multiply
// by rs.
func multiplierCycles(rs uint32, signed bool) int {
	for i, mask := range [3]uint32{0xFFFFFF00, 0xFFFF0000, 0xFF000000} {
		if rs&mask == 0 || (signed && rs&mask == mask) {
			return i + 1
		}
	}
	return 4
}

func (e *Emulator) armMultiply(op uint32) (int, error) {
	rd := Bits(op, 19, 16)
	rn := Bits(op, 15, 12)
	rs := e.regFile.R[Bits(op, 11, 8)]
	rm := e.regFile.R[op&0xF]

	result := rm * rs
	cycles := multiplierCycles(rs, true)
	if Bit(op, 21) {
		result += e.regFile.R[rn]
		cycles++
	}
	e.setReg(rd, result)

	if Bit(op, 20) {
		e.regFile.SetNZ(result)
		e.regFile.SetC(false)
	}
	return cycles, nil
}

func (e *Emulator) armMultiplyLong(op uint32) (int, error) {
	hi := Bits(op, 19, 16)
	lo := Bits(op, 15, 12)
	rs := e.regFile.R[Bits(op, 11, 8)]
	rm := e.regFile.R[op&0xF]
	signed := Bit(op, 22)

	var result uint64
	if signed {
		result = uint64(int64(int32(rm)) * int64(int32(rs)))
	} else {
		result = uint64(rm) * uint64(rs)
	}

	cycles := multiplierCycles(rs, signed) + 1
	if Bit(op, 21) {
		result += uint64(e.regFile.R[hi])<<32 | uint64(e.regFile.R[lo])
		cycles++
	}

	e.regFile.R[lo] = uint32(result)
	e.regFile.R[hi] = uint32(result >> 32)

	if Bit(op, 20) {
		e.regFile.CPSR = setMask(e.regFile.CPSR, FlagN, result>>63 != 0)
		e.regFile.CPSR = setMask(e.regFile.CPSR, FlagZ, result == 0)
		e.regFile.SetC(false)
		e.regFile.SetV(false)
	}
	return cycles, nil
}

func (e *Emulator) softwareInterrupt(comment uint32) (int, error) {
	if e.syscallHandler == nil {
		if err := e.enterException(ModeSupervisor, VectorSWI, e.regFile.R[RegPC]); err != nil {
			return 0, e.fatal(InternalError, "%v", err)
		}
		return 0, nil
	}

	result, err := e.syscallHandler.Handle(comment)
	if err != nil {
		if _, ok := AsFatal(err); !ok {
			err = e.fatal(UnsupportedHardware, "bios call 0x%02x: %v", comment, err)
		}
		return result.Cycles, err
	}
	return result.Cycles, nil
}
