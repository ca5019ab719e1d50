package emu

import (
	"github.com/sarchlab/agbsim/insts"
)

// executeThumb runs one 16-bit opcode and returns the cycles it spent beyond
// its fetch.
func (e *Emulator) executeThumb(opcode uint16) (int, error) {
	op := uint32(opcode)

	switch kind := e.decoder.Thumb(opcode); kind {
	case insts.ThumbMoveShifted:
		return e.thumbMoveShifted(op)
	case insts.ThumbAddSub:
		return e.thumbAddSub(op)
	case insts.ThumbImmediate:
		return e.thumbImmediate(op)
	case insts.ThumbALU:
		return e.thumbALU(op)
	case insts.ThumbHiReg:
		return e.thumbHiReg(op)
	case insts.ThumbPCLoad:
		v, cycles := e.loadWord((e.pipePC &^ 2) + (op&0xFF)*4)
		e.regFile.R[Bits(op, 10, 8)] = v
		return cycles + 1, nil
	case insts.ThumbLoadStoreReg:
		return e.thumbLoadStoreReg(op)
	case insts.ThumbLoadStoreSigned:
		return e.thumbLoadStoreSigned(op)
	case insts.ThumbLoadStoreImm:
		return e.thumbLoadStoreImm(op)
	case insts.ThumbLoadStoreHalf:
		return e.thumbLoadStoreHalf(op)
	case insts.ThumbSPLoadStore:
		return e.thumbSPLoadStore(op)
	case insts.ThumbLoadAddress:
		base := e.regFile.R[RegSP]
		if !Bit(op, 11) {
			base = e.pipePC &^ 2
		}
		e.regFile.R[Bits(op, 10, 8)] = base + (op&0xFF)*4
		return 0, nil
	case insts.ThumbSPAdjust:
		offset := (op & 0x7F) * 4
		if Bit(op, 7) {
			e.regFile.R[RegSP] -= offset
		} else {
			e.regFile.R[RegSP] += offset
		}
		return 0, nil
	case insts.ThumbPushPop:
		return e.thumbPushPop(op)
	case insts.ThumbMultiple:
		return e.transferBlock(blockTransfer{
			rn:        Bits(op, 10, 8),
			list:      op & 0xFF,
			up:        true,
			writeBack: true,
			load:      Bit(op, 11),
		})
	case insts.ThumbCondBranch:
		pass, ok := e.regFile.CheckCondition(insts.Cond(Bits(op, 11, 8)))
		if !ok {
			return 0, e.fatal(InternalError, "reserved condition code 0xf")
		}
		if pass {
			e.branchTo(e.pipePC + SignExtend(op&0xFF, 8)<<1)
		}
		return 0, nil
	case insts.ThumbSoftwareInterrupt:
		return e.softwareInterrupt(op & 0xFF)
	case insts.ThumbBranch:
		e.branchTo(e.pipePC + SignExtend(op&0x7FF, 11)<<1)
		return 0, nil
	case insts.ThumbLongBranch:
		return e.thumbLongBranch(op)
	}

	return 0, e.fatal(UnknownOpcode, "no handler for slice 0x%02x", insts.ThumbSlice(opcode))
}

func (e *Emulator) thumbMoveShifted(op uint32) (int, error) {
	kind := insts.ShiftType(Bits(op, 12, 11))
	result, carry := Shift(kind, e.regFile.R[Bits(op, 5, 3)], Bits(op, 10, 6), e.regFile.C(), true)
	e.regFile.R[op&7] = result
	e.regFile.SetNZ(result)
	e.regFile.SetC(carry)
	return 0, nil
}

func (e *Emulator) thumbAddSub(op uint32) (int, error) {
	operand := Bits(op, 8, 6)
	if !Bit(op, 10) {
		operand = e.regFile.R[operand]
	}
	rs := e.regFile.R[Bits(op, 5, 3)]

	if Bit(op, 9) {
		e.regFile.R[op&7] = e.alu.Sub(rs, operand, true)
	} else {
		e.regFile.R[op&7] = e.alu.Add(rs, operand, true)
	}
	return 0, nil
}

func (e *Emulator) thumbImmediate(op uint32) (int, error) {
	rd := Bits(op, 10, 8)
	imm := op & 0xFF

	switch Bits(op, 12, 11) {
	case 0:
		e.regFile.R[rd] = imm
		e.regFile.SetNZ(imm)
	case 1:
		e.alu.Sub(e.regFile.R[rd], imm, true)
	case 2:
		e.regFile.R[rd] = e.alu.Add(e.regFile.R[rd], imm, true)
	default:
		e.regFile.R[rd] = e.alu.Sub(e.regFile.R[rd], imm, true)
	}
	return 0, nil
}

// Thumb ALU operations.
const (
	thumbAND = iota
	thumbEOR
	thumbLSL
	thumbLSR
	thumbASR
	thumbADC
	thumbSBC
	thumbROR
	thumbTST
	thumbNEG
	thumbCMP
	thumbCMN
	thumbORR
	thumbMUL
	thumbBIC
	thumbMVN
)

func thumbShiftKind(aluOp uint32) insts.ShiftType {
	switch aluOp {
	case thumbLSR:
		return insts.ShiftLSR
	case thumbASR:
		return insts.ShiftASR
	case thumbROR:
		return insts.ShiftROR
	}
	return insts.ShiftLSL
}

func (e *Emulator) thumbALU(op uint32) (int, error) {
	rd := op & 7
	dst := e.regFile.R[rd]
	src := e.regFile.R[Bits(op, 5, 3)]
	carry := e.regFile.C()

	var result uint32
	write := true
	cycles := 0

	switch Bits(op, 9, 6) {
	case thumbAND:
		result = e.alu.And(dst, src, carry, true)
	case thumbEOR:
		result = e.alu.Eor(dst, src, carry, true)
	case thumbLSL, thumbLSR, thumbASR, thumbROR:
		result, carry = Shift(thumbShiftKind(Bits(op, 9, 6)), dst, src&0xFF, carry, false)
		e.regFile.SetNZ(result)
		e.regFile.SetC(carry)
		cycles++
	case thumbADC:
		result = e.alu.Adc(dst, src, true)
	case thumbSBC:
		result = e.alu.Sbc(dst, src, true)
	case thumbTST:
		e.alu.And(dst, src, carry, true)
		write = false
	case thumbNEG:
		result = e.alu.Sub(0, src, true)
	case thumbCMP:
		e.alu.Sub(dst, src, true)
		write = false
	case thumbCMN:
		e.alu.Add(dst, src, true)
		write = false
	case thumbORR:
		result = e.alu.Orr(dst, src, carry, true)
	case thumbMUL:
		result = dst * src
		e.regFile.SetNZ(result)
		e.regFile.SetC(false)
		cycles += multiplierCycles(dst, true)
	case thumbBIC:
		result = e.alu.Bic(dst, src, carry, true)
	case thumbMVN:
		result = ^src
		e.regFile.SetNZ(result)
	}

	if write {
		e.regFile.R[rd] = result
	}
	return cycles, nil
}

func (e *Emulator) thumbHiReg(op uint32) (int, error) {
	rd := op&7 | Bits(op, 7, 7)<<3
	rs := Bits(op, 6, 3)

	switch Bits(op, 9, 8) {
	case 0:
		e.setReg(rd, e.reg(rd)+e.reg(rs))
	case 1:
		e.alu.Sub(e.reg(rd), e.reg(rs), true)
	case 2:
		e.setReg(rd, e.reg(rs))
	default:
		return e.branchExchange(e.reg(rs))
	}
	return 0, nil
}

func (e *Emulator) thumbLoadStoreReg(op uint32) (int, error) {
	addr := e.regFile.R[Bits(op, 5, 3)] + e.regFile.R[Bits(op, 8, 6)]
	rd := op & 7

	switch Bits(op, 11, 10) {
	case 0:
		return e.bus.WriteTimed(addr&^3, Word, e.regFile.R[rd]), nil
	case 1:
		return e.bus.WriteTimed(addr, Byte, e.regFile.R[rd]&0xFF), nil
	case 2:
		v, cycles := e.loadWord(addr)
		e.regFile.R[rd] = v
		return cycles + 1, nil
	}
	v, cycles := e.bus.ReadTimed(addr, Byte)
	e.regFile.R[rd] = v
	return cycles + 1, nil
}

func (e *Emulator) thumbLoadStoreSigned(op uint32) (int, error) {
	addr := e.regFile.R[Bits(op, 5, 3)] + e.regFile.R[Bits(op, 8, 6)]
	rd := op & 7

	var kind uint32
	switch Bits(op, 11, 10) {
	case 0:
		return e.bus.WriteTimed(addr&^1, Half, e.regFile.R[rd]&0xFFFF), nil
	case 1:
		kind = halfSignedByte
	case 2:
		kind = halfUnsigned
	default:
		kind = halfSigned
	}

	v, cycles := e.loadHalf(addr, kind)
	e.regFile.R[rd] = v
	return cycles + 1, nil
}

func (e *Emulator) thumbLoadStoreImm(op uint32) (int, error) {
	rd := op & 7
	base := e.regFile.R[Bits(op, 5, 3)]
	offset := Bits(op, 10, 6)
	load := Bit(op, 11)

	if Bit(op, 12) {
		addr := base + offset
		if load {
			v, cycles := e.bus.ReadTimed(addr, Byte)
			e.regFile.R[rd] = v
			return cycles + 1, nil
		}
		return e.bus.WriteTimed(addr, Byte, e.regFile.R[rd]&0xFF), nil
	}

	addr := base + offset*4
	if load {
		v, cycles := e.loadWord(addr)
		e.regFile.R[rd] = v
		return cycles + 1, nil
	}
	return e.bus.WriteTimed(addr&^3, Word, e.regFile.R[rd]), nil
}

func (e *Emulator) thumbLoadStoreHalf(op uint32) (int, error) {
	rd := op & 7
	addr := e.regFile.R[Bits(op, 5, 3)] + Bits(op, 10, 6)*2

	if Bit(op, 11) {
		v, cycles := e.loadHalf(addr, halfUnsigned)
		e.regFile.R[rd] = v
		return cycles + 1, nil
	}
	return e.bus.WriteTimed(addr&^1, Half, e.regFile.R[rd]&0xFFFF), nil
}

func (e *Emulator) thumbSPLoadStore(op uint32) (int, error) {
	rd := Bits(op, 10, 8)
	addr := e.regFile.R[RegSP] + (op&0xFF)*4

	if Bit(op, 11) {
		v, cycles := e.loadWord(addr)
		e.regFile.R[rd] = v
		return cycles + 1, nil
	}
	return e.bus.WriteTimed(addr&^3, Word, e.regFile.R[rd]), nil
}

func (e *Emulator) thumbPushPop(op uint32) (int, error) {
	list := op & 0xFF
	if Bit(op, 11) {
		if Bit(op, 8) {
			list |= 1 << RegPC
		}
		return e.transferBlock(blockTransfer{
			rn: RegSP, list: list, up: true, writeBack: true, load: true,
		})
	}

	if Bit(op, 8) {
		list |= 1 << RegLR
	}
	return e.transferBlock(blockTransfer{
		rn: RegSP, list: list, pre: true, writeBack: true,
	})
}

// thumbLongBranch executes one half of BL. The first half leaves the upper
// part of the offset in LR, the second half branches and links.
func (e *Emulator) thumbLongBranch(op uint32) (int, error) {
	offset := op & 0x7FF

	if !Bit(op, 11) {
		e.regFile.R[RegLR] = e.pipePC + SignExtend(offset, 11)<<12
		return 0, nil
	}

	next := e.regFile.R[RegPC]
	e.branchTo(e.regFile.R[RegLR] + offset<<1)
	e.regFile.R[RegLR] = next | 1
	return 0, nil
}
