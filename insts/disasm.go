package insts

import (
	"fmt"
	"math/bits"
	"strings"
)

var regNames = [16]string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
}

// RegName returns the assembler name of register r.
func RegName(r uint32) string {
	return regNames[r&0xF]
}

func regList(list uint32) string {
	var names []string
	for r := uint32(0); r < 16; r++ {
		if list&(1<<r) != 0 {
			names = append(names, regNames[r])
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}

func signExtend(v uint32, width uint) int32 {
	shift := 32 - width
	return int32(v<<shift) >> shift
}

// DisassembleARM renders a 32-bit opcode located at addr.
func (d *Decoder) DisassembleARM(opcode, addr uint32) string {
	cond := Cond(opcode >> 28).String()

	switch d.ARM(opcode) {
	case ArmDataProcessing:
		return disasmDataProcessing(opcode, cond)
	case ArmPSRTransfer:
		return disasmPSR(opcode, cond)
	case ArmMultiply:
		rd, rn, rs, rm := (opcode>>16)&0xF, (opcode>>12)&0xF, (opcode>>8)&0xF, opcode&0xF
		s := sFlag(opcode)
		if opcode&(1<<21) != 0 {
			return fmt.Sprintf("mla%s%s %s,%s,%s,%s", cond, s, RegName(rd), RegName(rm), RegName(rs), RegName(rn))
		}
		return fmt.Sprintf("mul%s%s %s,%s,%s", cond, s, RegName(rd), RegName(rm), RegName(rs))
	case ArmMultiplyLong:
		hi, lo, rs, rm := (opcode>>16)&0xF, (opcode>>12)&0xF, (opcode>>8)&0xF, opcode&0xF
		sign := "u"
		if opcode&(1<<22) != 0 {
			sign = "s"
		}
		op := "mull"
		if opcode&(1<<21) != 0 {
			op = "mlal"
		}
		return fmt.Sprintf("%s%s%s%s %s,%s,%s,%s", sign, op, cond, sFlag(opcode),
			RegName(lo), RegName(hi), RegName(rm), RegName(rs))
	case ArmSwap:
		b := ""
		if opcode&(1<<22) != 0 {
			b = "b"
		}
		return fmt.Sprintf("swp%s%s %s,%s,[%s]", cond, b,
			RegName((opcode>>12)&0xF), RegName(opcode&0xF), RegName((opcode>>16)&0xF))
	case ArmBranchExchange:
		return fmt.Sprintf("bx%s %s", cond, RegName(opcode&0xF))
	case ArmHalfwordTransfer:
		return disasmHalfword(opcode, cond)
	case ArmSingleTransfer:
		return disasmSingle(opcode, cond)
	case ArmBlockTransfer:
		return disasmBlock(opcode, cond)
	case ArmBranch:
		op := "b"
		if opcode&(1<<24) != 0 {
			op = "bl"
		}
		target := addr + 8 + uint32(signExtend(opcode&0xFFFFFF, 24)<<2)
		return fmt.Sprintf("%s%s #0x%08x", op, cond, target)
	case ArmSoftwareInterrupt:
		return fmt.Sprintf("swi%s #0x%06x", cond, opcode&0xFFFFFF)
	}
	return fmt.Sprintf("undefined 0x%08x", opcode)
}

func sFlag(opcode uint32) string {
	if opcode&(1<<20) != 0 {
		return "s"
	}
	return ""
}

func shifterOperand(opcode uint32) string {
	if opcode&(1<<25) != 0 {
		imm := bits.RotateLeft32(opcode&0xFF, -int((opcode>>8)&0xF)*2)
		return fmt.Sprintf("#0x%x", imm)
	}

	rm := RegName(opcode & 0xF)
	kind := ShiftType((opcode >> 5) & 3)
	if opcode&(1<<4) != 0 {
		return fmt.Sprintf("%s,%s %s", rm, kind, RegName((opcode>>8)&0xF))
	}

	amount := (opcode >> 7) & 0x1F
	switch {
	case amount == 0 && kind == ShiftLSL:
		return rm
	case amount == 0 && kind == ShiftROR:
		return rm + ",rrx"
	case amount == 0:
		amount = 32
	}
	return fmt.Sprintf("%s,%s #%d", rm, kind, amount)
}

func disasmDataProcessing(opcode uint32, cond string) string {
	op := DataOp((opcode >> 21) & 0xF)
	rd := RegName((opcode >> 12) & 0xF)
	rn := RegName((opcode >> 16) & 0xF)
	operand := shifterOperand(opcode)

	switch {
	case op.IsCompare():
		return fmt.Sprintf("%s%s %s,%s", op, cond, rn, operand)
	case op == OpMOV || op == OpMVN:
		return fmt.Sprintf("%s%s%s %s,%s", op, cond, sFlag(opcode), rd, operand)
	}
	return fmt.Sprintf("%s%s%s %s,%s,%s", op, cond, sFlag(opcode), rd, rn, operand)
}

func disasmPSR(opcode uint32, cond string) string {
	psr := "cpsr"
	if opcode&(1<<22) != 0 {
		psr = "spsr"
	}

	if opcode&(1<<21) == 0 {
		return fmt.Sprintf("mrs%s %s,%s", cond, RegName((opcode>>12)&0xF), psr)
	}

	fields := ""
	for i, f := range "cxsf" {
		if opcode&(1<<(16+uint(i))) != 0 {
			fields += string(f)
		}
	}

	var src string
	if opcode&(1<<25) != 0 {
		src = fmt.Sprintf("#0x%x", bits.RotateLeft32(opcode&0xFF, -int((opcode>>8)&0xF)*2))
	} else {
		src = RegName(opcode & 0xF)
	}
	return fmt.Sprintf("msr%s %s_%s,%s", cond, psr, fields, src)
}

func addressing(opcode uint32, rn, offset string) string {
	pre := opcode&(1<<24) != 0
	wb := opcode&(1<<21) != 0

	if offset == "" {
		return fmt.Sprintf("[%s]", rn)
	}
	if !pre {
		return fmt.Sprintf("[%s],%s", rn, offset)
	}
	s := fmt.Sprintf("[%s,%s]", rn, offset)
	if wb {
		s += "!"
	}
	return s
}

func sign(opcode uint32) string {
	if opcode&(1<<23) == 0 {
		return "-"
	}
	return ""
}

func disasmSingle(opcode uint32, cond string) string {
	op := "str"
	if opcode&(1<<20) != 0 {
		op = "ldr"
	}
	if opcode&(1<<22) != 0 {
		op += "b"
	}

	var offset string
	if opcode&(1<<25) == 0 {
		if imm := opcode & 0xFFF; imm != 0 {
			offset = fmt.Sprintf("#%s0x%x", sign(opcode), imm)
		}
	} else {
		offset = sign(opcode) + shifterOperand(opcode&^(1<<25))
	}

	rn := RegName((opcode >> 16) & 0xF)
	return fmt.Sprintf("%s%s %s,%s", op, cond, RegName((opcode>>12)&0xF), addressing(opcode, rn, offset))
}

func disasmHalfword(opcode uint32, cond string) string {
	var op string
	load := opcode&(1<<20) != 0
	switch (opcode >> 5) & 3 {
	case 1:
		op = "strh"
		if load {
			op = "ldrh"
		}
	case 2:
		op = "ldrsb"
	case 3:
		op = "ldrsh"
	}

	var offset string
	if opcode&(1<<22) != 0 {
		if imm := (opcode>>4)&0xF0 | opcode&0xF; imm != 0 {
			offset = fmt.Sprintf("#%s0x%x", sign(opcode), imm)
		}
	} else {
		offset = sign(opcode) + RegName(opcode&0xF)
	}

	rn := RegName((opcode >> 16) & 0xF)
	return fmt.Sprintf("%s%s %s,%s", op, cond, RegName((opcode>>12)&0xF), addressing(opcode, rn, offset))
}

func disasmBlock(opcode uint32, cond string) string {
	op := "stm"
	if opcode&(1<<20) != 0 {
		op = "ldm"
	}
	mode := [4]string{"da", "ia", "db", "ib"}[(opcode>>23)&3]

	wb := ""
	if opcode&(1<<21) != 0 {
		wb = "!"
	}
	user := ""
	if opcode&(1<<22) != 0 {
		user = "^"
	}
	return fmt.Sprintf("%s%s%s %s%s,%s%s", op, cond, mode, RegName((opcode>>16)&0xF), wb,
		regList(opcode&0xFFFF), user)
}

var thumbALUNames = [16]string{
	"and", "eor", "lsl", "lsr", "asr", "adc", "sbc", "ror",
	"tst", "neg", "cmp", "cmn", "orr", "mul", "bic", "mvn",
}

// DisassembleThumb renders a 16-bit opcode located at addr.
func (d *Decoder) DisassembleThumb(opcode uint16, addr uint32) string {
	op := uint32(opcode)
	lo3 := func(shift uint) string { return RegName((op >> shift) & 7) }

	switch d.Thumb(opcode) {
	case ThumbMoveShifted:
		return fmt.Sprintf("%s %s,%s,#%d", ShiftType((op>>11)&3), lo3(0), lo3(3), (op>>6)&0x1F)
	case ThumbAddSub:
		name := "add"
		if op&(1<<9) != 0 {
			name = "sub"
		}
		if op&(1<<10) != 0 {
			return fmt.Sprintf("%s %s,%s,#%d", name, lo3(0), lo3(3), (op>>6)&7)
		}
		return fmt.Sprintf("%s %s,%s,%s", name, lo3(0), lo3(3), lo3(6))
	case ThumbImmediate:
		name := [4]string{"mov", "cmp", "add", "sub"}[(op>>11)&3]
		return fmt.Sprintf("%s %s,#0x%x", name, lo3(8), op&0xFF)
	case ThumbALU:
		return fmt.Sprintf("%s %s,%s", thumbALUNames[(op>>6)&0xF], lo3(0), lo3(3))
	case ThumbHiReg:
		rd := (op & 7) | (op>>4)&8
		rs := (op >> 3) & 0xF
		switch (op >> 8) & 3 {
		case 0:
			return fmt.Sprintf("add %s,%s", RegName(rd), RegName(rs))
		case 1:
			return fmt.Sprintf("cmp %s,%s", RegName(rd), RegName(rs))
		case 2:
			return fmt.Sprintf("mov %s,%s", RegName(rd), RegName(rs))
		}
		return fmt.Sprintf("bx %s", RegName(rs))
	case ThumbPCLoad:
		target := (addr+4)&^2 + (op&0xFF)*4
		return fmt.Sprintf("ldr %s,[pc,#0x%x] ; 0x%08x", lo3(8), (op&0xFF)*4, target)
	case ThumbLoadStoreReg:
		name := [4]string{"str", "strb", "ldr", "ldrb"}[(op>>10)&3]
		return fmt.Sprintf("%s %s,[%s,%s]", name, lo3(0), lo3(3), lo3(6))
	case ThumbLoadStoreSigned:
		name := [4]string{"strh", "ldrsb", "ldrh", "ldrsh"}[(op>>10)&3]
		return fmt.Sprintf("%s %s,[%s,%s]", name, lo3(0), lo3(3), lo3(6))
	case ThumbLoadStoreImm:
		byteOp := op&(1<<12) != 0
		offset := (op >> 6) & 0x1F
		name := "str"
		if op&(1<<11) != 0 {
			name = "ldr"
		}
		if byteOp {
			name += "b"
		} else {
			offset <<= 2
		}
		return fmt.Sprintf("%s %s,[%s,#0x%x]", name, lo3(0), lo3(3), offset)
	case ThumbLoadStoreHalf:
		name := "strh"
		if op&(1<<11) != 0 {
			name = "ldrh"
		}
		return fmt.Sprintf("%s %s,[%s,#0x%x]", name, lo3(0), lo3(3), ((op>>6)&0x1F)<<1)
	case ThumbSPLoadStore:
		name := "str"
		if op&(1<<11) != 0 {
			name = "ldr"
		}
		return fmt.Sprintf("%s %s,[sp,#0x%x]", name, lo3(8), (op&0xFF)*4)
	case ThumbLoadAddress:
		base := "pc"
		if op&(1<<11) != 0 {
			base = "sp"
		}
		return fmt.Sprintf("add %s,%s,#0x%x", lo3(8), base, (op&0xFF)*4)
	case ThumbSPAdjust:
		if op&0x80 != 0 {
			return fmt.Sprintf("sub sp,#0x%x", (op&0x7F)*4)
		}
		return fmt.Sprintf("add sp,#0x%x", (op&0x7F)*4)
	case ThumbPushPop:
		list := op & 0xFF
		if op&(1<<11) != 0 {
			if op&(1<<8) != 0 {
				list |= 1 << 15
			}
			return "pop " + regList(list)
		}
		if op&(1<<8) != 0 {
			list |= 1 << 14
		}
		return "push " + regList(list)
	case ThumbMultiple:
		name := "stmia"
		if op&(1<<11) != 0 {
			name = "ldmia"
		}
		return fmt.Sprintf("%s %s!,%s", name, lo3(8), regList(op&0xFF))
	case ThumbCondBranch:
		target := addr + 4 + uint32(signExtend(op&0xFF, 8)<<1)
		return fmt.Sprintf("b%s #0x%08x", Cond((op>>8)&0xF), target)
	case ThumbSoftwareInterrupt:
		return fmt.Sprintf("swi #0x%02x", op&0xFF)
	case ThumbBranch:
		target := addr + 4 + uint32(signExtend(op&0x7FF, 11)<<1)
		return fmt.Sprintf("b #0x%08x", target)
	case ThumbLongBranch:
		if op&(1<<11) == 0 {
			return fmt.Sprintf("bl.hi #0x%x", op&0x7FF)
		}
		return fmt.Sprintf("bl.lo #0x%x", op&0x7FF)
	}
	return fmt.Sprintf("undefined 0x%04x", opcode)
}
