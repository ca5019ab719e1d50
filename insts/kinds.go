package insts

// ArmKind is the handler class of a 32-bit opcode.
type ArmKind uint8

// 32-bit instruction classes.
const (
	ArmUnknown ArmKind = iota
	ArmDataProcessing
	ArmPSRTransfer
	ArmMultiply
	ArmMultiplyLong
	ArmSwap
	ArmBranchExchange
	ArmHalfwordTransfer
	ArmSingleTransfer
	ArmBlockTransfer
	ArmBranch
	ArmSoftwareInterrupt

	numArmKinds
)

var armKindNames = [numArmKinds]string{
	"unknown",
	"data-processing",
	"psr-transfer",
	"multiply",
	"multiply-long",
	"swap",
	"branch-exchange",
	"halfword-transfer",
	"single-transfer",
	"block-transfer",
	"branch",
	"software-interrupt",
}

func (k ArmKind) String() string {
	if k < numArmKinds {
		return armKindNames[k]
	}
	return "invalid"
}

// ThumbKind is the handler class of a 16-bit opcode. The classes follow the
// nineteen ARMv4T Thumb formats.
type ThumbKind uint8

// 16-bit instruction classes.
const (
	ThumbUnknown ThumbKind = iota
	ThumbMoveShifted
	ThumbAddSub
	ThumbImmediate
	ThumbALU
	ThumbHiReg
	ThumbPCLoad
	ThumbLoadStoreReg
	ThumbLoadStoreSigned
	ThumbLoadStoreImm
	ThumbLoadStoreHalf
	ThumbSPLoadStore
	ThumbLoadAddress
	ThumbSPAdjust
	ThumbPushPop
	ThumbMultiple
	ThumbCondBranch
	ThumbSoftwareInterrupt
	ThumbBranch
	ThumbLongBranch

	numThumbKinds
)

var thumbKindNames = [numThumbKinds]string{
	"unknown",
	"move-shifted",
	"add-sub",
	"immediate",
	"alu",
	"hi-reg",
	"pc-load",
	"load-store-reg",
	"load-store-signed",
	"load-store-imm",
	"load-store-half",
	"sp-load-store",
	"load-address",
	"sp-adjust",
	"push-pop",
	"multiple",
	"cond-branch",
	"software-interrupt",
	"branch",
	"long-branch",
}

func (k ThumbKind) String() string {
	if k < numThumbKinds {
		return thumbKindNames[k]
	}
	return "invalid"
}

// Cond represents a condition code.
type Cond uint8

// Condition codes.
const (
	CondEQ Cond = 0b0000 // Equal (Z == 1)
	CondNE Cond = 0b0001 // Not Equal (Z == 0)
	CondCS Cond = 0b0010 // Carry Set / Unsigned higher or same (C == 1)
	CondCC Cond = 0b0011 // Carry Clear / Unsigned lower (C == 0)
	CondMI Cond = 0b0100 // Minus / Negative (N == 1)
	CondPL Cond = 0b0101 // Plus / Positive or zero (N == 0)
	CondVS Cond = 0b0110 // Overflow (V == 1)
	CondVC Cond = 0b0111 // No overflow (V == 0)
	CondHI Cond = 0b1000 // Unsigned higher (C == 1 && Z == 0)
	CondLS Cond = 0b1001 // Unsigned lower or same (C == 0 || Z == 1)
	CondGE Cond = 0b1010 // Signed greater than or equal (N == V)
	CondLT Cond = 0b1011 // Signed less than (N != V)
	CondGT Cond = 0b1100 // Signed greater than (Z == 0 && N == V)
	CondLE Cond = 0b1101 // Signed less than or equal (Z == 1 || N != V)
	CondAL Cond = 0b1110 // Always (unconditional)
	CondNV Cond = 0b1111 // Reserved on ARMv4T
)

var condNames = [16]string{
	"eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc",
	"hi", "ls", "ge", "lt", "gt", "le", "", "nv",
}

// String returns the assembler suffix of the condition. AL has no suffix.
func (c Cond) String() string {
	return condNames[c&0xF]
}

// ShiftType represents a barrel shifter operation.
type ShiftType uint8

// Shift types.
const (
	ShiftLSL ShiftType = 0b00 // Logical shift left
	ShiftLSR ShiftType = 0b01 // Logical shift right
	ShiftASR ShiftType = 0b10 // Arithmetic shift right
	ShiftROR ShiftType = 0b11 // Rotate right
)

var shiftNames = [4]string{"lsl", "lsr", "asr", "ror"}

func (s ShiftType) String() string {
	return shiftNames[s&3]
}

// DataOp is the 4-bit operation field of a data-processing opcode.
type DataOp uint8

// Data-processing operations.
const (
	OpAND DataOp = iota
	OpEOR
	OpSUB
	OpRSB
	OpADD
	OpADC
	OpSBC
	OpRSC
	OpTST
	OpTEQ
	OpCMP
	OpCMN
	OpORR
	OpMOV
	OpBIC
	OpMVN
)

var dataOpNames = [16]string{
	"and", "eor", "sub", "rsb", "add", "adc", "sbc", "rsc",
	"tst", "teq", "cmp", "cmn", "orr", "mov", "bic", "mvn",
}

func (o DataOp) String() string {
	return dataOpNames[o&0xF]
}

// IsCompare reports whether the operation only sets flags and never writes
// its destination register.
func (o DataOp) IsCompare() bool {
	return o >= OpTST && o <= OpCMN
}

// IsLogical reports whether the operation takes its carry from the shifter.
func (o DataOp) IsLogical() bool {
	switch o {
	case OpAND, OpEOR, OpTST, OpTEQ, OpORR, OpMOV, OpBIC, OpMVN:
		return true
	}
	return false
}
