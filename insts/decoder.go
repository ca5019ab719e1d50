package insts

// Table sizes.
const (
	ARMTableSize   = 4096
	ThumbTableSize = 256
)

// Decoder classifies opcodes through two dispatch tables. The tables are
// filled by NewDecoder and never modified afterwards.
type Decoder struct {
	arm   [ARMTableSize]ArmKind
	thumb [ThumbTableSize]ThumbKind
}

// NewDecoder creates a decoder with fully populated dispatch tables.
func NewDecoder() *Decoder {
	d := &Decoder{}
	for slice := uint32(0); slice < ARMTableSize; slice++ {
		d.arm[slice] = classifyARM(slice)
	}
	for slice := 0; slice < ThumbTableSize; slice++ {
		d.thumb[slice] = classifyThumb(uint8(slice))
	}
	return d
}

// ARMSlice extracts the dispatch index of a 32-bit opcode: bits 27-20
// followed by bits 7-4.
func ARMSlice(opcode uint32) uint32 {
	return ((opcode >> 16) & 0xFF0) | ((opcode >> 4) & 0xF)
}

// ThumbSlice extracts the dispatch index of a 16-bit opcode: bits 15-8.
func ThumbSlice(opcode uint16) uint8 {
	return uint8(opcode >> 8)
}

// ARM returns the handler class of a 32-bit opcode.
func (d *Decoder) ARM(opcode uint32) ArmKind {
	return d.arm[ARMSlice(opcode)]
}

// Thumb returns the handler class of a 16-bit opcode.
func (d *Decoder) Thumb(opcode uint16) ThumbKind {
	return d.thumb[ThumbSlice(opcode)]
}

// ARMEntry returns the table entry for a slice value.
func (d *Decoder) ARMEntry(slice uint32) ArmKind {
	return d.arm[slice%ARMTableSize]
}

// ThumbEntry returns the table entry for a slice value.
func (d *Decoder) ThumbEntry(slice uint8) ThumbKind {
	return d.thumb[slice]
}

// classifyARM maps a 12-bit slice to a handler class. The multiply, swap,
// halfword and branch-exchange patterns are subsets of the data-processing
// space so they are tested first.
func classifyARM(slice uint32) ArmKind {
	hi := slice >> 4  // opcode bits 27-20
	lo := slice & 0xF // opcode bits 7-4

	immediate := hi&0x20 != 0

	switch {
	case hi == 0x12 && lo == 0x1:
		return ArmBranchExchange
	case hi&0xFC == 0x00 && lo == 0x9:
		return ArmMultiply
	case hi&0xF8 == 0x08 && lo == 0x9:
		return ArmMultiplyLong
	case hi&0xFB == 0x10 && lo == 0x9:
		return ArmSwap
	case hi&0xE0 == 0x00 && lo == 0x9:
		return ArmUnknown
	case hi&0xE0 == 0x00 && lo&0x9 == 0x9:
		return ArmHalfwordTransfer
	case hi&0xD9 == 0x10:
		// opcode 8-11 without S: PSR transfers live here
		if immediate {
			if hi&0x02 != 0 {
				return ArmPSRTransfer
			}
			return ArmUnknown
		}
		if lo&0x9 == 0 {
			return ArmPSRTransfer
		}
		return ArmUnknown
	case hi&0xC0 == 0x00:
		return ArmDataProcessing
	case hi&0xC0 == 0x40:
		if immediate && lo&0x1 != 0 {
			// undefined instruction space
			return ArmUnknown
		}
		return ArmSingleTransfer
	case hi&0xE0 == 0x80:
		return ArmBlockTransfer
	case hi&0xE0 == 0xA0:
		return ArmBranch
	case hi&0xF0 == 0xF0:
		return ArmSoftwareInterrupt
	}

	// coprocessor space, no coprocessors are attached
	return ArmUnknown
}

func classifyThumb(slice uint8) ThumbKind {
	switch {
	case slice < 0x18:
		return ThumbMoveShifted
	case slice < 0x20:
		return ThumbAddSub
	case slice < 0x40:
		return ThumbImmediate
	case slice < 0x44:
		return ThumbALU
	case slice < 0x48:
		return ThumbHiReg
	case slice < 0x50:
		return ThumbPCLoad
	case slice < 0x60:
		if slice&0x02 == 0 {
			return ThumbLoadStoreReg
		}
		return ThumbLoadStoreSigned
	case slice < 0x80:
		return ThumbLoadStoreImm
	case slice < 0x90:
		return ThumbLoadStoreHalf
	case slice < 0xA0:
		return ThumbSPLoadStore
	case slice < 0xB0:
		return ThumbLoadAddress
	case slice == 0xB0:
		return ThumbSPAdjust
	case slice == 0xB4, slice == 0xB5, slice == 0xBC, slice == 0xBD:
		return ThumbPushPop
	case slice < 0xC0:
		return ThumbUnknown
	case slice < 0xD0:
		return ThumbMultiple
	case slice < 0xDE:
		return ThumbCondBranch
	case slice == 0xDE:
		return ThumbUnknown
	case slice == 0xDF:
		return ThumbSoftwareInterrupt
	case slice < 0xE8:
		return ThumbBranch
	case slice < 0xF0:
		return ThumbUnknown
	}
	return ThumbLongBranch
}
