package emu

import "github.com/sarchlab/agbsim/insts"

// Shift runs the barrel shifter. The immediate flag selects the encoding of
// the amount: an immediate amount of 0 means 32 for LSR and ASR and RRX for
// ROR, a register amount of 0 leaves the value and carry alone. Register
// amounts use the low byte of the source register only.
func Shift(kind insts.ShiftType, value, amount uint32, carryIn, immediate bool) (uint32, bool) {
	if immediate {
		return shiftImmediate(kind, value, amount&0x1F, carryIn)
	}

	amount &= 0xFF
	if amount == 0 {
		return value, carryIn
	}

	switch kind {
	case insts.ShiftLSL:
		switch {
		case amount < 32:
			return value << amount, Bit(value, uint(32-amount))
		case amount == 32:
			return 0, Bit(value, 0)
		}
		return 0, false
	case insts.ShiftLSR:
		switch {
		case amount < 32:
			return value >> amount, Bit(value, uint(amount-1))
		case amount == 32:
			return 0, Bit(value, 31)
		}
		return 0, false
	case insts.ShiftASR:
		if amount < 32 {
			return uint32(int32(value) >> amount), Bit(value, uint(amount-1))
		}
		return uint32(int32(value) >> 31), Bit(value, 31)
	}

	// ROR: amounts above 32 reduce modulo 32, a multiple of 32 keeps the value
	// and takes the carry from bit 31.
	amount &= 31
	if amount == 0 {
		return value, Bit(value, 31)
	}
	return RotateRight(value, amount), Bit(value, uint(amount-1))
}

func shiftImmediate(kind insts.ShiftType, value, amount uint32, carryIn bool) (uint32, bool) {
	switch kind {
	case insts.ShiftLSL:
		if amount == 0 {
			return value, carryIn
		}
		return value << amount, Bit(value, uint(32-amount))
	case insts.ShiftLSR:
		if amount == 0 {
			return 0, Bit(value, 31)
		}
		return value >> amount, Bit(value, uint(amount-1))
	case insts.ShiftASR:
		if amount == 0 {
			return uint32(int32(value) >> 31), Bit(value, 31)
		}
		return uint32(int32(value) >> amount), Bit(value, uint(amount-1))
	}

	if amount == 0 {
		// RRX
		result := value >> 1
		if carryIn {
			result |= 1 << 31
		}
		return result, Bit(value, 0)
	}
	return RotateRight(value, amount), Bit(value, uint(amount-1))
}

// RotatedImmediate expands the 12-bit rotated immediate of a data-processing
// or MSR opcode. The carry is bit 31 of the result when the rotation is
// non-zero, otherwise carryIn.
func RotatedImmediate(field uint32, carryIn bool) (uint32, bool) {
	rotate := ((field >> 8) & 0xF) * 2
	value := RotateRight(field&0xFF, rotate)
	if rotate == 0 {
		return value, carryIn
	}
	return value, Bit(value, 31)
}
