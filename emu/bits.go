package emu

import "math/bits"

// Bit reports whether bit n of v is set.
func Bit(v uint32, n uint) bool {
	return v&(1<<n) != 0
}

// Bits extracts the inclusive field hi..lo of v.
func Bits(v uint32, hi, lo uint) uint32 {
	return (v >> lo) & (1<<(hi-lo+1) - 1)
}

// SetBit returns v with bit n set to on.
func SetBit(v uint32, n uint, on bool) uint32 {
	if on {
		return v | 1<<n
	}
	return v &^ (1 << n)
}

// SignExtend sign-extends the low width bits of v.
func SignExtend(v uint32, width uint) uint32 {
	shift := 32 - width
	return uint32(int32(v<<shift) >> shift)
}

// RotateRight rotates v right by n bits. Only the low five bits of n count.
func RotateRight(v uint32, n uint32) uint32 {
	return bits.RotateLeft32(v, -int(n&31))
}
