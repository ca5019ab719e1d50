package emu

import (
	"fmt"
	"strings"
)

// FlagString renders the NZCV, I, F and T bits of a status word, upper case
// when set.
func FlagString(psr uint32) string {
	names := []struct {
		mask uint32
		name byte
	}{
		{FlagN, 'n'}, {FlagZ, 'z'}, {FlagC, 'c'}, {FlagV, 'v'},
		{StatusIRQDisable, 'i'}, {StatusFIQDisable, 'f'}, {StatusThumb, 't'},
	}

	b := make([]byte, len(names))
	for i, n := range names {
		b[i] = n.name
		if psr&n.mask != 0 {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}

// Dump renders all active registers and status words.
func (r *RegFile) Dump() string {
	var s strings.Builder
	for i := 0; i < 16; i++ {
		fmt.Fprintf(&s, "r%-2d=%08x", i, r.R[i])
		if i%4 == 3 {
			s.WriteByte('\n')
		} else {
			s.WriteByte(' ')
		}
	}

	fmt.Fprintf(&s, "cpsr=%08x [%s] mode=%s", r.CPSR, FlagString(r.CPSR), r.Mode())
	if spsr, ok := r.SPSR(); ok {
		fmt.Fprintf(&s, " spsr=%08x [%s]", spsr, FlagString(spsr))
	}
	s.WriteByte('\n')
	return s.String()
}
