package debugger

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mgutz/ansi"

	"github.com/sarchlab/agbsim/emu"
	"github.com/sarchlab/agbsim/insts"
)

var (
	colorSame = ansi.ColorCode("default:default")
	colorNew  = ansi.ColorCode("default+bu:default")
)

type regSnapshot struct {
	r    [16]uint32
	cpsr uint32
}

func takeSnapshot(r *emu.RegFile) regSnapshot {
	return regSnapshot{r: r.R, cpsr: r.CPSR}
}

func (s regSnapshot) diff(r *emu.RegFile, color bool) string {
	var b strings.Builder
	for i := uint32(0); i < 16; i++ {
		b.WriteString(changeString(insts.RegName(i), r.R[i], s.r[i], color))
		if i%4 == 3 {
			b.WriteByte('\n')
		}
	}

	b.WriteString(changeString("cpsr", r.CPSR, s.cpsr, color))
	fmt.Fprintf(&b, " [%s] %s\n", emu.FlagString(r.CPSR), r.Mode())
	return b.String()
}

// changeString renders one register. With color, only the hex digits that
// changed are highlighted; without it a changed register gets a '+' marker.
func changeString(name string, val, old uint32, color bool) string {
	s := fmt.Sprintf("%08x", val)
	if val == old {
		return fmt.Sprintf("  %4s 0x%s", name, s)
	}
	if !color {
		return fmt.Sprintf(" +%4s 0x%s", name, s)
	}

	prev := fmt.Sprintf("%08x", old)
	var b strings.Builder
	fmt.Fprintf(&b, "  %s%4s%s 0x", colorNew, name, ansi.Reset)
	for i := range s {
		if s[i] != prev[i] {
			b.WriteString(colorNew)
		} else {
			b.WriteString(colorSame)
		}
		b.WriteByte(s[i])
	}
	b.WriteString(ansi.Reset)
	return b.String()
}

// hexDump renders 16 bytes per line with a printable column.
func hexDump(base uint32, data []byte) []string {
	var lines []string
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		chunk := data[i:end]

		text := make([]byte, len(chunk))
		for j, c := range chunk {
			if c >= 0x20 && c <= 0x7e {
				text[j] = c
			} else {
				text[j] = '.'
			}
		}

		words := make([]string, 0, 4)
		for j := 0; j < len(chunk); j += 4 {
			k := j + 4
			if k > len(chunk) {
				k = len(chunk)
			}
			words = append(words, hex.EncodeToString(chunk[j:k]))
		}

		lines = append(lines, fmt.Sprintf("0x%08x: %-35s %s",
			base+uint32(i), strings.Join(words, " "), text))
	}
	return lines
}
