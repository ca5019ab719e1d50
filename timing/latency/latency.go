// Package latency provides the wait-state model of the memory map.
//
// The reset values come from TimingConfig. Writes to WAITCNT reconfigure the
// cartridge and save memory windows at run time.
package latency

// Width is the size of a bus access in bytes.
type Width int

// Address pages are the top byte of an address, bits 27-24.
const (
	pageBIOS  = 0x0
	pageEWRAM = 0x2
	pageIWRAM = 0x3
	pageIO    = 0x4
	pagePal   = 0x5
	pageVRAM  = 0x6
	pageOAM   = 0x7
	pageWS0   = 0x8
	pageWS1   = 0xA
	pageWS2   = 0xC
	pageSRAM  = 0xE

	numPages = 16
)

var (
	waitcntNonSeq = [4]int{4, 3, 2, 8}
	waitcntWS0Seq = [2]int{2, 1}
	waitcntWS1Seq = [2]int{4, 1}
	waitcntWS2Seq = [2]int{8, 1}
)

// Table provides wait-state lookups per address page.
type Table struct {
	config *TimingConfig

	nonSeq [numPages]int
	seq    [numPages]int
	// bus16 marks pages with a 16-bit data bus; a word access there is
	// two halfword accesses.
	bus16 [numPages]bool
	// unmapped pages cost a single cycle.
	mapped [numPages]bool
}

// NewTable creates a wait-state table with the hardware reset values.
func NewTable() *Table {
	return NewTableWithConfig(DefaultTimingConfig())
}

// NewTableWithConfig creates a wait-state table from config.
func NewTableWithConfig(config *TimingConfig) *Table {
	t := &Table{config: config}

	for _, p := range []int{pageBIOS, pageEWRAM, pageIWRAM, pageIO, pagePal, pageVRAM, pageOAM} {
		t.mapped[p] = true
	}
	for p := pageWS0; p < numPages; p++ {
		t.mapped[p] = true
	}
	for _, p := range []int{pageEWRAM, pagePal, pageVRAM, pageWS0, pageWS0 + 1, pageWS1, pageWS1 + 1, pageWS2, pageWS2 + 1} {
		t.bus16[p] = true
	}

	t.setPair(pageEWRAM, config.EWRAMWait, config.EWRAMWait)
	t.setPair(pageWS0, config.WS0NonSeq, config.WS0Seq)
	t.setPair(pageWS1, config.WS1NonSeq, config.WS1Seq)
	t.setPair(pageWS2, config.WS2NonSeq, config.WS2Seq)
	t.setPair(pageSRAM, config.SRAMWait, config.SRAMWait)
	return t
}

// setPair sets the wait states of page and, for the two-page windows, its
// mirror.
func (t *Table) setPair(page, nonSeq, seq int) {
	t.nonSeq[page], t.seq[page] = nonSeq, seq
	if page >= pageWS0 {
		t.nonSeq[page+1], t.seq[page+1] = nonSeq, seq
	}
}

// ApplyWAITCNT reconfigures the cartridge and save memory wait states from
// a WAITCNT register value.
func (t *Table) ApplyWAITCNT(value uint16) {
	field := func(shift uint) uint16 { return value >> shift }

	t.setPair(pageSRAM, waitcntNonSeq[field(0)&3], waitcntNonSeq[field(0)&3])
	t.setPair(pageWS0, waitcntNonSeq[field(2)&3], waitcntWS0Seq[field(4)&1])
	t.setPair(pageWS1, waitcntNonSeq[field(5)&3], waitcntWS1Seq[field(7)&1])
	t.setPair(pageWS2, waitcntNonSeq[field(8)&3], waitcntWS2Seq[field(10)&1])
}

// WaitStates returns the non-sequential and sequential wait states of the
// page holding addr.
func (t *Table) WaitStates(addr uint32) (nonSeq, seq int) {
	p := addr >> 24 & 0xF
	return t.nonSeq[p], t.seq[p]
}

// AccessCycles returns the cycles of one access of width bytes at addr.
func (t *Table) AccessCycles(addr uint32, width Width, sequential bool) int {
	p := addr >> 24 & 0xF
	if addr >= 0x10000000 || !t.mapped[p] {
		return 1
	}

	first := 1 + t.nonSeq[p]
	if sequential {
		first = 1 + t.seq[p]
	}
	if width == 4 && t.bus16[p] {
		return first + 1 + t.seq[p]
	}
	return first
}

// Config returns the reset configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
