// Package ioreg names the memory-mapped IO registers shared by the CPU core,
// the memory map and the video unit.
//
// All offsets are relative to IOBase.
package ioreg

// IOBase is the address of the first IO register.
const IOBase uint32 = 0x04000000

// IOSize is the size of the IO register window.
const IOSize = 0x400

// Display registers.
const (
	DISPCNT  uint32 = 0x000
	DISPSTAT uint32 = 0x004
	VCOUNT   uint32 = 0x006
)

// DISPSTAT bits.
const (
	StatVBlank      uint16 = 1 << 0
	StatHBlank      uint16 = 1 << 1
	StatVCountMatch uint16 = 1 << 2
	StatVBlankIRQ   uint16 = 1 << 3
	StatHBlankIRQ   uint16 = 1 << 4
	StatVCountIRQ   uint16 = 1 << 5

	// StatReadOnly covers the flag bits owned by the video unit.
	StatReadOnly = StatVBlank | StatHBlank | StatVCountMatch
)

// DMA register block. Channel n lives at DMABase + n*DMAStride.
const (
	DMABase   uint32 = 0x0B0
	DMAStride uint32 = 12

	DMASAD  uint32 = 0x0
	DMADAD  uint32 = 0x4
	DMACNTL uint32 = 0x8
	DMACNTH uint32 = 0xA
)

// DMA CNT_H bits.
const (
	DMADestCtrlShift        = 5
	DMASrcCtrlShift         = 7
	DMARepeat        uint16 = 1 << 9
	DMAWord          uint16 = 1 << 10
	DMAGamePakDRQ    uint16 = 1 << 11
	DMATimingShift          = 12
	DMAIRQ           uint16 = 1 << 14
	DMAEnable        uint16 = 1 << 15
)

// Timer register block. Timer n lives at TimerBase + n*TimerStride.
const (
	TimerBase   uint32 = 0x100
	TimerStride uint32 = 4

	TimerCNTL uint32 = 0x0
	TimerCNTH uint32 = 0x2
)

// Timer CNT_H bits.
const (
	TimerPrescaleMask uint16 = 0x3
	TimerCountUp      uint16 = 1 << 2
	TimerIRQ          uint16 = 1 << 6
	TimerStart        uint16 = 1 << 7
)

// Keypad registers. KEYINPUT bits are active low.
const (
	KEYINPUT uint32 = 0x130
	KEYCNT   uint32 = 0x132

	KeysReleased uint16 = 0x03FF
)

// Interrupt, wait state and power registers.
const (
	IE      uint32 = 0x200
	IF      uint32 = 0x202
	WAITCNT uint32 = 0x204
	IME     uint32 = 0x208
	POSTFLG uint32 = 0x300
	HALTCNT uint32 = 0x301
)

// DMAChannelOffset returns the offset of register reg of DMA channel n.
func DMAChannelOffset(n int, reg uint32) uint32 {
	return DMABase + uint32(n)*DMAStride + reg
}

// TimerOffset returns the offset of register reg of timer n.
func TimerOffset(n int, reg uint32) uint32 {
	return TimerBase + uint32(n)*TimerStride + reg
}

// Interrupt identifies one of the 14 interrupt sources. The value is the bit
// index in IE and IF; lower values have higher priority.
type Interrupt uint8

// Interrupt sources.
const (
	IRQVBlank Interrupt = iota
	IRQHBlank
	IRQVCount
	IRQTimer0
	IRQTimer1
	IRQTimer2
	IRQTimer3
	IRQSerial
	IRQDMA0
	IRQDMA1
	IRQDMA2
	IRQDMA3
	IRQKeypad
	IRQGamePak

	NumInterrupts = 14
)

var interruptNames = [NumInterrupts]string{
	"vblank", "hblank", "vcount",
	"timer0", "timer1", "timer2", "timer3",
	"serial",
	"dma0", "dma1", "dma2", "dma3",
	"keypad", "gamepak",
}

func (i Interrupt) String() string {
	if int(i) < NumInterrupts {
		return interruptNames[i]
	}
	return "unknown"
}

// Mask returns the IE/IF bit for the interrupt.
func (i Interrupt) Mask() uint16 {
	return 1 << i
}

// DMATiming is the start-timing field of a DMA channel.
type DMATiming uint8

// DMA start timings.
const (
	DMAImmediate DMATiming = iota
	DMAVBlank
	DMAHBlank
	DMASpecial
)

func (t DMATiming) String() string {
	switch t {
	case DMAImmediate:
		return "immediate"
	case DMAVBlank:
		return "vblank"
	case DMAHBlank:
		return "hblank"
	case DMASpecial:
		return "special"
	}
	return "unknown"
}
