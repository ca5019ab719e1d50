// Package video implements display timing: the line and frame counters,
// the blanking flags and their interrupts and DMA triggers. It also keeps a
// framebuffer of the bitmap display modes.
package video

import (
	"encoding/binary"
	"image"
	"image/color"

	"github.com/sarchlab/agbsim/ioreg"
	"github.com/sarchlab/agbsim/logger"
)

// Display geometry and timing, in CPU cycles.
const (
	ScreenWidth  = 240
	ScreenHeight = 160

	CyclesPerLine  = 1232
	HBlankStart    = 960
	LinesPerFrame  = 228
	VBlankStart    = ScreenHeight
	VBlankEnd      = LinesPerFrame - 1
	CyclesPerFrame = CyclesPerLine * LinesPerFrame
)

// DISPCNT fields.
const (
	dispModeMask    uint16 = 0x7
	dispFrameSelect uint16 = 1 << 4
	dispForcedBlank uint16 = 1 << 7

	mode4PageSize = 0xA000
)

// Host receives interrupt requests and DMA start timings. The CPU core
// implements it.
type Host interface {
	RaiseInterrupt(i ioreg.Interrupt)
	TriggerDMA(timing ioreg.DMATiming)
}

// Memory gives the video unit raw access to the IO registers and the video
// memories.
type Memory interface {
	ReadIO16(offset uint32) uint16
	WriteIO16(offset uint32, value uint16)
	VRAM() []byte
	Palette() []byte
}

// Video advances display timing by CPU cycles.
type Video struct {
	mem  Memory
	host Host

	cycle  int
	line   int
	frames uint64

	frame []uint16
	// mode is the display mode of the last rendered frame.
	mode uint16
}

// New creates a video unit at the start of line 0.
func New(mem Memory, host Host) *Video {
	return &Video{
		mem:   mem,
		host:  host,
		frame: make([]uint16, ScreenWidth*ScreenHeight),
	}
}

// SetHost attaches the receiver of interrupts and DMA triggers.
func (v *Video) SetHost(h Host) {
	v.host = h
}

// Reset returns to the start of line 0 and blanks the framebuffer.
func (v *Video) Reset() {
	v.cycle, v.line, v.frames, v.mode = 0, 0, 0, 0
	clear(v.frame)
	v.mem.WriteIO16(ioreg.VCOUNT, 0)
	v.setStat(ioreg.StatReadOnly, false)
}

// Line returns the current line, VCOUNT.
func (v *Video) Line() int {
	return v.line
}

// Cycle returns the cycle within the current line.
func (v *Video) Cycle() int {
	return v.cycle
}

// Frames returns the number of frames completed, counted at VBlank start.
func (v *Video) Frames() uint64 {
	return v.frames
}

// Frame returns the framebuffer as BGR555 pixels, row-major.
func (v *Video) Frame() []uint16 {
	return v.frame
}

// Advance runs display timing for cycles CPU cycles.
func (v *Video) Advance(cycles int) {
	for cycles > 0 {
		next := CyclesPerLine
		if v.cycle < HBlankStart {
			next = HBlankStart
		}

		n := min(cycles, next-v.cycle)
		v.cycle += n
		cycles -= n

		if v.cycle == HBlankStart {
			v.enterHBlank()
		}
		if v.cycle == CyclesPerLine {
			v.cycle = 0
			v.nextLine()
		}
	}
}

func (v *Video) stat() uint16 {
	return v.mem.ReadIO16(ioreg.DISPSTAT)
}

func (v *Video) setStat(bits uint16, on bool) {
	stat := v.stat()
	if on {
		stat |= bits
	} else {
		stat &^= bits
	}
	v.mem.WriteIO16(ioreg.DISPSTAT, stat)
}

func (v *Video) raise(enable uint16, i ioreg.Interrupt) {
	if v.stat()&enable != 0 && v.host != nil {
		v.host.RaiseInterrupt(i)
	}
}

func (v *Video) enterHBlank() {
	v.setStat(ioreg.StatHBlank, true)
	v.raise(ioreg.StatHBlankIRQ, ioreg.IRQHBlank)
	if v.line < VBlankStart && v.host != nil {
		v.host.TriggerDMA(ioreg.DMAHBlank)
	}
}

func (v *Video) nextLine() {
	v.line = (v.line + 1) % LinesPerFrame
	v.mem.WriteIO16(ioreg.VCOUNT, uint16(v.line))
	v.setStat(ioreg.StatHBlank, false)

	switch v.line {
	case VBlankStart:
		v.setStat(ioreg.StatVBlank, true)
		v.raise(ioreg.StatVBlankIRQ, ioreg.IRQVBlank)
		if v.host != nil {
			v.host.TriggerDMA(ioreg.DMAVBlank)
		}
		v.render()
		v.frames++
	case VBlankEnd:
		v.setStat(ioreg.StatVBlank, false)
	}

	if int(v.stat()>>8) == v.line {
		v.setStat(ioreg.StatVCountMatch, true)
		v.raise(ioreg.StatVCountIRQ, ioreg.IRQVCount)
	} else {
		v.setStat(ioreg.StatVCountMatch, false)
	}
}

// render rebuilds the framebuffer from the bitmap modes. Tile modes are
// left black.
func (v *Video) render() {
	dispcnt := v.mem.ReadIO16(ioreg.DISPCNT)
	vram := v.mem.VRAM()

	switch {
	case dispcnt&dispForcedBlank != 0:
		for i := range v.frame {
			v.frame[i] = 0x7FFF
		}
	case dispcnt&dispModeMask == 3:
		for i := range v.frame {
			v.frame[i] = binary.LittleEndian.Uint16(vram[2*i:])
		}
	case dispcnt&dispModeMask == 4:
		page := 0
		if dispcnt&dispFrameSelect != 0 {
			page = mode4PageSize
		}
		palette := v.mem.Palette()
		for i := range v.frame {
			index := int(vram[page+i])
			v.frame[i] = binary.LittleEndian.Uint16(palette[2*index:])
		}
	default:
		clear(v.frame)
	}

	if mode := dispcnt & dispModeMask; mode != v.mode {
		if logger.Enabled() {
			logger.Logf("video", "mode %d -> %d at frame %d", v.mode, mode, v.frames)
		}
		v.mode = mode
	}
}

// BGR555ToRGBA converts a 15-bit colour.
func BGR555ToRGBA(c uint16) color.RGBA {
	r := uint8(c&0x1F) << 3
	g := uint8(c>>5&0x1F) << 3
	b := uint8(c>>10&0x1F) << 3
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}

// Image returns a copy of the framebuffer as an RGBA image.
func (v *Video) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, ScreenWidth, ScreenHeight))
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			img.SetRGBA(x, y, BGR555ToRGBA(v.frame[y*ScreenWidth+x]))
		}
	}
	return img
}
