package emu

// Width is the size of a bus access in bytes.
type Width uint8

// Access widths.
const (
	Byte Width = 1
	Half Width = 2
	Word Width = 4
)

func (w Width) String() string {
	switch w {
	case Byte:
		return "byte"
	case Half:
		return "half"
	case Word:
		return "word"
	}
	return "invalid"
}

// Bus is the memory collaborator seen by the core.
//
// Addresses passed to the word and halfword accessors are aligned by the
// caller. Unmapped reads return 0 and unmapped writes are dropped.
type Bus interface {
	Read(addr uint32, width Width) uint32
	Write(addr uint32, width Width, value uint32)

	// ReadTimed and WriteTimed perform the access and report how many cycles
	// it took, including wait states.
	ReadTimed(addr uint32, width Width) (uint32, int)
	WriteTimed(addr uint32, width Width, value uint32) int

	// ReadIO16 and WriteIO16 access an IO register by offset without any side
	// effect hooks.
	ReadIO16(offset uint32) uint16
	WriteIO16(offset uint32, value uint16)
}

// Video is the video collaborator. The orchestrator advances it once per
// step by the elapsed cycle count.
type Video interface {
	Advance(cycles int)
}

// HookAction tells the core what to do after a debug hook returns.
type HookAction int

// Hook actions.
const (
	HookContinue HookAction = iota
	HookQuit
)

// DebugHook is offered every instruction before it executes. The hook may
// block for interactive control.
type DebugHook interface {
	Hook(e *Emulator, addr uint32, opcode uint32) HookAction
}
