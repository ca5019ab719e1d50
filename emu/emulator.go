package emu

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/agbsim/insts"
)

// Boot addresses and stack tops.
const (
	ROMEntry    uint32 = 0x08000000
	VectorReset uint32 = 0x00
	VectorSWI   uint32 = 0x08
	VectorIRQ   uint32 = 0x18

	StackSystem     uint32 = 0x03007F00
	StackIRQ        uint32 = 0x03007FA0
	StackSupervisor uint32 = 0x03007FE0
)

// DefaultHaltQuantum is the number of cycles a halted step advances.
const DefaultHaltQuantum = 16

// ErrMaxInstructions is returned by Step once the instruction limit is hit.
var ErrMaxInstructions = errors.New("max instructions reached")

// StepResult represents the result of executing a single step.
type StepResult struct {
	// Cycles is the number of cycles the step advanced timers and video by.
	Cycles int

	// Exited is true if a debug hook asked to quit.
	Exited bool

	// Err is set if a fatal error stopped emulation.
	Err error
}

// Emulator executes ARMv4T instructions functionally and drives the timers,
// DMA channels and interrupt line after every instruction.
type Emulator struct {
	regFile        *RegFile
	bus            Bus
	decoder        *insts.Decoder
	alu            *ALU
	syscallHandler SyscallHandler
	video          Video
	debugHook      DebugHook

	bootROM     bool
	haltQuantum int

	timers [4]timer
	dma    [4]dmaChannel

	// pendingTimings holds the DMA start timings signalled since the last
	// DMA phase, one bit per ioreg.DMATiming.
	pendingTimings uint8
	// carryCycles are DMA cycles folded into the next step.
	carryCycles int
	halted      bool
	// fault is a fatal condition raised from a bus hook; it is reported at
	// the end of the step that caused it.
	fault error

	// per-instruction state
	curPC    uint32
	curOp    uint32
	pipePC   uint32
	branched bool

	instructionCount uint64
	maxInstructions  uint64
	cycles           uint64
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithBootROM tells the core that a real boot ROM is mapped at address 0.
// The core then resets into it and software interrupts take the exception
// vector instead of the built-in BIOS calls.
func WithBootROM() EmulatorOption {
	return func(e *Emulator) {
		e.bootROM = true
	}
}

// WithSyscallHandler sets a custom software interrupt handler.
func WithSyscallHandler(handler SyscallHandler) EmulatorOption {
	return func(e *Emulator) {
		e.syscallHandler = handler
	}
}

// WithVideo attaches the video collaborator.
func WithVideo(v Video) EmulatorOption {
	return func(e *Emulator) {
		e.video = v
	}
}

// WithDebugHook attaches a debugger.
func WithDebugHook(h DebugHook) EmulatorOption {
	return func(e *Emulator) {
		e.debugHook = h
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithHaltQuantum sets how many cycles a halted step advances.
func WithHaltQuantum(cycles int) EmulatorOption {
	return func(e *Emulator) {
		if cycles > 0 {
			e.haltQuantum = cycles
		}
	}
}

// NewEmulator creates a new emulator on top of bus and resets it.
func NewEmulator(bus Bus, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile:     NewRegFile(),
		bus:         bus,
		decoder:     insts.NewDecoder(),
		haltQuantum: DefaultHaltQuantum,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.alu = NewALU(e.regFile)

	if e.syscallHandler == nil && !e.bootROM {
		e.syscallHandler = NewDefaultSyscallHandler(e)
	}

	e.Reset()
	return e
}

// Reset puts the CPU in its power-on state.
func (e *Emulator) Reset() {
	*e.regFile = RegFile{}
	e.timers = [4]timer{}
	e.dma = [4]dmaChannel{}
	e.pendingTimings = 0
	e.carryCycles = 0
	e.halted = false
	e.fault = nil
	e.instructionCount = 0
	e.cycles = 0

	if e.bootROM {
		e.regFile.CPSR = uint32(ModeSupervisor) | StatusIRQDisable | StatusFIQDisable
		e.regFile.R[RegPC] = VectorReset
		return
	}

	e.regFile.CPSR = uint32(ModeSystem)
	e.regFile.SetBankedSP(ModeIRQ, StackIRQ)
	e.regFile.SetBankedSP(ModeSupervisor, StackSupervisor)
	e.regFile.R[RegSP] = StackSystem
	e.regFile.R[RegPC] = ROMEntry
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Bus returns the memory collaborator.
func (e *Emulator) Bus() Bus {
	return e.bus
}

// Decoder returns the instruction decoder.
func (e *Emulator) Decoder() *insts.Decoder {
	return e.decoder
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Cycles returns the number of cycles elapsed since reset.
func (e *Emulator) Cycles() uint64 {
	return e.cycles
}

// Halted reports whether the CPU waits for an interrupt.
func (e *Emulator) Halted() bool {
	return e.halted
}

// SetNextPC forces the address of the next instruction.
func (e *Emulator) SetNextPC(addr uint32) {
	if e.regFile.Thumb() {
		addr &^= 1
	} else {
		addr &^= 3
	}
	e.regFile.R[RegPC] = addr
}

// LoadProgram sets the entry point. Bit 0 of entry selects Thumb state.
func (e *Emulator) LoadProgram(entry uint32) {
	e.regFile.SetThumb(entry&1 != 0)
	e.SetNextPC(entry)
}

// instrSize is the size of the instruction being executed.
func (e *Emulator) instrSize() uint32 {
	if e.regFile.Thumb() {
		return 2
	}
	return 4
}

// reg reads a register as an instruction operand. R15 reads ahead of the
// executing instruction by two instructions.
func (e *Emulator) reg(n uint32) uint32 {
	if n == RegPC {
		return e.pipePC
	}
	return e.regFile.R[n]
}

// storedPC is the value written to memory when R15 is stored.
func (e *Emulator) storedPC() uint32 {
	return e.pipePC + e.instrSize()
}

// setReg writes a register. A write to R15 is a branch.
func (e *Emulator) setReg(n, value uint32) {
	if n == RegPC {
		e.branchTo(value)
		return
	}
	e.regFile.R[n] = value
}

// branchTo sets the next fetch address in the current instruction set.
func (e *Emulator) branchTo(addr uint32) {
	if e.regFile.Thumb() {
		addr &^= 1
	} else {
		addr &^= 3
	}
	e.regFile.R[RegPC] = addr
	e.branched = true
}

// restoreSPSR copies the saved status word of the current mode into the CPSR.
func (e *Emulator) restoreSPSR() error {
	spsr, ok := e.regFile.SPSR()
	if !ok {
		return e.fatal(IllegalPrivilege, "status restore in %s mode", e.regFile.Mode())
	}
	if err := e.regFile.SetCPSR(spsr); err != nil {
		return e.fatal(InternalError, "%v", err)
	}
	return nil
}

// enterException saves the CPSR, switches to mode in ARM state with IRQs
// masked, and jumps to vector. lr is the link register value of the new mode.
func (e *Emulator) enterException(mode Mode, vector, lr uint32) error {
	cpsr := e.regFile.CPSR
	if err := e.regFile.SwitchMode(mode); err != nil {
		return errors.Wrap(err, "exception entry")
	}
	e.regFile.SetSPSR(cpsr)
	e.regFile.R[RegLR] = lr
	e.regFile.CPSR = (e.regFile.CPSR &^ StatusThumb) | StatusIRQDisable
	e.regFile.R[RegPC] = vector
	e.branched = true
	return nil
}

// Step executes a single instruction, or one halt quantum, and then runs the
// timer, video, DMA and interrupt phases.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	if e.halted {
		return e.finishStep(e.haltQuantum)
	}

	addr := e.regFile.R[RegPC]
	if e.debugHook != nil {
		if e.debugHook.Hook(e, addr, e.peekOpcode(addr)) == HookQuit {
			return StepResult{Exited: true}
		}
		addr = e.regFile.R[RegPC]
	}

	cycles, err := e.fetchAndExecute(addr)
	e.instructionCount++
	if err != nil {
		return StepResult{Cycles: cycles, Err: err}
	}

	return e.finishStep(cycles)
}

func (e *Emulator) peekOpcode(addr uint32) uint32 {
	if e.regFile.Thumb() {
		return e.bus.Read(addr&^1, Half)
	}
	return e.bus.Read(addr&^3, Word)
}

func (e *Emulator) fetchAndExecute(addr uint32) (int, error) {
	thumb := e.regFile.Thumb()
	size := e.instrSize()

	var opcode uint32
	var cycles int
	if thumb {
		opcode, cycles = e.bus.ReadTimed(addr, Half)
	} else {
		opcode, cycles = e.bus.ReadTimed(addr, Word)
	}

	e.curPC = addr
	e.curOp = opcode
	e.pipePC = addr + 2*size
	e.branched = false
	e.regFile.R[RegPC] = addr + size

	var extra int
	var err error
	if thumb {
		extra, err = e.executeThumb(uint16(opcode))
	} else {
		extra, err = e.executeARM(opcode)
	}
	cycles += extra
	if err != nil {
		return cycles, err
	}

	if e.branched {
		cycles += e.refill()
	}
	return cycles, nil
}

// refill charges the two fetches that follow a pipeline flush.
func (e *Emulator) refill() int {
	pc := e.regFile.R[RegPC]
	width := Word
	if e.regFile.Thumb() {
		width = Half
	}
	_, first := e.bus.ReadTimed(pc, width)
	_, second := e.bus.ReadTimed(pc+uint32(width), width)
	return first + second
}

// Execute runs opcode as if it were fetched at the current PC, without
// fetching or advancing the PC past it. The orchestrator phases do not run.
func (e *Emulator) Execute(opcode uint32) error {
	addr := e.regFile.R[RegPC]
	e.curPC = addr
	e.curOp = opcode
	e.pipePC = addr + 2*e.instrSize()
	e.branched = false

	var err error
	if e.regFile.Thumb() {
		_, err = e.executeThumb(uint16(opcode))
	} else {
		_, err = e.executeARM(opcode)
	}
	return err
}

func (e *Emulator) finishStep(cycles int) StepResult {
	total := cycles + e.carryCycles
	e.carryCycles = 0

	err := e.orchestrate(total)
	if err == nil && e.fault != nil {
		err = e.fault
	}
	e.fault = nil

	return StepResult{Cycles: total, Err: err}
}
