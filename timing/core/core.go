// Package core assembles the memory map, the video unit and the CPU core into
// a complete machine.
package core

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/agbsim/emu"
	"github.com/sarchlab/agbsim/loader"
	"github.com/sarchlab/agbsim/mem"
	"github.com/sarchlab/agbsim/timing/latency"
	"github.com/sarchlab/agbsim/video"
)

// Stats holds performance statistics for the machine.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions executed.
	Instructions uint64
	// Frames is the number of frames the video unit completed.
	Frames uint64
	// HaltedSteps counts steps spent waiting for an interrupt.
	HaltedSteps uint64
	// FetchHits and FetchMisses count ROM fetch buffer lookups.
	FetchHits   uint64
	FetchMisses uint64
}

type options struct {
	timing          *latency.TimingConfig
	bootROM         []byte
	debugHook       emu.DebugHook
	maxInstructions uint64
}

// Option is a functional option for configuring the Core.
type Option func(*options)

// WithTimingConfig sets the wait states, the fetch buffer and the halt
// quantum.
func WithTimingConfig(config *latency.TimingConfig) Option {
	return func(o *options) {
		o.timing = config
	}
}

// WithBootROM maps a real boot ROM image. Without one the built-in firmware
// is mapped and BIOS calls are served by the core.
func WithBootROM(image []byte) Option {
	return func(o *options) {
		o.bootROM = image
	}
}

// WithDebugHook attaches a debugger to the CPU.
func WithDebugHook(h emu.DebugHook) Option {
	return func(o *options) {
		o.debugHook = h
	}
}

// WithMaxInstructions stops Run after max instructions. 0 means no limit.
func WithMaxInstructions(max uint64) Option {
	return func(o *options) {
		o.maxInstructions = max
	}
}

// Core is a complete machine.
type Core struct {
	Memory   *mem.Memory
	Video    *video.Video
	Emulator *emu.Emulator

	haltedSteps  uint64
	exited       bool
	limitReached bool
}

// NewCore builds a machine and resets it.
func NewCore(opts ...Option) (*Core, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.timing == nil {
		o.timing = latency.DefaultTimingConfig()
	}
	if err := o.timing.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid timing configuration")
	}

	memory := mem.NewMemory(mem.WithTimingConfig(o.timing))

	bios := o.bootROM
	if bios == nil {
		bios = emu.BuiltinBIOS()
	}
	if err := memory.LoadBIOS(bios); err != nil {
		return nil, err
	}

	v := video.New(memory, nil)

	emuOpts := []emu.EmulatorOption{
		emu.WithVideo(v),
		emu.WithHaltQuantum(o.timing.HaltQuantum),
		emu.WithMaxInstructions(o.maxInstructions),
	}
	if o.bootROM != nil {
		emuOpts = append(emuOpts, emu.WithBootROM())
	}
	if o.debugHook != nil {
		emuOpts = append(emuOpts, emu.WithDebugHook(o.debugHook))
	}
	e := emu.NewEmulator(memory, emuOpts...)

	memory.SetListener(e)
	v.SetHost(e)

	return &Core{
		Memory:   memory,
		Video:    v,
		Emulator: e,
	}, nil
}

// LoadROM maps a cartridge image.
func (c *Core) LoadROM(rom *loader.ROM) error {
	return errors.Wrap(c.Memory.LoadROM(rom.Data), "failed to map ROM")
}

// LoadProgram copies the segments of prog into memory and starts execution at
// its entry point.
func (c *Core) LoadProgram(prog *loader.Program) error {
	if err := prog.LoadInto(c.Memory); err != nil {
		return err
	}
	c.Emulator.LoadProgram(prog.EntryPoint)
	return nil
}

// Step executes one instruction or one halt quantum.
func (c *Core) Step() emu.StepResult {
	if c.Emulator.Halted() {
		c.haltedSteps++
	}

	result := c.Emulator.Step()
	if result.Exited {
		c.exited = true
	}
	return result
}

// Exited reports whether the debug hook asked to quit.
func (c *Core) Exited() bool {
	return c.exited
}

// Run steps until the debug hook quits, the instruction limit is reached or
// a fatal error occurs. Only the fatal error is returned.
func (c *Core) Run() error {
	for {
		if stop, err := c.step(); stop {
			return err
		}
	}
}

// RunFrames steps until the video unit completes n more frames. It stops
// early under the same conditions as Run.
func (c *Core) RunFrames(n int) error {
	target := c.Video.Frames() + uint64(n)
	for c.Video.Frames() < target {
		if stop, err := c.step(); stop {
			return err
		}
	}
	return nil
}

// RunFrame runs until the next frame is complete.
func (c *Core) RunFrame() error {
	return c.RunFrames(1)
}

// LimitReached reports whether the instruction limit stopped the machine.
func (c *Core) LimitReached() bool {
	return c.limitReached
}

func (c *Core) step() (bool, error) {
	if c.exited || c.limitReached {
		return true, nil
	}

	result := c.Step()
	switch {
	case result.Err == nil:
		return result.Exited, nil
	case errors.Cause(result.Err) == emu.ErrMaxInstructions:
		c.limitReached = true
		return true, nil
	}
	return true, result.Err
}

// Stats returns performance statistics for the machine.
func (c *Core) Stats() Stats {
	fetch := c.Memory.FetchBuffer().Stats()
	return Stats{
		Cycles:       c.Emulator.Cycles(),
		Instructions: c.Emulator.InstructionCount(),
		Frames:       c.Video.Frames(),
		HaltedSteps:  c.haltedSteps,
		FetchHits:    fetch.Hits,
		FetchMisses:  fetch.Misses,
	}
}

// Reset puts the CPU and the video unit in their power-on state. Loaded
// images and RAM contents are kept.
func (c *Core) Reset() {
	c.Emulator.Reset()
	c.Video.Reset()
	c.Memory.FetchBuffer().Reset()
	c.Memory.FetchBuffer().ResetStats()
	c.haltedSteps = 0
	c.exited = false
	c.limitReached = false
}
