// Package debugger provides an interactive debug hook for the CPU core.
//
// The debugger stops before an instruction when a breakpoint matches or a
// step count runs out, and then reads commands from its console until one of
// them resumes execution. The session runs synchronously inside the hook, so
// the machine does not advance while the prompt is open.
package debugger

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sarchlab/agbsim/emu"
)

// Console is the line-based terminal a session talks to.
type Console interface {
	io.Writer
	Readline() (string, error)
}

type streamConsole struct {
	io.Writer
	r      *bufio.Reader
	prompt string
}

// NewStreamConsole reads commands line by line from rw and writes output and
// prompts back to it.
func NewStreamConsole(rw io.ReadWriter) Console {
	return &streamConsole{Writer: rw, r: bufio.NewReader(rw), prompt: "> "}
}

func (s *streamConsole) Readline() (string, error) {
	io.WriteString(s, s.prompt)
	line, err := s.r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Option is a functional option for configuring the Debugger.
type Option func(*Debugger)

// WithColor highlights changed registers with ANSI escapes.
func WithColor(on bool) Option {
	return func(d *Debugger) {
		d.color = on
	}
}

// Debugger is an emu.DebugHook with breakpoints and single stepping.
type Debugger struct {
	console Console
	color   bool

	breakpoints map[uint32]bool
	// stepsLeft counts the instructions to run before stopping. 0 means run
	// until a breakpoint.
	stepsLeft int
	lastLine  string

	snapshot regSnapshot
	stopped  bool
}

// New creates a debugger talking to console.
func New(console Console, opts ...Option) *Debugger {
	d := &Debugger{
		console:     console,
		breakpoints: make(map[uint32]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stop makes the debugger stop before the next instruction.
func (d *Debugger) Stop() {
	d.stepsLeft = 1
}

// SetBreakpoint stops execution before the instruction at addr.
func (d *Debugger) SetBreakpoint(addr uint32) {
	d.breakpoints[addr] = true
}

// ClearBreakpoint removes the breakpoint at addr and reports whether there
// was one.
func (d *Debugger) ClearBreakpoint(addr uint32) bool {
	if !d.breakpoints[addr] {
		return false
	}
	delete(d.breakpoints, addr)
	return true
}

// Breakpoints returns the breakpoint addresses in ascending order.
func (d *Debugger) Breakpoints() []uint32 {
	addrs := make([]uint32, 0, len(d.breakpoints))
	for addr := range d.breakpoints {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

func (d *Debugger) shouldStop(addr uint32) bool {
	stop := d.breakpoints[addr]
	if d.stepsLeft > 0 {
		d.stepsLeft--
		if d.stepsLeft == 0 {
			stop = true
		}
	}
	return stop
}

// Hook implements emu.DebugHook.
func (d *Debugger) Hook(e *emu.Emulator, addr, opcode uint32) emu.HookAction {
	if !d.shouldStop(addr) {
		return emu.HookContinue
	}

	if !d.stopped {
		d.snapshot = takeSnapshot(e.RegFile())
		d.stopped = true
	}
	d.stepsLeft = 0
	d.printLocation(e)

	for {
		line, err := d.console.Readline()
		if err != nil {
			return emu.HookQuit
		}

		c := d.Exec(e, line)
		switch {
		case c.quit:
			return emu.HookQuit
		case c.resume:
			d.snapshot = takeSnapshot(e.RegFile())
			return emu.HookContinue
		}
	}
}

// Exec runs one command line against e. An empty line repeats the previous
// command.
func (d *Debugger) Exec(e *emu.Emulator, line string) *Context {
	if strings.TrimSpace(line) == "" {
		line = d.lastLine
	} else {
		d.lastLine = line
	}

	c := &Context{Writer: d.console, D: d, E: e}
	run(c, line)
	return c
}

func (d *Debugger) printLocation(e *emu.Emulator) {
	pc := e.RegFile().R[emu.RegPC]
	fmt.Fprintln(d.console, disassembleAt(e, pc))
}

// disassembleAt renders the instruction at addr in the CPU's current state.
func disassembleAt(e *emu.Emulator, addr uint32) string {
	if e.RegFile().Thumb() {
		addr &^= 1
		op := e.Bus().Read(addr, emu.Half)
		return fmt.Sprintf("0x%08x: %04x      %s", addr, op,
			e.Decoder().DisassembleThumb(uint16(op), addr))
	}

	addr &^= 3
	op := e.Bus().Read(addr, emu.Word)
	return fmt.Sprintf("0x%08x: %08x  %s", addr, op, e.Decoder().DisassembleARM(op, addr))
}
