package debugger

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/lunixbochs/argjoy"
	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"

	"github.com/sarchlab/agbsim/emu"
	"github.com/sarchlab/agbsim/insts"
)

// Context is what a command runs against.
type Context struct {
	io.Writer
	D *Debugger
	E *emu.Emulator

	resume bool
	quit   bool
}

// Printf writes formatted command output.
func (c *Context) Printf(format string, a ...interface{}) (n int, err error) {
	return fmt.Fprintf(c, format, a...)
}

// Resumed reports whether the command let the machine run.
func (c *Context) Resumed() bool {
	return c.resume
}

// Quit reports whether the command asked to stop emulation.
func (c *Context) Quit() bool {
	return c.quit
}

// value parses a number or a register name.
func (c *Context) value(s string) (uint32, error) {
	name := strings.ToLower(s)
	for r := uint32(0); r < 16; r++ {
		if name == insts.RegName(r) || name == fmt.Sprintf("r%d", r) {
			return c.E.RegFile().R[r], nil
		}
	}

	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Errorf("bad value %q", s)
	}
	return uint32(n), nil
}

func (c *Context) argCodec(arg interface{}, vals []interface{}) error {
	if ctx, ok := vals[0].(*Context); ok {
		if v, ok := arg.(**Context); ok {
			*v = ctx
			return nil
		}
		return argjoy.NoMatch
	}

	s, ok := vals[0].(string)
	if !ok {
		return argjoy.NoMatch
	}

	switch v := arg.(type) {
	case *uint32:
		n, err := c.value(s)
		if err != nil {
			return err
		}
		*v = n
	case *int:
		n, err := strconv.ParseInt(s, 0, 0)
		if err != nil {
			return errors.Errorf("bad count %q", s)
		}
		*v = int(n)
	case *string:
		*v = s
	default:
		return argjoy.NoMatch
	}
	return nil
}

// Command is one debugger command. Run is a func whose first parameter is
// *Context; the remaining parameters are converted from the command line.
type Command struct {
	Name string
	Args string
	Desc string
	Run  interface{}
	// Defaults fill in trailing parameters that were left out.
	Defaults []string
}

func (cmd *Command) usage() string {
	if cmd.Args == "" {
		return cmd.Name
	}
	return cmd.Name + " " + cmd.Args
}

// Commands holds every registered command by name.
var Commands = make(map[string]*Command)

func register(c *Command) *Command {
	fn := reflect.ValueOf(c.Run)
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		panic(fmt.Sprintf("Command.Run must be a func: got (%T) %#v", c.Run, c.Run))
	}
	Commands[c.Name] = c
	return c
}

func run(c *Context, line string) {
	args, err := shellwords.Parse(line)
	if err != nil {
		c.Printf("parse error: %v\n", err)
		return
	}
	if len(args) == 0 {
		return
	}

	name, args := args[0], args[1:]
	cmd, ok := Commands[name]
	if !ok {
		c.Printf("command not found: %s\n", name)
		return
	}

	want := reflect.TypeOf(cmd.Run).NumIn() - 1
	required := want - len(cmd.Defaults)
	if len(args) < required || len(args) > want {
		c.Printf("usage: %s\n", cmd.usage())
		return
	}
	args = append(args, cmd.Defaults[len(args)-required:]...)

	vals := make([]interface{}, 0, want+1)
	vals = append(vals, c)
	for _, a := range args {
		vals = append(vals, a)
	}

	aj := argjoy.NewArgjoy()
	aj.Register(c.argCodec)
	out, err := aj.Call(cmd.Run, vals...)
	if err != nil {
		c.Printf("error: %v\n", err)
		return
	}
	if len(out) > 0 {
		if err, ok := out[0].(error); ok && err != nil {
			c.Printf("error: %v\n", err)
		}
	}
}

var _ = register(&Command{
	Name: "help",
	Desc: "List commands.",
	Run: func(c *Context) error {
		names := make([]string, 0, len(Commands))
		for name := range Commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cmd := Commands[name]
			c.Printf("  %-20s %s\n", cmd.usage(), cmd.Desc)
		}
		return nil
	},
})

var _ = register(&Command{
	Name:     "step",
	Args:     "[n]",
	Desc:     "Execute n instructions, then stop.",
	Defaults: []string{"1"},
	Run: func(c *Context, n int) error {
		if n < 1 {
			return errors.Errorf("step count must be positive, got %d", n)
		}
		c.D.stepsLeft = n
		c.resume = true
		return nil
	},
})

var _ = register(&Command{
	Name: "continue",
	Desc: "Run until a breakpoint.",
	Run: func(c *Context) error {
		c.resume = true
		return nil
	},
})

var _ = register(&Command{
	Name: "break",
	Args: "<addr>",
	Desc: "Set a breakpoint.",
	Run: func(c *Context, addr uint32) error {
		c.D.SetBreakpoint(addr)
		c.Printf("breakpoint at 0x%08x\n", addr)
		return nil
	},
})

var _ = register(&Command{
	Name: "delete",
	Args: "<addr>",
	Desc: "Remove a breakpoint.",
	Run: func(c *Context, addr uint32) error {
		if !c.D.ClearBreakpoint(addr) {
			return errors.Errorf("no breakpoint at 0x%08x", addr)
		}
		return nil
	},
})

var _ = register(&Command{
	Name: "breakpoints",
	Desc: "List breakpoints.",
	Run: func(c *Context) error {
		for _, addr := range c.D.Breakpoints() {
			c.Printf("  0x%08x\n", addr)
		}
		return nil
	},
})

var _ = register(&Command{
	Name: "regs",
	Desc: "Show registers. Changes since the last stop are marked.",
	Run: func(c *Context) error {
		io.WriteString(c, c.D.snapshot.diff(c.E.RegFile(), c.D.color))
		return nil
	},
})

var _ = register(&Command{
	Name:     "mem",
	Args:     "<addr> [len]",
	Desc:     "Dump memory.",
	Defaults: []string{"64"},
	Run: func(c *Context, addr uint32, size int) error {
		if size < 0 || size > 0x10000 {
			return errors.Errorf("bad length %d", size)
		}
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(c.E.Bus().Read(addr+uint32(i), emu.Byte))
		}
		for _, line := range hexDump(addr, data) {
			c.Printf("  %s\n", line)
		}
		return nil
	},
})

var _ = register(&Command{
	Name:     "dis",
	Args:     "[addr] [n]",
	Desc:     "Disassemble n instructions.",
	Defaults: []string{"pc", "8"},
	Run: func(c *Context, addr uint32, n int) error {
		size := uint32(4)
		if c.E.RegFile().Thumb() {
			size = 2
		}
		for i := 0; i < n; i++ {
			c.Printf("  %s\n", disassembleAt(c.E, addr+uint32(i)*size))
		}
		return nil
	},
})

var _ = register(&Command{
	Name: "exec",
	Args: "<opcode>",
	Desc: "Execute an opcode at the current PC without advancing it.",
	Run: func(c *Context, opcode uint32) error {
		return c.E.Execute(opcode)
	},
})

var _ = register(&Command{
	Name: "pc",
	Args: "<addr>",
	Desc: "Set the address of the next instruction.",
	Run: func(c *Context, addr uint32) error {
		c.E.SetNextPC(addr)
		c.Printf("%s\n", disassembleAt(c.E, c.E.RegFile().R[emu.RegPC]))
		return nil
	},
})

var _ = register(&Command{
	Name: "quit",
	Desc: "Stop emulation.",
	Run: func(c *Context) error {
		c.quit = true
		return nil
	},
})
