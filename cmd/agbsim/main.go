// Package main provides the agbsim command line.
// agbsim runs a cartridge image or an ARM ELF program on the emulated
// handheld.
package main

import (
	"flag"
	"fmt"
	"image/png"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/sarchlab/agbsim/emu"
	"github.com/sarchlab/agbsim/loader"
	"github.com/sarchlab/agbsim/logger"
	"github.com/sarchlab/agbsim/timing/core"
)

var (
	biosPath       = flag.String("bios", "", "Path to a 16 KiB boot ROM image")
	configPath     = flag.String("config", "", "Path to timing configuration JSON file")
	writeConfig    = flag.String("write-config", "", "Write the timing configuration in use to a file and exit")
	elfMode        = flag.Bool("elf", false, "Load the program as an ARM ELF file")
	debugMode      = flag.Bool("debug", false, "Stop in the debugger before the first instruction")
	breakpoints    = flag.String("break", "", "Comma separated breakpoint addresses")
	frames         = flag.Int("frames", 0, "Stop after this many frames (0 runs until stopped)")
	maxInstrs      = flag.Uint64("max", 0, "Stop after this many instructions (0 means no limit)")
	screenshotPath = flag.String("screenshot", "", "Save the last frame as a PNG file")
	verbose        = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if *verbose {
		logger.SetEnabled(true)
		logger.SetEcho(os.Stderr)
	}

	config, err := loadTimingConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
		os.Exit(1)
	}

	if *writeConfig != "" {
		if err := config.SaveConfig(*writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing timing config: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: agbsim [options] <rom>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	opts := []core.Option{
		core.WithTimingConfig(config),
		core.WithMaxInstructions(*maxInstrs),
	}

	if *biosPath != "" {
		bios, err := loader.LoadBootROM(*biosPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading boot ROM: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, core.WithBootROM(bios))
	}

	addrs, err := parseAddrs(*breakpoints)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing breakpoints: %v\n", err)
		os.Exit(1)
	}

	if *debugMode || len(addrs) > 0 {
		d, closeConsole, err := newDebugger()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error starting debugger: %v\n", err)
			os.Exit(1)
		}
		defer closeConsole()

		for _, addr := range addrs {
			d.SetBreakpoint(addr)
		}
		if *debugMode {
			d.Stop()
		}
		opts = append(opts, core.WithDebugHook(d))
	}

	c, err := core.NewCore(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating machine: %v\n", err)
		os.Exit(1)
	}

	programPath := flag.Arg(0)
	if err := load(c, programPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	if *frames > 0 {
		err = c.RunFrames(*frames)
	} else {
		err = c.Run()
	}

	if *screenshotPath != "" {
		if err := saveFrame(c, *screenshotPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving screenshot: %v\n", err)
		}
	}

	if err != nil {
		reportError(err)
		os.Exit(1)
	}

	printStats(programPath, c.Stats())
}

// load maps programPath as a cartridge or, in ELF mode, copies its segments.
func load(c *core.Core, programPath string) error {
	if *elfMode {
		prog, err := loader.LoadELF(programPath)
		if err != nil {
			return err
		}
		if *verbose {
			fmt.Printf("Loaded: %s\n", programPath)
			fmt.Printf("Entry point: 0x%08X\n", prog.EntryPoint)
			fmt.Printf("Segments: %d\n", len(prog.Segments))
		}
		return c.LoadProgram(prog)
	}

	rom, err := loader.LoadROM(programPath)
	if err != nil {
		return err
	}
	if *verbose && rom.Header != nil {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Title: %s (%s)\n", rom.Header.Title(), rom.Header.GameCode())
	}
	return c.LoadROM(rom)
}

func saveFrame(c *core.Core, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create screenshot")
	}
	defer file.Close()

	return errors.Wrap(png.Encode(file, c.Video.Image()), "failed to encode screenshot")
}

// reportError prints a fatal error with its stack trace, the register dump
// taken where it was detected and the most recent log entries.
func reportError(err error) {
	out := colorable.NewColorableStderr()
	fmt.Fprintf(out, "Error: %v\n", err)
	if *verbose {
		fmt.Fprintf(out, "%+v\n", err)
	}
	if fe, ok := emu.AsFatal(err); ok {
		fmt.Fprintf(out, "\n%s", fe.Dump)
	}
	if entries := logger.Entries(); len(entries) > 0 {
		fmt.Fprintf(out, "\nRecent log:\n")
		logger.Tail(out, 16)
	}
}

func printStats(programPath string, stats core.Stats) {
	cpi := 0.0
	if stats.Instructions > 0 {
		cpi = float64(stats.Cycles) / float64(stats.Instructions)
	}
	lookups := stats.FetchHits + stats.FetchMisses
	hitRate := 0.0
	if lookups > 0 {
		hitRate = 100.0 * float64(stats.FetchHits) / float64(lookups)
	}

	fmt.Printf("\n")
	fmt.Printf("Program: %s\n", programPath)
	fmt.Printf("Total Instructions: %d\n", stats.Instructions)
	fmt.Printf("Total Cycles: %d\n", stats.Cycles)
	fmt.Printf("CPI: %.2f\n", cpi)
	fmt.Printf("Frames: %d\n", stats.Frames)
	fmt.Printf("Halted steps: %d\n", stats.HaltedSteps)
	fmt.Printf("Fetch buffer: %d hits, %d misses (%.1f%%)\n",
		stats.FetchHits, stats.FetchMisses, hitRate)
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
