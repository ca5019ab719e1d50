package main

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"

	"github.com/sarchlab/agbsim/debugger"
	"github.com/sarchlab/agbsim/timing/latency"
)

const (
	vendorName = "agbsim"
	appName    = "agbsim"

	timingConfigFile = "timing.json"
	historyFile      = "history"
)

// loadTimingConfig reads the timing configuration from path. Without a path
// the first timing.json found in the user's config folders is used, and
// failing that the hardware defaults.
func loadTimingConfig(path string) (*latency.TimingConfig, error) {
	var config *latency.TimingConfig
	var err error

	if path != "" {
		config, err = latency.LoadConfig(path)
	} else {
		config, err = defaultTimingConfig(configdir.New(vendorName, appName))
	}
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid timing configuration")
	}
	return config, nil
}

func defaultTimingConfig(dirs configdir.ConfigDir) (*latency.TimingConfig, error) {
	folder := dirs.QueryFolderContainsFile(timingConfigFile)
	if folder == nil {
		return latency.DefaultTimingConfig(), nil
	}

	data, err := folder.ReadFile(timingConfigFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s",
			filepath.Join(folder.Path, timingConfigFile))
	}
	return latency.ParseConfig(data)
}

// parseAddrs parses a comma separated address list.
func parseAddrs(list string) ([]uint32, error) {
	var addrs []uint32
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.ParseUint(field, 0, 32)
		if err != nil {
			return nil, errors.Errorf("bad address %q", field)
		}
		addrs = append(addrs, uint32(n))
	}
	return addrs, nil
}

// readlineConsole adapts a readline instance to debugger.Console.
type readlineConsole struct {
	rl *readline.Instance
}

func (c readlineConsole) Write(p []byte) (int, error) {
	return c.rl.Stdout().Write(p)
}

func (c readlineConsole) Readline() (string, error) {
	return c.rl.Readline()
}

// newDebugger opens an interactive prompt with a history file in the user's
// cache folder.
func newDebugger() (*debugger.Debugger, func(), error) {
	cacheDir := configdir.New(vendorName, appName).QueryCacheFolder()
	historyPath := ""
	if err := cacheDir.MkdirAll(); err == nil {
		historyPath = filepath.Join(cacheDir.Path, historyFile)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "agb> ",
		InterruptPrompt: "\n",
		HistoryFile:     historyPath,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open readline")
	}

	d := debugger.New(readlineConsole{rl}, debugger.WithColor(stdoutIsTerminal()))
	return d, func() { rl.Close() }, nil
}
