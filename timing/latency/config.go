package latency

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// TimingConfig holds the wait states of the memory map at reset and the
// pacing of halted steps. A wait state is added to the one cycle every bus
// access takes.
type TimingConfig struct {
	// WS0NonSeq and WS0Seq are the ROM wait states of the 0x08000000
	// window. Default: 4 and 2.
	WS0NonSeq int `json:"ws0_nonseq"`
	WS0Seq    int `json:"ws0_seq"`

	// WS1NonSeq and WS1Seq cover the 0x0A000000 window. Default: 4 and 4.
	WS1NonSeq int `json:"ws1_nonseq"`
	WS1Seq    int `json:"ws1_seq"`

	// WS2NonSeq and WS2Seq cover the 0x0C000000 window. Default: 4 and 8.
	WS2NonSeq int `json:"ws2_nonseq"`
	WS2Seq    int `json:"ws2_seq"`

	// SRAMWait is the wait state of the 8-bit save memory. Default: 4.
	SRAMWait int `json:"sram_wait"`

	// EWRAMWait is the wait state of the external work RAM. Default: 2.
	EWRAMWait int `json:"ewram_wait"`

	// HaltQuantum is the number of cycles a halted CPU advances per step.
	// Default: 16.
	HaltQuantum int `json:"halt_quantum"`

	// FetchBufferSize and FetchBufferBlock size the ROM fetch buffer in
	// bytes. Default: 256 and 16.
	FetchBufferSize  int `json:"fetch_buffer_size"`
	FetchBufferBlock int `json:"fetch_buffer_block"`
}

// DefaultTimingConfig returns the hardware reset values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		WS0NonSeq:        4,
		WS0Seq:           2,
		WS1NonSeq:        4,
		WS1Seq:           4,
		WS2NonSeq:        4,
		WS2Seq:           8,
		SRAMWait:         4,
		EWRAMWait:        2,
		HaltQuantum:      16,
		FetchBufferSize:  256,
		FetchBufferBlock: 16,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read timing config file")
	}
	return ParseConfig(data)
}

// ParseConfig decodes a JSON TimingConfig on top of the defaults.
func ParseConfig(data []byte) (*TimingConfig, error) {
	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse timing config")
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize timing config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write timing config file")
	}

	return nil
}

// Validate checks that wait states are not negative and that the fetch
// buffer geometry is usable.
func (c *TimingConfig) Validate() error {
	waits := []struct {
		name  string
		value int
	}{
		{"ws0_nonseq", c.WS0NonSeq},
		{"ws0_seq", c.WS0Seq},
		{"ws1_nonseq", c.WS1NonSeq},
		{"ws1_seq", c.WS1Seq},
		{"ws2_nonseq", c.WS2NonSeq},
		{"ws2_seq", c.WS2Seq},
		{"sram_wait", c.SRAMWait},
		{"ewram_wait", c.EWRAMWait},
	}
	for _, w := range waits {
		if w.value < 0 {
			return errors.Errorf("%s must be >= 0", w.name)
		}
	}

	if c.HaltQuantum <= 0 {
		return errors.New("halt_quantum must be > 0")
	}
	if c.FetchBufferBlock < 4 || c.FetchBufferBlock&(c.FetchBufferBlock-1) != 0 {
		return errors.New("fetch_buffer_block must be a power of two >= 4")
	}
	if c.FetchBufferSize < c.FetchBufferBlock || c.FetchBufferSize%c.FetchBufferBlock != 0 {
		return errors.New("fetch_buffer_size must be a multiple of fetch_buffer_block")
	}
	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
