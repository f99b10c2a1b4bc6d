// Package config holds the settings of a replay run: which interfaces to shape, the
// fixed part of the netem qdisc and how the trace is turned into events.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"netemreplay/tc"
	"netemreplay/trace"
)

// Netem is the part of the qdisc no trace event changes.
type Netem struct {
	Limit uint32 `yaml:"limit"`
	// Rate in bytes per second, 0 is unlimited.
	Rate uint64 `yaml:"rate"`
	// Distribution is a delay table path or trace.Uniform.
	Distribution string `yaml:"distribution"`
}

// Config is everything a replay run needs besides the trace file itself.
type Config struct {
	Interface string       `yaml:"interface"`
	Ingress   string       `yaml:"ingress"`
	NetNS     string       `yaml:"netns"`
	Netem     Netem        `yaml:"netem"`
	Trace     trace.Config `yaml:"trace"`
}

// Default is a 300 Mbit/s link with 36ms of pareto distributed delay.
func Default() *Config {
	return &Config{
		Netem: Netem{
			Limit:        100000,
			Rate:         300_000_000 / 8,
			Distribution: tc.DefaultDistributionPath,
		},
		Trace: trace.DefaultConfig(),
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the netem settings and the trace configuration.
func (c *Config) Validate() error {
	if c.Netem.Limit == 0 {
		return errors.New("netem limit must be positive")
	}
	return c.Trace.Validate()
}

// Params is the qdisc state at trace start, without the distribution table.
func (c *Config) Params() tc.Params {
	return tc.Params{
		Limit:       c.Netem.Limit,
		Rate:        c.Netem.Rate,
		LossPercent: c.Trace.Baseline.LossPercent,
		Latency:     c.Trace.Baseline.Latency,
		Jitter:      c.Trace.Baseline.Jitter,
	}
}
