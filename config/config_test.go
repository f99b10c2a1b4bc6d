package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netemreplay/tc"
	"netemreplay/trace"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	p := cfg.Params()
	assert.Equal(t, uint32(100000), p.Limit)
	assert.Equal(t, uint64(37500000), p.Rate)
	assert.Equal(t, 36*time.Millisecond, p.Latency)
	assert.Equal(t, 33*time.Millisecond, p.Jitter)
	assert.Zero(t, p.LossPercent)
	assert.Equal(t, tc.DefaultDistributionPath, cfg.Netem.Distribution)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
interface: veth2
ingress: ifb0
netem:
  rate: 1250000
  distribution: uniform
trace:
  schema: loss-duration
  baseline:
    latency: 20ms
  reconfiguration:
    interval: 30s
    floor:
      loss: 25
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "veth2", cfg.Interface)
	assert.Equal(t, "ifb0", cfg.Ingress)
	assert.Equal(t, uint32(100000), cfg.Netem.Limit)
	assert.Equal(t, uint64(1250000), cfg.Netem.Rate)
	assert.Equal(t, trace.Uniform, cfg.Netem.Distribution)
	assert.Equal(t, trace.SchemaLossDuration, cfg.Trace.Schema)
	assert.Equal(t, 20*time.Millisecond, cfg.Trace.Baseline.Latency)
	assert.Equal(t, 33*time.Millisecond, cfg.Trace.Baseline.Jitter)

	pulse := cfg.Trace.Reconfiguration
	assert.True(t, pulse.Enabled)
	assert.Equal(t, 12*time.Second, pulse.Phase)
	assert.Equal(t, 30*time.Second, pulse.Interval)
	assert.Equal(t, 25, pulse.Floor.LossPercent)
	assert.Equal(t, 80*time.Millisecond, pulse.Floor.Latency)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown key", body: "interfaces: veth2\n"},
		{name: "bad duration", body: "trace:\n  baseline:\n    latency: soon\n"},
		{name: "loss out of range", body: "trace:\n  baseline:\n    loss: 150\n"},
		{name: "pulse longer than interval", body: "trace:\n  reconfiguration:\n    duration: 20s\n"},
		{name: "zero limit", body: "netem:\n  limit: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
