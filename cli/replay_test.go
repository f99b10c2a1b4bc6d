package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netemreplay/trace"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeFile(t, "replay.yaml", "interface: veth2\ntrace:\n  schema: loss-flag\n")
	o := &traceOptions{Config: path, Schema: "loss-duration", NoReconfiguration: true}
	cfg, err := o.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "veth2", cfg.Interface)
	assert.Equal(t, trace.SchemaLossDuration, cfg.Trace.Schema)
	assert.False(t, cfg.Trace.Reconfiguration.Enabled)

	cfg, err = (&traceOptions{}).loadConfig()
	require.NoError(t, err)
	assert.Equal(t, trace.SchemaAuto, cfg.Trace.Schema)
	assert.True(t, cfg.Trace.Reconfiguration.Enabled)
}

func TestBuildTrace(t *testing.T) {
	path := writeFile(t, "trace.csv", "timestamp,loss_duration\n2.0,1.0\n")
	cfg, err := (&traceOptions{NoReconfiguration: true}).loadConfig()
	require.NoError(t, err)

	tr, err := buildTrace(path, cfg.Trace)
	require.NoError(t, err)
	assert.Equal(t, 3, tr.Len())
	assert.Equal(t, 3*time.Second, tr.Duration())

	bad := writeFile(t, "bad.csv", "timestamp,loss_duration\n2.0,x\n")
	_, err = buildTrace(bad, cfg.Trace)
	var perr *trace.ParseError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, 2, perr.Line)
	assert.Contains(t, err.Error(), bad)
}
