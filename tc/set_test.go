package tc

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModules(t *testing.T) {
	in := `sch_netem 20480 1 - Live 0x0000000000000000
ifb 16384 0 - Live 0x0000000000000000

veth 36864 0 - Live 0x0000000000000000
`
	mods, err := parseModules(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"sch_netem", "ifb", "veth"}, mods)
}

func TestRuleParams(t *testing.T) {
	latency := uint(80)
	loss := 5
	rate := uint64(1250000)
	r := &Rule{Iface: "veth2", LatencyMs: &latency, PacketLossPct: &loss, LinkSpeedRateBytes: &rate}

	base := baseParams()
	base.Distribution = Distribution{1, 2}
	p := r.Params(base)

	assert.Equal(t, 80*time.Millisecond, p.Latency)
	assert.Equal(t, 33*time.Millisecond, p.Jitter)
	assert.Equal(t, 5, p.LossPercent)
	assert.Equal(t, uint64(1250000), p.Rate)
	assert.Equal(t, uint32(100000), p.Limit)
	assert.Equal(t, Distribution{1, 2}, p.Distribution)
	assert.Equal(t, "veth2: latency=80 jitter=- loss=5 rate=1250000 limit=-", r.String())
}

func TestSetResolvesThenReplaces(t *testing.T) {
	conn := &recordingConn{}
	s := NewSession(conn, nil)

	// the recording conn answers the link query with nothing
	err := s.Set("veth2", baseParams())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, conn.reqs, 1)

	conn = &recordingConn{}
	p := baseParams()
	p.LossPercent = 101
	assert.Error(t, NewSession(conn, nil).Set("veth2", p))
	assert.Empty(t, conn.reqs)
}
