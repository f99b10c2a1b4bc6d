package tc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
)

func TestToQdiscNetem(t *testing.T) {
	q := &netlink.Netem{
		QdiscAttrs: netlink.QdiscAttrs{
			Handle: netlink.MakeHandle(0x8001, 0),
			Parent: netlink.HANDLE_ROOT,
		},
		Limit:   100000,
		Loss:    LossFraction(50),
		Latency: uint32((36 * time.Millisecond) >> pschedShift),
		Jitter:  uint32((33 * time.Millisecond) >> pschedShift),
	}
	got := toQdisc("veth2", q)

	assert.Equal(t, "veth2", got.Iface)
	assert.Equal(t, "netem", got.Kind)
	assert.Equal(t, "8001:0", got.Handle)
	assert.Equal(t, "root", got.Parent)
	assert.True(t, got.Root)
	require.NotNil(t, got.Options)
	assert.Equal(t, uint32(100000), got.Options.Limit)
	assert.InDelta(t, 50, got.Options.LossPercent, 1e-6)
	assert.Equal(t, 36*time.Millisecond, got.Options.Latency)
	assert.Equal(t, 33*time.Millisecond, got.Options.Jitter)
}

func TestToQdiscOther(t *testing.T) {
	q := &netlink.GenericQdisc{
		QdiscAttrs: netlink.QdiscAttrs{
			Handle: netlink.MakeHandle(1, 0),
			Parent: netlink.MakeHandle(0x8001, 1),
		},
		QdiscType: "fq_codel",
	}
	got := toQdisc("eth0", q)
	assert.Equal(t, "fq_codel", got.Kind)
	assert.False(t, got.Root)
	assert.Nil(t, got.Options)
}
