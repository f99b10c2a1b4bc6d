package tc

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/josharian/native"
	"github.com/mdlayher/netlink"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Mode selects how a netem qdisc request treats existing state on the interface.
type Mode int

const (
	// ModeCreate fails when a root qdisc already exists.
	ModeCreate Mode = iota
	// ModeReplace creates the qdisc or replaces whatever root qdisc is there.
	ModeReplace
	// ModeChange modifies an existing netem qdisc in place.
	ModeChange
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeReplace:
		return "replace"
	case ModeChange:
		return "change"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func (m Mode) flags() (netlink.HeaderFlags, error) {
	switch m {
	case ModeCreate:
		return netlink.Create | netlink.Excl, nil
	case ModeReplace:
		return netlink.Create | netlink.Replace, nil
	case ModeChange:
		return 0, nil
	}
	return 0, &ValidationError{Field: "mode", Value: m}
}

// Params is the desired state of the netem qdisc on one interface.
type Params struct {
	Limit       uint32 // packets
	LossPercent int
	Rate        uint64 // bytes per second, 0 is unlimited
	Latency     time.Duration
	Jitter      time.Duration
	// Distribution is sent verbatim; nil leaves netem with uniform jitter.
	Distribution Distribution
}

// Validate checks the parameters without touching the kernel.
func (p Params) Validate() error {
	if p.LossPercent < 0 || p.LossPercent > 100 {
		return &ValidationError{Field: "loss percent", Value: p.LossPercent}
	}
	if p.Latency < 0 {
		return &ValidationError{Field: "latency", Value: p.Latency}
	}
	if p.Jitter < 0 {
		return &ValidationError{Field: "jitter", Value: p.Jitter}
	}
	if len(p.Distribution) > MaxDistributionSize {
		return &ValidationError{Field: "distribution size", Value: len(p.Distribution)}
	}
	return nil
}

// LossFraction scales a percentage to the kernel's 32 bit probability.
func LossFraction(percent int) uint32 {
	return uint32(math.Round(float64(math.MaxUint32) * float64(percent) / 100))
}

// LossPercent converts a kernel loss probability back to a percentage.
func LossPercent(frac uint32) float64 {
	return float64(frac) / float64(math.MaxUint32) * 100
}

// Apply sends one RTM_NEWQDISC request configuring netem as the root qdisc of ifindex
// and waits for the kernel's acknowledgement.
func (s *Session) Apply(ifindex uint32, mode Mode, p Params) error {
	flags, err := mode.flags()
	if err != nil {
		return err
	}
	data, err := EncodeNetem(ifindex, p)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"ifindex": ifindex,
		"mode":    mode,
		"loss":    p.LossPercent,
		"latency": p.Latency,
		"jitter":  p.Jitter,
		"rate":    p.Rate,
	}).Debug("applying netem")

	_, err = s.conn.Execute(netlink.Message{
		Header: netlink.Header{
			Type:  unix.RTM_NEWQDISC,
			Flags: netlink.Request | netlink.Acknowledge | flags,
		},
		Data: data,
	})
	if err != nil {
		return &ProtocolError{Op: fmt.Sprintf("%s netem on ifindex %d", mode, ifindex), Err: err}
	}
	return nil
}

// Values from include/uapi/linux/pkt_sched.h and rtnetlink.h.
const (
	tcaKind    = 1
	tcaOptions = 2

	tcaNetemCorr      = 1
	tcaNetemDelayDist = 2
	tcaNetemReorder   = 3
	tcaNetemCorrupt   = 4
	tcaNetemRate      = 6
	tcaNetemRate64    = 8
	tcaNetemLatency64 = 10
	tcaNetemJitter64  = 11
	tcaNetemSlot      = 12

	handleRoot = 0xffffffff
)

type attribute struct {
	kind    uint16
	payload []byte
}

// EncodeNetem builds the body of an RTM_NEWQDISC message: a tcmsg header followed by
// TCA_KIND and TCA_OPTIONS. The options blob is a tc_netem_qopt with the netem
// attributes appended in the order the kernel parses them.
func EncodeNetem(ifindex uint32, p Params) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// struct tc_netem_qopt: latency, limit, loss, gap, duplicate, jitter
	qopt := newStructWriter().
		u32(0).
		u32(p.Limit).
		u32(LossFraction(p.LossPercent)).
		u32(0).
		u32(0).
		u32(0).
		bytes()

	nested := netlink.NewAttributeEncoder()
	for _, a := range netemAttributes(p) {
		nested.Bytes(a.kind, a.payload)
	}
	inner, err := nested.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding netem attributes: %w", err)
	}

	ae := netlink.NewAttributeEncoder()
	ae.String(tcaKind, "netem")
	ae.Bytes(tcaOptions, append(qopt, inner...))
	attrs, err := ae.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding qdisc attributes: %w", err)
	}

	// struct tcmsg: family, pad1, pad2, ifindex, handle, parent, info
	hdr := newStructWriter().
		u8(unix.AF_UNSPEC).
		u8(0).
		u16(0).
		u32(ifindex).
		u32(0).
		u32(handleRoot).
		u32(0).
		bytes()
	return append(hdr, attrs...), nil
}

func netemAttributes(p Params) []attribute {
	attrs := []attribute{
		// struct tc_netem_corr: delay, loss, dup correlation
		{tcaNetemCorr, make([]byte, 12)},
	}
	if len(p.Distribution) > 0 {
		dist := newStructWriter()
		for _, v := range p.Distribution {
			dist.u16(uint16(v))
		}
		attrs = append(attrs, attribute{tcaNetemDelayDist, dist.bytes()})
	}
	return append(attrs,
		// struct tc_netem_reorder: probability, correlation
		attribute{tcaNetemReorder, make([]byte, 8)},
		// struct tc_netem_corrupt: probability, correlation
		attribute{tcaNetemCorrupt, make([]byte, 8)},
		// struct tc_netem_rate: rate, packet_overhead, cell_size, cell_overhead
		attribute{tcaNetemRate, make([]byte, 16)},
		// struct tc_netem_slot: min_delay, max_delay, max_packets, max_bytes, dist_delay, dist_jitter
		attribute{tcaNetemSlot, make([]byte, 40)},
		attribute{tcaNetemRate64, newStructWriter().u64(p.Rate).bytes()},
		attribute{tcaNetemLatency64, newStructWriter().u64(uint64(p.Latency.Nanoseconds())).bytes()},
		attribute{tcaNetemJitter64, newStructWriter().u64(uint64(p.Jitter.Nanoseconds())).bytes()},
	)
}

// structWriter lays out kernel structs field by field in host byte order.
type structWriter struct {
	order binary.ByteOrder
	b     []byte
}

func newStructWriter() *structWriter {
	return &structWriter{order: native.Endian}
}

func (w *structWriter) u8(v uint8) *structWriter {
	w.b = append(w.b, v)
	return w
}

func (w *structWriter) u16(v uint16) *structWriter {
	var buf [2]byte
	w.order.PutUint16(buf[:], v)
	w.b = append(w.b, buf[:]...)
	return w
}

func (w *structWriter) u32(v uint32) *structWriter {
	var buf [4]byte
	w.order.PutUint32(buf[:], v)
	w.b = append(w.b, buf[:]...)
	return w
}

func (w *structWriter) u64(v uint64) *structWriter {
	var buf [8]byte
	w.order.PutUint64(buf[:], v)
	w.b = append(w.b, buf[:]...)
	return w
}

func (w *structWriter) bytes() []byte {
	return w.b
}
