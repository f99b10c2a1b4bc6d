package tc

import (
	"fmt"
	"time"
)

// Rule is the operator-facing description of a one-shot netem setting, as given to the
// set command.
type Rule struct {
	Iface              string
	LatencyMs          *uint
	JitterMs           *uint
	PacketLossPct      *int
	LinkSpeedRateBytes *uint64
	Limit              *uint32
}

// Params converts the rule into encoder parameters, starting from base for every
// field the rule leaves unset.
func (r *Rule) Params(base Params) Params {
	p := base
	if r.LatencyMs != nil {
		p.Latency = time.Duration(*r.LatencyMs) * time.Millisecond
	}
	if r.JitterMs != nil {
		p.Jitter = time.Duration(*r.JitterMs) * time.Millisecond
	}
	if r.PacketLossPct != nil {
		p.LossPercent = *r.PacketLossPct
	}
	if r.LinkSpeedRateBytes != nil {
		p.Rate = *r.LinkSpeedRateBytes
	}
	if r.Limit != nil {
		p.Limit = *r.Limit
	}
	return p
}

func (r *Rule) String() string {
	return fmt.Sprintf("%s: latency=%s jitter=%s loss=%s rate=%s limit=%s",
		r.Iface, ptrToString(r.LatencyMs), ptrToString(r.JitterMs), ptrToString(r.PacketLossPct),
		ptrToString(r.LinkSpeedRateBytes), ptrToString(r.Limit))
}

func ptrToString[T any](ptr *T) string {
	if ptr == nil {
		return "-"
	}
	return fmt.Sprint(*ptr)
}
