// Package trace turns recorded connectivity rows into an ordered list of netem changes
// and plays that list back against the kernel in real time.
package trace

import (
	"fmt"
	"time"
)

// Impairment is the part of the netem state that changes over a trace.
type Impairment struct {
	LossPercent int           `json:"loss" yaml:"loss"`
	Latency     time.Duration `json:"latency" yaml:"latency"`
	Jitter      time.Duration `json:"jitter" yaml:"jitter"`
}

// Max combines two impairments field by field, keeping the worse value of each.
func (i Impairment) Max(o Impairment) Impairment {
	if o.LossPercent > i.LossPercent {
		i.LossPercent = o.LossPercent
	}
	if o.Latency > i.Latency {
		i.Latency = o.Latency
	}
	if o.Jitter > i.Jitter {
		i.Jitter = o.Jitter
	}
	return i
}

func (i Impairment) String() string {
	return fmt.Sprintf("loss=%d%% latency=%s jitter=%s", i.LossPercent, i.Latency, i.Jitter)
}

// Event switches the interface to Impairment once Offset has elapsed since playback start.
type Event struct {
	Offset time.Duration `json:"offset"`
	Impairment
}

func (e Event) String() string {
	return fmt.Sprintf("+%s %s", e.Offset, e.Impairment)
}

// Trace is an immutable, offset ordered event list. The first event is the state
// established when playback starts.
type Trace struct {
	events   []Event
	duration time.Duration
}

// Events returns a copy of the ordered events.
func (t *Trace) Events() []Event {
	return append([]Event(nil), t.events...)
}

// Len is the number of events.
func (t *Trace) Len() int {
	return len(t.events)
}

// Duration is how long playback lasts: the end of the recording or the last event,
// whichever comes later.
func (t *Trace) Duration() time.Duration {
	if n := len(t.events); n > 0 && t.events[n-1].Offset > t.duration {
		return t.events[n-1].Offset
	}
	return t.duration
}
