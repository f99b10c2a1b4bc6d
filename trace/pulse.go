package trace

import (
	"errors"
	"sort"
	"time"
)

// PulseConfig describes the short, periodic degradation seen while the network
// reconfigures. During each pulse every field is at least as bad as Floor.
type PulseConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Phase    time.Duration `yaml:"phase"`
	Interval time.Duration `yaml:"interval"`
	Duration time.Duration `yaml:"duration"`
	Floor    Impairment    `yaml:"floor"`
}

// DefaultPulseConfig starts 12s in and repeats every 15s for 100ms.
func DefaultPulseConfig() PulseConfig {
	return PulseConfig{
		Enabled:  true,
		Phase:    12 * time.Second,
		Interval: 15 * time.Second,
		Duration: 100 * time.Millisecond,
		Floor: Impairment{
			LossPercent: 50,
			Latency:     80 * time.Millisecond,
			Jitter:      40 * time.Millisecond,
		},
	}
}

// Validate requires a non-negative phase and pulses shorter than their interval.
func (p PulseConfig) Validate() error {
	if p.Phase < 0 {
		return errors.New("reconfiguration phase must not be negative")
	}
	if p.Interval <= 0 || p.Duration <= 0 {
		return errors.New("reconfiguration interval and duration must be positive")
	}
	if p.Duration >= p.Interval {
		return errors.New("reconfiguration duration must be shorter than its interval")
	}
	return validateImpairment("reconfiguration floor", p.Floor)
}

// WithReconfigurations returns a new trace with a pulse merged in at Phase, Phase+Interval
// and so on while the pulse starts before the end of the trace. Merging is idempotent:
// applying the same pulses twice gives the same events as applying them once.
func (t *Trace) WithReconfigurations(p PulseConfig) *Trace {
	events := t.Events()
	if p.Interval > 0 && p.Duration > 0 {
		end := t.Duration()
		for start := p.Phase; start < end; start += p.Interval {
			events = mergePulse(events, start, start+p.Duration, p.Floor)
		}
	}
	return &Trace{events: events, duration: t.duration}
}

// mergePulse raises the state in effect over [start, end) to at least floor. The state
// the events describe just before end is restored at end unless an event already lands there.
func mergePulse(events []Event, start, end time.Duration, floor Impairment) []Event {
	i := sort.Search(len(events), func(k int) bool { return events[k].Offset > start })
	if i == 0 {
		return events
	}
	j := sort.Search(len(events), func(k int) bool { return events[k].Offset >= end })
	before := events[i-1].Impairment
	after := events[j-1].Impairment
	atEnd := j < len(events) && events[j].Offset == end

	out := make([]Event, 0, len(events)+2)
	out = append(out, events[:i]...)
	current := before.Max(floor)
	if current != before {
		if last := &out[len(out)-1]; last.Offset == start {
			last.Impairment = current
		} else {
			out = append(out, Event{Offset: start, Impairment: current})
		}
	}
	for _, ev := range events[i:j] {
		ev.Impairment = ev.Max(floor)
		current = ev.Impairment
		out = append(out, ev)
	}
	if !atEnd && current != after {
		out = append(out, Event{Offset: end, Impairment: after})
	}
	return append(out, events[j:]...)
}
