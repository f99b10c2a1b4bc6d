package trace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"netemreplay/tc"
)

// Uniform as a distribution path plays the trace without a delay table.
const Uniform = "uniform"

// Applier is the kernel side of playback. *tc.Session implements it.
type Applier interface {
	Resolve(name string) (uint32, error)
	Apply(ifindex uint32, mode tc.Mode, p tc.Params) error
}

// Clock abstracts time so playback can be driven by tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Player applies a trace to one interface and, optionally, its ingress companion.
type Player struct {
	Netem Applier
	// Base supplies everything an event does not: limit, rate and distribution.
	Base  tc.Params
	Clock Clock
	Log   logrus.FieldLogger
}

type target struct {
	name    string
	ifindex uint32
}

// Run resolves the interfaces, replaces their root qdisc with the first event and then
// changes it in place as each later event falls due. Events that are already late are
// applied at once; nothing is skipped or compressed. Once the last event is applied Run
// holds until the trace duration has passed. The first failure ends playback and is
// returned; the qdisc is left as it was at that point.
func (p *Player) Run(ctx context.Context, t *Trace, primary, ingress string) error {
	if t.Len() == 0 {
		return errors.New("trace has no events")
	}
	clock := p.Clock
	if clock == nil {
		clock = realClock{}
	}
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("package", "trace")

	names := []string{primary}
	if ingress != "" {
		names = append(names, ingress)
	}
	targets := make([]target, 0, len(names))
	for _, name := range names {
		index, err := p.Netem.Resolve(name)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", name, err)
		}
		targets = append(targets, target{name: name, ifindex: index})
	}

	start := clock.Now()
	log.WithFields(logrus.Fields{
		"events":   t.Len(),
		"duration": t.Duration(),
		"ifaces":   names,
	}).Info("starting playback")

	for n, ev := range t.events {
		if err := ctx.Err(); err != nil {
			return err
		}
		mode := tc.ModeReplace
		if n > 0 {
			mode = tc.ModeChange
			if wait := ev.Offset - clock.Now().Sub(start); wait > 0 {
				if err := clock.Sleep(ctx, wait); err != nil {
					return err
				}
			}
		}
		params := p.Base
		params.LossPercent = ev.LossPercent
		params.Latency = ev.Latency
		params.Jitter = ev.Jitter
		for _, tg := range targets {
			if err := p.Netem.Apply(tg.ifindex, mode, params); err != nil {
				return fmt.Errorf("event %d at %s on %s: %w", n, ev.Offset, tg.name, err)
			}
		}
		log.WithFields(logrus.Fields{
			"event":  n,
			"offset": ev.Offset,
			"lag":    clock.Now().Sub(start) - ev.Offset,
		}).Debug(ev.Impairment)
	}

	if wait := t.Duration() - clock.Now().Sub(start); wait > 0 {
		if err := clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
	log.Info("playback finished")
	return nil
}

// RunTrace loads the delay distribution and plays t. The distribution is read before any
// netlink request, so a bad table leaves the interfaces untouched.
func RunTrace(ctx context.Context, netem Applier, t *Trace, distributionPath string, base tc.Params, primary, ingress string, log logrus.FieldLogger) error {
	base.Distribution = nil
	if distributionPath != Uniform {
		dist, err := tc.LoadDistribution(distributionPath)
		if err != nil {
			return err
		}
		base.Distribution = dist
	}
	p := &Player{
		Netem: netem,
		Base:  base,
		Log:   log,
	}
	return p.Run(ctx, t, primary, ingress)
}
