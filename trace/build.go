package trace

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Config controls how rows become events.
type Config struct {
	Schema Schema `yaml:"schema"`
	// Baseline is the state outside loss windows.
	Baseline        Impairment  `yaml:"baseline"`
	Reconfiguration PulseConfig `yaml:"reconfiguration"`
}

// DefaultConfig mirrors the link the traces were recorded on.
func DefaultConfig() Config {
	return Config{
		Schema: SchemaAuto,
		Baseline: Impairment{
			LossPercent: 0,
			Latency:     36 * time.Millisecond,
			Jitter:      33 * time.Millisecond,
		},
		Reconfiguration: DefaultPulseConfig(),
	}
}

// Validate rejects configurations Build cannot honour.
func (c Config) Validate() error {
	switch c.Schema {
	case SchemaAuto, SchemaLossFlag, SchemaLossDuration:
	default:
		return fmt.Errorf("unknown trace schema %q", c.Schema)
	}
	if err := validateImpairment("baseline", c.Baseline); err != nil {
		return err
	}
	if c.Reconfiguration.Enabled {
		return c.Reconfiguration.Validate()
	}
	return nil
}

func validateImpairment(name string, i Impairment) error {
	if i.LossPercent < 0 || i.LossPercent > 100 {
		return fmt.Errorf("%s loss %d%% outside [0,100]", name, i.LossPercent)
	}
	if i.Latency < 0 || i.Jitter < 0 {
		return fmt.Errorf("%s latency and jitter must not be negative", name)
	}
	return nil
}

// Build converts rows into a trace. The first event is always the baseline at offset
// zero. Reconfiguration pulses are merged in when enabled. Any malformed row aborts
// the build with a *ParseError.
func Build(rows *Rows, cfg Config) (*Trace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	schema := cfg.Schema
	if schema == SchemaAuto {
		var err error
		if schema, err = DetectSchema(rows.Header); err != nil {
			return nil, err
		}
	}

	var (
		t   *Trace
		err error
	)
	switch schema {
	case SchemaLossFlag:
		t, err = buildLossFlag(rows.Records, cfg.Baseline)
	case SchemaLossDuration:
		t, err = buildLossDuration(rows.Records, cfg.Baseline)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Reconfiguration.Enabled {
		t = t.WithReconfigurations(cfg.Reconfiguration)
	}
	return t, nil
}

func outage(baseline Impairment) Impairment {
	baseline.LossPercent = 100
	return baseline
}

func requireFields(row Row) error {
	if len(row.Fields) < 2 {
		return &ParseError{Line: row.Line, Err: fmt.Errorf("expected 2 columns, got %d", len(row.Fields))}
	}
	return nil
}

// buildLossFlag emits one event per row that changes the state. Rows must be in time order.
func buildLossFlag(rows []Row, baseline Impairment) (*Trace, error) {
	events := []Event{{Offset: 0, Impairment: baseline}}
	current := baseline
	var last time.Duration
	for _, row := range rows {
		if err := requireFields(row); err != nil {
			return nil, err
		}
		at, err := parseSeconds(row.Fields[0])
		if err != nil {
			return nil, &ParseError{Line: row.Line, Err: fmt.Errorf("relative time: %w", err)}
		}
		if at < last {
			return nil, &ParseError{Line: row.Line, Err: fmt.Errorf("relative time %s before previous row %s", at, last)}
		}
		last = at

		var state Impairment
		switch flag := strings.TrimSpace(row.Fields[1]); flag {
		case "True":
			state = outage(baseline)
		case "False":
			state = baseline
		default:
			return nil, &ParseError{Line: row.Line, Err: fmt.Errorf("loss flag %q is neither True nor False", flag)}
		}
		if state == current {
			continue
		}
		events = append(events, Event{Offset: at, Impairment: state})
		current = state
	}
	return &Trace{events: events, duration: last}, nil
}

type window struct {
	start, end time.Duration
}

// buildLossDuration unions the loss windows of all rows and emits a begin and an end
// event for each resulting window.
func buildLossDuration(rows []Row, baseline Impairment) (*Trace, error) {
	var (
		windows  []window
		duration time.Duration
	)
	for _, row := range rows {
		if err := requireFields(row); err != nil {
			return nil, err
		}
		at, err := parseSeconds(row.Fields[0])
		if err != nil {
			return nil, &ParseError{Line: row.Line, Err: fmt.Errorf("timestamp: %w", err)}
		}
		if at < 0 {
			return nil, &ParseError{Line: row.Line, Err: errors.New("negative timestamp")}
		}
		length, err := parseSeconds(row.Fields[1])
		if err != nil {
			return nil, &ParseError{Line: row.Line, Err: fmt.Errorf("loss duration: %w", err)}
		}
		if at > duration {
			duration = at
		}
		if length <= 0 {
			continue
		}
		if length > math.MaxInt64-at {
			return nil, &ParseError{Line: row.Line, Err: fmt.Errorf("loss window %s + %s out of range", at, length)}
		}
		w := window{start: at, end: at + length}
		if w.end > duration {
			duration = w.end
		}
		windows = append(windows, w)
	}

	sort.SliceStable(windows, func(i, j int) bool { return windows[i].start < windows[j].start })
	var merged []window
	for _, w := range windows {
		if n := len(merged); n > 0 && w.start <= merged[n-1].end {
			if w.end > merged[n-1].end {
				merged[n-1].end = w.end
			}
			continue
		}
		merged = append(merged, w)
	}

	events := []Event{{Offset: 0, Impairment: baseline}}
	for _, w := range merged {
		events = append(events,
			Event{Offset: w.start, Impairment: outage(baseline)},
			Event{Offset: w.end, Impairment: baseline},
		)
	}
	return &Trace{events: events, duration: duration}, nil
}
