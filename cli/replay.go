package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/table"
	"github.com/sirupsen/logrus"

	"netemreplay/config"
	"netemreplay/tc"
	"netemreplay/trace"
)

type traceOptions struct {
	Config            string `short:"c" long:"config" env:"NETEMREPLAY_CONFIG" description:"optional: yaml config file"`
	Schema            string `long:"schema" choice:"auto" choice:"loss-flag" choice:"loss-duration" description:"optional: trace column layout; default: from the config, else detected from the header"`
	NoReconfiguration bool   `long:"no-reconfiguration" description:"do not merge reconfiguration pulses into the trace"`
}

type traceArgs struct {
	Trace string `positional-arg-name:"trace.csv" required:"yes"`
}

func (o *traceOptions) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if o.Config != "" {
		var err error
		if cfg, err = config.Load(o.Config); err != nil {
			return nil, err
		}
	}
	if o.Schema != "" {
		cfg.Trace.Schema = trace.Schema(o.Schema)
	}
	if o.NoReconfiguration {
		cfg.Trace.Reconfiguration.Enabled = false
	}
	return cfg, nil
}

func buildTrace(path string, cfg trace.Config) (*trace.Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := trace.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t, err := trace.Build(rows, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

type cmdRun struct {
	common
	traceOptions
	Interface    string    `short:"i" long:"interface" env:"NETEMREPLAY_INTERFACE" description:"interface to shape; overrides the config"`
	Ingress      string    `long:"ingress" env:"NETEMREPLAY_INGRESS" description:"optional: ifb companion that receives the same settings"`
	Distribution string    `long:"distribution" description:"optional: delay distribution table, or 'uniform'; overrides the config"`
	Reset        bool      `long:"reset" description:"remove the netem qdiscs when playback ends or is interrupted"`
	Args         traceArgs `positional-args:"yes"`
}

func (c *cmdRun) Execute(tail []string) error {
	log := c.logger()
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if c.Interface != "" {
		cfg.Interface = c.Interface
	}
	if c.Ingress != "" {
		cfg.Ingress = c.Ingress
	}
	if c.Distribution != "" {
		cfg.Netem.Distribution = c.Distribution
	}
	if c.NetNS != "" {
		cfg.NetNS = c.NetNS
	}
	if cfg.Interface == "" {
		return errors.New("no interface given; use --interface or set interface in the config")
	}

	t, err := buildTrace(c.Args.Trace, cfg.Trace)
	if err != nil {
		return err
	}
	if err := tc.EnsureNetem(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := tc.Dial(tc.Options{NetNS: cfg.NetNS, Log: log})
	if err != nil {
		return err
	}
	defer s.Close()

	if c.Reset {
		defer resetAll(log, cfg.NetNS, cfg.Interface, cfg.Ingress)
	}

	err = trace.RunTrace(ctx, s, t, cfg.Netem.Distribution, cfg.Params(), cfg.Interface, cfg.Ingress, log)
	if errors.Is(err, context.Canceled) {
		log.Info("playback interrupted")
		return nil
	}
	return err
}

func resetAll(log logrus.FieldLogger, netns string, ifaces ...string) {
	for _, iface := range ifaces {
		if iface == "" {
			continue
		}
		if err := tc.Reset(netns, iface); err != nil {
			log.WithError(err).WithField("interface", iface).Warn("reset failed")
			continue
		}
		log.WithField("interface", iface).Info("qdisc reset")
	}
}

type cmdBuild struct {
	common
	traceOptions
	JSON bool      `long:"json" description:"print json instead of a table"`
	Args traceArgs `positional-args:"yes"`
}

func (c *cmdBuild) Execute(tail []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	t, err := buildTrace(c.Args.Trace, cfg.Trace)
	if err != nil {
		return err
	}
	c.logger().WithFields(logrus.Fields{
		"events":   t.Len(),
		"duration": t.Duration(),
		"schema":   cfg.Trace.Schema,
	}).Debug("trace built")

	if c.JSON {
		return printJSON(struct {
			Duration time.Duration `json:"duration"`
			Events   []trace.Event `json:"events"`
		}{t.Duration(), t.Events()})
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"#", "Offset", "Loss", "Latency", "Jitter"})
	for i, ev := range t.Events() {
		tw.AppendRow(table.Row{i, ev.Offset, fmt.Sprintf("%d%%", ev.LossPercent), ev.Latency, ev.Jitter})
	}
	tw.AppendFooter(table.Row{"", t.Duration(), "", "", ""})
	fmt.Println(tw.Render())
	fmt.Println()
	return nil
}
