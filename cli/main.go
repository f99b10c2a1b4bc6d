package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"netemreplay/config"
	"netemreplay/tc"
	"netemreplay/trace"
)

type command struct {
	Run   cmdRun   `command:"run" description:"replay a connectivity trace onto an interface"`
	Build cmdBuild `command:"build" description:"print the events a trace replays to, without touching the kernel"`
	Set   cmdSet   `command:"set" description:"apply a single netem setting"`
	Reset cmdReset `command:"reset" description:"remove root qdiscs"`
	Show  struct {
		Iface cmdShowIface `command:"iface" description:"list interfaces"`
		Qdisc cmdShowQdisc `command:"qdisc" description:"list qdiscs"`
	} `command:"show" description:"list interfaces or qdiscs"`
}

type common struct {
	NetNS   string `long:"netns" env:"NETEMREPLAY_NETNS" description:"optional: named network namespace to operate in"`
	Verbose bool   `long:"verbose" env:"NETEMREPLAY_VERBOSE" description:"enable verbose logging"`
}

func (c *common) logger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if c.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

type cmdSet struct {
	common
	Interface          string  `short:"i" long:"interface" required:"yes" description:"interface to shape"`
	LatencyMs          *uint   `short:"l" long:"latency-ms" description:"optional: latency in milliseconds"`
	JitterMs           *uint   `short:"j" long:"jitter-ms" description:"optional: jitter in milliseconds"`
	PacketLossPct      *int    `short:"p" long:"loss-pct" description:"optional: packet loss percentage"`
	LinkSpeedRateBytes *uint64 `short:"e" long:"rate-bytes" description:"optional: link speed rate, in bytes per second"`
	Limit              *uint32 `long:"limit" description:"optional: queue limit in packets"`
	Distribution       string  `long:"distribution" default:"/usr/lib/tc/pareto.dist" description:"delay distribution table, or 'uniform'"`
}

type cmdReset struct {
	common
	Interface string `short:"i" long:"interface" description:"optional: specify an interface; default action: all interfaces"`
}

type cmdShowIface struct {
	NetNS string `long:"netns" env:"NETEMREPLAY_NETNS" description:"optional: named network namespace"`
}

type cmdShowQdisc struct {
	NetNS string `long:"netns" env:"NETEMREPLAY_NETNS" description:"optional: named network namespace"`
	JSON  bool   `long:"json" description:"print json instead of a table"`
}

func main() {
	cmd := &command{}
	_, err := flags.Parse(cmd)
	if err != nil {
		switch err.(type) {
		case *flags.Error:
			fmt.Fprintln(os.Stderr, "Use '--help' for more details.")
		default:
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func (c *cmdSet) Execute(tail []string) error {
	log := c.logger()
	if err := tc.EnsureNetem(); err != nil {
		return err
	}
	rule := &tc.Rule{
		Iface:              c.Interface,
		LatencyMs:          c.LatencyMs,
		JitterMs:           c.JitterMs,
		PacketLossPct:      c.PacketLossPct,
		LinkSpeedRateBytes: c.LinkSpeedRateBytes,
		Limit:              c.Limit,
	}
	base := config.Default().Params()
	if c.Distribution != trace.Uniform {
		dist, err := tc.LoadDistribution(c.Distribution)
		if err != nil {
			return err
		}
		base.Distribution = dist
	}
	log.Debugf("set %s", rule)

	s, err := tc.Dial(tc.Options{NetNS: c.NetNS, Log: log})
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Set(rule.Iface, rule.Params(base))
}

func (c *cmdReset) Execute(tail []string) error {
	c.logger().WithField("interface", c.Interface).Debug("resetting root qdiscs")
	return tc.Reset(c.NetNS, c.Interface)
}

func (c *cmdShowIface) Execute(tail []string) error {
	data, err := tc.ListIface(c.NetNS)
	if err != nil {
		return err
	}
	for _, d := range data {
		fmt.Println(d)
	}
	return nil
}

func (c *cmdShowQdisc) Execute(tail []string) error {
	qdiscs, err := tc.ListQdisc(c.NetNS)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(qdiscs)
	}
	t := newTable()
	t.SortBy([]table.SortBy{
		{
			Name: "Iface",
			Mode: table.Asc,
		},
		{
			Name: "Handle",
			Mode: table.Asc,
		},
	})
	t.AppendHeader(table.Row{"Iface", "Kind", "Handle", "Parent", "Limit", "Loss", "Delay", "Jitter"})
	for _, q := range qdiscs {
		row := table.Row{q.Iface, q.Kind, q.Handle, q.Parent, "-", "-", "-", "-"}
		if o := q.Options; o != nil {
			row[4] = o.Limit
			row[5] = fmt.Sprintf("%.2f%%", o.LossPercent)
			row[6] = o.Latency
			row[7] = o.Jitter
		}
		t.AppendRow(row)
	}
	fmt.Println(t.Render())
	fmt.Println()
	return nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleDefault)
	tstyle := t.Style()
	tstyle.Options.DrawBorder = false
	tstyle.Options.SeparateColumns = false
	tstyle.Format.Header = text.FormatDefault
	tstyle.Format.Footer = text.FormatDefault
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err == nil && width > 0 {
		if width < 40 {
			width = 40
		}
		t.SetAllowedRowLength(width)
	}
	return t
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
