package tc

import (
	"fmt"
	"time"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// Qdisc is a flattened view of one qdisc as reported by the kernel.
type Qdisc struct {
	Iface   string         `json:"dev"`
	Kind    string         `json:"kind"`
	Handle  string         `json:"handle"`
	Parent  string         `json:"parent"`
	Root    bool           `json:"root"`
	Options *NetemSettings `json:"options,omitempty"`
}

// NetemSettings holds the netem fields readable back from the kernel.
type NetemSettings struct {
	Limit       uint32        `json:"limit"`
	LossPercent float64       `json:"loss"`
	Latency     time.Duration `json:"delay"`
	Jitter      time.Duration `json:"jitter"`
}

// the kernel dumps tc_netem_qopt latency/jitter in psched ticks of 64ns
const pschedShift = 6

func newHandle(nsName string) (*netlink.Handle, error) {
	if nsName == "" {
		return netlink.NewHandle()
	}
	ns, err := netns.GetFromName(nsName)
	if err != nil {
		return nil, fmt.Errorf("opening netns %s: %w", nsName, err)
	}
	defer ns.Close()
	return netlink.NewHandleAt(ns)
}

// ListIface lists interface names in the given namespace ("" for the current one).
func ListIface(nsName string) ([]string, error) {
	h, err := newHandle(nsName)
	if err != nil {
		return nil, err
	}
	defer h.Delete()
	links, err := h.LinkList()
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	iface := []string{}
	for _, l := range links {
		iface = append(iface, l.Attrs().Name)
	}
	return iface, nil
}

// ListQdisc lists qdiscs on every interface of the namespace.
func ListQdisc(nsName string) ([]*Qdisc, error) {
	h, err := newHandle(nsName)
	if err != nil {
		return nil, err
	}
	defer h.Delete()
	links, err := h.LinkList()
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	qdiscs := []*Qdisc{}
	for _, l := range links {
		list, err := h.QdiscList(l)
		if err != nil {
			return nil, fmt.Errorf("listing qdiscs on %s: %w", l.Attrs().Name, err)
		}
		for _, q := range list {
			qdiscs = append(qdiscs, toQdisc(l.Attrs().Name, q))
		}
	}
	return qdiscs, nil
}

func toQdisc(iface string, q netlink.Qdisc) *Qdisc {
	attrs := q.Attrs()
	out := &Qdisc{
		Iface:  iface,
		Kind:   q.Type(),
		Handle: netlink.HandleStr(attrs.Handle),
		Parent: netlink.HandleStr(attrs.Parent),
		Root:   attrs.Parent == netlink.HANDLE_ROOT,
	}
	if n, ok := q.(*netlink.Netem); ok {
		out.Options = &NetemSettings{
			Limit:       n.Limit,
			LossPercent: LossPercent(n.Loss),
			Latency:     time.Duration(n.Latency) << pschedShift,
			Jitter:      time.Duration(n.Jitter) << pschedShift,
		}
	}
	return out
}
