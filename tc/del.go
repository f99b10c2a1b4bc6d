package tc

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// Reset removes the root qdisc from the given interface, letting the kernel fall back to
// its default; if iface is empty, every interface in the namespace is reset.
func Reset(nsName, iface string) error {
	h, err := newHandle(nsName)
	if err != nil {
		return err
	}
	defer h.Delete()

	var links []netlink.Link
	if iface == "" {
		links, err = h.LinkList()
		if err != nil {
			return fmt.Errorf("listing links: %w", err)
		}
	} else {
		l, err := h.LinkByName(iface)
		if err != nil {
			return fmt.Errorf("interface %s does not exist: %w", iface, err)
		}
		links = append(links, l)
	}

	for _, l := range links {
		qdiscs, err := h.QdiscList(l)
		if err != nil {
			return fmt.Errorf("listing qdiscs on %s: %w", l.Attrs().Name, err)
		}
		for _, q := range qdiscs {
			// handle 0 is the kernel's built-in default and cannot be deleted
			if q.Attrs().Parent != netlink.HANDLE_ROOT || q.Attrs().Handle == 0 {
				continue
			}
			if err := h.QdiscDel(q); err != nil {
				return fmt.Errorf("deleting %s qdisc on %s: %w", q.Type(), l.Attrs().Name, err)
			}
		}
	}
	return nil
}
