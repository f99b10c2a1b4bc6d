package tc

import (
	"errors"
	"fmt"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"
)

// sizeof(struct ifinfomsg)
const sizeofIfInfomsg = 16

// Resolve returns the kernel index of the interface called name.
func (s *Session) Resolve(name string) (uint32, error) {
	ae := netlink.NewAttributeEncoder()
	ae.String(unix.IFLA_IFNAME, name)
	attrs, err := ae.Encode()
	if err != nil {
		return 0, err
	}

	req := netlink.Message{
		Header: netlink.Header{
			Type:  unix.RTM_GETLINK,
			Flags: netlink.Request,
		},
		Data: append(make([]byte, sizeofIfInfomsg), attrs...),
	}
	req.Data[0] = unix.AF_UNSPEC

	replies, err := s.conn.Execute(req)
	if err != nil {
		if errors.Is(err, unix.ENODEV) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return 0, &ProtocolError{Op: "get link " + name, Err: err}
	}
	return parseLinkReplies(name, replies)
}

func parseLinkReplies(name string, replies []netlink.Message) (uint32, error) {
	switch {
	case len(replies) == 0:
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	case len(replies) > 1:
		return 0, fmt.Errorf("get link %s: %w (%d)", name, ErrUnexpectedReply, len(replies))
	}
	m := replies[0]
	if m.Header.Type != unix.RTM_NEWLINK || len(m.Data) < sizeofIfInfomsg {
		return 0, &ProtocolError{
			Op:  "get link " + name,
			Err: fmt.Errorf("malformed reply: type %d, %d bytes", m.Header.Type, len(m.Data)),
		}
	}
	index := nlenc.Int32(m.Data[4:8])
	if index <= 0 {
		return 0, &ProtocolError{Op: "get link " + name, Err: fmt.Errorf("invalid ifindex %d", index)}
	}
	return uint32(index), nil
}
