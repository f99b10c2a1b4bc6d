package tc

import (
	"fmt"

	"github.com/mdlayher/netlink"
	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

// Conn is the subset of *netlink.Conn a Session needs.
type Conn interface {
	Execute(m netlink.Message) ([]netlink.Message, error)
	Close() error
}

// Options configure Dial.
type Options struct {
	// NetNS names the network namespace (as under /var/run/netns) the session is opened in.
	// Empty means the namespace of the calling process.
	NetNS string
	Log   logrus.FieldLogger
}

// Session is a single rtnetlink socket. Every request on it is a full round trip that
// completes before the next one is sent; the resolver and the encoder share it.
//
// The kernel qdisc state it mutates is global to the namespace. Nothing else should
// change the shaped interfaces while a session drives them.
type Session struct {
	conn Conn
	log  logrus.FieldLogger
}

// Dial opens an rtnetlink session.
func Dial(opts Options) (*Session, error) {
	cfg := &netlink.Config{}
	if opts.NetNS != "" {
		ns, err := netns.GetFromName(opts.NetNS)
		if err != nil {
			return nil, fmt.Errorf("opening netns %s: %w", opts.NetNS, err)
		}
		defer ns.Close()
		cfg.NetNS = int(ns)
	}
	conn, err := netlink.Dial(unix.NETLINK_ROUTE, cfg)
	if err != nil {
		return nil, fmt.Errorf("dialing rtnetlink: %w", err)
	}
	return NewSession(conn, opts.Log), nil
}

// NewSession wraps an already open connection.
func NewSession(conn Conn, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{
		conn: conn,
		log:  log.WithField("package", "tc"),
	}
}

// Close releases the socket.
func (s *Session) Close() error {
	return s.conn.Close()
}
