package tc

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an interface name does not resolve to an index.
	ErrNotFound = errors.New("interface not found")
	// ErrUnexpectedReply is returned when the kernel answers a link query with more than one message.
	ErrUnexpectedReply = errors.New("unexpected number of netlink replies")
	// ErrTooLarge is returned when a distribution file holds more than MaxDistributionSize samples.
	ErrTooLarge = fmt.Errorf("distribution exceeds %d samples", MaxDistributionSize)
)

// ValidationError reports a parameter rejected before any netlink call is made.
type ValidationError struct {
	Field string
	Value interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Value)
}

// ProtocolError wraps a netlink request the kernel rejected or answered with an unexpected shape.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ParseError reports the first malformed token of a distribution file.
type ParseError struct {
	Path  string
	Line  int
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: bad sample %q: %s", e.Path, e.Line, e.Token, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
