package tc

import (
	"errors"
	"testing"

	"github.com/josharian/native"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newLinkMessage(index int32) netlink.Message {
	data := make([]byte, sizeofIfInfomsg)
	native.Endian.PutUint32(data[4:8], uint32(index))
	return netlink.Message{
		Header: netlink.Header{Type: unix.RTM_NEWLINK},
		Data:   data,
	}
}

func TestResolve(t *testing.T) {
	var requested string
	conn := nltest.Dial(func(req []netlink.Message) ([]netlink.Message, error) {
		require.Len(t, req, 1)
		assert.Equal(t, netlink.HeaderType(unix.RTM_GETLINK), req[0].Header.Type)
		assert.Zero(t, req[0].Header.Flags&netlink.Dump)

		ad, err := netlink.NewAttributeDecoder(req[0].Data[sizeofIfInfomsg:])
		require.NoError(t, err)
		for ad.Next() {
			if ad.Type() == unix.IFLA_IFNAME {
				requested = ad.String()
			}
		}
		require.NoError(t, ad.Err())
		return []netlink.Message{newLinkMessage(12)}, nil
	})
	s := NewSession(conn, nil)
	defer s.Close()

	index, err := s.Resolve("veth2")
	require.NoError(t, err)
	assert.Equal(t, uint32(12), index)
	assert.Equal(t, "veth2", requested)
}

func TestResolveNoDevice(t *testing.T) {
	conn := nltest.Dial(func(req []netlink.Message) ([]netlink.Message, error) {
		return nltest.Error(int(unix.ENODEV), req)
	})
	s := NewSession(conn, nil)
	defer s.Close()

	_, err := s.Resolve("nope0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveReplyShapes(t *testing.T) {
	tests := []struct {
		name    string
		replies []netlink.Message
		check   func(t *testing.T, err error)
	}{
		{
			name:    "no reply",
			replies: nil,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name:    "two replies",
			replies: []netlink.Message{newLinkMessage(1), newLinkMessage(2)},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUnexpectedReply)
			},
		},
		{
			name:    "short reply",
			replies: []netlink.Message{{Header: netlink.Header{Type: unix.RTM_NEWLINK}, Data: make([]byte, 8)}},
			check: func(t *testing.T, err error) {
				var perr *ProtocolError
				assert.True(t, errors.As(err, &perr), "got %v", err)
			},
		},
		{
			name:    "wrong type",
			replies: []netlink.Message{{Header: netlink.Header{Type: unix.RTM_NEWADDR}, Data: make([]byte, 16)}},
			check: func(t *testing.T, err error) {
				var perr *ProtocolError
				assert.True(t, errors.As(err, &perr), "got %v", err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &recordingConn{replies: tt.replies}
			_, err := NewSession(conn, nil).Resolve("eth0")
			require.Error(t, err)
			tt.check(t, err)
			assert.Len(t, conn.reqs, 1)
		})
	}
}

func TestResolveOtherKernelError(t *testing.T) {
	conn := &recordingConn{err: unix.EPERM}
	_, err := NewSession(conn, nil).Resolve("eth0")
	var perr *ProtocolError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.ErrorIs(t, err, unix.EPERM)
}
