//go:build !unix

package transport

import (
	"net"
	"time"
)

// RawSocket falls back to deadline polling where descriptors cannot be
// read directly.
type RawSocket struct {
	*ConnSocket
}

// NewRawSocket wraps conn with a ConnSocket.
func NewRawSocket(conn net.Conn, writeTimeout time.Duration) (*RawSocket, error) {
	return &RawSocket{ConnSocket: NewConnSocket(conn, DefaultRecvPoll, writeTimeout)}, nil
}
