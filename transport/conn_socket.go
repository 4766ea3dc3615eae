package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"time"
)

const (
	// DefaultRecvPoll is how long a ConnSocket read waits for data before
	// reporting would-block.
	DefaultRecvPoll = time.Millisecond

	// DefaultWriteTimeout bounds a single send on a connection.
	DefaultWriteTimeout = 2 * time.Second
)

// ConnSocket adapts any net.Conn to the non-blocking socket contract by
// polling reads with a short deadline. It works on every platform and on
// in-memory pipes.
type ConnSocket struct {
	conn         net.Conn
	recvPoll     time.Duration
	writeTimeout time.Duration
}

// NewConnSocket wraps conn. Zero durations select the defaults.
func NewConnSocket(conn net.Conn, recvPoll, writeTimeout time.Duration) *ConnSocket {
	if recvPoll <= 0 {
		recvPoll = DefaultRecvPoll
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &ConnSocket{
		conn:         conn,
		recvPoll:     recvPoll,
		writeTimeout: writeTimeout,
	}
}

// Recv reads whatever is available within the poll window.
func (s *ConnSocket) Recv(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	// A closed conn or pipe rejects the deadline; the read below then reports
	// EOF for a remote close and the close error for a local one, without
	// blocking.
	if err := s.conn.SetReadDeadline(time.Now().Add(s.recvPoll)); err != nil &&
		!errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, net.ErrClosed) {
		return 0, err
	}
	n, err := s.conn.Read(p)
	if n > 0 {
		// A trailing error resurfaces on the next call.
		return n, nil
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return 0, nil
}

// Send writes p, blocking at most the write timeout.
func (s *ConnSocket) Send(p []byte) (int, error) {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return 0, err
	}
	return s.conn.Write(p)
}

// Close closes the wrapped connection.
func (s *ConnSocket) Close() error {
	return s.conn.Close()
}

// RemoteAddr returns the peer address.
func (s *ConnSocket) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
