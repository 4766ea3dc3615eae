//go:build unix

package transport

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// RawSocket performs true non-blocking reads on the connection's descriptor.
// The runtime already keeps network descriptors in non-blocking mode; a read
// that hits EAGAIN is surfaced as ErrWouldBlock instead of parking on the
// poller. Sends go through the runtime poller with a deadline.
type RawSocket struct {
	conn         net.Conn
	raw          syscall.RawConn
	writeTimeout time.Duration
}

// NewRawSocket wraps a descriptor-backed connection such as *net.TCPConn.
func NewRawSocket(conn net.Conn, writeTimeout time.Duration) (*RawSocket, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, ErrNoRawConn
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, err
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewRawSocket",
		"remote":   conn.RemoteAddr().String(),
	}).Debug("Raw non-blocking socket created")

	return &RawSocket{conn: conn, raw: raw, writeTimeout: writeTimeout}, nil
}

// Recv issues a single read(2) on the descriptor.
func (s *RawSocket) Recv(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var n int
	var opErr error
	err := s.raw.Read(func(fd uintptr) bool {
		n, opErr = unix.Read(int(fd), p)
		return true
	})
	if err != nil {
		return 0, err
	}
	if opErr != nil {
		if errors.Is(opErr, unix.EAGAIN) || errors.Is(opErr, unix.EWOULDBLOCK) || errors.Is(opErr, unix.EINTR) {
			return 0, ErrWouldBlock
		}
		return 0, opErr
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Send writes p, blocking at most the write timeout.
func (s *RawSocket) Send(p []byte) (int, error) {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return 0, err
	}
	return s.conn.Write(p)
}

// Close closes the connection.
func (s *RawSocket) Close() error {
	return s.conn.Close()
}

// RemoteAddr returns the peer address.
func (s *RawSocket) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}
