package interfaces

import "github.com/opd-ai/airtunes/crypto"

// ISocket is a non-blocking byte stream.
//
// Recv and Send never park the calling goroutine waiting for the peer. When
// no data or buffer space is available they return transport.ErrWouldBlock.
// An orderly close by the peer is reported by Recv as io.EOF or as a
// zero-byte read with a nil error.
type ISocket interface {
	// Recv reads up to len(p) bytes.
	Recv(p []byte) (int, error)

	// Send writes up to len(p) bytes and reports how many were accepted.
	Send(p []byte) (int, error)

	// Close releases the underlying descriptor.
	Close() error

	// RemoteAddr identifies the peer for logging.
	RemoteAddr() string
}

// IKeyProvider supplies the session keys for one connection. The keys are
// owned by the provider; consumers borrow them for the connection lifetime.
type IKeyProvider interface {
	SessionKeys() (*crypto.SessionKeys, error)
}
