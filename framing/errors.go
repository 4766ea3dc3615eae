package framing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBlockLength indicates a frame declared a length of zero,
	// above the block ceiling, or above the caller's buffer capacity.
	ErrInvalidBlockLength = errors.New("invalid encrypted block length")

	// ErrAuthentication indicates a frame failed AEAD verification. Nonce
	// synchrony with the peer can no longer be trusted.
	ErrAuthentication = errors.New("frame authentication failed")

	// ErrReaderClosed indicates the reader's buffer has been released.
	ErrReaderClosed = errors.New("frame reader closed")

	// ErrNoKeys indicates the framing layer was built without session keys.
	ErrNoKeys = errors.New("no session keys")
)

// Kind classifies a fatal framing error.
type Kind uint8

const (
	// KindProtocol covers malformed frames.
	KindProtocol Kind = iota + 1
	// KindCrypto covers authentication failures.
	KindCrypto
	// KindResource covers missing or released buffers and keys.
	KindResource
	// KindIO covers peer close and socket errors.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindCrypto:
		return "crypto"
	case KindResource:
		return "resource"
	case KindIO:
		return "io"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Error is a fatal framing error with its operation and classification.
type Error struct {
	Op   string // "read" or "write"
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("framing %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the classification of err, or zero if err is not a
// framing error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// IsTerminal reports whether err leaves the connection unusable. Every
// framing error does; would-block is not a framing error.
func IsTerminal(err error) bool {
	return KindOf(err) != 0
}
