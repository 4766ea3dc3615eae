// Package limits provides centralized size limits for the RTSP control channel.
// This ensures consistent validation across the parser, the framing layer and
// the connection poller.
package limits

import (
	"errors"
	"fmt"
)

const (
	// LengthHeaderSize is the size of the little-endian block length that
	// prefixes every encrypted control frame.
	LengthHeaderSize = 2

	// TagSize is the Poly1305 authentication tag appended to each ciphertext
	// block (golang.org/x/crypto/chacha20poly1305.Overhead).
	TagSize = 16

	// MaxBlockSize is the largest plaintext block carried by a single frame.
	// AirPlay senders never emit blocks above 0x400 bytes.
	MaxBlockSize = 1024

	// MaxWireBlock is the largest possible length field value. Configured
	// block ceilings may not exceed it.
	MaxWireBlock = 0xFFFF

	// MaxFrameSize is the on-wire size of a maximal frame.
	MaxFrameSize = LengthHeaderSize + MaxBlockSize + TagSize

	// MaxMethodLen and MaxPathLen cap the request line tokens. Longer tokens
	// are truncated, not rejected.
	MaxMethodLen = 31
	MaxPathLen   = 255

	// MaxHeaderBlock caps the copy of the header block that header lookups
	// scan. Fields beyond it are invisible to the parser.
	MaxHeaderBlock = 1023

	// MaxContentTypeLen caps the stored Content-Type value.
	MaxContentTypeLen = 63

	// MaxRequestSize bounds the plaintext a connection may buffer while
	// waiting for a complete request.
	MaxRequestSize = 64 * 1024
)

var (
	// ErrBlockEmpty indicates a zero block length.
	ErrBlockEmpty = errors.New("empty block")

	// ErrBlockTooLarge indicates a block exceeds the configured ceiling or
	// the destination capacity.
	ErrBlockTooLarge = errors.New("block too large")
)

// ValidateBlockLength checks a declared block length against the block
// ceiling and the caller's output capacity.
func ValidateBlockLength(n, maxBlock, capacity int) error {
	if n <= 0 {
		return ErrBlockEmpty
	}
	if n > maxBlock {
		return fmt.Errorf("%w: length %d exceeds block limit %d", ErrBlockTooLarge, n, maxBlock)
	}
	if n > capacity {
		return fmt.Errorf("%w: length %d exceeds buffer capacity %d", ErrBlockTooLarge, n, capacity)
	}
	return nil
}

// ValidateMaxBlock checks a configured block ceiling.
func ValidateMaxBlock(maxBlock int) error {
	if maxBlock <= 0 {
		return fmt.Errorf("%w: block limit must be positive, got %d", ErrBlockEmpty, maxBlock)
	}
	if maxBlock > MaxWireBlock {
		return fmt.Errorf("%w: block limit %d exceeds wire maximum %d", ErrBlockTooLarge, maxBlock, MaxWireBlock)
	}
	return nil
}

// Truncate returns s cut to at most n bytes.
func Truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
