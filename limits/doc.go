// Package limits provides centralized size constants and validation functions
// for the RTSP control channel. This package ensures consistent size
// enforcement across the request parser, the encrypted framing layer and the
// connection poller.
//
// # Frame Layout
//
// Every encrypted control frame is laid out as:
//
//	len:u16-le | ciphertext:len bytes | tag:16 bytes
//
//   - LengthHeaderSize (2 bytes): the little-endian plaintext length, also used
//     as associated data for the AEAD.
//   - MaxBlockSize (1024 bytes): the default plaintext ceiling per frame.
//   - TagSize (16 bytes): the Poly1305 tag, matching
//     golang.org/x/crypto/chacha20poly1305.Overhead.
//
// # Parser Caps
//
// MaxMethodLen, MaxPathLen, MaxHeaderBlock and MaxContentTypeLen bound the
// fields the request parser copies out of a request. Oversized request-line
// tokens are truncated, matching permissive real-world clients.
//
// # Validation
//
//	err := limits.ValidateBlockLength(n, maxBlock, len(dst))
//	if err != nil {
//	    // ErrBlockEmpty or ErrBlockTooLarge
//	}
package limits
