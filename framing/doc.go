// Package framing implements the authenticated-encryption framing of the RTSP
// control channel.
//
// # Wire Format
//
// Once a session is paired every control message travels as one or more
// frames:
//
//	len:u16-le | ciphertext:len bytes | tag:16 bytes
//
// Frames are sealed with IETF ChaCha20-Poly1305. The associated data is the
// two raw length bytes and the nonce carries the per-direction frame counter
// (see crypto.Nonce).
//
// # Reading
//
// [Reader] is a resumable state machine over a non-blocking socket:
//
//	AwaitingLength -> AwaitingCiphertext -> Decrypting -> (done | error)
//
// Each ReadBlock call consumes whatever the socket has. When it runs dry the
// call returns transport.ErrWouldBlock and the partial frame is kept for the
// next call, so a single goroutine can interleave many connections:
//
//	n, err := reader.ReadBlock(buf)
//	switch {
//	case errors.Is(err, transport.ErrWouldBlock):
//	    // come back later
//	case err != nil:
//	    // framing.IsTerminal(err): tear the connection down
//	default:
//	    handle(buf[:n])
//	}
//
// The declared length is checked against the block ceiling and len(buf)
// before any ciphertext is read. The ciphertext buffer is allocated once per
// reader and wiped after every frame and on every error.
//
// # Writing
//
// [Writer] splits a payload into frames of at most the block ceiling, seals
// each one and sends it with transport.SendAll. The encrypt counter advances
// only after a frame has been fully sent; a failed send aborts the payload.
//
// # Errors
//
// Fatal errors are *Error values carrying a [Kind]: KindProtocol for bad
// lengths, KindCrypto for authentication failures, KindResource for closed
// readers or missing keys and KindIO for socket failures and peer close.
package framing
