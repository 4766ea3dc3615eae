package framing

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/opd-ai/airtunes/crypto"
	"github.com/opd-ai/airtunes/interfaces"
	"github.com/opd-ai/airtunes/limits"
	"github.com/opd-ai/airtunes/transport"
	"github.com/sirupsen/logrus"
)

// ReadState is the position of a Reader inside the current frame.
type ReadState uint8

const (
	// AwaitingLength: collecting the 2-byte length header.
	AwaitingLength ReadState = iota
	// AwaitingCiphertext: collecting ciphertext and tag.
	AwaitingCiphertext
	// Decrypting: the frame is complete and being authenticated.
	Decrypting
)

func (s ReadState) String() string {
	switch s {
	case AwaitingLength:
		return "awaiting-length"
	case AwaitingCiphertext:
		return "awaiting-ciphertext"
	case Decrypting:
		return "decrypting"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Reader assembles encrypted frames from a non-blocking socket. Each call to
// ReadBlock advances the current frame as far as the socket allows and keeps
// partial progress for the next call.
//
// A Reader is owned by one connection and is not safe for concurrent use.
type Reader struct {
	sock     interfaces.ISocket
	keys     *crypto.SessionKeys
	aead     cipher.AEAD
	maxBlock int

	state       ReadState
	lenBuf      [limits.LengthHeaderSize]byte
	lenReceived int

	// buf holds ciphertext plus tag. It is sized for the largest frame once
	// and reused; only buf[:cipherLen] belongs to the current frame.
	buf            []byte
	blockLen       int
	cipherLen      int
	cipherReceived int
}

// NewReader creates a Reader that decrypts with keys.DecryptKey and advances
// keys.DecryptNonce. A maxBlock of zero selects limits.MaxBlockSize.
func NewReader(sock interfaces.ISocket, keys *crypto.SessionKeys, maxBlock int) (*Reader, error) {
	if keys == nil {
		return nil, newError("read", KindResource, ErrNoKeys)
	}
	if maxBlock == 0 {
		maxBlock = limits.MaxBlockSize
	}
	if err := limits.ValidateMaxBlock(maxBlock); err != nil {
		return nil, newError("read", KindResource, err)
	}

	aead, err := crypto.NewAEAD(keys.DecryptKey)
	if err != nil {
		return nil, newError("read", KindResource, err)
	}

	return &Reader{
		sock:     sock,
		keys:     keys,
		aead:     aead,
		maxBlock: maxBlock,
		buf:      make([]byte, maxBlock+limits.TagSize),
	}, nil
}

// ReadBlock advances the current frame and, once it is complete and
// authentic, decrypts it into dst and returns the plaintext length.
//
// It returns transport.ErrWouldBlock when the socket has no more data yet;
// partial progress is kept. Any other error is a *Error and leaves the
// reader reset for a fresh frame; dst receives no plaintext on failure.
func (r *Reader) ReadBlock(dst []byte) (int, error) {
	if r.buf == nil {
		return 0, newError("read", KindResource, ErrReaderClosed)
	}

	if r.state == AwaitingLength {
		for r.lenReceived < len(r.lenBuf) {
			n, err := r.recv(r.lenBuf[r.lenReceived:])
			if err != nil {
				return 0, err
			}
			r.lenReceived += n
		}

		blockLen := int(binary.LittleEndian.Uint16(r.lenBuf[:]))
		if err := limits.ValidateBlockLength(blockLen, r.maxBlock, len(dst)); err != nil {
			return 0, r.fail(KindProtocol, fmt.Errorf("%w: %v", ErrInvalidBlockLength, err))
		}

		r.blockLen = blockLen
		r.cipherLen = blockLen + limits.TagSize
		r.cipherReceived = 0
		r.state = AwaitingCiphertext
	}

	if r.state == AwaitingCiphertext {
		for r.cipherReceived < r.cipherLen {
			n, err := r.recv(r.buf[r.cipherReceived:r.cipherLen])
			if err != nil {
				return 0, err
			}
			r.cipherReceived += n
		}
		r.state = Decrypting
	}

	return r.decrypt(dst)
}

func (r *Reader) decrypt(dst []byte) (int, error) {
	if r.blockLen > len(dst) {
		return 0, r.fail(KindProtocol, fmt.Errorf("%w: length %d exceeds buffer capacity %d",
			ErrInvalidBlockLength, r.blockLen, len(dst)))
	}

	nonce := crypto.Nonce(r.keys.DecryptNonce)
	out, err := r.aead.Open(dst[:0], nonce[:], r.buf[:r.cipherLen], r.lenBuf[:])
	if err != nil {
		crypto.ZeroBytes(dst[:r.blockLen])
		return 0, r.fail(KindCrypto, ErrAuthentication)
	}

	r.keys.DecryptNonce++
	n := len(out)
	r.reset()

	if n > len(dst) {
		return 0, newError("read", KindProtocol, fmt.Errorf("%w: decrypted %d bytes into %d",
			ErrInvalidBlockLength, n, len(dst)))
	}
	return n, nil
}

// recv performs one socket read and classifies the outcome.
func (r *Reader) recv(p []byte) (int, error) {
	n, err := r.sock.Recv(p)
	if n > 0 {
		return n, nil
	}
	switch {
	case errors.Is(err, transport.ErrWouldBlock):
		return 0, transport.ErrWouldBlock
	case err == nil, errors.Is(err, io.EOF):
		return 0, r.fail(KindIO, transport.ErrPeerClosed)
	default:
		return 0, r.fail(KindIO, err)
	}
}

func (r *Reader) fail(kind Kind, err error) error {
	entry := logrus.WithFields(logrus.Fields{
		"function":     "Reader.ReadBlock",
		"remote":       r.sock.RemoteAddr(),
		"state":        r.state.String(),
		"block_len":    r.blockLen,
		"len_received": r.lenReceived,
		"received":     r.cipherReceived,
		"nonce":        r.keys.DecryptNonce,
		"kind":         kind.String(),
		"error":        err.Error(),
	})
	if errors.Is(err, transport.ErrPeerClosed) {
		entry.Debug("Peer closed during encrypted frame")
	} else {
		entry.Error("Failed to read encrypted frame")
	}

	r.reset()
	return newError("read", kind, err)
}

// reset discards the current frame and wipes any ciphertext it held.
func (r *Reader) reset() {
	if r.buf != nil && r.cipherReceived > 0 {
		crypto.ZeroBytes(r.buf[:r.cipherReceived])
	}
	r.state = AwaitingLength
	r.lenBuf = [limits.LengthHeaderSize]byte{}
	r.lenReceived = 0
	r.blockLen = 0
	r.cipherLen = 0
	r.cipherReceived = 0
}

// Reset discards any partially received frame.
func (r *Reader) Reset() {
	r.reset()
}

// State reports where the reader is inside the current frame.
func (r *Reader) State() ReadState {
	return r.state
}

// Pending reports whether part of a frame has been received.
func (r *Reader) Pending() bool {
	return r.lenReceived > 0 || r.state != AwaitingLength
}

// Close wipes and releases the ciphertext buffer. Further reads fail.
func (r *Reader) Close() {
	if r.buf == nil {
		return
	}
	r.reset()
	crypto.ZeroBytes(r.buf)
	r.buf = nil
}
