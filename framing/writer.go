package framing

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"

	"github.com/opd-ai/airtunes/crypto"
	"github.com/opd-ai/airtunes/interfaces"
	"github.com/opd-ai/airtunes/limits"
	"github.com/opd-ai/airtunes/transport"
	"github.com/sirupsen/logrus"
)

// ErrWriterClosed indicates the writer has been closed.
var ErrWriterClosed = errors.New("frame writer closed")

// Writer splits plaintext into encrypted frames and sends them.
//
// A Writer is owned by one connection and is not safe for concurrent use.
type Writer struct {
	sock     interfaces.ISocket
	keys     *crypto.SessionKeys
	aead     cipher.AEAD
	maxBlock int

	// frame stages header, ciphertext and tag of one frame.
	frame []byte
}

// NewWriter creates a Writer that encrypts with keys.EncryptKey and advances
// keys.EncryptNonce. A maxBlock of zero selects limits.MaxBlockSize.
func NewWriter(sock interfaces.ISocket, keys *crypto.SessionKeys, maxBlock int) (*Writer, error) {
	if keys == nil {
		return nil, newError("write", KindResource, ErrNoKeys)
	}
	if maxBlock == 0 {
		maxBlock = limits.MaxBlockSize
	}
	if err := limits.ValidateMaxBlock(maxBlock); err != nil {
		return nil, newError("write", KindResource, err)
	}

	aead, err := crypto.NewAEAD(keys.EncryptKey)
	if err != nil {
		return nil, newError("write", KindResource, err)
	}

	return &Writer{
		sock:     sock,
		keys:     keys,
		aead:     aead,
		maxBlock: maxBlock,
		frame:    make([]byte, limits.LengthHeaderSize+maxBlock+limits.TagSize),
	}, nil
}

// WriteFrames encrypts p as one or more frames of at most maxBlock plaintext
// bytes each and sends them in order. The encrypt nonce advances once per
// frame, only after the whole frame has been sent. A send failure aborts the
// remaining frames; a partially sent frame is never resumed.
func (w *Writer) WriteFrames(p []byte) error {
	if w.frame == nil {
		return newError("write", KindResource, ErrWriterClosed)
	}

	for off := 0; off < len(p); {
		n := min(len(p)-off, w.maxBlock)

		header := w.frame[:limits.LengthHeaderSize]
		binary.LittleEndian.PutUint16(header, uint16(n))

		nonce := crypto.Nonce(w.keys.EncryptNonce)
		sealed := w.aead.Seal(w.frame[limits.LengthHeaderSize:limits.LengthHeaderSize], nonce[:], p[off:off+n], header)

		if err := transport.SendAll(w.sock, w.frame[:limits.LengthHeaderSize+len(sealed)]); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "Writer.WriteFrames",
				"remote":    w.sock.RemoteAddr(),
				"block_len": n,
				"offset":    off,
				"total":     len(p),
				"nonce":     w.keys.EncryptNonce,
				"error":     err.Error(),
			}).Error("Failed to send encrypted frame")
			return newError("write", KindIO, err)
		}

		w.keys.EncryptNonce++
		off += n
	}
	return nil
}

// Close releases the staging buffer. Further writes fail.
func (w *Writer) Close() {
	if w.frame == nil {
		return
	}
	crypto.ZeroBytes(w.frame)
	w.frame = nil
}
