package rtsp

import (
	"errors"
	"io"

	"github.com/opd-ai/airtunes/crypto"
	"github.com/opd-ai/airtunes/framing"
	"github.com/opd-ai/airtunes/interfaces"
	"github.com/opd-ai/airtunes/transport"
	"github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyEncrypted indicates encryption was enabled twice.
	ErrAlreadyEncrypted = errors.New("rtsp: connection already encrypted")

	// ErrConnClosed indicates the connection has been closed.
	ErrConnClosed = errors.New("rtsp: connection closed")
)

// Conn is one control connection. It starts in plaintext mode and switches
// permanently to encrypted framing once EnableEncryption is called.
//
// A Conn is owned by a single polling context and is not safe for
// concurrent use.
type Conn struct {
	sock     interfaces.ISocket
	serverID string
	maxBlock int

	keys   *crypto.SessionKeys
	reader *framing.Reader
	writer *framing.Writer

	out    []byte
	closed bool
}

// NewConn wraps sock in plaintext mode. An empty serverID selects
// DefaultServerID; a maxBlock of zero selects the default block ceiling.
func NewConn(sock interfaces.ISocket, serverID string, maxBlock int) *Conn {
	if serverID == "" {
		serverID = DefaultServerID
	}
	return &Conn{
		sock:     sock,
		serverID: serverID,
		maxBlock: maxBlock,
	}
}

// EnableEncryption switches the connection to encrypted framing with keys.
// The keys stay owned by the caller; their nonce counters advance as frames
// are read and written.
func (c *Conn) EnableEncryption(keys *crypto.SessionKeys) error {
	if c.closed {
		return ErrConnClosed
	}
	if c.keys != nil {
		return ErrAlreadyEncrypted
	}

	reader, err := framing.NewReader(c.sock, keys, c.maxBlock)
	if err != nil {
		return err
	}
	writer, err := framing.NewWriter(c.sock, keys, c.maxBlock)
	if err != nil {
		reader.Close()
		return err
	}

	c.keys = keys
	c.reader = reader
	c.writer = writer

	logrus.WithFields(logrus.Fields{
		"function": "Conn.EnableEncryption",
		"remote":   c.sock.RemoteAddr(),
	}).Info("Control channel switched to encrypted mode")
	return nil
}

// Encrypted reports whether the connection is in encrypted mode.
func (c *Conn) Encrypted() bool {
	return c.keys != nil
}

// Keys returns the session keys in use, or nil in plaintext mode.
func (c *Conn) Keys() *crypto.SessionKeys {
	return c.keys
}

// RemoteAddr returns the peer address of the underlying socket.
func (c *Conn) RemoteAddr() string {
	return c.sock.RemoteAddr()
}

// ReadBlock reads the next chunk of plaintext into dst. In encrypted mode
// this is one decrypted frame; in plaintext mode it is whatever one socket
// read returns. transport.ErrWouldBlock means no data yet; every other error
// is terminal.
func (c *Conn) ReadBlock(dst []byte) (int, error) {
	if c.closed {
		return 0, &framing.Error{Op: "read", Kind: framing.KindResource, Err: ErrConnClosed}
	}
	if c.reader != nil {
		return c.reader.ReadBlock(dst)
	}

	n, err := c.sock.Recv(dst)
	if n > 0 {
		return n, nil
	}
	switch {
	case errors.Is(err, transport.ErrWouldBlock):
		return 0, transport.ErrWouldBlock
	case err == nil, errors.Is(err, io.EOF):
		return 0, &framing.Error{Op: "read", Kind: framing.KindIO, Err: transport.ErrPeerClosed}
	default:
		return 0, &framing.Error{Op: "read", Kind: framing.KindIO, Err: err}
	}
}

// Write sends p in full, through the frame writer in encrypted mode or as
// raw bytes otherwise.
func (c *Conn) Write(p []byte) error {
	if c.closed {
		return &framing.Error{Op: "write", Kind: framing.KindResource, Err: ErrConnClosed}
	}
	if c.writer != nil {
		return c.writer.WriteFrames(p)
	}

	if err := transport.SendAll(c.sock, p); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Conn.Write",
			"remote":   c.sock.RemoteAddr(),
			"bytes":    len(p),
			"error":    err.Error(),
		}).Error("Failed to send plaintext response")
		return &framing.Error{Op: "write", Kind: framing.KindIO, Err: err}
	}
	return nil
}

// SendResponse formats and sends an RTSP response. headers holds extra
// CRLF-terminated header lines.
func (c *Conn) SendResponse(status int, text string, cseq int, headers string, body []byte) error {
	c.out = AppendRTSPResponse(c.out[:0], c.serverID, status, text, cseq, headers, body)

	logrus.WithFields(logrus.Fields{
		"function":  "Conn.SendResponse",
		"remote":    c.sock.RemoteAddr(),
		"status":    status,
		"cseq":      cseq,
		"body_len":  len(body),
		"encrypted": c.Encrypted(),
	}).Debug("Sending RTSP response")

	return c.Write(c.out)
}

// SendOK sends a bare 200 OK for cseq.
func (c *Conn) SendOK(cseq int) error {
	return c.SendResponse(StatusOK, "OK", cseq, "", nil)
}

// SendHTTPResponse formats and sends an HTTP-dialect response.
func (c *Conn) SendHTTPResponse(status int, text, contentType string, body []byte) error {
	c.out = AppendHTTPResponse(c.out[:0], c.serverID, status, text, contentType, body)

	logrus.WithFields(logrus.Fields{
		"function":     "Conn.SendHTTPResponse",
		"remote":       c.sock.RemoteAddr(),
		"status":       status,
		"content_type": contentType,
		"body_len":     len(body),
		"encrypted":    c.Encrypted(),
	}).Debug("Sending HTTP response")

	return c.Write(c.out)
}

// Close releases the framing buffers and closes the socket. The session
// keys are left to their owner.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.reader != nil {
		c.reader.Close()
	}
	if c.writer != nil {
		c.writer.Close()
	}
	crypto.ZeroBytes(c.out)
	c.out = nil
	return c.sock.Close()
}
