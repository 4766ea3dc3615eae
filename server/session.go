package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/opd-ai/airtunes/crypto"
	"github.com/opd-ai/airtunes/interfaces"
	"github.com/opd-ai/airtunes/limits"
	"github.com/opd-ai/airtunes/pairing"
	"github.com/opd-ai/airtunes/rtsp"
	"github.com/opd-ai/airtunes/transport"
	"github.com/sirupsen/logrus"
)

var (
	// ErrRequestTooLarge indicates a client buffered more than
	// limits.MaxRequestSize bytes without completing a request.
	ErrRequestTooLarge = errors.New("server: request exceeds buffer limit")

	// ErrPlaintextAfterPairing indicates bytes that arrived in plaintext were
	// still buffered when the connection switched to encrypted mode.
	ErrPlaintextAfterPairing = errors.New("server: unread plaintext after pairing")
)

// Session is the state of one control connection. It is only touched by
// the poll goroutine.
type Session struct {
	id      uint64
	conn    *rtsp.Conn
	created time.Time

	readBuf []byte
	inbuf   []byte
	raw     []byte

	handshake *pairing.Handshake
	closing   bool

	controlPort uint16
	timingPort  uint16
	volume      float64
}

func newSession(id uint64, sock interfaces.ISocket, serverID string, maxBlock int) *Session {
	if maxBlock == 0 {
		maxBlock = limits.MaxBlockSize
	}
	return &Session{
		id:      id,
		conn:    rtsp.NewConn(sock, serverID, maxBlock),
		created: time.Now(),
		readBuf: make([]byte, maxBlock),
		volume:  -144,
	}
}

// ID returns the server-assigned session number.
func (s *Session) ID() uint64 { return s.id }

// Conn returns the control connection for sending responses.
func (s *Session) Conn() *rtsp.Conn { return s.conn }

// RequestBytes returns the raw bytes of the request being handled, header
// block and body. It is only valid during the handler call.
func (s *Session) RequestBytes() []byte { return s.raw }

// Ports returns the control and timing ports announced in SETUP.
func (s *Session) Ports() (control, timing uint16) { return s.controlPort, s.timingPort }

// Volume returns the last volume set by the client, in dB.
func (s *Session) Volume() float64 { return s.volume }

// CloseAfterResponse tears the session down once the current handler
// returns.
func (s *Session) CloseAfterResponse() { s.closing = true }

// Pair completes a pairing handshake on this session and switches the
// connection to encrypted mode. The handshake's keys live as long as the
// session.
func (s *Session) Pair(hs *pairing.Handshake) error {
	keys, err := hs.SessionKeys()
	if err != nil {
		return err
	}
	if err := s.conn.EnableEncryption(keys); err != nil {
		return err
	}
	s.handshake = hs
	return nil
}

// poll performs one read turn and dispatches every complete request it
// produced. progress reports whether any bytes were read; a non-nil error
// means the session must be closed.
func (s *Session) poll(h Handler) (progress bool, err error) {
	n, err := s.conn.ReadBlock(s.readBuf)
	if errors.Is(err, transport.ErrWouldBlock) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if len(s.inbuf)+n > limits.MaxRequestSize {
		return true, fmt.Errorf("%w: %d bytes buffered", ErrRequestTooLarge, len(s.inbuf)+n)
	}
	s.inbuf = append(s.inbuf, s.readBuf[:n]...)

	for !s.closing {
		handled, err := s.dispatch(h)
		if err != nil {
			return true, err
		}
		if !handled {
			break
		}
	}
	return true, nil
}

// dispatch handles the first complete request in inbuf, if there is one.
func (s *Session) dispatch(h Handler) (bool, error) {
	end := rtsp.FindHeaderEnd(s.inbuf)
	if end < 0 {
		return false, nil
	}
	headerLen := end + 4

	head, err := rtsp.ParseRequest(s.inbuf[:headerLen])
	if err != nil {
		s.consume(headerLen)
		logrus.WithFields(logrus.Fields{
			"function": "Session.dispatch",
			"session":  s.id,
			"remote":   s.conn.RemoteAddr(),
			"error":    err.Error(),
		}).Warn("Rejecting malformed request")
		return true, s.conn.SendResponse(rtsp.StatusBadRequest, rtsp.StatusText(rtsp.StatusBadRequest), 1, "", nil)
	}

	total := headerLen + head.ContentLength
	if total > limits.MaxRequestSize {
		return false, fmt.Errorf("%w: declared %d bytes", ErrRequestTooLarge, total)
	}
	if len(s.inbuf) < total {
		return false, nil
	}

	req, err := rtsp.ParseRequest(s.inbuf[:total])
	if err != nil {
		return false, err
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Session.dispatch",
		"session":   s.id,
		"remote":    s.conn.RemoteAddr(),
		"method":    req.Method,
		"path":      req.Path,
		"cseq":      req.CSeq,
		"body_len":  len(req.Body),
		"encrypted": s.conn.Encrypted(),
	}).Debug("Dispatching request")

	wasEncrypted := s.conn.Encrypted()
	s.raw = s.inbuf[:total]
	err = h.ServeRTSP(s, req)
	s.raw = nil
	s.consume(total)
	if err != nil {
		return false, err
	}

	if !wasEncrypted && s.conn.Encrypted() && len(s.inbuf) > 0 {
		return false, fmt.Errorf("%w: %d bytes", ErrPlaintextAfterPairing, len(s.inbuf))
	}
	return true, nil
}

// consume drops the first n bytes of inbuf and wipes the vacated tail.
func (s *Session) consume(n int) {
	rest := copy(s.inbuf, s.inbuf[n:])
	crypto.ZeroBytes(s.inbuf[rest:])
	s.inbuf = s.inbuf[:rest]
}

// close releases the connection, its buffers and its session keys.
func (s *Session) close() error {
	err := s.conn.Close()
	crypto.ZeroBytes(s.inbuf, s.readBuf)
	s.inbuf = nil
	if s.handshake != nil {
		s.handshake.Wipe()
		s.handshake = nil
	}
	return err
}
