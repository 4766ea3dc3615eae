package testing

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/opd-ai/airtunes/transport"
	"github.com/sirupsen/logrus"
)

// ErrSimulatedSendFailure is returned by Send once the configured failure
// point has been reached.
var ErrSimulatedSendFailure = errors.New("simulated send failure")

type stepKind uint8

const (
	stepData stepKind = iota
	stepWouldBlock
	stepClose
	stepError
)

type recvStep struct {
	kind stepKind
	data []byte
	err  error
}

// SimulatedSocket is a scripted in-memory implementation of
// interfaces.ISocket. Inbound bytes, would-block turns, errors and an
// orderly close are queued in order and replayed by Recv; everything passed
// to Send is captured.
type SimulatedSocket struct {
	mu sync.Mutex

	steps     []recvStep
	recvChunk int
	recvCalls int

	sent          bytes.Buffer
	sendChunk     int
	sendBlocks    int
	sendFailAfter int
	sendCalls     int

	closed bool
	remote string
}

// NewSimulatedSocket creates an empty socket. With nothing queued, Recv
// reports would-block.
func NewSimulatedSocket() *SimulatedSocket {
	logrus.WithFields(logrus.Fields{
		"function": "NewSimulatedSocket",
	}).Debug("Creating simulated socket for testing")

	return &SimulatedSocket{
		sendFailAfter: -1,
		remote:        "sim:0",
	}
}

// Feed queues inbound bytes.
func (s *SimulatedSocket) Feed(data []byte) *SimulatedSocket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(data) > 0 {
		s.steps = append(s.steps, recvStep{kind: stepData, data: append([]byte(nil), data...)})
	}
	return s
}

// FeedBytewise queues data one byte per step with a would-block turn after
// every byte.
func (s *SimulatedSocket) FeedBytewise(data []byte) *SimulatedSocket {
	for i := range data {
		s.Feed(data[i : i+1])
		s.FeedWouldBlock()
	}
	return s
}

// FeedWouldBlock queues a single would-block result.
func (s *SimulatedSocket) FeedWouldBlock() *SimulatedSocket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, recvStep{kind: stepWouldBlock})
	return s
}

// FeedClose queues an orderly close. Every later Recv reports io.EOF.
func (s *SimulatedSocket) FeedClose() *SimulatedSocket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, recvStep{kind: stepClose})
	return s
}

// FeedError queues a hard receive error.
func (s *SimulatedSocket) FeedError(err error) *SimulatedSocket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, recvStep{kind: stepError, err: err})
	return s
}

// SetRecvChunk limits how many bytes a single Recv returns. Zero removes
// the limit.
func (s *SimulatedSocket) SetRecvChunk(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recvChunk = n
}

// SetSendChunk limits how many bytes a single Send accepts.
func (s *SimulatedSocket) SetSendChunk(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendChunk = n
}

// SetSendWouldBlock makes the next n Send calls report would-block.
func (s *SimulatedSocket) SetSendWouldBlock(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendBlocks = n
}

// FailSendAfter makes Send fail once n bytes in total have been accepted.
// A negative n disables the failure.
func (s *SimulatedSocket) FailSendAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendFailAfter = n
}

// Recv implements interfaces.ISocket.
func (s *SimulatedSocket) Recv(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recvCalls++
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	if len(s.steps) == 0 {
		return 0, transport.ErrWouldBlock
	}

	step := &s.steps[0]
	switch step.kind {
	case stepWouldBlock:
		s.steps = s.steps[1:]
		return 0, transport.ErrWouldBlock
	case stepClose:
		return 0, io.EOF
	case stepError:
		s.steps = s.steps[1:]
		return 0, step.err
	}

	n := len(p)
	if s.recvChunk > 0 && n > s.recvChunk {
		n = s.recvChunk
	}
	n = copy(p[:n], step.data)
	step.data = step.data[n:]
	if len(step.data) == 0 {
		s.steps = s.steps[1:]
	}
	return n, nil
}

// Send implements interfaces.ISocket.
func (s *SimulatedSocket) Send(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendCalls++
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	if s.sendBlocks > 0 {
		s.sendBlocks--
		return 0, transport.ErrWouldBlock
	}

	n := len(p)
	if s.sendChunk > 0 && n > s.sendChunk {
		n = s.sendChunk
	}
	if s.sendFailAfter >= 0 {
		budget := s.sendFailAfter - s.sent.Len()
		if budget <= 0 {
			return 0, ErrSimulatedSendFailure
		}
		if n > budget {
			n = budget
		}
	}
	s.sent.Write(p[:n])
	return n, nil
}

// Close implements interfaces.ISocket.
func (s *SimulatedSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// RemoteAddr implements interfaces.ISocket.
func (s *SimulatedSocket) RemoteAddr() string {
	return s.remote
}

// Sent returns a copy of everything accepted by Send.
func (s *SimulatedSocket) Sent() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.sent.Bytes()...)
}

// Drain returns everything accepted by Send and clears the capture.
func (s *SimulatedSocket) Drain() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]byte(nil), s.sent.Bytes()...)
	s.sent.Reset()
	return out
}

// Pending reports how many inbound bytes are still queued.
func (s *SimulatedSocket) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, step := range s.steps {
		total += len(step.data)
	}
	return total
}

// RecvCalls reports how many times Recv was invoked.
func (s *SimulatedSocket) RecvCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvCalls
}

// SendCalls reports how many times Send was invoked.
func (s *SimulatedSocket) SendCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCalls
}

// IsClosed reports whether Close was called.
func (s *SimulatedSocket) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
