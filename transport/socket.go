package transport

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/opd-ai/airtunes/interfaces"
)

var (
	// ErrWouldBlock reports that a socket operation made no progress and
	// should be retried on a later turn. It is not a failure.
	ErrWouldBlock = errors.New("operation would block")

	// ErrPeerClosed indicates the remote end closed the stream.
	ErrPeerClosed = errors.New("peer closed connection")

	// ErrShortSend indicates a send accepted zero bytes without an error.
	ErrShortSend = errors.New("send accepted no bytes")

	// ErrSendStalled indicates a send kept reporting would-block past the
	// stall limit.
	ErrSendStalled = errors.New("send stalled")

	// ErrNoRawConn indicates the connection cannot expose its descriptor.
	ErrNoRawConn = errors.New("connection has no raw descriptor")
)

// sendSpinLimit is how many consecutive would-block results SendAll yields
// the processor on before it starts sleeping between attempts.
const sendSpinLimit = 16

// sendStallBackoff is the sleep between attempts once a send has stalled.
const sendStallBackoff = time.Millisecond

// DefaultSendStall bounds how long SendAll keeps retrying would-block
// results without any byte being accepted.
const DefaultSendStall = 2 * time.Second

// SendAll writes p to sock, retrying partial sends and would-block results
// until every byte has been accepted or a hard error occurs. It gives up with
// ErrSendStalled after DefaultSendStall without progress.
func SendAll(sock interfaces.ISocket, p []byte) error {
	return SendAllWithin(sock, p, DefaultSendStall)
}

// SendAllWithin is SendAll with an explicit stall limit. A non-positive
// limit selects DefaultSendStall.
func SendAllWithin(sock interfaces.ISocket, p []byte, stall time.Duration) error {
	if stall <= 0 {
		stall = DefaultSendStall
	}
	sent := 0
	stalls := 0
	var stalledSince time.Time
	for sent < len(p) {
		n, err := sock.Send(p[sent:])
		if n > 0 {
			sent += n
			stalls = 0
		}
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				if n > 0 || stalls == 0 {
					stalledSince = time.Now()
				}
				stalls++
				if time.Since(stalledSince) >= stall {
					return fmt.Errorf("%w: %d of %d bytes outstanding after %v",
						ErrSendStalled, len(p)-sent, len(p), stall)
				}
				if stalls > sendSpinLimit {
					time.Sleep(sendStallBackoff)
				} else {
					runtime.Gosched()
				}
				continue
			}
			return fmt.Errorf("send %d/%d bytes: %w", sent, len(p), err)
		}
		if n <= 0 {
			return fmt.Errorf("%w: %d of %d bytes outstanding", ErrShortSend, len(p)-sent, len(p))
		}
	}
	return nil
}
