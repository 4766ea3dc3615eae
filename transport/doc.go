// Package transport provides the socket adapters that feed the RTSP control
// channel core.
//
// # Non-blocking Contract
//
// Every adapter satisfies interfaces.ISocket. A receive that finds no data
// returns ErrWouldBlock rather than suspending, so a single poller goroutine
// can interleave many connections:
//
//	n, err := sock.Recv(buf)
//	switch {
//	case errors.Is(err, transport.ErrWouldBlock):
//	    // nothing yet, try again on the next turn
//	case errors.Is(err, io.EOF), err == nil && n == 0:
//	    // peer closed
//	}
//
// # Adapters
//
// RawSocket (unix):
//
//	sock, err := transport.NewRawSocket(tcpConn, 2*time.Second)
//	// read(2) straight on the descriptor, EAGAIN becomes ErrWouldBlock
//
// ConnSocket (portable):
//
//	sock := transport.NewConnSocket(conn, time.Millisecond, 2*time.Second)
//	// reads polled with a short deadline; works on net.Pipe
//
// # Sending
//
// SendAll keeps sending until every byte has been accepted, retrying partial
// sends and would-block results. A send that accepts nothing or fails is
// reported to the caller; partial frames are never resumed.
package transport
