//go:build unix

package transport_test

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/opd-ai/airtunes/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loopbackPair(t *testing.T) (server net.Conn, client net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server = <-accepted
	require.NotNil(t, server)
	return server, client
}

func TestRawSocketNonBlockingRecv(t *testing.T) {
	server, client := loopbackPair(t)
	defer client.Close()

	sock, err := transport.NewRawSocket(server, time.Second)
	require.NoError(t, err)
	defer sock.Close()

	buf := make([]byte, 32)
	_, err = sock.Recv(buf)
	assert.ErrorIs(t, err, transport.ErrWouldBlock)

	_, err = client.Write([]byte("CSeq: 1"))
	require.NoError(t, err)

	var got []byte
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < 7 && time.Now().Before(deadline) {
		n, err := sock.Recv(buf)
		if errors.Is(err, transport.ErrWouldBlock) {
			time.Sleep(time.Millisecond)
			continue
		}
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, "CSeq: 1", string(got))

	require.NoError(t, client.Close())
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, err = sock.Recv(buf)
		if !errors.Is(err, transport.ErrWouldBlock) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.ErrorIs(t, err, io.EOF)
}

func TestRawSocketSend(t *testing.T) {
	server, client := loopbackPair(t)
	defer client.Close()

	sock, err := transport.NewRawSocket(server, time.Second)
	require.NoError(t, err)
	defer sock.Close()

	require.NoError(t, transport.SendAll(sock, []byte("RTSP/1.0 200 OK\r\n\r\n")))

	buf := make([]byte, 19)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)
	assert.Equal(t, "RTSP/1.0 200 OK\r\n\r\n", string(buf))
}

func TestRawSocketRequiresDescriptor(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	_, err := transport.NewRawSocket(a, time.Second)
	assert.ErrorIs(t, err, transport.ErrNoRawConn)
}
