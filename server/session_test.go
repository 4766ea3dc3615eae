package server

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/opd-ai/airtunes/crypto"
	"github.com/opd-ai/airtunes/framing"
	"github.com/opd-ai/airtunes/limits"
	"github.com/opd-ai/airtunes/pairing"
	"github.com/opd-ai/airtunes/rtsp"
	testsim "github.com/opd-ai/airtunes/testing"
	"github.com/opd-ai/airtunes/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const publicHeader = "Public: FLUSH, GET, GET_PARAMETER, OPTIONS, POST, RECORD, SETUP, SET_PARAMETER, TEARDOWN\r\n"

func testRoutes(t *testing.T) (*Mux, *pairing.Identity) {
	t.Helper()
	id, err := pairing.NewIdentity()
	require.NoError(t, err)
	return DefaultRoutes(DeviceInfo{Name: "kitchen", Model: "AudioAccessory1,1"}, id), id
}

// drive polls the session until its socket is drained and it stops making
// progress, or until it fails.
func drive(t *testing.T, s *Session, sock *testsim.SimulatedSocket, h Handler) error {
	t.Helper()
	idle := 0
	for i := 0; i < 100_000 && (idle < 3 || sock.Pending() > 0); i++ {
		progress, err := s.poll(h)
		if err != nil {
			return err
		}
		if s.closing {
			return nil
		}
		if progress {
			idle = 0
		} else {
			idle++
		}
	}
	return nil
}

// splitResponse separates a plaintext response into head and body.
func splitResponse(t *testing.T, data []byte) (string, []byte, []byte) {
	t.Helper()
	end := rtsp.FindHeaderEnd(data)
	require.GreaterOrEqual(t, end, 0, "no complete response in %q", data)
	head, err := rtsp.ParseRequest(data[:end+4])
	require.NoError(t, err)
	total := end + 4 + head.ContentLength
	require.GreaterOrEqual(t, len(data), total)
	return string(data[:end+4]), data[end+4 : total], data[total:]
}

func TestSessionFragmentedRequest(t *testing.T) {
	mux, _ := testRoutes(t)
	sock := testsim.NewSimulatedSocket().FeedBytewise([]byte("OPTIONS * RTSP/1.0\r\nCSeq: 5\r\n\r\n"))
	s := newSession(1, sock, "", 0)

	require.NoError(t, drive(t, s, sock, mux))
	assert.Equal(t, "RTSP/1.0 200 OK\r\nCSeq: 5\r\nServer: AirTunes/377.40.00\r\n"+publicHeader+"\r\n", string(sock.Sent()))
	assert.Empty(t, s.inbuf)
}

func TestSessionWaitsForBody(t *testing.T) {
	mux, _ := testRoutes(t)
	sock := testsim.NewSimulatedSocket().Feed([]byte("SET_PARAMETER rtsp://x RTSP/1.0\r\nCSeq: 2\r\nContent-Length: 13\r\n\r\nvolume"))
	s := newSession(1, sock, "", 0)

	require.NoError(t, drive(t, s, sock, mux))
	assert.Empty(t, sock.Sent(), "no response before the body is complete")

	sock.Feed([]byte(": -20.5"))
	require.NoError(t, drive(t, s, sock, mux))
	assert.Equal(t, "RTSP/1.0 200 OK\r\nCSeq: 2\r\nServer: AirTunes/377.40.00\r\n\r\n", string(sock.Sent()))
	assert.Equal(t, -20.5, s.Volume())
}

func TestSessionPipelinedRequests(t *testing.T) {
	mux, _ := testRoutes(t)
	sock := testsim.NewSimulatedSocket().Feed([]byte(
		"RECORD rtsp://x RTSP/1.0\r\nCSeq: 1\r\n\r\nFLUSH rtsp://x RTSP/1.0\r\nCSeq: 2\r\n\r\n"))
	s := newSession(1, sock, "", 0)

	require.NoError(t, drive(t, s, sock, mux))
	assert.Equal(t,
		"RTSP/1.0 200 OK\r\nCSeq: 1\r\nServer: AirTunes/377.40.00\r\n\r\n"+
			"RTSP/1.0 200 OK\r\nCSeq: 2\r\nServer: AirTunes/377.40.00\r\n\r\n",
		string(sock.Sent()))
}

func TestSessionMalformedAndUnknown(t *testing.T) {
	mux, _ := testRoutes(t)
	sock := testsim.NewSimulatedSocket().Feed([]byte(" \r\n\r\nANNOUNCE rtsp://x RTSP/1.0\r\nCSeq: 4\r\n\r\n"))
	s := newSession(1, sock, "", 0)

	require.NoError(t, drive(t, s, sock, mux))
	assert.Equal(t,
		"RTSP/1.0 400 Bad Request\r\nCSeq: 1\r\nServer: AirTunes/377.40.00\r\n\r\n"+
			"RTSP/1.0 501 Not Implemented\r\nCSeq: 4\r\nServer: AirTunes/377.40.00\r\n\r\n",
		string(sock.Sent()))
}

func TestSessionInfoAndSetup(t *testing.T) {
	mux, id := testRoutes(t)
	sock := testsim.NewSimulatedSocket().Feed([]byte("GET /info RTSP/1.0\r\nCSeq: 1\r\n\r\n"))
	s := newSession(7, sock, "", 0)

	require.NoError(t, drive(t, s, sock, mux))
	head, body, _ := splitResponse(t, sock.Drain())
	assert.True(t, strings.HasPrefix(head, "HTTP/1.1 200 OK\r\nContent-Type: text/parameters\r\n"))
	assert.Equal(t, "name: kitchen\r\nmodel: AudioAccessory1,1\r\npk: "+id.PublicHex()+"\r\n", string(body))

	sock.Feed([]byte("SETUP rtsp://x RTSP/1.0\r\nCSeq: 2\r\n" +
		"Transport: RTP/AVP/UDP;unicast;mode=record;control_port=6001;timing_port=6002\r\n\r\n"))
	require.NoError(t, drive(t, s, sock, mux))

	control, timing := s.Ports()
	assert.Equal(t, uint16(6001), control)
	assert.Equal(t, uint16(6002), timing)
	assert.Equal(t, "RTSP/1.0 200 OK\r\nCSeq: 2\r\nServer: AirTunes/377.40.00\r\nSession: 7\r\n"+
		"Transport: RTP/AVP/UDP;unicast;mode=record;control_port=6001;timing_port=6002\r\n\r\n", string(sock.Drain()))
}

func TestSessionGetParameterVolume(t *testing.T) {
	mux, _ := testRoutes(t)
	sock := testsim.NewSimulatedSocket().Feed([]byte(
		"GET_PARAMETER rtsp://x RTSP/1.0\r\nCSeq: 3\r\nContent-Length: 8\r\n\r\nvolume\r\n"))
	s := newSession(1, sock, "", 0)

	require.NoError(t, drive(t, s, sock, mux))
	_, body, _ := splitResponse(t, sock.Sent())
	assert.Equal(t, "volume: -144.000000\r\n", string(body))
}

func TestSessionBadVolume(t *testing.T) {
	mux, _ := testRoutes(t)
	sock := testsim.NewSimulatedSocket().Feed([]byte(
		"SET_PARAMETER rtsp://x RTSP/1.0\r\nCSeq: 3\r\nContent-Length: 11\r\n\r\nvolume: abc"))
	s := newSession(1, sock, "", 0)

	require.NoError(t, drive(t, s, sock, mux))
	assert.True(t, strings.HasPrefix(string(sock.Sent()), "RTSP/1.0 400 Bad Request\r\nCSeq: 3\r\n"))
}

func TestSessionTeardown(t *testing.T) {
	mux, _ := testRoutes(t)
	sock := testsim.NewSimulatedSocket().Feed([]byte(
		"TEARDOWN rtsp://x RTSP/1.0\r\nCSeq: 9\r\n\r\nOPTIONS * RTSP/1.0\r\nCSeq: 10\r\n\r\n"))
	s := newSession(1, sock, "", 0)

	require.NoError(t, drive(t, s, sock, mux))
	assert.True(t, s.closing)
	assert.Equal(t, "RTSP/1.0 200 OK\r\nCSeq: 9\r\nServer: AirTunes/377.40.00\r\n\r\n", string(sock.Sent()))

	require.NoError(t, s.close())
	assert.True(t, sock.IsClosed())
}

func TestSessionRequestTooLarge(t *testing.T) {
	mux, _ := testRoutes(t)

	flood := testsim.NewSimulatedSocket().Feed([]byte(strings.Repeat("A", limits.MaxRequestSize+10)))
	err := drive(t, newSession(1, flood, "", 0), flood, mux)
	assert.ErrorIs(t, err, ErrRequestTooLarge)

	declared := testsim.NewSimulatedSocket().Feed([]byte("POST /x RTSP/1.0\r\nContent-Length: 100000\r\n\r\n"))
	err = drive(t, newSession(2, declared, "", 0), declared, mux)
	assert.ErrorIs(t, err, ErrRequestTooLarge)
}

func TestSessionPeerClosed(t *testing.T) {
	mux, _ := testRoutes(t)
	sock := testsim.NewSimulatedSocket().Feed([]byte("OPTIONS * RTSP/1.0\r\n")).FeedClose()
	err := drive(t, newSession(1, sock, "", 0), sock, mux)
	assert.ErrorIs(t, err, transport.ErrPeerClosed)
}

// pairSession runs pair-verify over the simulated socket and returns the
// controller's keys.
func pairSession(t *testing.T, s *Session, sock *testsim.SimulatedSocket, h Handler, id *pairing.Identity) *crypto.SessionKeys {
	t.Helper()

	controller, err := pairing.NewInitiator(id.Public[:])
	require.NoError(t, err)
	msg1, err := controller.Start()
	require.NoError(t, err)

	req := []byte("POST /pair-verify RTSP/1.0\r\nCSeq: 1\r\nContent-Length: " + strconv.Itoa(len(msg1)) + "\r\n\r\n")
	req = append(req, msg1...)
	sock.Feed(req)

	require.NoError(t, drive(t, s, sock, h))
	head, body, rest := splitResponse(t, sock.Drain())
	require.True(t, strings.HasPrefix(head, "RTSP/1.0 200 OK\r\nCSeq: 1\r\n"), head)
	assert.Contains(t, head, "Content-Type: application/octet-stream\r\n")
	assert.Empty(t, rest)

	require.NoError(t, controller.Finish(body))
	keys, err := controller.SessionKeys()
	require.NoError(t, err)
	return keys
}

func TestSessionPairVerifyThenEncrypted(t *testing.T) {
	mux, id := testRoutes(t)
	sock := testsim.NewSimulatedSocket()
	s := newSession(1, sock, "", 0)

	keys := pairSession(t, s, sock, mux, id)
	assert.True(t, s.Conn().Encrypted())

	wire := testsim.NewSimulatedSocket()
	w, err := framing.NewWriter(wire, keys, 0)
	require.NoError(t, err)
	require.NoError(t, w.WriteFrames([]byte("OPTIONS * RTSP/1.0\r\nCSeq: 2\r\n\r\n")))
	sock.FeedBytewise(wire.Drain())

	require.NoError(t, drive(t, s, sock, mux))

	responses := testsim.NewSimulatedSocket().Feed(sock.Drain())
	r, err := framing.NewReader(responses, keys, 0)
	require.NoError(t, err)
	buf := make([]byte, limits.MaxBlockSize)
	n, err := r.ReadBlock(buf)
	require.NoError(t, err)
	assert.Equal(t, "RTSP/1.0 200 OK\r\nCSeq: 2\r\nServer: AirTunes/377.40.00\r\n"+publicHeader+"\r\n", string(buf[:n]))
	assert.Equal(t, uint64(1), keys.EncryptNonce)
	assert.Equal(t, uint64(1), keys.DecryptNonce)

	// A second pairing attempt inside the encrypted channel is refused.
	require.NoError(t, w.WriteFrames([]byte("POST /pair-verify RTSP/1.0\r\nCSeq: 3\r\n\r\n")))
	sock.Feed(wire.Drain())
	require.NoError(t, drive(t, s, sock, mux))
	responses.Feed(sock.Drain())
	n, err = r.ReadBlock(buf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(buf[:n]), "RTSP/1.0 400 Bad Request\r\nCSeq: 3\r\n"))

	require.NoError(t, s.close())
	assert.Equal(t, [crypto.KeySize]byte{}, s.Conn().Keys().EncryptKey, "session keys wiped on close")
}

func TestSessionPlaintextAfterPairingRejected(t *testing.T) {
	mux, _ := testRoutes(t)
	controller, err := pairing.NewInitiator(nil)
	require.NoError(t, err)
	msg1, err := controller.Start()
	require.NoError(t, err)

	req := "POST /pair-verify RTSP/1.0\r\nCSeq: 1\r\nContent-Length: " + strconv.Itoa(len(msg1)) + "\r\n\r\n" + string(msg1) +
		"OPTIONS * RTSP/1.0\r\n"
	sock := testsim.NewSimulatedSocket().Feed([]byte(req))

	err = drive(t, newSession(1, sock, "", 0), sock, mux)
	assert.ErrorIs(t, err, ErrPlaintextAfterPairing)
}

func TestSessionTamperedFrameCloses(t *testing.T) {
	mux, id := testRoutes(t)
	sock := testsim.NewSimulatedSocket()
	s := newSession(1, sock, "", 0)
	keys := pairSession(t, s, sock, mux, id)

	wire := testsim.NewSimulatedSocket()
	w, err := framing.NewWriter(wire, keys, 0)
	require.NoError(t, err)
	require.NoError(t, w.WriteFrames([]byte("OPTIONS * RTSP/1.0\r\nCSeq: 2\r\n\r\n")))
	frame := wire.Drain()
	frame[5] ^= 0x80
	sock.Feed(frame)

	err = drive(t, s, sock, mux)
	require.Error(t, err)
	assert.True(t, errors.Is(err, framing.ErrAuthentication))
	assert.Equal(t, framing.KindCrypto, framing.KindOf(err))
	assert.Empty(t, sock.Sent())
}

func TestMuxRouting(t *testing.T) {
	m := NewMux()
	var hit string
	m.HandleFunc("GET", "/info", func(s *Session, req *rtsp.Request) error { hit = "exact"; return nil })
	m.HandleFunc("GET", "", func(s *Session, req *rtsp.Request) error { hit = "any"; return nil })

	s := newSession(1, testsim.NewSimulatedSocket(), "", 0)
	require.NoError(t, m.ServeRTSP(s, &rtsp.Request{Method: "GET", Path: "/info"}))
	assert.Equal(t, "exact", hit)
	require.NoError(t, m.ServeRTSP(s, &rtsp.Request{Method: "get", Path: "/other"}))
	assert.Equal(t, "any", hit)

	assert.Equal(t, []string{"GET"}, m.Methods())
}

func TestDefaultRoutesWithoutIdentity(t *testing.T) {
	mux := DefaultRoutes(DeviceInfo{Name: "porch", Model: "AudioAccessory1,1"}, nil)
	sock := testsim.NewSimulatedSocket().Feed([]byte("GET /info RTSP/1.0\r\nCSeq: 1\r\n\r\n"))
	s := newSession(1, sock, "", 0)

	require.NoError(t, drive(t, s, sock, mux))
	_, body, _ := splitResponse(t, sock.Drain())
	assert.Equal(t, "name: porch\r\nmodel: AudioAccessory1,1\r\n", string(body))

	sock.Feed([]byte("POST /pair-verify RTSP/1.0\r\nCSeq: 2\r\nContent-Length: 4\r\n\r\nabcd"))
	require.NoError(t, drive(t, s, sock, mux))
	assert.True(t, strings.HasPrefix(string(sock.Drain()), "RTSP/1.0 400 Bad Request\r\nCSeq: 2\r\n"))
	assert.False(t, s.Conn().Encrypted())
}
