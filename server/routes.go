package server

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/opd-ai/airtunes/pairing"
	"github.com/opd-ai/airtunes/rtsp"
	"github.com/sirupsen/logrus"
)

// DeviceInfo describes the receiver in GET /info.
type DeviceInfo struct {
	Name  string
	Model string
}

// DefaultRoutes returns a mux serving the control-channel requests of an
// AirPlay 1 style receiver. id authenticates POST /pair-verify; with a nil
// id pairing is refused and GET /info omits the public key.
func DefaultRoutes(info DeviceInfo, id *pairing.Identity) *Mux {
	r := &routes{info: info, identity: id}

	m := NewMux()
	m.HandleFunc("OPTIONS", "", r.options)
	m.HandleFunc("POST", "/pair-verify", r.pairVerify)
	m.HandleFunc("GET", "/info", r.getInfo)
	m.HandleFunc("SETUP", "", r.setup)
	m.HandleFunc("GET_PARAMETER", "", r.getParameter)
	m.HandleFunc("SET_PARAMETER", "", r.setParameter)
	m.HandleFunc("RECORD", "", ok)
	m.HandleFunc("FLUSH", "", ok)
	m.HandleFunc("TEARDOWN", "", r.teardown)
	r.public = "Public: " + strings.Join(m.Methods(), ", ") + "\r\n"
	return m
}

type routes struct {
	info     DeviceInfo
	identity *pairing.Identity
	public   string
}

func ok(s *Session, req *rtsp.Request) error {
	return s.Conn().SendOK(req.CSeq)
}

func (r *routes) options(s *Session, req *rtsp.Request) error {
	return s.Conn().SendResponse(rtsp.StatusOK, "OK", req.CSeq, r.public, nil)
}

func (r *routes) pairVerify(s *Session, req *rtsp.Request) error {
	reject := func(reason string, err error) error {
		logrus.WithFields(logrus.Fields{
			"function": "pairVerify",
			"session":  s.ID(),
			"remote":   s.Conn().RemoteAddr(),
			"reason":   reason,
			"error":    fmt.Sprint(err),
		}).Warn("Pair-verify rejected")
		return s.Conn().SendResponse(rtsp.StatusBadRequest, rtsp.StatusText(rtsp.StatusBadRequest), req.CSeq, "", nil)
	}

	if s.Conn().Encrypted() {
		return reject("already paired", nil)
	}

	hs, err := pairing.NewResponder(r.identity)
	if err != nil {
		return reject("no identity", err)
	}
	msg2, err := hs.Respond(req.Body)
	if err != nil {
		return reject("handshake failed", err)
	}

	// The reply goes out in plaintext; everything after it is framed.
	if err := s.Conn().SendResponse(rtsp.StatusOK, "OK", req.CSeq,
		"Content-Type: application/octet-stream\r\n", msg2); err != nil {
		hs.Wipe()
		return err
	}
	if err := s.Pair(hs); err != nil {
		hs.Wipe()
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "pairVerify",
		"session":  s.ID(),
		"remote":   s.Conn().RemoteAddr(),
	}).Info("Session paired")
	return nil
}

func (r *routes) getInfo(s *Session, req *rtsp.Request) error {
	body := fmt.Sprintf("name: %s\r\nmodel: %s\r\n", r.info.Name, r.info.Model)
	if r.identity != nil {
		body += "pk: " + r.identity.PublicHex() + "\r\n"
	}
	return s.Conn().SendHTTPResponse(rtsp.StatusOK, "OK", "text/parameters", []byte(body))
}

func (r *routes) setup(s *Session, req *rtsp.Request) error {
	s.controlPort, s.timingPort = rtsp.ParseTransport(s.RequestBytes())

	logrus.WithFields(logrus.Fields{
		"function":     "setup",
		"session":      s.ID(),
		"control_port": s.controlPort,
		"timing_port":  s.timingPort,
	}).Debug("Session setup")

	headers := "Session: " + strconv.FormatUint(s.ID(), 10) + "\r\n"
	if transport, ok := req.Header("Transport"); ok {
		headers += "Transport: " + transport + "\r\n"
	}
	return s.Conn().SendResponse(rtsp.StatusOK, "OK", req.CSeq, headers, nil)
}

func (r *routes) getParameter(s *Session, req *rtsp.Request) error {
	if bytes.Contains(req.Body, []byte("volume")) {
		body := "volume: " + strconv.FormatFloat(s.volume, 'f', 6, 64) + "\r\n"
		return s.Conn().SendResponse(rtsp.StatusOK, "OK", req.CSeq,
			"Content-Type: text/parameters\r\n", []byte(body))
	}
	return s.Conn().SendOK(req.CSeq)
}

func (r *routes) setParameter(s *Session, req *rtsp.Request) error {
	for _, line := range strings.Split(string(req.Body), "\r\n") {
		name, value, found := strings.Cut(line, ":")
		if !found || !strings.EqualFold(strings.TrimSpace(name), "volume") {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return s.Conn().SendResponse(rtsp.StatusBadRequest, rtsp.StatusText(rtsp.StatusBadRequest), req.CSeq, "", nil)
		}
		s.volume = v
	}
	return s.Conn().SendOK(req.CSeq)
}

func (r *routes) teardown(s *Session, req *rtsp.Request) error {
	s.CloseAfterResponse()
	return s.Conn().SendOK(req.CSeq)
}
