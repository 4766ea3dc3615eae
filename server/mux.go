package server

import (
	"slices"
	"strings"

	"github.com/opd-ai/airtunes/rtsp"
	"github.com/sirupsen/logrus"
)

// Handler responds to a request on a session. Returning an error closes the
// session; protocol-level failures should be answered with a status code
// instead.
type Handler interface {
	ServeRTSP(s *Session, req *rtsp.Request) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(s *Session, req *rtsp.Request) error

// ServeRTSP calls f(s, req).
func (f HandlerFunc) ServeRTSP(s *Session, req *rtsp.Request) error {
	return f(s, req)
}

// Mux routes requests by method and, optionally, path. A route registered
// with an empty path matches any path for its method; an exact method and
// path route takes precedence.
type Mux struct {
	routes   map[string]Handler
	fallback Handler
}

// NewMux returns a mux that answers unknown requests with 501.
func NewMux() *Mux {
	return &Mux{
		routes:   make(map[string]Handler),
		fallback: HandlerFunc(notImplemented),
	}
}

func routeKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Handle registers h for method and path.
func (m *Mux) Handle(method, path string, h Handler) {
	m.routes[routeKey(method, path)] = h
}

// HandleFunc registers f for method and path.
func (m *Mux) HandleFunc(method, path string, f func(*Session, *rtsp.Request) error) {
	m.Handle(method, path, HandlerFunc(f))
}

// Methods lists the registered methods, sorted and deduplicated, for the
// Public header.
func (m *Mux) Methods() []string {
	seen := make(map[string]bool)
	var out []string
	for key := range m.routes {
		method, _, _ := strings.Cut(key, " ")
		if !seen[method] {
			seen[method] = true
			out = append(out, method)
		}
	}
	slices.Sort(out)
	return out
}

// ServeRTSP implements Handler.
func (m *Mux) ServeRTSP(s *Session, req *rtsp.Request) error {
	if h, ok := m.routes[routeKey(req.Method, req.Path)]; ok {
		return h.ServeRTSP(s, req)
	}
	if h, ok := m.routes[routeKey(req.Method, "")]; ok {
		return h.ServeRTSP(s, req)
	}
	return m.fallback.ServeRTSP(s, req)
}

func notImplemented(s *Session, req *rtsp.Request) error {
	logrus.WithFields(logrus.Fields{
		"function": "notImplemented",
		"session":  s.ID(),
		"method":   req.Method,
		"path":     req.Path,
	}).Info("Unsupported request")
	return s.Conn().SendResponse(rtsp.StatusNotImplemented, rtsp.StatusText(rtsp.StatusNotImplemented), req.CSeq, "", nil)
}
