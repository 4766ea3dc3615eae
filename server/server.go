package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/opd-ai/airtunes/config"
	"github.com/opd-ai/airtunes/framing"
	"github.com/opd-ai/airtunes/interfaces"
	"github.com/opd-ai/airtunes/transport"
	"github.com/sirupsen/logrus"
)

// ErrNotListening is returned by Serve when Listen has not succeeded.
var ErrNotListening = errors.New("server: not listening")

// Server accepts control connections and services all of them from a
// single poll goroutine.
type Server struct {
	cfg     config.ServerConfig
	block   int
	handler Handler

	mu       sync.Mutex
	listener net.Listener

	incoming chan net.Conn
	sessions []*Session
	nextID   uint64
}

// New creates a server for cfg that dispatches requests to handler.
func New(cfg *config.Config, handler Handler) *Server {
	return &Server{
		cfg:      cfg.Server,
		block:    cfg.Framing.MaxBlockSize,
		handler:  handler,
		incoming: make(chan net.Conn, cfg.Server.MaxConnections),
	}
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Server.Listen",
		"address":  ln.Addr().String(),
	}).Info("Control channel listening")
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe binds the configured address and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve runs the accept and poll loops until ctx is cancelled, then closes
// the listener and every session. It returns nil on cancellation.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		ln.Close()
	}()
	go func() {
		defer wg.Done()
		s.acceptLoop(ctx, ln)
	}()

	s.pollLoop(ctx)
	wg.Wait()

	close(s.incoming)
	for conn := range s.incoming {
		conn.Close()
	}
	for _, sess := range s.sessions {
		sess.close()
	}
	s.sessions = nil

	logrus.WithFields(logrus.Fields{
		"function": "Server.Serve",
	}).Info("Control channel stopped")
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			logrus.WithFields(logrus.Fields{
				"function": "Server.acceptLoop",
				"error":    err.Error(),
			}).Warn("Accept failed")
			continue
		}

		select {
		case s.incoming <- conn:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

func (s *Server) pollLoop(ctx context.Context) {
	idle := time.NewTimer(s.cfg.PollInterval())
	defer idle.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		progress := s.admitPending()
		if s.pollSessions() {
			progress = true
		}
		if progress {
			continue
		}

		idle.Reset(s.cfg.PollInterval())
		select {
		case <-ctx.Done():
			return
		case conn := <-s.incoming:
			s.admit(conn)
		case <-idle.C:
		}
	}
}

// admitPending takes every connection the accept loop has queued.
func (s *Server) admitPending() bool {
	admitted := false
	for {
		select {
		case conn := <-s.incoming:
			s.admit(conn)
			admitted = true
		default:
			return admitted
		}
	}
}

func (s *Server) admit(conn net.Conn) {
	fields := logrus.Fields{
		"function": "Server.admit",
		"remote":   conn.RemoteAddr().String(),
		"sessions": len(s.sessions),
	}
	if len(s.sessions) >= s.cfg.MaxConnections {
		logrus.WithFields(fields).Warn("Connection limit reached, dropping client")
		conn.Close()
		return
	}

	s.nextID++
	sess := newSession(s.nextID, s.socketFor(conn), s.cfg.ServerID, s.block)
	s.sessions = append(s.sessions, sess)

	fields["session"] = sess.id
	logrus.WithFields(fields).Info("Control connection accepted")
}

func (s *Server) socketFor(conn net.Conn) interfaces.ISocket {
	if s.cfg.RawSockets {
		raw, err := transport.NewRawSocket(conn, s.cfg.WriteTimeout())
		if err == nil {
			return raw
		}
		logrus.WithFields(logrus.Fields{
			"function": "Server.socketFor",
			"remote":   conn.RemoteAddr().String(),
			"error":    err.Error(),
		}).Debug("Raw socket unavailable, polling with deadlines")
	}
	return transport.NewConnSocket(conn, s.cfg.RecvPoll(), s.cfg.WriteTimeout())
}

// pollSessions gives every session one turn and drops the ones that ended.
func (s *Server) pollSessions() bool {
	progress := false
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		p, err := sess.poll(s.handler)
		if p {
			progress = true
		}
		if err != nil || sess.closing {
			s.endSession(sess, err)
			continue
		}
		kept = append(kept, sess)
	}
	for i := len(kept); i < len(s.sessions); i++ {
		s.sessions[i] = nil
	}
	s.sessions = kept
	return progress
}

func (s *Server) endSession(sess *Session, cause error) {
	fields := logrus.Fields{
		"function":  "Server.endSession",
		"session":   sess.id,
		"remote":    sess.conn.RemoteAddr(),
		"encrypted": sess.conn.Encrypted(),
		"lifetime":  time.Since(sess.created).String(),
	}
	switch {
	case cause == nil:
		logrus.WithFields(fields).Info("Session torn down")
	case errors.Is(cause, transport.ErrPeerClosed):
		logrus.WithFields(fields).Info("Client disconnected")
	default:
		fields["error"] = cause.Error()
		if kind := framing.KindOf(cause); kind != 0 {
			fields["kind"] = kind.String()
		}
		logrus.WithFields(fields).Warn("Closing session after error")
	}
	sess.close()
}
