// Package server accepts connections and runs one Handler goroutine per
// connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	petname "github.com/dustinkirkland/golang-petname"

	"github.com/darkprince558/flip/internal/logging"
	"github.com/darkprince558/flip/internal/transport"
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("server closed")

// Config configures a Server.
type Config struct {
	Handler Handler
	Logger  logging.Logger
	// OnSession is called from the handler goroutine after each connection.
	OnSession func(SessionReport)
	// NewID names connections in logs and reports.
	NewID func() string
}

// Server owns listeners and tracks in-flight handlers so callers may drain
// them. Handlers share nothing with each other.
type Server struct {
	cfg       Config
	log       logging.Logger
	mu        sync.Mutex
	listeners map[transport.Listener]struct{}
	closed    bool
	handlers  sync.WaitGroup
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Handler.Logger == nil {
		cfg.Handler.Logger = cfg.Logger
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return petname.Generate(2, "-") }
	}
	return &Server{
		cfg:       cfg,
		log:       cfg.Logger,
		listeners: make(map[transport.Listener]struct{}),
	}
}

// Serve accepts connections from ln until ln is closed. Each connection runs
// on its own goroutine; Serve never waits for one.
func (s *Server) Serve(ln transport.Listener) error {
	if !s.track(ln) {
		return ErrServerClosed
	}
	defer s.untrack(ln)

	s.log.Infof("Listening on %s", ln.Addr())
	var backoff time.Duration
	for {
		conn, err := ln.Accept(context.Background())
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener %s stopped: %w", ln.Addr(), err)
			}
			// Transient, e.g. out of file descriptors.
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			s.log.Warnf("Accept error: %v; retrying in %v", err, backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if !s.startHandler() {
			conn.Close()
			return ErrServerClosed
		}
		go s.handle(conn)
	}
}

// startHandler registers a handler unless Close has already run, so Wait
// never races a new Add.
func (s *Server) startHandler() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.handlers.Add(1)
	return true
}

func (s *Server) handle(conn transport.Conn) {
	defer s.handlers.Done()
	id := s.cfg.NewID()

	var rep SessionReport
	func() {
		defer func() {
			if r := recover(); r != nil {
				conn.Close()
				rep = SessionReport{ID: id, Err: fmt.Errorf("handler panic: %v", r)}
				s.log.Errorf("[%s] handler panic: %v", id, r)
			}
		}()
		rep = s.cfg.Handler.Serve(conn, id)
	}()

	if s.cfg.OnSession != nil {
		s.cfg.OnSession(rep)
	}
}

func (s *Server) track(ln transport.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrack(ln transport.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close closes every listener. In-flight handlers keep running.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for ln := range s.listeners {
		if err := ln.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until every handler started so far has returned.
func (s *Server) Wait() {
	s.handlers.Wait()
}

// Shutdown closes the listeners and waits for handlers until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Close()
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
