// Package server exposes the query engine over the PostgreSQL wire protocol.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/tmdc-io/pgduck/pkg/engine"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = "0.0.0.0:5433"

// Version is set at build time.
var Version = "dev"

// Config holds wire server configuration.
type Config struct {
	// Addr is the host:port to listen on.
	Addr string

	// Users maps user names to bcrypt password hashes. Empty disables
	// authentication and every startup is accepted.
	Users map[string]string
}

// Server accepts PostgreSQL clients and answers simple queries from an engine.
type Server struct {
	cfg      Config
	exec     engine.Executor
	listener net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// New creates a server over an executor.
func New(cfg Config, exec engine.Executor) (*Server, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		cfg:   cfg,
		exec:  exec,
		conns: make(map[net.Conn]struct{}),
		done:  make(chan struct{}),
	}, nil
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener
	slog.Info("pgwire server listening", "addr", listener.Addr().String(), "auth", len(s.cfg.Users) > 0)
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Serve accepts connections until ctx is done or Shutdown is called. It
// binds the address first when Listen has not been called.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Shutdown()
		case <-s.done:
		}
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				s.wg.Wait()
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Warn("accept error", "error", err)
			continue
		}

		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			defer func() { _ = conn.Close() }()
			s.handle(ctx, conn)
		}()
	}
}

// Shutdown stops accepting and closes every open client connection.
func (s *Server) Shutdown() {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.done)
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// Close implements io.Closer.
func (s *Server) Close() error {
	s.Shutdown()
	return nil
}

func (s *Server) track(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		select {
		case <-s.done:
			_ = c.Close()
		default:
			s.conns[c] = struct{}{}
		}
		return
	}
	delete(s.conns, c)
}
