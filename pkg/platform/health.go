package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
)

// healthServer serves the health routes from before provisioning until the
// platform closes.
type healthServer struct {
	addr    string
	handler http.Handler

	srv      *http.Server
	listener net.Listener
	errs     chan error
}

func newHealthServer(addr string, handler http.Handler) *healthServer {
	return &healthServer{addr: addr, handler: handler}
}

// Start binds the address and serves in the background.
func (h *healthServer) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("health server: listening on %s: %w", h.addr, err)
	}
	h.listener = ln
	h.srv = &http.Server{
		Handler:           h.handler,
		ReadHeaderTimeout: healthReadHeaderTimeout,
	}
	h.errs = make(chan error, 1)

	slog.Info("health server listening", "addr", ln.Addr().String())
	go func() {
		defer close(h.errs)
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.errs <- fmt.Errorf("health server: %w", err)
		}
	}()
	return nil
}

// Stop shuts the server down, waiting up to healthShutdownTimeout.
func (h *healthServer) Stop(ctx context.Context) error {
	if h.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), healthShutdownTimeout)
	defer cancel()
	return h.srv.Shutdown(ctx)
}

// Addr returns the bound address, or the configured one before Start.
func (h *healthServer) Addr() string {
	if h.listener == nil {
		return h.addr
	}
	return h.listener.Addr().String()
}

// Errors reports a serve failure, and is closed once the server exits.
func (h *healthServer) Errors() <-chan error {
	return h.errs
}
