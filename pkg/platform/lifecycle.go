package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Lifecycle runs startup hooks in order and releases resources in reverse
// on shutdown.
type Lifecycle struct {
	mu sync.Mutex

	hooks   []hook
	closers []Closer

	// started counts the hooks whose start succeeded.
	started int
	running bool
	stopped bool
}

type hook struct {
	name  string
	start func(context.Context) error
	stop  func(context.Context) error
}

// NewLifecycle creates a new lifecycle manager.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// OnStart registers a named startup step with no matching stop.
func (l *Lifecycle) OnStart(name string, start func(context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook{name: name, start: start})
}

// Component is something that can be started and stopped.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// RegisterComponent registers a component. Its Stop runs only if its Start
// succeeded.
func (l *Lifecycle) RegisterComponent(name string, c Component) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook{name: name, start: c.Start, stop: c.Stop})
}

// Closer is something that can be closed.
type Closer interface {
	Close() error
}

// RegisterCloser registers a resource closed on Stop whether or not Start
// ran or succeeded.
func (l *Lifecycle) RegisterCloser(c Closer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closers = append(l.closers, c)
}

// Start runs the startup steps in registration order. On failure the
// components already started are stopped in reverse.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("lifecycle already started")
	}
	if l.stopped {
		return fmt.Errorf("lifecycle already stopped")
	}

	for i, h := range l.hooks {
		if err := h.start(ctx); err != nil {
			l.rollback(ctx)
			return fmt.Errorf("starting %s: %w", h.name, err)
		}
		l.started = i + 1
	}

	l.running = true
	return nil
}

// rollback stops already-started components in reverse order.
func (l *Lifecycle) rollback(ctx context.Context) {
	for j := l.started - 1; j >= 0; j-- {
		h := l.hooks[j]
		if h.stop == nil {
			continue
		}
		if err := h.stop(ctx); err != nil {
			slog.Warn("lifecycle rollback: stop failed", "step", h.name, "error", err)
		}
	}
	l.started = 0
}

// Stop stops started components in reverse order, then closes every
// registered closer in reverse order. Calls after the first are no-ops.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return nil
	}
	l.stopped = true
	l.running = false

	var errs []error
	for j := l.started - 1; j >= 0; j-- {
		h := l.hooks[j]
		if h.stop == nil {
			continue
		}
		if err := h.stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", h.name, err))
		}
	}
	l.started = 0

	for i := len(l.closers) - 1; i >= 0; i-- {
		if err := l.closers[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("closer %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// IsStarted returns whether Start completed and Stop has not run.
func (l *Lifecycle) IsStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
