package engine

import "context"

// NoopEngine is a no-op implementation for testing.
type NoopEngine struct{}

// NewNoopEngine creates a new no-op engine.
func NewNoopEngine() *NoopEngine {
	return &NoopEngine{}
}

// Name returns the engine name.
func (*NoopEngine) Name() string {
	return "noop"
}

// Execute returns an empty result.
func (*NoopEngine) Execute(_ context.Context, _ string) (*Result, error) {
	return &Result{Columns: []string{}, Rows: [][]any{}}, nil
}

// Views returns no views.
func (*NoopEngine) Views(_ context.Context) ([]View, error) {
	return []View{}, nil
}

// Secrets returns no secrets.
func (*NoopEngine) Secrets(_ context.Context) ([]Secret, error) {
	return []Secret{}, nil
}

// Close does nothing.
func (*NoopEngine) Close() error {
	return nil
}

// Verify interface compliance.
var _ Engine = (*NoopEngine)(nil)
