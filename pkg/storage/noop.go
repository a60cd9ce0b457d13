package storage

import "context"

// NoopProber is a no-op implementation for testing.
type NoopProber struct{}

// NewNoopProber creates a new no-op prober.
func NewNoopProber() *NoopProber {
	return &NoopProber{}
}

// Name returns the prober name.
func (*NoopProber) Name() string {
	return "noop"
}

// Probe reports every target as available.
func (*NoopProber) Probe(_ context.Context, target Target) (*Availability, error) {
	return &Availability{Available: true, Bucket: target.Bucket, Prefix: target.Prefix}, nil
}

// Verify interface compliance.
var _ Prober = (*NoopProber)(nil)
