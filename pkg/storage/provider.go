package storage

import "context"

// Prober checks that a dataset's files are reachable before the engine is
// pointed at them. S3 implements this. Future backends (Azure Blob) can too.
type Prober interface {
	// Name returns the prober name.
	Name() string

	// Probe lists the target prefix and reports what it found.
	Probe(ctx context.Context, target Target) (*Availability, error)
}
