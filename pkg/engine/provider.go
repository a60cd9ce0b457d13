package engine

import "context"

// Executor runs statements against the query engine.
// DuckDB implements this. The provisioning pipeline and the wire server
// share one Executor.
type Executor interface {
	// Execute runs a statement and returns whatever rows it produced.
	Execute(ctx context.Context, sql string) (*Result, error)
}

// Catalog lists objects that exist inside the engine.
type Catalog interface {
	// Views returns the user-defined views, ordered by name.
	Views(ctx context.Context) ([]View, error)

	// Secrets returns the registered secrets, ordered by name.
	Secrets(ctx context.Context) ([]Secret, error)
}

// Engine is an Executor that also exposes its catalog and can be closed.
type Engine interface {
	Executor
	Catalog

	// Name returns the engine name.
	Name() string

	// Close releases resources.
	Close() error
}
