package depot

import "context"

// Resolver converts logical addresses into storage descriptors.
// The catalog service client implements this.
type Resolver interface {
	// Resolve looks up a single address.
	Resolve(ctx context.Context, address string) (*Resolved, error)
}

// SecretStore fetches the credentials registered for a depot.
type SecretStore interface {
	// Secret returns the credentials for the depot id.
	Secret(ctx context.Context, depot string) (*Credentials, error)
}
