package depot

import "errors"

var (
	// ErrResolution is returned when an address cannot be resolved, either
	// because the catalog service is unreachable or it answered with a
	// non-success status.
	ErrResolution = errors.New("address resolution failed")

	// ErrSecret is returned when credential material is missing or malformed.
	ErrSecret = errors.New("depot secret unavailable")

	// ErrSecretNotFound is returned when neither the secret file nor the
	// environment fallback exists for a depot.
	ErrSecretNotFound = errors.New("secret not found")
)
