package provision

import "errors"

// Validation errors. Each aborts the run before any provisioning statement executes.
var (
	// ErrValidation is wrapped by every validation failure.
	ErrValidation = errors.New("depot validation failed")

	// ErrNoDatasets is returned when the configuration declares no datasets.
	ErrNoDatasets = errors.New("at least one dataset with name and address is required")

	// ErrUnsupportedType is returned when a depot type has no storage backend.
	ErrUnsupportedType = errors.New("depot type not supported")

	// ErrUnsupportedFormat is returned when a depot is not in iceberg format.
	ErrUnsupportedFormat = errors.New("only iceberg format depots are supported")

	// ErrMultipleDepots is returned when datasets span more than one depot.
	ErrMultipleDepots = errors.New("only one iceberg depot is supported")
)

// ErrProvision is wrapped by isolated failures of view and trailing statements.
var ErrProvision = errors.New("provisioning statement failed")
