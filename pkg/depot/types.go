// Package depot resolves logical dataset addresses into storage locations
// and fetches the credentials registered for each depot.
package depot

import "strings"

// Type is the depot type reported by the catalog service.
type Type string

// Supported depot types.
const (
	TypeS3    Type = "s3"
	TypeABFSS Type = "abfss"
	TypeWASBS Type = "wasbs"
)

// Backend groups depot types by the storage protocol they speak.
type Backend int

// Storage backends.
const (
	BackendUnknown Backend = iota
	BackendObjectStorage
	BackendBlobStorage
)

// String returns the backend name.
func (b Backend) String() string {
	switch b {
	case BackendObjectStorage:
		return "object-storage"
	case BackendBlobStorage:
		return "blob-storage"
	default:
		return "unknown"
	}
}

// Backend maps the type to its storage backend. Matching is case-insensitive.
func (t Type) Backend() Backend {
	switch Type(strings.ToLower(string(t))) {
	case TypeS3:
		return BackendObjectStorage
	case TypeABFSS, TypeWASBS:
		return BackendBlobStorage
	default:
		return BackendUnknown
	}
}

// Supported reports whether the type maps to a known backend.
func (t Type) Supported() bool {
	return t.Backend() != BackendUnknown
}

// FormatIceberg is the only table format the engine can scan.
const FormatIceberg = "iceberg"

// Location holds the provider-specific location fields of a resolved depot.
type Location struct {
	Bucket       string `json:"bucket,omitempty"`
	Container    string `json:"container,omitempty"`
	Account      string `json:"account,omitempty"`
	RelativePath string `json:"relativePath,omitempty"`
	Region       string `json:"region,omitempty"`
	Endpoint     string `json:"endpoint,omitempty"`
	Format       string `json:"format,omitempty"`
}

// Resolved is the storage descriptor returned for one address.
type Resolved struct {
	Address    string   `json:"address"`
	Depot      string   `json:"depot"`
	Type       Type     `json:"type"`
	Collection string   `json:"collection"`
	Dataset    string   `json:"dataset"`
	Location   Location `json:"location"`
}

// Format returns the table format declared in the location.
func (r *Resolved) Format() string {
	return r.Location.Format
}

// IsIceberg reports whether the format is iceberg, ignoring case.
func (r *Resolved) IsIceberg() bool {
	return strings.EqualFold(r.Location.Format, FormatIceberg)
}

// Root returns the bucket or container the dataset lives in.
func (r *Resolved) Root() string {
	if r.Type.Backend() == BackendBlobStorage {
		return r.Location.Container
	}
	return r.Location.Bucket
}

// Prefix returns <relativePath>/<collection>/<dataset> inside the root.
// Exactly one leading slash of the relative path is dropped.
func (r *Resolved) Prefix() string {
	rel := strings.TrimPrefix(r.Location.RelativePath, "/")
	return rel + "/" + r.Collection + "/" + r.Dataset
}

// Path returns <root>/<relativePath>/<collection>/<dataset>.
func (r *Resolved) Path() string {
	return r.Root() + "/" + r.Prefix()
}
