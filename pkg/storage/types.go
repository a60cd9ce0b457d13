// Package storage provides preflight checks against the storage behind a depot.
package storage

import "time"

// Target identifies a dataset prefix and the credentials to read it with.
type Target struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string

	AccessKeyID     string
	SecretAccessKey string
}

// String returns bucket/prefix. Credentials are never included.
func (t Target) String() string {
	if t.Prefix != "" {
		return t.Bucket + "/" + t.Prefix
	}
	return t.Bucket
}

// Availability reports whether a prefix holds any objects.
type Availability struct {
	Available    bool       `json:"available"`
	Bucket       string     `json:"bucket,omitempty"`
	Prefix       string     `json:"prefix,omitempty"`
	ObjectCount  int64      `json:"object_count,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	Error        string     `json:"error,omitempty"`
}
