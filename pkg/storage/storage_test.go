package storage

import (
	"context"
	"testing"
)

const storageTestBucket = "my-bucket"

func TestTargetString(t *testing.T) {
	tests := []struct {
		name     string
		target   Target
		expected string
	}{
		{
			name:     "bucket only",
			target:   Target{Bucket: storageTestBucket},
			expected: storageTestBucket,
		},
		{
			name:     "bucket with prefix",
			target:   Target{Bucket: storageTestBucket, Prefix: "lake/retail/orders/metadata/"},
			expected: "my-bucket/lake/retail/orders/metadata/",
		},
		{
			name:     "credentials are not printed",
			target:   Target{Bucket: storageTestBucket, AccessKeyID: "AKIA", SecretAccessKey: "shh"},
			expected: storageTestBucket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.target.String()
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestNoopProber(t *testing.T) {
	p := NewNoopProber()
	if p.Name() != "noop" {
		t.Errorf("expected 'noop', got %q", p.Name())
	}

	avail, err := p.Probe(context.Background(), Target{Bucket: storageTestBucket, Prefix: "x/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !avail.Available {
		t.Error("expected noop prober to report available")
	}
	if avail.Bucket != storageTestBucket || avail.Prefix != "x/" {
		t.Errorf("unexpected availability: %+v", avail)
	}
}
