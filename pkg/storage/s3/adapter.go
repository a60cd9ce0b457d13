// Package s3 provides an S3 implementation of the storage prober.
package s3

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tmdc-io/pgduck/pkg/storage"
)

// MetadataDir is the Iceberg metadata directory under a table prefix.
const MetadataDir = "metadata/"

// ListAPI is the subset of the S3 client used by the prober.
// This interface allows for mocking in tests.
type ListAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// ClientFactory builds a client scoped to one target's credentials.
type ClientFactory func(ctx context.Context, target storage.Target) (ListAPI, error)

// Prober implements storage.Prober using S3.
type Prober struct {
	newClient ClientFactory
}

// New creates a prober that builds its clients with factory.
func New(factory ClientFactory) (*Prober, error) {
	if factory == nil {
		return nil, fmt.Errorf("s3 client factory is required")
	}
	return &Prober{newClient: factory}, nil
}

// NewDefault creates a prober backed by the AWS SDK.
func NewDefault() *Prober {
	return &Prober{newClient: NewClient}
}

// NewClient builds an S3 client for the target. Static credentials take
// precedence over the default chain. A custom endpoint switches to path-style
// addressing for S3-compatible services.
func NewClient(ctx context.Context, target storage.Target) (ListAPI, error) {
	var opts []func(*config.LoadOptions) error
	if target.Region != "" {
		opts = append(opts, config.WithRegion(target.Region))
	}
	if target.AccessKeyID != "" && target.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(target.AccessKeyID, target.SecretAccessKey, "")
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if target.Endpoint != "" {
		endpoint := target.Endpoint
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

// Name returns the prober name.
func (*Prober) Name() string {
	return "s3"
}

// Probe lists at most one object under the target's Iceberg metadata
// directory. A listing error is returned; an empty listing is reported as
// unavailable without error.
func (p *Prober) Probe(ctx context.Context, target storage.Target) (*storage.Availability, error) {
	if target.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	client, err := p.newClient(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", err)
	}

	prefix := MetadataPrefix(target.Prefix)
	out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(target.Bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return &storage.Availability{
			Bucket: target.Bucket,
			Prefix: prefix,
			Error:  err.Error(),
		}, fmt.Errorf("listing s3://%s/%s: %w", target.Bucket, prefix, err)
	}

	avail := &storage.Availability{
		Bucket:      target.Bucket,
		Prefix:      prefix,
		ObjectCount: int64(len(out.Contents)),
		Available:   len(out.Contents) > 0,
	}
	if avail.Available {
		avail.LastModified = out.Contents[0].LastModified
	} else {
		avail.Error = "no iceberg metadata found"
	}
	return avail, nil
}

// MetadataPrefix returns the metadata directory key prefix for a table prefix.
func MetadataPrefix(tablePrefix string) string {
	tablePrefix = strings.Trim(tablePrefix, "/")
	if tablePrefix == "" {
		return MetadataDir
	}
	return tablePrefix + "/" + MetadataDir
}

// Verify interface compliance.
var _ storage.Prober = (*Prober)(nil)
