package meta

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/imamik/provision/internal/config"
	"github.com/imamik/provision/internal/platform/s3"
	"github.com/imamik/provision/internal/util/naming"
)

// ErrMetadataUnavailable is returned when a node's record is missing or
// cannot be read. Callers treat the node as not destroyable.
var ErrMetadataUnavailable = errors.New("destroyability record unavailable")

// Store persists destroyability records.
type Store interface {
	Save(ctx context.Context, node string, rec Record) error
	// Destroyable reports whether node may be destroyed. It returns false
	// together with an error wrapping ErrMetadataUnavailable when the
	// record cannot be consulted.
	Destroyable(ctx context.Context, node string) (bool, error)
	Delete(ctx context.Context, node string) error
}

// ObjectClient is the subset of the S3 client used by S3Store.
type ObjectClient interface {
	CreateBucket(ctx context.Context, bucket string) error
	PutObjectWithMetadata(ctx context.Context, bucket, key string, metadata map[string]string) error
	HeadObjectMetadata(ctx context.Context, bucket, key string) (map[string]string, bool, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}

// S3Store keeps records as zero-byte objects in one bucket.
type S3Store struct {
	client ObjectClient
	bucket string
	log    logr.Logger

	bucketOnce sync.Once
	bucketErr  error
}

var _ Store = (*S3Store)(nil)

// NewS3Store returns a store writing to bucket through client.
func NewS3Store(client ObjectClient, bucket string, log logr.Logger) *S3Store {
	return &S3Store{client: client, bucket: bucket, log: log}
}

// Open builds an S3Store from configuration. It returns nil when no store
// is configured.
func Open(settings config.MetadataSettings, log logr.Logger) (*S3Store, error) {
	if !settings.Enabled() {
		return nil, nil
	}
	region := settings.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := s3.NewClient(settings.Endpoint, region, settings.AccessKey, settings.SecretKey,
		s3.WithPathStyle(settings.PathStyle))
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata store client: %w", err)
	}
	return NewS3Store(client, settings.Bucket, log), nil
}

// Save writes the record of node, creating the bucket on first use.
func (s *S3Store) Save(ctx context.Context, node string, rec Record) error {
	s.bucketOnce.Do(func() {
		s.bucketErr = s.client.CreateBucket(ctx, s.bucket)
	})
	if s.bucketErr != nil {
		return fmt.Errorf("failed to save record for %s: %w", node, s.bucketErr)
	}
	if err := s.client.PutObjectWithMetadata(ctx, s.bucket, naming.MetadataKey(node), rec.Metadata()); err != nil {
		return fmt.Errorf("failed to save record for %s: %w", node, err)
	}
	s.log.V(1).Info("saved destroyability record", "node", node, "destroyable", rec.Destroyable)
	return nil
}

// Destroyable reads the record of node.
func (s *S3Store) Destroyable(ctx context.Context, node string) (bool, error) {
	md, found, err := s.client.HeadObjectMetadata(ctx, s.bucket, naming.MetadataKey(node))
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrMetadataUnavailable, node, err)
	}
	if !found {
		return false, fmt.Errorf("%w: no record for %s", ErrMetadataUnavailable, node)
	}
	return destroyable(md), nil
}

// Delete removes the record of node.
func (s *S3Store) Delete(ctx context.Context, node string) error {
	if err := s.client.DeleteObject(ctx, s.bucket, naming.MetadataKey(node)); err != nil {
		return fmt.Errorf("failed to delete record for %s: %w", node, err)
	}
	return nil
}
