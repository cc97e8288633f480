package feed

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSSource reads feed objects from Cloud Storage.
type GCSSource struct {
	client *storage.Client
}

// NewGCSSource creates a storage client from application default credentials.
func NewGCSSource(ctx context.Context) (*GCSSource, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSSource{client: client}, nil
}

// Open reads bucket/object. A missing bucket or object is reported as such.
func (s *GCSSource) Open(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, fmt.Errorf("gs://%s/%s does not exist", bucket, object)
	}
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", bucket, object, err)
	}
	return r, nil
}

// Close releases the storage client.
func (s *GCSSource) Close() error {
	return s.client.Close()
}
