package blob

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Store deletes media objects from the storage bucket. All deletes are
// best-effort: a missing object or prefix is not an error.
type Store struct {
	bucket *storage.BucketHandle
}

// NewStore opens the configured bucket
func NewStore(ctx context.Context, bucketName, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &Store{bucket: client.Bucket(bucketName)}, nil
}

// DeleteObject removes a single object. Already-missing objects are a no-op.
func (s *Store) DeleteObject(ctx context.Context, path string) error {
	err := s.bucket.Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

// DeletePrefix removes every object under the given prefix and returns the
// number deleted. A prefix with no objects is a no-op.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	deleted := 0
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return deleted, nil
		}
		if err != nil {
			return deleted, err
		}
		if err := s.bucket.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return deleted, err
		}
		deleted++
	}
}
