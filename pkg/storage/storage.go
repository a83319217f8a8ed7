// Package storage defines the object store surface the image pipeline writes
// to, plus the naming rules shared by every backend.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/enums"
)

var (
	// ErrObjectNotFound is returned by Get when the key does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrEmptyPayload is returned when asked to store zero bytes.
	ErrEmptyPayload = errors.New("image data cannot be empty")
)

// ObjectStore puts, gets, lists and deletes byte payloads under named buckets.
// Put overwrites an existing object with the same key.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	List(ctx context.Context, bucket string) ([]string, error)
	Delete(ctx context.Context, bucket, key string) error
}

// BucketEnsurer is implemented by stores that can create buckets on demand.
type BucketEnsurer interface {
	EnsureBucket(ctx context.Context, bucket string) error
}

// Upload stores data under a freshly generated key and returns that key.
func Upload(ctx context.Context, store ObjectStore, bucket string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPayload
	}
	key := NewObjectKey(contentType)
	if err := store.Put(ctx, bucket, key, data, contentType); err != nil {
		return "", fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return key, nil
}

// Overwrite replaces the object at key, deriving the content type from the key.
func Overwrite(ctx context.Context, store ObjectStore, bucket, key string, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyPayload
	}
	if err := store.Put(ctx, bucket, key, data, ContentTypeForKey(key)); err != nil {
		return fmt.Errorf("overwrite %s/%s: %w", bucket, key, err)
	}
	return nil
}

// EnsureBuckets creates every configured bucket when the store supports it.
func EnsureBuckets(ctx context.Context, store ObjectStore, buckets Buckets) error {
	ensurer, ok := store.(BucketEnsurer)
	if !ok {
		return nil
	}
	for _, name := range buckets.All() {
		if err := ensurer.EnsureBucket(ctx, name); err != nil {
			return fmt.Errorf("ensure bucket %s: %w", name, err)
		}
	}
	return nil
}

// Buckets maps each image collection to its bucket.
type Buckets struct {
	Covers string
	Pages  string
}

func BucketsFromConfig(cfg config.StorageConfig) Buckets {
	return Buckets{Covers: cfg.CoversBucket, Pages: cfg.PagesBucket}
}

// For returns the bucket for collection, or "" when unknown.
func (b Buckets) For(collection enums.ImageCollection) string {
	switch collection {
	case enums.ImageCollectionCovers:
		return b.Covers
	case enums.ImageCollectionPages:
		return b.Pages
	default:
		return ""
	}
}

func (b Buckets) All() []string {
	return []string{b.Covers, b.Pages}
}
