// Package storage keeps uploaded photos and generated images in private
// buckets and hands out short-lived signed URLs for them.
package storage

import (
	"context"
	"errors"
	"time"
)

// Private buckets.
const (
	BucketUploads   = "uploads"
	BucketGenerated = "generated"
)

// Signed URL lifetimes.
const (
	ReferenceURLTTL = 5 * time.Minute
	ViewURLTTL      = 60 * time.Second
)

// ErrObjectNotFound is returned when a stored object does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// Store is an object store with private buckets. Put overwrites existing
// objects at the same key.
type Store interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
