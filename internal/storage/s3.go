package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// minioClient is the subset of *minio.Client the store uses.
type minioClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// S3Store keeps objects in any S3 compatible service. Logical buckets map to
// prefix+bucket so several environments can share one account.
type S3Store struct {
	client       minioClient
	bucketPrefix string
}

// NewS3Store creates a store for the S3 endpoint (host[:port], no scheme).
func NewS3Store(endpoint, accessKey, secretKey, bucketPrefix string, useSSL bool) (*S3Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create s3 client: %w", err)
	}
	return &S3Store{client: client, bucketPrefix: bucketPrefix}, nil
}

func (s *S3Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucketName(bucket), key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("storage upload failed: %w", err)
	}
	return nil
}

func (s *S3Store) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucketName(bucket), key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("signed url failed: %w", err)
	}
	return u.String(), nil
}

func (s *S3Store) bucketName(bucket string) string {
	return s.bucketPrefix + bucket
}

var _ Store = (*S3Store)(nil)
