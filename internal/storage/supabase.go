package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

// supabaseBuckets is the subset of the storage-go client the store uses.
type supabaseBuckets interface {
	UploadFile(bucketId string, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	CreateSignedUrl(bucketId string, filePath string, expiresIn int) (storage_go.SignedUrlResponse, error)
}

// SupabaseStore keeps objects in Supabase Storage using the service role key.
// storage-go calls take no context, so cancellation is only checked before
// each request.
type SupabaseStore struct {
	buckets     supabaseBuckets
	supabaseURL string
}

// NewSupabaseStore connects to the project at supabaseURL.
func NewSupabaseStore(supabaseURL, serviceRoleKey string) (*SupabaseStore, error) {
	client, err := supabase.NewClient(supabaseURL, serviceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: create supabase client: %w", err)
	}
	return &SupabaseStore{buckets: client.Storage, supabaseURL: strings.TrimRight(supabaseURL, "/")}, nil
}

func (s *SupabaseStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := true
	_, err := s.buckets.UploadFile(bucket, key, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("storage upload failed: %w", err)
	}
	return nil
}

func (s *SupabaseStore) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	seconds := int(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	resp, err := s.buckets.CreateSignedUrl(bucket, key, seconds)
	if err != nil {
		return "", fmt.Errorf("signed url failed: %w", err)
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("signed url failed: empty response for %s/%s", bucket, key)
	}
	return s.absolute(resp.SignedURL), nil
}

// absolute resolves the relative "/object/sign/..." form some storage
// versions return against the project storage endpoint.
func (s *SupabaseStore) absolute(signed string) string {
	if strings.HasPrefix(signed, "http://") || strings.HasPrefix(signed, "https://") {
		return signed
	}
	return s.supabaseURL + "/storage/v1" + "/" + strings.TrimLeft(signed, "/")
}

var _ Store = (*SupabaseStore)(nil)
