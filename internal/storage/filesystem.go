package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// SignedPathPrefix is the URL path under which FileStore objects are served.
const SignedPathPrefix = "/storage/"

var (
	ErrInvalidSignature = errors.New("storage: invalid signature")
	ErrURLExpired       = errors.New("storage: signed url expired")
)

// FileStore persists objects onto the local filesystem and signs URLs with
// an HMAC so the API can serve them back. It is intended for development and
// test environments where an object storage service is not available.
type FileStore struct {
	basePath   string
	baseURL    string
	signingKey []byte
	now        func() time.Time
}

// NewFileStore initializes a FileStore rooted at basePath. Signed URLs point
// at baseURL + SignedPathPrefix.
func NewFileStore(basePath, baseURL, signingKey string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if signingKey == "" {
		return nil, errors.New("storage: signing key is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{
		basePath:   basePath,
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: []byte(signingKey),
		now:        time.Now,
	}, nil
}

// Put writes data at bucket/key, replacing any existing object.
func (s *FileStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return fmt.Errorf("storage: write file: %w", err)
	}
	return nil
}

// SignedURL returns a URL valid for ttl. The object does not need to exist yet.
func (s *FileStore) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if !knownBucket(bucket) {
		return "", fmt.Errorf("storage: unknown bucket %q", bucket)
	}
	expires := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", s.sign(bucket, cleanKey, expires))
	return fmt.Sprintf("%s%s%s/%s?%s", s.baseURL, SignedPathPrefix, bucket, escapeKey(cleanKey), q.Encode()), nil
}

// Verify checks a signature produced by SignedURL.
func (s *FileStore) Verify(bucket, key, expires, sig string) error {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	expected := s.sign(bucket, cleanKey, exp)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidSignature
	}
	if s.now().Unix() > exp {
		return ErrURLExpired
	}
	return nil
}

// Open returns the stored object for reading. The caller closes it.
func (s *FileStore) Open(bucket, key string) (*os.File, error) {
	fullPath, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return f, err
}

func (s *FileStore) sign(bucket, key string, expires int64) string {
	mac := hmac.New(sha256.New, s.signingKey)
	fmt.Fprintf(mac, "%s/%s:%d", bucket, key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *FileStore) objectPath(bucket, key string) (string, error) {
	if !knownBucket(bucket) {
		return "", fmt.Errorf("storage: unknown bucket %q", bucket)
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, bucket, filepath.FromSlash(cleanKey)), nil
}

func knownBucket(bucket string) bool {
	return bucket == BucketUploads || bucket == BucketGenerated
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

var _ Store = (*FileStore)(nil)
