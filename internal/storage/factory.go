package storage

import (
	"fmt"

	"posterstudio/internal/infra"
)

// FromConfig builds the configured store. The FileStore return is non-nil only
// for the filesystem driver, whose signed URLs the API has to serve itself.
func FromConfig(cfg *infra.Config) (Store, *FileStore, error) {
	switch cfg.StorageDriver {
	case infra.StorageDriverSupabase:
		s, err := NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)
		return s, nil, err
	case infra.StorageDriverS3:
		s, err := NewS3Store(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3BucketPrefix, cfg.S3UseSSL)
		return s, nil, err
	case infra.StorageDriverFilesystem:
		fs, err := NewFileStore(cfg.StoragePath, cfg.StorageBaseURL, cfg.StorageSigningKey)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs, nil
	default:
		return nil, nil, fmt.Errorf("storage: unsupported driver %q", cfg.StorageDriver)
	}
}
