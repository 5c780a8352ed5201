package storage

import (
	"fmt"

	"github.com/eyu/animal-counter/internal/config"
)

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - cfg: storage configuration including type, endpoint, credentials, and bucket.
//   - localDir: directory used by the local backend.
// Returns:
//   - ObjectStorage: initialized storage backend.
//   - error: non-nil if the backend cannot be created.
func NewStorage(cfg *config.StorageConfig, localDir string) (ObjectStorage, error) {
	storageType := cfg.Type
	if storageType == "" {
		// An endpoint implies an S3-compatible service; otherwise stay local.
		if cfg.Endpoint != "" {
			storageType = "s3"
		} else {
			storageType = "local"
		}
	}

	switch storageType {
	case "s3":
		return NewS3Storage(&S3Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			PublicURL: cfg.PublicURL,
		})
	case "local":
		return NewLocalStorage(localDir, cfg.PublicURL)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", storageType)
	}
}
