// Package storage abstracts the object store that holds heap dump
// captures and published analysis results. Captures are fetched by key,
// flame graph artifacts are uploaded back under a result prefix.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/heapgraph-analysis/pkg/config"
)

// Storage is the object store used for capture input and result output.
type Storage interface {
	// Upload stores the reader's content under key.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// UploadFile stores a local file under key.
	UploadFile(ctx context.Context, key string, localPath string) error

	// Download opens the object stored under key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// Backend names a storage implementation.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendCOS   Backend = "cos"
)

// NewStorage builds the backend selected by the configuration. An empty
// type falls back to local storage.
func NewStorage(cfg *config.StorageConfig) (Storage, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch Backend(cfg.Type) {
	case BackendCOS:
		return NewCOSStorage(&COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
		})
	default:
		return NewLocalStorage(cfg.LocalPath)
	}
}

// ValidateConfig checks that the selected backend has what it needs.
func ValidateConfig(cfg *config.StorageConfig) error {
	if cfg == nil {
		return fmt.Errorf("storage config is nil")
	}

	backend := Backend(cfg.Type)
	if backend == "" {
		backend = BackendLocal
	}

	switch backend {
	case BackendLocal:
		if cfg.LocalPath == "" {
			return fmt.Errorf("local storage path is required")
		}
	case BackendCOS:
		if cfg.Bucket == "" {
			return fmt.Errorf("COS bucket is required")
		}
		if cfg.Region == "" {
			return fmt.Errorf("COS region is required")
		}
		if cfg.SecretID == "" || cfg.SecretKey == "" {
			return fmt.Errorf("COS credentials are required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}

	return nil
}
