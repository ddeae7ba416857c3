package media

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Storage defines the file operations needed for post images.
type Storage interface {
	// Write stores content from the reader with the given key.
	// The size parameter is the expected content size (-1 if unknown).
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read retrieves content for the given key.
	// The caller is responsible for closing the returned ReadCloser.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns a URL clients can fetch the content from.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Config selects the backend.
type Config struct {
	Backend   string        `mapstructure:"backend"` // local, s3
	URLExpiry time.Duration `mapstructure:"url_expiry"`
	Local     LocalConfig   `mapstructure:"local"`
	S3        S3Config      `mapstructure:"s3"`
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStorage(cfg.Local)
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported media backend: %s", cfg.Backend)
	}
}
