// Package objectstore stores uploaded photos in a bucket. Backends: S3 (and
// S3-compatible services such as Cloudflare R2), MinIO, Supabase Storage,
// and an in-process map.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vvvdotnet/crusades/infra/supabase"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Object is a stored blob.
type Object struct {
	Body        []byte
	ContentType string
}

// Store is a flat key/value bucket.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) (Object, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// SignedURL returns a time-limited download URL for key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

const (
	BackendS3       = "s3"
	BackendMinio    = "minio"
	BackendSupabase = "supabase"
	BackendMemory   = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	Bucket  string

	// S3 / R2
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// MinIO
	MinioEndpoint string
	MinioUseSSL   bool

	// Supabase
	Supabase *supabase.Client
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Bucket == "" && cfg.Backend != BackendMemory && cfg.Backend != "" {
		return nil, fmt.Errorf("objectstore: bucket is required for %s", cfg.Backend)
	}

	switch cfg.Backend {
	case BackendS3:
		store, err := NewS3(ctx, S3Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendMinio:
		store, err := NewMinio(MinioConfig{
			Endpoint:        cfg.MinioEndpoint,
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UseSSL:          cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case BackendSupabase:
		if cfg.Supabase == nil {
			return nil, fmt.Errorf("objectstore: supabase backend needs SUPABASE_URL and SUPABASE_SERVICE_KEY")
		}
		return NewSupabase(cfg.Supabase.Storage(), cfg.Bucket), nil
	case BackendMemory, "":
		return NewMemory(cfg.Bucket), nil
	default:
		return nil, fmt.Errorf("objectstore: unknown backend %q", cfg.Backend)
	}
}
