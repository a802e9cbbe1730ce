package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/vvvdotnet/crusades/infra/supabase"
)

// SupabaseStore stores objects in a Supabase Storage bucket.
type SupabaseStore struct {
	storage *supabase.StorageClient
	bucket  string
}

// NewSupabase creates a SupabaseStore.
func NewSupabase(storage *supabase.StorageClient, bucket string) *SupabaseStore {
	return &SupabaseStore{storage: storage, bucket: bucket}
}

func (s *SupabaseStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	err := s.storage.Upload(ctx, s.bucket, key, body, &supabase.UploadOptions{
		ContentType:  contentType,
		CacheControl: "3600",
	})
	if err != nil {
		return fmt.Errorf("supabase put %s: %w", key, err)
	}
	return nil
}

// Get downloads key. Storage does not echo the content type on this path,
// so it is sniffed from the body.
func (s *SupabaseStore) Get(ctx context.Context, key string) (Object, error) {
	body, err := s.storage.Download(ctx, s.bucket, key)
	if err != nil {
		if supabase.IsNotFound(err) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("supabase get %s: %w", key, err)
	}
	return Object{Body: body, ContentType: mimetype.Detect(body).String()}, nil
}

func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	if err := s.storage.Delete(ctx, s.bucket, []string{key}); err != nil {
		return fmt.Errorf("supabase delete %s: %w", key, err)
	}
	return nil
}

func (s *SupabaseStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.storage.CreateSignedURL(ctx, s.bucket, key, int(ttl/time.Second))
	if err != nil {
		if supabase.IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("supabase sign %s: %w", key, err)
	}
	return u, nil
}
