// Package photos stores progress photos in the object store and hands out
// time-limited URLs for them.
package photos

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/vvvdotnet/crusades/internal/app/core/service"
	"github.com/vvvdotnet/crusades/internal/app/metrics"
	"github.com/vvvdotnet/crusades/internal/errors"
	"github.com/vvvdotnet/crusades/internal/httputil"
	"github.com/vvvdotnet/crusades/internal/logging"
	"github.com/vvvdotnet/crusades/internal/objectstore"
)

const (
	// MaxSize is the largest accepted photo.
	MaxSize = 5 << 20
	// SignedURLTTL is how long a returned photo URL stays valid.
	SignedURLTTL = 24 * time.Hour

	maxNameLen = 100
)

var allowedTypes = []string{"image/jpeg", "image/png"}

// Upload is a photo as received from a form.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Photo is a stored photo.
type Photo struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int    `json:"size"`
	Type string `json:"type"`
}

// Service validates and stores photos.
type Service struct {
	store objectstore.Store
	log   *logging.Logger
}

func New(store objectstore.Store, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("photos")
	}
	return &Service{store: store, log: log}
}

// Upload stores a JPEG or PNG photo under the user's prefix. The type is
// detected from the content, not from the declared filename or header.
func (s *Service) Upload(ctx context.Context, userID string, up Upload) (Photo, error) {
	if up.Body == nil {
		return Photo{}, errors.BadRequest("No photo provided")
	}
	data, err := httputil.ReadAllStrict(up.Body, MaxSize)
	if err != nil {
		metrics.RecordPhotoUpload("rejected", 0)
		return Photo{}, errors.BadRequest("File size must be less than 5MB")
	}
	if len(data) == 0 {
		metrics.RecordPhotoUpload("rejected", 0)
		return Photo{}, errors.BadRequest("No photo provided")
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedTypes...) {
		metrics.RecordPhotoUpload("rejected", len(data))
		return Photo{}, errors.BadRequest("Invalid file type. Only JPEG and PNG are allowed").
			WithDetails("detected", mt.String())
	}

	key := Key(userID, up.Filename)
	if err := s.store.Put(ctx, key, data, mt.String()); err != nil {
		metrics.RecordPhotoUpload("error", len(data))
		return Photo{}, errors.Upstream("Failed to upload photo", err)
	}
	url, err := s.store.SignedURL(ctx, key, SignedURLTTL)
	if err != nil {
		metrics.RecordPhotoUpload("error", len(data))
		return Photo{}, errors.Upstream("Failed to upload photo", err)
	}

	metrics.RecordPhotoUpload("ok", len(data))
	s.log.WithContext(ctx).WithFields(map[string]interface{}{"key": key, "size": len(data)}).Debug("photo stored")
	return Photo{Key: key, URL: url, Size: len(data), Type: mt.String()}, nil
}

// Delete removes a photo owned by userID.
func (s *Service) Delete(ctx context.Context, userID, key string) error {
	if !Owns(userID, key) {
		s.log.LogSecurityEvent(ctx, "photo_delete_forbidden", map[string]interface{}{"key": key})
		return errors.Forbidden("Unauthorized")
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return errors.Upstream("Failed to delete photo", err)
	}
	return nil
}

// Discard deletes keys, logging failures. It cleans up after a request that
// stored photos but failed later.
func (s *Service) Discard(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("key", key).Warn("failed to discard photo")
		}
	}
}

// SignedURLs returns a viewable URL per key. Keys that no longer resolve are
// skipped.
func (s *Service) SignedURLs(ctx context.Context, keys []string) []string {
	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		url, err := s.store.SignedURL(ctx, key, SignedURLTTL)
		if err != nil {
			if !stderrors.Is(err, objectstore.ErrNotFound) {
				s.log.WithContext(ctx).WithError(err).WithField("key", key).Warn("failed to sign photo url")
			}
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

// Owns reports whether key lives under the user's prefix.
func Owns(userID, key string) bool {
	return userID != "" && strings.HasPrefix(key, userID+"/") && !strings.Contains(key, "..")
}

// Key builds "<userID>/<uuid>-<name>" for a photo.
func Key(userID, filename string) string {
	return fmt.Sprintf("%s/%s-%s", userID, uuid.NewString(), SanitizeName(filename))
}

// SanitizeName reduces a client filename to a safe object name.
func SanitizeName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxNameLen {
		out = out[len(out)-maxNameLen:]
	}
	if out == "" {
		return "photo"
	}
	return out
}

// Descriptor advertises the service.
func (s *Service) Descriptor() service.Descriptor {
	return service.Descriptor{Name: "photos", Domain: "progress", Layer: service.LayerAPI, Capabilities: []string{"upload", "delete", "signed-url"}}
}
