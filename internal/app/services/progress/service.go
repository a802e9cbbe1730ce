// Package progress logs workouts and meals against crusades and builds the
// X post that announces them.
package progress

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/vvvdotnet/crusades/internal/app/core/service"
	"github.com/vvvdotnet/crusades/internal/app/domain/crusade"
	"github.com/vvvdotnet/crusades/internal/app/domain/progress"
	"github.com/vvvdotnet/crusades/internal/app/metrics"
	"github.com/vvvdotnet/crusades/internal/app/services/photos"
	"github.com/vvvdotnet/crusades/internal/app/storage"
	"github.com/vvvdotnet/crusades/internal/errors"
	"github.com/vvvdotnet/crusades/internal/logging"
)

const (
	// HistoryLimit caps the entries returned by History.
	HistoryLimit = 50
)

// LoggedFitness is the result of LogFitness.
type LoggedFitness struct {
	Entry     progress.FitnessEntry `json:"entry"`
	PhotoURLs []string              `json:"photo_urls"`
	Post      string                `json:"x_post"`
}

// LoggedMeal is the result of LogMeal.
type LoggedMeal struct {
	Entry     progress.MealEntry `json:"entry"`
	PhotoURLs []string           `json:"photo_urls"`
	Post      string             `json:"x_post"`
}

// History holds a page of entries of one kind.
type History struct {
	Kind    crusade.EntryKind
	Fitness []progress.FitnessEntry
	Meals   []progress.MealEntry
}

// Entries returns the slice matching Kind.
func (h History) Entries() interface{} {
	if h.Kind == crusade.EntryMeal {
		return h.Meals
	}
	return h.Fitness
}

// Entry is a single fitness or meal entry with signed photo URLs.
type Entry struct {
	Kind      crusade.EntryKind      `json:"type"`
	Fitness   *progress.FitnessEntry `json:"-"`
	Meal      *progress.MealEntry    `json:"-"`
	PhotoURLs []string               `json:"photo_urls"`
}

// Value returns the populated entry.
func (e Entry) Value() interface{} {
	if e.Meal != nil {
		return e.Meal
	}
	return e.Fitness
}

// PreviewInput is the body of a post preview request.
type PreviewInput struct {
	Kind    crusade.EntryKind
	Fitness progress.FitnessInput
	Meal    progress.MealInput
}

// Service logs progress.
type Service struct {
	crusades storage.CrusadeStore
	entries  storage.ProgressStore
	photos   *photos.Service
	handle   string
	log      *logging.Logger
}

func New(crusades storage.CrusadeStore, entries storage.ProgressStore, photoSvc *photos.Service, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("progress")
	}
	return &Service{crusades: crusades, entries: entries, photos: photoSvc, handle: progress.DefaultHandle, log: log}
}

// SetHandle changes the X account tagged in generated posts.
func (s *Service) SetHandle(handle string) {
	if handle != "" {
		s.handle = handle
	}
}

// LogFitness validates and stores a workout with up to MaxPhotos photos.
func (s *Service) LogFitness(ctx context.Context, userID string, in progress.FitnessInput, uploads []photos.Upload) (LoggedFitness, error) {
	entry, ferrs := in.Validate()
	if err := checkInput(ferrs, uploads); err != nil {
		return LoggedFitness{}, err
	}
	if _, err := s.acceptingCrusade(ctx, entry.CrusadeID, crusade.EntryFitness); err != nil {
		return LoggedFitness{}, err
	}

	var previous *progress.FitnessEntry
	prev, err := s.entries.LatestFitnessEntry(ctx, userID, entry.ExerciseType)
	switch {
	case err == nil:
		previous = &prev
	case !stderrors.Is(err, storage.ErrNotFound):
		return LoggedFitness{}, errors.Internal("Failed to load previous entry", err)
	}

	stored, urls, err := s.storePhotos(ctx, userID, uploads)
	if err != nil {
		return LoggedFitness{}, err
	}

	entry.UserID = userID
	entry.PhotoKeys = stored
	created, err := s.entries.CreateFitnessEntry(ctx, entry)
	if err != nil {
		s.photos.Discard(ctx, stored)
		return LoggedFitness{}, storeError("Failed to log progress", err)
	}

	metrics.RecordProgressEntry(string(crusade.EntryFitness))
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"entry_id":   created.ID,
		"crusade_id": created.CrusadeID,
		"exercise":   created.ExerciseType,
	}).Info("fitness progress logged")

	post := progress.NewFitnessPost(s.handle, created, previous, in.Unit())
	return LoggedFitness{Entry: created, PhotoURLs: urls, Post: progress.FitPost(post.Text())}, nil
}

// LogMeal validates and stores a meal with up to MaxPhotos photos.
func (s *Service) LogMeal(ctx context.Context, userID string, in progress.MealInput, uploads []photos.Upload) (LoggedMeal, error) {
	entry, ferrs := in.Validate()
	if err := checkInput(ferrs, uploads); err != nil {
		return LoggedMeal{}, err
	}
	if _, err := s.acceptingCrusade(ctx, entry.CrusadeID, crusade.EntryMeal); err != nil {
		return LoggedMeal{}, err
	}

	stored, urls, err := s.storePhotos(ctx, userID, uploads)
	if err != nil {
		return LoggedMeal{}, err
	}

	entry.UserID = userID
	entry.PhotoKeys = stored
	created, err := s.entries.CreateMealEntry(ctx, entry)
	if err != nil {
		s.photos.Discard(ctx, stored)
		return LoggedMeal{}, storeError("Failed to log meal", err)
	}

	metrics.RecordProgressEntry(string(crusade.EntryMeal))
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"entry_id":   created.ID,
		"crusade_id": created.CrusadeID,
		"meal_type":  created.MealType,
	}).Info("meal logged")

	post := progress.MealPost{Handle: s.handle, MealType: created.MealType, Calories: created.Calories, Notes: created.Notes}
	return LoggedMeal{Entry: created, PhotoURLs: urls, Post: progress.FitPost(post.Text())}, nil
}

// History returns the user's newest entries of kind ("fitness" when empty).
func (s *Service) History(ctx context.Context, userID, kind string, limit int) (History, error) {
	k, err := crusade.ParseEntryKind(kind)
	if err != nil {
		return History{}, errors.BadRequest("type must be fitness or meal")
	}
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}

	h := History{Kind: k}
	if k == crusade.EntryMeal {
		h.Meals, err = s.entries.ListMealEntries(ctx, userID, limit)
	} else {
		h.Fitness, err = s.entries.ListFitnessEntries(ctx, userID, limit)
	}
	if err != nil {
		return History{}, errors.Internal("Failed to load history", err)
	}
	return h, nil
}

// Get returns one of the user's entries, looking at workouts first.
func (s *Service) Get(ctx context.Context, userID, id string) (Entry, error) {
	f, err := s.entries.GetFitnessEntry(ctx, userID, id)
	if err == nil {
		return Entry{Kind: crusade.EntryFitness, Fitness: &f, PhotoURLs: s.photos.SignedURLs(ctx, f.PhotoKeys)}, nil
	}
	if !stderrors.Is(err, storage.ErrNotFound) {
		return Entry{}, errors.Internal("Failed to load progress entry", err)
	}

	m, err := s.entries.GetMealEntry(ctx, userID, id)
	if stderrors.Is(err, storage.ErrNotFound) {
		return Entry{}, errors.NotFound("Progress entry not found")
	}
	if err != nil {
		return Entry{}, errors.Internal("Failed to load progress entry", err)
	}
	return Entry{Kind: crusade.EntryMeal, Meal: &m, PhotoURLs: s.photos.SignedURLs(ctx, m.PhotoKeys)}, nil
}

// Stats summarises the user's activity, optionally within one crusade.
func (s *Service) Stats(ctx context.Context, userID, crusadeID string) (progress.Stats, error) {
	if crusadeID != "" {
		if _, err := s.crusades.GetCrusade(ctx, crusadeID); err != nil {
			return progress.Stats{}, storeError("Failed to load stats", err)
		}
	}
	stats, err := s.entries.UserStats(ctx, userID, crusadeID)
	if err != nil {
		return progress.Stats{}, errors.Internal("Failed to load stats", err)
	}
	return stats, nil
}

// Preview renders the post an entry would produce without storing it.
func (s *Service) Preview(ctx context.Context, userID string, in PreviewInput) (string, error) {
	switch in.Kind {
	case crusade.EntryMeal:
		entry, ferrs := in.Meal.Validate()
		if err := checkPreview(ferrs); err != nil {
			return "", err
		}
		post := progress.MealPost{Handle: s.handle, MealType: entry.MealType, Calories: entry.Calories, Notes: entry.Notes}
		return progress.FitPost(post.Text()), nil

	case crusade.EntryFitness, "":
		entry, ferrs := in.Fitness.Validate()
		if err := checkPreview(ferrs); err != nil {
			return "", err
		}
		var previous *progress.FitnessEntry
		if prev, err := s.entries.LatestFitnessEntry(ctx, userID, entry.ExerciseType); err == nil {
			previous = &prev
		} else if !stderrors.Is(err, storage.ErrNotFound) {
			return "", errors.Internal("Failed to load previous entry", err)
		}
		post := progress.NewFitnessPost(s.handle, entry, previous, in.Fitness.Unit())
		return progress.FitPost(post.Text()), nil
	}
	return "", errors.BadRequest("type must be fitness or meal")
}

func (s *Service) acceptingCrusade(ctx context.Context, id string, kind crusade.EntryKind) (crusade.Crusade, error) {
	c, err := s.crusades.GetCrusade(ctx, id)
	if err != nil {
		return crusade.Crusade{}, storeError("Failed to load crusade", err)
	}
	if !c.IsActive {
		return crusade.Crusade{}, errors.NotFound("Crusade not found")
	}
	if !c.Accepts(kind) {
		return crusade.Crusade{}, errors.Validation("Validation failed", map[string]string{
			"crusade_id": fmt.Sprintf("%s crusades do not accept %s entries", c.Type.DisplayName(), kind),
		})
	}
	return c, nil
}

// storePhotos uploads every photo or none: a failure discards the ones
// already stored.
func (s *Service) storePhotos(ctx context.Context, userID string, uploads []photos.Upload) (progress.PhotoKeys, []string, error) {
	keys := progress.PhotoKeys{}
	urls := []string{}
	for _, up := range uploads {
		photo, err := s.photos.Upload(ctx, userID, up)
		if err != nil {
			s.photos.Discard(ctx, keys)
			return nil, nil, err
		}
		keys = append(keys, photo.Key)
		urls = append(urls, photo.URL)
	}
	return keys, urls, nil
}

func checkInput(ferrs progress.FieldErrors, uploads []photos.Upload) error {
	if len(uploads) > progress.MaxPhotos {
		if ferrs == nil {
			ferrs = progress.FieldErrors{}
		}
		ferrs["photos"] = fmt.Sprintf("At most %d photos can be attached", progress.MaxPhotos)
	}
	if len(ferrs) > 0 {
		return errors.Validation("Validation failed", ferrs)
	}
	return nil
}

// checkPreview ignores the crusade, which a preview does not need.
func checkPreview(ferrs progress.FieldErrors) error {
	delete(ferrs, "crusade_id")
	if len(ferrs) > 0 {
		return errors.Validation("Validation failed", ferrs)
	}
	return nil
}

func storeError(msg string, err error) error {
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.NotFound("Crusade not found")
	}
	return errors.Internal(msg, err)
}

// Descriptor advertises the service.
func (s *Service) Descriptor() service.Descriptor {
	return service.Descriptor{Name: "progress", Domain: "progress", Layer: service.LayerAPI, Capabilities: []string{"fitness", "meal", "history", "stats", "x-post"}}
}
