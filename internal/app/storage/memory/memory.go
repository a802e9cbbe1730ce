package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vvvdotnet/crusades/internal/app/domain/crusade"
	"github.com/vvvdotnet/crusades/internal/app/domain/leaderboard"
	"github.com/vvvdotnet/crusades/internal/app/domain/progress"
	"github.com/vvvdotnet/crusades/internal/app/domain/user"
	"github.com/vvvdotnet/crusades/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu          sync.RWMutex
	users       map[string]user.User
	byDiscordID map[string]string
	crusades    map[string]crusade.Crusade
	enrollments map[string]map[string]time.Time // user id -> crusade id -> enrolled at
	fitness     map[string]progress.FitnessEntry
	meals       map[string]progress.MealEntry
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.CrusadeStore = (*Store)(nil)
var _ storage.ProgressStore = (*Store)(nil)
var _ storage.LeaderboardStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:       make(map[string]user.User),
		byDiscordID: make(map[string]string),
		crusades:    make(map[string]crusade.Crusade),
		enrollments: make(map[string]map[string]time.Time),
		fitness:     make(map[string]progress.FitnessEntry),
		meals:       make(map[string]progress.MealEntry),
	}
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrConflict)
	}
	if _, exists := s.byDiscordID[u.DiscordID]; exists {
		return user.User{}, fmt.Errorf("discord id %s: %w", u.DiscordID, storage.ErrConflict)
	}
	u.CreatedAt = stamp(u.CreatedAt)
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = u
	s.byDiscordID[u.DiscordID] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	u.DiscordID = existing.DiscordID
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByDiscordID(_ context.Context, discordID string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byDiscordID[discordID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

// CrusadeStore implementation -------------------------------------------------

func (s *Store) CreateCrusade(_ context.Context, c crusade.Crusade) (crusade.Crusade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	} else if _, exists := s.crusades[c.ID]; exists {
		return crusade.Crusade{}, fmt.Errorf("crusade %s: %w", c.ID, storage.ErrConflict)
	}
	c.CreatedAt = stamp(c.CreatedAt)
	s.crusades[c.ID] = c
	return c, nil
}

func (s *Store) GetCrusade(_ context.Context, id string) (crusade.Crusade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.crusades[id]
	if !ok {
		return crusade.Crusade{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCrusades(_ context.Context, activeOnly bool) ([]crusade.Crusade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]crusade.Crusade, 0, len(s.crusades))
	for _, c := range s.crusades {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreateEnrollment(_ context.Context, e crusade.Enrollment) (crusade.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.crusades[e.CrusadeID]; !ok {
		return crusade.Enrollment{}, fmt.Errorf("crusade %s: %w", e.CrusadeID, storage.ErrNotFound)
	}
	joined := s.enrollments[e.UserID]
	if joined == nil {
		joined = make(map[string]time.Time)
		s.enrollments[e.UserID] = joined
	}
	if _, exists := joined[e.CrusadeID]; exists {
		return crusade.Enrollment{}, storage.ErrConflict
	}
	e.EnrolledAt = stamp(e.EnrolledAt)
	joined[e.CrusadeID] = e.EnrolledAt
	return e, nil
}

func (s *Store) DeleteEnrollment(_ context.Context, userID, crusadeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.enrollments[userID], crusadeID)
	return nil
}

func (s *Store) ListEnrollments(_ context.Context, userID string) ([]crusade.Enrolled, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]crusade.Enrolled, 0, len(s.enrollments[userID]))
	for crusadeID, at := range s.enrollments[userID] {
		c, ok := s.crusades[crusadeID]
		if !ok {
			continue
		}
		out = append(out, crusade.Enrolled{Crusade: c, EnrolledAt: at})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EnrolledAt.After(out[j].EnrolledAt)
	})
	return out, nil
}

// ProgressStore implementation ------------------------------------------------

func (s *Store) CreateFitnessEntry(_ context.Context, e progress.FitnessEntry) (progress.FitnessEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.crusades[e.CrusadeID]
	if !ok {
		return progress.FitnessEntry{}, fmt.Errorf("crusade %s: %w", e.CrusadeID, storage.ErrNotFound)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.PhotoKeys == nil {
		e.PhotoKeys = progress.PhotoKeys{}
	}
	e.CreatedAt = stamp(e.CreatedAt)
	e.CrusadeName = c.Name
	s.fitness[e.ID] = e
	return e, nil
}

func (s *Store) ListFitnessEntries(_ context.Context, userID string, limit int) ([]progress.FitnessEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.fitnessForLocked(func(e progress.FitnessEntry) bool { return e.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetFitnessEntry(_ context.Context, userID, id string) (progress.FitnessEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.fitness[id]
	if !ok || e.UserID != userID {
		return progress.FitnessEntry{}, storage.ErrNotFound
	}
	e.CrusadeName = s.crusades[e.CrusadeID].Name
	return e, nil
}

func (s *Store) LatestFitnessEntry(_ context.Context, userID, exerciseType string) (progress.FitnessEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest progress.FitnessEntry
		found  bool
	)
	for _, e := range s.fitness {
		if e.UserID != userID || e.ExerciseType != exerciseType {
			continue
		}
		if !found || e.CreatedAt.After(latest.CreatedAt) {
			latest, found = e, true
		}
	}
	if !found {
		return progress.FitnessEntry{}, storage.ErrNotFound
	}
	return latest, nil
}

func (s *Store) CreateMealEntry(_ context.Context, e progress.MealEntry) (progress.MealEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.crusades[e.CrusadeID]
	if !ok {
		return progress.MealEntry{}, fmt.Errorf("crusade %s: %w", e.CrusadeID, storage.ErrNotFound)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.PhotoKeys == nil {
		e.PhotoKeys = progress.PhotoKeys{}
	}
	e.CreatedAt = stamp(e.CreatedAt)
	e.CrusadeName = c.Name
	s.meals[e.ID] = e
	return e, nil
}

func (s *Store) ListMealEntries(_ context.Context, userID string, limit int) ([]progress.MealEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.mealsForLocked(func(e progress.MealEntry) bool { return e.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetMealEntry(_ context.Context, userID, id string) (progress.MealEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.meals[id]
	if !ok || e.UserID != userID {
		return progress.MealEntry{}, storage.ErrNotFound
	}
	e.CrusadeName = s.crusades[e.CrusadeID].Name
	return e, nil
}

func (s *Store) UserStats(_ context.Context, userID, crusadeID string) (progress.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fitness := s.fitnessForLocked(func(e progress.FitnessEntry) bool {
		return e.UserID == userID && (crusadeID == "" || e.CrusadeID == crusadeID)
	})
	meals := s.mealsForLocked(func(e progress.MealEntry) bool {
		return e.UserID == userID && (crusadeID == "" || e.CrusadeID == crusadeID)
	})
	return progress.ComputeStats(fitness, meals), nil
}

func (s *Store) fitnessForLocked(keep func(progress.FitnessEntry) bool) []progress.FitnessEntry {
	out := make([]progress.FitnessEntry, 0)
	for _, e := range s.fitness {
		if keep(e) {
			e.CrusadeName = s.crusades[e.CrusadeID].Name
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) mealsForLocked(keep func(progress.MealEntry) bool) []progress.MealEntry {
	out := make([]progress.MealEntry, 0)
	for _, e := range s.meals {
		if keep(e) {
			e.CrusadeName = s.crusades[e.CrusadeID].Name
			out = append(out, e)
		}
	}
	return out
}

// LeaderboardStore implementation ---------------------------------------------

func (s *Store) FitnessLeaderboard(_ context.Context, crusadeID string, since time.Time) ([]leaderboard.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.fitnessForLocked(func(e progress.FitnessEntry) bool { return e.CrusadeID == crusadeID })
	return leaderboard.AggregateFitness(s.membersLocked(), entries, since), nil
}

func (s *Store) MealLeaderboard(_ context.Context, crusadeID string, since time.Time) ([]leaderboard.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.mealsForLocked(func(e progress.MealEntry) bool { return e.CrusadeID == crusadeID })
	return leaderboard.AggregateMeals(s.membersLocked(), entries, since), nil
}

func (s *Store) GlobalLeaderboard(_ context.Context, since time.Time) ([]leaderboard.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enrolled := make(map[string]int, len(s.enrollments))
	for userID, joined := range s.enrollments {
		enrolled[userID] = len(joined)
	}
	all := func(progress.FitnessEntry) bool { return true }
	allMeals := func(progress.MealEntry) bool { return true }
	return leaderboard.AggregateGlobal(s.membersLocked(), enrolled, s.fitnessForLocked(all), s.mealsForLocked(allMeals), since), nil
}

func (s *Store) membersLocked() map[string]leaderboard.Member {
	out := make(map[string]leaderboard.Member, len(s.users))
	for id, u := range s.users {
		out[id] = leaderboard.Member{UserID: id, DiscordUsername: u.DiscordUsername, DiscordAvatar: u.DiscordAvatar}
	}
	return out
}
