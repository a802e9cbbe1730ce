package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vvvdotnet/crusades/internal/app/domain/crusade"
	"github.com/vvvdotnet/crusades/internal/app/domain/leaderboard"
	"github.com/vvvdotnet/crusades/internal/app/domain/progress"
	"github.com/vvvdotnet/crusades/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert violates a uniqueness rule.
	ErrConflict = errors.New("conflict")
)

// UserStore persists members.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByDiscordID(ctx context.Context, discordID string) (user.User, error)
}

// CrusadeStore persists crusades and enrollments.
type CrusadeStore interface {
	CreateCrusade(ctx context.Context, c crusade.Crusade) (crusade.Crusade, error)
	GetCrusade(ctx context.Context, id string) (crusade.Crusade, error)
	// ListCrusades returns all crusades, newest first. activeOnly filters
	// out retired ones.
	ListCrusades(ctx context.Context, activeOnly bool) ([]crusade.Crusade, error)

	// CreateEnrollment returns ErrConflict if the user already joined.
	CreateEnrollment(ctx context.Context, e crusade.Enrollment) (crusade.Enrollment, error)
	DeleteEnrollment(ctx context.Context, userID, crusadeID string) error
	ListEnrollments(ctx context.Context, userID string) ([]crusade.Enrolled, error)
}

// ProgressStore persists workout and meal entries. List and Get methods only
// return rows owned by userID.
type ProgressStore interface {
	CreateFitnessEntry(ctx context.Context, e progress.FitnessEntry) (progress.FitnessEntry, error)
	ListFitnessEntries(ctx context.Context, userID string, limit int) ([]progress.FitnessEntry, error)
	GetFitnessEntry(ctx context.Context, userID, id string) (progress.FitnessEntry, error)
	// LatestFitnessEntry returns the user's most recent entry for an
	// exercise, or ErrNotFound.
	LatestFitnessEntry(ctx context.Context, userID, exerciseType string) (progress.FitnessEntry, error)

	CreateMealEntry(ctx context.Context, e progress.MealEntry) (progress.MealEntry, error)
	ListMealEntries(ctx context.Context, userID string, limit int) ([]progress.MealEntry, error)
	GetMealEntry(ctx context.Context, userID, id string) (progress.MealEntry, error)

	// UserStats summarises a user's entries, optionally within one crusade.
	UserStats(ctx context.Context, userID, crusadeID string) (progress.Stats, error)
}

// LeaderboardStore aggregates leaderboard rows. Rows are ordered; callers
// assign ranks with leaderboard.Rank.
type LeaderboardStore interface {
	FitnessLeaderboard(ctx context.Context, crusadeID string, since time.Time) ([]leaderboard.Entry, error)
	MealLeaderboard(ctx context.Context, crusadeID string, since time.Time) ([]leaderboard.Entry, error)
	GlobalLeaderboard(ctx context.Context, since time.Time) ([]leaderboard.Entry, error)
}
