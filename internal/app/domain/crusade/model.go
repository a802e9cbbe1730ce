package crusade

import (
	"fmt"
	"time"
)

// Type classifies what members log against a crusade.
type Type string

const (
	TypeFitness Type = "fitness"
	TypeMeal    Type = "meal"
	TypeDaily   Type = "daily"
)

// Valid reports whether t is a known crusade type.
func (t Type) Valid() bool {
	switch t {
	case TypeFitness, TypeMeal, TypeDaily:
		return true
	}
	return false
}

// DisplayName returns the label shown for the type.
func (t Type) DisplayName() string {
	switch t {
	case TypeFitness:
		return "Fitness"
	case TypeMeal:
		return "Meal Accountability"
	case TypeDaily:
		return "Daily Workout"
	}
	return string(t)
}

// EntryKind is the kind of progress entry being logged.
type EntryKind string

const (
	EntryFitness EntryKind = "fitness"
	EntryMeal    EntryKind = "meal"
)

// ParseEntryKind maps a query value onto an EntryKind, defaulting to fitness.
func ParseEntryKind(raw string) (EntryKind, error) {
	switch EntryKind(raw) {
	case "", EntryFitness:
		return EntryFitness, nil
	case EntryMeal:
		return EntryMeal, nil
	}
	return "", fmt.Errorf("unknown progress type %q", raw)
}

// Crusade is a community challenge members enroll in.
type Crusade struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Type        Type       `json:"type" db:"type"`
	Description string     `json:"description" db:"description"`
	Icon        string     `json:"icon" db:"icon"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	StartDate   *time.Time `json:"start_date,omitempty" db:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty" db:"end_date"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Accepts reports whether entries of kind may be logged to the crusade.
// Daily crusades track workouts.
func (c Crusade) Accepts(kind EntryKind) bool {
	switch kind {
	case EntryFitness:
		return c.Type == TypeFitness || c.Type == TypeDaily
	case EntryMeal:
		return c.Type == TypeMeal
	}
	return false
}

// Enrollable reports whether members may join at now.
func (c Crusade) Enrollable(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	return c.EndDate == nil || now.Before(*c.EndDate)
}

// Enrollment links a user to a crusade.
type Enrollment struct {
	UserID     string    `json:"user_id" db:"user_id"`
	CrusadeID  string    `json:"crusade_id" db:"crusade_id"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
}

// Enrolled is a crusade as seen from a member's dashboard.
type Enrolled struct {
	Crusade
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
}

// Defaults returns the crusades created on a fresh install.
func Defaults() []Crusade {
	return []Crusade{
		{
			Name:        "Strength Training Challenge",
			Type:        TypeFitness,
			Description: "Track your strength progress with bench press, deadlifts, squats, and more",
			Icon:        "💪",
			IsActive:    true,
		},
		{
			Name:        "Bodyweight Warriors",
			Type:        TypeFitness,
			Description: "Master bodyweight exercises like push-ups and pull-ups",
			Icon:        "🏋️",
			IsActive:    true,
		},
		{
			Name:        "Meal Accountability",
			Type:        TypeMeal,
			Description: "Track your daily meals and stay accountable to your nutrition goals",
			Icon:        "🍽️",
			IsActive:    true,
		},
		{
			Name:        "Daily Grind",
			Type:        TypeDaily,
			Description: "Log your daily workouts and build consistency",
			Icon:        "📅",
			IsActive:    true,
		},
	}
}
