package progress

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// MaxPostLength is the X post character limit.
const MaxPostLength = 280

// DefaultHandle is the account tagged in generated posts.
const DefaultHandle = "vvvdotnet"

var (
	ErrPostEmpty   = errors.New("post text is required")
	ErrPostTooLong = errors.New("post text must be at most 280 characters")
)

// FitnessPost holds what is needed to announce a workout on X.
type FitnessPost struct {
	Handle         string
	Exercise       Exercise
	Unit           string
	PreviousWeight float64
	PreviousReps   int
	CurrentWeight  float64
	CurrentReps    int
	Notes          string
}

// NewFitnessPost builds a post for current, comparing against previous when
// it is not nil. Weights are reported in unit.
func NewFitnessPost(handle string, current FitnessEntry, previous *FitnessEntry, unit string) FitnessPost {
	ex, ok := LookupExercise(current.ExerciseType)
	if !ok {
		ex = Exercise{Key: current.ExerciseType, Name: current.ExerciseType, Kind: Bodyweight}
	}
	if unit != UnitLbs {
		unit = UnitKg
	}
	post := FitnessPost{
		Handle:        handle,
		Exercise:      ex,
		Unit:          unit,
		CurrentWeight: current.WeightIn(unit),
		CurrentReps:   current.Reps,
		Notes:         current.Notes,
	}
	if previous != nil {
		post.PreviousWeight = previous.WeightIn(unit)
		post.PreviousReps = previous.Reps
	}
	return post
}

// Improvement returns the percentage change against the previous entry,
// rounded to one decimal. Weighted lifts compare weight x reps.
func (p FitnessPost) Improvement() (float64, bool) {
	if p.Exercise.IsWeighted() {
		if p.PreviousWeight == 0 || p.PreviousReps == 0 {
			return 0, false
		}
		prev := p.PreviousWeight * float64(p.PreviousReps)
		curr := p.CurrentWeight * float64(p.CurrentReps)
		return round1((curr - prev) / prev * 100), true
	}
	if p.PreviousReps == 0 {
		return 0, false
	}
	prev := float64(p.PreviousReps)
	return round1((float64(p.CurrentReps) - prev) / prev * 100), true
}

// Text renders the post.
func (p FitnessPost) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s challenge from @%s fitness crusades. $V\n\n", p.Exercise.Name, handleOrDefault(p.Handle))

	if p.Exercise.IsWeighted() {
		if p.PreviousWeight != 0 && p.PreviousReps != 0 {
			fmt.Fprintf(&b, "Previous: %s x %d\n", FormatWeight(p.PreviousWeight, p.Unit), p.PreviousReps)
		}
		fmt.Fprintf(&b, "Current: %s x %d", FormatWeight(p.CurrentWeight, p.Unit), p.CurrentReps)
	} else {
		if p.PreviousReps != 0 {
			fmt.Fprintf(&b, "Previous: %d reps\n", p.PreviousReps)
		}
		fmt.Fprintf(&b, "Current: %d reps", p.CurrentReps)
	}

	if pct, ok := p.Improvement(); ok && pct > 0 {
		fmt.Fprintf(&b, " (+%.1f%% 📈)", pct)
	}

	if p.Notes != "" {
		b.WriteString("\n\n")
		b.WriteString(p.Notes)
	}
	return b.String()
}

// MealPost holds what is needed to announce a meal on X.
type MealPost struct {
	Handle   string
	MealType string
	Calories int
	Notes    string
}

func (p MealPost) Text() string {
	name := p.MealType
	if mt, ok := LookupMealType(p.MealType); ok {
		name = mt.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s accountability from @%s meal crusades. $V\n\n", name, handleOrDefault(p.Handle))
	b.WriteString(FormatCalories(p.Calories))
	if p.Notes != "" {
		b.WriteString("\n\n")
		b.WriteString(p.Notes)
	}
	return b.String()
}

// ValidatePostText checks the text fits in a post.
func ValidatePostText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrPostEmpty
	}
	if utf8.RuneCountInString(text) > MaxPostLength {
		return ErrPostTooLong
	}
	return nil
}

// FitPost shortens text with an ellipsis so it fits in a post.
func FitPost(text string) string {
	if utf8.RuneCountInString(text) <= MaxPostLength {
		return text
	}
	return TruncateText(text, MaxPostLength-3)
}

func handleOrDefault(h string) string {
	h = strings.TrimPrefix(strings.TrimSpace(h), "@")
	if h == "" {
		return DefaultHandle
	}
	return h
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
