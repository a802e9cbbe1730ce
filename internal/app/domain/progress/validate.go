package progress

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	MaxWeight   = 1000
	MaxReps     = 1000
	MaxSets     = 1000
	MaxCalories = 10000
	MaxMacro    = 1000
	MaxNotesLen = 1000
)

// FieldErrors maps a form field to a human readable problem.
type FieldErrors map[string]string

func (f FieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

// ValidWeight reports 0 < w < 1000.
func ValidWeight(w float64) bool { return w > 0 && w < MaxWeight }

// ValidReps reports 0 < r < 1000.
func ValidReps(r int) bool { return r > 0 && r < MaxReps }

// ValidCalories reports 0 < c < 10000.
func ValidCalories(c int) bool { return c > 0 && c < MaxCalories }

// ValidMacro reports 0 <= m < 1000.
func ValidMacro(m float64) bool { return m >= 0 && m < MaxMacro }

// FitnessInput is a workout as submitted by a form. Weight may be given as
// weight_kg, weight_lbs, or weight plus weight_unit.
type FitnessInput struct {
	CrusadeID    string
	ExerciseType string
	Weight       string
	WeightUnit   string
	WeightKg     string
	WeightLbs    string
	Reps         string
	Sets         string
	Notes        string
}

// Unit returns the unit the member entered the load in.
func (in FitnessInput) Unit() string {
	switch {
	case strings.TrimSpace(in.WeightKg) != "":
		return UnitKg
	case strings.TrimSpace(in.WeightLbs) != "":
		return UnitLbs
	case strings.EqualFold(strings.TrimSpace(in.WeightUnit), UnitLbs):
		return UnitLbs
	}
	return UnitKg
}

// Validate parses the input into an entry. The returned FieldErrors is nil
// when the input is acceptable.
func (in FitnessInput) Validate() (FitnessEntry, FieldErrors) {
	errs := FieldErrors{}
	entry := FitnessEntry{
		CrusadeID:    strings.TrimSpace(in.CrusadeID),
		ExerciseType: strings.TrimSpace(in.ExerciseType),
		Notes:        strings.TrimSpace(in.Notes),
		Sets:         1,
	}

	if entry.CrusadeID == "" {
		errs.add("crusade_id", "Crusade is required")
	}

	exercise, known := LookupExercise(entry.ExerciseType)
	switch {
	case entry.ExerciseType == "":
		errs.add("exercise_type", "Exercise type is required")
	case !known:
		errs.add("exercise_type", "Unknown exercise type")
	}

	raw, unit := in.rawWeight()
	if raw != "" {
		w, err := strconv.ParseFloat(raw, 64)
		if err != nil || !ValidWeight(w) {
			errs.add("weight", "Valid weight is required")
		} else if kg, lbs, err := NormalizeWeight(w, unit); err != nil {
			errs.add("weight_unit", "Weight unit must be kg or lbs")
		} else {
			entry.WeightKg, entry.WeightLbs = &kg, &lbs
		}
	} else if known && exercise.IsWeighted() {
		errs.add("weight", "Valid weight is required")
	}

	reps, err := strconv.Atoi(strings.TrimSpace(in.Reps))
	if err != nil || !ValidReps(reps) {
		errs.add("reps", "Valid reps count is required")
	}
	entry.Reps = reps

	if s := strings.TrimSpace(in.Sets); s != "" {
		sets, err := strconv.Atoi(s)
		if err != nil || sets <= 0 || sets >= MaxSets {
			errs.add("sets", "Sets must be between 1 and 999")
		}
		entry.Sets = sets
	}

	if utf8.RuneCountInString(entry.Notes) > MaxNotesLen {
		errs.add("notes", "Notes must be at most 1000 characters")
	}

	if len(errs) > 0 {
		return entry, errs
	}
	return entry, nil
}

func (in FitnessInput) rawWeight() (string, string) {
	if v := strings.TrimSpace(in.WeightKg); v != "" {
		return v, UnitKg
	}
	if v := strings.TrimSpace(in.WeightLbs); v != "" {
		return v, UnitLbs
	}
	return strings.TrimSpace(in.Weight), in.WeightUnit
}

// MealInput is a meal as submitted by a form.
type MealInput struct {
	CrusadeID string
	MealType  string
	Calories  string
	ProteinG  string
	CarbsG    string
	FatG      string
	FoodItems string
	Notes     string
}

// Validate parses the input into an entry. The returned FieldErrors is nil
// when the input is acceptable.
func (in MealInput) Validate() (MealEntry, FieldErrors) {
	errs := FieldErrors{}
	entry := MealEntry{
		CrusadeID: strings.TrimSpace(in.CrusadeID),
		MealType:  strings.TrimSpace(in.MealType),
		FoodItems: strings.TrimSpace(in.FoodItems),
		Notes:     strings.TrimSpace(in.Notes),
	}

	if entry.CrusadeID == "" {
		errs.add("crusade_id", "Crusade is required")
	}

	if entry.MealType == "" {
		errs.add("meal_type", "Meal type is required")
	} else if _, ok := LookupMealType(entry.MealType); !ok {
		errs.add("meal_type", "Unknown meal type")
	}

	calories, err := strconv.Atoi(strings.TrimSpace(in.Calories))
	if err != nil || !ValidCalories(calories) {
		errs.add("calories", "Valid calorie count is required")
	}
	entry.Calories = calories

	entry.ProteinG = parseMacro(in.ProteinG, "protein_g", "Invalid protein value", errs)
	entry.CarbsG = parseMacro(in.CarbsG, "carbs_g", "Invalid carbs value", errs)
	entry.FatG = parseMacro(in.FatG, "fat_g", "Invalid fat value", errs)

	if utf8.RuneCountInString(entry.Notes) > MaxNotesLen {
		errs.add("notes", "Notes must be at most 1000 characters")
	}
	if utf8.RuneCountInString(entry.FoodItems) > MaxNotesLen {
		errs.add("food_items", "Food items must be at most 1000 characters")
	}

	if len(errs) > 0 {
		return entry, errs
	}
	return entry, nil
}

func parseMacro(raw, field, msg string, errs FieldErrors) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !ValidMacro(v) {
		errs.add(field, msg)
		return nil
	}
	return &v
}
