package progress

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MaxPhotos is the number of photos accepted per entry.
const MaxPhotos = 2

// PhotoKeys are bucket keys of photos attached to an entry, persisted as a
// JSON array.
type PhotoKeys []string

func (p PhotoKeys) Value() (driver.Value, error) {
	if p == nil {
		p = PhotoKeys{}
	}
	b, err := json.Marshal([]string(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *PhotoKeys) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = PhotoKeys{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("photo keys: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*p = PhotoKeys{}
		return nil
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return fmt.Errorf("photo keys: %w", err)
	}
	*p = keys
	return nil
}

// FitnessEntry is one logged workout set.
type FitnessEntry struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	CrusadeID    string    `json:"crusade_id" db:"crusade_id"`
	CrusadeName  string    `json:"crusade_name,omitempty" db:"crusade_name"`
	ExerciseType string    `json:"exercise_type" db:"exercise_type"`
	WeightKg     *float64  `json:"weight_kg,omitempty" db:"weight_kg"`
	WeightLbs    *float64  `json:"weight_lbs,omitempty" db:"weight_lbs"`
	Reps         int       `json:"reps" db:"reps"`
	Sets         int       `json:"sets" db:"sets"`
	Notes        string    `json:"notes,omitempty" db:"notes"`
	PhotoKeys    PhotoKeys `json:"photo_urls" db:"photo_urls"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Volume is the number of repetitions counted toward leaderboards.
func (e FitnessEntry) Volume() int {
	sets := e.Sets
	if sets < 1 {
		sets = 1
	}
	return e.Reps * sets
}

// WeightIn returns the recorded load in unit, or 0 when none was logged.
func (e FitnessEntry) WeightIn(unit string) float64 {
	if unit == UnitLbs {
		if e.WeightLbs != nil {
			return *e.WeightLbs
		}
		if e.WeightKg != nil {
			return round2(KgToLbs(*e.WeightKg))
		}
		return 0
	}
	if e.WeightKg != nil {
		return *e.WeightKg
	}
	if e.WeightLbs != nil {
		return round2(LbsToKg(*e.WeightLbs))
	}
	return 0
}

// MealEntry is one logged meal.
type MealEntry struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	CrusadeID   string    `json:"crusade_id" db:"crusade_id"`
	CrusadeName string    `json:"crusade_name,omitempty" db:"crusade_name"`
	MealType    string    `json:"meal_type" db:"meal_type"`
	Calories    int       `json:"calories" db:"calories"`
	ProteinG    *float64  `json:"protein_g,omitempty" db:"protein_g"`
	CarbsG      *float64  `json:"carbs_g,omitempty" db:"carbs_g"`
	FatG        *float64  `json:"fat_g,omitempty" db:"fat_g"`
	FoodItems   string    `json:"food_items,omitempty" db:"food_items"`
	Notes       string    `json:"notes,omitempty" db:"notes"`
	PhotoKeys   PhotoKeys `json:"photo_urls" db:"photo_urls"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Stats summarises a member's logged activity.
type Stats struct {
	Workouts      int        `json:"workouts" db:"workouts"`
	TotalReps     int        `json:"total_reps" db:"total_reps"`
	MaxWeightKg   float64    `json:"max_weight_kg" db:"max_weight_kg"`
	Meals         int        `json:"meals" db:"meals"`
	TotalCalories int        `json:"total_calories" db:"total_calories"`
	LastActivity  *time.Time `json:"last_activity,omitempty" db:"-"`
}

// ComputeStats folds entries into Stats.
func ComputeStats(fitness []FitnessEntry, meals []MealEntry) Stats {
	var s Stats
	var last time.Time
	for _, e := range fitness {
		s.Workouts++
		s.TotalReps += e.Volume()
		if e.WeightKg != nil && *e.WeightKg > s.MaxWeightKg {
			s.MaxWeightKg = *e.WeightKg
		}
		if e.CreatedAt.After(last) {
			last = e.CreatedAt
		}
	}
	for _, m := range meals {
		s.Meals++
		s.TotalCalories += m.Calories
		if m.CreatedAt.After(last) {
			last = m.CreatedAt
		}
	}
	if !last.IsZero() {
		s.LastActivity = &last
	}
	return s
}
