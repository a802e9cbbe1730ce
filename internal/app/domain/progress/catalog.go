package progress

// ExerciseKind separates lifts tracked by load from bodyweight movements.
type ExerciseKind string

const (
	Weighted   ExerciseKind = "weighted"
	Bodyweight ExerciseKind = "bodyweight"
)

// Exercise describes a movement members can log.
type Exercise struct {
	Key         string       `json:"key" yaml:"key"`
	Name        string       `json:"name" yaml:"name"`
	Kind        ExerciseKind `json:"type" yaml:"type"`
	Units       []string     `json:"units" yaml:"units"`
	DefaultUnit string       `json:"default_unit" yaml:"default_unit"`
	Icon        string       `json:"icon" yaml:"icon"`
}

// IsWeighted reports whether the exercise requires a load.
func (e Exercise) IsWeighted() bool { return e.Kind == Weighted }

var exercises = []Exercise{
	{Key: "bench_press", Name: "Bench Press", Kind: Weighted, Units: []string{UnitKg, UnitLbs}, DefaultUnit: UnitKg, Icon: "🏋️"},
	{Key: "deadlift", Name: "Deadlift", Kind: Weighted, Units: []string{UnitKg, UnitLbs}, DefaultUnit: UnitKg, Icon: "🏋️"},
	{Key: "squat", Name: "Squat", Kind: Weighted, Units: []string{UnitKg, UnitLbs}, DefaultUnit: UnitKg, Icon: "🏋️"},
	{Key: "overhead_press", Name: "Overhead Press", Kind: Weighted, Units: []string{UnitKg, UnitLbs}, DefaultUnit: UnitKg, Icon: "🏋️"},
	{Key: "pushups", Name: "Push-ups", Kind: Bodyweight, Units: []string{"reps"}, DefaultUnit: "reps", Icon: "💪"},
	{Key: "pullups", Name: "Pull-ups", Kind: Bodyweight, Units: []string{"reps"}, DefaultUnit: "reps", Icon: "💪"},
}

// Exercises returns the exercise catalog in display order.
func Exercises() []Exercise {
	out := make([]Exercise, len(exercises))
	copy(out, exercises)
	return out
}

// LookupExercise finds an exercise by key.
func LookupExercise(key string) (Exercise, bool) {
	for _, e := range exercises {
		if e.Key == key {
			return e, true
		}
	}
	return Exercise{}, false
}

// MealType is a slot in the day a meal is logged against.
type MealType struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

var mealTypes = []MealType{
	{Key: "breakfast", Name: "Breakfast", Icon: "🌅"},
	{Key: "lunch", Name: "Lunch", Icon: "☀️"},
	{Key: "dinner", Name: "Dinner", Icon: "🌙"},
	{Key: "snack", Name: "Snack", Icon: "🍎"},
}

func MealTypes() []MealType {
	out := make([]MealType, len(mealTypes))
	copy(out, mealTypes)
	return out
}

func LookupMealType(key string) (MealType, bool) {
	for _, m := range mealTypes {
		if m.Key == key {
			return m, true
		}
	}
	return MealType{}, false
}
