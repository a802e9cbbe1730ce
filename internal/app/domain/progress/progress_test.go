package progress

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestNormalizeWeight(t *testing.T) {
	kg, lbs, err := NormalizeWeight(100, "kg")
	require.NoError(t, err)
	assert.Equal(t, 100.0, kg)
	assert.Equal(t, 220.46, lbs)

	kg, lbs, err = NormalizeWeight(225, "lbs")
	require.NoError(t, err)
	assert.Equal(t, 102.06, kg)
	assert.Equal(t, 225.0, lbs)

	_, _, err = NormalizeWeight(10, "stone")
	assert.Error(t, err)

	assert.InDelta(t, 2.20462, KgToLbs(1), 1e-9)
	assert.InDelta(t, 0.453592, LbsToKg(1), 1e-9)
}

func TestCatalog(t *testing.T) {
	bench, ok := LookupExercise("bench_press")
	require.True(t, ok)
	assert.True(t, bench.IsWeighted())
	assert.Equal(t, "Bench Press", bench.Name)

	pushups, ok := LookupExercise("pushups")
	require.True(t, ok)
	assert.False(t, pushups.IsWeighted())

	_, ok = LookupExercise("curls")
	assert.False(t, ok)
	assert.Len(t, Exercises(), 6)
	assert.Len(t, MealTypes(), 4)

	_, ok = LookupMealType("brunch")
	assert.False(t, ok)
}

func TestFitnessInputValidate(t *testing.T) {
	tests := []struct {
		name       string
		in         FitnessInput
		wantFields []string
	}{
		{
			name: "weighted lift in kg",
			in:   FitnessInput{CrusadeID: "c1", ExerciseType: "squat", WeightKg: "140", Reps: "5", Sets: "3"},
		},
		{
			name: "bodyweight without load",
			in:   FitnessInput{CrusadeID: "c1", ExerciseType: "pullups", Reps: "12"},
		},
		{
			name:       "missing everything",
			in:         FitnessInput{},
			wantFields: []string{"crusade_id", "exercise_type", "reps"},
		},
		{
			name:       "weighted lift without weight",
			in:         FitnessInput{CrusadeID: "c1", ExerciseType: "deadlift", Reps: "5"},
			wantFields: []string{"weight"},
		},
		{
			name:       "weight out of range",
			in:         FitnessInput{CrusadeID: "c1", ExerciseType: "deadlift", Weight: "1000", Reps: "5"},
			wantFields: []string{"weight"},
		},
		{
			name:       "reps out of range",
			in:         FitnessInput{CrusadeID: "c1", ExerciseType: "pushups", Reps: "1000"},
			wantFields: []string{"reps"},
		},
		{
			name:       "zero sets",
			in:         FitnessInput{CrusadeID: "c1", ExerciseType: "pushups", Reps: "10", Sets: "0"},
			wantFields: []string{"sets"},
		},
		{
			name:       "unknown exercise",
			in:         FitnessInput{CrusadeID: "c1", ExerciseType: "curls", Reps: "10"},
			wantFields: []string{"exercise_type"},
		},
		{
			name:       "bad unit",
			in:         FitnessInput{CrusadeID: "c1", ExerciseType: "squat", Weight: "100", WeightUnit: "stone", Reps: "5"},
			wantFields: []string{"weight_unit"},
		},
		{
			name:       "notes too long",
			in:         FitnessInput{CrusadeID: "c1", ExerciseType: "pushups", Reps: "10", Notes: strings.Repeat("x", 1001)},
			wantFields: []string{"notes"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := tt.in.Validate()
			if len(tt.wantFields) == 0 {
				assert.Nil(t, errs)
				return
			}
			require.NotNil(t, errs)
			for _, f := range tt.wantFields {
				assert.Contains(t, errs, f)
			}
			assert.Len(t, errs, len(tt.wantFields))
		})
	}
}

func TestFitnessInputConvertsUnits(t *testing.T) {
	entry, errs := FitnessInput{CrusadeID: "c1", ExerciseType: "bench_press", Weight: "225", WeightUnit: "lbs", Reps: "5"}.Validate()
	require.Nil(t, errs)
	require.NotNil(t, entry.WeightKg)
	require.NotNil(t, entry.WeightLbs)
	assert.Equal(t, 102.06, *entry.WeightKg)
	assert.Equal(t, 225.0, *entry.WeightLbs)
	assert.Equal(t, 1, entry.Sets)
	assert.Equal(t, 5, entry.Volume())

	in := FitnessInput{WeightLbs: "135"}
	assert.Equal(t, UnitLbs, in.Unit())
	assert.Equal(t, UnitKg, FitnessInput{}.Unit())
}

func TestMealInputValidate(t *testing.T) {
	entry, errs := MealInput{CrusadeID: "c1", MealType: "lunch", Calories: "650", ProteinG: "45", CarbsG: "0"}.Validate()
	require.Nil(t, errs)
	assert.Equal(t, 650, entry.Calories)
	require.NotNil(t, entry.ProteinG)
	assert.Equal(t, 45.0, *entry.ProteinG)
	require.NotNil(t, entry.CarbsG)
	assert.Equal(t, 0.0, *entry.CarbsG)
	assert.Nil(t, entry.FatG)

	_, errs = MealInput{CrusadeID: "c1", MealType: "brunch", Calories: "10000", FatG: "-1", ProteinG: "abc"}.Validate()
	require.NotNil(t, errs)
	assert.Equal(t, "Unknown meal type", errs["meal_type"])
	assert.Equal(t, "Valid calorie count is required", errs["calories"])
	assert.Equal(t, "Invalid fat value", errs["fat_g"])
	assert.Equal(t, "Invalid protein value", errs["protein_g"])

	_, errs = MealInput{}.Validate()
	assert.Equal(t, "Meal type is required", errs["meal_type"])
}

func TestFitnessPostWeighted(t *testing.T) {
	prev := FitnessEntry{ExerciseType: "bench_press", WeightKg: ptr(100), Reps: 5}
	curr := FitnessEntry{ExerciseType: "bench_press", WeightKg: ptr(105), Reps: 5}

	text := NewFitnessPost("", curr, &prev, UnitKg).Text()
	assert.Equal(t, "Bench Press challenge from @vvvdotnet fitness crusades. $V\n\nPrevious: 100kg x 5\nCurrent: 105kg x 5 (+5.0% 📈)", text)
}

func TestFitnessPostBodyweight(t *testing.T) {
	prev := FitnessEntry{ExerciseType: "pushups", Reps: 10}
	curr := FitnessEntry{ExerciseType: "pushups", Reps: 12, Notes: "new PR"}

	text := NewFitnessPost("@lifter", curr, &prev, UnitKg).Text()
	assert.Equal(t, "Push-ups challenge from @lifter fitness crusades. $V\n\nPrevious: 10 reps\nCurrent: 12 reps (+20.0% 📈)\n\nnew PR", text)
}

func TestFitnessPostNoImprovement(t *testing.T) {
	prev := FitnessEntry{ExerciseType: "pullups", Reps: 12}
	curr := FitnessEntry{ExerciseType: "pullups", Reps: 10}

	post := NewFitnessPost("", curr, &prev, UnitKg)
	pct, ok := post.Improvement()
	assert.True(t, ok)
	assert.Less(t, pct, 0.0)
	assert.NotContains(t, post.Text(), "📈")

	first := NewFitnessPost("", curr, nil, UnitKg)
	assert.Equal(t, "Pull-ups challenge from @vvvdotnet fitness crusades. $V\n\nCurrent: 10 reps", first.Text())
}

func TestFitnessPostPounds(t *testing.T) {
	curr := FitnessEntry{ExerciseType: "squat", WeightKg: ptr(102.06), WeightLbs: ptr(225), Reps: 3}
	assert.Contains(t, NewFitnessPost("", curr, nil, UnitLbs).Text(), "Current: 225lbs x 3")
}

func TestMealPost(t *testing.T) {
	text := MealPost{MealType: "lunch", Calories: 650}.Text()
	assert.Equal(t, "Lunch accountability from @vvvdotnet meal crusades. $V\n\n650 kcal", text)

	text = MealPost{Handle: "me", MealType: "snack", Calories: 120, Notes: "apple"}.Text()
	assert.Equal(t, "Snack accountability from @me meal crusades. $V\n\n120 kcal\n\napple", text)
}

func TestPostLength(t *testing.T) {
	assert.ErrorIs(t, ValidatePostText("   "), ErrPostEmpty)
	assert.ErrorIs(t, ValidatePostText(strings.Repeat("a", 281)), ErrPostTooLong)
	assert.NoError(t, ValidatePostText(strings.Repeat("a", 280)))

	fitted := FitPost(strings.Repeat("a", 300))
	assert.NoError(t, ValidatePostText(fitted))
	assert.True(t, strings.HasSuffix(fitted, "..."))
	assert.Equal(t, "short", FitPost("short"))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "1.5K", FormatNumber(1500))
	assert.Equal(t, "2.3M", FormatNumber(2_300_000))
	assert.Equal(t, "999", FormatNumber(999))

	assert.Equal(t, "0 Bytes", FormatFileSize(0))
	assert.Equal(t, "500 Bytes", FormatFileSize(500))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "5 MB", FormatFileSize(5*1024*1024))

	assert.Equal(t, "102.5kg", FormatWeight(102.5, "kg"))
	assert.Equal(t, "650 kcal", FormatCalories(650))
	assert.Equal(t, "P: 40g | C: 55.5g | F: 12g", FormatMacros(40, 55.5, 12))
	assert.Equal(t, "12 reps", FormatExerciseProgress(Exercise{Kind: Bodyweight}, 0, 12, "reps"))
	assert.Equal(t, "abc...", TruncateText("abcdef", 3))
	assert.Equal(t, "abc", TruncateText("abc", 50))
}

func TestPhotoKeysScan(t *testing.T) {
	var keys PhotoKeys
	require.NoError(t, keys.Scan(`["u1/a.jpg","u1/b.png"]`))
	assert.Equal(t, PhotoKeys{"u1/a.jpg", "u1/b.png"}, keys)

	require.NoError(t, keys.Scan(nil))
	assert.Empty(t, keys)

	v, err := PhotoKeys(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	assert.Error(t, keys.Scan(42))
}

func TestComputeStats(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	stats := ComputeStats(
		[]FitnessEntry{
			{Reps: 5, Sets: 3, WeightKg: ptr(100), CreatedAt: t1},
			{Reps: 10, Sets: 0, WeightKg: ptr(120), CreatedAt: t1},
		},
		[]MealEntry{{Calories: 500, CreatedAt: t2}, {Calories: 300, CreatedAt: t1}},
	)
	assert.Equal(t, 2, stats.Workouts)
	assert.Equal(t, 25, stats.TotalReps)
	assert.Equal(t, 120.0, stats.MaxWeightKg)
	assert.Equal(t, 2, stats.Meals)
	assert.Equal(t, 800, stats.TotalCalories)
	require.NotNil(t, stats.LastActivity)
	assert.Equal(t, t2, *stats.LastActivity)
}
