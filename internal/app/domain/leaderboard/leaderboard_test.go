package leaderboard

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvvdotnet/crusades/internal/app/domain/crusade"
	"github.com/vvvdotnet/crusades/internal/app/domain/progress"
)

func kg(v float64) *float64 { return &v }

var now = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, Weekly, p)

	for _, raw := range []string{"daily", "weekly", "monthly", "all_time"} {
		p, err := ParsePeriod(raw)
		require.NoError(t, err)
		assert.Equal(t, Period(raw), p)
	}

	_, err = ParsePeriod("yearly")
	assert.Error(t, err)
}

func TestPeriodStart(t *testing.T) {
	assert.Equal(t, time.Date(2024, 3, 30, 12, 0, 0, 0, time.UTC), Daily.Start(now))
	assert.Equal(t, time.Date(2024, 3, 24, 12, 0, 0, 0, time.UTC), Weekly.Start(now))
	// AddDate normalises Feb 31 to Mar 2.
	assert.Equal(t, time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC), Monthly.Start(now))
	assert.Equal(t, Epoch, AllTime.Start(now))
}

func TestKindFor(t *testing.T) {
	assert.Equal(t, KindFitness, KindFor(crusade.TypeFitness))
	assert.Equal(t, KindFitness, KindFor(crusade.TypeDaily))
	assert.Equal(t, KindMeal, KindFor(crusade.TypeMeal))
}

func TestRankTies(t *testing.T) {
	rows := Rank(KindFitness, []Entry{
		{UserID: "c", DiscordUsername: "carol", TotalReps: 50, Workouts: 2},
		{UserID: "a", DiscordUsername: "alice", TotalReps: 100, Workouts: 4},
		{UserID: "b", DiscordUsername: "bob", TotalReps: 100, Workouts: 4},
		{UserID: "d", DiscordUsername: "dave", TotalReps: 100, Workouts: 3},
	})
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"a", "b", "d", "c"}, []string{rows[0].UserID, rows[1].UserID, rows[2].UserID, rows[3].UserID})
	assert.Equal(t, []int{1, 1, 3, 4}, []int{rows[0].Rank, rows[1].Rank, rows[2].Rank, rows[3].Rank})
}

func TestRankLimit(t *testing.T) {
	var rows []Entry
	for i := 0; i < Limit+10; i++ {
		rows = append(rows, Entry{UserID: fmt.Sprint(i), Meals: i})
	}
	ranked := Rank(KindMeal, rows)
	require.Len(t, ranked, Limit)
	assert.Equal(t, Limit+9, ranked[0].Meals)
	assert.Equal(t, 1, ranked[0].Rank)
}

func TestAggregateFitness(t *testing.T) {
	members := map[string]Member{
		"u1": {UserID: "u1", DiscordUsername: "alice"},
		"u2": {UserID: "u2", DiscordUsername: "bob"},
	}
	since := Weekly.Start(now)
	entries := []progress.FitnessEntry{
		{UserID: "u1", Reps: 5, Sets: 3, WeightKg: kg(100), CreatedAt: now.Add(-time.Hour)},
		{UserID: "u1", Reps: 5, Sets: 0, WeightKg: kg(110), CreatedAt: now.Add(-2 * time.Hour)},
		{UserID: "u2", Reps: 30, Sets: 1, CreatedAt: now.Add(-time.Hour)},
		// outside the window
		{UserID: "u2", Reps: 500, Sets: 1, CreatedAt: now.AddDate(0, 0, -8)},
	}

	rows := AggregateFitness(members, entries, since)
	require.Len(t, rows, 2)
	assert.Equal(t, "bob", rows[0].DiscordUsername)
	assert.Equal(t, 30, rows[0].TotalReps)
	assert.Equal(t, 1, rows[0].Workouts)
	assert.Equal(t, "alice", rows[1].DiscordUsername)
	assert.Equal(t, 20, rows[1].TotalReps)
	assert.Equal(t, 2, rows[1].Workouts)
	assert.Equal(t, 110.0, rows[1].MaxWeightKg)
	assert.Equal(t, 2, rows[1].Rank)
}

func TestAggregateMeals(t *testing.T) {
	members := map[string]Member{"u1": {DiscordUsername: "alice"}, "u2": {DiscordUsername: "bob"}}
	entries := []progress.MealEntry{
		{UserID: "u1", Calories: 500, CreatedAt: now},
		{UserID: "u1", Calories: 701, CreatedAt: now},
		{UserID: "u2", Calories: 900, CreatedAt: now},
	}
	rows := AggregateMeals(members, entries, AllTime.Start(now))
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0].DiscordUsername)
	assert.Equal(t, 2, rows[0].Meals)
	assert.Equal(t, 1201, rows[0].TotalCalories)
	assert.Equal(t, 600.5, rows[0].AvgCalories)
	assert.Equal(t, 900.0, rows[1].AvgCalories)
}

func TestAggregateGlobal(t *testing.T) {
	members := map[string]Member{"u1": {DiscordUsername: "alice"}, "u2": {DiscordUsername: "bob"}, "u3": {DiscordUsername: "idle"}}
	enrollments := map[string]int{"u1": 2, "u2": 1, "u3": 3}
	fitness := []progress.FitnessEntry{
		{UserID: "u1", Reps: 10, Sets: 5, CreatedAt: now},
	}
	meals := []progress.MealEntry{
		{UserID: "u2", Calories: 400, CreatedAt: now},
		{UserID: "u1", Calories: 400, CreatedAt: now},
		{UserID: "u3", Calories: 400, CreatedAt: now.AddDate(0, 0, -30)},
	}

	rows := AggregateGlobal(members, enrollments, fitness, meals, Daily.Start(now))
	require.Len(t, rows, 2, "members without entries in the window are not ranked")
	assert.Equal(t, "alice", rows[0].DiscordUsername)
	assert.Equal(t, 150, rows[0].Score)
	assert.Equal(t, 2, rows[0].Entries)
	assert.Equal(t, 2, rows[0].ActiveCrusades)
	assert.Equal(t, "bob", rows[1].DiscordUsername)
	assert.Equal(t, MealPoints, rows[1].Score)
}
