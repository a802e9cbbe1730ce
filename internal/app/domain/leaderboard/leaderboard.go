// Package leaderboard ranks members of a crusade, or of all crusades, over a
// time window.
package leaderboard

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/vvvdotnet/crusades/internal/app/domain/crusade"
	"github.com/vvvdotnet/crusades/internal/app/domain/progress"
)

// Limit caps the number of ranked rows returned.
const Limit = 50

// MealPoints is the global score awarded per logged meal.
const MealPoints = 100

// Period is the window a leaderboard covers.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	AllTime Period = "all_time"
)

// Epoch is the start of the all-time window.
var Epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// ParsePeriod defaults an empty value to weekly.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(raw); p {
	case "":
		return Weekly, nil
	case Daily, Weekly, Monthly, AllTime:
		return p, nil
	}
	return "", fmt.Errorf("invalid period %q: use daily, weekly, monthly or all_time", raw)
}

// Start returns the beginning of the window ending at now.
func (p Period) Start(now time.Time) time.Time {
	now = now.UTC()
	switch p {
	case Daily:
		return now.AddDate(0, 0, -1)
	case Monthly:
		return now.AddDate(0, -1, 0)
	case AllTime:
		return Epoch
	default:
		return now.AddDate(0, 0, -7)
	}
}

// Kind identifies which columns a board carries.
type Kind string

const (
	KindFitness Kind = "fitness"
	KindMeal    Kind = "meal"
	KindGlobal  Kind = "global"
)

// KindFor picks the board kind for a crusade type. Daily crusades rank
// workouts.
func KindFor(t crusade.Type) Kind {
	if t == crusade.TypeMeal {
		return KindMeal
	}
	return KindFitness
}

// Entry is one ranked member. Only the fields of the board's kind are set.
type Entry struct {
	Rank            int     `json:"rank"`
	UserID          string  `json:"id" db:"id"`
	DiscordUsername string  `json:"discord_username" db:"discord_username"`
	DiscordAvatar   string  `json:"discord_avatar,omitempty" db:"discord_avatar"`
	Workouts        int     `json:"workouts,omitempty" db:"workouts"`
	TotalReps       int     `json:"total_reps,omitempty" db:"total_reps"`
	MaxWeightKg     float64 `json:"max_weight_kg,omitempty" db:"max_weight_kg"`
	Meals           int     `json:"meals,omitempty" db:"meals"`
	TotalCalories   int     `json:"total_calories,omitempty" db:"total_calories"`
	AvgCalories     float64 `json:"avg_calories,omitempty" db:"avg_calories"`
	Entries         int     `json:"entries,omitempty" db:"entries"`
	ActiveCrusades  int     `json:"active_crusades,omitempty" db:"active_crusades"`
	Score           int     `json:"score,omitempty" db:"score"`
}

// Board is a ranked leaderboard.
type Board struct {
	Kind      Kind      `json:"type"`
	CrusadeID string    `json:"crusade_id,omitempty"`
	Period    Period    `json:"period"`
	Since     time.Time `json:"since"`
	Entries   []Entry   `json:"leaderboard"`
}

// Member identifies a ranked user.
type Member struct {
	UserID          string
	DiscordUsername string
	DiscordAvatar   string
}

// sortKey returns the ordering metrics of an entry for its board kind,
// highest first.
func sortKey(kind Kind, e Entry) (float64, float64) {
	switch kind {
	case KindMeal:
		return float64(e.Meals), float64(e.TotalCalories)
	case KindGlobal:
		return float64(e.Score), float64(e.Entries)
	default:
		return float64(e.TotalReps), float64(e.Workouts)
	}
}

// Rank sorts entries for kind, truncates to Limit and assigns competition
// ranks: tied members share a rank and the next rank skips ("1, 1, 3").
func Rank(kind Kind, entries []Entry) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		pi, si := sortKey(kind, entries[i])
		pj, sj := sortKey(kind, entries[j])
		if pi != pj {
			return pi > pj
		}
		if si != sj {
			return si > sj
		}
		return entries[i].DiscordUsername < entries[j].DiscordUsername
	})
	if len(entries) > Limit {
		entries = entries[:Limit]
	}
	for i := range entries {
		if i > 0 {
			p0, s0 := sortKey(kind, entries[i-1])
			p1, s1 := sortKey(kind, entries[i])
			if p0 == p1 && s0 == s1 {
				entries[i].Rank = entries[i-1].Rank
				continue
			}
		}
		entries[i].Rank = i + 1
	}
	return entries
}

// AggregateFitness builds fitness rows from raw entries. Entries created
// before since are ignored.
func AggregateFitness(members map[string]Member, entries []progress.FitnessEntry, since time.Time) []Entry {
	byUser := map[string]*Entry{}
	for _, e := range entries {
		if e.CreatedAt.Before(since) {
			continue
		}
		row := rowFor(byUser, members, e.UserID)
		row.Workouts++
		row.TotalReps += e.Volume()
		if e.WeightKg != nil && *e.WeightKg > row.MaxWeightKg {
			row.MaxWeightKg = *e.WeightKg
		}
	}
	return Rank(KindFitness, collect(byUser))
}

// AggregateMeals builds meal rows from raw entries.
func AggregateMeals(members map[string]Member, entries []progress.MealEntry, since time.Time) []Entry {
	byUser := map[string]*Entry{}
	for _, e := range entries {
		if e.CreatedAt.Before(since) {
			continue
		}
		row := rowFor(byUser, members, e.UserID)
		row.Meals++
		row.TotalCalories += e.Calories
	}
	for _, row := range byUser {
		if row.Meals > 0 {
			row.AvgCalories = round1(float64(row.TotalCalories) / float64(row.Meals))
		}
	}
	return Rank(KindMeal, collect(byUser))
}

// AggregateGlobal scores members across all crusades: one point per
// repetition plus MealPoints per meal. enrollments maps user id to the
// number of crusades joined.
func AggregateGlobal(members map[string]Member, enrollments map[string]int, fitness []progress.FitnessEntry, meals []progress.MealEntry, since time.Time) []Entry {
	byUser := map[string]*Entry{}
	for _, e := range fitness {
		if e.CreatedAt.Before(since) {
			continue
		}
		row := rowFor(byUser, members, e.UserID)
		row.Entries++
		row.Score += e.Volume()
	}
	for _, m := range meals {
		if m.CreatedAt.Before(since) {
			continue
		}
		row := rowFor(byUser, members, m.UserID)
		row.Entries++
		row.Score += MealPoints
	}
	for id, row := range byUser {
		row.ActiveCrusades = enrollments[id]
	}
	return Rank(KindGlobal, collect(byUser))
}

func rowFor(rows map[string]*Entry, members map[string]Member, userID string) *Entry {
	row, ok := rows[userID]
	if !ok {
		m := members[userID]
		row = &Entry{UserID: userID, DiscordUsername: m.DiscordUsername, DiscordAvatar: m.DiscordAvatar}
		rows[userID] = row
	}
	return row
}

func collect(rows map[string]*Entry) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
