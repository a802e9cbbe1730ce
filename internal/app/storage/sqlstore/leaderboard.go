package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vvvdotnet/crusades/internal/app/domain/leaderboard"
	"github.com/vvvdotnet/crusades/internal/app/domain/progress"
)

// volume mirrors progress.FitnessEntry.Volume.
const volume = `f.reps * CASE WHEN f.sets < 1 THEN 1 ELSE f.sets END`

var fitnessBoardQuery = fmt.Sprintf(`
	SELECT u.id, u.discord_username, u.discord_avatar,
	       COUNT(f.id) AS workouts,
	       COALESCE(SUM(%s), 0) AS total_reps,
	       COALESCE(MAX(f.weight_kg), 0) AS max_weight_kg
	FROM fitness_progress f
	JOIN users u ON u.id = f.user_id
	WHERE f.crusade_id = ? AND f.created_at >= ?
	GROUP BY u.id, u.discord_username, u.discord_avatar
	ORDER BY total_reps DESC, workouts DESC, u.discord_username
	LIMIT %d`, volume, leaderboard.Limit)

var mealBoardQuery = fmt.Sprintf(`
	SELECT u.id, u.discord_username, u.discord_avatar,
	       COUNT(m.id) AS meals,
	       COALESCE(SUM(m.calories), 0) AS total_calories
	FROM meal_progress m
	JOIN users u ON u.id = m.user_id
	WHERE m.crusade_id = ? AND m.created_at >= ?
	GROUP BY u.id, u.discord_username, u.discord_avatar
	ORDER BY meals DESC, total_calories DESC, u.discord_username
	LIMIT %d`, leaderboard.Limit)

var globalBoardQuery = fmt.Sprintf(`
	WITH activity AS (
		SELECT f.user_id, %s AS points FROM fitness_progress f WHERE f.created_at >= ?
		UNION ALL
		SELECT m.user_id, %d AS points FROM meal_progress m WHERE m.created_at >= ?
	)
	SELECT u.id, u.discord_username, u.discord_avatar,
	       COUNT(*) AS entries,
	       SUM(a.points) AS score,
	       (SELECT COUNT(*) FROM user_crusades uc WHERE uc.user_id = u.id) AS active_crusades
	FROM activity a
	JOIN users u ON u.id = a.user_id
	GROUP BY u.id, u.discord_username, u.discord_avatar
	ORDER BY score DESC, entries DESC, u.discord_username
	LIMIT %d`, volume, leaderboard.MealPoints, leaderboard.Limit)

func (s *Store) FitnessLeaderboard(ctx context.Context, crusadeID string, since time.Time) ([]leaderboard.Entry, error) {
	rows := []leaderboard.Entry{}
	err := s.selectRows(ctx, &rows, fitnessBoardQuery, crusadeID, since.UTC())
	if err == nil {
		return rows, nil
	}
	if fatal(ctx, err) {
		return nil, fmt.Errorf("fitness leaderboard: %w", err)
	}
	s.log.WithContext(ctx).WithError(err).Warn("fitness leaderboard aggregate failed, aggregating rows")

	members, err := s.members(ctx)
	if err != nil {
		return nil, err
	}
	entries := []progress.FitnessEntry{}
	if err := s.selectRows(ctx, &entries, fitnessSelect+` WHERE f.crusade_id = ? AND f.created_at >= ?`, crusadeID, since.UTC()); err != nil {
		return nil, fmt.Errorf("fitness leaderboard rows: %w", err)
	}
	return leaderboard.AggregateFitness(members, entries, since), nil
}

func (s *Store) MealLeaderboard(ctx context.Context, crusadeID string, since time.Time) ([]leaderboard.Entry, error) {
	rows := []leaderboard.Entry{}
	err := s.selectRows(ctx, &rows, mealBoardQuery, crusadeID, since.UTC())
	if err == nil {
		for i := range rows {
			if rows[i].Meals > 0 {
				rows[i].AvgCalories = math.Round(float64(rows[i].TotalCalories)/float64(rows[i].Meals)*10) / 10
			}
		}
		return rows, nil
	}
	if fatal(ctx, err) {
		return nil, fmt.Errorf("meal leaderboard: %w", err)
	}
	s.log.WithContext(ctx).WithError(err).Warn("meal leaderboard aggregate failed, aggregating rows")

	members, err := s.members(ctx)
	if err != nil {
		return nil, err
	}
	entries := []progress.MealEntry{}
	if err := s.selectRows(ctx, &entries, mealSelect+` WHERE m.crusade_id = ? AND m.created_at >= ?`, crusadeID, since.UTC()); err != nil {
		return nil, fmt.Errorf("meal leaderboard rows: %w", err)
	}
	return leaderboard.AggregateMeals(members, entries, since), nil
}

func (s *Store) GlobalLeaderboard(ctx context.Context, since time.Time) ([]leaderboard.Entry, error) {
	rows := []leaderboard.Entry{}
	err := s.selectRows(ctx, &rows, globalBoardQuery, since.UTC(), since.UTC())
	if err == nil {
		return rows, nil
	}
	if fatal(ctx, err) {
		return nil, fmt.Errorf("global leaderboard: %w", err)
	}
	s.log.WithContext(ctx).WithError(err).Warn("global leaderboard aggregate failed, aggregating rows")

	members, err := s.members(ctx)
	if err != nil {
		return nil, err
	}
	fitness := []progress.FitnessEntry{}
	if err := s.selectRows(ctx, &fitness, fitnessSelect+` WHERE f.created_at >= ?`, since.UTC()); err != nil {
		return nil, fmt.Errorf("global leaderboard fitness rows: %w", err)
	}
	meals := []progress.MealEntry{}
	if err := s.selectRows(ctx, &meals, mealSelect+` WHERE m.created_at >= ?`, since.UTC()); err != nil {
		return nil, fmt.Errorf("global leaderboard meal rows: %w", err)
	}

	var counts []struct {
		UserID string `db:"user_id"`
		N      int    `db:"n"`
	}
	if err := s.selectRows(ctx, &counts, `SELECT user_id, COUNT(*) AS n FROM user_crusades GROUP BY user_id`); err != nil {
		return nil, fmt.Errorf("global leaderboard enrollments: %w", err)
	}
	enrollments := make(map[string]int, len(counts))
	for _, c := range counts {
		enrollments[c.UserID] = c.N
	}
	return leaderboard.AggregateGlobal(members, enrollments, fitness, meals, since), nil
}

func (s *Store) members(ctx context.Context) (map[string]leaderboard.Member, error) {
	var rows []struct {
		ID              string `db:"id"`
		DiscordUsername string `db:"discord_username"`
		DiscordAvatar   string `db:"discord_avatar"`
	}
	if err := s.selectRows(ctx, &rows, `SELECT id, discord_username, discord_avatar FROM users`); err != nil {
		return nil, fmt.Errorf("leaderboard members: %w", err)
	}
	out := make(map[string]leaderboard.Member, len(rows))
	for _, r := range rows {
		out[r.ID] = leaderboard.Member{UserID: r.ID, DiscordUsername: r.DiscordUsername, DiscordAvatar: r.DiscordAvatar}
	}
	return out, nil
}

// fatal reports whether err should be returned instead of retried through
// the row fallback.
func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
