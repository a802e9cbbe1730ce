// Package sqlstore implements the storage interfaces on PostgreSQL or SQLite
// through sqlx. Queries are written with "?" placeholders and rebound for the
// connected driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vvvdotnet/crusades/internal/app/domain/crusade"
	"github.com/vvvdotnet/crusades/internal/app/domain/progress"
	"github.com/vvvdotnet/crusades/internal/app/domain/user"
	"github.com/vvvdotnet/crusades/internal/app/storage"
	"github.com/vvvdotnet/crusades/internal/logging"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store implements the storage interfaces backed by a SQL database.
type Store struct {
	db  *sqlx.DB
	log *logging.Logger
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.CrusadeStore = (*Store)(nil)
var _ storage.ProgressStore = (*Store)(nil)
var _ storage.LeaderboardStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB, log *logging.Logger) *Store {
	if log == nil {
		log = logging.NewDiscard()
	}
	return &Store{db: db, log: log}
}

// Open connects to driver at dsn and verifies the connection. SQLite
// connections get foreign keys, a busy timeout and a sortable time format.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func sqliteDSN(dsn string) string {
	params := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_time_format=sqlite",
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var missing []string
	for _, p := range params {
		if !strings.Contains(dsn, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return dsn
	}
	return dsn + sep + strings.Join(missing, "&")
}

// translate maps driver errors onto the storage sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", storage.ErrConflict, pqErr.Message)
		case "23503":
			return fmt.Errorf("%w: %s", storage.ErrNotFound, pqErr.Message)
		}
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%w: %s", storage.ErrConflict, liteErr.Error())
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %s", storage.ErrNotFound, liteErr.Error())
		}
	}
	return err
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	return res, translate(err)
}

func (s *Store) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return translate(s.db.GetContext(ctx, dest, s.db.Rebind(query), args...))
}

func (s *Store) selectRows(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return translate(s.db.SelectContext(ctx, dest, s.db.Rebind(query), args...))
}

// --- UserStore --------------------------------------------------------------

const userColumns = `id, discord_id, discord_username, discord_avatar, x_username, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.DiscordID, u.DiscordUsername, u.DiscordAvatar, u.XUsername, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	var out user.User
	err := s.get(ctx, &out, `
		UPDATE users
		SET discord_username = ?, discord_avatar = ?, x_username = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+userColumns,
		u.DiscordUsername, u.DiscordAvatar, u.XUsername, time.Now().UTC(), u.ID)
	if err != nil {
		return user.User{}, fmt.Errorf("update user %s: %w", u.ID, err)
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	if err := s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return user.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

func (s *Store) GetUserByDiscordID(ctx context.Context, discordID string) (user.User, error) {
	var u user.User
	if err := s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE discord_id = ?`, discordID); err != nil {
		return user.User{}, fmt.Errorf("get user by discord id: %w", err)
	}
	return u, nil
}

// --- CrusadeStore -----------------------------------------------------------

const crusadeColumns = `c.id, c.name, c.type, c.description, c.icon, c.is_active, c.start_date, c.end_date, c.created_at`

func (s *Store) CreateCrusade(ctx context.Context, c crusade.Crusade) (crusade.Crusade, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.exec(ctx, `
		INSERT INTO crusades (id, name, type, description, icon, is_active, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, string(c.Type), c.Description, c.Icon, c.IsActive, c.StartDate, c.EndDate, c.CreatedAt.UTC())
	if err != nil {
		return crusade.Crusade{}, fmt.Errorf("create crusade %q: %w", c.Name, err)
	}
	return c, nil
}

func (s *Store) GetCrusade(ctx context.Context, id string) (crusade.Crusade, error) {
	var c crusade.Crusade
	if err := s.get(ctx, &c, `SELECT `+crusadeColumns+` FROM crusades c WHERE c.id = ?`, id); err != nil {
		return crusade.Crusade{}, fmt.Errorf("get crusade %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) ListCrusades(ctx context.Context, activeOnly bool) ([]crusade.Crusade, error) {
	query := `SELECT ` + crusadeColumns + ` FROM crusades c`
	var args []interface{}
	if activeOnly {
		query += ` WHERE c.is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY c.created_at DESC, c.name`

	out := []crusade.Crusade{}
	if err := s.selectRows(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list crusades: %w", err)
	}
	return out, nil
}

func (s *Store) CreateEnrollment(ctx context.Context, e crusade.Enrollment) (crusade.Enrollment, error) {
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, `
		INSERT INTO user_crusades (user_id, crusade_id, enrolled_at)
		VALUES (?, ?, ?)
	`, e.UserID, e.CrusadeID, e.EnrolledAt.UTC())
	if err != nil {
		return crusade.Enrollment{}, fmt.Errorf("enroll %s in %s: %w", e.UserID, e.CrusadeID, err)
	}
	return e, nil
}

func (s *Store) DeleteEnrollment(ctx context.Context, userID, crusadeID string) error {
	if _, err := s.exec(ctx, `DELETE FROM user_crusades WHERE user_id = ? AND crusade_id = ?`, userID, crusadeID); err != nil {
		return fmt.Errorf("unenroll %s from %s: %w", userID, crusadeID, err)
	}
	return nil
}

func (s *Store) ListEnrollments(ctx context.Context, userID string) ([]crusade.Enrolled, error) {
	out := []crusade.Enrolled{}
	err := s.selectRows(ctx, &out, `
		SELECT `+crusadeColumns+`, uc.enrolled_at
		FROM user_crusades uc
		JOIN crusades c ON c.id = uc.crusade_id
		WHERE uc.user_id = ?
		ORDER BY uc.enrolled_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return out, nil
}

// --- ProgressStore ----------------------------------------------------------

const fitnessSelect = `
	SELECT f.id, f.user_id, f.crusade_id, c.name AS crusade_name, f.exercise_type,
	       f.weight_kg, f.weight_lbs, f.reps, f.sets, f.notes, f.photo_urls, f.created_at
	FROM fitness_progress f
	JOIN crusades c ON c.id = f.crusade_id`

const mealSelect = `
	SELECT m.id, m.user_id, m.crusade_id, c.name AS crusade_name, m.meal_type, m.calories,
	       m.protein_g, m.carbs_g, m.fat_g, m.food_items, m.notes, m.photo_urls, m.created_at
	FROM meal_progress m
	JOIN crusades c ON c.id = m.crusade_id`

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

func (s *Store) CreateFitnessEntry(ctx context.Context, e progress.FitnessEntry) (progress.FitnessEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.PhotoKeys == nil {
		e.PhotoKeys = progress.PhotoKeys{}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.exec(ctx, `
		INSERT INTO fitness_progress (id, user_id, crusade_id, exercise_type, weight_kg, weight_lbs, reps, sets, notes, photo_urls, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.CrusadeID, e.ExerciseType, e.WeightKg, e.WeightLbs, e.Reps, e.Sets, e.Notes, e.PhotoKeys, e.CreatedAt.UTC())
	if err != nil {
		return progress.FitnessEntry{}, fmt.Errorf("create fitness entry: %w", err)
	}
	return e, nil
}

func (s *Store) ListFitnessEntries(ctx context.Context, userID string, limit int) ([]progress.FitnessEntry, error) {
	out := []progress.FitnessEntry{}
	query := fitnessSelect + ` WHERE f.user_id = ? ORDER BY f.created_at DESC` + limitClause(limit)
	if err := s.selectRows(ctx, &out, query, userID); err != nil {
		return nil, fmt.Errorf("list fitness entries: %w", err)
	}
	return out, nil
}

func (s *Store) GetFitnessEntry(ctx context.Context, userID, id string) (progress.FitnessEntry, error) {
	var e progress.FitnessEntry
	if err := s.get(ctx, &e, fitnessSelect+` WHERE f.id = ? AND f.user_id = ?`, id, userID); err != nil {
		return progress.FitnessEntry{}, fmt.Errorf("get fitness entry %s: %w", id, err)
	}
	return e, nil
}

func (s *Store) LatestFitnessEntry(ctx context.Context, userID, exerciseType string) (progress.FitnessEntry, error) {
	var e progress.FitnessEntry
	query := fitnessSelect + ` WHERE f.user_id = ? AND f.exercise_type = ? ORDER BY f.created_at DESC LIMIT 1`
	if err := s.get(ctx, &e, query, userID, exerciseType); err != nil {
		return progress.FitnessEntry{}, fmt.Errorf("latest %s entry: %w", exerciseType, err)
	}
	return e, nil
}

func (s *Store) CreateMealEntry(ctx context.Context, e progress.MealEntry) (progress.MealEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.PhotoKeys == nil {
		e.PhotoKeys = progress.PhotoKeys{}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.exec(ctx, `
		INSERT INTO meal_progress (id, user_id, crusade_id, meal_type, calories, protein_g, carbs_g, fat_g, food_items, notes, photo_urls, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.CrusadeID, e.MealType, e.Calories, e.ProteinG, e.CarbsG, e.FatG, e.FoodItems, e.Notes, e.PhotoKeys, e.CreatedAt.UTC())
	if err != nil {
		return progress.MealEntry{}, fmt.Errorf("create meal entry: %w", err)
	}
	return e, nil
}

func (s *Store) ListMealEntries(ctx context.Context, userID string, limit int) ([]progress.MealEntry, error) {
	out := []progress.MealEntry{}
	query := mealSelect + ` WHERE m.user_id = ? ORDER BY m.created_at DESC` + limitClause(limit)
	if err := s.selectRows(ctx, &out, query, userID); err != nil {
		return nil, fmt.Errorf("list meal entries: %w", err)
	}
	return out, nil
}

func (s *Store) GetMealEntry(ctx context.Context, userID, id string) (progress.MealEntry, error) {
	var e progress.MealEntry
	if err := s.get(ctx, &e, mealSelect+` WHERE m.id = ? AND m.user_id = ?`, id, userID); err != nil {
		return progress.MealEntry{}, fmt.Errorf("get meal entry %s: %w", id, err)
	}
	return e, nil
}

func (s *Store) UserStats(ctx context.Context, userID, crusadeID string) (progress.Stats, error) {
	filter := ` WHERE user_id = ?`
	args := []interface{}{userID}
	if crusadeID != "" {
		filter += ` AND crusade_id = ?`
		args = append(args, crusadeID)
	}
	// the same filter is bound once per subquery
	var all []interface{}
	for i := 0; i < 5; i++ {
		all = append(all, args...)
	}

	var stats progress.Stats
	err := s.get(ctx, &stats, `
		SELECT
			(SELECT COUNT(*) FROM fitness_progress`+filter+`) AS workouts,
			(SELECT COALESCE(SUM(reps * CASE WHEN sets < 1 THEN 1 ELSE sets END), 0) FROM fitness_progress`+filter+`) AS total_reps,
			(SELECT COALESCE(MAX(weight_kg), 0) FROM fitness_progress`+filter+`) AS max_weight_kg,
			(SELECT COUNT(*) FROM meal_progress`+filter+`) AS meals,
			(SELECT COALESCE(SUM(calories), 0) FROM meal_progress`+filter+`) AS total_calories
	`, all...)
	if err != nil {
		return progress.Stats{}, fmt.Errorf("user stats: %w", err)
	}

	var last time.Time
	for _, table := range []string{"fitness_progress", "meal_progress"} {
		var at time.Time
		err := s.get(ctx, &at, `SELECT created_at FROM `+table+filter+` ORDER BY created_at DESC LIMIT 1`, args...)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return progress.Stats{}, fmt.Errorf("last activity: %w", err)
		}
		if at.After(last) {
			last = at
		}
	}
	if !last.IsZero() {
		stats.LastActivity = &last
	}
	return stats, nil
}
