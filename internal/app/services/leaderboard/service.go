// Package leaderboard serves ranked crusade and global boards, fronted by a
// short-lived response cache.
package leaderboard

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/vvvdotnet/crusades/internal/app/core/service"
	"github.com/vvvdotnet/crusades/internal/app/domain/leaderboard"
	"github.com/vvvdotnet/crusades/internal/app/metrics"
	"github.com/vvvdotnet/crusades/internal/app/storage"
	"github.com/vvvdotnet/crusades/internal/cache"
	"github.com/vvvdotnet/crusades/internal/errors"
	"github.com/vvvdotnet/crusades/internal/logging"
)

// DefaultCacheTTL bounds how stale a served board may be.
const DefaultCacheTTL = 30 * time.Second

// Service builds leaderboards.
type Service struct {
	crusades storage.CrusadeStore
	boards   storage.LeaderboardStore
	cache    cache.Cache
	ttl      time.Duration
	log      *logging.Logger
	now      func() time.Time
}

// New constructs a leaderboard service. A nil cache disables caching.
func New(crusades storage.CrusadeStore, boards storage.LeaderboardStore, c cache.Cache, ttl time.Duration, log *logging.Logger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logging.NewDefault("leaderboard")
	}
	return &Service{crusades: crusades, boards: boards, cache: c, ttl: ttl, log: log, now: time.Now}
}

// Crusade ranks the members of one crusade over period.
func (s *Service) Crusade(ctx context.Context, crusadeID, period string) (leaderboard.Board, error) {
	p, err := leaderboard.ParsePeriod(period)
	if err != nil {
		return leaderboard.Board{}, errors.BadRequest(err.Error())
	}

	key := "leaderboard:" + crusadeID + ":" + string(p)
	if board, ok := s.cached(ctx, key); ok {
		return board, nil
	}

	c, err := s.crusades.GetCrusade(ctx, crusadeID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return leaderboard.Board{}, errors.NotFound("Crusade not found")
	}
	if err != nil {
		return leaderboard.Board{}, errors.Internal("Failed to load crusade", err)
	}

	kind := leaderboard.KindFor(c.Type)
	since := p.Start(s.now())
	var rows []leaderboard.Entry
	if kind == leaderboard.KindMeal {
		rows, err = s.boards.MealLeaderboard(ctx, crusadeID, since)
	} else {
		rows, err = s.boards.FitnessLeaderboard(ctx, crusadeID, since)
	}
	if err != nil {
		return leaderboard.Board{}, errors.Internal("Failed to load leaderboard", err)
	}

	board := leaderboard.Board{
		Kind:      kind,
		CrusadeID: crusadeID,
		Period:    p,
		Since:     since,
		Entries:   leaderboard.Rank(kind, nonNil(rows)),
	}
	s.store(ctx, key, board)
	return board, nil
}

// Global ranks every member with activity in period.
func (s *Service) Global(ctx context.Context, period string) (leaderboard.Board, error) {
	p, err := leaderboard.ParsePeriod(period)
	if err != nil {
		return leaderboard.Board{}, errors.BadRequest(err.Error())
	}

	key := "leaderboard:global:" + string(p)
	if board, ok := s.cached(ctx, key); ok {
		return board, nil
	}

	since := p.Start(s.now())
	rows, err := s.boards.GlobalLeaderboard(ctx, since)
	if err != nil {
		return leaderboard.Board{}, errors.Internal("Failed to load leaderboard", err)
	}

	board := leaderboard.Board{
		Kind:    leaderboard.KindGlobal,
		Period:  p,
		Since:   since,
		Entries: leaderboard.Rank(leaderboard.KindGlobal, nonNil(rows)),
	}
	s.store(ctx, key, board)
	return board, nil
}

// cached treats cache failures as misses.
func (s *Service) cached(ctx context.Context, key string) (leaderboard.Board, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.RecordCacheLookup("error")
		s.log.WithContext(ctx).WithError(err).WithField("key", key).Warn("leaderboard cache read failed")
		return leaderboard.Board{}, false
	}
	if !ok {
		metrics.RecordCacheLookup("miss")
		return leaderboard.Board{}, false
	}

	var board leaderboard.Board
	if err := json.Unmarshal(raw, &board); err != nil {
		metrics.RecordCacheLookup("error")
		s.log.WithContext(ctx).WithError(err).WithField("key", key).Warn("discarding corrupt leaderboard cache entry")
		return leaderboard.Board{}, false
	}
	metrics.RecordCacheLookup("hit")
	return board, true
}

func (s *Service) store(ctx context.Context, key string, board leaderboard.Board) {
	raw, err := json.Marshal(board)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("key", key).Warn("leaderboard cache write failed")
	}
}

func nonNil(rows []leaderboard.Entry) []leaderboard.Entry {
	if rows == nil {
		return []leaderboard.Entry{}
	}
	return rows
}

// Descriptor advertises the service.
func (s *Service) Descriptor() service.Descriptor {
	d := service.Descriptor{Name: "leaderboard", Domain: "leaderboard", Layer: service.LayerAPI, Capabilities: []string{"crusade", "global"}}
	if _, ok := s.cache.(cache.Noop); !ok {
		d = d.WithCapabilities("cached")
	}
	return d
}
