package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vvvdotnet/crusades/internal/logging"
	"github.com/vvvdotnet/crusades/internal/middleware"
)

const (
	janitorSchedule = "@every 1m"
	visitorMaxIdle  = 10 * time.Minute
)

// Sweeper drops expired entries and reports how many went.
type Sweeper interface {
	Sweep() int
}

// Janitor periodically evicts idle rate-limit visitors and expired cache
// entries.
type Janitor struct {
	limiter *middleware.RateLimiter
	sweeper Sweeper
	log     *logging.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewJanitor returns a janitor for the given targets. Either may be nil.
func NewJanitor(limiter *middleware.RateLimiter, sweeper Sweeper, log *logging.Logger) *Janitor {
	if log == nil {
		log = logging.NewDefault("janitor")
	}
	return &Janitor{limiter: limiter, sweeper: sweeper, log: log}
}

func (j *Janitor) Name() string { return "janitor" }

func (j *Janitor) Start(context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(janitorSchedule, j.Sweep); err != nil {
		return err
	}
	c.Start()
	j.cron = c
	return nil
}

func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep runs one cleanup pass.
func (j *Janitor) Sweep() {
	visitors, entries := 0, 0
	if j.limiter != nil {
		visitors = j.limiter.Cleanup(visitorMaxIdle)
	}
	if j.sweeper != nil {
		entries = j.sweeper.Sweep()
	}
	if visitors > 0 || entries > 0 {
		j.log.WithField("visitors", visitors).WithField("cache_entries", entries).Debug("janitor sweep")
	}
}
