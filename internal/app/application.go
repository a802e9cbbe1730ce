package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vvvdotnet/crusades/internal/app/auth"
	"github.com/vvvdotnet/crusades/internal/app/core/service"
	"github.com/vvvdotnet/crusades/internal/app/domain/crusade"
	authsvc "github.com/vvvdotnet/crusades/internal/app/services/auth"
	crusadesvc "github.com/vvvdotnet/crusades/internal/app/services/crusades"
	leaderboardsvc "github.com/vvvdotnet/crusades/internal/app/services/leaderboard"
	"github.com/vvvdotnet/crusades/internal/app/services/photos"
	progresssvc "github.com/vvvdotnet/crusades/internal/app/services/progress"
	"github.com/vvvdotnet/crusades/internal/app/storage"
	"github.com/vvvdotnet/crusades/internal/app/storage/memory"
	"github.com/vvvdotnet/crusades/internal/app/system"
	"github.com/vvvdotnet/crusades/internal/cache"
	"github.com/vvvdotnet/crusades/internal/logging"
	"github.com/vvvdotnet/crusades/internal/objectstore"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users       storage.UserStore
	Crusades    storage.CrusadeStore
	Progress    storage.ProgressStore
	Leaderboard storage.LeaderboardStore
}

// Options carries the non-storage dependencies. Tokens is required; the
// rest fall back to in-process defaults or stay disabled.
type Options struct {
	Tokens   *auth.Manager
	Photos   objectstore.Store
	Cache    cache.Cache
	CacheTTL time.Duration

	Discord  authsvc.DiscordAPI
	Supabase authsvc.SupabaseAuth

	// Catalog replaces the built-in default crusades when non-empty.
	Catalog []crusade.Crusade
	// PostHandle is the X account tagged in generated posts.
	PostHandle string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logging.Logger

	Tokens      *auth.Manager
	Auth        *authsvc.Service
	Crusades    *crusadesvc.Service
	Progress    *progresssvc.Service
	Leaderboard *leaderboardsvc.Service
	Photos      *photos.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.NewDefault("app")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token manager is required")
	}

	var mem *memory.Store
	fallback := func() *memory.Store {
		if mem == nil {
			mem = memory.New()
		}
		return mem
	}
	if stores.Users == nil {
		stores.Users = fallback()
	}
	if stores.Crusades == nil {
		stores.Crusades = fallback()
	}
	if stores.Progress == nil {
		stores.Progress = fallback()
	}
	if stores.Leaderboard == nil {
		stores.Leaderboard = fallback()
	}
	if opts.Photos == nil {
		log.Warn("no photo backend configured; photos are kept in memory")
		opts.Photos = objectstore.NewMemory("photos")
	}

	photoService := photos.New(opts.Photos, log)

	authService := authsvc.New(stores.Users, opts.Tokens, log)
	if opts.Discord != nil {
		authService.AttachDiscord(opts.Discord)
	}
	if opts.Supabase != nil {
		authService.AttachSupabase(opts.Supabase)
	}

	crusadeService := crusadesvc.New(stores.Crusades, log)
	if len(opts.Catalog) > 0 {
		crusadeService.SetCatalog(opts.Catalog)
	}

	progressService := progresssvc.New(stores.Crusades, stores.Progress, photoService, log)
	progressService.SetHandle(opts.PostHandle)

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = leaderboardsvc.DefaultCacheTTL
	}
	boardService := leaderboardsvc.New(stores.Crusades, stores.Leaderboard, opts.Cache, ttl, log)

	application := &Application{
		manager:     system.NewManager(),
		log:         log,
		Tokens:      opts.Tokens,
		Auth:        authService,
		Crusades:    crusadeService,
		Progress:    progressService,
		Leaderboard: boardService,
		Photos:      photoService,
	}

	for _, d := range application.Descriptors() {
		if err := application.manager.Register(system.NoopService{ServiceName: d.Name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", d.Name, err)
		}
	}
	return application, nil
}

// Descriptors lists the application's modules.
func (a *Application) Descriptors() []service.Descriptor {
	return []service.Descriptor{
		a.Auth.Descriptor(),
		a.Crusades.Descriptor(),
		a.Progress.Descriptor(),
		a.Leaderboard.Descriptor(),
		a.Photos.Descriptor(),
	}
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(svc system.Service) error {
	return a.manager.Register(svc)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
