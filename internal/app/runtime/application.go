// Package runtime builds the crusades server from configuration and runs it.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	app "github.com/vvvdotnet/crusades/internal/app"
	"github.com/vvvdotnet/crusades/internal/app/auth"
	"github.com/vvvdotnet/crusades/internal/app/httpapi"
	"github.com/vvvdotnet/crusades/internal/app/storage/sqlstore"
	"github.com/vvvdotnet/crusades/internal/cache"
	"github.com/vvvdotnet/crusades/internal/config"
	"github.com/vvvdotnet/crusades/internal/discord"
	"github.com/vvvdotnet/crusades/internal/logging"
	"github.com/vvvdotnet/crusades/internal/middleware"
	"github.com/vvvdotnet/crusades/internal/objectstore"
	"github.com/vvvdotnet/crusades/internal/platform/migrations"
	"github.com/vvvdotnet/crusades/infra/supabase"
)

const (
	shutdownTimeout = 10 * time.Second
	auditBufferSize = 500
	redisKeyPrefix  = "crusades:"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logging.Logger
	app     *app.Application
	handler http.Handler
	server  *http.Server

	closers []func() error
}

// NewApplication builds every dependency described by cfg. The returned
// application owns database, cache and audit file handles until Shutdown.
func NewApplication(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.New("crusades", cfg.Log.Level, cfg.Log.Format)
	}
	a := &Application{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	stores, err := a.buildStores(ctx)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("configure tokens: %w", err)
	}
	opts := app.Options{
		Tokens:     tokens,
		CacheTTL:   cfg.Cache.LeaderboardTTL,
		Catalog:    cfg.Catalog,
		PostHandle: cfg.PostHandle,
	}

	var sb *supabase.Client
	if cfg.Supabase.Enabled() {
		sb, err = supabase.New(supabase.Config{
			ProjectURL: cfg.Supabase.URL,
			ServiceKey: cfg.Supabase.ServiceKey,
			AnonKey:    cfg.Supabase.AnonKey,
			MaxRetries: 2,
		})
		if err != nil {
			return nil, fmt.Errorf("configure supabase: %w", err)
		}
		opts.Supabase = sb.Auth()
	}
	if cfg.Discord.Enabled() {
		dc, err := discord.New(discord.Config{
			ClientID:     cfg.Discord.ClientID,
			ClientSecret: cfg.Discord.ClientSecret,
			RedirectURI:  cfg.Discord.RedirectURI,
		})
		if err != nil {
			return nil, fmt.Errorf("configure discord: %w", err)
		}
		opts.Discord = dc
	} else {
		log.Warn("DISCORD_CLIENT_ID not set; discord login disabled")
	}

	opts.Photos, err = objectstore.New(ctx, objectstore.Config{
		Backend:         cfg.Photos.Backend,
		Bucket:          cfg.Photos.Bucket,
		Endpoint:        cfg.Photos.S3Endpoint,
		Region:          cfg.Photos.S3Region,
		AccessKeyID:     cfg.Photos.S3AccessKeyID,
		SecretAccessKey: cfg.Photos.S3SecretAccessKey,
		MinioEndpoint:   cfg.Photos.MinioEndpoint,
		MinioUseSSL:     cfg.Photos.MinioUseSSL,
		Supabase:        sb,
	})
	if err != nil {
		return nil, fmt.Errorf("configure photo storage: %w", err)
	}

	var sweeper Sweeper
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.Cache.RedisURL, redisKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("configure redis: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		opts.Cache = rc
	} else {
		mc := cache.NewMemory()
		opts.Cache = mc
		sweeper = mc
	}

	a.app, err = app.New(stores, opts, log)
	if err != nil {
		return nil, err
	}

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst, log)
	}

	sink, err := httpapi.NewFileAuditSink(cfg.HTTP.AuditLogPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	if sink != nil {
		a.closers = append(a.closers, sink.Close)
	}
	audit := httpapi.NewAuditLog(auditBufferSize, sink)

	if err := a.app.Attach(NewJanitor(limiter, sweeper, log)); err != nil {
		return nil, err
	}

	a.handler = httpapi.NewHandler(a.app, httpapi.Options{
		AllowedOrigins: cfg.HTTP.Origins(),
		RateLimiter:    limiter,
		Audit:          audit,
		Log:            log,
	})
	a.server = &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	ok = true
	return a, nil
}

func (a *Application) buildStores(ctx context.Context) (app.Stores, error) {
	if a.cfg.Store.Driver == config.StoreMemory {
		a.log.Warn("STORE_DRIVER=memory; data is lost on restart")
		return app.Stores{}, nil
	}
	db, err := OpenDatabase(ctx, a.cfg.Store)
	if err != nil {
		return app.Stores{}, err
	}
	a.closers = append(a.closers, db.Close)

	store := sqlstore.New(db, a.log)
	return app.Stores{Users: store, Crusades: store, Progress: store, Leaderboard: store}, nil
}

// OpenDatabase connects to the configured SQL store and applies pending
// migrations.
func OpenDatabase(ctx context.Context, cfg config.StoreConfig) (*sqlx.DB, error) {
	db, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	if err := migrations.Apply(ctx, db.DB, cfg.Driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.Driver, err)
	}
	return db, nil
}

// App exposes the wired domain application.
func (a *Application) App() *app.Application { return a.app }

// Handler returns the HTTP handler served by Run.
func (a *Application) Handler() http.Handler { return a.handler }

// Run starts background services and the HTTP server, blocking until ctx
// is cancelled or the server fails. It shuts everything down before
// returning.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

// Shutdown gracefully stops the HTTP server, background services and open
// handles.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if a.app != nil {
		if err := a.app.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *Application) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("error closing resource")
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
