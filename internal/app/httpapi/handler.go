// Package httpapi exposes the application over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	app "github.com/vvvdotnet/crusades/internal/app"
	"github.com/vvvdotnet/crusades/internal/app/metrics"
	"github.com/vvvdotnet/crusades/internal/httputil"
	"github.com/vvvdotnet/crusades/internal/logging"
	"github.com/vvvdotnet/crusades/internal/middleware"
)

// Options configures the middleware around the routes.
type Options struct {
	AllowedOrigins []string
	// RateLimiter throttles callers when set.
	RateLimiter *middleware.RateLimiter
	// Audit records mutating requests when set.
	Audit *AuditLog
	Log   *logging.Logger
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app  *app.Application
	auth *middleware.AuthMiddleware
	log  *logging.Logger
	now  func() time.Time
}

// NewHandler returns the full API: routes plus tracing, CORS, identity,
// rate limiting and audit middleware.
func NewHandler(application *app.Application, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logging.NewDefault("httpapi")
	}
	h := &handler{
		app:  application,
		auth: middleware.NewAuthMiddleware(application.Tokens, log),
		log:  log,
		now:  time.Now,
	}

	var root http.Handler = h.routes()
	if opts.Audit != nil {
		root = wrapWithAudit(root, opts.Audit)
	}
	if opts.RateLimiter != nil {
		root = opts.RateLimiter.Handler(root)
	}
	root = h.auth.Optional(root)
	root = middleware.NewCORSMiddleware(opts.AllowedOrigins).Handler(root)
	return middleware.NewTracingMiddleware(log).Handler(root)
}

func (h *handler) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware)
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.HandleFunc("/api/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	authAPI := api.PathPrefix("/auth").Subrouter()
	authAPI.HandleFunc("/discord/callback", h.discordCallback).Methods(http.MethodPost)
	authAPI.HandleFunc("/supabase", h.supabaseSession).Methods(http.MethodPost)
	authAPI.Handle("/me", h.protect(h.me)).Methods(http.MethodGet)
	authAPI.Handle("/me", h.protect(h.updateMe)).Methods(http.MethodPatch)
	authAPI.Handle("/logout", h.protect(h.logout)).Methods(http.MethodPost)

	crusades := api.PathPrefix("/crusades").Subrouter()
	crusades.HandleFunc("", h.listCrusades).Methods(http.MethodGet)
	crusades.Handle("/my", h.protect(h.myCrusades)).Methods(http.MethodGet)
	crusades.Handle("/init", h.protect(h.initCrusades)).Methods(http.MethodPost)
	crusades.HandleFunc("/{id}", h.getCrusade).Methods(http.MethodGet)
	crusades.Handle("/{id}/enroll", h.protect(h.enroll)).Methods(http.MethodPost)
	crusades.Handle("/{id}/enroll", h.protect(h.unenroll)).Methods(http.MethodDelete)

	prog := api.PathPrefix("/progress").Subrouter()
	prog.Handle("/fitness", h.protect(h.logFitness)).Methods(http.MethodPost)
	prog.Handle("/meal", h.protect(h.logMeal)).Methods(http.MethodPost)
	prog.Handle("/preview", h.protect(h.previewPost)).Methods(http.MethodPost)
	prog.Handle("/history", h.protect(h.history)).Methods(http.MethodGet)
	prog.Handle("/stats", h.protect(h.stats)).Methods(http.MethodGet)
	prog.Handle("/{id}", h.protect(h.getProgress)).Methods(http.MethodGet)

	boards := api.PathPrefix("/leaderboard").Subrouter()
	boards.HandleFunc("/global", h.globalLeaderboard).Methods(http.MethodGet)
	boards.HandleFunc("/{crusadeId}", h.crusadeLeaderboard).Methods(http.MethodGet)

	upload := api.PathPrefix("/upload").Subrouter()
	upload.Handle("/photo", h.protect(h.uploadPhoto)).Methods(http.MethodPost)
	upload.Handle("/photo/{key:.+}", h.protect(h.deletePhoto)).Methods(http.MethodDelete)

	return r
}

func (h *handler) protect(fn http.HandlerFunc) http.Handler {
	return h.auth.Handler(fn)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
		"services":  h.app.Descriptors(),
	})
}

type message struct {
	Message string `json:"message"`
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteServiceError(w, r, err)
}
