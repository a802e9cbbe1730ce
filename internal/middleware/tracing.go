package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/vvvdotnet/crusades/internal/logging"
)

type requestInfoKey struct{}

// requestInfo is filled in by inner middleware so the access log line written
// on the way out can name the caller and the matched route.
type requestInfo struct {
	userID string
	route  string
}

func requestInfoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

func noteUserID(ctx context.Context, userID string) {
	if info := requestInfoFrom(ctx); info != nil {
		info.userID = userID
	}
}

func noteRoute(ctx context.Context, route string) {
	if info := requestInfoFrom(ctx); info != nil {
		info.route = route
	}
}

// TracingMiddleware assigns a trace id to every request and writes the
// access log line once the response is done.
type TracingMiddleware struct {
	logger *logging.Logger
}

// NewTracingMiddleware creates a new tracing middleware
func NewTracingMiddleware(logger *logging.Logger) *TracingMiddleware {
	return &TracingMiddleware{logger: logger}
}

// Handler returns the tracing middleware handler
func (m *TracingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" || len(traceID) > 64 {
			traceID = logging.NewTraceID()
		}
		w.Header().Set("X-Trace-ID", traceID)

		info := &requestInfo{}
		ctx := context.WithValue(logging.WithTraceID(r.Context(), traceID), requestInfoKey{}, info)
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r.WithContext(ctx))

		if info.userID != "" {
			ctx = logging.WithUserID(ctx, info.userID)
		}
		m.logger.LogRequest(ctx, r.Method, r.URL.Path, info.route, rw.statusCode, time.Since(start))
	})
}
