package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/vvvdotnet/crusades/internal/logging"
)

func TestCORSMiddleware(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://crusades.example", ".vercel.app"}).Handler(okHandler())

	tests := []struct {
		name       string
		method     string
		origin     string
		preflight  bool
		wantOrigin string
		wantStatus int
	}{
		{"exact origin", "GET", "https://crusades.example", false, "https://crusades.example", http.StatusOK},
		{"subdomain suffix", "GET", "https://preview-1.vercel.app", false, "https://preview-1.vercel.app", http.StatusOK},
		{"unknown origin", "GET", "https://evil.example", false, "", http.StatusOK},
		{"preflight", "OPTIONS", "https://crusades.example", true, "https://crusades.example", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/crusades", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.wantOrigin != "" && rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("Allow-Credentials not set")
			}
		})
	}
}

func TestCORSMiddleware_AllowAll(t *testing.T) {
	handler := NewCORSMiddleware([]string{"*"}).Handler(okHandler())
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Allow-Credentials = %q, want none in wildcard mode", got)
	}

	// A wildcard entry disables credentials even for origins also listed explicitly.
	handler = NewCORSMiddleware([]string{"*", "https://crusades.example"}).Handler(okHandler())
	req = httptest.NewRequest("OPTIONS", "/api/progress/fitness", nil)
	req.Header.Set("Origin", "https://crusades.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Allow-Credentials = %q, want none in wildcard mode", got)
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	rl := NewRateLimiter(1, 2, logging.NewDiscard())
	handler := rl.Handler(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/crusades", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)

		if rec.Code == http.StatusTooManyRequests {
			if rec.Header().Get("Retry-After") != "1" {
				t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
			}
			var body map[string]interface{}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != "Rate limit exceeded" {
				t.Errorf("error = %v", body["error"])
			}
		}
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i, codes[i], want[i])
		}
	}

	// A different caller has its own bucket.
	req := httptest.NewRequest("GET", "/api/crusades", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("second caller status = %d", rec.Code)
	}
}

func TestRateLimiter_KeysByUserID(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.NewDiscard())
	handler := rl.Handler(okHandler())

	for _, user := range []string{"u1", "u2"} {
		req := httptest.NewRequest("GET", "/", nil)
		req = req.WithContext(logging.WithUserID(req.Context(), user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("user %s status = %d", user, rec.Code)
		}
	}
	if rl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rl.Len())
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10, logging.NewDiscard())
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	rl.getLimiter("old")
	now = now.Add(10 * time.Minute)
	rl.getLimiter("fresh")

	if removed := rl.Cleanup(5 * time.Minute); removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}
	if rl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", rl.Len())
	}
}

func TestTracingMiddleware(t *testing.T) {
	var seen string
	handler := NewTracingMiddleware(logging.NewDiscard()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.GetTraceID(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest("POST", "/api/progress/fitness", nil)
	req.Header.Set("X-Trace-ID", "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "abc-123" || rec.Header().Get("X-Trace-ID") != "abc-123" {
		t.Errorf("trace id = %q, header = %q", seen, rec.Header().Get("X-Trace-ID"))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Header().Get("X-Trace-ID") == "" {
		t.Error("expected generated trace id")
	}
}

func TestTracingMiddleware_LogsCallerAndRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("crusades", "info", "json")
	logger.SetOutput(&buf)

	m := newTestManager(t)
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/api/crusades/{crusadeId}/enroll", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	handler := NewTracingMiddleware(logger).Handler(NewAuthMiddleware(m, logging.NewDiscard()).Optional(router))

	req := httptest.NewRequest("POST", "/api/crusades/42/enroll", nil)
	req.Header.Set("Authorization", "Bearer "+generateTestToken(t, m, "user-7"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}
	if line["user_id"] != "user-7" {
		t.Errorf("user_id = %v, want user-7", line["user_id"])
	}
	if line["route"] != "/api/crusades/{crusadeId}/enroll" {
		t.Errorf("route = %v", line["route"])
	}
	if line["path"] != "/api/crusades/42/enroll" {
		t.Errorf("path = %v", line["path"])
	}
	if line["status"] != float64(http.StatusCreated) {
		t.Errorf("status = %v", line["status"])
	}
}

func TestMetricsMiddleware(t *testing.T) {
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/api/crusades/{crusadeId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/crusades/42", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusAccepted)
	}
}
