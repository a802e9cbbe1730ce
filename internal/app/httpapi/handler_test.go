package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/vvvdotnet/crusades/internal/app"
	"github.com/vvvdotnet/crusades/internal/app/auth"
	"github.com/vvvdotnet/crusades/internal/discord"
	"github.com/vvvdotnet/crusades/internal/logging"
	"github.com/vvvdotnet/crusades/internal/middleware"
	"github.com/vvvdotnet/crusades/internal/objectstore"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type fakeDiscord struct{}

func (fakeDiscord) Exchange(_ context.Context, code string) (*discord.Token, error) {
	if code == "bad" {
		return nil, errors.New("invalid_grant")
	}
	return &discord.Token{AccessToken: "at-" + code, TokenType: "Bearer"}, nil
}

func (fakeDiscord) CurrentUser(_ context.Context, accessToken string) (*discord.Profile, error) {
	name := strings.TrimPrefix(accessToken, "at-")
	return &discord.Profile{ID: "discord-" + name, Username: name}, nil
}

type testEnv struct {
	app     *app.Application
	handler http.Handler
	audit   *AuditLog
	photos  *objectstore.MemoryStore
}

func newTestEnv(t *testing.T, limiter *middleware.RateLimiter) *testEnv {
	t.Helper()
	tokens, err := auth.NewManager("httpapi-test-secret-0123456789", 0)
	require.NoError(t, err)

	store := objectstore.NewMemory("photos")
	application, err := app.New(app.Stores{}, app.Options{
		Tokens:  tokens,
		Photos:  store,
		Discord: fakeDiscord{},
	}, logging.NewDiscard())
	require.NoError(t, err)

	audit := NewAuditLog(50, nil)
	h := NewHandler(application, Options{
		AllowedOrigins: []string{"https://crusades.example"},
		RateLimiter:    limiter,
		Audit:          audit,
		Log:            logging.NewDiscard(),
	})
	return &testEnv{app: application, handler: h, audit: audit, photos: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	} else if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// login signs in through the Discord callback and returns the token and
// user id.
func (e *testEnv) login(t *testing.T, name string) (string, string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/discord/callback", "", marshal(t, map[string]string{"code": name}), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var session struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(t, rec, &session)
	require.NotEmpty(t, session.Token)
	return session.Token, session.User.ID
}

// seed creates the default crusades and returns their ids by type.
func (e *testEnv) seed(t *testing.T, token string) map[string]string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/crusades/init", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Crusades []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"crusades"`
	}
	decode(t, rec, &out)
	ids := map[string]string{}
	for _, c := range out.Crusades {
		if _, ok := ids[c.Type]; !ok {
			ids[c.Type] = c.ID
		}
	}
	return ids
}

func marshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	decode(t, rec, &body)
	return body
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, "lift.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestHealthAndNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/health", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := errorOf(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))

	rec = env.do(t, http.MethodGet, "/api/does-not-exist", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/metrics", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "crusades_http_requests_total")
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/auth/discord/callback", "", marshal(t, map[string]string{"code": ""}), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No authorization code provided", errorOf(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/auth/discord/callback", "", marshal(t, map[string]string{"code": "bad"}), "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Authentication failed", errorOf(t, rec)["error"])

	token, userID := env.login(t, "lifter")

	rec = env.do(t, http.MethodGet, "/api/auth/me", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/auth/me", "not-a-token", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/auth/me", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User map[string]interface{} `json:"user"`
	}
	decode(t, rec, &me)
	assert.Equal(t, userID, me.User["id"])
	assert.Equal(t, "lifter", me.User["discord_username"])
	assert.Equal(t, false, me.User["x_connected"])

	rec = env.do(t, http.MethodPatch, "/api/auth/me", token, marshal(t, map[string]string{"x_username": "@liftsalot"}), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &me)
	assert.Equal(t, "liftsalot", me.User["x_username"])
	assert.Equal(t, true, me.User["x_connected"])

	rec = env.do(t, http.MethodPatch, "/api/auth/me", token, marshal(t, map[string]string{"x_username": "not valid!"}), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/logout", token, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", errorOf(t, rec)["message"])
}

func TestSupabaseNotConfigured(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/api/auth/supabase", "", marshal(t, map[string]string{"access_token": "x"}), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCrusadeEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	token, _ := env.login(t, "lifter")

	rec := env.do(t, http.MethodPost, "/api/crusades/init", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ids := env.seed(t, token)
	require.Len(t, ids, 3)

	// Seeding twice creates nothing new.
	rec = env.do(t, http.MethodPost, "/api/crusades/init", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var again struct {
		Crusades []interface{} `json:"crusades"`
	}
	decode(t, rec, &again)
	assert.Empty(t, again.Crusades)

	rec = env.do(t, http.MethodGet, "/api/crusades", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Crusades []map[string]interface{} `json:"crusades"`
	}
	decode(t, rec, &list)
	assert.Len(t, list.Crusades, 4)

	fitnessID := ids["fitness"]
	rec = env.do(t, http.MethodGet, "/api/crusades/"+fitnessID, "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var one struct {
		Crusade map[string]interface{} `json:"crusade"`
	}
	decode(t, rec, &one)
	assert.Equal(t, fitnessID, one.Crusade["id"])

	rec = env.do(t, http.MethodGet, "/api/crusades/missing", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Crusade not found", errorOf(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/crusades/"+fitnessID+"/enroll", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Successfully enrolled in crusade", errorOf(t, rec)["message"])

	rec = env.do(t, http.MethodPost, "/api/crusades/"+fitnessID+"/enroll", token, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Already enrolled in this crusade", errorOf(t, rec)["error"])

	rec = env.do(t, http.MethodGet, "/api/crusades/my", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	require.Len(t, list.Crusades, 1)
	assert.Equal(t, fitnessID, list.Crusades[0]["id"])

	rec = env.do(t, http.MethodDelete, "/api/crusades/"+fitnessID+"/enroll", token, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/crusades/"+fitnessID+"/enroll", token, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/crusades/my", token, nil, "")
	decode(t, rec, &list)
	assert.Empty(t, list.Crusades)
}

func TestProgressEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	token, userID := env.login(t, "lifter")
	ids := env.seed(t, token)

	body, ct := multipartBody(t, map[string]string{
		"crusade_id":    ids["fitness"],
		"exercise_type": "bench_press",
		"weight_kg":     "100",
		"reps":          "5",
		"sets":          "3",
	}, map[string][]byte{"photos[0]": pngBytes})
	rec := env.do(t, http.MethodPost, "/api/progress/fitness", token, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var logged struct {
		ID        string                 `json:"id"`
		Entry     map[string]interface{} `json:"entry"`
		PhotoURLs []string               `json:"photo_urls"`
		Post      string                 `json:"x_post"`
	}
	decode(t, rec, &logged)
	require.NotEmpty(t, logged.ID)
	assert.Len(t, logged.PhotoURLs, 1)
	assert.Contains(t, logged.Post, "Bench Press")
	assert.Equal(t, 1, env.photos.Len())

	// Meals cannot be logged to a fitness crusade.
	body, ct = multipartBody(t, map[string]string{
		"crusade_id": ids["fitness"],
		"meal_type":  "lunch",
		"calories":   "650",
	}, nil)
	rec = env.do(t, http.MethodPost, "/api/progress/meal", token, body, ct)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	details, _ := errorOf(t, rec)["details"].(map[string]interface{})
	assert.Contains(t, details, "crusade_id")

	body, ct = multipartBody(t, map[string]string{
		"crusade_id": ids["meal"],
		"meal_type":  "lunch",
		"calories":   "650",
		"protein_g":  "40",
	}, nil)
	rec = env.do(t, http.MethodPost, "/api/progress/meal", token, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Missing reps is a validation error.
	body, ct = multipartBody(t, map[string]string{
		"crusade_id":    ids["fitness"],
		"exercise_type": "pushups",
	}, nil)
	rec = env.do(t, http.MethodPost, "/api/progress/fitness", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorOf(t, rec)["code"])

	rec = env.do(t, http.MethodGet, "/api/progress/history", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Type    string                   `json:"type"`
		Entries []map[string]interface{} `json:"entries"`
	}
	decode(t, rec, &hist)
	assert.Equal(t, "fitness", hist.Type)
	require.Len(t, hist.Entries, 1)

	rec = env.do(t, http.MethodGet, "/api/progress/history?type=meal&limit=10", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &hist)
	assert.Equal(t, "meal", hist.Type)
	assert.Len(t, hist.Entries, 1)

	rec = env.do(t, http.MethodGet, "/api/progress/history?type=sleep", token, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/progress/"+logged.ID, token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entry struct {
		Type      string                 `json:"type"`
		Entry     map[string]interface{} `json:"entry"`
		PhotoURLs []string               `json:"photo_urls"`
	}
	decode(t, rec, &entry)
	assert.Equal(t, "fitness", entry.Type)
	assert.Equal(t, logged.ID, entry.Entry["id"])
	assert.Len(t, entry.PhotoURLs, 1)

	// Another member cannot read the entry.
	other, _ := env.login(t, "spotter")
	rec = env.do(t, http.MethodGet, "/api/progress/"+logged.ID, other, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/progress/stats", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Stats map[string]interface{} `json:"stats"`
	}
	decode(t, rec, &stats)
	assert.EqualValues(t, 1, stats.Stats["workouts"])
	assert.EqualValues(t, 1, stats.Stats["meals"])

	rec = env.do(t, http.MethodGet, "/api/progress/stats?crusade_id=missing", token, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/leaderboard/"+ids["fitness"]+"?period=all_time", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var board struct {
		Type    string                   `json:"type"`
		Entries []map[string]interface{} `json:"leaderboard"`
	}
	decode(t, rec, &board)
	assert.Equal(t, "fitness", board.Type)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, userID, board.Entries[0]["id"])
	assert.EqualValues(t, 1, board.Entries[0]["rank"])

	rec = env.do(t, http.MethodGet, "/api/leaderboard/global", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &board)
	assert.Len(t, board.Entries, 1)

	rec = env.do(t, http.MethodGet, "/api/leaderboard/global?period=yearly", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/leaderboard/missing", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	token, _ := env.login(t, "lifter")

	rec := env.do(t, http.MethodPost, "/api/progress/preview", token, []byte(`{"type":"fitness","exercise_type":"pushups","reps":25}`), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Text string `json:"text"`
	}
	decode(t, rec, &out)
	assert.Contains(t, out.Text, "Push-ups")
	assert.Contains(t, out.Text, "25")

	rec = env.do(t, http.MethodPost, "/api/progress/preview", token, []byte(`{"type":"meal","meal_type":"dinner","calories":"800"}`), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &out)
	assert.Contains(t, out.Text, "Dinner")

	rec = env.do(t, http.MethodPost, "/api/progress/preview", token, []byte(`not json`), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/progress/preview", token, []byte(`{"type":"nap"}`), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	token, userID := env.login(t, "lifter")

	body, ct := multipartBody(t, nil, map[string][]byte{"photo": pngBytes})
	rec := env.do(t, http.MethodPost, "/api/upload/photo", token, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var photo struct {
		Key  string `json:"key"`
		URL  string `json:"url"`
		Size int    `json:"size"`
		Type string `json:"type"`
	}
	decode(t, rec, &photo)
	assert.True(t, strings.HasPrefix(photo.Key, userID+"/"), photo.Key)
	assert.Equal(t, "image/png", photo.Type)
	assert.Equal(t, len(pngBytes), photo.Size)

	body, ct = multipartBody(t, nil, map[string][]byte{"photo": []byte("GIF89a not allowed")})
	rec = env.do(t, http.MethodPost, "/api/upload/photo", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid file type. Only JPEG and PNG are allowed", errorOf(t, rec)["error"])

	body, ct = multipartBody(t, map[string]string{"caption": "x"}, nil)
	rec = env.do(t, http.MethodPost, "/api/upload/photo", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No photo provided", errorOf(t, rec)["error"])

	other, _ := env.login(t, "spotter")
	rec = env.do(t, http.MethodDelete, "/api/upload/photo/"+photo.Key, other, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 1, env.photos.Len())

	rec = env.do(t, http.MethodDelete, "/api/upload/photo/"+photo.Key, token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Photo deleted successfully", errorOf(t, rec)["message"])
	assert.Zero(t, env.photos.Len())
}

func TestAuditRecordsMutations(t *testing.T) {
	env := newTestEnv(t, nil)
	token, userID := env.login(t, "lifter")
	env.do(t, http.MethodGet, "/api/auth/me", token, nil, "")
	env.do(t, http.MethodPost, "/api/auth/logout", token, nil, "")

	entries := env.audit.Recent(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "/api/auth/discord/callback", entries[0].Path)
	assert.Empty(t, entries[0].User)
	assert.Equal(t, "/api/auth/logout", entries[1].Path)
	assert.Equal(t, userID, entries[1].User)
	assert.Equal(t, http.StatusOK, entries[1].Status)
	assert.NotEmpty(t, entries[1].TraceID)
}

func TestRateLimitAndCORS(t *testing.T) {
	env := newTestEnv(t, middleware.NewRateLimiter(1, 1, logging.NewDiscard()))

	rec := env.do(t, http.MethodGet, "/api/crusades", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/crusades", "", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorOf(t, rec)["code"])

	req := httptest.NewRequest(http.MethodOptions, "/api/progress/fitness", nil)
	req.Header.Set("Origin", "https://crusades.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	out := httptest.NewRecorder()
	env.handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusNoContent, out.Code)
	assert.Equal(t, "https://crusades.example", out.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", out.Header().Get("Access-Control-Allow-Credentials"))
}

func TestProtectedHandlersRejectMissingIdentity(t *testing.T) {
	h := &handler{log: logging.NewDiscard()}
	handlers := map[string]http.HandlerFunc{
		"me":          h.me,
		"updateMe":    h.updateMe,
		"myCrusades":  h.myCrusades,
		"enroll":      h.enroll,
		"unenroll":    h.unenroll,
		"logFitness":  h.logFitness,
		"logMeal":     h.logMeal,
		"previewPost": h.previewPost,
		"history":     h.history,
		"stats":       h.stats,
		"getProgress": h.getProgress,
		"uploadPhoto": h.uploadPhoto,
		"deletePhoto": h.deletePhoto,
	}
	for name, fn := range handlers {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			fn(rec, httptest.NewRequest(http.MethodPost, "/api/x", strings.NewReader("{}")))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", errorOf(t, rec)["code"])
		})
	}
}
