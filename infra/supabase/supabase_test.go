package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{ProjectURL: srv.URL + "/", ServiceKey: "service-key", AnonKey: "anon-key", MaxRetries: 1})
	require.NoError(t, err)
	return c
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{ServiceKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{ProjectURL: "https://x.supabase.co"})
	assert.Error(t, err)
	_, err = New(Config{ProjectURL: "not a url", ServiceKey: "k"})
	assert.Error(t, err)
}

func TestStorageUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/photos/u1/a%20b.jpg", r.URL.EscapedPath())
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		assert.Equal(t, "true", r.Header.Get("x-upsert"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "data", string(body))
		w.Write([]byte(`{"Key":"photos/u1/a b.jpg"}`))
	})

	err := c.Storage().Upload(context.Background(), "photos", "u1/a b.jpg", []byte("data"), &UploadOptions{ContentType: "image/jpeg", Upsert: true})
	require.NoError(t, err)
}

func TestStorageDownloadNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"statusCode":"404","error":"not_found","message":"Object not found"}`))
	})

	_, err := c.Storage().Download(context.Background(), "photos", "u1/missing.jpg")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "Object not found", err.Error())
}

func TestStorageDelete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/storage/v1/object/photos", r.URL.Path)
		var req struct {
			Prefixes []string `json:"prefixes"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"u1/a.jpg"}, req.Prefixes)
		w.Write([]byte(`[]`))
	})

	require.NoError(t, c.Storage().Delete(context.Background(), "photos", []string{"u1/a.jpg"}))
}

func TestStorageCreateSignedURL(t *testing.T) {
	var base string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/object/sign/photos/u1/a.jpg", r.URL.Path)
		var req struct {
			ExpiresIn int `json:"expiresIn"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 86400, req.ExpiresIn)
		w.Write([]byte(`{"signedURL":"/object/sign/photos/u1/a.jpg?token=abc"}`))
	})
	base = c.storageURL

	signed, err := c.Storage().CreateSignedURL(context.Background(), "photos", "u1/a.jpg", 86400)
	require.NoError(t, err)
	assert.Equal(t, base+"/object/sign/photos/u1/a.jpg?token=abc", signed)
}

func TestAuthGetUserDiscordProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		w.Write([]byte(`{
			"id": "sb-1",
			"email": "lifter@example.com",
			"app_metadata": {"provider": "discord"},
			"user_metadata": {
				"provider_id": "80351110224678912",
				"full_name": "lifter",
				"custom_claims": {"global_name": "Lifter"},
				"avatar_url": "https://cdn.discordapp.com/avatars/80351110224678912/a_1f2e3d.png"
			},
			"identities": [{"id": "80351110224678912", "provider": "discord", "identity_data": {}}]
		}`))
	})

	u, err := c.Auth().GetUser(context.Background(), "user-token")
	require.NoError(t, err)
	assert.Equal(t, "sb-1", u.ID)

	profile, ok := u.DiscordProfile()
	require.True(t, ok)
	assert.Equal(t, "80351110224678912", profile.ID)
	assert.Equal(t, "Lifter", profile.Username)
	assert.Equal(t, "a_1f2e3d", profile.Avatar)
}

func TestAuthGetUserLinkedDiscordIdentity(t *testing.T) {
	// Signed up with Google first, then linked Discord.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "sb-3",
			"app_metadata": {"provider": "google", "providers": ["google", "discord"]},
			"user_metadata": {
				"provider_id": "google-1093",
				"sub": "google-1093",
				"full_name": "Google Name",
				"avatar_url": "https://lh3.googleusercontent.com/a/photo"
			},
			"identities": [
				{"id": "google-1093", "provider": "google", "identity_data": {"sub": "google-1093"}},
				{"id": "175928847299117063", "provider": "discord", "identity_data": {
					"provider_id": "175928847299117063",
					"sub": "175928847299117063",
					"full_name": "squatter",
					"custom_claims": {"global_name": "Squatter"},
					"avatar_url": "https://cdn.discordapp.com/avatars/175928847299117063/9c8b7a.png"
				}}
			]
		}`))
	})

	u, err := c.Auth().GetUser(context.Background(), "user-token")
	require.NoError(t, err)

	profile, ok := u.DiscordProfile()
	require.True(t, ok)
	assert.Equal(t, "175928847299117063", profile.ID)
	assert.Equal(t, "Squatter", profile.Username)
	assert.Equal(t, "9c8b7a", profile.Avatar)
}

func TestAuthGetUserDiscordIdentityWithoutProviderID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "sb-4",
			"app_metadata": {"provider": "email"},
			"user_metadata": {"provider_id": "stale-id"},
			"identities": [{"id": "41771983423143937", "provider": "discord", "identity_data": {"name": "bencher"}}]
		}`))
	})

	u, err := c.Auth().GetUser(context.Background(), "user-token")
	require.NoError(t, err)

	profile, ok := u.DiscordProfile()
	require.True(t, ok)
	assert.Equal(t, "41771983423143937", profile.ID)
	assert.Equal(t, "bencher", profile.Username)
}

func TestAuthGetUserNonDiscord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"sb-2","app_metadata":{"provider":"email"},"identities":[{"provider":"email"}]}`))
	})

	u, err := c.Auth().GetUser(context.Background(), "user-token")
	require.NoError(t, err)
	_, ok := u.DiscordProfile()
	assert.False(t, ok)
}

func TestAuthGetUserUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":401,"msg":"invalid JWT"}`))
	})

	_, err := c.Auth().GetUser(context.Background(), "expired")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "invalid JWT")

	_, err = c.Auth().GetUser(context.Background(), "")
	assert.True(t, IsUnauthorized(err))
}
