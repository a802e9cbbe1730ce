// Package supabase is a small Supabase client covering the Storage and Auth
// endpoints the API uses. Requests are authenticated with the project's
// service role key, or with a user's access token where noted.
package supabase

import (
	"errors"
	"net/http"
	"time"
)

// Config holds Supabase client configuration.
type Config struct {
	// ProjectURL is the Supabase project URL (e.g., https://xxx.supabase.co)
	ProjectURL string

	// ServiceKey is the service role key. It bypasses row level security and
	// must never reach a browser.
	ServiceKey string

	// AnonKey is sent as the apikey header on user-token requests. Falls back
	// to ServiceKey when empty.
	AnonKey string

	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// User is a Supabase Auth user.
type User struct {
	ID           string                 `json:"id"`
	Aud          string                 `json:"aud"`
	Role         string                 `json:"role"`
	Email        string                 `json:"email"`
	AppMetadata  map[string]interface{} `json:"app_metadata,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	Identities   []Identity             `json:"identities,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`

	// Raw is the undecoded response body.
	Raw []byte `json:"-"`
}

// Identity links a Supabase user to an OAuth provider account.
type Identity struct {
	ID           string                 `json:"id"`
	IdentityID   string                 `json:"identity_id,omitempty"`
	UserID       string                 `json:"user_id"`
	Provider     string                 `json:"provider"`
	IdentityData map[string]interface{} `json:"identity_data,omitempty"`
}

// UploadOptions for file uploads.
type UploadOptions struct {
	ContentType  string
	CacheControl string
	Upsert       bool
}

// Error represents a Supabase API error.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"status_code"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// NewError creates a new Supabase error.
func NewError(code, message string, statusCode int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// IsNotFound reports whether err is a Supabase 404.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is a Supabase 401 or 403.
func IsUnauthorized(err error) bool {
	var e *Error
	return errors.As(err, &e) && (e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}
