package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vvvdotnet/crusades/internal/httputil"
)

// maxResponseBody bounds downloads and API responses.
const maxResponseBody = 16 << 20

// Client is the main Supabase client.
type Client struct {
	config Config
	http   *httputil.Client

	// Derived values
	baseURL    string
	authURL    string
	storageURL string

	// Sub-clients
	auth    *AuthClient
	storage *StorageClient
}

// New creates a new Supabase client.
func New(cfg Config) (*Client, error) {
	if cfg.ProjectURL == "" {
		return nil, fmt.Errorf("project URL is required")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("service key is required")
	}

	baseURL := strings.TrimRight(cfg.ProjectURL, "/")
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid project URL %q", cfg.ProjectURL)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.AnonKey == "" {
		cfg.AnonKey = cfg.ServiceKey
	}

	c := &Client{
		config: cfg,
		http: httputil.NewClient(httputil.ClientConfig{
			BaseURL:    baseURL,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			HTTPClient: cfg.HTTPClient,
			Headers:    map[string]string{"Accept": "application/json"},
		}),
		baseURL:    baseURL,
		authURL:    baseURL + "/auth/v1",
		storageURL: baseURL + "/storage/v1",
	}

	c.auth = &AuthClient{client: c}
	c.storage = &StorageClient{client: c}

	return c, nil
}

// Auth returns the auth client.
func (c *Client) Auth() *AuthClient {
	return c.auth
}

// Storage returns the storage client.
func (c *Client) Storage() *StorageClient {
	return c.storage
}

// =============================================================================
// Internal HTTP Methods
// =============================================================================

// requestWithServiceKey performs an HTTP request with the service role key.
func (c *Client) requestWithServiceKey(ctx context.Context, method, urlPath string, body []byte, headers map[string]string) ([]byte, int, error) {
	return c.do(ctx, method, urlPath, body, headers, c.config.ServiceKey, c.config.ServiceKey)
}

// requestWithToken performs an HTTP request with a user's access token.
func (c *Client) requestWithToken(ctx context.Context, method, urlPath string, body []byte, headers map[string]string, accessToken string) ([]byte, int, error) {
	return c.do(ctx, method, urlPath, body, headers, c.config.AnonKey, accessToken)
}

func (c *Client) do(ctx context.Context, method, urlPath string, body []byte, extra map[string]string, apiKey, bearer string) ([]byte, int, error) {
	headers := map[string]string{
		"apikey":        apiKey,
		"Authorization": "Bearer " + bearer,
	}
	if body != nil {
		headers["Content-Type"] = "application/json"
	}
	for k, v := range extra {
		headers[k] = v
	}

	resp, err := c.http.Do(ctx, method, urlPath, body, headers)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := httputil.ReadAllStrict(resp.Body, maxResponseBody)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// parseError parses an error response.
func parseError(body []byte, statusCode int) error {
	var errResp struct {
		Code             interface{} `json:"code"`
		Message          string      `json:"message"`
		Msg              string      `json:"msg"`
		Details          string      `json:"details"`
		Error            string      `json:"error"`
		ErrorDescription string      `json:"error_description"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return &Error{
			Code:       "unknown",
			Message:    strings.TrimSpace(string(body)),
			StatusCode: statusCode,
		}
	}

	msg := errResp.Message
	for _, alt := range []string{errResp.Msg, errResp.ErrorDescription, errResp.Error} {
		if msg == "" {
			msg = alt
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("supabase request failed with status %d", statusCode)
	}

	code := errResp.Error
	if s, ok := errResp.Code.(string); ok && s != "" {
		code = s
	}

	return &Error{
		Code:       code,
		Message:    msg,
		Details:    errResp.Details,
		StatusCode: statusCode,
	}
}
