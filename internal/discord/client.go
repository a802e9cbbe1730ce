// Package discord implements the OAuth2 authorization-code flow against the
// Discord API and fetches the signed-in user's profile.
package discord

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/vvvdotnet/crusades/internal/httputil"
)

// DefaultBaseURL is the Discord REST API root.
const DefaultBaseURL = "https://discord.com/api"

// Config holds the OAuth2 application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	BaseURL      string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Token is the subset of the token response the API needs.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Scope        string
	ExpiresIn    time.Duration
}

// Profile is the Discord user returned by /users/@me.
type Profile struct {
	ID         string
	Username   string
	GlobalName string
	Avatar     string
}

// DisplayName prefers the global display name over the unique username.
func (p Profile) DisplayName() string {
	if p.GlobalName != "" {
		return p.GlobalName
	}
	return p.Username
}

// Client talks to Discord.
type Client struct {
	cfg  Config
	http *httputil.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("discord client id and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		cfg: cfg,
		http: httputil.NewClient(httputil.ClientConfig{
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
			Headers:    map[string]string{"Accept": "application/json"},
		}),
	}, nil
}

// Exchange trades an authorization code for an access token.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}
	form := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {c.cfg.RedirectURI},
	}

	resp, err := c.http.PostForm(ctx, "/oauth2/token", form, nil)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	var body []byte
	if err := httputil.DecodeResponse(resp, &body); err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	res := gjson.ParseBytes(body)
	tok := &Token{
		AccessToken:  res.Get("access_token").String(),
		TokenType:    res.Get("token_type").String(),
		RefreshToken: res.Get("refresh_token").String(),
		Scope:        res.Get("scope").String(),
		ExpiresIn:    time.Duration(res.Get("expires_in").Int()) * time.Second,
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("exchange code: response has no access_token")
	}
	return tok, nil
}

// CurrentUser fetches the profile of the token's owner.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*Profile, error) {
	resp, err := c.http.Get(ctx, "/users/@me", map[string]string{"Authorization": "Bearer " + accessToken})
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	var body []byte
	if err := httputil.DecodeResponse(resp, &body); err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}

	res := gjson.ParseBytes(body)
	p := &Profile{
		ID:         res.Get("id").String(),
		Username:   res.Get("username").String(),
		GlobalName: res.Get("global_name").String(),
		Avatar:     res.Get("avatar").String(),
	}
	if p.ID == "" {
		return nil, fmt.Errorf("fetch user: response has no id")
	}
	return p, nil
}
