package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/tidwall/gjson"
)

// AuthClient handles Supabase Auth operations.
type AuthClient struct {
	client *Client
}

// GetUser retrieves the current user using an access token.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, NewError("unauthorized", "access token is required", http.StatusUnauthorized)
	}

	respBody, statusCode, err := a.client.requestWithToken(ctx, http.MethodGet, a.client.authURL+"/user", nil, nil, accessToken)
	if err != nil {
		return nil, err
	}
	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}

	var user User
	if err := json.Unmarshal(respBody, &user); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	user.Raw = respBody
	return &user, nil
}

// DiscordProfile is the Discord account behind a Supabase user.
type DiscordProfile struct {
	ID       string
	Username string
	Avatar   string
}

// DiscordProfile extracts the linked Discord account. ok is false when the
// user did not sign in with Discord.
func (u *User) DiscordProfile() (DiscordProfile, bool) {
	raw := u.Raw
	if len(raw) == 0 {
		b, err := json.Marshal(u)
		if err != nil {
			return DiscordProfile{}, false
		}
		raw = b
	}
	doc := gjson.ParseBytes(raw)

	identity := doc.Get(`identities.#(provider=="discord")`)
	if !identity.Exists() && doc.Get("app_metadata.provider").String() != "discord" {
		return DiscordProfile{}, false
	}

	// user_metadata mirrors whichever provider signed in first, so a linked
	// Discord identity is the authoritative source when present.
	meta := doc.Get("user_metadata")
	var id string
	if identity.Exists() {
		id = firstString(identity.Get("identity_data.provider_id"), identity.Get("identity_data.sub"), identity.Get("id"))
	} else {
		id = firstString(meta.Get("provider_id"), meta.Get("sub"))
	}
	if id == "" {
		return DiscordProfile{}, false
	}

	data := identity.Get("identity_data")
	return DiscordProfile{
		ID: id,
		Username: firstString(
			data.Get("custom_claims.global_name"), data.Get("full_name"), data.Get("name"), data.Get("user_name"),
			meta.Get("custom_claims.global_name"), meta.Get("full_name"), meta.Get("name"), meta.Get("user_name"),
		),
		Avatar: avatarHash(firstString(data.Get("avatar_url"), meta.Get("avatar_url"))),
	}, true
}

func firstString(results ...gjson.Result) string {
	for _, r := range results {
		if s := r.String(); s != "" {
			return s
		}
	}
	return ""
}

// avatarHash reduces a Discord CDN avatar URL to its hash, which is what the
// users table stores.
func avatarHash(avatarURL string) string {
	if avatarURL == "" {
		return ""
	}
	u, err := url.Parse(avatarURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	return strings.TrimSuffix(name, path.Ext(name))
}
