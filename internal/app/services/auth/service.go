// Package auth signs members in through Discord, directly or via a Supabase
// session, and manages their profile.
package auth

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/vvvdotnet/crusades/infra/supabase"
	"github.com/vvvdotnet/crusades/internal/app/core/service"
	"github.com/vvvdotnet/crusades/internal/app/domain/user"
	"github.com/vvvdotnet/crusades/internal/app/storage"
	"github.com/vvvdotnet/crusades/internal/discord"
	"github.com/vvvdotnet/crusades/internal/errors"
	"github.com/vvvdotnet/crusades/internal/logging"
)

// DiscordAPI is the subset of the Discord client used for sign-in.
type DiscordAPI interface {
	Exchange(ctx context.Context, code string) (*discord.Token, error)
	CurrentUser(ctx context.Context, accessToken string) (*discord.Profile, error)
}

// SupabaseAuth resolves Supabase access tokens.
type SupabaseAuth interface {
	GetUser(ctx context.Context, accessToken string) (*supabase.User, error)
}

// TokenIssuer signs API tokens.
type TokenIssuer interface {
	Issue(u user.User) (string, error)
}

// Session is returned after a successful sign-in.
type Session struct {
	Token string      `json:"token"`
	User  user.Public `json:"user"`
}

// Service manages sign-in and profiles.
type Service struct {
	users    storage.UserStore
	tokens   TokenIssuer
	discord  DiscordAPI
	supabase SupabaseAuth
	log      *logging.Logger
	now      func() time.Time
}

func New(users storage.UserStore, tokens TokenIssuer, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("auth")
	}
	return &Service{users: users, tokens: tokens, log: log, now: time.Now}
}

// AttachDiscord enables LoginWithDiscord.
func (s *Service) AttachDiscord(d DiscordAPI) {
	s.discord = d
}

// AttachSupabase enables LoginWithSupabase.
func (s *Service) AttachSupabase(sb SupabaseAuth) {
	s.supabase = sb
}

// LoginWithDiscord completes the OAuth2 flow for code.
func (s *Service) LoginWithDiscord(ctx context.Context, code string) (Session, error) {
	if code == "" {
		return Session{}, errors.BadRequest("No authorization code provided")
	}
	if s.discord == nil {
		return Session{}, errors.Internal("Discord sign-in is not configured", nil)
	}

	tok, err := s.discord.Exchange(ctx, code)
	if err != nil {
		s.log.LogSecurityEvent(ctx, "discord_exchange_failed", map[string]interface{}{"error": err.Error()})
		return Session{}, errors.Upstream("Authentication failed", err)
	}
	profile, err := s.discord.CurrentUser(ctx, tok.AccessToken)
	if err != nil {
		return Session{}, errors.Upstream("Authentication failed", err)
	}

	return s.signIn(ctx, profile.ID, profile.Username, profile.Avatar)
}

// LoginWithSupabase exchanges a Supabase session whose identity provider is
// Discord for an API token.
func (s *Service) LoginWithSupabase(ctx context.Context, accessToken string) (Session, error) {
	if accessToken == "" {
		return Session{}, errors.BadRequest("access_token is required")
	}
	if s.supabase == nil {
		return Session{}, errors.Internal("Supabase sign-in is not configured", nil)
	}

	sbUser, err := s.supabase.GetUser(ctx, accessToken)
	if err != nil {
		if supabase.IsUnauthorized(err) {
			s.log.LogSecurityEvent(ctx, "supabase_token_rejected", nil)
			return Session{}, errors.Unauthorized("Invalid Supabase session")
		}
		return Session{}, errors.Upstream("Authentication failed", err)
	}
	profile, ok := sbUser.DiscordProfile()
	if !ok {
		return Session{}, errors.BadRequest("Supabase account is not linked to Discord")
	}

	return s.signIn(ctx, profile.ID, profile.Username, profile.Avatar)
}

func (s *Service) signIn(ctx context.Context, discordID, username, avatar string) (Session, error) {
	u, err := s.upsert(ctx, discordID, username, avatar)
	if err != nil {
		return Session{}, errors.Internal("Authentication failed", err)
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, errors.Internal("Authentication failed", err)
	}
	s.log.WithContext(logging.WithUserID(ctx, u.ID)).Info("user signed in")
	return Session{Token: token, User: u.Public()}, nil
}

// upsert creates the member on first sign-in and refreshes the Discord name
// and avatar afterwards.
func (s *Service) upsert(ctx context.Context, discordID, username, avatar string) (user.User, error) {
	existing, err := s.users.GetUserByDiscordID(ctx, discordID)
	if stderrors.Is(err, storage.ErrNotFound) {
		now := s.now().UTC()
		created, cerr := s.users.CreateUser(ctx, user.User{
			DiscordID:       discordID,
			DiscordUsername: username,
			DiscordAvatar:   avatar,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if !stderrors.Is(cerr, storage.ErrConflict) {
			return created, cerr
		}
		// Lost a race with a concurrent first sign-in.
		existing, err = s.users.GetUserByDiscordID(ctx, discordID)
	}
	if err != nil {
		return user.User{}, err
	}

	if existing.DiscordUsername == username && existing.DiscordAvatar == avatar {
		return existing, nil
	}
	existing.DiscordUsername = username
	existing.DiscordAvatar = avatar
	return s.users.UpdateUser(ctx, existing)
}

// Me returns the member's public profile.
func (s *Service) Me(ctx context.Context, userID string) (user.Public, error) {
	u, err := s.users.GetUser(ctx, userID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return user.Public{}, errors.NotFound("User not found")
	}
	if err != nil {
		return user.Public{}, errors.Internal("Failed to load user", err)
	}
	return u.Public(), nil
}

// UpdateProfile connects, changes or, with an empty handle, disconnects the
// member's X account.
func (s *Service) UpdateProfile(ctx context.Context, userID, xUsername string) (user.Public, error) {
	handle, err := user.NormalizeXUsername(xUsername)
	if err != nil {
		return user.Public{}, errors.Validation("Validation failed", map[string]string{"x_username": err.Error()})
	}

	u, err := s.users.GetUser(ctx, userID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return user.Public{}, errors.NotFound("User not found")
	}
	if err != nil {
		return user.Public{}, errors.Internal("Failed to load user", err)
	}

	u.XUsername = handle
	updated, err := s.users.UpdateUser(ctx, u)
	if err != nil {
		return user.Public{}, errors.Internal("Failed to update user", err)
	}
	return updated.Public(), nil
}

// Descriptor advertises the service.
func (s *Service) Descriptor() service.Descriptor {
	d := service.Descriptor{Name: "auth", Domain: "identity", Layer: service.LayerAPI, Capabilities: []string{"profile"}}
	if s.discord != nil {
		d = d.WithCapabilities("discord-oauth")
	}
	if s.supabase != nil {
		d = d.WithCapabilities("supabase-session")
	}
	return d
}
