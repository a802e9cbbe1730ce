package user

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// User is a member who signed in through Discord.
type User struct {
	ID              string    `json:"id" db:"id"`
	DiscordID       string    `json:"discord_id" db:"discord_id"`
	DiscordUsername string    `json:"discord_username" db:"discord_username"`
	DiscordAvatar   string    `json:"discord_avatar,omitempty" db:"discord_avatar"`
	XUsername       string    `json:"x_username,omitempty" db:"x_username"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Public is the user shape returned to clients.
type Public struct {
	ID              string `json:"id"`
	DiscordID       string `json:"discord_id"`
	DiscordUsername string `json:"discord_username"`
	DiscordAvatar   string `json:"discord_avatar,omitempty"`
	AvatarURL       string `json:"avatar_url"`
	XUsername       string `json:"x_username,omitempty"`
	XConnected      bool   `json:"x_connected"`
}

func (u User) Public() Public {
	return Public{
		ID:              u.ID,
		DiscordID:       u.DiscordID,
		DiscordUsername: u.DiscordUsername,
		DiscordAvatar:   u.DiscordAvatar,
		AvatarURL:       u.AvatarURL(),
		XUsername:       u.XUsername,
		XConnected:      u.XUsername != "",
	}
}

// DefaultAvatarURL is the identicon shown for users without a Discord avatar.
const DefaultAvatarURL = "https://api.dicebear.com/7.x/identicon/svg?seed="

// AvatarURL returns the Discord CDN avatar, or an identicon seeded by the
// Discord id when the user has none.
func (u User) AvatarURL() string {
	if u.DiscordAvatar != "" {
		return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", u.DiscordID, u.DiscordAvatar)
	}
	seed := u.DiscordID
	if seed == "" {
		seed = "vvv"
	}
	return DefaultAvatarURL + url.QueryEscape(seed)
}

var xHandlePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// NormalizeXUsername trims whitespace and a leading "@". An empty result
// disconnects the X account.
func NormalizeXUsername(raw string) (string, error) {
	handle := strings.TrimPrefix(strings.TrimSpace(raw), "@")
	if handle == "" {
		return "", nil
	}
	if !xHandlePattern.MatchString(handle) {
		return "", fmt.Errorf("invalid X username %q: use 1-15 letters, digits or underscores", raw)
	}
	return handle, nil
}
