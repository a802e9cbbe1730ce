// Package auth issues and verifies the API's bearer tokens.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vvvdotnet/crusades/internal/app/domain/user"
	"github.com/vvvdotnet/crusades/internal/errors"
)

const (
	// Issuer is stamped on every token.
	Issuer = "crusades"
	// DefaultTTL matches the session length of the web client.
	DefaultTTL = 24 * time.Hour
)

// Claims are the JWT claims carried by API tokens.
type Claims struct {
	UserID          string `json:"userId"`
	DiscordID       string `json:"discord_id"`
	DiscordUsername string `json:"discord_username"`
	jwt.RegisteredClaims
}

// Manager signs tokens with a shared HS256 secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("jwt secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for u.
func (m *Manager) Issue(u user.User) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:          u.ID,
		DiscordID:       u.DiscordID,
		DiscordUsername: u.DiscordUsername,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns its claims. Failures are reported as
// INVALID_TOKEN service errors.
func (m *Manager) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, errors.InvalidToken(err)
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "missing user id")
	}
	return claims, nil
}
