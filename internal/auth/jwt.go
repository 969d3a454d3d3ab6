// Package auth reads the claims of the backend's access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/p-ddong/floratio-lib-client/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of a backend access token. Subject carries the user id.
type Claims struct {
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Decode reads the claims of token. With an empty secret the signature is not
// checked, the backend stays the authority on that; expiry is always enforced.
func Decode(token, secret string) (*Claims, error) {
	claims := &Claims{}

	if secret == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		if claims.ExpiresAt != nil && !claims.ExpiresAt.After(time.Now()) {
			return nil, jwt.ErrTokenExpired
		}
		return claims, nil
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, jwt.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// User builds the session user from the claims. The token carries no email
// or timestamps.
func (c *Claims) User() models.User {
	return models.User{
		ID:       c.Subject,
		Username: c.Username,
		Role:     c.Role,
	}
}

// HasPermission reports whether the token grants perm
func (c *Claims) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// ExpiresIn is the remaining lifetime, zero when the token has no expiry
func (c *Claims) ExpiresIn() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	if d := time.Until(c.ExpiresAt.Time); d > 0 {
		return d
	}
	return 0
}
