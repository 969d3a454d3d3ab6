package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		Username:    "alice",
		Role:        "user",
		Permissions: []string{"contribute:create", "mark:create"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "665f1c2b9a7e4d0012ab34cd",
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestDecodeUnverified(t *testing.T) {
	token := sign(t, "backend-secret", time.Now().Add(time.Hour))

	claims, err := Decode(token, "")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	u := claims.User()
	assert.Equal(t, "665f1c2b9a7e4d0012ab34cd", u.ID)
	assert.Equal(t, "user", u.Role)
	assert.Empty(t, u.Email)

	assert.True(t, claims.HasPermission("mark:create"))
	assert.False(t, claims.HasPermission("contribute:approve"))
	assert.InDelta(t, time.Hour.Seconds(), claims.ExpiresIn().Seconds(), 5)
}

func TestDecodeVerified(t *testing.T) {
	token := sign(t, "s3cret", time.Now().Add(time.Hour))

	_, err := Decode(token, "s3cret")
	require.NoError(t, err)

	_, err = Decode(token, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeRejects(t *testing.T) {
	expired := sign(t, "s3cret", time.Now().Add(-time.Minute))

	tests := []struct {
		name   string
		token  string
		secret string
		want   error
	}{
		{"expired unverified", expired, "", jwt.ErrTokenExpired},
		{"expired verified", expired, "s3cret", jwt.ErrTokenExpired},
		{"garbage", "not-a-token", "", ErrInvalidToken},
		{"empty", "", "", ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.token, tt.secret)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
