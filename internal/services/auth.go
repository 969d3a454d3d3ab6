package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/client"
	"github.com/p-ddong/floratio-lib-client/internal/models"
)

// ErrEmptyToken is returned when the backend accepts a login but sends no token
var ErrEmptyToken = errors.New("backend returned an empty access token")

// AuthService wraps the backend auth endpoints
type AuthService struct {
	client *client.Client
}

// NewAuthService creates a new auth service
func NewAuthService(c *client.Client) *AuthService {
	return &AuthService{client: c}
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

// Login exchanges credentials for a bearer token
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	err := s.client.SendJSON(ctx, http.MethodPost, "auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	if resp.AccessToken == "" {
		return "", ErrEmptyToken
	}

	log.Info().Str("username", username).Msg("User logged in")
	return resp.AccessToken, nil
}

// Signup registers a new account. The backend sends a verification email.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) error {
	if err := s.client.SendJSON(ctx, http.MethodPost, "auth/register", "", req, nil); err != nil {
		return fmt.Errorf("signup failed: %w", err)
	}
	log.Info().Str("username", req.Username).Msg("User registered")
	return nil
}

// VerifyEmail confirms an account with the token from the verification email
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("verification token is required")
	}
	if err := s.client.Get(ctx, "auth/verify-email", url.Values{"token": {token}}, "", nil); err != nil {
		return fmt.Errorf("email verification failed: %w", err)
	}
	return nil
}

// Profile returns the user owning the bearer token
func (s *AuthService) Profile(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := s.client.Get(ctx, "auth/profile", nil, token, &user); err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return &user, nil
}
