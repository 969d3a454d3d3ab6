package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/client"
	"github.com/p-ddong/floratio-lib-client/internal/models"
	"github.com/p-ddong/floratio-lib-client/internal/payload"
)

// ContributionService wraps the contribution endpoints. All calls need a bearer.
type ContributionService struct {
	client *client.Client
}

// NewContributionService creates a new contribution service
func NewContributionService(c *client.Client) *ContributionService {
	return &ContributionService{client: c}
}

// List returns the contributions visible to the token's user
func (s *ContributionService) List(ctx context.Context, token string) ([]models.Contribution, error) {
	var list []models.Contribution
	if err := s.client.Get(ctx, "contributes/list", nil, token, &list); err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	return list, nil
}

// Detail returns one contribution
func (s *ContributionService) Detail(ctx context.Context, id, token string) (*models.Contribution, error) {
	var c models.Contribution
	if err := s.client.Get(ctx, "contributes/detail/"+url.PathEscape(id), nil, token, &c); err != nil {
		return nil, fmt.Errorf("failed to fetch contribution %s: %w", id, err)
	}
	return &c, nil
}

// Create submits a new contribution built by payload.BuildCreate
func (s *ContributionService) Create(ctx context.Context, body *payload.Body, token string) (*models.Contribution, error) {
	var c models.Contribution
	if err := s.client.SendMultipart(ctx, http.MethodPost, "contributes/create", token, body.ContentType, body.Bytes, &c); err != nil {
		return nil, fmt.Errorf("failed to create contribution: %w", err)
	}
	log.Info().Str("contribution_id", c.ID).Msg("Contribution created")
	return &c, nil
}

// Update submits an edit of contribution id built by payload.BuildUpdate
func (s *ContributionService) Update(ctx context.Context, id string, body *payload.Body, token string) (*models.Contribution, error) {
	var c models.Contribution
	if err := s.client.SendMultipart(ctx, http.MethodPatch, "contributes/update/"+url.PathEscape(id), token, body.ContentType, body.Bytes, &c); err != nil {
		return nil, fmt.Errorf("failed to update contribution %s: %w", id, err)
	}
	if c.ID == "" {
		c.ID = id
	}
	log.Info().Str("contribution_id", c.ID).Msg("Contribution updated")
	return &c, nil
}
