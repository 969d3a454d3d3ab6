package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/p-ddong/floratio-lib-client/internal/client"
	"github.com/p-ddong/floratio-lib-client/internal/models"
)

// MarkService wraps the bookmark endpoints
type MarkService struct {
	client *client.Client
}

// NewMarkService creates a new mark service
func NewMarkService(c *client.Client) *MarkService {
	return &MarkService{client: c}
}

// List returns the token owner's marks
func (s *MarkService) List(ctx context.Context, token string) ([]models.Mark, error) {
	var marks []models.Mark
	if err := s.client.Get(ctx, "marks/list/user", nil, token, &marks); err != nil {
		return nil, fmt.Errorf("failed to list marks: %w", err)
	}
	return marks, nil
}

// Create bookmarks a plant
func (s *MarkService) Create(ctx context.Context, plantID, token string) (*models.Mark, error) {
	var mark models.Mark
	err := s.client.SendJSON(ctx, http.MethodPost, "marks/create", token, map[string]string{"plantId": plantID}, &mark)
	if err != nil {
		return nil, fmt.Errorf("failed to create mark: %w", err)
	}
	if mark.Plant.ID == "" {
		mark.Plant.ID = plantID
	}
	return &mark, nil
}

// Delete removes a bookmark
func (s *MarkService) Delete(ctx context.Context, markID, token string) error {
	if err := s.client.Delete(ctx, "marks/delete/"+url.PathEscape(markID), token, nil); err != nil {
		return fmt.Errorf("failed to delete mark %s: %w", markID, err)
	}
	return nil
}
