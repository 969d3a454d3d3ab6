package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/p-ddong/floratio-lib-client/internal/client"
	"github.com/p-ddong/floratio-lib-client/internal/models"
)

// PlantService wraps the catalog endpoints
type PlantService struct {
	client *client.Client
}

// NewPlantService creates a new plant service
func NewPlantService(c *client.Client) *PlantService {
	return &PlantService{client: c}
}

// List returns the full plant list
func (s *PlantService) List(ctx context.Context) ([]models.PlantListItem, error) {
	var plants []models.PlantListItem
	if err := s.client.Get(ctx, "plants/list", nil, "", &plants); err != nil {
		return nil, fmt.Errorf("failed to list plants: %w", err)
	}
	return plants, nil
}

// Paginate returns one server-side page of plants
func (s *PlantService) Paginate(ctx context.Context, params models.PaginationParams) (*models.PaginationResponse, error) {
	query, err := PaginationQuery(params)
	if err != nil {
		return nil, err
	}

	var resp models.PaginationResponse
	if err := s.client.Get(ctx, "plants/pagination", query, "", &resp); err != nil {
		return nil, fmt.Errorf("failed to paginate plants: %w", err)
	}
	if resp.Data == nil {
		resp.Data = []models.PlantListItem{}
	}
	return &resp, nil
}

// PaginationQuery encodes params, skipping zero values. Attributes are sent
// as a JSON array string.
func PaginationQuery(params models.PaginationParams) (url.Values, error) {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Search != "" {
		q.Set("search", params.Search)
	}
	if params.Family != "" {
		q.Set("family", params.Family)
	}
	if len(params.Attributes) > 0 {
		attrs, err := json.Marshal(params.Attributes)
		if err != nil {
			return nil, fmt.Errorf("failed to encode attributes: %w", err)
		}
		q.Set("attributes", string(attrs))
	}
	return q, nil
}

// Detail returns one plant by id
func (s *PlantService) Detail(ctx context.Context, id string) (*models.PlantDetail, error) {
	var plant models.PlantDetail
	if err := s.client.Get(ctx, "plants/detail/"+url.PathEscape(id), nil, "", &plant); err != nil {
		return nil, fmt.Errorf("failed to fetch plant %s: %w", id, err)
	}
	if plant.ID == "" {
		plant.ID = id
	}
	return &plant, nil
}

// Families returns the family reference list
func (s *PlantService) Families(ctx context.Context) ([]models.Family, error) {
	var families []models.Family
	if err := s.client.Get(ctx, "plants/families/list", nil, "", &families); err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	return families, nil
}

// Attributes returns the attribute reference list
func (s *PlantService) Attributes(ctx context.Context) ([]models.Attribute, error) {
	var attributes []models.Attribute
	if err := s.client.Get(ctx, "plants/attributes/list", nil, "", &attributes); err != nil {
		return nil, fmt.Errorf("failed to list attributes: %w", err)
	}
	return attributes, nil
}

// FindByNames returns the catalog records matching the given scientific names.
// The backend answers with either a bare array or a {"data": [...]} envelope.
func (s *PlantService) FindByNames(ctx context.Context, names []string) ([]models.PlantDetail, error) {
	if len(names) == 0 {
		return []models.PlantDetail{}, nil
	}

	var raw json.RawMessage
	err := s.client.SendJSON(ctx, http.MethodPost, "plants/find-by-names", "", map[string][]string{
		"scientific_names": names,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to find plants by names: %w", err)
	}

	plants := []models.PlantDetail{}
	if err := decodeJSON(raw, &plants); err == nil {
		return plants, nil
	}
	var envelope struct {
		Data []models.PlantDetail `json:"data"`
	}
	if err := decodeJSON(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse find-by-names response: %w", err)
	}
	if envelope.Data == nil {
		envelope.Data = []models.PlantDetail{}
	}
	return envelope.Data, nil
}
