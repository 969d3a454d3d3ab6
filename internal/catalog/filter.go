// Package catalog filters and paginates plant and contribution lists.
package catalog

import (
	"strings"

	"github.com/p-ddong/floratio-lib-client/internal/models"
)

// Filter selects plants. Zero fields match everything.
type Filter struct {
	Search    string
	Family    string
	Attribute string
}

// FilterPlants keeps plants whose scientific name or first common name
// contains Search (case-insensitive), whose family equals Family and whose
// attributes include Attribute.
func FilterPlants(plants []models.PlantListItem, f Filter) []models.PlantListItem {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.PlantListItem, 0, len(plants))
	for _, p := range plants {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.ScientificName), search) &&
			!strings.Contains(strings.ToLower(p.PrimaryCommonName()), search) {
			continue
		}
		if f.Family != "" && p.Family != f.Family {
			continue
		}
		if f.Attribute != "" && !contains(p.Attributes, f.Attribute) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ContributionFilter selects contributions. Zero fields match everything.
type ContributionFilter struct {
	Status models.ContributionStatus
	Type   models.ContributionType
	Query  string
}

// FilterContributions keeps contributions matching status and type exactly
// and whose scientific name or submitter contains Query (case-insensitive)
func FilterContributions(list []models.Contribution, f ContributionFilter) []models.Contribution {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]models.Contribution, 0, len(list))
	for _, c := range list {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Type != "" && c.Type != f.Type {
			continue
		}
		if query != "" {
			haystack := strings.ToLower(c.Data.Plant.ScientificName + " " + c.User.Username)
			if !strings.Contains(haystack, query) {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
