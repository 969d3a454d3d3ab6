// Package store holds the per-session client state: four slices updated only
// through Reduce.
package store

import (
	"github.com/p-ddong/floratio-lib-client/internal/models"
)

// AuthState holds the bearer token and the decoded user
type AuthState struct {
	Token string       `json:"token"`
	User  *models.User `json:"user,omitempty"`
}

// PlantState holds catalog lists and the reference data
type PlantState struct {
	Plants            []models.PlantListItem `json:"plants"`
	Loading           bool                   `json:"loading"`
	Families          []models.Family        `json:"families"`
	FamiliesLoading   bool                   `json:"families_loading"`
	Attributes        []models.Attribute     `json:"attributes"`
	AttributesLoading bool                   `json:"attributes_loading"`
}

// ContributionState holds the user's contributions
type ContributionState struct {
	Contributions []models.Contribution `json:"contributions"`
	Loading       bool                  `json:"loading"`
}

// MarkState holds the user's bookmarks
type MarkState struct {
	Marks   []models.Mark `json:"marks"`
	Loading bool          `json:"loading"`
}

// State is the whole client state of one session
type State struct {
	Auth         AuthState         `json:"auth"`
	Plant        PlantState        `json:"plant"`
	Contribution ContributionState `json:"contribution"`
	Mark         MarkState         `json:"mark"`
}

// LoggedIn reports whether a token is present
func (s State) LoggedIn() bool {
	return s.Auth.Token != ""
}

// MarkForPlant returns the mark on plantID, if any
func (s State) MarkForPlant(plantID string) (models.Mark, bool) {
	for _, m := range s.Mark.Marks {
		if m.Plant.ID == plantID {
			return m, true
		}
	}
	return models.Mark{}, false
}

// FamilyName resolves a family id against the reference list
func (s State) FamilyName(id string) string {
	for _, f := range s.Plant.Families {
		if f.ID == id {
			return f.Name
		}
	}
	return ""
}

// AttributeName resolves an attribute id against the reference list
func (s State) AttributeName(id string) string {
	for _, a := range s.Plant.Attributes {
		if a.ID == id {
			return a.Name
		}
	}
	return ""
}
