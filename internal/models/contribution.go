package models

import (
	"time"
)

// ContributionStatus is the moderation state of a contribution
type ContributionStatus string

const (
	StatusPending  ContributionStatus = "pending"
	StatusApproved ContributionStatus = "approved"
	StatusRejected ContributionStatus = "rejected"
)

// ContributionType distinguishes new species from edits of existing ones
type ContributionType string

const (
	TypeCreate ContributionType = "create"
	TypeUpdate ContributionType = "update"
)

// ContributionUser is the submitter embedded in a contribution
type ContributionUser struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

// ContributionPlant is the plant snapshot carried by a contribution
type ContributionPlant struct {
	ScientificName     string           `json:"scientific_name"`
	CommonName         []string         `json:"common_name"`
	Description        string           `json:"description,omitempty"`
	Family             Family           `json:"family"`
	Attributes         []Attribute      `json:"attributes"`
	Images             []string         `json:"images"`
	SpeciesDescription []SpeciesSection `json:"species_description"`
}

// CoverImage returns the first image or an empty string
func (p ContributionPlant) CoverImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ContributionData wraps the plant snapshot and images added by the submission
type ContributionData struct {
	Plant     ContributionPlant `json:"plant"`
	NewImages []string          `json:"new_images"`
	PlantRef  string            `json:"plant_ref,omitempty"`
}

// Contribution is a moderated submission proposing a new species or an edit
type Contribution struct {
	ID        string             `json:"_id"`
	User      ContributionUser   `json:"c_user"`
	Message   string             `json:"c_message"`
	Status    ContributionStatus `json:"status"`
	Type      ContributionType   `json:"type"`
	Data      ContributionData   `json:"data"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// ContributionSubmittedEvent is published after the backend accepts a submission
type ContributionSubmittedEvent struct {
	ContributionID string           `json:"contribution_id"`
	UserID         string           `json:"user_id"`
	Username       string           `json:"username"`
	Type           ContributionType `json:"type"`
	ScientificName string           `json:"scientific_name"`
	DraftKey       string           `json:"draft_key,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}
