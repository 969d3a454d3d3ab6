package models

import (
	"time"
)

// ContributionForm is the editable text content of a contribution
type ContributionForm struct {
	ScientificName string           `json:"scientific_name" validate:"required"`
	Family         string           `json:"family" validate:"required"`
	Description    string           `json:"description"`
	Message        string           `json:"message"`
	CommonNames    []string         `json:"common_names"`
	Attributes     []string         `json:"attributes"`
	Sections       []SpeciesSection `json:"sections"`
}

// Image kinds used when persisting a draft
const (
	ImageKindFile = "file"
	ImageKindURL  = "url"
)

// DraftImage is the persisted form of an Image. File bytes live in object
// storage under StorageKey.
type DraftImage struct {
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	StorageKey  string `json:"storage_key,omitempty"`
}

// Draft is a saved, unsubmitted contribution
type Draft struct {
	Key            string           `json:"key"`
	Owner          string           `json:"owner"`
	Mode           string           `json:"mode"`
	PlantRef       string           `json:"plant_ref,omitempty"`
	ContributionID string           `json:"contribution_id,omitempty"`
	Tab            string           `json:"tab"`
	Form           ContributionForm `json:"form"`
	Existing       []DraftImage     `json:"existing"`
	Images         []DraftImage     `json:"images"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// FileImages returns the draft images that carry bytes in object storage
func (d *Draft) FileImages() []DraftImage {
	var out []DraftImage
	for _, list := range [][]DraftImage{d.Existing, d.Images} {
		for _, img := range list {
			if img.Kind == ImageKindFile {
				out = append(out, img)
			}
		}
	}
	return out
}
