package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ref is a reference to a backend document. The backend sends either a bare
// id string or an embedded object with _id and name.
type Ref struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

// UnmarshalJSON accepts "id", {"_id": "...", "name": "..."} and null.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Ref{ID: id}
		return nil
	}
	type plain Ref
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to decode reference: %w", err)
	}
	*r = Ref(p)
	return nil
}

// Family is a taxonomic family from the reference list
type Family = Ref

// Attribute is a plant characteristic tag from the reference list
type Attribute = Ref

// SpeciesDetail is one label/content pair inside a description section
type SpeciesDetail struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

// SpeciesSection is a named, ordered group of details
type SpeciesSection struct {
	Section string          `json:"section"`
	Details []SpeciesDetail `json:"details"`
}

// PredefinedSections is the fixed vocabulary offered by the description tab.
// Any other section name is a custom section.
var PredefinedSections = []string{
	"Classifications and Characteristics",
	"Biogeography",
	"Landscaping Features",
	"Plant Care and Propagation",
	"Foliar",
	"Floral (Angiosperm)",
	"Fruit, Seed and Spore",
	"Stem",
	"Root",
}

// IsPredefinedSection reports whether name belongs to PredefinedSections
func IsPredefinedSection(name string) bool {
	for _, s := range PredefinedSections {
		if s == name {
			return true
		}
	}
	return false
}

// PlantDetail is the full species record returned by plants/detail
type PlantDetail struct {
	ID                 string           `json:"_id,omitempty"`
	ScientificName     string           `json:"scientific_name"`
	CommonName         []string         `json:"common_name"`
	Description        string           `json:"description,omitempty"`
	Family             Family           `json:"family"`
	Attributes         []Attribute      `json:"attributes"`
	Images             []string         `json:"images"`
	SpeciesDescription []SpeciesSection `json:"species_description"`
}

// CoverImage returns the first image or an empty string
func (p PlantDetail) CoverImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// PlantListItem is the list projection used by catalog pages
type PlantListItem struct {
	ID             string   `json:"_id"`
	ScientificName string   `json:"scientific_name"`
	Family         string   `json:"family"`
	Image          string   `json:"image"`
	CommonName     []string `json:"common_name"`
	Attributes     []string `json:"attributes"`
}

// PrimaryCommonName returns the first common name or an empty string
func (p PlantListItem) PrimaryCommonName() string {
	if len(p.CommonName) == 0 {
		return ""
	}
	return p.CommonName[0]
}

// PaginationParams are the query parameters of plants/pagination
type PaginationParams struct {
	Page       int
	Limit      int
	Search     string
	Family     string
	Attributes []string
}

// PaginationResponse is the envelope returned by plants/pagination
type PaginationResponse struct {
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
	TotalItems int             `json:"totalItems"`
	Data       []PlantListItem `json:"data"`
}

// Prediction is one candidate returned by the identification service, with
// a confidence in percent
type Prediction struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// PlantPrediction joins a catalog plant with its prediction confidence
type PlantPrediction struct {
	Plant      PlantDetail `json:"plant"`
	Confidence float64     `json:"confidence"`
}
