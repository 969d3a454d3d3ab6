package models

import "time"

// MarkPlant is the denormalized plant summary embedded in a mark
type MarkPlant struct {
	ID             string   `json:"_id"`
	ScientificName string   `json:"scientific_name"`
	CommonName     []string `json:"common_name"`
	Image          string   `json:"image"`
	Attributes     []string `json:"attributes"`
}

// Mark is a user bookmark on a plant
type Mark struct {
	ID    string    `json:"_id"`
	Plant MarkPlant `json:"plant"`
}

// MarkToggledEvent is published when a user adds or removes a bookmark
type MarkToggledEvent struct {
	UserID    string    `json:"user_id"`
	PlantID   string    `json:"plant_id"`
	MarkID    string    `json:"mark_id"`
	Marked    bool      `json:"marked"`
	Timestamp time.Time `json:"timestamp"`
}
