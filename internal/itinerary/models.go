package itinerary

import (
	"time"

	"backend-nearvibe/internal/adventure"
)

type Itinerary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UserID      string    `json:"userId"`
	Date        time.Time `json:"date"`
	Items       []Item    `json:"items"`
	IsPublic    bool      `json:"isPublic"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Item is one stop of an itinerary. Adventure is filled on reads.
type Item struct {
	AdventureID string            `json:"adventureId"`
	StartTime   time.Time         `json:"startTime"`
	Notes       string            `json:"notes,omitempty"`
	Title       string            `json:"title,omitempty"`
	Adventure   *AdventureSummary `json:"adventure,omitempty"`
}

type AdventureSummary struct {
	ID       string             `json:"id"`
	Title    string             `json:"title"`
	Images   []string           `json:"images"`
	Category []string           `json:"category"`
	Location adventure.Location `json:"location"`
	Duration int                `json:"duration"`
}

type ItemInput struct {
	AdventureID string    `json:"adventureId"`
	StartTime   time.Time `json:"startTime"`
	Notes       string    `json:"notes"`
	Title       string    `json:"title"`
}

type CreateInput struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Date        time.Time   `json:"date"`
	Items       []ItemInput `json:"items"`
	IsPublic    bool        `json:"isPublic"`
}

// UpdateInput is a partial update. Nil fields are left untouched; a non-nil
// Items replaces the whole list.
type UpdateInput struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Date        *time.Time   `json:"date"`
	Items       *[]ItemInput `json:"items"`
	IsPublic    *bool        `json:"isPublic"`
}
