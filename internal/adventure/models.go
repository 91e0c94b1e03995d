package adventure

import (
	"encoding/json"
	"errors"
	"time"

	"backend-nearvibe/internal/shared/geo"
)

// Location is a GeoJSON point with an optional street address.
type Location struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
	Address     string     `json:"address,omitempty"`
}

// Point returns the location as lng/lat.
func (l Location) Point() geo.Point {
	return geo.Point{Lng: l.Coordinates[0], Lat: l.Coordinates[1]}
}

func pointLocation(p geo.Point, address string) Location {
	return Location{Type: "Point", Coordinates: [2]float64{p.Lng, p.Lat}, Address: address}
}

var errCoordinates = errors.New("coordinates must be [lng, lat]")

// UnmarshalJSON accepts either a GeoJSON object or a bare [lng, lat] array.
func (l *Location) UnmarshalJSON(b []byte) error {
	var pair []float64
	if err := json.Unmarshal(b, &pair); err == nil {
		if len(pair) != 2 {
			return errCoordinates
		}
		*l = Location{Type: "Point", Coordinates: [2]float64{pair[0], pair[1]}}
		return nil
	}

	var raw struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
		Address     string    `json:"address"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw.Coordinates) != 2 {
		return errCoordinates
	}
	if raw.Type == "" {
		raw.Type = "Point"
	}
	*l = Location{Type: raw.Type, Coordinates: [2]float64{raw.Coordinates[0], raw.Coordinates[1]}, Address: raw.Address}
	return nil
}

type Adventure struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    Location  `json:"location"`
	Duration    int       `json:"duration"`
	Category    []string  `json:"category"`
	Images      []string  `json:"images"`
	Rating      *float64  `json:"rating"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateInput is the submission body for a new adventure.
type CreateInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    Location `json:"location"`
	Duration    int      `json:"duration"`
	Category    []string `json:"category"`
	Images      []string `json:"images"`
}

type Review struct {
	ID          string    `json:"id"`
	AdventureID string    `json:"adventureId"`
	UserID      string    `json:"userId"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type Pagination struct {
	Total     int `json:"total"`
	Page      int `json:"page"`
	Size      int `json:"limit"`
	PageCount int `json:"pages"`
}

// Page is one slice of discovery results.
type Page struct {
	Adventures []Adventure `json:"adventures"`
	Pagination Pagination  `json:"pagination"`
}

// CreatedEvent is published on the adventures topic after a submission.
type CreatedEvent struct {
	Type      string    `json:"type"`
	Adventure Adventure `json:"adventure"`
}
