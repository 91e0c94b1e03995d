package journal

import "time"

// Log is a user's record of having done an adventure.
type Log struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	AdventureID string    `json:"adventureId"`
	Notes       string    `json:"notes"`
	Photos      []string  `json:"photos"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CreateInput struct {
	AdventureID string   `json:"adventureId"`
	Notes       string   `json:"notes"`
	Photos      []string `json:"photos"`
}
