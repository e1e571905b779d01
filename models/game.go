package models

import "time"

// Game is a single scheduled game that always belongs to one tournament.
type Game struct {
	ID           int       `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Time         time.Time `json:"time" db:"time"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Version      int       `json:"version" db:"version"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
