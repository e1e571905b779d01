package models

import "time"

// Tournament представляет турнир.
type Tournament struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	StartDate time.Time `json:"start_date" db:"start_date"`
	LogoKey   *string   `json:"-" db:"logo_key"`
	Version   int       `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Заполняется только по запросу (includeGames), не мапится напрямую.
	Games []Game `json:"games,omitempty" db:"-"`
}
