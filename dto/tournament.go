package dto

import (
	"encoding/json"

	"github.com/Dosada05/tournament-api/models"
)

// Tournament is the wire form of a tournament. Games is only populated when
// the caller asked for them.
type Tournament struct {
	ID        int       `json:"id"`
	Title     string    `json:"title" validate:"required,max=100"`
	StartDate Timestamp `json:"startDate" validate:"required"`
	LogoURL   *string   `json:"logoUrl,omitempty"`
	Version   int       `json:"version,omitempty" validate:"gte=0"`
	Games     []Game    `json:"games,omitempty" validate:"-"`
}

// MarshalJSON omits games only when they were not loaded. A loaded but
// empty list is written as [].
func (d Tournament) MarshalJSON() ([]byte, error) {
	type plain Tournament
	out := struct {
		plain
		Games *[]Game `json:"games,omitempty"`
	}{plain: plain(d)}
	if d.Games != nil {
		out.Games = &d.Games
	}
	return json.Marshal(out)
}

// TournamentUpdate holds the fields a PATCH may change.
type TournamentUpdate struct {
	Title     string    `json:"title" validate:"required,max=100"`
	StartDate Timestamp `json:"startDate" validate:"required"`
}

// URLResolver turns a stored logo key into a public URL.
type URLResolver func(key string) string

func TournamentFromModel(t *models.Tournament, logoURL URLResolver) Tournament {
	d := Tournament{
		ID:        t.ID,
		Title:     t.Title,
		StartDate: NewTimestamp(t.StartDate),
		Version:   t.Version,
	}
	if t.LogoKey != nil && *t.LogoKey != "" && logoURL != nil {
		if url := logoURL(*t.LogoKey); url != "" {
			d.LogoURL = &url
		}
	}
	if t.Games != nil {
		d.Games = GamesFromModels(t.Games)
	}
	return d
}

func TournamentsFromModels(tournaments []models.Tournament, logoURL URLResolver) []Tournament {
	result := make([]Tournament, len(tournaments))
	for i := range tournaments {
		result[i] = TournamentFromModel(&tournaments[i], logoURL)
	}
	return result
}

// ToModel maps scalar fields and nested games. The logo key is never taken
// from the wire.
func (d Tournament) ToModel() *models.Tournament {
	t := &models.Tournament{
		ID:        d.ID,
		Title:     d.Title,
		StartDate: d.StartDate.UTC(),
		Version:   d.Version,
	}
	if len(d.Games) > 0 {
		t.Games = make([]models.Game, len(d.Games))
		for i, g := range d.Games {
			t.Games[i] = *g.ToModel()
		}
	}
	return t
}

func TournamentUpdateFromModel(t *models.Tournament) TournamentUpdate {
	return TournamentUpdate{
		Title:     t.Title,
		StartDate: NewTimestamp(t.StartDate),
	}
}

func (u TournamentUpdate) ApplyTo(t *models.Tournament) {
	t.Title = u.Title
	t.StartDate = u.StartDate.UTC()
}
