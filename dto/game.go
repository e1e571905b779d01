package dto

import "github.com/Dosada05/tournament-api/models"

// Game is the wire form of a game.
type Game struct {
	ID           int       `json:"id"`
	Title        string    `json:"title" validate:"required,max=100"`
	Time         Timestamp `json:"time" validate:"required"`
	TournamentID int       `json:"tournamentId" validate:"required,gt=0"`
	Version      int       `json:"version,omitempty" validate:"gte=0"`
}

// GameUpdate holds the fields a PATCH may change.
type GameUpdate struct {
	Title        string    `json:"title" validate:"required,max=100"`
	Time         Timestamp `json:"time" validate:"required"`
	TournamentID int       `json:"tournamentId" validate:"required,gt=0"`
}

// GameDraft is what a game nested in a new tournament must carry; the
// tournament reference is filled in once the tournament exists.
type GameDraft struct {
	Title string    `json:"title" validate:"required,max=100"`
	Time  Timestamp `json:"time" validate:"required"`
}

func (d Game) Draft() GameDraft {
	return GameDraft{Title: d.Title, Time: d.Time}
}

func GameFromModel(g *models.Game) Game {
	return Game{
		ID:           g.ID,
		Title:        g.Title,
		Time:         NewTimestamp(g.Time),
		TournamentID: g.TournamentID,
		Version:      g.Version,
	}
}

func GamesFromModels(games []models.Game) []Game {
	result := make([]Game, len(games))
	for i := range games {
		result[i] = GameFromModel(&games[i])
	}
	return result
}

func (d Game) ToModel() *models.Game {
	return &models.Game{
		ID:           d.ID,
		Title:        d.Title,
		Time:         d.Time.UTC(),
		TournamentID: d.TournamentID,
		Version:      d.Version,
	}
}

func GameUpdateFromModel(g *models.Game) GameUpdate {
	return GameUpdate{
		Title:        g.Title,
		Time:         NewTimestamp(g.Time),
		TournamentID: g.TournamentID,
	}
}

// ApplyTo copies the update view back onto g. Identity and version stay untouched.
func (u GameUpdate) ApplyTo(g *models.Game) {
	g.Title = u.Title
	g.Time = u.Time.UTC()
	g.TournamentID = u.TournamentID
}
