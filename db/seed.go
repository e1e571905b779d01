package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-api/models"
	"github.com/Dosada05/tournament-api/repositories"
)

// SeedTournaments is the baseline data inserted into an empty store.
func SeedTournaments(now time.Time) []models.Tournament {
	base := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)

	return []models.Tournament{
		{
			Title:     "Spring Cup",
			StartDate: base,
			Games: []models.Game{
				{Title: "Quarterfinal A", Time: base.Add(10 * time.Hour)},
				{Title: "Quarterfinal B", Time: base.Add(13 * time.Hour)},
				{Title: "Semifinal", Time: base.AddDate(0, 0, 1).Add(12 * time.Hour)},
				{Title: "Final", Time: base.AddDate(0, 0, 2).Add(18 * time.Hour)},
			},
		},
		{
			Title:     "Autumn Open",
			StartDate: base.AddDate(0, 6, 0),
			Games: []models.Game{
				{Title: "Opening Match", Time: base.AddDate(0, 6, 0).Add(15 * time.Hour)},
				{Title: "Final", Time: base.AddDate(0, 6, 3).Add(19 * time.Hour)},
			},
		},
	}
}

// SeedIfEmpty inserts SeedTournaments in one unit of work when the store has
// no tournaments. It reports whether anything was inserted.
func SeedIfEmpty(ctx context.Context, store repositories.Store, logger *slog.Logger) (bool, error) {
	count, err := store.Tournaments().Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		logger.Info("store already contains data, skipping seed", slog.Int("tournaments", count))
		return false, nil
	}

	seed := SeedTournaments(time.Now())
	games := 0
	err = repositories.WithinUnitOfWork(ctx, store, func(uow repositories.UnitOfWork) error {
		for i := range seed {
			t := seed[i]
			nested := t.Games
			t.Games = nil
			if err := uow.Tournaments().Create(ctx, &t); err != nil {
				return fmt.Errorf("failed to seed tournament %q: %w", t.Title, err)
			}
			for j := range nested {
				g := nested[j]
				g.TournamentID = t.ID
				if err := uow.Games().Create(ctx, &g); err != nil {
					return fmt.Errorf("failed to seed game %q: %w", g.Title, err)
				}
				games++
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	logger.Info("seed data inserted", slog.Int("tournaments", len(seed)), slog.Int("games", games))
	return true, nil
}
