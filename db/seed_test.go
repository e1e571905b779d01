package db

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/tournament-api/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedTournamentsAreInTheFuture(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	for _, tournament := range SeedTournaments(now) {
		assert.True(t, tournament.StartDate.After(now), tournament.Title)
		for _, g := range tournament.Games {
			assert.False(t, g.Time.Before(tournament.StartDate), g.Title)
		}
	}
}

func TestSeedIfEmpty(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()

	seeded, err := SeedIfEmpty(ctx, store, discardLogger())
	require.NoError(t, err)
	assert.True(t, seeded)

	count, err := store.Tournaments().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	games, err := store.Games().List(ctx, repositories.ListGamesFilter{})
	require.NoError(t, err)
	assert.Len(t, games, 6)

	seeded, err = SeedIfEmpty(ctx, store, discardLogger())
	require.NoError(t, err)
	assert.False(t, seeded, "a non-empty store is left alone")
}
