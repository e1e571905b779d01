package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/tournament-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemory(t *testing.T) (*MemoryStore, *models.Tournament) {
	t.Helper()
	store := NewMemoryStore()
	ctx := context.Background()

	tournament := &models.Tournament{Title: "Spring Cup", StartDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.Tournaments().Create(ctx, tournament))
	return store, tournament
}

func TestMemoryGameRequiresTournament(t *testing.T) {
	store, tournament := seedMemory(t)
	ctx := context.Background()

	err := store.Games().Create(ctx, &models.Game{Title: "Final", TournamentID: tournament.ID + 1})
	assert.ErrorIs(t, err, ErrGameInvalidTournament)

	g := &models.Game{Title: "Final", TournamentID: tournament.ID}
	require.NoError(t, store.Games().Create(ctx, g))
	assert.Equal(t, 1, g.ID)
	assert.Equal(t, 1, g.Version)
	assert.False(t, g.CreatedAt.IsZero())

	g.TournamentID = 42
	assert.ErrorIs(t, store.Games().Update(ctx, g), ErrGameInvalidTournament)
}

func TestMemoryVersionRules(t *testing.T) {
	store, tournament := seedMemory(t)
	ctx := context.Background()
	games := store.Games()

	g := &models.Game{Title: "Final", TournamentID: tournament.ID}
	require.NoError(t, games.Create(ctx, g))

	stale := *g
	g.Title = "Grand Final"
	require.NoError(t, games.Update(ctx, g))
	assert.Equal(t, 2, g.Version)

	stale.Title = "Lost update"
	assert.ErrorIs(t, games.Update(ctx, &stale), ErrGameVersionConflict)

	blind := &models.Game{ID: g.ID, Title: "Blind", TournamentID: tournament.ID}
	require.NoError(t, games.Update(ctx, blind), "version 0 skips the check")
	assert.Equal(t, 3, blind.Version)

	assert.ErrorIs(t, games.Update(ctx, &models.Game{ID: 99, TournamentID: tournament.ID}), ErrGameNotFound)
	assert.ErrorIs(t, games.Update(ctx, &models.Game{ID: 99, TournamentID: tournament.ID, Version: 1}), ErrGameVersionConflict)
}

func TestMemoryTournamentInUse(t *testing.T) {
	store, tournament := seedMemory(t)
	ctx := context.Background()
	require.NoError(t, store.Games().Create(ctx, &models.Game{Title: "Final", TournamentID: tournament.ID}))

	assert.ErrorIs(t, store.Tournaments().Delete(ctx, tournament.ID), ErrTournamentInUse)

	n, err := store.Games().DeleteByTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, store.Tournaments().Delete(ctx, tournament.ID))
	assert.ErrorIs(t, store.Tournaments().Delete(ctx, tournament.ID), ErrTournamentNotFound)
}

func TestMemoryListSortsBytewiseWithIDTiebreak(t *testing.T) {
	store, tournament := seedMemory(t)
	ctx := context.Background()
	for _, title := range []string{"beta", "Alpha", "alpha", "Alpha"} {
		require.NoError(t, store.Games().Create(ctx, &models.Game{Title: title, TournamentID: tournament.ID}))
	}

	byTitle, err := store.Games().List(ctx, ListGamesFilter{SortBy: GameSortTitle})
	require.NoError(t, err)
	var titles []string
	var ids []int
	for _, g := range byTitle {
		titles = append(titles, g.Title)
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{"Alpha", "Alpha", "alpha", "beta"}, titles)
	assert.Equal(t, []int{2, 4, 3, 1}, ids)

	unsorted, err := store.Games().List(ctx, ListGamesFilter{SortBy: "nope"})
	require.NoError(t, err)
	ids = ids[:0]
	for _, g := range unsorted {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, ids)

	found, err := store.Games().List(ctx, ListGamesFilter{Title: "ALP"})
	require.NoError(t, err)
	assert.Len(t, found, 3)
}

func TestMemoryListFiltersByTournament(t *testing.T) {
	store, first := seedMemory(t)
	ctx := context.Background()
	second := &models.Tournament{Title: "Autumn Open"}
	require.NoError(t, store.Tournaments().Create(ctx, second))
	require.NoError(t, store.Games().Create(ctx, &models.Game{Title: "A", TournamentID: first.ID}))
	require.NoError(t, store.Games().Create(ctx, &models.Game{Title: "B", TournamentID: second.ID}))

	games, err := store.Games().List(ctx, ListGamesFilter{TournamentID: &second.ID})
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "B", games[0].Title)

	games, err = store.Games().List(ctx, ListGamesFilter{TournamentIDs: []int{first.ID, second.ID}})
	require.NoError(t, err)
	assert.Len(t, games, 2)
}

func TestMemoryUnitOfWorkRollbackDiscards(t *testing.T) {
	store, tournament := seedMemory(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := WithinUnitOfWork(ctx, store, func(uow UnitOfWork) error {
		if err := uow.Games().Create(ctx, &models.Game{Title: "Final", TournamentID: tournament.ID}); err != nil {
			return err
		}
		exists, _ := uow.Games().Exists(ctx, 1)
		assert.True(t, exists, "writes are visible inside the unit of work")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := store.Games().Exists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryUnitOfWorkCompletePublishes(t *testing.T) {
	store, tournament := seedMemory(t)
	ctx := context.Background()

	err := WithinUnitOfWork(ctx, store, func(uow UnitOfWork) error {
		if _, err := uow.Games().DeleteByTournament(ctx, tournament.ID); err != nil {
			return err
		}
		return uow.Tournaments().Delete(ctx, tournament.ID)
	})
	require.NoError(t, err)

	count, err := store.Tournaments().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryUnitOfWorkRollbackAfterComplete(t *testing.T) {
	store, _ := seedMemory(t)
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Complete())
	require.NoError(t, uow.Rollback())

	// the store must accept the next unit of work
	next, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, next.Rollback())
}

func TestMemoryLogoKeyBumpsVersion(t *testing.T) {
	store, tournament := seedMemory(t)
	ctx := context.Background()
	key := "tournaments/1/logo.png"

	require.NoError(t, store.Tournaments().UpdateLogoKey(ctx, tournament.ID, &key))
	got, err := store.Tournaments().GetByID(ctx, tournament.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LogoKey)
	assert.Equal(t, key, *got.LogoKey)
	assert.Equal(t, 2, got.Version)

	assert.ErrorIs(t, store.Tournaments().UpdateLogoKey(ctx, 77, nil), ErrTournamentNotFound)
}
