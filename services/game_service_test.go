package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/tournament-api/dto"
	"github.com/Dosada05/tournament-api/live"
	"github.com/Dosada05/tournament-api/patch"
	"github.com/Dosada05/tournament-api/repositories"
	"github.com/Dosada05/tournament-api/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func replaceOp(path string, value interface{}) patch.Operation {
	raw, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	return patch.Operation{Op: patch.OpReplace, Path: path, Value: raw}
}

func TestCreateThenGetReturnsEqualGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.games.CreateGame(ctx, dto.Game{
		Title:        "Final",
		Time:         dto.NewTimestamp(finalTime),
		TournamentID: f.tournament.ID,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, 1, created.Version)

	got, err := f.games.GetGame(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *got)

	f.events.AssertCalled(t, "Publish", f.tournament.ID, live.EventGameCreated, *created)
}

func TestCreateGameIgnoresClientIdentity(t *testing.T) {
	f := newFixture(t)
	created, err := f.games.CreateGame(context.Background(), dto.Game{
		ID: 500, Title: "Final", Time: dto.NewTimestamp(finalTime), TournamentID: f.tournament.ID, Version: 9,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created.ID)
	assert.Equal(t, 1, created.Version)
}

func TestCreateGameValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.games.CreateGame(ctx, dto.Game{Time: dto.NewTimestamp(finalTime), TournamentID: f.tournament.ID})
	require.ErrorIs(t, err, ErrValidationFailed)
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "title")

	_, err = f.games.CreateGame(ctx, dto.Game{Title: "Final", Time: dto.NewTimestamp(finalTime), TournamentID: 404})
	require.ErrorIs(t, err, ErrValidationFailed)
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "tournament 404 does not exist", verrs["tournamentId"])

	games, err := f.store.Games().List(ctx, repositories.ListGamesFilter{})
	require.NoError(t, err)
	assert.Empty(t, games)
	f.events.AssertNotCalled(t, "Publish", mock.Anything, live.EventGameCreated, mock.Anything)
}

func TestReplaceGameIDMismatchBeforeStoreAccess(t *testing.T) {
	svc := NewGameService(untouchableStore{t: t}, validation.New(), nil, discardLogger())

	err := svc.ReplaceGame(context.Background(), 1, dto.Game{ID: 2, Title: "Final", Time: dto.NewTimestamp(finalTime), TournamentID: 1})
	assert.ErrorIs(t, err, ErrIDMismatch)

	// even an invalid body reports the mismatch first
	err = svc.ReplaceGame(context.Background(), 1, dto.Game{ID: 3})
	assert.ErrorIs(t, err, ErrIDMismatch)
}

func TestReplaceGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.addGame(t, "Final")

	err := f.games.ReplaceGame(ctx, g.ID, dto.Game{
		ID: g.ID, Title: "Grand Final", Time: dto.NewTimestamp(finalTime.Add(time.Hour)), TournamentID: f.tournament.ID,
	})
	require.NoError(t, err)

	got, err := f.games.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grand Final", got.Title)
	assert.True(t, finalTime.Add(time.Hour).Equal(got.Time.Time))
	assert.Equal(t, 2, got.Version)
}

func TestReplaceGameStaleVersionConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.addGame(t, "Final")

	first := dto.Game{ID: g.ID, Title: "First", Time: dto.NewTimestamp(finalTime), TournamentID: f.tournament.ID, Version: 1}
	require.NoError(t, f.games.ReplaceGame(ctx, g.ID, first))

	second := first
	second.Title = "Second"
	assert.ErrorIs(t, f.games.ReplaceGame(ctx, g.ID, second), ErrConcurrencyConflict)

	got, err := f.games.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "First", got.Title)
}

func TestReplaceDeletedGameIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.addGame(t, "Final")
	require.NoError(t, f.games.DeleteGame(ctx, g.ID))

	withVersion := dto.Game{ID: g.ID, Title: "Final", Time: dto.NewTimestamp(finalTime), TournamentID: f.tournament.ID, Version: 1}
	assert.ErrorIs(t, f.games.ReplaceGame(ctx, g.ID, withVersion), ErrGameNotFound)

	withVersion.Version = 0
	assert.ErrorIs(t, f.games.ReplaceGame(ctx, g.ID, withVersion), ErrGameNotFound)
}

func TestPatchGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.addGame(t, "Final")

	require.NoError(t, f.games.PatchGame(ctx, g.ID, patch.Document{replaceOp("/title", "Championship")}))

	got, err := f.games.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Championship", got.Title)
	assert.True(t, finalTime.Equal(got.Time.Time))
	assert.Equal(t, 2, got.Version)
	f.events.AssertCalled(t, "Publish", f.tournament.ID, live.EventGameUpdated, *got)
}

func TestPatchGameFailureLeavesStoredGameUntouched(t *testing.T) {
	tests := []struct {
		name    string
		doc     patch.Document
		wantErr error
	}{
		{"validation", patch.Document{replaceOp("/title", "Championship"), replaceOp("/title", "")}, ErrValidationFailed},
		{"too long title", patch.Document{replaceOp("/title", strings.Repeat("x", 101))}, ErrValidationFailed},
		{"missing tournament", patch.Document{replaceOp("/tournamentId", 77)}, ErrValidationFailed},
		{"read-only path", patch.Document{replaceOp("/title", "X"), replaceOp("/id", 9)}, patch.ErrInvalidPath},
		{"bad type", patch.Document{replaceOp("/time", 12)}, patch.ErrTypeMismatch},
		{"null document", nil, patch.ErrEmptyDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			g := f.addGame(t, "Final")
			before, err := f.games.GetGame(ctx, g.ID)
			require.NoError(t, err)

			err = f.games.PatchGame(ctx, g.ID, tt.doc)
			assert.ErrorIs(t, err, tt.wantErr)

			after, err := f.games.GetGame(ctx, g.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestPatchGameMovesBetweenTournaments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.addGame(t, "Final")

	other, err := f.tournaments.CreateTournament(ctx, dto.Tournament{Title: "Autumn Open", StartDate: dto.NewTimestamp(springStart)})
	require.NoError(t, err)

	require.NoError(t, f.games.PatchGame(ctx, g.ID, patch.Document{replaceOp("/tournamentId", other.ID)}))

	got, err := f.games.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, got.TournamentID)
	f.events.AssertCalled(t, "Publish", other.ID, live.EventGameUpdated, *got)
	f.events.AssertCalled(t, "Publish", f.tournament.ID, live.EventGameDeleted, *got)
}

func TestPatchGameEmptyDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.addGame(t, "Final")

	require.NoError(t, f.games.PatchGame(ctx, g.ID, patch.Document{}))
	got, err := f.games.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Title)
	assert.Equal(t, 1, got.Version, "nothing to write")
	f.events.AssertNotCalled(t, "Publish", mock.Anything, live.EventGameUpdated, mock.Anything)

	assert.ErrorIs(t, f.games.PatchGame(ctx, 999, patch.Document{}), ErrGameNotFound)
}

func TestReplaceGameMovesBetweenTournaments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.addGame(t, "Final")

	other, err := f.tournaments.CreateTournament(ctx, dto.Tournament{Title: "Autumn Open", StartDate: dto.NewTimestamp(springStart)})
	require.NoError(t, err)

	require.NoError(t, f.games.ReplaceGame(ctx, g.ID, dto.Game{
		ID: g.ID, Title: "Final", Time: dto.NewTimestamp(finalTime), TournamentID: other.ID,
	}))

	got, err := f.games.GetGame(ctx, g.ID)
	require.NoError(t, err)
	f.events.AssertCalled(t, "Publish", other.ID, live.EventGameUpdated, *got)
	f.events.AssertCalled(t, "Publish", f.tournament.ID, live.EventGameDeleted, *got)
}

func TestPatchMissingGame(t *testing.T) {
	f := newFixture(t)
	err := f.games.PatchGame(context.Background(), 42, patch.Document{replaceOp("/title", "X")})
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestDeleteGameTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.addGame(t, "Final")

	require.NoError(t, f.games.DeleteGame(ctx, g.ID))
	assert.ErrorIs(t, f.games.DeleteGame(ctx, g.ID), ErrGameNotFound)
	assert.ErrorIs(t, f.games.DeleteGame(ctx, 999), ErrGameNotFound)

	_, err := f.games.GetGame(ctx, g.ID)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestListGamesSorting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, title := range []string{"semi", "Final", "quarter", "Bronze"} {
		f.addGame(t, title)
	}

	sorted, err := f.games.ListGames(ctx, ListGamesInput{SortBy: "title"})
	require.NoError(t, err)
	titles := make([]string, len(sorted))
	for i, g := range sorted {
		titles[i] = g.Title
	}
	assert.True(t, sort.StringsAreSorted(titles), "got %v", titles)

	original, err := f.games.ListGames(ctx, ListGamesInput{SortBy: "popularity"})
	require.NoError(t, err)
	require.Len(t, original, 4)
	assert.Equal(t, []string{"semi", "Final", "quarter", "Bronze"}, []string{
		original[0].Title, original[1].Title, original[2].Title, original[3].Title,
	})
}

func TestListGamesOfMissingTournament(t *testing.T) {
	f := newFixture(t)
	missing := 99
	_, err := f.games.ListGames(context.Background(), ListGamesInput{TournamentID: &missing})
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	games, err := f.games.ListGames(context.Background(), ListGamesInput{TournamentID: &f.tournament.ID})
	require.NoError(t, err)
	assert.NotNil(t, games)
	assert.Empty(t, games)
}

func TestSearchGames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addGame(t, "Final")
	f.addGame(t, "Semifinal")
	f.addGame(t, "Opening")

	found, err := f.games.SearchGames(ctx, "  FINAL ")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	none, err := f.games.SearchGames(ctx, "relegation")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.games.SearchGames(ctx, "   ")
	assert.ErrorIs(t, err, ErrSearchTermRequired)
}

func TestCreatePatchExampleFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var input dto.Game
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Final","time":"2024-06-01T18:00","tournamentId":1}`), &input))

	created, err := f.games.CreateGame(ctx, input)
	require.NoError(t, err)

	got, err := f.games.GetGame(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Title)
	assert.True(t, finalTime.Equal(got.Time.Time))

	var doc patch.Document
	require.NoError(t, json.Unmarshal([]byte(`[{"op":"replace","path":"/title","value":"Championship"}]`), &doc))
	require.NoError(t, f.games.PatchGame(ctx, created.ID, doc))

	got, err = f.games.GetGame(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Championship", got.Title)
}
