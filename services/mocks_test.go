package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Dosada05/tournament-api/models"
	"github.com/Dosada05/tournament-api/repositories"
	"github.com/Dosada05/tournament-api/storage"
	"github.com/Dosada05/tournament-api/validation"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(tournamentID int, eventType string, payload interface{}) {
	m.Called(tournamentID, eventType, payload)
}

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	args := m.Called(ctx, key, contentType, reader)
	result, _ := args.Get(0).(*storage.UploadResult)
	return result, args.Error(1)
}

func (m *mockUploader) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockUploader) GetPublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

// untouchableStore fails the test on any access.
type untouchableStore struct {
	t *testing.T
}

func (s untouchableStore) fail() {
	s.t.Helper()
	s.t.Fatal("store must not be accessed")
}

func (s untouchableStore) Tournaments() repositories.TournamentRepository {
	s.fail()
	return nil
}

func (s untouchableStore) Games() repositories.GameRepository {
	s.fail()
	return nil
}

func (s untouchableStore) Begin(context.Context) (repositories.UnitOfWork, error) {
	s.fail()
	return nil, nil
}

func (s untouchableStore) Ping(context.Context) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	springStart = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	finalTime   = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
)

type fixture struct {
	store       *repositories.MemoryStore
	events      *mockPublisher
	games       GameService
	tournaments TournamentService
	tournament  *models.Tournament
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	events := new(mockPublisher)
	events.On("Publish", mock.Anything, mock.Anything, mock.Anything).Maybe()

	tournament := &models.Tournament{Title: "Spring Cup", StartDate: springStart}
	require.NoError(t, store.Tournaments().Create(context.Background(), tournament))

	v := validation.New()
	return &fixture{
		store:       store,
		events:      events,
		games:       NewGameService(store, v, events, discardLogger()),
		tournaments: NewTournamentService(store, v, events, nil, discardLogger()),
		tournament:  tournament,
	}
}

func (f *fixture) addGame(t *testing.T, title string) *models.Game {
	t.Helper()
	g := &models.Game{Title: title, Time: finalTime, TournamentID: f.tournament.ID}
	require.NoError(t, f.store.Games().Create(context.Background(), g))
	return g
}
