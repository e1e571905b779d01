package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/tournament-api/dto"
	"github.com/Dosada05/tournament-api/live"
	"github.com/Dosada05/tournament-api/models"
	"github.com/Dosada05/tournament-api/patch"
	"github.com/Dosada05/tournament-api/repositories"
	"github.com/Dosada05/tournament-api/validation"
)

type GameService interface {
	ListGames(ctx context.Context, input ListGamesInput) ([]dto.Game, error)
	GetGame(ctx context.Context, id int) (*dto.Game, error)
	SearchGames(ctx context.Context, title string) ([]dto.Game, error)
	CreateGame(ctx context.Context, input dto.Game) (*dto.Game, error)
	ReplaceGame(ctx context.Context, id int, input dto.Game) error
	PatchGame(ctx context.Context, id int, doc patch.Document) error
	DeleteGame(ctx context.Context, id int) error
}

type ListGamesInput struct {
	// SortBy is "title" or "time"; other values keep insertion order.
	SortBy       string
	TournamentID *int
}

type gameService struct {
	store     repositories.Store
	validator *validation.Validator
	events    EventPublisher
	logger    *slog.Logger
}

func NewGameService(store repositories.Store, validator *validation.Validator, events EventPublisher, logger *slog.Logger) GameService {
	return &gameService{
		store:     store,
		validator: validator,
		events:    publisherOrNoop(events),
		logger:    logger.With(slog.String("service", "games")),
	}
}

func (s *gameService) ListGames(ctx context.Context, input ListGamesInput) ([]dto.Game, error) {
	if input.TournamentID != nil {
		exists, err := s.store.Tournaments().Exists(ctx, *input.TournamentID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrTournamentNotFound
		}
	}

	games, err := s.store.Games().List(ctx, repositories.ListGamesFilter{
		TournamentID: input.TournamentID,
		SortBy:       parseGameSort(input.SortBy),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return dto.GamesFromModels(games), nil
}

func (s *gameService) GetGame(ctx context.Context, id int) (*dto.Game, error) {
	game, err := s.store.Games().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game by id %d: %w", id, err)
	}
	result := dto.GameFromModel(game)
	return &result, nil
}

func (s *gameService) SearchGames(ctx context.Context, title string) ([]dto.Game, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrSearchTermRequired
	}

	games, err := s.store.Games().List(ctx, repositories.ListGamesFilter{Title: title})
	if err != nil {
		return nil, fmt.Errorf("failed to search games by title %q: %w", title, err)
	}
	return dto.GamesFromModels(games), nil
}

func (s *gameService) CreateGame(ctx context.Context, input dto.Game) (*dto.Game, error) {
	if err := validateInput(s.validator, input); err != nil {
		return nil, err
	}

	game := input.ToModel()
	game.ID = 0
	game.Version = 0

	err := repositories.WithinUnitOfWork(ctx, s.store, func(uow repositories.UnitOfWork) error {
		if err := s.requireTournament(ctx, uow, game.TournamentID); err != nil {
			return err
		}
		return uow.Games().Create(ctx, game)
	})
	if err != nil {
		return nil, s.translateWriteError(ctx, err, game)
	}

	created := dto.GameFromModel(game)
	s.events.Publish(game.TournamentID, live.EventGameCreated, created)
	return &created, nil
}

func (s *gameService) ReplaceGame(ctx context.Context, id int, input dto.Game) error {
	if input.ID != id {
		return ErrIDMismatch
	}
	if err := validateInput(s.validator, input); err != nil {
		return err
	}

	game := input.ToModel()
	var previousTournamentID int
	err := repositories.WithinUnitOfWork(ctx, s.store, func(uow repositories.UnitOfWork) error {
		stored, err := uow.Games().GetByID(ctx, id)
		if err != nil {
			return err
		}
		previousTournamentID = stored.TournamentID

		if err := s.requireTournament(ctx, uow, game.TournamentID); err != nil {
			return err
		}
		return uow.Games().Update(ctx, game)
	})
	if err != nil {
		return s.translateWriteError(ctx, err, game)
	}

	s.publishUpdated(dto.GameFromModel(game), previousTournamentID)
	return nil
}

// PatchGame applies doc to the updatable fields of game id. The stored game
// is only modified when every operation applies and the result validates.
func (s *gameService) PatchGame(ctx context.Context, id int, doc patch.Document) error {
	if doc == nil {
		return patch.ErrEmptyDocument
	}

	var game *models.Game
	var previousTournamentID int
	err := repositories.WithinUnitOfWork(ctx, s.store, func(uow repositories.UnitOfWork) error {
		var err error
		game, err = uow.Games().GetByID(ctx, id)
		if err != nil {
			return err
		}
		previousTournamentID = game.TournamentID

		view := dto.GameUpdateFromModel(game)
		if err := patch.Apply(doc, &view); err != nil {
			return err
		}
		if err := validateInput(s.validator, view); err != nil {
			return err
		}
		if view.TournamentID != game.TournamentID {
			if err := s.requireTournament(ctx, uow, view.TournamentID); err != nil {
				return err
			}
		}

		if len(doc) == 0 {
			return nil
		}

		view.ApplyTo(game)
		return uow.Games().Update(ctx, game)
	})
	if err != nil {
		return s.translateWriteError(ctx, err, &models.Game{ID: id, TournamentID: tournamentIDOf(game)})
	}

	if len(doc) > 0 {
		s.publishUpdated(dto.GameFromModel(game), previousTournamentID)
	}
	return nil
}

// publishUpdated notifies the game's room and, when the game moved, tells the
// room it left that the game is gone.
func (s *gameService) publishUpdated(game dto.Game, previousTournamentID int) {
	s.events.Publish(game.TournamentID, live.EventGameUpdated, game)
	if previousTournamentID != 0 && previousTournamentID != game.TournamentID {
		s.events.Publish(previousTournamentID, live.EventGameDeleted, game)
	}
}

func (s *gameService) DeleteGame(ctx context.Context, id int) error {
	var game *models.Game
	err := repositories.WithinUnitOfWork(ctx, s.store, func(uow repositories.UnitOfWork) error {
		var err error
		game, err = uow.Games().GetByID(ctx, id)
		if err != nil {
			return err
		}
		return uow.Games().Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return ErrGameNotFound
		}
		return fmt.Errorf("failed to delete game %d: %w", id, err)
	}

	s.events.Publish(game.TournamentID, live.EventGameDeleted, dto.GameFromModel(game))
	return nil
}

func (s *gameService) requireTournament(ctx context.Context, uow repositories.UnitOfWork, tournamentID int) error {
	exists, err := uow.Tournaments().Exists(ctx, tournamentID)
	if err != nil {
		return err
	}
	if !exists {
		return missingTournamentError(tournamentID)
	}
	return nil
}

// translateWriteError maps repository errors of a write on game to service
// errors. A version conflict is re-checked against the store: a game that no
// longer exists is reported as not found.
func (s *gameService) translateWriteError(ctx context.Context, err error, game *models.Game) error {
	switch {
	case errors.Is(err, ErrValidationFailed), errors.Is(err, patch.ErrEmptyDocument):
		return err
	case isPatchError(err):
		return err
	case errors.Is(err, repositories.ErrGameNotFound):
		return ErrGameNotFound
	case errors.Is(err, repositories.ErrGameInvalidTournament):
		return missingTournamentError(game.TournamentID)
	case errors.Is(err, repositories.ErrGameVersionConflict):
		exists, existsErr := s.store.Games().Exists(ctx, game.ID)
		if existsErr != nil {
			return fmt.Errorf("failed to re-check game %d after conflict: %w", game.ID, existsErr)
		}
		if !exists {
			return ErrGameNotFound
		}
		s.logger.Info("concurrent update detected", slog.Int("game_id", game.ID))
		return ErrConcurrencyConflict
	default:
		return fmt.Errorf("failed to save game %d: %w", game.ID, err)
	}
}

func isPatchError(err error) bool {
	var opErr *patch.OperationError
	return errors.As(err, &opErr)
}

func tournamentIDOf(game *models.Game) int {
	if game == nil {
		return 0
	}
	return game.TournamentID
}
