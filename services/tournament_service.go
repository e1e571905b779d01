package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/tournament-api/dto"
	"github.com/Dosada05/tournament-api/live"
	"github.com/Dosada05/tournament-api/models"
	"github.com/Dosada05/tournament-api/patch"
	"github.com/Dosada05/tournament-api/repositories"
	"github.com/Dosada05/tournament-api/storage"
	"github.com/Dosada05/tournament-api/validation"
	"golang.org/x/sync/errgroup"
)

type TournamentService interface {
	ListTournaments(ctx context.Context, input ListTournamentsInput) ([]dto.Tournament, error)
	GetTournament(ctx context.Context, id int, includeGames bool) (*dto.Tournament, error)
	CreateTournament(ctx context.Context, input dto.Tournament) (*dto.Tournament, error)
	ReplaceTournament(ctx context.Context, id int, input dto.Tournament) error
	PatchTournament(ctx context.Context, id int, doc patch.Document) error
	DeleteTournament(ctx context.Context, id int) error
	UploadLogo(ctx context.Context, id int, file io.Reader, contentType string) (*dto.Tournament, error)
}

type ListTournamentsInput struct {
	SortBy       string
	IncludeGames bool
}

// Допустимые форматы логотипа и расширения ключей в хранилище
var logoExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

type tournamentService struct {
	store     repositories.Store
	validator *validation.Validator
	events    EventPublisher
	uploader  storage.FileUploader
	logger    *slog.Logger
	now       func() time.Time
}

// NewTournamentService builds the tournament service. uploader may be nil, in
// which case logo uploads fail with ErrLogoStorageUnavailable.
func NewTournamentService(
	store repositories.Store,
	validator *validation.Validator,
	events EventPublisher,
	uploader storage.FileUploader,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		store:     store,
		validator: validator,
		events:    publisherOrNoop(events),
		uploader:  uploader,
		logger:    logger.With(slog.String("service", "tournaments")),
		now:       time.Now,
	}
}

func (s *tournamentService) ListTournaments(ctx context.Context, input ListTournamentsInput) ([]dto.Tournament, error) {
	tournaments, err := s.store.Tournaments().List(ctx, repositories.ListTournamentsFilter{
		SortBy: parseTournamentSort(input.SortBy),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}

	if input.IncludeGames && len(tournaments) > 0 {
		ids := make([]int, len(tournaments))
		for i, t := range tournaments {
			ids[i] = t.ID
		}
		games, err := s.store.Games().List(ctx, repositories.ListGamesFilter{TournamentIDs: ids})
		if err != nil {
			return nil, fmt.Errorf("failed to load games for tournaments: %w", err)
		}

		byTournament := make(map[int][]models.Game, len(tournaments))
		for _, g := range games {
			byTournament[g.TournamentID] = append(byTournament[g.TournamentID], g)
		}
		for i := range tournaments {
			tournaments[i].Games = byTournament[tournaments[i].ID]
			if tournaments[i].Games == nil {
				tournaments[i].Games = []models.Game{}
			}
		}
	}

	return dto.TournamentsFromModels(tournaments, logoResolver(s.uploader)), nil
}

func (s *tournamentService) GetTournament(ctx context.Context, id int, includeGames bool) (*dto.Tournament, error) {
	if !includeGames {
		tournament, err := s.store.Tournaments().GetByID(ctx, id)
		if err != nil {
			return nil, s.translateReadError(id, err)
		}
		result := dto.TournamentFromModel(tournament, logoResolver(s.uploader))
		return &result, nil
	}

	var tournament *models.Tournament
	var games []models.Game

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tournament, err = s.store.Tournaments().GetByID(gCtx, id)
		return err
	})
	g.Go(func() error {
		var err error
		games, err = s.store.Games().List(gCtx, repositories.ListGamesFilter{TournamentID: &id})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.translateReadError(id, err)
	}

	tournament.Games = games
	if tournament.Games == nil {
		tournament.Games = []models.Game{}
	}
	result := dto.TournamentFromModel(tournament, logoResolver(s.uploader))
	return &result, nil
}

// CreateTournament stores the tournament and any games nested in it as one
// unit of work. Nested games always belong to the new tournament.
func (s *tournamentService) CreateTournament(ctx context.Context, input dto.Tournament) (*dto.Tournament, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}

	tournament := input.ToModel()
	tournament.ID = 0
	tournament.Version = 0
	games := tournament.Games
	tournament.Games = nil

	err := repositories.WithinUnitOfWork(ctx, s.store, func(uow repositories.UnitOfWork) error {
		if err := uow.Tournaments().Create(ctx, tournament); err != nil {
			return err
		}
		for i := range games {
			games[i].ID = 0
			games[i].Version = 0
			games[i].TournamentID = tournament.ID
			if err := uow.Games().Create(ctx, &games[i]); err != nil {
				return fmt.Errorf("failed to create game %d of tournament: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	tournament.Games = games
	created := dto.TournamentFromModel(tournament, logoResolver(s.uploader))
	if len(created.Games) == 0 {
		created.Games = nil
	}
	return &created, nil
}

func (s *tournamentService) validateCreate(input dto.Tournament) error {
	verrs := validation.Errors{}
	if err := s.validator.Struct(input); err != nil {
		var fieldErrs validation.Errors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		verrs.Merge("", fieldErrs)
	}
	for i, g := range input.Games {
		if err := s.validator.Struct(g.Draft()); err != nil {
			var fieldErrs validation.Errors
			if !errors.As(err, &fieldErrs) {
				return err
			}
			verrs.Merge(fmt.Sprintf("games[%d].", i), fieldErrs)
		}
	}
	if len(verrs) > 0 {
		return validationFailed(verrs)
	}
	return nil
}

func (s *tournamentService) ReplaceTournament(ctx context.Context, id int, input dto.Tournament) error {
	if input.ID != id {
		return ErrIDMismatch
	}
	if err := validateInput(s.validator, input); err != nil {
		return err
	}

	// Вложенные игры при замене игнорируются, они меняются через /Games
	tournament := input.ToModel()
	tournament.Games = nil

	err := repositories.WithinUnitOfWork(ctx, s.store, func(uow repositories.UnitOfWork) error {
		return uow.Tournaments().Update(ctx, tournament)
	})
	if err != nil {
		return s.translateWriteError(ctx, id, err)
	}

	s.publishUpdated(ctx, id)
	return nil
}

func (s *tournamentService) PatchTournament(ctx context.Context, id int, doc patch.Document) error {
	if doc == nil {
		return patch.ErrEmptyDocument
	}

	err := repositories.WithinUnitOfWork(ctx, s.store, func(uow repositories.UnitOfWork) error {
		tournament, err := uow.Tournaments().GetByID(ctx, id)
		if err != nil {
			return err
		}

		view := dto.TournamentUpdateFromModel(tournament)
		if err := patch.Apply(doc, &view); err != nil {
			return err
		}
		if err := validateInput(s.validator, view); err != nil {
			return err
		}

		if len(doc) == 0 {
			return nil
		}

		view.ApplyTo(tournament)
		return uow.Tournaments().Update(ctx, tournament)
	})
	if err != nil {
		return s.translateWriteError(ctx, id, err)
	}

	if len(doc) > 0 {
		s.publishUpdated(ctx, id)
	}
	return nil
}

// DeleteTournament removes the tournament together with all of its games.
// The logo object is removed afterwards on a best-effort basis.
func (s *tournamentService) DeleteTournament(ctx context.Context, id int) error {
	var logoKey *string
	var deletedGames int

	err := repositories.WithinUnitOfWork(ctx, s.store, func(uow repositories.UnitOfWork) error {
		tournament, err := uow.Tournaments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		logoKey = tournament.LogoKey

		deletedGames, err = uow.Games().DeleteByTournament(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to delete games of tournament %d: %w", id, err)
		}
		return uow.Tournaments().Delete(ctx, id)
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrTournamentNotFound):
			return ErrTournamentNotFound
		case errors.Is(err, repositories.ErrTournamentInUse):
			// игра была добавлена параллельно между удалением игр и турнира
			return ErrConcurrencyConflict
		default:
			return fmt.Errorf("failed to delete tournament %d: %w", id, err)
		}
	}

	s.logger.Info("tournament deleted",
		slog.Int("tournament_id", id),
		slog.Int("games_deleted", deletedGames),
	)
	s.deleteLogoObject(ctx, logoKey)
	s.events.Publish(id, live.EventTournamentDeleted, map[string]int{"id": id})
	return nil
}

func (s *tournamentService) UploadLogo(ctx context.Context, id int, file io.Reader, contentType string) (*dto.Tournament, error) {
	if s.uploader == nil {
		return nil, ErrLogoStorageUnavailable
	}
	ext, ok := logoExtensions[normalizeContentType(contentType)]
	if !ok {
		return nil, ErrLogoContentType
	}

	exists, err := s.store.Tournaments().Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrTournamentNotFound
	}

	key := fmt.Sprintf("tournaments/%d/logo-%d.%s", id, s.now().UnixNano(), ext)
	if _, err := s.uploader.Upload(ctx, key, normalizeContentType(contentType), file); err != nil {
		return nil, fmt.Errorf("failed to upload logo for tournament %d: %w", id, err)
	}

	var tournament *models.Tournament
	var previousKey *string
	err = repositories.WithinUnitOfWork(ctx, s.store, func(uow repositories.UnitOfWork) error {
		current, err := uow.Tournaments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		previousKey = current.LogoKey

		if err := uow.Tournaments().UpdateLogoKey(ctx, id, &key); err != nil {
			return err
		}
		tournament, err = uow.Tournaments().GetByID(ctx, id)
		return err
	})
	if err != nil {
		s.deleteLogoObject(ctx, &key)
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to save logo key for tournament %d: %w", id, err)
	}

	s.deleteLogoObject(ctx, previousKey)

	result := dto.TournamentFromModel(tournament, logoResolver(s.uploader))
	s.events.Publish(id, live.EventTournamentUpdated, result)
	return &result, nil
}

func (s *tournamentService) deleteLogoObject(ctx context.Context, key *string) {
	if key == nil || *key == "" || s.uploader == nil {
		return
	}
	if err := s.uploader.Delete(ctx, *key); err != nil {
		s.logger.Warn("failed to delete logo object",
			slog.String("key", *key),
			slog.String("error", err.Error()),
		)
	}
}

func (s *tournamentService) publishUpdated(ctx context.Context, id int) {
	tournament, err := s.store.Tournaments().GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("failed to load tournament for update event",
			slog.Int("tournament_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	s.events.Publish(id, live.EventTournamentUpdated, dto.TournamentFromModel(tournament, logoResolver(s.uploader)))
}

func (s *tournamentService) translateReadError(id int, err error) error {
	if errors.Is(err, repositories.ErrTournamentNotFound) {
		return ErrTournamentNotFound
	}
	return fmt.Errorf("failed to get tournament by id %d: %w", id, err)
}

func (s *tournamentService) translateWriteError(ctx context.Context, id int, err error) error {
	switch {
	case errors.Is(err, ErrValidationFailed), errors.Is(err, patch.ErrEmptyDocument):
		return err
	case isPatchError(err):
		return err
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentVersionConflict):
		exists, existsErr := s.store.Tournaments().Exists(ctx, id)
		if existsErr != nil {
			return fmt.Errorf("failed to re-check tournament %d after conflict: %w", id, existsErr)
		}
		if !exists {
			return ErrTournamentNotFound
		}
		s.logger.Info("concurrent update detected", slog.Int("tournament_id", id))
		return ErrConcurrencyConflict
	default:
		return fmt.Errorf("failed to save tournament %d: %w", id, err)
	}
}

func normalizeContentType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
