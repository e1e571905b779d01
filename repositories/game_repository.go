package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-api/models"
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"
)

var (
	ErrGameNotFound          = errors.New("game not found")
	ErrGameVersionConflict   = errors.New("game was modified concurrently")
	ErrGameInvalidTournament = errors.New("game references a tournament that does not exist")
)

// GameSortField is one of the fixed columns games can be ordered by.
type GameSortField string

const (
	GameSortNone  GameSortField = ""
	GameSortTitle GameSortField = "title"
	GameSortTime  GameSortField = "time"
)

type ListGamesFilter struct {
	TournamentID  *int
	TournamentIDs []int
	// Title matches games whose title contains the term, case-insensitively.
	Title  string
	SortBy GameSortField
}

type GameRepository interface {
	Create(ctx context.Context, game *models.Game) error
	GetByID(ctx context.Context, id int) (*models.Game, error)
	List(ctx context.Context, filter ListGamesFilter) ([]models.Game, error)
	Exists(ctx context.Context, id int) (bool, error)
	// Update overwrites the updatable columns and bumps the version. When
	// game.Version is non-zero the row is only touched if its version matches.
	Update(ctx context.Context, game *models.Game) error
	Delete(ctx context.Context, id int) error
	DeleteByTournament(ctx context.Context, tournamentID int) (int, error)
}

type postgresGameRepository struct {
	exec SQLExecutor
}

func NewPostgresGameRepository(exec SQLExecutor) GameRepository {
	return &postgresGameRepository{exec: exec}
}

var gameColumns = []interface{}{"id", "title", "time", "tournament_id", "version", "created_at"}

func (r *postgresGameRepository) Create(ctx context.Context, g *models.Game) error {
	query := `
		INSERT INTO games (title, time, tournament_id)
		VALUES ($1, $2, $3)
		RETURNING id, version, created_at`

	err := r.exec.QueryRowContext(ctx, query, g.Title, g.Time, g.TournamentID).
		Scan(&g.ID, &g.Version, &g.CreatedAt)

	return r.handleGameError(err)
}

func (r *postgresGameRepository) GetByID(ctx context.Context, id int) (*models.Game, error) {
	query := `
		SELECT id, title, time, tournament_id, version, created_at
		FROM games
		WHERE id = $1`

	g := &models.Game{}
	err := r.exec.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.Title, &g.Time, &g.TournamentID, &g.Version, &g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return g, nil
}

func (r *postgresGameRepository) List(ctx context.Context, filter ListGamesFilter) ([]models.Game, error) {
	ds := dialect.From("games").Prepared(true).Select(gameColumns...)

	if filter.TournamentID != nil {
		ds = ds.Where(goqu.C("tournament_id").Eq(*filter.TournamentID))
	}
	if len(filter.TournamentIDs) > 0 {
		ds = ds.Where(goqu.C("tournament_id").In(filter.TournamentIDs))
	}
	if filter.Title != "" {
		ds = ds.Where(goqu.C("title").ILike(likePattern(filter.Title)))
	}
	ds = ds.Order(gameOrder(filter.SortBy)...)

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build games query: %w", err)
	}

	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := make([]models.Game, 0)
	for rows.Next() {
		var g models.Game
		if scanErr := rows.Scan(
			&g.ID, &g.Title, &g.Time, &g.TournamentID, &g.Version, &g.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		games = append(games, g)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return games, nil
}

// gameOrder always ends with id so that equal keys keep insertion order.
func gameOrder(sortBy GameSortField) []exp.OrderedExpression {
	switch sortBy {
	case GameSortTitle:
		return []exp.OrderedExpression{goqu.L(`"title" COLLATE "C"`).Asc(), goqu.C("id").Asc()}
	case GameSortTime:
		return []exp.OrderedExpression{goqu.C("time").Asc(), goqu.C("id").Asc()}
	default:
		return []exp.OrderedExpression{goqu.C("id").Asc()}
	}
}

func (r *postgresGameRepository) Exists(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := r.exec.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM games WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check game %d existence: %w", id, err)
	}
	return exists, nil
}

func (r *postgresGameRepository) Update(ctx context.Context, g *models.Game) error {
	query := `
		UPDATE games SET
			title = $1,
			time = $2,
			tournament_id = $3,
			version = version + 1
		WHERE id = $4`
	args := []interface{}{g.Title, g.Time, g.TournamentID, g.ID}
	if g.Version > 0 {
		query += ` AND version = $5`
		args = append(args, g.Version)
	}
	query += ` RETURNING version`

	err := r.exec.QueryRowContext(ctx, query, args...).Scan(&g.Version)
	if errors.Is(err, sql.ErrNoRows) {
		if g.Version > 0 {
			return ErrGameVersionConflict
		}
		return ErrGameNotFound
	}
	return r.handleGameError(err)
}

func (r *postgresGameRepository) Delete(ctx context.Context, id int) error {
	result, err := r.exec.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return r.handleGameError(err)
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) DeleteByTournament(ctx context.Context, tournamentID int) (int, error) {
	result, err := r.exec.ExecContext(ctx, `DELETE FROM games WHERE tournament_id = $1`, tournamentID)
	if err != nil {
		return 0, r.handleGameError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return int(n), nil
}

func (r *postgresGameRepository) handleGameError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23503":
			if pqErr.Constraint == "games_tournament_id_fkey" {
				return ErrGameInvalidTournament
			}
		case "40001":
			return ErrGameVersionConflict
		}
	}
	return err
}
