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
	ErrTournamentNotFound        = errors.New("tournament not found")
	ErrTournamentVersionConflict = errors.New("tournament was modified concurrently")
	ErrTournamentInUse           = errors.New("tournament is in use (games exist)")
)

// TournamentSortField is one of the fixed columns tournaments can be ordered by.
type TournamentSortField string

const (
	TournamentSortNone      TournamentSortField = ""
	TournamentSortTitle     TournamentSortField = "title"
	TournamentSortStartDate TournamentSortField = "start_date"
)

type ListTournamentsFilter struct {
	SortBy TournamentSortField
}

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Exists(ctx context.Context, id int) (bool, error)
	Count(ctx context.Context) (int, error)
	// Update follows the same version rules as GameRepository.Update.
	Update(ctx context.Context, tournament *models.Tournament) error
	UpdateLogoKey(ctx context.Context, tournamentID int, logoKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresTournamentRepository struct {
	exec SQLExecutor
}

func NewPostgresTournamentRepository(exec SQLExecutor) TournamentRepository {
	return &postgresTournamentRepository{exec: exec}
}

var tournamentColumns = []interface{}{"id", "title", "start_date", "logo_key", "version", "created_at"}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (title, start_date, logo_key)
		VALUES ($1, $2, $3)
		RETURNING id, version, created_at`

	err := r.exec.QueryRowContext(ctx, query, t.Title, t.StartDate, t.LogoKey).
		Scan(&t.ID, &t.Version, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `
		SELECT id, title, start_date, logo_key, version, created_at
		FROM tournaments
		WHERE id = $1`

	t := &models.Tournament{}
	err := r.exec.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Title, &t.StartDate, &t.LogoKey, &t.Version, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query, args, err := dialect.From("tournaments").Prepared(true).
		Select(tournamentColumns...).
		Order(tournamentOrder(filter.SortBy)...).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build tournaments query: %w", err)
	}

	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := rows.Scan(
			&t.ID, &t.Title, &t.StartDate, &t.LogoKey, &t.Version, &t.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return tournaments, nil
}

func tournamentOrder(sortBy TournamentSortField) []exp.OrderedExpression {
	switch sortBy {
	case TournamentSortTitle:
		return []exp.OrderedExpression{goqu.L(`"title" COLLATE "C"`).Asc(), goqu.C("id").Asc()}
	case TournamentSortStartDate:
		return []exp.OrderedExpression{goqu.C("start_date").Asc(), goqu.C("id").Asc()}
	default:
		return []exp.OrderedExpression{goqu.C("id").Asc()}
	}
}

func (r *postgresTournamentRepository) Exists(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := r.exec.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tournaments WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tournament %d existence: %w", id, err)
	}
	return exists, nil
}

func (r *postgresTournamentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM tournaments`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tournaments: %w", err)
	}
	return count, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	// logo_key обновляется отдельно через UpdateLogoKey
	query := `
		UPDATE tournaments SET
			title = $1,
			start_date = $2,
			version = version + 1
		WHERE id = $3`
	args := []interface{}{t.Title, t.StartDate, t.ID}
	if t.Version > 0 {
		query += ` AND version = $4`
		args = append(args, t.Version)
	}
	query += ` RETURNING version`

	err := r.exec.QueryRowContext(ctx, query, args...).Scan(&t.Version)
	if errors.Is(err, sql.ErrNoRows) {
		if t.Version > 0 {
			return ErrTournamentVersionConflict
		}
		return ErrTournamentNotFound
	}
	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) UpdateLogoKey(ctx context.Context, tournamentID int, logoKey *string) error {
	query := `UPDATE tournaments SET logo_key = $1, version = version + 1 WHERE id = $2`
	result, err := r.exec.ExecContext(ctx, query, logoKey, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to update tournament logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.exec.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23503":
			// games ссылаются на турнир (ON DELETE RESTRICT)
			return ErrTournamentInUse
		case "40001":
			return ErrTournamentVersionConflict
		}
	}
	return err
}
