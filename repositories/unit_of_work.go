package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UnitOfWork groups repository calls into a single transaction. Nothing is
// visible to other callers until Complete succeeds.
type UnitOfWork interface {
	Tournaments() TournamentRepository
	Games() GameRepository
	Complete() error
	// Rollback discards pending changes. Calling it after Complete is a no-op.
	Rollback() error
}

// Store hands out repositories for single-statement reads and opens units of
// work for everything that writes.
type Store interface {
	Tournaments() TournamentRepository
	Games() GameRepository
	Begin(ctx context.Context) (UnitOfWork, error)
	Ping(ctx context.Context) error
}

type postgresStore struct {
	db          *sql.DB
	tournaments TournamentRepository
	games       GameRepository
}

func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{
		db:          db,
		tournaments: NewPostgresTournamentRepository(db),
		games:       NewPostgresGameRepository(db),
	}
}

func (s *postgresStore) Tournaments() TournamentRepository { return s.tournaments }
func (s *postgresStore) Games() GameRepository             { return s.games }

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *postgresStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &postgresUnitOfWork{
		tx:          tx,
		tournaments: NewPostgresTournamentRepository(tx),
		games:       NewPostgresGameRepository(tx),
	}, nil
}

type postgresUnitOfWork struct {
	tx          *sql.Tx
	tournaments TournamentRepository
	games       GameRepository
}

func (u *postgresUnitOfWork) Tournaments() TournamentRepository { return u.tournaments }
func (u *postgresUnitOfWork) Games() GameRepository             { return u.games }

func (u *postgresUnitOfWork) Complete() error {
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (u *postgresUnitOfWork) Rollback() error {
	err := u.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// WithinUnitOfWork runs fn inside a fresh unit of work. The work is completed
// when fn returns nil and rolled back otherwise, including on panic.
func WithinUnitOfWork(ctx context.Context, store Store, fn func(uow UnitOfWork) error) (err error) {
	uow, err := store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = uow.Rollback()
			panic(p)
		} else if err != nil {
			if rbErr := uow.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(uow); err != nil {
		return err
	}
	return uow.Complete()
}
