package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/tournament-api/models"
)

// memoryState is one consistent snapshot of all rows.
type memoryState struct {
	tournaments      map[int]models.Tournament
	games            map[int]models.Game
	nextTournamentID int
	nextGameID       int
}

func newMemoryState() *memoryState {
	return &memoryState{
		tournaments:      make(map[int]models.Tournament),
		games:            make(map[int]models.Game),
		nextTournamentID: 1,
		nextGameID:       1,
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		tournaments:      make(map[int]models.Tournament, len(s.tournaments)),
		games:            make(map[int]models.Game, len(s.games)),
		nextTournamentID: s.nextTournamentID,
		nextGameID:       s.nextGameID,
	}
	for id, t := range s.tournaments {
		c.tournaments[id] = t
	}
	for id, g := range s.games {
		c.games[id] = g
	}
	return c
}

// stateAccessor runs fn against the state a repository is bound to. Writes
// through the store itself commit immediately; writes through a unit of work
// only touch its private snapshot.
type stateAccessor func(write bool, fn func(st *memoryState) error) error

// MemoryStore is a Store kept entirely in process memory. Units of work are
// serialized and operate on a snapshot that replaces the shared state on
// Complete.
type MemoryStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *memoryState
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: newMemoryState(),
		now:   time.Now,
	}
}

func (s *MemoryStore) access(write bool, fn func(st *memoryState) error) error {
	if write {
		s.txMu.Lock()
		defer s.txMu.Unlock()
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(s.state)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

func (s *MemoryStore) Tournaments() TournamentRepository {
	return &memoryTournamentRepository{access: s.access, now: s.now}
}

func (s *MemoryStore) Games() GameRepository {
	return &memoryGameRepository{access: s.access, now: s.now}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Begin(ctx context.Context) (UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.txMu.Lock()
	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	u := &memoryUnitOfWork{store: s, working: working}
	access := func(_ bool, fn func(st *memoryState) error) error {
		u.mu.Lock()
		defer u.mu.Unlock()
		return fn(u.working)
	}
	u.tournaments = &memoryTournamentRepository{access: access, now: s.now}
	u.games = &memoryGameRepository{access: access, now: s.now}
	return u, nil
}

type memoryUnitOfWork struct {
	store       *MemoryStore
	mu          sync.Mutex
	working     *memoryState
	done        bool
	tournaments TournamentRepository
	games       GameRepository
}

func (u *memoryUnitOfWork) Tournaments() TournamentRepository { return u.tournaments }
func (u *memoryUnitOfWork) Games() GameRepository             { return u.games }

func (u *memoryUnitOfWork) Complete() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.store.mu.Lock()
	u.store.state = u.working
	u.store.mu.Unlock()
	u.done = true
	u.store.txMu.Unlock()
	return nil
}

func (u *memoryUnitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.done = true
	u.store.txMu.Unlock()
	return nil
}

type memoryTournamentRepository struct {
	access stateAccessor
	now    func() time.Time
}

func (r *memoryTournamentRepository) Create(_ context.Context, t *models.Tournament) error {
	return r.access(true, func(st *memoryState) error {
		t.ID = st.nextTournamentID
		st.nextTournamentID++
		t.Version = 1
		t.CreatedAt = r.now().UTC()
		stored := *t
		stored.Games = nil
		st.tournaments[t.ID] = stored
		return nil
	})
}

func (r *memoryTournamentRepository) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	var found models.Tournament
	err := r.access(false, func(st *memoryState) error {
		t, ok := st.tournaments[id]
		if !ok {
			return ErrTournamentNotFound
		}
		found = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (r *memoryTournamentRepository) List(_ context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments := make([]models.Tournament, 0)
	_ = r.access(false, func(st *memoryState) error {
		for _, t := range st.tournaments {
			tournaments = append(tournaments, t)
		}
		return nil
	})

	sort.SliceStable(tournaments, func(i, j int) bool {
		a, b := tournaments[i], tournaments[j]
		switch filter.SortBy {
		case TournamentSortTitle:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case TournamentSortStartDate:
			if !a.StartDate.Equal(b.StartDate) {
				return a.StartDate.Before(b.StartDate)
			}
		}
		return a.ID < b.ID
	})
	return tournaments, nil
}

func (r *memoryTournamentRepository) Exists(_ context.Context, id int) (bool, error) {
	var exists bool
	_ = r.access(false, func(st *memoryState) error {
		_, exists = st.tournaments[id]
		return nil
	})
	return exists, nil
}

func (r *memoryTournamentRepository) Count(_ context.Context) (int, error) {
	var count int
	_ = r.access(false, func(st *memoryState) error {
		count = len(st.tournaments)
		return nil
	})
	return count, nil
}

func (r *memoryTournamentRepository) Update(_ context.Context, t *models.Tournament) error {
	return r.access(true, func(st *memoryState) error {
		stored, ok := st.tournaments[t.ID]
		if !ok {
			if t.Version > 0 {
				return ErrTournamentVersionConflict
			}
			return ErrTournamentNotFound
		}
		if t.Version > 0 && t.Version != stored.Version {
			return ErrTournamentVersionConflict
		}
		stored.Title = t.Title
		stored.StartDate = t.StartDate
		stored.Version++
		st.tournaments[t.ID] = stored
		t.Version = stored.Version
		return nil
	})
}

func (r *memoryTournamentRepository) UpdateLogoKey(_ context.Context, tournamentID int, logoKey *string) error {
	return r.access(true, func(st *memoryState) error {
		stored, ok := st.tournaments[tournamentID]
		if !ok {
			return ErrTournamentNotFound
		}
		stored.LogoKey = logoKey
		stored.Version++
		st.tournaments[tournamentID] = stored
		return nil
	})
}

func (r *memoryTournamentRepository) Delete(_ context.Context, id int) error {
	return r.access(true, func(st *memoryState) error {
		if _, ok := st.tournaments[id]; !ok {
			return ErrTournamentNotFound
		}
		for _, g := range st.games {
			if g.TournamentID == id {
				return ErrTournamentInUse
			}
		}
		delete(st.tournaments, id)
		return nil
	})
}

type memoryGameRepository struct {
	access stateAccessor
	now    func() time.Time
}

func (r *memoryGameRepository) Create(_ context.Context, g *models.Game) error {
	return r.access(true, func(st *memoryState) error {
		if _, ok := st.tournaments[g.TournamentID]; !ok {
			return ErrGameInvalidTournament
		}
		g.ID = st.nextGameID
		st.nextGameID++
		g.Version = 1
		g.CreatedAt = r.now().UTC()
		st.games[g.ID] = *g
		return nil
	})
}

func (r *memoryGameRepository) GetByID(_ context.Context, id int) (*models.Game, error) {
	var found models.Game
	err := r.access(false, func(st *memoryState) error {
		g, ok := st.games[id]
		if !ok {
			return ErrGameNotFound
		}
		found = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (r *memoryGameRepository) List(_ context.Context, filter ListGamesFilter) ([]models.Game, error) {
	var tournamentSet map[int]struct{}
	if len(filter.TournamentIDs) > 0 {
		tournamentSet = make(map[int]struct{}, len(filter.TournamentIDs))
		for _, id := range filter.TournamentIDs {
			tournamentSet[id] = struct{}{}
		}
	}
	term := strings.ToLower(filter.Title)

	games := make([]models.Game, 0)
	_ = r.access(false, func(st *memoryState) error {
		for _, g := range st.games {
			if filter.TournamentID != nil && g.TournamentID != *filter.TournamentID {
				continue
			}
			if tournamentSet != nil {
				if _, ok := tournamentSet[g.TournamentID]; !ok {
					continue
				}
			}
			if term != "" && !strings.Contains(strings.ToLower(g.Title), term) {
				continue
			}
			games = append(games, g)
		}
		return nil
	})

	sort.SliceStable(games, func(i, j int) bool {
		a, b := games[i], games[j]
		switch filter.SortBy {
		case GameSortTitle:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case GameSortTime:
			if !a.Time.Equal(b.Time) {
				return a.Time.Before(b.Time)
			}
		}
		return a.ID < b.ID
	})
	return games, nil
}

func (r *memoryGameRepository) Exists(_ context.Context, id int) (bool, error) {
	var exists bool
	_ = r.access(false, func(st *memoryState) error {
		_, exists = st.games[id]
		return nil
	})
	return exists, nil
}

func (r *memoryGameRepository) Update(_ context.Context, g *models.Game) error {
	return r.access(true, func(st *memoryState) error {
		stored, ok := st.games[g.ID]
		if !ok {
			if g.Version > 0 {
				return ErrGameVersionConflict
			}
			return ErrGameNotFound
		}
		if g.Version > 0 && g.Version != stored.Version {
			return ErrGameVersionConflict
		}
		if _, ok := st.tournaments[g.TournamentID]; !ok {
			return ErrGameInvalidTournament
		}
		stored.Title = g.Title
		stored.Time = g.Time
		stored.TournamentID = g.TournamentID
		stored.Version++
		st.games[g.ID] = stored
		g.Version = stored.Version
		return nil
	})
}

func (r *memoryGameRepository) Delete(_ context.Context, id int) error {
	return r.access(true, func(st *memoryState) error {
		if _, ok := st.games[id]; !ok {
			return ErrGameNotFound
		}
		delete(st.games, id)
		return nil
	})
}

func (r *memoryGameRepository) DeleteByTournament(_ context.Context, tournamentID int) (int, error) {
	var deleted int
	err := r.access(true, func(st *memoryState) error {
		for id, g := range st.games {
			if g.TournamentID == tournamentID {
				delete(st.games, id)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}
