// Package memory implements repository.Store in process memory. It mirrors
// the sqlite store's uniqueness and transaction semantics (staged writes,
// all-or-nothing commit) and backs service tests that need a real store
// without a database.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/cmyui/experimentation/internal/domain"
	"github.com/cmyui/experimentation/internal/repository"
)

type pairKey struct {
	experimentID uuid.UUID
	userID       string
}

type state struct {
	experiments    map[uuid.UUID]domain.Experiment
	experimentKeys map[string]uuid.UUID
	order          []uuid.UUID
	assignments    map[pairKey]domain.Assignment
	exposures      map[pairKey]domain.Exposure
}

func newState() *state {
	return &state{
		experiments:    make(map[uuid.UUID]domain.Experiment),
		experimentKeys: make(map[string]uuid.UUID),
		assignments:    make(map[pairKey]domain.Assignment),
		exposures:      make(map[pairKey]domain.Exposure),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, e := range s.experiments {
		c.experiments[id] = e
	}
	for k, id := range s.experimentKeys {
		c.experimentKeys[k] = id
	}
	c.order = append(c.order, s.order...)
	for k, a := range s.assignments {
		c.assignments[k] = a
	}
	for k, e := range s.exposures {
		c.exposures[k] = e
	}
	return c
}

// Store is an in-memory repository.Store
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{state: newState()}
}

// Repos returns repositories operating directly on the live state
func (s *Store) Repos() repository.Repositories {
	return reposOver(s.state, &s.mu)
}

// RunInTx stages fn's writes on a copy of the state and swaps it in only if
// fn succeeds, so an error discards every write made within the call.
func (s *Store) RunInTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(reposOver(staged, nil)); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func reposOver(st *state, mu *sync.Mutex) repository.Repositories {
	return repository.Repositories{
		Experiments: &experimentRepo{st: st, mu: mu},
		Assignments: &assignmentRepo{st: st, mu: mu},
		Exposures:   &exposureRepo{st: st, mu: mu},
	}
}

// lock acquires mu when operating on the live state; inside a transaction mu
// is nil because the store lock is already held for the whole scope.
func lock(mu *sync.Mutex) func() {
	if mu == nil {
		return func() {}
	}
	mu.Lock()
	return mu.Unlock
}

type experimentRepo struct {
	st *state
	mu *sync.Mutex
}

func (r *experimentRepo) Create(ctx context.Context, e *domain.Experiment) error {
	defer lock(r.mu)()

	if _, exists := r.st.experimentKeys[e.Key]; exists {
		return repository.ErrDuplicateKey
	}
	if _, exists := r.st.experiments[e.ExperimentID]; exists {
		return repository.ErrDuplicateKey
	}

	r.st.experiments[e.ExperimentID] = *e
	r.st.experimentKeys[e.Key] = e.ExperimentID
	r.st.order = append(r.st.order, e.ExperimentID)
	return nil
}

func (r *experimentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Experiment, error) {
	defer lock(r.mu)()

	e, ok := r.st.experiments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r *experimentRepo) List(ctx context.Context, filter repository.ExperimentFilter) ([]*domain.Experiment, error) {
	defer lock(r.mu)()

	var experiments []*domain.Experiment
	// newest first, matching the sqlite store's ordering
	for i := len(r.st.order) - 1; i >= 0; i-- {
		e := r.st.experiments[r.st.order[i]]
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		experiments = append(experiments, &e)
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		if offset >= len(experiments) {
			return nil, nil
		}
		end := offset + filter.PageSize
		if end > len(experiments) {
			end = len(experiments)
		}
		experiments = experiments[offset:end]
	}
	return experiments, nil
}

func (r *experimentRepo) Count(ctx context.Context, status *domain.ExperimentStatus) (int64, error) {
	defer lock(r.mu)()

	var count int64
	for _, e := range r.st.experiments {
		if status == nil || e.Status == *status {
			count++
		}
	}
	return count, nil
}

func (r *experimentRepo) Update(ctx context.Context, e *domain.Experiment) error {
	defer lock(r.mu)()

	existing, ok := r.st.experiments[e.ExperimentID]
	if !ok {
		return repository.ErrNotFound
	}

	if e.Key != existing.Key {
		if _, taken := r.st.experimentKeys[e.Key]; taken {
			return repository.ErrDuplicateKey
		}
		delete(r.st.experimentKeys, existing.Key)
		r.st.experimentKeys[e.Key] = e.ExperimentID
	}

	r.st.experiments[e.ExperimentID] = *e
	return nil
}

type assignmentRepo struct {
	st *state
	mu *sync.Mutex
}

func (r *assignmentRepo) Get(ctx context.Context, experimentID uuid.UUID, userID string) (*domain.Assignment, error) {
	defer lock(r.mu)()

	a, ok := r.st.assignments[pairKey{experimentID, userID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *assignmentRepo) Create(ctx context.Context, a *domain.Assignment) error {
	defer lock(r.mu)()

	key := pairKey{a.ExperimentID, a.UserID}
	if _, exists := r.st.assignments[key]; exists {
		return repository.ErrDuplicateKey
	}
	r.st.assignments[key] = *a
	return nil
}

type exposureRepo struct {
	st *state
	mu *sync.Mutex
}

func (r *exposureRepo) Get(ctx context.Context, experimentID uuid.UUID, userID string) (*domain.Exposure, error) {
	defer lock(r.mu)()

	e, ok := r.st.exposures[pairKey{experimentID, userID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r *exposureRepo) Create(ctx context.Context, e *domain.Exposure) error {
	defer lock(r.mu)()

	key := pairKey{e.ExperimentID, e.UserID}
	if _, exists := r.st.exposures[key]; exists {
		return repository.ErrDuplicateKey
	}
	r.st.exposures[key] = *e
	return nil
}
