package state

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests and single-node
// tooling. Writes become visible to reads only after Refresh, mirroring the
// near-real-time behavior of a search index.
type MemoryRepository struct {
	mu      sync.Mutex
	pending map[string]MigrationState
	visible map[string]MigrationState
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		pending: make(map[string]MigrationState),
		visible: make(map[string]MigrationState),
	}
}

// Add upserts a record by ID. The record is not returned by GetAll or
// GetByID until the next Refresh.
func (r *MemoryRepository) Add(_ context.Context, st MigrationState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[st.ID] = st
	return nil
}

// GetAll returns every visible record, ordered by ID for determinism.
func (r *MemoryRepository) GetAll(_ context.Context) ([]MigrationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]MigrationState, 0, len(r.visible))
	for _, st := range r.visible {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetByID returns the visible record with the given ID, or nil when absent.
func (r *MemoryRepository) GetByID(_ context.Context, id string) (*MigrationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.visible[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// Refresh promotes pending writes so subsequent reads observe them.
func (r *MemoryRepository) Refresh(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, st := range r.pending {
		r.visible[id] = st
	}
	clear(r.pending)
	return nil
}
