package plan

import (
	"context"
	"sync"

	"github.com/crateplan/crateplan/pkg/errors"
)

// Store persists plans for later retrieval. Implementations must be safe for
// concurrent use.
type Store interface {
	// Put stores a plan, replacing any existing plan with the same ID.
	Put(ctx context.Context, p *Plan) error
	// Get retrieves a plan by ID. Returns a PLAN_NOT_FOUND error if absent.
	Get(ctx context.Context, id string) (*Plan, error)
	// Delete removes a plan. Deleting an absent plan is not an error.
	Delete(ctx context.Context, id string) error
	// Close releases backing resources.
	Close(ctx context.Context) error
}

// MemoryStore is an in-process Store, used by tests and by serve mode when no
// MongoDB is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	plans map[string]*Plan
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{plans: make(map[string]*Plan)}
}

// Put stores a plan.
func (s *MemoryStore) Put(ctx context.Context, p *Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
	return nil
}

// Get retrieves a plan by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, errors.New(errors.ErrCodePlanNotFound, "plan %s not found", id)
	}
	return p, nil
}

// Delete removes a plan.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.plans, id)
	return nil
}

// Close does nothing for the memory store.
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
