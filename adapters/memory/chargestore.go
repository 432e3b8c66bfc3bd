package memory

import (
	"context"
	"sync"

	"github.com/artpar/paymock/domain/billing"
	"github.com/artpar/paymock/ports"
)

// ChargeStore is an in-memory implementation of ports.ChargeStore.
type ChargeStore struct {
	mu      sync.RWMutex
	charges map[string]billing.Charge
	order   []string
}

// NewChargeStore creates a new in-memory charge store.
func NewChargeStore() *ChargeStore {
	return &ChargeStore{charges: make(map[string]billing.Charge)}
}

// Get retrieves a charge by ID.
func (s *ChargeStore) Get(ctx context.Context, id string) (billing.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.charges[id]
	if !ok {
		return billing.Charge{}, ports.ErrNotFound
	}
	return ch, nil
}

// Create stores a new charge.
func (s *ChargeStore) Create(ctx context.Context, ch billing.Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.charges[ch.ID]; !exists {
		s.order = append(s.order, ch.ID)
	}
	s.charges[ch.ID] = ch
	return nil
}

// List returns charges in insertion order with pagination.
func (s *ChargeStore) List(ctx context.Context, opts ports.ListOptions) ([]billing.Charge, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end, hasMore := pageBounds(s.order, opts)
	result := make([]billing.Charge, 0, end-start)
	for _, id := range s.order[start:end] {
		result = append(result, s.charges[id])
	}
	return result, hasMore, nil
}

// Clear removes all charges.
func (s *ChargeStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charges = make(map[string]billing.Charge)
	s.order = nil
	return nil
}

// Ensure interface compliance.
var _ ports.ChargeStore = (*ChargeStore)(nil)
