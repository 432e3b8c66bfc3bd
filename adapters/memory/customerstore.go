package memory

import (
	"context"
	"sync"

	"github.com/artpar/paymock/ports"
)

// CustomerStore is an in-memory implementation of ports.CustomerStore.
type CustomerStore struct {
	mu        sync.RWMutex
	customers map[string]ports.Customer
	order     []string
}

// NewCustomerStore creates a new in-memory customer store.
func NewCustomerStore() *CustomerStore {
	return &CustomerStore{customers: make(map[string]ports.Customer)}
}

// Get retrieves a customer by ID.
func (s *CustomerStore) Get(ctx context.Context, id string) (ports.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return ports.Customer{}, ports.ErrNotFound
	}
	return c, nil
}

// Create stores a new customer.
func (s *CustomerStore) Create(ctx context.Context, c ports.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[c.ID]; !exists {
		s.order = append(s.order, c.ID)
	}
	s.customers[c.ID] = c
	return nil
}

// Delete removes a customer.
func (s *CustomerStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.customers, id)
	s.order = removeID(s.order, id)
	return nil
}

// List returns customers in insertion order with pagination.
func (s *CustomerStore) List(ctx context.Context, opts ports.ListOptions) ([]ports.Customer, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end, hasMore := pageBounds(s.order, opts)
	result := make([]ports.Customer, 0, end-start)
	for _, id := range s.order[start:end] {
		result = append(result, s.customers[id])
	}
	return result, hasMore, nil
}

// Clear removes all customers.
func (s *CustomerStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = make(map[string]ports.Customer)
	s.order = nil
	return nil
}

// Ensure interface compliance.
var _ ports.CustomerStore = (*CustomerStore)(nil)
