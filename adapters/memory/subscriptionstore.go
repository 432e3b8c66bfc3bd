package memory

import (
	"context"
	"sync"

	"github.com/artpar/paymock/domain/billing"
	"github.com/artpar/paymock/ports"
)

// SubscriptionStore is an in-memory implementation of ports.SubscriptionStore.
type SubscriptionStore struct {
	mu    sync.RWMutex
	subs  map[string]billing.Subscription
	order []string
}

// NewSubscriptionStore creates a new in-memory subscription store.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{subs: make(map[string]billing.Subscription)}
}

// Get retrieves a subscription by ID.
func (s *SubscriptionStore) Get(ctx context.Context, id string) (billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return billing.Subscription{}, ports.ErrNotFound
	}
	return sub, nil
}

// Create stores a new subscription.
func (s *SubscriptionStore) Create(ctx context.Context, sub billing.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subs[sub.ID]; !exists {
		s.order = append(s.order, sub.ID)
	}
	s.subs[sub.ID] = sub
	return nil
}

// Update modifies an existing subscription.
func (s *SubscriptionStore) Update(ctx context.Context, sub billing.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.ID]; !ok {
		return ports.ErrNotFound
	}
	s.subs[sub.ID] = sub
	return nil
}

// List returns subscriptions in insertion order with pagination.
func (s *SubscriptionStore) List(ctx context.Context, opts ports.ListOptions) ([]billing.Subscription, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end, hasMore := pageBounds(s.order, opts)
	result := make([]billing.Subscription, 0, end-start)
	for _, id := range s.order[start:end] {
		result = append(result, s.subs[id])
	}
	return result, hasMore, nil
}

// All returns every subscription in insertion order.
func (s *SubscriptionStore) All(ctx context.Context) ([]billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]billing.Subscription, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.subs[id])
	}
	return result, nil
}

// Clear removes all subscriptions.
func (s *SubscriptionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = make(map[string]billing.Subscription)
	s.order = nil
	return nil
}

// Ensure interface compliance.
var _ ports.SubscriptionStore = (*SubscriptionStore)(nil)
