package memory

import (
	"context"
	"sync"

	"github.com/artpar/paymock/domain/webhook"
	"github.com/artpar/paymock/ports"
)

// WebhookEndpointStore is an in-memory implementation of
// ports.WebhookEndpointStore.
type WebhookEndpointStore struct {
	mu        sync.RWMutex
	endpoints map[string]webhook.Endpoint
	order     []string
}

// NewWebhookEndpointStore creates a new in-memory webhook endpoint store.
func NewWebhookEndpointStore() *WebhookEndpointStore {
	return &WebhookEndpointStore{endpoints: make(map[string]webhook.Endpoint)}
}

// Get retrieves an endpoint by ID.
func (s *WebhookEndpointStore) Get(ctx context.Context, id string) (webhook.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ep, ok := s.endpoints[id]
	if !ok {
		return webhook.Endpoint{}, ports.ErrNotFound
	}
	return ep, nil
}

// Create stores a new endpoint.
func (s *WebhookEndpointStore) Create(ctx context.Context, ep webhook.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.endpoints[ep.ID]; !exists {
		s.order = append(s.order, ep.ID)
	}
	s.endpoints[ep.ID] = ep
	return nil
}

// Update modifies an existing endpoint.
func (s *WebhookEndpointStore) Update(ctx context.Context, ep webhook.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.endpoints[ep.ID]; !ok {
		return ports.ErrNotFound
	}
	s.endpoints[ep.ID] = ep
	return nil
}

// Delete removes an endpoint.
func (s *WebhookEndpointStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.endpoints[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.endpoints, id)
	s.order = removeID(s.order, id)
	return nil
}

// List returns endpoints in insertion order with pagination.
func (s *WebhookEndpointStore) List(ctx context.Context, opts ports.ListOptions) ([]webhook.Endpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end, hasMore := pageBounds(s.order, opts)
	result := make([]webhook.Endpoint, 0, end-start)
	for _, id := range s.order[start:end] {
		result = append(result, s.endpoints[id])
	}
	return result, hasMore, nil
}

// Clear removes all endpoints.
func (s *WebhookEndpointStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = make(map[string]webhook.Endpoint)
	s.order = nil
	return nil
}

// Ensure interface compliance.
var _ ports.WebhookEndpointStore = (*WebhookEndpointStore)(nil)
