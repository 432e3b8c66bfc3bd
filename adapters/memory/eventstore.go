package memory

import (
	"context"
	"sync"

	"github.com/artpar/paymock/domain/webhook"
	"github.com/artpar/paymock/ports"
)

// EventStore is an in-memory implementation of ports.EventStore.
type EventStore struct {
	mu     sync.RWMutex
	events map[string]webhook.Event
	order  []string
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{events: make(map[string]webhook.Event)}
}

// Get retrieves an event by ID.
func (s *EventStore) Get(ctx context.Context, id string) (webhook.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return webhook.Event{}, ports.ErrNotFound
	}
	// Copy the attempt log so callers cannot mutate stored state.
	ev.DeliveryAttempts = append([]webhook.DeliveryAttempt(nil), ev.DeliveryAttempts...)
	return ev, nil
}

// Create stores a new event.
func (s *EventStore) Create(ctx context.Context, ev webhook.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[ev.ID]; !exists {
		s.order = append(s.order, ev.ID)
	}
	s.events[ev.ID] = ev
	return nil
}

// List returns events in insertion order with pagination.
func (s *EventStore) List(ctx context.Context, opts ports.ListOptions) ([]webhook.Event, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end, hasMore := pageBounds(s.order, opts)
	result := make([]webhook.Event, 0, end-start)
	for _, id := range s.order[start:end] {
		ev := s.events[id]
		ev.DeliveryAttempts = append([]webhook.DeliveryAttempt(nil), ev.DeliveryAttempts...)
		result = append(result, ev)
	}
	return result, hasMore, nil
}

// AppendAttempt appends a delivery attempt to an event's log.
func (s *EventStore) AppendAttempt(ctx context.Context, eventID string, attempt webhook.DeliveryAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[eventID]
	if !ok {
		return ports.ErrNotFound
	}
	ev.DeliveryAttempts = append(ev.DeliveryAttempts, attempt)
	s.events[eventID] = ev
	return nil
}

// Clear removes all events.
func (s *EventStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string]webhook.Event)
	s.order = nil
	return nil
}

// Ensure interface compliance.
var _ ports.EventStore = (*EventStore)(nil)
