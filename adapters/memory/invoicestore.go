package memory

import (
	"context"
	"sync"

	"github.com/artpar/paymock/domain/billing"
	"github.com/artpar/paymock/ports"
)

// InvoiceStore is an in-memory implementation of ports.InvoiceStore.
type InvoiceStore struct {
	mu       sync.RWMutex
	invoices map[string]billing.Invoice
	order    []string
}

// NewInvoiceStore creates a new in-memory invoice store.
func NewInvoiceStore() *InvoiceStore {
	return &InvoiceStore{invoices: make(map[string]billing.Invoice)}
}

// Get retrieves an invoice by ID.
func (s *InvoiceStore) Get(ctx context.Context, id string) (billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return billing.Invoice{}, ports.ErrNotFound
	}
	return inv, nil
}

// Create stores a new invoice.
func (s *InvoiceStore) Create(ctx context.Context, inv billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[inv.ID]; !exists {
		s.order = append(s.order, inv.ID)
	}
	s.invoices[inv.ID] = inv
	return nil
}

// Update modifies an existing invoice.
func (s *InvoiceStore) Update(ctx context.Context, inv billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[inv.ID]; !ok {
		return ports.ErrNotFound
	}
	s.invoices[inv.ID] = inv
	return nil
}

// List returns invoices in insertion order with pagination.
func (s *InvoiceStore) List(ctx context.Context, opts ports.ListOptions) ([]billing.Invoice, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end, hasMore := pageBounds(s.order, opts)
	result := make([]billing.Invoice, 0, end-start)
	for _, id := range s.order[start:end] {
		result = append(result, s.invoices[id])
	}
	return result, hasMore, nil
}

// OpenForSubscription returns the open invoice for a subscription.
func (s *InvoiceStore) OpenForSubscription(ctx context.Context, subscriptionID string) (billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		inv := s.invoices[id]
		if inv.Subscription == subscriptionID && inv.Status == billing.InvoiceStatusOpen {
			return inv, nil
		}
	}
	return billing.Invoice{}, ports.ErrNotFound
}

// Clear removes all invoices.
func (s *InvoiceStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices = make(map[string]billing.Invoice)
	s.order = nil
	return nil
}

// Ensure interface compliance.
var _ ports.InvoiceStore = (*InvoiceStore)(nil)
