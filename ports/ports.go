// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/paymock/domain/billing"
	"github.com/artpar/paymock/domain/webhook"
)

// ErrNotFound is returned by stores when the referenced record does not
// exist. Handlers translate it to a resource_missing API error.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock is the single source of current time for the whole system.
// Reading wall-clock time anywhere else breaks the virtual-time contract.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique, resource-prefixed identifiers.
type IDGenerator interface {
	// New returns a fresh ID carrying the given resource prefix,
	// e.g. New("cus") -> "cus_7f3a...".
	New(prefix string) string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// ListOptions controls paginated listing.
type ListOptions struct {
	// Limit caps the page size; stores apply a default when zero.
	Limit int
	// StartingAfter resumes listing after the record with this ID.
	StartingAfter string
}

// Customer represents a billable customer account.
type Customer struct {
	ID      string `json:"id"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Created int64  `json:"created"`
}

// CustomerStore persists customers.
type CustomerStore interface {
	Get(ctx context.Context, id string) (Customer, error)
	Create(ctx context.Context, c Customer) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOptions) ([]Customer, bool, error)
	Clear(ctx context.Context) error
}

// SubscriptionStore persists subscriptions.
type SubscriptionStore interface {
	Get(ctx context.Context, id string) (billing.Subscription, error)
	Create(ctx context.Context, sub billing.Subscription) error
	Update(ctx context.Context, sub billing.Subscription) error
	List(ctx context.Context, opts ListOptions) ([]billing.Subscription, bool, error)

	// All returns every subscription; the billing engine scans this.
	All(ctx context.Context) ([]billing.Subscription, error)
	Clear(ctx context.Context) error
}

// InvoiceStore persists invoices.
type InvoiceStore interface {
	Get(ctx context.Context, id string) (billing.Invoice, error)
	Create(ctx context.Context, inv billing.Invoice) error
	Update(ctx context.Context, inv billing.Invoice) error
	List(ctx context.Context, opts ListOptions) ([]billing.Invoice, bool, error)

	// OpenForSubscription returns the open invoice for a subscription,
	// or ErrNotFound when the subscription has none.
	OpenForSubscription(ctx context.Context, subscriptionID string) (billing.Invoice, error)
	Clear(ctx context.Context) error
}

// ChargeStore persists charges. Charges are immutable once created.
type ChargeStore interface {
	Get(ctx context.Context, id string) (billing.Charge, error)
	Create(ctx context.Context, ch billing.Charge) error
	List(ctx context.Context, opts ListOptions) ([]billing.Charge, bool, error)
	Clear(ctx context.Context) error
}

// EventStore persists webhook events and their delivery logs.
type EventStore interface {
	Get(ctx context.Context, id string) (webhook.Event, error)
	Create(ctx context.Context, ev webhook.Event) error
	List(ctx context.Context, opts ListOptions) ([]webhook.Event, bool, error)

	// AppendAttempt appends to the event's delivery log. The log is
	// append-only; existing entries are never rewritten.
	AppendAttempt(ctx context.Context, eventID string, attempt webhook.DeliveryAttempt) error
	Clear(ctx context.Context) error
}

// WebhookEndpointStore persists webhook endpoints.
type WebhookEndpointStore interface {
	Get(ctx context.Context, id string) (webhook.Endpoint, error)
	Create(ctx context.Context, ep webhook.Endpoint) error
	Update(ctx context.Context, ep webhook.Endpoint) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOptions) ([]webhook.Endpoint, bool, error)
	Clear(ctx context.Context) error
}
