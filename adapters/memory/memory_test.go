package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/artpar/paymock/adapters/memory"
	"github.com/artpar/paymock/domain/billing"
	"github.com/artpar/paymock/domain/webhook"
	"github.com/artpar/paymock/ports"
)

func TestCustomerStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCustomerStore()

	if _, err := s.Get(ctx, "cus_missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("get missing: err = %v, want ErrNotFound", err)
	}

	c := ports.Customer{ID: "cus_1", Email: "jo@example.com", Created: 100}
	if err := s.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, "cus_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != c {
		t.Errorf("get = %+v, want %+v", got, c)
	}

	if err := s.Delete(ctx, "cus_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "cus_1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("get after delete: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "cus_1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("double delete: err = %v, want ErrNotFound", err)
	}
}

func TestCustomerStore_Pagination(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCustomerStore()

	for i := 0; i < 25; i++ {
		if err := s.Create(ctx, ports.Customer{ID: fmt.Sprintf("cus_%02d", i)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	page, hasMore, err := s.List(ctx, ports.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 10 || !hasMore {
		t.Fatalf("first page: %d records, hasMore=%v", len(page), hasMore)
	}
	if page[0].ID != "cus_00" {
		t.Errorf("first record = %s, want cus_00 (insertion order)", page[0].ID)
	}

	page, hasMore, err = s.List(ctx, ports.ListOptions{Limit: 10, StartingAfter: page[9].ID})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page) != 10 || !hasMore {
		t.Fatalf("second page: %d records, hasMore=%v", len(page), hasMore)
	}
	if page[0].ID != "cus_10" {
		t.Errorf("second page starts at %s, want cus_10", page[0].ID)
	}

	page, hasMore, err = s.List(ctx, ports.ListOptions{Limit: 10, StartingAfter: page[9].ID})
	if err != nil {
		t.Fatalf("list page 3: %v", err)
	}
	if len(page) != 5 || hasMore {
		t.Fatalf("last page: %d records, hasMore=%v", len(page), hasMore)
	}
}

func TestSubscriptionStore_UpdateAndAll(t *testing.T) {
	ctx := context.Background()
	s := memory.NewSubscriptionStore()

	sub := billing.Subscription{ID: "sub_1", Status: billing.SubscriptionStatusActive}
	if err := s.Create(ctx, sub); err != nil {
		t.Fatalf("create: %v", err)
	}

	sub.Status = billing.SubscriptionStatusPastDue
	if err := s.Update(ctx, sub); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.Get(ctx, "sub_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != billing.SubscriptionStatusPastDue {
		t.Errorf("status = %q, want past_due", got.Status)
	}

	if err := s.Update(ctx, billing.Subscription{ID: "sub_ghost"}); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("update missing: err = %v, want ErrNotFound", err)
	}

	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("all returned %d records, want 1", len(all))
	}
}

func TestInvoiceStore_OpenForSubscription(t *testing.T) {
	ctx := context.Background()
	s := memory.NewInvoiceStore()

	paid := billing.Invoice{ID: "in_1", Subscription: "sub_1", Status: billing.InvoiceStatusPaid}
	open := billing.Invoice{ID: "in_2", Subscription: "sub_1", Status: billing.InvoiceStatusOpen}
	other := billing.Invoice{ID: "in_3", Subscription: "sub_2", Status: billing.InvoiceStatusOpen}
	for _, inv := range []billing.Invoice{paid, open, other} {
		if err := s.Create(ctx, inv); err != nil {
			t.Fatalf("create %s: %v", inv.ID, err)
		}
	}

	got, err := s.OpenForSubscription(ctx, "sub_1")
	if err != nil {
		t.Fatalf("open for sub_1: %v", err)
	}
	if got.ID != "in_2" {
		t.Errorf("open invoice = %s, want in_2", got.ID)
	}

	if _, err := s.OpenForSubscription(ctx, "sub_3"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("open for unknown sub: err = %v, want ErrNotFound", err)
	}
}

func TestEventStore_AppendAttempt(t *testing.T) {
	ctx := context.Background()
	s := memory.NewEventStore()

	ev := webhook.Event{ID: "evt_1", Type: webhook.EventInvoicePaid}
	if err := s.Create(ctx, ev); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		attempt := webhook.NewAttempt(int64(100+i), 500, "")
		if err := s.AppendAttempt(ctx, "evt_1", attempt); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := s.Get(ctx, "evt_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.DeliveryAttempts) != 3 {
		t.Fatalf("attempt log has %d entries, want 3", len(got.DeliveryAttempts))
	}
	for i, a := range got.DeliveryAttempts {
		if a.Timestamp != int64(100+i) {
			t.Errorf("attempt %d timestamp = %d, want %d (append-only order)", i, a.Timestamp, 100+i)
		}
	}

	// Mutating the returned copy must not touch stored state.
	got.DeliveryAttempts[0].Timestamp = 999
	again, _ := s.Get(ctx, "evt_1")
	if again.DeliveryAttempts[0].Timestamp != 100 {
		t.Error("caller mutation leaked into store")
	}

	if err := s.AppendAttempt(ctx, "evt_ghost", webhook.NewAttempt(1, 200, "")); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("append to missing event: err = %v, want ErrNotFound", err)
	}
}

func TestWebhookEndpointStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := memory.NewWebhookEndpointStore()

	ep := webhook.Endpoint{
		ID:            "we_1",
		URL:           "https://example.com/hooks",
		Status:        webhook.EndpointEnabled,
		EnabledEvents: []string{webhook.EventWildcard},
	}
	if err := s.Create(ctx, ep); err != nil {
		t.Fatalf("create: %v", err)
	}

	ep.Status = webhook.EndpointDisabled
	if err := s.Update(ctx, ep); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.Get(ctx, "we_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != webhook.EndpointDisabled {
		t.Errorf("status = %q, want disabled", got.Status)
	}

	if err := s.Delete(ctx, "we_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "we_1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestStores_Clear(t *testing.T) {
	ctx := context.Background()

	customers := memory.NewCustomerStore()
	charges := memory.NewChargeStore()
	customers.Create(ctx, ports.Customer{ID: "cus_1"})
	charges.Create(ctx, billing.Charge{ID: "ch_1"})

	if err := customers.Clear(ctx); err != nil {
		t.Fatalf("clear customers: %v", err)
	}
	if err := charges.Clear(ctx); err != nil {
		t.Fatalf("clear charges: %v", err)
	}

	if list, _, _ := customers.List(ctx, ports.ListOptions{}); len(list) != 0 {
		t.Error("customers survived clear")
	}
	if list, _, _ := charges.List(ctx, ports.ListOptions{}); len(list) != 0 {
		t.Error("charges survived clear")
	}
}

func TestStores_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := memory.NewChargeStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("ch_%d_%d", n, j)
				s.Create(ctx, billing.Charge{ID: id})
				s.Get(ctx, id)
				s.List(ctx, ports.ListOptions{Limit: 5})
			}
		}(i)
	}
	wg.Wait()

	all, _, err := s.List(ctx, ports.ListOptions{Limit: 100})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 100 {
		t.Errorf("page of 100 returned %d records", len(all))
	}
}
