package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/artpar/paymock/adapters/clock"
	"github.com/artpar/paymock/adapters/idgen"
	"github.com/artpar/paymock/adapters/memory"
	"github.com/artpar/paymock/app"
	"github.com/artpar/paymock/domain/webhook"
	"github.com/artpar/paymock/ports"
	"github.com/rs/zerolog"
)

// hookReceiver records webhook POSTs and answers with a fixed status.
type hookReceiver struct {
	mu       sync.Mutex
	status   int
	bodies   [][]byte
	headers  []http.Header
	received int
}

func (r *hookReceiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.bodies = append(r.bodies, body)
	r.headers = append(r.headers, req.Header.Clone())
	r.received++
	status := r.status
	r.mu.Unlock()
	w.WriteHeader(status)
}

func (r *hookReceiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received
}

type webhookFixture struct {
	service   *app.WebhookService
	endpoints *memory.WebhookEndpointStore
	events    *memory.EventStore
	clock     *clock.Virtual
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	clk := clock.New()
	clk.SetManual(time.Unix(1_700_000_000, 0))

	coordinator := app.NewCoordinator(clk, nil, zerolog.Nop())
	coordinator.Seed(1)

	f := &webhookFixture{
		endpoints: memory.NewWebhookEndpointStore(),
		events:    memory.NewEventStore(),
		clock:     clk,
	}
	f.service = app.NewWebhookService(
		f.endpoints, f.events,
		coordinator, clk, idgen.NewSequential(), nil, zerolog.Nop(),
	)
	f.service.SetSleep(func(context.Context, time.Duration) error { return nil })
	t.Cleanup(f.service.Stop)
	return f
}

func (f *webhookFixture) addEndpoint(t *testing.T, url, secret string, events ...string) webhook.Endpoint {
	t.Helper()
	ep := webhook.Endpoint{
		ID:            "we_" + secret,
		URL:           url,
		Secret:        secret,
		Status:        webhook.EndpointEnabled,
		EnabledEvents: events,
	}
	if err := f.endpoints.Create(context.Background(), ep); err != nil {
		t.Fatalf("create endpoint: %v", err)
	}
	return ep
}

func TestDispatchEvent_DeliversSignedPayload(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture(t)

	receiver := &hookReceiver{status: http.StatusOK}
	server := httptest.NewServer(receiver)
	defer server.Close()

	const secret = "whsec_test"
	f.addEndpoint(t, server.URL, secret, webhook.EventWildcard)

	ev, err := f.service.DispatchEvent(ctx, webhook.EventChargeSucceeded, map[string]string{"id": "ch_1"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if receiver.count() != 1 {
		t.Fatalf("received %d requests, want 1", receiver.count())
	}

	receiver.mu.Lock()
	body := receiver.bodies[0]
	header := receiver.headers[0]
	receiver.mu.Unlock()

	if !webhook.VerifySignatureHeader(header.Get("Paymock-Signature"), body, secret) {
		t.Errorf("signature %q does not verify against body", header.Get("Paymock-Signature"))
	}
	if ct := header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var envelope struct {
		ID      string          `json:"id"`
		Type    string          `json:"type"`
		Created int64           `json:"created"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if envelope.ID != ev.ID || envelope.Type != webhook.EventChargeSucceeded {
		t.Errorf("payload envelope = %+v, want event %s", envelope, ev.ID)
	}

	stored, err := f.events.Get(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if len(stored.DeliveryAttempts) != 1 {
		t.Fatalf("attempt log = %d entries, want 1", len(stored.DeliveryAttempts))
	}
	if stored.DeliveryAttempts[0].Outcome != webhook.AttemptSucceeded {
		t.Errorf("attempt outcome = %q", stored.DeliveryAttempts[0].Outcome)
	}
}

func TestDispatchEvent_SkipsIneligibleEndpoints(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture(t)

	receiver := &hookReceiver{status: http.StatusOK}
	server := httptest.NewServer(receiver)
	defer server.Close()

	f.addEndpoint(t, server.URL, "only_invoices", webhook.EventInvoicePaid)
	disabled := f.addEndpoint(t, server.URL, "disabled", webhook.EventWildcard)
	disabled.Status = webhook.EndpointDisabled
	if err := f.endpoints.Update(ctx, disabled); err != nil {
		t.Fatalf("disable endpoint: %v", err)
	}

	if _, err := f.service.DispatchEvent(ctx, webhook.EventChargeSucceeded, map[string]string{"id": "ch_1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if receiver.count() != 0 {
		t.Errorf("ineligible endpoints received %d requests", receiver.count())
	}

	if _, err := f.service.DispatchEvent(ctx, webhook.EventInvoicePaid, map[string]string{"id": "in_1"}); err != nil {
		t.Fatalf("dispatch invoice event: %v", err)
	}
	if receiver.count() != 1 {
		t.Errorf("subscribed endpoint received %d requests, want 1", receiver.count())
	}
}

func TestDispatchEvent_RecordsEventWithoutListeners(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture(t)

	ev, err := f.service.DispatchEvent(ctx, webhook.EventCustomerCreated, map[string]string{"id": "cus_1"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := f.events.Get(ctx, ev.ID); err != nil {
		t.Errorf("event not recorded: %v", err)
	}
}

func TestDeliverEvent_RetriesUntilExhausted(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture(t)

	receiver := &hookReceiver{status: http.StatusInternalServerError}
	server := httptest.NewServer(receiver)
	defer server.Close()

	var slept []time.Duration
	f.service.SetSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	ep := f.addEndpoint(t, server.URL, "retry", webhook.EventWildcard)
	ev := webhook.Event{ID: "evt_1", Type: webhook.EventChargeFailed, Data: []byte(`{}`), Created: 1}
	if err := f.events.Create(ctx, ev); err != nil {
		t.Fatalf("create event: %v", err)
	}

	handle, err := f.service.DeliverEvent(ctx, ev.ID, ep.ID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	select {
	case <-handle.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("delivery never finished")
	}

	if receiver.count() != webhook.MaxDeliveryAttempts {
		t.Errorf("received %d requests, want %d", receiver.count(), webhook.MaxDeliveryAttempts)
	}

	stored, err := f.events.Get(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if len(stored.DeliveryAttempts) != webhook.MaxDeliveryAttempts {
		t.Fatalf("attempt log = %d entries, want %d", len(stored.DeliveryAttempts), webhook.MaxDeliveryAttempts)
	}
	for i, a := range stored.DeliveryAttempts {
		if a.Outcome != webhook.AttemptFailed || a.StatusCode != http.StatusInternalServerError {
			t.Errorf("attempt %d = %+v, want failed with 500", i, a)
		}
	}

	// Backoff between attempts, none after the last.
	want := webhook.BackoffSchedule()[:webhook.MaxDeliveryAttempts-1]
	if len(slept) != len(want) {
		t.Fatalf("slept %d times, want %d", len(slept), len(want))
	}
	for i, d := range slept {
		if d != want[i] {
			t.Errorf("backoff %d = %v, want %v", i, d, want[i])
		}
	}
}

func TestDeliverEvent_RecoversMidRetry(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture(t)

	receiver := &hookReceiver{status: http.StatusServiceUnavailable}
	server := httptest.NewServer(receiver)
	defer server.Close()

	f.service.SetSleep(func(context.Context, time.Duration) error {
		receiver.mu.Lock()
		receiver.status = http.StatusOK
		receiver.mu.Unlock()
		return nil
	})

	ep := f.addEndpoint(t, server.URL, "flaky", webhook.EventWildcard)
	ev := webhook.Event{ID: "evt_1", Type: webhook.EventInvoicePaid, Data: []byte(`{}`), Created: 1}
	if err := f.events.Create(ctx, ev); err != nil {
		t.Fatalf("create event: %v", err)
	}

	handle, err := f.service.DeliverEvent(ctx, ev.ID, ep.ID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	<-handle.Done()

	stored, _ := f.events.Get(ctx, ev.ID)
	if len(stored.DeliveryAttempts) != 2 {
		t.Fatalf("attempt log = %d entries, want failure then success", len(stored.DeliveryAttempts))
	}
	if stored.DeliveryAttempts[1].Outcome != webhook.AttemptSucceeded {
		t.Errorf("second attempt outcome = %q, want succeeded", stored.DeliveryAttempts[1].Outcome)
	}
}

func TestDeliverEvent_UnknownIDs(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture(t)

	ep := f.addEndpoint(t, "https://example.com/hooks", "known", webhook.EventWildcard)
	ev := webhook.Event{ID: "evt_1", Type: webhook.EventInvoicePaid, Data: []byte(`{}`), Created: 1}
	if err := f.events.Create(ctx, ev); err != nil {
		t.Fatalf("create event: %v", err)
	}

	if _, err := f.service.DeliverEvent(ctx, "evt_ghost", ep.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("unknown event: err = %v, want ErrNotFound", err)
	}
	if _, err := f.service.DeliverEvent(ctx, ev.ID, "we_ghost"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("unknown endpoint: err = %v, want ErrNotFound", err)
	}
}

func TestDeliverEvent_NotEligible(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture(t)

	ep := f.addEndpoint(t, "https://example.com/hooks", "narrow", webhook.EventInvoicePaid)
	ev := webhook.Event{ID: "evt_1", Type: webhook.EventChargeSucceeded, Data: []byte(`{}`), Created: 1}
	if err := f.events.Create(ctx, ev); err != nil {
		t.Fatalf("create event: %v", err)
	}

	if _, err := f.service.DeliverEvent(ctx, ev.ID, ep.ID); !errors.Is(err, app.ErrNotEligible) {
		t.Errorf("err = %v, want ErrNotEligible", err)
	}
}
