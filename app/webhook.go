package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/artpar/paymock/adapters/metrics"
	"github.com/artpar/paymock/domain/webhook"
	"github.com/artpar/paymock/ports"
	"github.com/rs/zerolog"
)

// ErrNotEligible is returned when an explicit delivery targets an endpoint
// that is disabled or not subscribed to the event's type.
var ErrNotEligible = errors.New("webhook endpoint not eligible for event type")

// WebhookService signs event payloads and delivers them to registered
// endpoints. Actual HTTP delivery always goes through the chaos
// coordinator's event queue so buffering, duplication and reordering apply
// uniformly, then retries with exponential backoff on failure.
type WebhookService struct {
	endpoints ports.WebhookEndpointStore
	events    ports.EventStore
	chaos     *Coordinator
	clock     ports.Clock
	ids       ports.IDGenerator
	metrics   *metrics.Collector
	logger    zerolog.Logger
	client    *http.Client

	// sleep is swapped out in tests so retries don't take real seconds.
	sleep func(context.Context, time.Duration) error

	shutdownCtx context.Context
	shutdownFn  context.CancelFunc
}

// NewWebhookService creates a new webhook delivery service.
func NewWebhookService(
	endpoints ports.WebhookEndpointStore,
	events ports.EventStore,
	chaosCoordinator *Coordinator,
	clk ports.Clock,
	ids ports.IDGenerator,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *WebhookService {
	shutdownCtx, shutdownFn := context.WithCancel(context.Background())
	return &WebhookService{
		endpoints:   endpoints,
		events:      events,
		chaos:       chaosCoordinator,
		clock:       clk,
		ids:         ids,
		metrics:     collector,
		logger:      logger,
		client:      &http.Client{Timeout: 30 * time.Second},
		sleep:       sleepCtx,
		shutdownCtx: shutdownCtx,
		shutdownFn:  shutdownFn,
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetSleep replaces the backoff sleep function (for testing).
func (s *WebhookService) SetSleep(fn func(context.Context, time.Duration) error) {
	s.sleep = fn
}

// Stop cancels in-flight deliveries.
func (s *WebhookService) Stop() {
	s.shutdownFn()
}

// InflightDelivery is a handle to an asynchronous delivery.
type InflightDelivery struct {
	EventID    string
	EndpointID string
	done       chan struct{}
}

// Done is closed once the delivery has finished, whether it succeeded,
// exhausted its retries or was cancelled.
func (d *InflightDelivery) Done() <-chan struct{} {
	return d.done
}

// DeliverEvent delivers an existing event to a specific endpoint. It fails
// fast when the event or the endpoint does not exist, or when the endpoint
// is not an eligible recipient; otherwise it returns immediately with a
// handle and performs delivery out of band via the chaos event queue.
func (s *WebhookService) DeliverEvent(ctx context.Context, eventID, endpointID string) (*InflightDelivery, error) {
	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	ep, err := s.endpoints.Get(ctx, endpointID)
	if err != nil {
		return nil, fmt.Errorf("webhook endpoint %s: %w", endpointID, err)
	}
	if !webhook.Eligible(ep, ev.Type) {
		return nil, fmt.Errorf("event %s to endpoint %s: %w", eventID, endpointID, ErrNotEligible)
	}

	body, err := s.envelope(ev)
	if err != nil {
		return nil, err
	}

	handle := &InflightDelivery{EventID: ev.ID, EndpointID: ep.ID, done: make(chan struct{})}
	s.chaos.QueueEvent(ev, func(any) {
		defer close(handle.done)
		s.send(s.shutdownCtx, ep, ev.ID, body)
	})
	return handle, nil
}

// DispatchEvent records a new event and fans it out to every eligible
// endpoint. The event record is created even when nobody listens.
func (s *WebhookService) DispatchEvent(ctx context.Context, eventType string, data any) (webhook.Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return webhook.Event{}, fmt.Errorf("marshal event data: %w", err)
	}

	ev := webhook.Event{
		ID:      s.ids.New("evt"),
		Type:    eventType,
		Data:    raw,
		Created: s.clock.Now().Unix(),
	}
	if err := s.events.Create(ctx, ev); err != nil {
		return webhook.Event{}, fmt.Errorf("store event: %w", err)
	}

	recipients, err := s.eligibleEndpoints(ctx, eventType)
	if err != nil {
		return ev, err
	}
	if len(recipients) == 0 {
		s.logger.Debug().Str("event_type", eventType).Msg("no webhook endpoints subscribed to event")
		return ev, nil
	}

	body, err := s.envelope(ev)
	if err != nil {
		return ev, err
	}

	for _, ep := range recipients {
		endpoint := ep
		s.chaos.QueueEvent(ev, func(any) {
			s.send(s.shutdownCtx, endpoint, ev.ID, body)
		})
	}

	s.logger.Info().
		Str("event_type", eventType).
		Str("event_id", ev.ID).
		Int("endpoint_count", len(recipients)).
		Msg("webhook event dispatched")
	return ev, nil
}

// eligibleEndpoints pages through the endpoint store and filters recipients.
func (s *WebhookService) eligibleEndpoints(ctx context.Context, eventType string) ([]webhook.Endpoint, error) {
	var all []webhook.Endpoint
	opts := ports.ListOptions{Limit: 100}
	for {
		page, hasMore, err := s.endpoints.List(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("list webhook endpoints: %w", err)
		}
		all = append(all, page...)
		if !hasMore || len(page) == 0 {
			break
		}
		opts.StartingAfter = page[len(page)-1].ID
	}
	return webhook.FilterEligible(all, eventType), nil
}

// envelope serializes the payload POSTed to endpoints.
func (s *WebhookService) envelope(ev webhook.Event) ([]byte, error) {
	body, err := json.Marshal(struct {
		ID      string          `json:"id"`
		Type    string          `json:"type"`
		Created int64           `json:"created"`
		Data    json.RawMessage `json:"data"`
	}{ev.ID, ev.Type, ev.Created, ev.Data})
	if err != nil {
		return nil, fmt.Errorf("serialize webhook payload: %w", err)
	}
	return body, nil
}

// send performs the HTTP delivery with bounded retries. Every attempt,
// success or failure, is appended to the event's delivery log. After the
// final failed attempt the delivery is abandoned.
func (s *WebhookService) send(ctx context.Context, ep webhook.Endpoint, eventID string, body []byte) {
	for attempt := 1; attempt <= webhook.MaxDeliveryAttempts; attempt++ {
		statusCode, errMsg := s.post(ctx, ep, body)

		now := s.clock.Now().Unix()
		record := webhook.NewAttempt(now, statusCode, errMsg)
		if err := s.events.AppendAttempt(ctx, eventID, record); err != nil {
			s.logger.Error().Err(err).Str("event_id", eventID).Msg("failed to record delivery attempt")
		}
		if s.metrics != nil {
			s.metrics.WebhookAttempt(string(record.Outcome))
		}

		if record.Outcome == webhook.AttemptSucceeded {
			s.logger.Debug().
				Str("event_id", eventID).
				Str("endpoint_id", ep.ID).
				Int("attempt", attempt).
				Msg("webhook delivered")
			return
		}

		s.logger.Warn().
			Str("event_id", eventID).
			Str("endpoint_id", ep.ID).
			Int("attempt", attempt).
			Int("status_code", statusCode).
			Str("error", errMsg).
			Msg("webhook delivery attempt failed")

		if attempt == webhook.MaxDeliveryAttempts {
			s.logger.Warn().
				Str("event_id", eventID).
				Str("endpoint_id", ep.ID).
				Msg("webhook delivery abandoned after final attempt")
			return
		}
		if err := s.sleep(ctx, webhook.BackoffDelay(attempt)); err != nil {
			return
		}
	}
}

// post sends one signed POST. It returns the HTTP status code and an error
// message, zero and non-empty on transport failure.
func (s *WebhookService) post(ctx context.Context, ep webhook.Endpoint, body []byte) (int, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err.Error()
	}

	timestamp := s.clock.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Paymock-Webhook/1.0")
	req.Header.Set("Paymock-Signature", webhook.SignatureHeader(body, ep.Secret, timestamp))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err.Error()
	}
	defer resp.Body.Close()
	return resp.StatusCode, ""
}
