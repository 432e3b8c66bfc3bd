// Package app contains the stateful services of the mock: the chaos
// coordinator, the billing engine, webhook delivery and the idempotency
// cache. Each service owns its state and serializes access internally.
package app

import (
	"math/rand"
	"sync"
	"time"

	"github.com/artpar/paymock/adapters/metrics"
	"github.com/artpar/paymock/domain/chaos"
	"github.com/artpar/paymock/ports"
	"github.com/rs/zerolog"
)

// Coordinator is the process-wide fault-injection authority. It decides
// payment outcomes, simulates API-level faults and mediates asynchronous
// event delivery with configurable buffering, duplication and reordering.
//
// All state is guarded by one mutex; delivery callbacks always run outside
// the lock.
type Coordinator struct {
	mu        sync.Mutex
	cfg       chaos.Config
	overrides map[string]chaos.PaymentOutcome
	stats     chaos.Stats
	buffer    []pendingEvent
	timer     *time.Timer
	rng       *rand.Rand
	clock     ports.Clock
	metrics   *metrics.Collector
	logger    zerolog.Logger
}

// pendingEvent is one buffered event waiting for the window to elapse.
type pendingEvent struct {
	event      any
	deliver    func(any)
	enqueuedAt time.Time
}

// NewCoordinator creates a chaos coordinator with default (zero-chaos)
// configuration. The metrics collector may be nil.
func NewCoordinator(clk ports.Clock, collector *metrics.Collector, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		cfg:       chaos.DefaultConfig(),
		overrides: make(map[string]chaos.PaymentOutcome),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		clock:     clk,
		metrics:   collector,
		logger:    logger,
	}
}

// Seed reseeds the random source (for deterministic tests).
func (c *Coordinator) Seed(seed int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rng = rand.New(rand.NewSource(seed))
}

// Configure deep-merges a partial update into the live configuration.
// Unspecified leaves keep their prior values.
func (c *Coordinator) Configure(u chaos.Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged, err := chaos.Merge(c.cfg, u)
	if err != nil {
		return err
	}
	c.cfg = merged

	c.logger.Info().
		Float64("payment_failure_rate", merged.Payment.FailureRate).
		Int("buffer_window_ms", merged.Events.BufferWindowMS).
		Bool("out_of_order", merged.Events.OutOfOrder).
		Msg("chaos configuration updated")
	return nil
}

// Config returns a read-only snapshot of the configuration.
func (c *Coordinator) Config() chaos.Config {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := c.cfg
	snapshot.Payment.DeclineCodes = append([]string(nil), c.cfg.Payment.DeclineCodes...)
	if c.cfg.Payment.DeclineWeights != nil {
		snapshot.Payment.DeclineWeights = make(map[string]float64, len(c.cfg.Payment.DeclineWeights))
		for k, v := range c.cfg.Payment.DeclineWeights {
			snapshot.Payment.DeclineWeights[k] = v
		}
	}
	if c.cfg.API.EndpointOverrides != nil {
		snapshot.API.EndpointOverrides = make(map[string]string, len(c.cfg.API.EndpointOverrides))
		for k, v := range c.cfg.API.EndpointOverrides {
			snapshot.API.EndpointOverrides[k] = v
		}
	}
	return snapshot
}

// Stats returns a read-only snapshot of the fault counters.
func (c *Coordinator) Stats() chaos.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Reset restores the default configuration, clears per-customer overrides,
// drops buffered events without delivering them and zeroes the counters.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg = chaos.DefaultConfig()
	c.overrides = make(map[string]chaos.PaymentOutcome)
	c.stats = chaos.Stats{}
	c.buffer = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	c.logger.Info().Msg("chaos coordinator reset")
}

// -----------------------------------------------------------------------------
// Payment chaos
// -----------------------------------------------------------------------------

// SetOverride forces the payment outcome for a customer. The override beats
// any configured failure rate until cleared. A failure outcome must carry a
// known decline code.
func (c *Coordinator) SetOverride(customerID string, outcome chaos.PaymentOutcome) error {
	if outcome.Failed && !chaos.ValidDeclineCode(outcome.DeclineCode) {
		return chaos.UnknownDeclineCodeError{Code: outcome.DeclineCode}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[customerID] = outcome

	c.logger.Debug().
		Str("customer", customerID).
		Bool("failed", outcome.Failed).
		Str("decline_code", outcome.DeclineCode).
		Msg("payment override set")
	return nil
}

// ClearOverride removes a customer's forced outcome.
func (c *Coordinator) ClearOverride(customerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.overrides, customerID)
}

// Override returns the forced outcome for a customer, if any.
func (c *Coordinator) Override(customerID string) (chaos.PaymentOutcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	outcome, ok := c.overrides[customerID]
	return outcome, ok
}

// ShouldPaymentFail decides the outcome of a simulated payment for a
// customer. A per-customer override always wins; otherwise the configured
// failure rate is drawn and a decline code picked from the configured set,
// weighted when weights are present.
func (c *Coordinator) ShouldPaymentFail(customerID string) chaos.PaymentOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if outcome, ok := c.overrides[customerID]; ok {
		if outcome.Failed {
			c.countPaymentFailure(outcome.DeclineCode)
		}
		return outcome
	}

	if c.cfg.Payment.FailureRate <= 0 || c.rng.Float64() >= c.cfg.Payment.FailureRate {
		return chaos.Succeed()
	}

	code := chaos.PickDeclineCode(c.cfg.Payment.DeclineCodes, c.cfg.Payment.DeclineWeights, c.rng.Float64())
	c.countPaymentFailure(code)
	return chaos.Fail(code)
}

// countPaymentFailure updates counters. Callers hold c.mu.
func (c *Coordinator) countPaymentFailure(code string) {
	c.stats.PaymentsFailed++
	if c.metrics != nil {
		c.metrics.PaymentFailed(code)
	}
}

// -----------------------------------------------------------------------------
// Event chaos
// -----------------------------------------------------------------------------

// QueueEvent submits an event for asynchronous delivery. With a zero buffer
// window the event is delivered immediately as a single-element batch
// (duplication still applies). With a positive window the event joins the
// buffer and the flush timer is refreshed. The callback runs without the
// coordinator lock held.
func (c *Coordinator) QueueEvent(event any, deliver func(any)) {
	c.mu.Lock()

	pe := pendingEvent{event: event, deliver: deliver, enqueuedAt: c.clock.Now()}

	if c.cfg.Events.BufferWindowMS <= 0 {
		batch := c.prepareBatch([]pendingEvent{pe})
		c.mu.Unlock()
		deliverBatch(batch)
		return
	}

	c.buffer = append(c.buffer, pe)
	window := time.Duration(c.cfg.Events.BufferWindowMS) * time.Millisecond
	if c.timer == nil {
		c.timer = time.AfterFunc(window, c.flushFromTimer)
	} else {
		c.timer.Reset(window)
	}
	if c.metrics != nil {
		c.metrics.EventBuffered()
	}
	c.mu.Unlock()
}

// FlushEvents forces immediate delivery of everything currently buffered and
// cancels the pending flush timer.
func (c *Coordinator) FlushEvents() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	batch := c.takeBuffer()
	c.mu.Unlock()
	deliverBatch(batch)
}

// flushFromTimer is the timer callback. A concurrent explicit flush may have
// emptied the buffer already; that is fine, the batch is just empty.
func (c *Coordinator) flushFromTimer() {
	c.mu.Lock()
	c.timer = nil
	batch := c.takeBuffer()
	c.mu.Unlock()
	deliverBatch(batch)
}

// takeBuffer removes and prepares the buffered batch. Callers hold c.mu.
func (c *Coordinator) takeBuffer() []preparedDelivery {
	buf := c.buffer
	c.buffer = nil
	return c.prepareBatch(buf)
}

// preparedDelivery is one delivery decision made under the lock.
type preparedDelivery struct {
	event     any
	deliver   func(any)
	duplicate bool
}

// prepareBatch applies reordering and duplication decisions to a batch.
// All randomness happens here, under the lock; delivery happens later,
// outside it. Callers hold c.mu.
func (c *Coordinator) prepareBatch(batch []pendingEvent) []preparedDelivery {
	if len(batch) == 0 {
		return nil
	}

	if c.cfg.Events.OutOfOrder && len(batch) > 1 {
		order := c.rng.Perm(len(batch))
		shuffled := make([]pendingEvent, len(batch))
		for i, j := range order {
			shuffled[i] = batch[j]
			if i != j {
				c.stats.EventsReordered++
				if c.metrics != nil {
					c.metrics.EventReordered()
				}
			}
		}
		batch = shuffled
	}

	prepared := make([]preparedDelivery, len(batch))
	for i, pe := range batch {
		dup := c.cfg.Events.DuplicateRate > 0 && c.rng.Float64() < c.cfg.Events.DuplicateRate
		if dup {
			c.stats.EventsDuplicated++
			if c.metrics != nil {
				c.metrics.EventDuplicated()
			}
		}
		prepared[i] = preparedDelivery{event: pe.event, deliver: pe.deliver, duplicate: dup}
	}
	return prepared
}

// deliverBatch runs the delivery callbacks, duplicating where decided.
func deliverBatch(batch []preparedDelivery) {
	for _, d := range batch {
		d.deliver(d.event)
		if d.duplicate {
			d.deliver(d.event)
		}
	}
}

// -----------------------------------------------------------------------------
// API chaos
// -----------------------------------------------------------------------------

// ShouldAPIFail decides whether a simulated API call on the given endpoint
// path should fault. An exact-path endpoint override wins; otherwise the
// timeout, rate-limit and error probabilities are drawn independently and,
// when more than one fires, resolved in the fixed priority order
// timeout > rate_limit > server_error.
func (c *Coordinator) ShouldAPIFail(endpointPath string) chaos.APIOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if kind, ok := c.cfg.API.EndpointOverrides[endpointPath]; ok {
		return c.countAPIOutcome(chaos.APIOutcomeKind(kind), endpointPath)
	}

	timeout := c.cfg.API.TimeoutRate > 0 && c.rng.Float64() < c.cfg.API.TimeoutRate
	rateLimit := c.cfg.API.RateLimitRate > 0 && c.rng.Float64() < c.cfg.API.RateLimitRate
	serverErr := c.cfg.API.ErrorRate > 0 && c.rng.Float64() < c.cfg.API.ErrorRate

	switch {
	case timeout:
		return c.countAPIOutcome(chaos.OutcomeTimeout, endpointPath)
	case rateLimit:
		return c.countAPIOutcome(chaos.OutcomeRateLimit, endpointPath)
	case serverErr:
		return c.countAPIOutcome(chaos.OutcomeServerError, endpointPath)
	default:
		return chaos.APIOutcome{Kind: chaos.OutcomeOK}
	}
}

// countAPIOutcome updates counters for a decided outcome. Callers hold c.mu.
func (c *Coordinator) countAPIOutcome(kind chaos.APIOutcomeKind, path string) chaos.APIOutcome {
	outcome := chaos.APIOutcome{Kind: kind}
	switch kind {
	case chaos.OutcomeTimeout:
		c.stats.APITimeouts++
		outcome.TimeoutMS = c.cfg.API.TimeoutMS
	case chaos.OutcomeRateLimit:
		c.stats.APIRateLimited++
	case chaos.OutcomeServerError:
		c.stats.APIErrored++
	default:
		return outcome
	}
	if c.metrics != nil {
		c.metrics.APIFault(string(kind))
	}
	c.logger.Debug().
		Str("path", path).
		Str("kind", string(kind)).
		Msg("api fault injected")
	return outcome
}
