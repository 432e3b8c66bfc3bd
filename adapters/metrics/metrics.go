// Package metrics provides Prometheus metrics collection for paymock.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for paymock.
type Collector struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Chaos metrics
	PaymentsFailed   *prometheus.CounterVec
	APIFaults        *prometheus.CounterVec
	EventsBuffered   prometheus.Counter
	EventsDuplicated prometheus.Counter
	EventsReordered  prometheus.Counter

	// Webhook metrics
	WebhookAttempts *prometheus.CounterVec

	// Billing metrics
	BillingPasses        prometheus.Counter
	BillingSubscriptions *prometheus.CounterVec
}

// New creates a new metrics collector with all metrics registered on the
// default registry.
func New() *Collector {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a collector registered on reg (for tests, which
// must not double-register on the default registry).
func NewWithRegisterer(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paymock",
				Name:      "requests_total",
				Help:      "Total number of API requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "paymock",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		PaymentsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paymock",
				Name:      "payments_failed_total",
				Help:      "Total simulated payment failures by decline code",
			},
			[]string{"decline_code"},
		),
		APIFaults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paymock",
				Name:      "api_faults_total",
				Help:      "Total injected API faults by kind",
			},
			[]string{"kind"},
		),
		EventsBuffered: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "paymock",
				Name:      "events_buffered_total",
				Help:      "Total events held in the chaos buffer",
			},
		),
		EventsDuplicated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "paymock",
				Name:      "events_duplicated_total",
				Help:      "Total events delivered twice by chaos",
			},
		),
		EventsReordered: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "paymock",
				Name:      "events_reordered_total",
				Help:      "Total events delivered out of insertion order",
			},
		),
		WebhookAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paymock",
				Name:      "webhook_attempts_total",
				Help:      "Total webhook delivery attempts by outcome",
			},
			[]string{"outcome"},
		),
		BillingPasses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "paymock",
				Name:      "billing_passes_total",
				Help:      "Total billing passes run",
			},
		),
		BillingSubscriptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paymock",
				Name:      "billing_subscriptions_total",
				Help:      "Total due subscriptions processed by payment outcome",
			},
			[]string{"outcome"},
		),
	}
}

// PaymentFailed records a simulated payment failure.
func (c *Collector) PaymentFailed(declineCode string) {
	c.PaymentsFailed.WithLabelValues(declineCode).Inc()
}

// APIFault records an injected API fault.
func (c *Collector) APIFault(kind string) {
	c.APIFaults.WithLabelValues(kind).Inc()
}

// EventBuffered records an event entering the chaos buffer.
func (c *Collector) EventBuffered() {
	c.EventsBuffered.Inc()
}

// EventDuplicated records a chaos-duplicated delivery.
func (c *Collector) EventDuplicated() {
	c.EventsDuplicated.Inc()
}

// EventReordered records an event delivered out of order.
func (c *Collector) EventReordered() {
	c.EventsReordered.Inc()
}

// WebhookAttempt records one webhook delivery attempt.
func (c *Collector) WebhookAttempt(outcome string) {
	c.WebhookAttempts.WithLabelValues(outcome).Inc()
}

// BillingPass records a completed billing pass with its per-subscription
// outcome counts.
func (c *Collector) BillingPass(succeeded, failed int) {
	c.BillingPasses.Inc()
	c.BillingSubscriptions.WithLabelValues("succeeded").Add(float64(succeeded))
	c.BillingSubscriptions.WithLabelValues("failed").Add(float64(failed))
}

// Request records a finished HTTP request.
func (c *Collector) Request(method, path, status string, seconds float64) {
	c.RequestsTotal.WithLabelValues(method, path, status).Inc()
	c.RequestDuration.WithLabelValues(method, path, status).Observe(seconds)
}
