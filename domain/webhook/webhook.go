// Package webhook provides value types and pure functions for webhook
// endpoints, events and signed delivery. All types are immutable values;
// all functions are pure.
package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Event types emitted by the mock. Endpoints may also subscribe to the
// wildcard to receive everything.
const (
	EventWildcard = "*"

	EventChargeSucceeded      = "charge.succeeded"
	EventChargeFailed         = "charge.failed"
	EventCustomerCreated      = "customer.created"
	EventCustomerDeleted      = "customer.deleted"
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoiceCreated       = "invoice.created"
	EventInvoicePaid          = "invoice.paid"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

// EndpointStatus represents whether an endpoint receives deliveries.
type EndpointStatus string

const (
	EndpointEnabled  EndpointStatus = "enabled"
	EndpointDisabled EndpointStatus = "disabled"
)

// Endpoint represents a registered webhook receiver (value type).
type Endpoint struct {
	ID            string         `json:"id"`
	URL           string         `json:"url"`
	Secret        string         `json:"secret"`
	EnabledEvents []string       `json:"enabled_events"`
	Status        EndpointStatus `json:"status"`
	Created       int64          `json:"created"`
}

// AttemptOutcome classifies one delivery attempt.
type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "succeeded"
	AttemptFailed    AttemptOutcome = "failed"
)

// DeliveryAttempt records one delivery attempt against an endpoint.
// The attempt log on an event is append-only.
type DeliveryAttempt struct {
	Timestamp  int64          `json:"timestamp"`
	Outcome    AttemptOutcome `json:"outcome"`
	StatusCode int            `json:"status_code,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Event represents an occurrence to be delivered to endpoints (value type).
type Event struct {
	ID               string            `json:"id"`
	Type             string            `json:"type"`
	Data             json.RawMessage   `json:"data"`
	Created          int64             `json:"created"`
	DeliveryAttempts []DeliveryAttempt `json:"delivery_attempts"`
}

// MaxDeliveryAttempts is the total number of delivery attempts per endpoint
// before a delivery is abandoned.
const MaxDeliveryAttempts = 5

// BackoffSchedule returns the delays slept between consecutive delivery
// attempts: delay n precedes attempt n+1.
func BackoffSchedule() []time.Duration {
	return []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}
}

// BackoffDelay returns the delay to sleep after failed attempt n (1-based).
// Attempts past the schedule reuse its last entry.
// This is a PURE function.
func BackoffDelay(attempt int) time.Duration {
	schedule := BackoffSchedule()
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return schedule[idx]
}

// GenerateSecret generates a random endpoint signing secret.
func GenerateSecret() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return "whsec_" + hex.EncodeToString(bytes)
}

// SignPayload signs content with the endpoint secret using HMAC-SHA256 and
// returns the 64-character lowercase hex digest.
// This is a PURE function.
func SignPayload(content []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(content)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader builds the delivery signature header value:
// t=<unix_timestamp>,v1=<hex_hmac_sha256("<timestamp>.<body>", secret)>.
// Client libraries verify this format byte for byte.
// This is a PURE function.
func SignatureHeader(body []byte, secret string, timestamp int64) string {
	signed := fmt.Sprintf("%d.%s", timestamp, body)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, SignPayload([]byte(signed), secret))
}

// VerifySignatureHeader checks a signature header against a body and secret.
// This is a PURE function.
func VerifySignatureHeader(header string, body []byte, secret string) bool {
	var timestamp int64
	var v1 string
	if _, err := fmt.Sscanf(header, "t=%d,v1=%s", &timestamp, &v1); err != nil {
		return false
	}
	expected := SignatureHeader(body, secret, timestamp)
	return hmac.Equal([]byte(header), []byte(expected))
}

// Eligible reports whether an endpoint should receive an event type.
// Disabled endpoints receive nothing; enabled ones receive events they
// subscribe to, or everything under the wildcard.
// This is a PURE function.
func Eligible(ep Endpoint, eventType string) bool {
	if ep.Status != EndpointEnabled {
		return false
	}
	for _, e := range ep.EnabledEvents {
		if e == EventWildcard || e == eventType {
			return true
		}
	}
	return false
}

// FilterEligible returns the endpoints that should receive an event type.
// This is a PURE function.
func FilterEligible(endpoints []Endpoint, eventType string) []Endpoint {
	var result []Endpoint
	for _, ep := range endpoints {
		if Eligible(ep, eventType) {
			result = append(result, ep)
		}
	}
	return result
}

// NewAttempt builds the log record for one delivery attempt.
// statusCode is zero for transport failures.
// This is a PURE function.
func NewAttempt(now int64, statusCode int, errMsg string) DeliveryAttempt {
	a := DeliveryAttempt{Timestamp: now, StatusCode: statusCode}
	if errMsg == "" && statusCode >= 200 && statusCode < 300 {
		a.Outcome = AttemptSucceeded
	} else {
		a.Outcome = AttemptFailed
		a.Error = errMsg
	}
	return a
}

// ValidateURL validates an endpoint URL.
// This is a PURE function.
func ValidateURL(url string) (bool, string) {
	if url == "" {
		return false, "URL is required"
	}
	if len(url) < 8 {
		return false, "URL is too short"
	}
	if url[:8] != "https://" && url[:7] != "http://" {
		return false, "URL must start with https:// or http://"
	}
	return true, ""
}

// ValidateEvents validates a subscription list. The wildcard is allowed on
// its own or alongside concrete types.
// This is a PURE function.
func ValidateEvents(events []string) (bool, string) {
	if len(events) == 0 {
		return false, "At least one event type is required"
	}
	valid := map[string]bool{EventWildcard: true}
	for _, t := range AllEventTypes() {
		valid[t] = true
	}
	for _, e := range events {
		if !valid[e] {
			return false, "Invalid event type: " + e
		}
	}
	return true, ""
}

// AllEventTypes returns all concrete event types (the wildcard excluded).
func AllEventTypes() []string {
	return []string{
		EventChargeSucceeded,
		EventChargeFailed,
		EventCustomerCreated,
		EventCustomerDeleted,
		EventSubscriptionCreated,
		EventSubscriptionUpdated,
		EventSubscriptionDeleted,
		EventInvoiceCreated,
		EventInvoicePaid,
		EventInvoicePaymentFailed,
	}
}
