// Package chaos provides value types and pure functions for fault injection.
// The stateful coordinator lives in app; everything here is data and math.
package chaos

import "fmt"

// PaymentOutcome is the result of a simulated payment decision.
type PaymentOutcome struct {
	Failed      bool
	DeclineCode string
}

// Succeed returns a successful payment outcome.
func Succeed() PaymentOutcome {
	return PaymentOutcome{}
}

// Fail returns a failed payment outcome with the given decline code.
func Fail(code string) PaymentOutcome {
	return PaymentOutcome{Failed: true, DeclineCode: code}
}

// APIOutcomeKind classifies a simulated API-level fault.
type APIOutcomeKind string

const (
	OutcomeOK          APIOutcomeKind = "ok"
	OutcomeTimeout     APIOutcomeKind = "timeout"
	OutcomeRateLimit   APIOutcomeKind = "rate_limit"
	OutcomeServerError APIOutcomeKind = "server_error"
)

// APIOutcome is the result of a simulated API fault decision.
// TimeoutMS is only meaningful when Kind is OutcomeTimeout; the caller is
// responsible for honoring the delay, the coordinator never blocks.
type APIOutcome struct {
	Kind      APIOutcomeKind
	TimeoutMS int
}

// PaymentConfig controls simulated payment failures.
type PaymentConfig struct {
	FailureRate    float64            `json:"failure_rate" yaml:"failure_rate"`
	DeclineCodes   []string           `json:"decline_codes" yaml:"decline_codes"`
	DeclineWeights map[string]float64 `json:"decline_weights" yaml:"decline_weights"`
}

// EventsConfig controls asynchronous event delivery chaos.
type EventsConfig struct {
	BufferWindowMS int     `json:"buffer_window_ms" yaml:"buffer_window_ms"`
	OutOfOrder     bool    `json:"out_of_order" yaml:"out_of_order"`
	DuplicateRate  float64 `json:"duplicate_rate" yaml:"duplicate_rate"`
}

// APIConfig controls simulated API-level faults.
type APIConfig struct {
	TimeoutRate       float64           `json:"timeout_rate" yaml:"timeout_rate"`
	TimeoutMS         int               `json:"timeout_ms" yaml:"timeout_ms"`
	RateLimitRate     float64           `json:"rate_limit_rate" yaml:"rate_limit_rate"`
	ErrorRate         float64           `json:"error_rate" yaml:"error_rate"`
	EndpointOverrides map[string]string `json:"endpoint_overrides" yaml:"endpoint_overrides"`
}

// Config is the full chaos configuration.
type Config struct {
	Payment PaymentConfig `json:"payment" yaml:"payment"`
	Events  EventsConfig  `json:"events" yaml:"events"`
	API     APIConfig     `json:"api" yaml:"api"`
}

// DefaultTimeoutMS is the simulated timeout delay when none is configured.
const DefaultTimeoutMS = 30000

// DefaultConfig returns the zero-chaos configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{TimeoutMS: DefaultTimeoutMS},
	}
}

// Stats holds monotonically increasing fault counters.
// Counters reset together with the configuration.
type Stats struct {
	PaymentsFailed   uint64 `json:"payments_failed"`
	EventsDuplicated uint64 `json:"events_duplicated"`
	EventsReordered  uint64 `json:"events_reordered"`
	APITimeouts      uint64 `json:"api_timeouts"`
	APIRateLimited   uint64 `json:"api_rate_limited"`
	APIErrored       uint64 `json:"api_errored"`
}

// PaymentUpdate is a partial update to PaymentConfig. Nil fields keep the
// prior value.
type PaymentUpdate struct {
	FailureRate    *float64           `json:"failure_rate" yaml:"failure_rate"`
	DeclineCodes   []string           `json:"decline_codes" yaml:"decline_codes"`
	DeclineWeights map[string]float64 `json:"decline_weights" yaml:"decline_weights"`
}

// EventsUpdate is a partial update to EventsConfig.
type EventsUpdate struct {
	BufferWindowMS *int     `json:"buffer_window_ms" yaml:"buffer_window_ms"`
	OutOfOrder     *bool    `json:"out_of_order" yaml:"out_of_order"`
	DuplicateRate  *float64 `json:"duplicate_rate" yaml:"duplicate_rate"`
}

// APIUpdate is a partial update to APIConfig.
type APIUpdate struct {
	TimeoutRate       *float64          `json:"timeout_rate" yaml:"timeout_rate"`
	TimeoutMS         *int              `json:"timeout_ms" yaml:"timeout_ms"`
	RateLimitRate     *float64          `json:"rate_limit_rate" yaml:"rate_limit_rate"`
	ErrorRate         *float64          `json:"error_rate" yaml:"error_rate"`
	EndpointOverrides map[string]string `json:"endpoint_overrides" yaml:"endpoint_overrides"`
}

// Update is a partial update to Config. Nil sections keep prior values;
// updates deep-merge, they never replace the configuration wholesale.
type Update struct {
	Payment *PaymentUpdate `json:"payment" yaml:"payment"`
	Events  *EventsUpdate  `json:"events" yaml:"events"`
	API     *APIUpdate     `json:"api" yaml:"api"`
}

// Merge applies a partial update to a configuration and validates the result.
// This is a PURE function - returns a new Config.
func Merge(cfg Config, u Update) (Config, error) {
	if p := u.Payment; p != nil {
		if p.FailureRate != nil {
			if err := validateRate("payment.failure_rate", *p.FailureRate); err != nil {
				return cfg, err
			}
			cfg.Payment.FailureRate = *p.FailureRate
		}
		if p.DeclineCodes != nil {
			for _, code := range p.DeclineCodes {
				if !ValidDeclineCode(code) {
					return cfg, UnknownDeclineCodeError{Code: code}
				}
			}
			cfg.Payment.DeclineCodes = append([]string(nil), p.DeclineCodes...)
		}
		if p.DeclineWeights != nil {
			weights := make(map[string]float64, len(p.DeclineWeights))
			for code, w := range p.DeclineWeights {
				if !ValidDeclineCode(code) {
					return cfg, UnknownDeclineCodeError{Code: code}
				}
				if w < 0 {
					return cfg, fmt.Errorf("chaos: negative weight %v for decline code %q", w, code)
				}
				weights[code] = w
			}
			cfg.Payment.DeclineWeights = weights
		}
	}

	if e := u.Events; e != nil {
		if e.BufferWindowMS != nil {
			if *e.BufferWindowMS < 0 {
				return cfg, fmt.Errorf("chaos: events.buffer_window_ms must be >= 0, got %d", *e.BufferWindowMS)
			}
			cfg.Events.BufferWindowMS = *e.BufferWindowMS
		}
		if e.OutOfOrder != nil {
			cfg.Events.OutOfOrder = *e.OutOfOrder
		}
		if e.DuplicateRate != nil {
			if err := validateRate("events.duplicate_rate", *e.DuplicateRate); err != nil {
				return cfg, err
			}
			cfg.Events.DuplicateRate = *e.DuplicateRate
		}
	}

	if a := u.API; a != nil {
		if a.TimeoutRate != nil {
			if err := validateRate("api.timeout_rate", *a.TimeoutRate); err != nil {
				return cfg, err
			}
			cfg.API.TimeoutRate = *a.TimeoutRate
		}
		if a.TimeoutMS != nil {
			if *a.TimeoutMS < 0 {
				return cfg, fmt.Errorf("chaos: api.timeout_ms must be >= 0, got %d", *a.TimeoutMS)
			}
			cfg.API.TimeoutMS = *a.TimeoutMS
		}
		if a.RateLimitRate != nil {
			if err := validateRate("api.rate_limit_rate", *a.RateLimitRate); err != nil {
				return cfg, err
			}
			cfg.API.RateLimitRate = *a.RateLimitRate
		}
		if a.ErrorRate != nil {
			if err := validateRate("api.error_rate", *a.ErrorRate); err != nil {
				return cfg, err
			}
			cfg.API.ErrorRate = *a.ErrorRate
		}
		if a.EndpointOverrides != nil {
			overrides := make(map[string]string, len(a.EndpointOverrides))
			for path, kind := range a.EndpointOverrides {
				if kind == "" {
					overrides[path] = ""
					continue
				}
				switch APIOutcomeKind(kind) {
				case OutcomeOK, OutcomeTimeout, OutcomeRateLimit, OutcomeServerError:
					overrides[path] = kind
				default:
					return cfg, fmt.Errorf("chaos: unknown api outcome %q for endpoint %q", kind, path)
				}
			}
			// Merged per path so an update can pin one endpoint without
			// clearing others. An empty value removes the override.
			if cfg.API.EndpointOverrides == nil {
				cfg.API.EndpointOverrides = make(map[string]string)
			} else {
				merged := make(map[string]string, len(cfg.API.EndpointOverrides))
				for path, kind := range cfg.API.EndpointOverrides {
					merged[path] = kind
				}
				cfg.API.EndpointOverrides = merged
			}
			for path, kind := range overrides {
				if kind == "" {
					delete(cfg.API.EndpointOverrides, path)
					continue
				}
				cfg.API.EndpointOverrides[path] = kind
			}
		}
	}

	return cfg, nil
}

// PickDeclineCode selects a decline code from codes using weights as a
// weighted distribution. Weights need not sum to 1; they are normalized over
// the candidate codes. Codes absent from a non-empty weight map get weight
// zero. If no weights apply the pick is uniform. roll must be in [0, 1).
// This is a PURE function.
func PickDeclineCode(codes []string, weights map[string]float64, roll float64) string {
	if len(codes) == 0 {
		codes = DefaultDeclineCodes()
	}
	if len(codes) == 1 {
		return codes[0]
	}

	var total float64
	for _, code := range codes {
		total += weights[code]
	}
	if total <= 0 {
		// Uniform pick.
		idx := int(roll * float64(len(codes)))
		if idx >= len(codes) {
			idx = len(codes) - 1
		}
		return codes[idx]
	}

	target := roll * total
	var cum float64
	for _, code := range codes {
		cum += weights[code]
		if target < cum {
			return code
		}
	}
	return codes[len(codes)-1]
}

func validateRate(name string, rate float64) error {
	if rate < 0 || rate > 1 {
		return fmt.Errorf("chaos: %s must be between 0.0 and 1.0, got %v", name, rate)
	}
	return nil
}
