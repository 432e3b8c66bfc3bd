// Package web provides the JSON HTTP surface of the mock: the Stripe-like
// resource API under /v1 and the simulation control surface under /v1/_sim.
package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artpar/paymock/adapters/clock"
	"github.com/artpar/paymock/adapters/metrics"
	"github.com/artpar/paymock/app"
	"github.com/artpar/paymock/ports"
)

// Handler provides the HTTP endpoints.
type Handler struct {
	customers     ports.CustomerStore
	subscriptions ports.SubscriptionStore
	invoices      ports.InvoiceStore
	charges       ports.ChargeStore
	events        ports.EventStore
	endpoints     ports.WebhookEndpointStore

	clock       *clock.Virtual
	chaos       *app.Coordinator
	billing     *app.BillingEngine
	webhooks    *app.WebhookService
	idempotency *app.IdempotencyCache

	ids     ports.IDGenerator
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// Deps contains dependencies for the web handler.
type Deps struct {
	Customers     ports.CustomerStore
	Subscriptions ports.SubscriptionStore
	Invoices      ports.InvoiceStore
	Charges       ports.ChargeStore
	Events        ports.EventStore
	Endpoints     ports.WebhookEndpointStore
	Clock         *clock.Virtual
	Chaos         *app.Coordinator
	Billing       *app.BillingEngine
	Webhooks      *app.WebhookService
	Idempotency   *app.IdempotencyCache
	IDs           ports.IDGenerator
	Metrics       *metrics.Collector
	Logger        zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		customers:     deps.Customers,
		subscriptions: deps.Subscriptions,
		invoices:      deps.Invoices,
		charges:       deps.Charges,
		events:        deps.Events,
		endpoints:     deps.Endpoints,
		clock:         deps.Clock,
		chaos:         deps.Chaos,
		billing:       deps.Billing,
		webhooks:      deps.Webhooks,
		idempotency:   deps.Idempotency,
		ids:           deps.IDs,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
	}
}

// Router returns the API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(h.requestLogger)
	r.Use(h.chaosFaults)
	r.Use(h.idempotencyReplay)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/customers", func(r chi.Router) {
			r.Post("/", h.CustomerCreate)
			r.Get("/", h.CustomerList)
			r.Get("/{id}", h.CustomerGet)
			r.Delete("/{id}", h.CustomerDelete)
		})

		r.Route("/charges", func(r chi.Router) {
			r.Post("/", h.ChargeCreate)
			r.Get("/", h.ChargeList)
			r.Get("/{id}", h.ChargeGet)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", h.SubscriptionCreate)
			r.Get("/", h.SubscriptionList)
			r.Get("/{id}", h.SubscriptionGet)
			r.Delete("/{id}", h.SubscriptionCancel)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.InvoiceList)
			r.Get("/{id}", h.InvoiceGet)
		})

		r.Route("/webhook_endpoints", func(r chi.Router) {
			r.Post("/", h.WebhookEndpointCreate)
			r.Get("/", h.WebhookEndpointList)
			r.Get("/{id}", h.WebhookEndpointGet)
			r.Delete("/{id}", h.WebhookEndpointDelete)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.EventList)
			r.Get("/{id}", h.EventGet)
		})

		r.Route("/_sim", func(r chi.Router) {
			r.Get("/clock", h.SimClockGet)
			r.Post("/clock", h.SimClockSet)
			r.Post("/clock/advance", h.SimClockAdvance)

			r.Get("/chaos", h.SimChaosGet)
			r.Post("/chaos", h.SimChaosConfigure)
			r.Post("/chaos/flush", h.SimChaosFlush)
			r.Get("/chaos/stats", h.SimChaosStats)

			r.Put("/customers/{id}/failure", h.SimFailureSet)
			r.Delete("/customers/{id}/failure", h.SimFailureClear)

			r.Post("/billing/run", h.SimBillingRun)
			r.Get("/billing/mode", h.SimBillingModeGet)
			r.Post("/billing/mode", h.SimBillingModeSet)

			r.Post("/reset", h.SimReset)
		})
	})

	return r
}

// apiError is the wire shape of an error, modeled on the upstream API.
type apiError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

type errorBody struct {
	Error apiError `json:"error"`
}

// listResponse is the wire shape of a paginated collection.
type listResponse struct {
	Object  string `json:"object"`
	Data    any    `json:"data"`
	HasMore bool   `json:"has_more"`
}

func newListResponse(data any, hasMore bool) listResponse {
	return listResponse{Object: "list", Data: data, HasMore: hasMore}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, e apiError) {
	h.writeJSON(w, status, errorBody{Error: e})
}

func (h *Handler) notFound(w http.ResponseWriter, resource, id string) {
	h.writeError(w, http.StatusNotFound, apiError{
		Type:    "invalid_request_error",
		Code:    "resource_missing",
		Message: "No such " + resource + ": '" + id + "'",
	})
}

func (h *Handler) badRequest(w http.ResponseWriter, message, param string) {
	h.writeError(w, http.StatusBadRequest, apiError{
		Type:    "invalid_request_error",
		Message: message,
		Param:   param,
	})
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	h.logger.Error().Err(err).Msg("request failed")
	h.writeError(w, http.StatusInternalServerError, apiError{
		Type:    "api_error",
		Message: "An internal error occurred.",
	})
}

// decodeBody parses a JSON request body, reporting malformed input as a
// validation error.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.badRequest(w, "Invalid JSON body: "+err.Error(), "")
		return false
	}
	return true
}

// parseListOptions reads limit/starting_after query parameters.
func parseListOptions(r *http.Request) ports.ListOptions {
	opts := ports.ListOptions{StartingAfter: r.URL.Query().Get("starting_after")}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	return opts
}
