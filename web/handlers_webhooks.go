package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/paymock/domain/webhook"
	"github.com/artpar/paymock/ports"
)

// WebhookEndpointCreate handles POST /v1/webhook_endpoints. The signing
// secret is generated server side and returned once, on creation.
func (h *Handler) WebhookEndpointCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL           string   `json:"url"`
		EnabledEvents []string `json:"enabled_events"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}
	if valid, msg := webhook.ValidateURL(req.URL); !valid {
		h.badRequest(w, msg, "url")
		return
	}
	if len(req.EnabledEvents) == 0 {
		req.EnabledEvents = []string{webhook.EventWildcard}
	}
	if valid, msg := webhook.ValidateEvents(req.EnabledEvents); !valid {
		h.badRequest(w, msg, "enabled_events")
		return
	}

	ep := webhook.Endpoint{
		ID:            h.ids.New("we"),
		URL:           req.URL,
		Secret:        webhook.GenerateSecret(),
		EnabledEvents: req.EnabledEvents,
		Status:        webhook.EndpointEnabled,
		Created:       h.clock.Now().Unix(),
	}
	if err := h.endpoints.Create(r.Context(), ep); err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ep)
}

// WebhookEndpointGet handles GET /v1/webhook_endpoints/{id}.
func (h *Handler) WebhookEndpointGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ep, err := h.endpoints.Get(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		h.notFound(w, "webhook_endpoint", id)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ep)
}

// WebhookEndpointList handles GET /v1/webhook_endpoints.
func (h *Handler) WebhookEndpointList(w http.ResponseWriter, r *http.Request) {
	endpoints, hasMore, err := h.endpoints.List(r.Context(), parseListOptions(r))
	if err != nil {
		h.serverError(w, err)
		return
	}
	if endpoints == nil {
		endpoints = []webhook.Endpoint{}
	}
	h.writeJSON(w, http.StatusOK, newListResponse(endpoints, hasMore))
}

// WebhookEndpointDelete handles DELETE /v1/webhook_endpoints/{id}.
func (h *Handler) WebhookEndpointDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.endpoints.Delete(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		h.notFound(w, "webhook_endpoint", id)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// EventGet handles GET /v1/events/{id}, including the delivery attempt log.
func (h *Handler) EventGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ev, err := h.events.Get(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		h.notFound(w, "event", id)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ev)
}

// EventList handles GET /v1/events.
func (h *Handler) EventList(w http.ResponseWriter, r *http.Request) {
	events, hasMore, err := h.events.List(r.Context(), parseListOptions(r))
	if err != nil {
		h.serverError(w, err)
		return
	}
	if events == nil {
		events = []webhook.Event{}
	}
	h.writeJSON(w, http.StatusOK, newListResponse(events, hasMore))
}
