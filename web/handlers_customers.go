package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/paymock/domain/webhook"
	"github.com/artpar/paymock/ports"
)

// CustomerCreate handles POST /v1/customers.
func (h *Handler) CustomerCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}

	c := ports.Customer{
		ID:      h.ids.New("cus"),
		Email:   req.Email,
		Name:    req.Name,
		Created: h.clock.Now().Unix(),
	}
	if err := h.customers.Create(r.Context(), c); err != nil {
		h.serverError(w, err)
		return
	}

	h.dispatchEvent(r, webhook.EventCustomerCreated, c)
	h.writeJSON(w, http.StatusOK, c)
}

// CustomerGet handles GET /v1/customers/{id}.
func (h *Handler) CustomerGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.customers.Get(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		h.notFound(w, "customer", id)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// CustomerList handles GET /v1/customers.
func (h *Handler) CustomerList(w http.ResponseWriter, r *http.Request) {
	customers, hasMore, err := h.customers.List(r.Context(), parseListOptions(r))
	if err != nil {
		h.serverError(w, err)
		return
	}
	if customers == nil {
		customers = []ports.Customer{}
	}
	h.writeJSON(w, http.StatusOK, newListResponse(customers, hasMore))
}

// CustomerDelete handles DELETE /v1/customers/{id}. Related subscriptions
// and invoices are left in place.
func (h *Handler) CustomerDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.customers.Delete(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		h.notFound(w, "customer", id)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}

	h.dispatchEvent(r, webhook.EventCustomerDeleted, map[string]any{"id": id, "deleted": true})
	h.writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// dispatchEvent emits a webhook event, logging instead of failing the
// request when delivery setup goes wrong.
func (h *Handler) dispatchEvent(r *http.Request, eventType string, data any) {
	if h.webhooks == nil {
		return
	}
	if _, err := h.webhooks.DispatchEvent(r.Context(), eventType, data); err != nil {
		h.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to dispatch event")
	}
}
