package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/paymock/domain/billing"
	"github.com/artpar/paymock/domain/webhook"
	"github.com/artpar/paymock/ports"
)

// SubscriptionCreate handles POST /v1/subscriptions. Billing periods are
// stamped from the virtual clock, so subscriptions created under a manual
// or accelerated clock come due exactly when tests expect them to.
func (h *Handler) SubscriptionCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Customer string       `json:"customer"`
		Plan     billing.Plan `json:"plan"`
		TrialEnd int64        `json:"trial_end"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Customer == "" {
		h.badRequest(w, "Customer is required.", "customer")
		return
	}
	if _, err := h.customers.Get(r.Context(), req.Customer); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			h.notFound(w, "customer", req.Customer)
			return
		}
		h.serverError(w, err)
		return
	}
	if err := billing.ValidatePlan(req.Plan); err != nil {
		h.badRequest(w, err.Error(), "plan")
		return
	}
	if req.Plan.Currency == "" {
		req.Plan.Currency = "usd"
	}

	now := h.clock.Now().Unix()
	status := billing.SubscriptionStatusActive
	if req.TrialEnd > now {
		status = billing.SubscriptionStatusTrialing
	}

	sub := billing.Subscription{
		ID:                 h.ids.New("sub"),
		Customer:           req.Customer,
		Status:             status,
		Plan:               req.Plan,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now + billing.PeriodLength(req.Plan.Interval),
		TrialEnd:           req.TrialEnd,
		Created:            now,
	}
	if err := h.subscriptions.Create(r.Context(), sub); err != nil {
		h.serverError(w, err)
		return
	}

	h.dispatchEvent(r, webhook.EventSubscriptionCreated, sub)
	h.writeJSON(w, http.StatusOK, sub)
}

// SubscriptionGet handles GET /v1/subscriptions/{id}.
func (h *Handler) SubscriptionGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := h.subscriptions.Get(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		h.notFound(w, "subscription", id)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sub)
}

// SubscriptionList handles GET /v1/subscriptions.
func (h *Handler) SubscriptionList(w http.ResponseWriter, r *http.Request) {
	subs, hasMore, err := h.subscriptions.List(r.Context(), parseListOptions(r))
	if err != nil {
		h.serverError(w, err)
		return
	}
	if subs == nil {
		subs = []billing.Subscription{}
	}
	h.writeJSON(w, http.StatusOK, newListResponse(subs, hasMore))
}

// SubscriptionCancel handles DELETE /v1/subscriptions/{id}. Canceled
// subscriptions keep their records but are never billed again.
func (h *Handler) SubscriptionCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := h.subscriptions.Get(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		h.notFound(w, "subscription", id)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}

	sub.Status = billing.SubscriptionStatusCanceled
	sub.CanceledAt = h.clock.Now().Unix()
	if err := h.subscriptions.Update(r.Context(), sub); err != nil {
		h.serverError(w, err)
		return
	}

	h.dispatchEvent(r, webhook.EventSubscriptionDeleted, sub)
	h.writeJSON(w, http.StatusOK, sub)
}
