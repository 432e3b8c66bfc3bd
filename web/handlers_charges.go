package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/paymock/domain/billing"
	"github.com/artpar/paymock/domain/chaos"
	"github.com/artpar/paymock/domain/webhook"
	"github.com/artpar/paymock/ports"
)

// ChargeCreate handles POST /v1/charges. The payment outcome comes from the
// chaos coordinator: a forced per-customer override first, the configured
// failure rate second. Declines still create the charge record, with a 402
// card_error response.
func (h *Handler) ChargeCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Customer string `json:"customer"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		h.badRequest(w, "Amount must be a positive integer.", "amount")
		return
	}
	if req.Currency == "" {
		h.badRequest(w, "Currency is required.", "currency")
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

	outcome := h.chaos.ShouldPaymentFail(req.Customer)
	charge := billing.NewCharge(
		h.ids.New("ch"), h.ids.New("txn"),
		req.Customer, "",
		req.Amount, req.Currency,
		outcome.DeclineCode, chaos.DeclineMessage(outcome.DeclineCode),
		h.clock.Now().Unix(),
	)
	if err := h.charges.Create(r.Context(), charge); err != nil {
		h.serverError(w, err)
		return
	}

	if outcome.Failed {
		h.dispatchEvent(r, webhook.EventChargeFailed, charge)
		h.writeError(w, http.StatusPaymentRequired, apiError{
			Type:    "card_error",
			Code:    charge.FailureCode,
			Message: charge.FailureMessage,
		})
		return
	}

	h.dispatchEvent(r, webhook.EventChargeSucceeded, charge)
	h.writeJSON(w, http.StatusOK, charge)
}

// ChargeGet handles GET /v1/charges/{id}.
func (h *Handler) ChargeGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	charge, err := h.charges.Get(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		h.notFound(w, "charge", id)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, charge)
}

// ChargeList handles GET /v1/charges.
func (h *Handler) ChargeList(w http.ResponseWriter, r *http.Request) {
	charges, hasMore, err := h.charges.List(r.Context(), parseListOptions(r))
	if err != nil {
		h.serverError(w, err)
		return
	}
	if charges == nil {
		charges = []billing.Charge{}
	}
	h.writeJSON(w, http.StatusOK, newListResponse(charges, hasMore))
}
