package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/paymock/domain/billing"
	"github.com/artpar/paymock/ports"
)

// InvoiceGet handles GET /v1/invoices/{id}.
func (h *Handler) InvoiceGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inv, err := h.invoices.Get(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		h.notFound(w, "invoice", id)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inv)
}

// InvoiceList handles GET /v1/invoices, optionally filtered by
// ?subscription=. The filter paginates over the filtered set.
func (h *Handler) InvoiceList(w http.ResponseWriter, r *http.Request) {
	opts := parseListOptions(r)
	subscription := r.URL.Query().Get("subscription")

	if subscription == "" {
		invoices, hasMore, err := h.invoices.List(r.Context(), opts)
		if err != nil {
			h.serverError(w, err)
			return
		}
		if invoices == nil {
			invoices = []billing.Invoice{}
		}
		h.writeJSON(w, http.StatusOK, newListResponse(invoices, hasMore))
		return
	}

	// Filtered listing pages through the whole store and applies cursor
	// semantics over the matching subset.
	matching, err := h.invoicesForSubscription(r, subscription)
	if err != nil {
		h.serverError(w, err)
		return
	}

	start := 0
	if opts.StartingAfter != "" {
		for i, inv := range matching {
			if inv.ID == opts.StartingAfter {
				start = i + 1
				break
			}
		}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	end := start + limit
	hasMore := end < len(matching)
	if end > len(matching) {
		end = len(matching)
	}
	if start > len(matching) {
		start = len(matching)
	}

	h.writeJSON(w, http.StatusOK, newListResponse(matching[start:end], hasMore))
}

func (h *Handler) invoicesForSubscription(r *http.Request, subscription string) ([]billing.Invoice, error) {
	matching := []billing.Invoice{}
	opts := ports.ListOptions{Limit: 100}
	for {
		page, hasMore, err := h.invoices.List(r.Context(), opts)
		if err != nil {
			return nil, err
		}
		for _, inv := range page {
			if inv.Subscription == subscription {
				matching = append(matching, inv)
			}
		}
		if !hasMore || len(page) == 0 {
			return matching, nil
		}
		opts.StartingAfter = page[len(page)-1].ID
	}
}
