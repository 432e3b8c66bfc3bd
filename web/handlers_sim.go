package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/paymock/adapters/clock"
	"github.com/artpar/paymock/app"
	"github.com/artpar/paymock/domain/chaos"
)

// clockState is the wire shape of the virtual clock.
type clockState struct {
	Mode       string  `json:"mode"`
	Multiplier float64 `json:"multiplier"`
	Now        int64   `json:"now"`
}

func (h *Handler) clockSnapshot() clockState {
	return clockState{
		Mode:       string(h.clock.Mode()),
		Multiplier: h.clock.Multiplier(),
		Now:        h.clock.Now().Unix(),
	}
}

// SimClockGet handles GET /v1/_sim/clock.
func (h *Handler) SimClockGet(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.clockSnapshot())
}

// SimClockSet handles POST /v1/_sim/clock. Switching to manual mode with a
// zero timestamp freezes the clock at its current virtual time.
func (h *Handler) SimClockSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode       string  `json:"mode"`
		Multiplier float64 `json:"multiplier"`
		At         int64   `json:"at"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}

	switch clock.Mode(req.Mode) {
	case clock.ModeReal:
		h.clock.SetReal()
	case clock.ModeAccelerated:
		if err := h.clock.SetAccelerated(req.Multiplier); err != nil {
			h.badRequest(w, err.Error(), "multiplier")
			return
		}
	case clock.ModeManual:
		var at time.Time
		if req.At > 0 {
			at = time.Unix(req.At, 0)
		}
		h.clock.SetManual(at)
	default:
		h.badRequest(w, "Mode must be 'real', 'accelerated' or 'manual'.", "mode")
		return
	}

	h.logger.Info().Str("mode", req.Mode).Msg("clock mode changed")
	h.writeJSON(w, http.StatusOK, h.clockSnapshot())
}

// SimClockAdvance handles POST /v1/_sim/clock/advance. Only a manual clock
// can be advanced.
func (h *Handler) SimClockAdvance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int64 `json:"seconds"`
		Days    int64 `json:"days"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}

	total := req.Seconds + req.Days*24*60*60
	if total <= 0 {
		h.badRequest(w, "Provide a positive number of seconds or days.", "")
		return
	}

	if err := h.clock.Advance(time.Duration(total) * time.Second); err != nil {
		if errors.Is(err, clock.ErrNotManual) {
			h.badRequest(w, err.Error(), "")
			return
		}
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.clockSnapshot())
}

// SimChaosGet handles GET /v1/_sim/chaos.
func (h *Handler) SimChaosGet(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.chaos.Config())
}

// SimChaosConfigure handles POST /v1/_sim/chaos. The body is a partial
// configuration; unspecified leaves keep their current values.
func (h *Handler) SimChaosConfigure(w http.ResponseWriter, r *http.Request) {
	var update chaos.Update
	if !h.decodeBody(w, r, &update) {
		return
	}
	if err := h.chaos.Configure(update); err != nil {
		h.badRequest(w, err.Error(), "")
		return
	}
	h.writeJSON(w, http.StatusOK, h.chaos.Config())
}

// SimChaosFlush handles POST /v1/_sim/chaos/flush. Buffered events are
// delivered before the response is written.
func (h *Handler) SimChaosFlush(w http.ResponseWriter, r *http.Request) {
	h.chaos.FlushEvents()
	h.writeJSON(w, http.StatusOK, map[string]bool{"flushed": true})
}

// SimChaosStats handles GET /v1/_sim/chaos/stats.
func (h *Handler) SimChaosStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.chaos.Stats())
}

// SimFailureSet handles PUT /v1/_sim/customers/{id}/failure. A decline code
// forces failure; {"failed": false} forces success despite chaos rates.
func (h *Handler) SimFailureSet(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")

	var req struct {
		Failed      *bool  `json:"failed"`
		DeclineCode string `json:"decline_code"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}

	var outcome chaos.PaymentOutcome
	switch {
	case req.DeclineCode != "":
		outcome = chaos.Fail(req.DeclineCode)
	case req.Failed != nil && !*req.Failed:
		outcome = chaos.Succeed()
	default:
		h.badRequest(w, "Provide a decline_code to force failure or failed=false to force success.", "")
		return
	}

	if err := h.chaos.SetOverride(customerID, outcome); err != nil {
		var unknown chaos.UnknownDeclineCodeError
		if errors.As(err, &unknown) {
			h.badRequest(w, err.Error(), "decline_code")
			return
		}
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"customer":     customerID,
		"failed":       outcome.Failed,
		"decline_code": outcome.DeclineCode,
	})
}

// SimFailureClear handles DELETE /v1/_sim/customers/{id}/failure.
func (h *Handler) SimFailureClear(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	h.chaos.ClearOverride(customerID)
	h.writeJSON(w, http.StatusOK, map[string]any{"customer": customerID, "cleared": true})
}

// SimBillingRun handles POST /v1/_sim/billing/run.
func (h *Handler) SimBillingRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.billing.ProcessBilling(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// SimBillingModeGet handles GET /v1/_sim/billing/mode.
func (h *Handler) SimBillingModeGet(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"mode": string(h.billing.Mode())})
}

// SimBillingModeSet handles POST /v1/_sim/billing/mode.
func (h *Handler) SimBillingModeSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.billing.SetMode(app.BillingMode(req.Mode)); err != nil {
		h.badRequest(w, err.Error(), "mode")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"mode": req.Mode})
}

// SimReset handles POST /v1/_sim/reset: clock back to real time, chaos back
// to defaults, billing back to happy path, caches and every store emptied.
func (h *Handler) SimReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	h.chaos.Reset()
	h.clock.Reset()
	h.idempotency.Clear()
	if err := h.billing.SetMode(app.BillingModeHappyPath); err != nil {
		h.serverError(w, err)
		return
	}

	stores := []func() error{
		func() error { return h.customers.Clear(ctx) },
		func() error { return h.subscriptions.Clear(ctx) },
		func() error { return h.invoices.Clear(ctx) },
		func() error { return h.charges.Clear(ctx) },
		func() error { return h.events.Clear(ctx) },
		func() error { return h.endpoints.Clear(ctx) },
	}
	for _, clear := range stores {
		if err := clear(); err != nil {
			h.serverError(w, err)
			return
		}
	}

	h.logger.Info().Msg("simulation state reset")
	h.writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}
