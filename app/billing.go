package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/artpar/paymock/adapters/metrics"
	"github.com/artpar/paymock/domain/billing"
	"github.com/artpar/paymock/domain/chaos"
	"github.com/artpar/paymock/domain/webhook"
	"github.com/artpar/paymock/ports"
	"github.com/rs/zerolog"
)

// BillingMode selects how the engine decides payment outcomes.
type BillingMode string

const (
	// BillingModeHappyPath makes every payment succeed unless a
	// per-customer failure override says otherwise.
	BillingModeHappyPath BillingMode = "happy_path"
	// BillingModeChaos delegates every payment outcome to the chaos
	// coordinator's configured failure rates.
	BillingModeChaos BillingMode = "chaos"
)

// ErrUnknownBillingMode is returned for mode strings outside the catalog.
var ErrUnknownBillingMode = errors.New("unknown billing mode")

// BillingResult summarizes one billing pass.
type BillingResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BillingEngine runs on-demand billing passes over all subscriptions.
// A pass scans for due subscriptions, attempts payment on each, and rolls
// the subscription period forward on success. Passes are serialized; two
// concurrent calls never interleave over the same subscription.
type BillingEngine struct {
	mu   sync.Mutex
	mode BillingMode

	subscriptions ports.SubscriptionStore
	invoices      ports.InvoiceStore
	charges       ports.ChargeStore
	chaos         *Coordinator
	webhooks      *WebhookService
	clock         ports.Clock
	ids           ports.IDGenerator
	metrics       *metrics.Collector
	logger        zerolog.Logger
}

// NewBillingEngine creates a billing engine in happy_path mode.
func NewBillingEngine(
	subscriptions ports.SubscriptionStore,
	invoices ports.InvoiceStore,
	charges ports.ChargeStore,
	chaosCoordinator *Coordinator,
	webhooks *WebhookService,
	clk ports.Clock,
	ids ports.IDGenerator,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *BillingEngine {
	return &BillingEngine{
		mode:          BillingModeHappyPath,
		subscriptions: subscriptions,
		invoices:      invoices,
		charges:       charges,
		chaos:         chaosCoordinator,
		webhooks:      webhooks,
		clock:         clk,
		ids:           ids,
		metrics:       collector,
		logger:        logger,
	}
}

// Mode returns the current billing mode.
func (e *BillingEngine) Mode() BillingMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetMode switches between happy_path and chaos outcome decisions.
func (e *BillingEngine) SetMode(mode BillingMode) error {
	switch mode {
	case BillingModeHappyPath, BillingModeChaos:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBillingMode, mode)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = mode
	e.logger.Info().Str("mode", string(mode)).Msg("billing mode changed")
	return nil
}

// SimulateFailure forces every payment for a customer to fail with the
// given decline code until cleared. The override wins in both modes.
func (e *BillingEngine) SimulateFailure(customerID, declineCode string) error {
	return e.chaos.SetOverride(customerID, chaos.Fail(declineCode))
}

// ClearSimulation removes a customer's forced failure override.
func (e *BillingEngine) ClearSimulation(customerID string) {
	e.chaos.ClearOverride(customerID)
}

// ProcessBilling runs one billing pass at the clock's current virtual time.
// Every due subscription counts toward Processed; Succeeded and Failed
// count payment outcomes. Subscriptions with malformed plans are skipped
// with a diagnostic and appear in neither outcome bucket.
func (e *BillingEngine) ProcessBilling(ctx context.Context) (BillingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now().Unix()
	subs, err := e.subscriptions.All(ctx)
	if err != nil {
		return BillingResult{}, fmt.Errorf("scan subscriptions: %w", err)
	}

	var result BillingResult
	for _, sub := range subs {
		if !billing.IsDue(sub, now) {
			continue
		}
		result.Processed++

		if err := billing.ValidatePlan(sub.Plan); err != nil {
			e.logger.Warn().
				Err(err).
				Str("subscription_id", sub.ID).
				Msg("skipping subscription with unbillable plan")
			continue
		}

		succeeded, err := e.billSubscription(ctx, sub, now)
		if err != nil {
			e.logger.Error().
				Err(err).
				Str("subscription_id", sub.ID).
				Msg("billing pass failed for subscription")
			continue
		}
		if succeeded {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	if e.metrics != nil {
		e.metrics.BillingPass(result.Succeeded, result.Failed)
	}
	e.logger.Info().
		Int("processed", result.Processed).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int64("virtual_time", now).
		Msg("billing pass complete")
	return result, nil
}

// billSubscription attempts payment for one due subscription. It reuses the
// period's still-open invoice when a prior attempt failed, so retry counts
// accumulate on a single invoice instead of piling up new ones.
func (e *BillingEngine) billSubscription(ctx context.Context, sub billing.Subscription, now int64) (bool, error) {
	inv, reused, err := e.currentInvoice(ctx, sub, now)
	if err != nil {
		return false, err
	}

	outcome := e.decideOutcome(sub.Customer)
	charge := billing.NewCharge(
		e.ids.New("ch"), e.ids.New("txn"),
		sub.Customer, inv.ID,
		inv.AmountDue, inv.Currency,
		outcome.DeclineCode, chaos.DeclineMessage(outcome.DeclineCode),
		now,
	)
	if err := e.charges.Create(ctx, charge); err != nil {
		return false, fmt.Errorf("record charge: %w", err)
	}

	if !outcome.Failed {
		inv = billing.MarkInvoicePaid(inv, charge.ID, now)
		if err := e.invoices.Update(ctx, inv); err != nil {
			return false, fmt.Errorf("settle invoice: %w", err)
		}
		recovered := sub.Status == billing.SubscriptionStatusPastDue
		sub = billing.AdvancePeriod(sub)
		if err := e.subscriptions.Update(ctx, sub); err != nil {
			return false, fmt.Errorf("advance period: %w", err)
		}
		e.dispatch(ctx, webhook.EventInvoicePaid, inv)
		if recovered {
			e.dispatch(ctx, webhook.EventSubscriptionUpdated, sub)
			e.logger.Info().
				Str("subscription_id", sub.ID).
				Msg("past_due subscription recovered")
		}
		return true, nil
	}

	inv = billing.MarkInvoiceFailed(inv, charge.ID, charge.FailureMessage)
	if err := e.invoices.Update(ctx, inv); err != nil {
		return false, fmt.Errorf("record invoice failure: %w", err)
	}
	e.dispatch(ctx, webhook.EventInvoicePaymentFailed, inv)

	e.logger.Warn().
		Str("subscription_id", sub.ID).
		Str("invoice_id", inv.ID).
		Str("decline_code", outcome.DeclineCode).
		Int("attempt_count", inv.AttemptCount).
		Bool("retried_invoice", reused).
		Msg("subscription payment failed")

	if inv.AttemptCount >= billing.MaxPaymentAttempts && sub.Status != billing.SubscriptionStatusPastDue {
		sub.Status = billing.SubscriptionStatusPastDue
		if err := e.subscriptions.Update(ctx, sub); err != nil {
			return false, fmt.Errorf("mark past_due: %w", err)
		}
		e.dispatch(ctx, webhook.EventSubscriptionUpdated, sub)
		e.logger.Warn().
			Str("subscription_id", sub.ID).
			Msg("subscription past_due after exhausting payment attempts")
	}
	return false, nil
}

// currentInvoice returns the invoice to charge: the period's open invoice
// with its attempt count bumped, or a freshly created one.
func (e *BillingEngine) currentInvoice(ctx context.Context, sub billing.Subscription, now int64) (billing.Invoice, bool, error) {
	inv, err := e.invoices.OpenForSubscription(ctx, sub.ID)
	if err == nil {
		inv.AttemptCount++
		return inv, true, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return billing.Invoice{}, false, fmt.Errorf("find open invoice: %w", err)
	}

	inv = billing.NewPeriodInvoice(e.ids.New("in"), sub, sub.Plan.Amount, now)
	if err := e.invoices.Create(ctx, inv); err != nil {
		return billing.Invoice{}, false, fmt.Errorf("create invoice: %w", err)
	}
	e.dispatch(ctx, webhook.EventInvoiceCreated, inv)
	return inv, false, nil
}

// decideOutcome picks the payment outcome for one attempt. Happy path
// succeeds unless the customer carries a forced override; chaos mode asks
// the coordinator, which applies overrides first and rates second.
func (e *BillingEngine) decideOutcome(customerID string) chaos.PaymentOutcome {
	if e.mode == BillingModeChaos {
		return e.chaos.ShouldPaymentFail(customerID)
	}
	if _, ok := e.chaos.Override(customerID); ok {
		return e.chaos.ShouldPaymentFail(customerID)
	}
	return chaos.Succeed()
}

// dispatch emits a webhook event, tolerating a nil webhook service.
func (e *BillingEngine) dispatch(ctx context.Context, eventType string, data any) {
	if e.webhooks == nil {
		return
	}
	if _, err := e.webhooks.DispatchEvent(ctx, eventType, data); err != nil {
		e.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to dispatch billing event")
	}
}
