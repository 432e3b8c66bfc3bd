// Package billing provides subscription, invoice and charge value types and
// the pure functions that drive the billing cycle.
package billing

import (
	"fmt"
)

// SubscriptionStatus represents subscription state.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
)

// Interval is a billing period unit.
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Plan is the billing unit a subscription charges against.
type Plan struct {
	ID       string   `json:"id"`
	Amount   int64    `json:"amount"` // cents
	Currency string   `json:"currency"`
	Interval Interval `json:"interval"`
}

// Subscription represents a recurring billing agreement (value type).
type Subscription struct {
	ID                 string             `json:"id"`
	Customer           string             `json:"customer"`
	Status             SubscriptionStatus `json:"status"`
	Plan               Plan               `json:"plan"`
	CurrentPeriodStart int64              `json:"current_period_start"`
	CurrentPeriodEnd   int64              `json:"current_period_end"`
	TrialEnd           int64              `json:"trial_end,omitempty"`
	CanceledAt         int64              `json:"canceled_at,omitempty"`
	Created            int64              `json:"created"`
}

// InvoiceStatus represents the state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusOpen          InvoiceStatus = "open"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusUncollectible InvoiceStatus = "uncollectible"
	InvoiceStatusVoid          InvoiceStatus = "void"
)

// Invoice represents one billing period's amount due (value type).
type Invoice struct {
	ID                    string        `json:"id"`
	Customer              string        `json:"customer"`
	Subscription          string        `json:"subscription,omitempty"`
	Status                InvoiceStatus `json:"status"`
	AmountDue             int64         `json:"amount_due"`
	AmountPaid            int64         `json:"amount_paid"`
	Currency              string        `json:"currency"`
	AttemptCount          int           `json:"attempt_count"`
	LastFinalizationError string        `json:"last_finalization_error,omitempty"`
	Charge                string        `json:"charge,omitempty"`
	PeriodStart           int64         `json:"period_start"`
	PeriodEnd             int64         `json:"period_end"`
	Created               int64         `json:"created"`
	PaidAt                int64         `json:"paid_at,omitempty"`
}

// ChargeStatus represents the outcome of a payment attempt.
type ChargeStatus string

const (
	ChargeStatusSucceeded ChargeStatus = "succeeded"
	ChargeStatusFailed    ChargeStatus = "failed"
)

// Charge is an immutable record of one payment attempt (value type).
type Charge struct {
	ID                 string       `json:"id"`
	Customer           string       `json:"customer"`
	Invoice            string       `json:"invoice,omitempty"`
	Status             ChargeStatus `json:"status"`
	Amount             int64        `json:"amount"`
	Currency           string       `json:"currency"`
	FailureCode        string       `json:"failure_code,omitempty"`
	FailureMessage     string       `json:"failure_message,omitempty"`
	BalanceTransaction string       `json:"balance_transaction,omitempty"`
	Created            int64        `json:"created"`
}

// MaxPaymentAttempts is the number of cumulative failed attempts against one
// invoice before the subscription drops to past_due.
const MaxPaymentAttempts = 4

// PeriodLength returns the length of one billing period in seconds.
// The simplified model uses fixed-length months and years.
func PeriodLength(interval Interval) int64 {
	const day = 24 * 60 * 60
	switch interval {
	case IntervalDay:
		return day
	case IntervalWeek:
		return 7 * day
	case IntervalYear:
		return 365 * day
	default:
		return 30 * day
	}
}

// IsDue reports whether a subscription should be billed at now.
// Active subscriptions are due once the period has elapsed; trialing
// subscriptions become due once the trial itself has ended. A past_due
// subscription stays in the scan so attempts keep accumulating on its open
// invoice and a later successful payment can recover it.
// This is a PURE function.
func IsDue(sub Subscription, now int64) bool {
	switch sub.Status {
	case SubscriptionStatusActive, SubscriptionStatusPastDue:
		return sub.CurrentPeriodEnd <= now
	case SubscriptionStatusTrialing:
		return sub.TrialEnd > 0 && sub.TrialEnd <= now && sub.CurrentPeriodEnd <= now
	default:
		return false
	}
}

// ValidatePlan checks that a plan can produce a billable amount.
// This is a PURE function.
func ValidatePlan(p Plan) error {
	if p.Amount <= 0 {
		return fmt.Errorf("billing: plan %q has no resolvable amount", p.ID)
	}
	switch p.Interval {
	case IntervalDay, IntervalWeek, IntervalMonth, IntervalYear:
		return nil
	case "":
		return fmt.Errorf("billing: plan %q has no interval", p.ID)
	default:
		return fmt.Errorf("billing: plan %q has unknown interval %q", p.ID, p.Interval)
	}
}

// AdvancePeriod rolls a subscription forward one billing period after a
// successful payment. The new period starts exactly where the old one ended
// so no time is lost between periods, no matter how late the billing pass
// ran. A paid period ends a trial and recovers a past_due subscription.
// This is a PURE function - returns a new Subscription.
func AdvancePeriod(sub Subscription) Subscription {
	sub.CurrentPeriodStart = sub.CurrentPeriodEnd
	sub.CurrentPeriodEnd = sub.CurrentPeriodEnd + PeriodLength(sub.Plan.Interval)
	if sub.Status == SubscriptionStatusTrialing || sub.Status == SubscriptionStatusPastDue {
		sub.Status = SubscriptionStatusActive
	}
	return sub
}

// NewPeriodInvoice creates the open invoice for a subscription's current
// period with a first attempt pending.
// This is a PURE function.
func NewPeriodInvoice(id string, sub Subscription, amount int64, now int64) Invoice {
	return Invoice{
		ID:           id,
		Customer:     sub.Customer,
		Subscription: sub.ID,
		Status:       InvoiceStatusOpen,
		AmountDue:    amount,
		Currency:     sub.Plan.Currency,
		AttemptCount: 1,
		PeriodStart:  sub.CurrentPeriodStart,
		PeriodEnd:    sub.CurrentPeriodEnd,
		Created:      now,
	}
}

// MarkInvoicePaid settles an invoice with a successful charge.
// This is a PURE function - returns a new Invoice.
func MarkInvoicePaid(inv Invoice, chargeID string, now int64) Invoice {
	inv.Status = InvoiceStatusPaid
	inv.AmountPaid = inv.AmountDue
	inv.Charge = chargeID
	inv.LastFinalizationError = ""
	inv.PaidAt = now
	return inv
}

// MarkInvoiceFailed records a failed payment attempt on an open invoice.
// The invoice stays open so the next billing pass retries it.
// This is a PURE function - returns a new Invoice.
func MarkInvoiceFailed(inv Invoice, chargeID, failureMessage string) Invoice {
	inv.Status = InvoiceStatusOpen
	inv.Charge = chargeID
	inv.LastFinalizationError = failureMessage
	return inv
}

// NewCharge creates the charge record for one payment attempt.
// failureCode is empty for a successful attempt.
// This is a PURE function.
func NewCharge(id, txnID string, customer, invoiceID string, amount int64, currency, failureCode, failureMessage string, now int64) Charge {
	ch := Charge{
		ID:       id,
		Customer: customer,
		Invoice:  invoiceID,
		Amount:   amount,
		Currency: currency,
		Created:  now,
	}
	if failureCode == "" {
		ch.Status = ChargeStatusSucceeded
		ch.BalanceTransaction = txnID
	} else {
		ch.Status = ChargeStatusFailed
		ch.FailureCode = failureCode
		ch.FailureMessage = failureMessage
	}
	return ch
}
