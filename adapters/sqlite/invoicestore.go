package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/artpar/paymock/domain/billing"
	"github.com/artpar/paymock/ports"
)

// InvoiceStore implements ports.InvoiceStore using SQLite.
type InvoiceStore struct {
	db *DB
}

// NewInvoiceStore creates a new SQLite invoice store.
func NewInvoiceStore(db *DB) *InvoiceStore {
	return &InvoiceStore{db: db}
}

const invoiceColumns = `id, customer, subscription, status, amount_due, amount_paid,
	currency, attempt_count, last_finalization_error, charge, period_start,
	period_end, created, paid_at`

// Get retrieves an invoice by ID.
func (s *InvoiceStore) Get(ctx context.Context, id string) (billing.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices WHERE id = ?
	`, id)
	inv, err := scanInvoice(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Invoice{}, ports.ErrNotFound
	}
	return inv, err
}

// Create stores a new invoice.
func (s *InvoiceStore) Create(ctx context.Context, inv billing.Invoice) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inv.ID, inv.Customer, inv.Subscription, string(inv.Status),
		inv.AmountDue, inv.AmountPaid, inv.Currency, inv.AttemptCount,
		inv.LastFinalizationError, inv.Charge, inv.PeriodStart, inv.PeriodEnd,
		inv.Created, inv.PaidAt)
	return err
}

// Update modifies an existing invoice.
func (s *InvoiceStore) Update(ctx context.Context, inv billing.Invoice) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE invoices
		SET customer = ?, subscription = ?, status = ?, amount_due = ?,
		    amount_paid = ?, currency = ?, attempt_count = ?,
		    last_finalization_error = ?, charge = ?, period_start = ?,
		    period_end = ?, created = ?, paid_at = ?
		WHERE id = ?
	`, inv.Customer, inv.Subscription, string(inv.Status), inv.AmountDue,
		inv.AmountPaid, inv.Currency, inv.AttemptCount, inv.LastFinalizationError,
		inv.Charge, inv.PeriodStart, inv.PeriodEnd, inv.Created, inv.PaidAt, inv.ID)
	if err != nil {
		return err
	}
	return notFoundOnZeroRows(result)
}

// List returns invoices in insertion order with pagination.
func (s *InvoiceStore) List(ctx context.Context, opts ports.ListOptions) ([]billing.Invoice, bool, error) {
	limit := normalizeLimit(opts.Limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE ? = '' OR rowid > (SELECT rowid FROM invoices WHERE id = ?)
		ORDER BY rowid
		LIMIT ?
	`, opts.StartingAfter, opts.StartingAfter, limit+1)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var invoices []billing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, false, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	invoices, hasMore := trimPage(invoices, limit)
	return invoices, hasMore, nil
}

// OpenForSubscription returns the earliest still-open invoice for a
// subscription, or ports.ErrNotFound.
func (s *InvoiceStore) OpenForSubscription(ctx context.Context, subscriptionID string) (billing.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE subscription = ? AND status = ?
		ORDER BY rowid
		LIMIT 1
	`, subscriptionID, string(billing.InvoiceStatusOpen))
	inv, err := scanInvoice(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Invoice{}, ports.ErrNotFound
	}
	return inv, err
}

// Clear removes all invoices.
func (s *InvoiceStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM invoices`)
	return err
}

func scanInvoice(scan func(...any) error) (billing.Invoice, error) {
	var inv billing.Invoice
	var status string
	err := scan(
		&inv.ID, &inv.Customer, &inv.Subscription, &status,
		&inv.AmountDue, &inv.AmountPaid, &inv.Currency, &inv.AttemptCount,
		&inv.LastFinalizationError, &inv.Charge, &inv.PeriodStart, &inv.PeriodEnd,
		&inv.Created, &inv.PaidAt,
	)
	if err != nil {
		return billing.Invoice{}, err
	}
	inv.Status = billing.InvoiceStatus(status)
	return inv, nil
}

// Ensure interface compliance.
var _ ports.InvoiceStore = (*InvoiceStore)(nil)
