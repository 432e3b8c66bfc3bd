package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/artpar/paymock/domain/billing"
	"github.com/artpar/paymock/ports"
)

// ChargeStore implements ports.ChargeStore using SQLite.
type ChargeStore struct {
	db *DB
}

// NewChargeStore creates a new SQLite charge store.
func NewChargeStore(db *DB) *ChargeStore {
	return &ChargeStore{db: db}
}

const chargeColumns = `id, customer, invoice, status, amount, currency,
	failure_code, failure_message, balance_transaction, created`

// Get retrieves a charge by ID.
func (s *ChargeStore) Get(ctx context.Context, id string) (billing.Charge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+chargeColumns+` FROM charges WHERE id = ?
	`, id)
	ch, err := scanCharge(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Charge{}, ports.ErrNotFound
	}
	return ch, err
}

// Create stores a new charge. Charges are immutable once written.
func (s *ChargeStore) Create(ctx context.Context, ch billing.Charge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO charges (`+chargeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ch.ID, ch.Customer, ch.Invoice, string(ch.Status), ch.Amount, ch.Currency,
		ch.FailureCode, ch.FailureMessage, ch.BalanceTransaction, ch.Created)
	return err
}

// List returns charges in insertion order with pagination.
func (s *ChargeStore) List(ctx context.Context, opts ports.ListOptions) ([]billing.Charge, bool, error) {
	limit := normalizeLimit(opts.Limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chargeColumns+` FROM charges
		WHERE ? = '' OR rowid > (SELECT rowid FROM charges WHERE id = ?)
		ORDER BY rowid
		LIMIT ?
	`, opts.StartingAfter, opts.StartingAfter, limit+1)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var charges []billing.Charge
	for rows.Next() {
		ch, err := scanCharge(rows.Scan)
		if err != nil {
			return nil, false, err
		}
		charges = append(charges, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	charges, hasMore := trimPage(charges, limit)
	return charges, hasMore, nil
}

// Clear removes all charges.
func (s *ChargeStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM charges`)
	return err
}

func scanCharge(scan func(...any) error) (billing.Charge, error) {
	var ch billing.Charge
	var status string
	err := scan(
		&ch.ID, &ch.Customer, &ch.Invoice, &status, &ch.Amount, &ch.Currency,
		&ch.FailureCode, &ch.FailureMessage, &ch.BalanceTransaction, &ch.Created,
	)
	if err != nil {
		return billing.Charge{}, err
	}
	ch.Status = billing.ChargeStatus(status)
	return ch, nil
}

// Ensure interface compliance.
var _ ports.ChargeStore = (*ChargeStore)(nil)
