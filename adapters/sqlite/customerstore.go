package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/artpar/paymock/ports"
)

// CustomerStore implements ports.CustomerStore using SQLite.
type CustomerStore struct {
	db *DB
}

// NewCustomerStore creates a new SQLite customer store.
func NewCustomerStore(db *DB) *CustomerStore {
	return &CustomerStore{db: db}
}

// Get retrieves a customer by ID.
func (s *CustomerStore) Get(ctx context.Context, id string) (ports.Customer, error) {
	var c ports.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, created FROM customers WHERE id = ?
	`, id).Scan(&c.ID, &c.Email, &c.Name, &c.Created)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Customer{}, ports.ErrNotFound
	}
	return c, err
}

// Create stores a new customer.
func (s *CustomerStore) Create(ctx context.Context, c ports.Customer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, email, name, created) VALUES (?, ?, ?, ?)
	`, c.ID, c.Email, c.Name, c.Created)
	return err
}

// Delete removes a customer.
func (s *CustomerStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return notFoundOnZeroRows(result)
}

// List returns customers in insertion order with pagination.
func (s *CustomerStore) List(ctx context.Context, opts ports.ListOptions) ([]ports.Customer, bool, error) {
	limit := normalizeLimit(opts.Limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, name, created FROM customers
		WHERE ? = '' OR rowid > (SELECT rowid FROM customers WHERE id = ?)
		ORDER BY rowid
		LIMIT ?
	`, opts.StartingAfter, opts.StartingAfter, limit+1)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var customers []ports.Customer
	for rows.Next() {
		var c ports.Customer
		if err := rows.Scan(&c.ID, &c.Email, &c.Name, &c.Created); err != nil {
			return nil, false, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	customers, hasMore := trimPage(customers, limit)
	return customers, hasMore, nil
}

// Clear removes all customers.
func (s *CustomerStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM customers`)
	return err
}

// Ensure interface compliance.
var _ ports.CustomerStore = (*CustomerStore)(nil)
