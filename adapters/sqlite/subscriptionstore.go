package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/artpar/paymock/domain/billing"
	"github.com/artpar/paymock/ports"
)

// SubscriptionStore implements ports.SubscriptionStore using SQLite.
type SubscriptionStore struct {
	db *DB
}

// NewSubscriptionStore creates a new SQLite subscription store.
func NewSubscriptionStore(db *DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionColumns = `id, customer, status, plan, current_period_start,
	current_period_end, trial_end, canceled_at, created`

// Get retrieves a subscription by ID.
func (s *SubscriptionStore) Get(ctx context.Context, id string) (billing.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?
	`, id)
	sub, err := scanSubscription(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Subscription{}, ports.ErrNotFound
	}
	return sub, err
}

// Create stores a new subscription.
func (s *SubscriptionStore) Create(ctx context.Context, sub billing.Subscription) error {
	planJSON, err := json.Marshal(sub.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.Customer, string(sub.Status), string(planJSON),
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.TrialEnd, sub.CanceledAt, sub.Created)
	return err
}

// Update modifies an existing subscription.
func (s *SubscriptionStore) Update(ctx context.Context, sub billing.Subscription) error {
	planJSON, err := json.Marshal(sub.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET customer = ?, status = ?, plan = ?, current_period_start = ?,
		    current_period_end = ?, trial_end = ?, canceled_at = ?, created = ?
		WHERE id = ?
	`, sub.Customer, string(sub.Status), string(planJSON), sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd, sub.TrialEnd, sub.CanceledAt, sub.Created, sub.ID)
	if err != nil {
		return err
	}
	return notFoundOnZeroRows(result)
}

// List returns subscriptions in insertion order with pagination.
func (s *SubscriptionStore) List(ctx context.Context, opts ports.ListOptions) ([]billing.Subscription, bool, error) {
	limit := normalizeLimit(opts.Limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE ? = '' OR rowid > (SELECT rowid FROM subscriptions WHERE id = ?)
		ORDER BY rowid
		LIMIT ?
	`, opts.StartingAfter, opts.StartingAfter, limit+1)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	subs, err := collectSubscriptions(rows)
	if err != nil {
		return nil, false, err
	}
	subs, hasMore := trimPage(subs, limit)
	return subs, hasMore, nil
}

// All returns every subscription, for billing pass scans.
func (s *SubscriptionStore) All(ctx context.Context) ([]billing.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY rowid
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// Clear removes all subscriptions.
func (s *SubscriptionStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions`)
	return err
}

func collectSubscriptions(rows *sql.Rows) ([]billing.Subscription, error) {
	var subs []billing.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows.Scan)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanSubscription(scan func(...any) error) (billing.Subscription, error) {
	var sub billing.Subscription
	var status, planJSON string
	err := scan(
		&sub.ID, &sub.Customer, &status, &planJSON,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&sub.TrialEnd, &sub.CanceledAt, &sub.Created,
	)
	if err != nil {
		return billing.Subscription{}, err
	}
	sub.Status = billing.SubscriptionStatus(status)
	if err := json.Unmarshal([]byte(planJSON), &sub.Plan); err != nil {
		return billing.Subscription{}, fmt.Errorf("unmarshal plan: %w", err)
	}
	return sub, nil
}

// Ensure interface compliance.
var _ ports.SubscriptionStore = (*SubscriptionStore)(nil)
