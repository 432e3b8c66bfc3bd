package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/artpar/paymock/domain/webhook"
	"github.com/artpar/paymock/ports"
)

// EventStore implements ports.EventStore using SQLite. The delivery attempt
// log is stored as a JSON column and only ever appended to.
type EventStore struct {
	db *DB
}

// NewEventStore creates a new SQLite event store.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// Get retrieves an event by ID.
func (s *EventStore) Get(ctx context.Context, id string) (webhook.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, data, created, delivery_attempts FROM events WHERE id = ?
	`, id)
	ev, err := scanEvent(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return webhook.Event{}, ports.ErrNotFound
	}
	return ev, err
}

// Create stores a new event.
func (s *EventStore) Create(ctx context.Context, ev webhook.Event) error {
	attempts, err := marshalAttempts(ev.DeliveryAttempts)
	if err != nil {
		return err
	}
	data := string(ev.Data)
	if data == "" {
		data = "{}"
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, type, data, created, delivery_attempts)
		VALUES (?, ?, ?, ?, ?)
	`, ev.ID, ev.Type, data, ev.Created, attempts)
	return err
}

// List returns events in insertion order with pagination.
func (s *EventStore) List(ctx context.Context, opts ports.ListOptions) ([]webhook.Event, bool, error) {
	limit := normalizeLimit(opts.Limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, data, created, delivery_attempts FROM events
		WHERE ? = '' OR rowid > (SELECT rowid FROM events WHERE id = ?)
		ORDER BY rowid
		LIMIT ?
	`, opts.StartingAfter, opts.StartingAfter, limit+1)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var events []webhook.Event
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, false, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	events, hasMore := trimPage(events, limit)
	return events, hasMore, nil
}

// AppendAttempt appends one delivery attempt to an event's log. The
// read-modify-write runs in a transaction so concurrent deliveries cannot
// drop each other's attempts.
func (s *EventStore) AppendAttempt(ctx context.Context, eventID string, attempt webhook.DeliveryAttempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var attemptsJSON string
	err = tx.QueryRowContext(ctx, `
		SELECT delivery_attempts FROM events WHERE id = ?
	`, eventID).Scan(&attemptsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ErrNotFound
	}
	if err != nil {
		return err
	}

	var attempts []webhook.DeliveryAttempt
	if err := json.Unmarshal([]byte(attemptsJSON), &attempts); err != nil {
		return fmt.Errorf("unmarshal delivery attempts: %w", err)
	}
	attempts = append(attempts, attempt)

	updated, err := marshalAttempts(attempts)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE events SET delivery_attempts = ? WHERE id = ?
	`, updated, eventID); err != nil {
		return err
	}
	return tx.Commit()
}

// Clear removes all events.
func (s *EventStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events`)
	return err
}

func scanEvent(scan func(...any) error) (webhook.Event, error) {
	var ev webhook.Event
	var data, attemptsJSON string
	if err := scan(&ev.ID, &ev.Type, &data, &ev.Created, &attemptsJSON); err != nil {
		return webhook.Event{}, err
	}
	ev.Data = json.RawMessage(data)
	if err := json.Unmarshal([]byte(attemptsJSON), &ev.DeliveryAttempts); err != nil {
		return webhook.Event{}, fmt.Errorf("unmarshal delivery attempts: %w", err)
	}
	return ev, nil
}

func marshalAttempts(attempts []webhook.DeliveryAttempt) (string, error) {
	if attempts == nil {
		return "[]", nil
	}
	b, err := json.Marshal(attempts)
	if err != nil {
		return "", fmt.Errorf("marshal delivery attempts: %w", err)
	}
	return string(b), nil
}

// Ensure interface compliance.
var _ ports.EventStore = (*EventStore)(nil)
