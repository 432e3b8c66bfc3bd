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

// WebhookEndpointStore implements ports.WebhookEndpointStore using SQLite.
type WebhookEndpointStore struct {
	db *DB
}

// NewWebhookEndpointStore creates a new SQLite webhook endpoint store.
func NewWebhookEndpointStore(db *DB) *WebhookEndpointStore {
	return &WebhookEndpointStore{db: db}
}

// Get retrieves an endpoint by ID.
func (s *WebhookEndpointStore) Get(ctx context.Context, id string) (webhook.Endpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, secret, enabled_events, status, created
		FROM webhook_endpoints WHERE id = ?
	`, id)
	ep, err := scanEndpoint(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return webhook.Endpoint{}, ports.ErrNotFound
	}
	return ep, err
}

// Create stores a new endpoint.
func (s *WebhookEndpointStore) Create(ctx context.Context, ep webhook.Endpoint) error {
	events, err := json.Marshal(ep.EnabledEvents)
	if err != nil {
		return fmt.Errorf("marshal enabled events: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO webhook_endpoints (id, url, secret, enabled_events, status, created)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ep.ID, ep.URL, ep.Secret, string(events), string(ep.Status), ep.Created)
	return err
}

// Update modifies an existing endpoint.
func (s *WebhookEndpointStore) Update(ctx context.Context, ep webhook.Endpoint) error {
	events, err := json.Marshal(ep.EnabledEvents)
	if err != nil {
		return fmt.Errorf("marshal enabled events: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE webhook_endpoints
		SET url = ?, secret = ?, enabled_events = ?, status = ?, created = ?
		WHERE id = ?
	`, ep.URL, ep.Secret, string(events), string(ep.Status), ep.Created, ep.ID)
	if err != nil {
		return err
	}
	return notFoundOnZeroRows(result)
}

// Delete removes an endpoint.
func (s *WebhookEndpointStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM webhook_endpoints WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return notFoundOnZeroRows(result)
}

// List returns endpoints in insertion order with pagination.
func (s *WebhookEndpointStore) List(ctx context.Context, opts ports.ListOptions) ([]webhook.Endpoint, bool, error) {
	limit := normalizeLimit(opts.Limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, secret, enabled_events, status, created
		FROM webhook_endpoints
		WHERE ? = '' OR rowid > (SELECT rowid FROM webhook_endpoints WHERE id = ?)
		ORDER BY rowid
		LIMIT ?
	`, opts.StartingAfter, opts.StartingAfter, limit+1)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var endpoints []webhook.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows.Scan)
		if err != nil {
			return nil, false, err
		}
		endpoints = append(endpoints, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	endpoints, hasMore := trimPage(endpoints, limit)
	return endpoints, hasMore, nil
}

// Clear removes all endpoints.
func (s *WebhookEndpointStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM webhook_endpoints`)
	return err
}

func scanEndpoint(scan func(...any) error) (webhook.Endpoint, error) {
	var ep webhook.Endpoint
	var events, status string
	if err := scan(&ep.ID, &ep.URL, &ep.Secret, &events, &status, &ep.Created); err != nil {
		return webhook.Endpoint{}, err
	}
	ep.Status = webhook.EndpointStatus(status)
	if err := json.Unmarshal([]byte(events), &ep.EnabledEvents); err != nil {
		return webhook.Endpoint{}, fmt.Errorf("unmarshal enabled events: %w", err)
	}
	return ep, nil
}

// Ensure interface compliance.
var _ ports.WebhookEndpointStore = (*WebhookEndpointStore)(nil)
