package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
)

type webhookRow struct {
	EventID        string        `db:"event_id"`
	Type           string        `db:"event_type"`
	ClaimedAt      int64         `db:"claimed_at"`
	LeaseExpiresAt int64         `db:"lease_expires_at"`
	ProcessedAt    sql.NullInt64 `db:"processed_at"`
}

// ClaimWebhook inserts a claim for the event, or takes over a claim whose
// lease ran out before the event was processed.
func (s *Store) ClaimWebhook(ctx context.Context, event storage.WebhookEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := requireID("event id", event.EventID); err != nil {
		return err
	}
	result, err := s.exec(ctx,
		`INSERT INTO partner_webhooks (event_id, event_type, claimed_at, lease_expires_at, processed_at)
		 VALUES (?, ?, ?, ?, NULL)
		 ON CONFLICT (event_id) DO UPDATE SET
		   event_type = excluded.event_type,
		   claimed_at = excluded.claimed_at,
		   lease_expires_at = excluded.lease_expires_at
		 WHERE partner_webhooks.processed_at IS NULL
		   AND partner_webhooks.lease_expires_at <= excluded.claimed_at`,
		event.EventID, event.Type, toMillis(event.ClaimedAt), toMillis(event.LeaseExpiresAt),
	)
	if err = requireOneRow(result, mapInsertError(err)); err != nil {
		return fmt.Errorf("claim webhook: %w", err)
	}
	return nil
}

// CompleteWebhook marks a claimed event processed.
func (s *Store) CompleteWebhook(ctx context.Context, eventID string, processedAt time.Time) error {
	result, err := s.exec(ctx,
		`UPDATE partner_webhooks SET processed_at = ? WHERE event_id = ? AND processed_at IS NULL`,
		toMillis(processedAt), eventID,
	)
	if err = requireOneRow(result, err); err != nil {
		return fmt.Errorf("complete webhook: %w", err)
	}
	return nil
}

// ReleaseWebhook drops an unprocessed claim so a redelivery can dispatch.
func (s *Store) ReleaseWebhook(ctx context.Context, eventID string) error {
	if _, err := s.exec(ctx, `DELETE FROM partner_webhooks WHERE event_id = ? AND processed_at IS NULL`, eventID); err != nil {
		return fmt.Errorf("release webhook: %w", err)
	}
	return nil
}

// GetWebhook fetches an event's claim.
func (s *Store) GetWebhook(ctx context.Context, eventID string) (storage.WebhookEvent, error) {
	var row webhookRow
	err := s.get(ctx, &row,
		`SELECT event_id, event_type, claimed_at, lease_expires_at, processed_at FROM partner_webhooks WHERE event_id = ?`,
		eventID,
	)
	if err != nil {
		return storage.WebhookEvent{}, err
	}
	return storage.WebhookEvent{
		EventID:        row.EventID,
		Type:           row.Type,
		ClaimedAt:      fromMillis(row.ClaimedAt),
		LeaseExpiresAt: fromMillis(row.LeaseExpiresAt),
		ProcessedAt:    fromNullMillis(row.ProcessedAt),
	}, nil
}
