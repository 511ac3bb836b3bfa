package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
)

type deviceRow struct {
	ID              string        `db:"id"`
	UserID          string        `db:"user_id"`
	Platform        string        `db:"platform"`
	SecretDigest    string        `db:"secret_digest"`
	SecretExpiresAt int64         `db:"secret_expires_at"`
	CreatedAt       int64         `db:"created_at"`
	UpdatedAt       int64         `db:"updated_at"`
	LastUsedAt      sql.NullInt64 `db:"last_used_at"`
}

const deviceColumns = `id, user_id, platform, secret_digest, secret_expires_at, created_at, updated_at, last_used_at`

// UpsertDevice inserts a device or refreshes the platform and secret of a
// device the same user already owns. A device id held by another user is
// left untouched and reported as ErrConflict. created_at is kept from the
// first registration.
func (s *Store) UpsertDevice(ctx context.Context, device storage.Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := requireID("device id", device.ID); err != nil {
		return err
	}
	if err := requireID("user id", device.UserID); err != nil {
		return err
	}
	result, err := s.exec(ctx,
		`INSERT INTO devices (`+deviceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   platform = excluded.platform,
		   secret_digest = excluded.secret_digest,
		   secret_expires_at = excluded.secret_expires_at,
		   updated_at = excluded.updated_at
		 WHERE devices.user_id = excluded.user_id`,
		device.ID,
		device.UserID,
		device.Platform,
		device.SecretDigest,
		toMillis(device.SecretExpiresAt),
		toMillis(device.CreatedAt),
		toMillis(device.UpdatedAt),
		toNullMillis(device.LastUsedAt),
	)
	if err = requireOneRow(result, mapInsertError(err)); err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

// GetDevice fetches a device by id.
func (s *Store) GetDevice(ctx context.Context, deviceID string) (storage.Device, error) {
	var row deviceRow
	if err := s.get(ctx, &row, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, deviceID); err != nil {
		return storage.Device{}, err
	}
	return storage.Device{
		ID:              row.ID,
		UserID:          row.UserID,
		Platform:        row.Platform,
		SecretDigest:    row.SecretDigest,
		SecretExpiresAt: fromMillis(row.SecretExpiresAt),
		CreatedAt:       fromMillis(row.CreatedAt),
		UpdatedAt:       fromMillis(row.UpdatedAt),
		LastUsedAt:      fromNullMillis(row.LastUsedAt),
	}, nil
}

// TouchDevice stamps the device's last-used time.
func (s *Store) TouchDevice(ctx context.Context, deviceID string, usedAt time.Time) error {
	result, err := s.exec(ctx, `UPDATE devices SET last_used_at = ? WHERE id = ?`, toMillis(usedAt), deviceID)
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
