package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
)

type refreshTokenRow struct {
	JTI       string        `db:"jti"`
	UserID    string        `db:"user_id"`
	DeviceID  string        `db:"device_id"`
	IssuedAt  int64         `db:"issued_at"`
	ExpiresAt int64         `db:"expires_at"`
	RevokedAt sql.NullInt64 `db:"revoked_at"`
}

const refreshTokenColumns = `jti, user_id, device_id, issued_at, expires_at, revoked_at`

const insertRefreshToken = `INSERT INTO refresh_tokens (` + refreshTokenColumns + `) VALUES (?, ?, ?, ?, ?, ?)`

func refreshTokenArgs(record storage.RefreshToken) []any {
	return []any{
		record.JTI,
		record.UserID,
		record.DeviceID,
		toMillis(record.IssuedAt),
		toMillis(record.ExpiresAt),
		toNullMillis(record.RevokedAt),
	}
}

func validateRefreshToken(record storage.RefreshToken) error {
	if err := requireID("jti", record.JTI); err != nil {
		return err
	}
	if err := requireID("user id", record.UserID); err != nil {
		return err
	}
	return requireID("device id", record.DeviceID)
}

// PutRefreshToken inserts a refresh token record.
func (s *Store) PutRefreshToken(ctx context.Context, record storage.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRefreshToken(record); err != nil {
		return err
	}
	_, err := s.exec(ctx, insertRefreshToken, refreshTokenArgs(record)...)
	if err = mapInsertError(err); err != nil {
		return fmt.Errorf("put refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken fetches a record by jti.
func (s *Store) GetRefreshToken(ctx context.Context, jti string) (storage.RefreshToken, error) {
	var row refreshTokenRow
	if err := s.get(ctx, &row, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE jti = ?`, jti); err != nil {
		return storage.RefreshToken{}, err
	}
	return storage.RefreshToken{
		JTI:       row.JTI,
		UserID:    row.UserID,
		DeviceID:  row.DeviceID,
		IssuedAt:  fromMillis(row.IssuedAt),
		ExpiresAt: fromMillis(row.ExpiresAt),
		RevokedAt: fromNullMillis(row.RevokedAt),
	}, nil
}

// RotateRefreshToken revokes the live record oldJTI and inserts next in one
// transaction. Two concurrent rotations of the same jti cannot both succeed.
func (s *Store) RotateRefreshToken(ctx context.Context, oldJTI string, now time.Time, next storage.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRefreshToken(next); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE refresh_tokens SET revoked_at = ?
		 WHERE jti = ? AND revoked_at IS NULL AND expires_at > ?`),
		toMillis(now), oldJTI, toMillis(now),
	)
	if err := requireOneRow(result, err); err != nil {
		return fmt.Errorf("revoke rotated token: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(insertRefreshToken), refreshTokenArgs(next)...); err != nil {
		return fmt.Errorf("insert rotated token: %w", mapInsertError(err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rotate: %w", err)
	}
	return nil
}

// RevokeDeviceRefreshTokens revokes every live record for one device.
func (s *Store) RevokeDeviceRefreshTokens(ctx context.Context, userID, deviceID string, now time.Time) (int64, error) {
	result, err := s.exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND device_id = ? AND revoked_at IS NULL`,
		toMillis(now), userID, deviceID,
	)
	if err != nil {
		return 0, fmt.Errorf("revoke device tokens: %w", err)
	}
	return result.RowsAffected()
}

// RevokeUserRefreshTokens revokes every live record for a user.
func (s *Store) RevokeUserRefreshTokens(ctx context.Context, userID string, now time.Time) (int64, error) {
	result, err := s.exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`,
		toMillis(now), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}
	return result.RowsAffected()
}
