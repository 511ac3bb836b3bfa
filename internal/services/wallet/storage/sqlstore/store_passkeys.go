package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
)

type passkeyRow struct {
	CredentialID   string        `db:"credential_id"`
	UserID         string        `db:"user_id"`
	CredentialJSON string        `db:"credential_json"`
	SignCount      int64         `db:"sign_count"`
	CreatedAt      int64         `db:"created_at"`
	LastUsedAt     sql.NullInt64 `db:"last_used_at"`
}

func (r passkeyRow) toDomain() storage.PasskeyCredential {
	return storage.PasskeyCredential{
		CredentialID:   r.CredentialID,
		UserID:         r.UserID,
		CredentialJSON: r.CredentialJSON,
		SignCount:      uint32(r.SignCount),
		CreatedAt:      fromMillis(r.CreatedAt),
		LastUsedAt:     fromNullMillis(r.LastUsedAt),
	}
}

const passkeyColumns = `credential_id, user_id, credential_json, sign_count, created_at, last_used_at`

// CreatePasskeyCredential inserts a credential. Credential ids are unique
// across all users.
func (s *Store) CreatePasskeyCredential(ctx context.Context, credential storage.PasskeyCredential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := requireID("credential id", credential.CredentialID); err != nil {
		return err
	}
	if err := requireID("user id", credential.UserID); err != nil {
		return err
	}
	_, err := s.exec(ctx,
		`INSERT INTO passkey_credentials (`+passkeyColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		credential.CredentialID,
		credential.UserID,
		credential.CredentialJSON,
		int64(credential.SignCount),
		toMillis(credential.CreatedAt),
		toNullMillis(credential.LastUsedAt),
	)
	if err = mapInsertError(err); err != nil {
		return fmt.Errorf("create passkey credential: %w", err)
	}
	return nil
}

// GetPasskeyCredential fetches a credential by id.
func (s *Store) GetPasskeyCredential(ctx context.Context, credentialID string) (storage.PasskeyCredential, error) {
	var row passkeyRow
	if err := s.get(ctx, &row, `SELECT `+passkeyColumns+` FROM passkey_credentials WHERE credential_id = ?`, credentialID); err != nil {
		return storage.PasskeyCredential{}, err
	}
	return row.toDomain(), nil
}

// ListPasskeyCredentials returns the user's credentials, oldest first.
func (s *Store) ListPasskeyCredentials(ctx context.Context, userID string) ([]storage.PasskeyCredential, error) {
	var rows []passkeyRow
	err := s.selectRows(ctx, &rows,
		`SELECT `+passkeyColumns+` FROM passkey_credentials WHERE user_id = ? ORDER BY created_at, credential_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list passkey credentials: %w", err)
	}
	credentials := make([]storage.PasskeyCredential, 0, len(rows))
	for _, row := range rows {
		credentials = append(credentials, row.toDomain())
	}
	return credentials, nil
}

// RecordPasskeyUse persists the counter and last-used time after a verified
// assertion. The sign_count guard keeps concurrent logins from moving the
// counter backwards.
func (s *Store) RecordPasskeyUse(ctx context.Context, credentialID, credentialJSON string, signCount uint32, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.exec(ctx,
		`UPDATE passkey_credentials
		 SET credential_json = ?, sign_count = ?, last_used_at = ?
		 WHERE credential_id = ? AND sign_count <= ?`,
		credentialJSON, int64(signCount), toMillis(usedAt), credentialID, int64(signCount),
	)
	if err := requireOneRow(result, err); err != nil {
		return fmt.Errorf("record passkey use: %w", err)
	}
	return nil
}

// DeletePasskeyCredential removes a credential owned by userID.
func (s *Store) DeletePasskeyCredential(ctx context.Context, userID, credentialID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.exec(ctx,
		`DELETE FROM passkey_credentials WHERE credential_id = ? AND user_id = ?`, credentialID, userID)
	if err != nil {
		return fmt.Errorf("delete passkey credential: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete passkey credential: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
