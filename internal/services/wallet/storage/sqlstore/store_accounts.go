package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
)

type userRow struct {
	ID          string `db:"id"`
	Email       string `db:"email"`
	DisplayName string `db:"display_name"`
	CreatedAt   int64  `db:"created_at"`
}

func (r userRow) toDomain() storage.User {
	return storage.User{ID: r.ID, Email: r.Email, DisplayName: r.DisplayName, CreatedAt: fromMillis(r.CreatedAt)}
}

// PutUser inserts a user. Duplicate ids or emails are storage.ErrConflict.
func (s *Store) PutUser(ctx context.Context, u storage.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := requireID("user id", u.ID); err != nil {
		return err
	}
	if err := requireID("email", u.Email); err != nil {
		return err
	}
	_, err := s.exec(ctx,
		`INSERT INTO users (id, email, display_name, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.DisplayName, toMillis(u.CreatedAt),
	)
	if err = mapInsertError(err); err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (storage.User, error) {
	var row userRow
	if err := s.get(ctx, &row, `SELECT id, email, display_name, created_at FROM users WHERE id = ?`, userID); err != nil {
		return storage.User{}, err
	}
	return row.toDomain(), nil
}

// GetUserByEmail fetches a user by case-insensitive email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (storage.User, error) {
	var row userRow
	err := s.get(ctx, &row, `SELECT id, email, display_name, created_at FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return storage.User{}, err
	}
	return row.toDomain(), nil
}

type cardRow struct {
	ID              string `db:"id"`
	UserID          string `db:"user_id"`
	WalletCardToken string `db:"wallet_card_token"`
	Network         string `db:"network"`
	Last4           string `db:"last4"`
	CreatedAt       int64  `db:"created_at"`
}

func (r cardRow) toDomain() storage.Card {
	return storage.Card{
		ID:              r.ID,
		UserID:          r.UserID,
		WalletCardToken: r.WalletCardToken,
		Network:         r.Network,
		Last4:           r.Last4,
		CreatedAt:       fromMillis(r.CreatedAt),
	}
}

const cardColumns = `id, user_id, wallet_card_token, network, last4, created_at`

// PutCard inserts a card.
func (s *Store) PutCard(ctx context.Context, card storage.Card) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := requireID("card id", card.ID); err != nil {
		return err
	}
	if err := requireID("user id", card.UserID); err != nil {
		return err
	}
	_, err := s.exec(ctx,
		`INSERT INTO cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		card.ID, card.UserID, card.WalletCardToken, card.Network, card.Last4, toMillis(card.CreatedAt),
	)
	if err = mapInsertError(err); err != nil {
		return fmt.Errorf("put card: %w", err)
	}
	return nil
}

// GetCard fetches a card by id.
func (s *Store) GetCard(ctx context.Context, cardID string) (storage.Card, error) {
	var row cardRow
	if err := s.get(ctx, &row, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, cardID); err != nil {
		return storage.Card{}, err
	}
	return row.toDomain(), nil
}

// ListCards returns a user's cards, oldest first.
func (s *Store) ListCards(ctx context.Context, userID string) ([]storage.Card, error) {
	var rows []cardRow
	if err := s.selectRows(ctx, &rows, `SELECT `+cardColumns+` FROM cards WHERE user_id = ? ORDER BY created_at, id`, userID); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	cards := make([]storage.Card, 0, len(rows))
	for _, row := range rows {
		cards = append(cards, row.toDomain())
	}
	return cards, nil
}

type merchantRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	KeyHash   string `db:"key_hash"`
	CreatedAt int64  `db:"created_at"`
}

// PutMerchant inserts a merchant.
func (s *Store) PutMerchant(ctx context.Context, m storage.Merchant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := requireID("merchant id", m.ID); err != nil {
		return err
	}
	_, err := s.exec(ctx,
		`INSERT INTO merchants (id, name, key_hash, created_at) VALUES (?, ?, ?, ?)`,
		m.ID, m.Name, m.KeyHash, toMillis(m.CreatedAt),
	)
	if err = mapInsertError(err); err != nil {
		return fmt.Errorf("put merchant: %w", err)
	}
	return nil
}

// GetMerchant fetches a merchant by id.
func (s *Store) GetMerchant(ctx context.Context, merchantID string) (storage.Merchant, error) {
	var row merchantRow
	if err := s.get(ctx, &row, `SELECT id, name, key_hash, created_at FROM merchants WHERE id = ?`, merchantID); err != nil {
		return storage.Merchant{}, err
	}
	return storage.Merchant{ID: row.ID, Name: row.Name, KeyHash: row.KeyHash, CreatedAt: fromMillis(row.CreatedAt)}, nil
}
