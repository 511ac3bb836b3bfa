package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
)

// Status literals used in guarded updates. They mirror payment.Status.
const (
	statusPending   = "pending"
	statusApproved  = "approved"
	statusCompleted = "completed"
	statusCancelled = "cancelled"
)

type paymentRow struct {
	ID                 string         `db:"id"`
	MerchantID         string         `db:"merchant_id"`
	OrderRef           string         `db:"order_ref"`
	AmountMinor        int64          `db:"amount_minor"`
	Currency           string         `db:"currency"`
	Status             string         `db:"status"`
	UserID             sql.NullString `db:"user_id"`
	CardID             sql.NullString `db:"card_id"`
	EphemeralCardToken sql.NullString `db:"ephemeral_card_token"`
	WalletCardToken    sql.NullString `db:"wallet_card_token"`
	OneTimeTokenDigest sql.NullString `db:"one_time_token_digest"`
	CreatedAt          int64          `db:"created_at"`
	ExpiresAt          int64          `db:"expires_at"`
	ApprovedAt         sql.NullInt64  `db:"approved_at"`
	CompletedAt        sql.NullInt64  `db:"completed_at"`
	CancelledAt        sql.NullInt64  `db:"cancelled_at"`
}

func (r paymentRow) toDomain() storage.PaymentRequest {
	return storage.PaymentRequest{
		ID:                 r.ID,
		MerchantID:         r.MerchantID,
		OrderRef:           r.OrderRef,
		AmountMinor:        r.AmountMinor,
		Currency:           r.Currency,
		Status:             r.Status,
		UserID:             r.UserID.String,
		CardID:             r.CardID.String,
		EphemeralCardToken: r.EphemeralCardToken.String,
		WalletCardToken:    r.WalletCardToken.String,
		OneTimeTokenDigest: r.OneTimeTokenDigest.String,
		CreatedAt:          fromMillis(r.CreatedAt),
		ExpiresAt:          fromMillis(r.ExpiresAt),
		ApprovedAt:         fromNullMillis(r.ApprovedAt),
		CompletedAt:        fromNullMillis(r.CompletedAt),
		CancelledAt:        fromNullMillis(r.CancelledAt),
	}
}

const paymentColumns = `id, merchant_id, order_ref, amount_minor, currency, status, user_id, card_id,
ephemeral_card_token, wallet_card_token, one_time_token_digest, created_at, expires_at,
approved_at, completed_at, cancelled_at`

// CreatePayment inserts a new payment request.
func (s *Store) CreatePayment(ctx context.Context, p storage.PaymentRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := requireID("payment id", p.ID); err != nil {
		return err
	}
	if err := requireID("merchant id", p.MerchantID); err != nil {
		return err
	}
	_, err := s.exec(ctx,
		`INSERT INTO payment_requests (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.MerchantID,
		p.OrderRef,
		p.AmountMinor,
		p.Currency,
		p.Status,
		toNullString(p.UserID),
		toNullString(p.CardID),
		toNullString(p.EphemeralCardToken),
		toNullString(p.WalletCardToken),
		toNullString(p.OneTimeTokenDigest),
		toMillis(p.CreatedAt),
		toMillis(p.ExpiresAt),
		toNullMillis(p.ApprovedAt),
		toNullMillis(p.CompletedAt),
		toNullMillis(p.CancelledAt),
	)
	if err = mapInsertError(err); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// GetPayment fetches a payment request by id.
func (s *Store) GetPayment(ctx context.Context, paymentID string) (storage.PaymentRequest, error) {
	var row paymentRow
	if err := s.get(ctx, &row, `SELECT `+paymentColumns+` FROM payment_requests WHERE id = ?`, paymentID); err != nil {
		return storage.PaymentRequest{}, err
	}
	return row.toDomain(), nil
}

// ClaimPayment binds an unclaimed, live, pending request to userID.
// Re-claiming by the same user succeeds.
func (s *Store) ClaimPayment(ctx context.Context, paymentID, userID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.exec(ctx,
		`UPDATE payment_requests SET user_id = ?
		 WHERE id = ? AND status = ? AND expires_at > ? AND (user_id IS NULL OR user_id = ?)`,
		userID, paymentID, statusPending, toMillis(now), userID,
	)
	if err := requireOneRow(result, err); err != nil {
		return fmt.Errorf("claim payment: %w", err)
	}
	return nil
}

// ApprovePayment moves a live pending request owned by userID to approved.
func (s *Store) ApprovePayment(ctx context.Context, paymentID, userID string, approval storage.PaymentApproval) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.exec(ctx,
		`UPDATE payment_requests
		 SET status = ?, card_id = ?, ephemeral_card_token = ?, wallet_card_token = ?,
		     one_time_token_digest = ?, approved_at = ?
		 WHERE id = ? AND user_id = ? AND status = ? AND expires_at > ?`,
		statusApproved,
		approval.CardID,
		approval.EphemeralCardToken,
		approval.WalletCardToken,
		approval.OneTimeTokenDigest,
		toMillis(approval.ApprovedAt),
		paymentID, userID, statusPending, toMillis(approval.ApprovedAt),
	)
	if err := requireOneRow(result, err); err != nil {
		return fmt.Errorf("approve payment: %w", err)
	}
	return nil
}

// CompletePayment moves a live approved request to completed and clears the
// one-time token. The digest guard makes the token single-use.
func (s *Store) CompletePayment(ctx context.Context, paymentID, merchantID, tokenDigest string, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.exec(ctx,
		`UPDATE payment_requests
		 SET status = ?, completed_at = ?, one_time_token_digest = NULL
		 WHERE id = ? AND merchant_id = ? AND status = ? AND one_time_token_digest = ? AND expires_at > ?`,
		statusCompleted, toMillis(completedAt),
		paymentID, merchantID, statusApproved, tokenDigest, toMillis(completedAt),
	)
	if err := requireOneRow(result, err); err != nil {
		return fmt.Errorf("complete payment: %w", err)
	}
	return nil
}

// CancelPayment moves a live request from fromStatus to cancelled.
func (s *Store) CancelPayment(ctx context.Context, paymentID, fromStatus string, cancelledAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if fromStatus != statusPending && fromStatus != statusApproved {
		return fmt.Errorf("cancel payment: %w", storage.ErrConflict)
	}
	result, err := s.exec(ctx,
		`UPDATE payment_requests
		 SET status = ?, cancelled_at = ?, one_time_token_digest = NULL
		 WHERE id = ? AND status = ? AND expires_at > ?`,
		statusCancelled, toMillis(cancelledAt), paymentID, fromStatus, toMillis(cancelledAt),
	)
	if err := requireOneRow(result, err); err != nil {
		return fmt.Errorf("cancel payment: %w", err)
	}
	return nil
}

// DeleteStalePayments removes never-claimed pending requests that expired
// before cutoff.
func (s *Store) DeleteStalePayments(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.exec(ctx,
		`DELETE FROM payment_requests WHERE status = ? AND user_id IS NULL AND expires_at < ?`,
		statusPending, toMillis(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale payments: %w", err)
	}
	return result.RowsAffected()
}
