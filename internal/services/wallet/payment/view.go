package payment

import (
	"time"

	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
)

// View is the payment request as seen by its merchant or owning user.
type View struct {
	ID          string     `json:"id"`
	MerchantID  string     `json:"merchantId"`
	OrderRef    string     `json:"orderRef"`
	Amount      string     `json:"amount"`
	AmountMinor int64      `json:"amountMinor"`
	Currency    string     `json:"currency"`
	Status      Status     `json:"status"`
	UserID      string     `json:"userId,omitempty"`
	CardID      string     `json:"cardId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

// PublicView carries only the fields safe to show without credentials.
type PublicView struct {
	ID           string    `json:"id"`
	MerchantName string    `json:"merchantName"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	Status       Status    `json:"status"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Approval is returned to the approving device. OneTimeToken is shown once.
type Approval struct {
	Payment      View   `json:"payment"`
	OneTimeToken string `json:"oneTimeToken"`
}

// Settlement is returned to the merchant on completion.
type Settlement struct {
	Payment            View   `json:"payment"`
	EphemeralCardToken string `json:"ephemeralCardToken"`
	WalletCardToken    string `json:"walletCardToken"`
}

func toView(record storage.PaymentRequest, now time.Time) View {
	return View{
		ID:          record.ID,
		MerchantID:  record.MerchantID,
		OrderRef:    record.OrderRef,
		Amount:      FormatAmount(record.AmountMinor, record.Currency),
		AmountMinor: record.AmountMinor,
		Currency:    record.Currency,
		Status:      Effective(Status(record.Status), record.ExpiresAt, now),
		UserID:      record.UserID,
		CardID:      record.CardID,
		CreatedAt:   record.CreatedAt,
		ExpiresAt:   record.ExpiresAt,
		ApprovedAt:  record.ApprovedAt,
		CompletedAt: record.CompletedAt,
		CancelledAt: record.CancelledAt,
	}
}
