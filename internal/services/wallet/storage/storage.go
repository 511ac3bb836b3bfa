package storage

import (
	"context"
	"time"

	"github.com/louisbranch/passwallet/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrConflict indicates a unique-key collision or a failed guarded update.
var ErrConflict = errors.New(errors.CodeConflict, "record conflict")

// User is the minimal wallet account row.
type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

// Card is a card a user holds in the wallet.
type Card struct {
	ID              string
	UserID          string
	WalletCardToken string
	Network         string
	Last4           string
	CreatedAt       time.Time
}

// Merchant is an API client allowed to create payment requests.
type Merchant struct {
	ID        string
	Name      string
	KeyHash   string
	CreatedAt time.Time
}

// PasskeyCredential stores a WebAuthn credential for a user.
type PasskeyCredential struct {
	CredentialID   string
	UserID         string
	CredentialJSON string
	SignCount      uint32
	CreatedAt      time.Time
	LastUsedAt     *time.Time
}

// Device is a physical device bound to a user.
type Device struct {
	ID              string
	UserID          string
	Platform        string
	SecretDigest    string
	SecretExpiresAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastUsedAt      *time.Time
}

// RefreshToken is the server-side record behind a refresh token's jti.
type RefreshToken struct {
	JTI       string
	UserID    string
	DeviceID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// PaymentRequest is a merchant-initiated payment authorization.
type PaymentRequest struct {
	ID                 string
	MerchantID         string
	OrderRef           string
	AmountMinor        int64
	Currency           string
	Status             string
	UserID             string
	CardID             string
	EphemeralCardToken string
	WalletCardToken    string
	OneTimeTokenDigest string
	CreatedAt          time.Time
	ExpiresAt          time.Time
	ApprovedAt         *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
}

// PaymentApproval carries the values stamped by an approval.
type PaymentApproval struct {
	CardID             string
	EphemeralCardToken string
	WalletCardToken    string
	OneTimeTokenDigest string
	ApprovedAt         time.Time
}

// WebhookEvent is a partner event claimed for dispatch. ProcessedAt is set
// once dispatch succeeded; until then the claim holds redelivery off until
// LeaseExpiresAt.
type WebhookEvent struct {
	EventID        string
	Type           string
	ClaimedAt      time.Time
	LeaseExpiresAt time.Time
	ProcessedAt    *time.Time
}

// UserStore persists wallet users.
type UserStore interface {
	PutUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, userID string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// CardStore persists wallet cards.
type CardStore interface {
	PutCard(ctx context.Context, card Card) error
	GetCard(ctx context.Context, cardID string) (Card, error)
	ListCards(ctx context.Context, userID string) ([]Card, error)
}

// MerchantStore persists merchant API clients.
type MerchantStore interface {
	PutMerchant(ctx context.Context, m Merchant) error
	GetMerchant(ctx context.Context, merchantID string) (Merchant, error)
}

// PasskeyStore persists WebAuthn credentials.
type PasskeyStore interface {
	// CreatePasskeyCredential inserts a new credential; an existing id is ErrConflict.
	CreatePasskeyCredential(ctx context.Context, credential PasskeyCredential) error
	GetPasskeyCredential(ctx context.Context, credentialID string) (PasskeyCredential, error)
	ListPasskeyCredentials(ctx context.Context, userID string) ([]PasskeyCredential, error)
	// RecordPasskeyUse stores the verified credential state. It returns
	// ErrConflict when the stored counter is already above signCount.
	RecordPasskeyUse(ctx context.Context, credentialID, credentialJSON string, signCount uint32, usedAt time.Time) error
	DeletePasskeyCredential(ctx context.Context, userID, credentialID string) error
}

// DeviceStore persists devices.
type DeviceStore interface {
	UpsertDevice(ctx context.Context, device Device) error
	GetDevice(ctx context.Context, deviceID string) (Device, error)
	TouchDevice(ctx context.Context, deviceID string, usedAt time.Time) error
}

// RefreshTokenStore persists refresh token records.
type RefreshTokenStore interface {
	PutRefreshToken(ctx context.Context, record RefreshToken) error
	GetRefreshToken(ctx context.Context, jti string) (RefreshToken, error)
	// RotateRefreshToken revokes oldJTI and inserts next in one transaction.
	// It returns ErrConflict when oldJTI is no longer live at now.
	RotateRefreshToken(ctx context.Context, oldJTI string, now time.Time, next RefreshToken) error
	RevokeDeviceRefreshTokens(ctx context.Context, userID, deviceID string, now time.Time) (int64, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string, now time.Time) (int64, error)
}

// PaymentStore persists payment requests. Every transition is a guarded
// update that returns ErrConflict when the prior state no longer matches.
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment PaymentRequest) error
	GetPayment(ctx context.Context, paymentID string) (PaymentRequest, error)
	ClaimPayment(ctx context.Context, paymentID, userID string, now time.Time) error
	ApprovePayment(ctx context.Context, paymentID, userID string, approval PaymentApproval) error
	CompletePayment(ctx context.Context, paymentID, merchantID, tokenDigest string, completedAt time.Time) error
	CancelPayment(ctx context.Context, paymentID, fromStatus string, cancelledAt time.Time) error
	DeleteStalePayments(ctx context.Context, cutoff time.Time) (int64, error)
}

// WebhookStore claims partner events so each id is dispatched by one caller.
type WebhookStore interface {
	// ClaimWebhook returns ErrConflict when the event was processed or is
	// held by an unexpired claim.
	ClaimWebhook(ctx context.Context, event WebhookEvent) error
	CompleteWebhook(ctx context.Context, eventID string, processedAt time.Time) error
	ReleaseWebhook(ctx context.Context, eventID string) error
	GetWebhook(ctx context.Context, eventID string) (WebhookEvent, error)
}

// Store aggregates every wallet store.
type Store interface {
	UserStore
	CardStore
	MerchantStore
	PasskeyStore
	DeviceStore
	RefreshTokenStore
	PaymentStore
	WebhookStore
	Close() error
}
