package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/passwallet/internal/platform/digest"
	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
	"github.com/louisbranch/passwallet/internal/platform/id"
	"github.com/louisbranch/passwallet/internal/platform/otel"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const oneTimeTokenBytes = 32

var (
	// ErrNotFound hides both missing requests and requests owned by someone else.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "payment request not found")
	// ErrInvalidToken is the only failure completion reports for a bad id/token pair.
	ErrInvalidToken = apperrors.New(apperrors.CodeInvalidToken, "invalid payment token")
	// ErrExpired reports a request whose expiry has passed.
	ErrExpired = apperrors.New(apperrors.CodeExpired, "payment request expired")
)

var tracer = otel.Tracer("passwallet/payment")

// Store is the persistence the state machine needs.
type Store interface {
	storage.PaymentStore
	storage.CardStore
	storage.MerchantStore
}

// Party identifies who is acting on a request: a merchant or a wallet user.
type Party struct {
	MerchantID string
	UserID     string
}

// MerchantParty returns a Party for an authenticated merchant.
func MerchantParty(merchantID string) Party { return Party{MerchantID: merchantID} }

// UserParty returns a Party for an authenticated wallet user.
func UserParty(userID string) Party { return Party{UserID: userID} }

func (p Party) owns(record storage.PaymentRequest) bool {
	switch {
	case p.MerchantID != "":
		return record.MerchantID == p.MerchantID
	case p.UserID != "":
		return record.UserID == p.UserID
	default:
		return false
	}
}

// CreateInput describes a new payment request.
type CreateInput struct {
	MerchantID string
	Amount     string
	Currency   string
	OrderRef   string
	TTL        time.Duration
}

// Service applies payment transitions.
type Service struct {
	cfg      Config
	store    Store
	clock    func() time.Time
	newID    func() (string, error)
	newToken func() (string, error)
}

// NewService builds a payment Service.
func NewService(cfg Config, store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("payment store is required")
	}
	defaults := DefaultConfig()
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = defaults.DefaultTTL
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = defaults.MaxTTL
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaults.Retention
	}
	return &Service{
		cfg:   cfg,
		store: store,
		clock: time.Now,
		newID: func() (string, error) { return id.NewPrefixedID("pay_") },
		newToken: func() (string, error) {
			return digest.NewHexToken(oneTimeTokenBytes)
		},
	}, nil
}

// Create stores a pending request for a merchant.
func (s *Service) Create(ctx context.Context, in CreateInput) (View, error) {
	ctx, span := tracer.Start(ctx, "payment.Create")
	defer span.End()

	if strings.TrimSpace(in.MerchantID) == "" {
		return View{}, apperrors.New(apperrors.CodeInvalidArgument, "merchant id is required")
	}
	orderRef := strings.TrimSpace(in.OrderRef)
	if orderRef == "" {
		return View{}, apperrors.New(apperrors.CodeInvalidArgument, "order reference is required")
	}
	minor, unit, err := ParseAmount(in.Amount, in.Currency)
	if err != nil {
		return View{}, err
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	if ttl > s.cfg.MaxTTL {
		ttl = s.cfg.MaxTTL
	}
	paymentID, err := s.newID()
	if err != nil {
		return View{}, fmt.Errorf("generate payment id: %w", err)
	}

	now := s.clock().UTC()
	record := storage.PaymentRequest{
		ID:          paymentID,
		MerchantID:  in.MerchantID,
		OrderRef:    orderRef,
		AmountMinor: minor,
		Currency:    unit.String(),
		Status:      string(StatusPending),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := s.store.CreatePayment(ctx, record); err != nil {
		span.RecordError(err)
		return View{}, fmt.Errorf("create payment: %w", err)
	}
	span.SetAttributes(attribute.String("payment.id", paymentID))
	log.Printf("payment %s created by merchant %s (%s %s)", paymentID, in.MerchantID, FormatAmount(minor, record.Currency), record.Currency)
	return s.readBack(ctx, paymentID, now)
}

// Claim makes userID the owner of an unclaimed pending request. Claiming a
// request already owned by the same user is a no-op.
func (s *Service) Claim(ctx context.Context, userID, paymentID string) (View, error) {
	ctx, span := s.startTransition(ctx, "payment.Claim", paymentID)
	defer span.End()

	now := s.clock().UTC()
	record, err := s.load(ctx, paymentID)
	if err != nil {
		return View{}, err
	}
	if record.UserID != "" && record.UserID != userID {
		return View{}, ErrNotFound
	}
	if err := s.expectStatus(record, now, StatusPending, StatusApproved); err != nil {
		return View{}, err
	}
	if err := s.store.ClaimPayment(ctx, paymentID, userID, now); err != nil {
		return View{}, s.transitionFailed(ctx, span, paymentID, StatusApproved, now, err)
	}
	return s.readBack(ctx, paymentID, now)
}

// Approve binds one of the user's cards to the request and mints the
// one-time token the merchant will redeem. An unclaimed request is claimed by
// the approving user first.
func (s *Service) Approve(ctx context.Context, userID, paymentID, cardID string) (Approval, error) {
	ctx, span := s.startTransition(ctx, "payment.Approve", paymentID)
	defer span.End()

	now := s.clock().UTC()
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Approval{}, apperrors.New(apperrors.CodeNotFound, "card not found")
		}
		return Approval{}, fmt.Errorf("get card: %w", err)
	}
	if card.UserID != userID {
		return Approval{}, apperrors.New(apperrors.CodeNotFound, "card not found")
	}

	record, err := s.load(ctx, paymentID)
	if err != nil {
		return Approval{}, err
	}
	if record.UserID != "" && record.UserID != userID {
		return Approval{}, ErrNotFound
	}
	if err := s.expectStatus(record, now, StatusApproved); err != nil {
		return Approval{}, err
	}
	if record.UserID == "" {
		if err := s.store.ClaimPayment(ctx, paymentID, userID, now); err != nil {
			return Approval{}, s.transitionFailed(ctx, span, paymentID, StatusApproved, now, err)
		}
	}

	token, err := s.newToken()
	if err != nil {
		return Approval{}, fmt.Errorf("generate one-time token: %w", err)
	}
	cardToken, err := id.NewPrefixedID("etok_")
	if err != nil {
		return Approval{}, fmt.Errorf("generate card token: %w", err)
	}
	err = s.store.ApprovePayment(ctx, paymentID, userID, storage.PaymentApproval{
		CardID:             card.ID,
		EphemeralCardToken: cardToken,
		WalletCardToken:    card.WalletCardToken,
		OneTimeTokenDigest: digest.Sum(token),
		ApprovedAt:         now,
	})
	if err != nil {
		return Approval{}, s.transitionFailed(ctx, span, paymentID, StatusApproved, now, err)
	}
	log.Printf("payment %s approved by user %s", paymentID, userID)

	view, err := s.readBack(ctx, paymentID, now)
	if err != nil {
		return Approval{}, err
	}
	return Approval{Payment: view, OneTimeToken: token}, nil
}

// Complete redeems the one-time token for the merchant that owns the request.
// An unknown id, a foreign merchant, and a wrong token are indistinguishable.
func (s *Service) Complete(ctx context.Context, merchantID, paymentID, token string) (Settlement, error) {
	ctx, span := s.startTransition(ctx, "payment.Complete", paymentID)
	defer span.End()

	now := s.clock().UTC()
	record, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Settlement{}, ErrInvalidToken
		}
		return Settlement{}, fmt.Errorf("get payment: %w", err)
	}
	if record.MerchantID != merchantID {
		return Settlement{}, ErrInvalidToken
	}
	// A settled or released request has no token left to compare; report the
	// replay as a conflict to its merchant.
	if stored := Status(record.Status); stored.Terminal() {
		return Settlement{}, invalidTransition(stored, StatusCompleted)
	}
	if !digest.Matches(strings.TrimSpace(token), record.OneTimeTokenDigest) {
		return Settlement{}, ErrInvalidToken
	}
	if err := s.expectStatus(record, now, StatusCompleted); err != nil {
		return Settlement{}, err
	}
	if err := s.store.CompletePayment(ctx, paymentID, merchantID, record.OneTimeTokenDigest, now); err != nil {
		return Settlement{}, s.transitionFailed(ctx, span, paymentID, StatusCompleted, now, err)
	}
	log.Printf("payment %s completed by merchant %s", paymentID, merchantID)

	view, err := s.readBack(ctx, paymentID, now)
	if err != nil {
		return Settlement{}, err
	}
	return Settlement{
		Payment:            view,
		EphemeralCardToken: record.EphemeralCardToken,
		WalletCardToken:    record.WalletCardToken,
	}, nil
}

// Cancel lets the owning merchant or user withdraw a pending request.
func (s *Service) Cancel(ctx context.Context, party Party, paymentID string) (View, error) {
	return s.cancel(ctx, "payment.Cancel", party, paymentID, StatusPending)
}

// Void lets the owning merchant release an approved authorization it will
// not settle. The one-time token stops working.
func (s *Service) Void(ctx context.Context, merchantID, paymentID string) (View, error) {
	return s.cancel(ctx, "payment.Void", MerchantParty(merchantID), paymentID, StatusApproved)
}

func (s *Service) cancel(ctx context.Context, op string, party Party, paymentID string, from Status) (View, error) {
	ctx, span := s.startTransition(ctx, op, paymentID)
	defer span.End()

	now := s.clock().UTC()
	record, err := s.load(ctx, paymentID)
	if err != nil {
		return View{}, err
	}
	if !party.owns(record) {
		return View{}, ErrNotFound
	}
	effective := Effective(Status(record.Status), record.ExpiresAt, now)
	if effective == StatusExpired {
		return View{}, ErrExpired
	}
	if effective != from {
		return View{}, invalidTransition(effective, StatusCancelled)
	}
	if err := s.store.CancelPayment(ctx, paymentID, string(from), now); err != nil {
		return View{}, s.transitionFailed(ctx, span, paymentID, StatusCancelled, now, err)
	}
	log.Printf("payment %s cancelled from %s", paymentID, from)
	return s.readBack(ctx, paymentID, now)
}

// Status returns the request for its merchant or owning user.
func (s *Service) Status(ctx context.Context, party Party, paymentID string) (View, error) {
	record, err := s.load(ctx, paymentID)
	if err != nil {
		return View{}, err
	}
	if !party.owns(record) {
		return View{}, ErrNotFound
	}
	return toView(record, s.clock().UTC()), nil
}

// Public returns the credential-free view of a request.
func (s *Service) Public(ctx context.Context, paymentID string) (PublicView, error) {
	record, err := s.load(ctx, paymentID)
	if err != nil {
		return PublicView{}, err
	}
	merchantName := ""
	if merchant, err := s.store.GetMerchant(ctx, record.MerchantID); err == nil {
		merchantName = merchant.Name
	} else if !errors.Is(err, storage.ErrNotFound) {
		return PublicView{}, fmt.Errorf("get merchant: %w", err)
	}
	return PublicView{
		ID:           record.ID,
		MerchantName: merchantName,
		Amount:       FormatAmount(record.AmountMinor, record.Currency),
		Currency:     record.Currency,
		Status:       Effective(Status(record.Status), record.ExpiresAt, s.clock().UTC()),
		ExpiresAt:    record.ExpiresAt,
	}, nil
}

func (s *Service) load(ctx context.Context, paymentID string) (storage.PaymentRequest, error) {
	if strings.TrimSpace(paymentID) == "" {
		return storage.PaymentRequest{}, apperrors.New(apperrors.CodeInvalidArgument, "payment id is required")
	}
	record, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.PaymentRequest{}, ErrNotFound
		}
		return storage.PaymentRequest{}, fmt.Errorf("get payment: %w", err)
	}
	return record, nil
}

func (s *Service) readBack(ctx context.Context, paymentID string, now time.Time) (View, error) {
	record, err := s.load(ctx, paymentID)
	if err != nil {
		return View{}, err
	}
	return toView(record, now), nil
}

// expectStatus checks that to is reachable from the record's effective status.
func (s *Service) expectStatus(record storage.PaymentRequest, now time.Time, to ...Status) error {
	effective := Effective(Status(record.Status), record.ExpiresAt, now)
	if effective == StatusExpired {
		return ErrExpired
	}
	for _, target := range to {
		if CanTransition(effective, target) {
			return nil
		}
	}
	return invalidTransition(effective, to[0])
}

// transitionFailed classifies a guarded update that lost: the request
// expired, moved on, or the store failed.
func (s *Service) transitionFailed(ctx context.Context, span trace.Span, paymentID string, to Status, now time.Time, err error) error {
	span.RecordError(err)
	if !errors.Is(err, storage.ErrConflict) {
		return fmt.Errorf("update payment: %w", err)
	}
	record, loadErr := s.load(ctx, paymentID)
	if loadErr != nil {
		return loadErr
	}
	effective := Effective(Status(record.Status), record.ExpiresAt, now)
	if effective == StatusExpired {
		return ErrExpired
	}
	return invalidTransition(effective, to)
}

func (s *Service) startTransition(ctx context.Context, name, paymentID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("payment.id", paymentID)))
}

func invalidTransition(from, to Status) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidTransition,
		fmt.Sprintf("payment request is %s", from),
		map[string]string{"From": string(from), "To": string(to)},
	)
}
