// Package merchant provisions merchant API clients and authenticates their
// API keys.
//
// A key has the form mk_<merchantID>_<secret>. Only a bcrypt hash of the
// secret is stored.
package merchant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/louisbranch/passwallet/internal/platform/digest"
	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
	"github.com/louisbranch/passwallet/internal/platform/id"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
)

const (
	keyPrefix   = "mk_"
	secretBytes = 24

	// HeaderAPIKey is accepted alongside "Authorization: Bearer mk_...".
	HeaderAPIKey = "X-API-Key"
)

// ErrInvalidKey is returned for every key that does not authenticate.
var ErrInvalidKey = apperrors.New(apperrors.CodeUnauthenticated, "invalid merchant api key")

// Service provisions and authenticates merchants.
type Service struct {
	store storage.MerchantStore
	cost  int
	clock func() time.Time
}

// NewService builds a merchant Service.
func NewService(store storage.MerchantStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost, clock: time.Now}
}

// Provision creates a merchant and returns its API key. The key is not
// recoverable afterwards.
func (s *Service) Provision(ctx context.Context, name string) (storage.Merchant, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return storage.Merchant{}, "", apperrors.New(apperrors.CodeInvalidArgument, "merchant name is required")
	}
	merchantID, err := id.NewID()
	if err != nil {
		return storage.Merchant{}, "", fmt.Errorf("generate merchant id: %w", err)
	}
	secret, err := digest.NewHexToken(secretBytes)
	if err != nil {
		return storage.Merchant{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return storage.Merchant{}, "", fmt.Errorf("hash merchant secret: %w", err)
	}
	merchant := storage.Merchant{
		ID:        merchantID,
		Name:      name,
		KeyHash:   string(hash),
		CreatedAt: s.clock().UTC(),
	}
	if err := s.store.PutMerchant(ctx, merchant); err != nil {
		return storage.Merchant{}, "", fmt.Errorf("put merchant: %w", err)
	}
	return merchant, keyPrefix + merchantID + "_" + secret, nil
}

// Authenticate resolves the merchant behind an API key.
func (s *Service) Authenticate(ctx context.Context, key string) (storage.Merchant, error) {
	merchantID, secret, ok := ParseKey(key)
	if !ok {
		return storage.Merchant{}, ErrInvalidKey
	}
	merchant, err := s.store.GetMerchant(ctx, merchantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Merchant{}, ErrInvalidKey
		}
		return storage.Merchant{}, fmt.Errorf("get merchant: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(merchant.KeyHash), []byte(secret)); err != nil {
		return storage.Merchant{}, ErrInvalidKey
	}
	return merchant, nil
}

// ParseKey splits an API key into merchant id and secret.
func ParseKey(key string) (merchantID, secret string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(key), keyPrefix)
	if !found {
		return "", "", false
	}
	idx := strings.LastIndex(rest, "_")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// KeyFromRequest returns the merchant key from the Authorization or
// X-API-Key header, or "" when neither carries one.
func KeyFromRequest(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); key != "" {
		return key
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > len("Bearer ") && strings.EqualFold(auth[:len("Bearer ")], "Bearer ") {
		if token := strings.TrimSpace(auth[len("Bearer "):]); strings.HasPrefix(token, keyPrefix) {
			return token
		}
	}
	return ""
}
