package devicetoken

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
	"github.com/louisbranch/passwallet/internal/platform/id"
	"github.com/louisbranch/passwallet/internal/platform/otel"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("passwallet/devicetoken")

// Store is the persistence the token service needs.
type Store interface {
	storage.DeviceStore
	storage.RefreshTokenStore
}

// Service issues, validates, rotates, and revokes device tokens.
type Service struct {
	cfg   Config
	store Store
	clock func() time.Time
	newID func() (string, error)
}

// NewService builds a token service. The config is normalized first, so a
// short access lifetime is raised to MinAccessTTL.
func NewService(cfg Config, store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("token store is required")
	}
	normalized, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	return &Service{cfg: normalized, store: store, clock: time.Now, newID: id.NewID}, nil
}

// Pair is the token pair handed to a device.
type Pair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	TokenType        string    `json:"tokenType"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// AccessTTL reports the effective access token lifetime.
func (s *Service) AccessTTL() time.Duration {
	return s.cfg.AccessTTL
}

// Issue mints a pair for a registered device and persists the refresh record.
func (s *Service) Issue(ctx context.Context, userID, deviceID string) (Pair, error) {
	userID = strings.TrimSpace(userID)
	deviceID = strings.TrimSpace(deviceID)
	if userID == "" || deviceID == "" {
		return Pair{}, apperrors.New(apperrors.CodeInvalidArgument, "user id and device id are required")
	}
	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Pair{}, apperrors.New(apperrors.CodeNotFound, "device is not registered")
		}
		return Pair{}, fmt.Errorf("get device: %w", err)
	}
	if device.UserID != userID {
		return Pair{}, apperrors.New(apperrors.CodeUnauthenticated, "device belongs to another user")
	}

	pair, record, err := s.mint(userID, deviceID)
	if err != nil {
		return Pair{}, err
	}
	if err := s.store.PutRefreshToken(ctx, record); err != nil {
		return Pair{}, fmt.Errorf("put refresh token: %w", err)
	}
	return pair, nil
}

// ValidateAccess verifies an access token and returns its claims.
func (s *Service) ValidateAccess(token string) (Claims, error) {
	return s.parse(token, TypeAccess)
}

// Refresh exchanges a live refresh token for a new pair. The presented token
// is revoked in the same transaction that stores its successor.
func (s *Service) Refresh(ctx context.Context, refreshToken, deviceSecret string) (Pair, error) {
	ctx, span := tracer.Start(ctx, "devicetoken.Refresh")
	defer span.End()

	claims, err := s.parse(refreshToken, TypeRefresh)
	if err != nil {
		return Pair{}, s.rejected(span, "parse", err)
	}
	span.SetAttributes(attribute.String("device.id", claims.DeviceID))

	now := s.clock().UTC()
	record, err := s.store.GetRefreshToken(ctx, claims.JTI)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Pair{}, s.rejected(span, "unknown jti", err)
		}
		span.RecordError(err)
		return Pair{}, fmt.Errorf("get refresh token: %w", err)
	}
	switch {
	case record.RevokedAt != nil:
		return Pair{}, s.rejected(span, "revoked", fmt.Errorf("jti %s revoked at %s", record.JTI, record.RevokedAt.Format(time.RFC3339)))
	case !record.ExpiresAt.After(now):
		return Pair{}, s.rejected(span, "expired record", fmt.Errorf("jti %s expired", record.JTI))
	case record.UserID != claims.UserID || record.DeviceID != claims.DeviceID:
		return Pair{}, s.rejected(span, "claims mismatch", fmt.Errorf("jti %s bound to another device", record.JTI))
	}

	if err := s.checkDeviceSecret(ctx, claims, deviceSecret, now); err != nil {
		return Pair{}, s.rejected(span, "device credential", err)
	}

	pair, next, err := s.mint(claims.UserID, claims.DeviceID)
	if err != nil {
		span.RecordError(err)
		return Pair{}, err
	}
	if err := s.store.RotateRefreshToken(ctx, claims.JTI, now, next); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return Pair{}, s.rejected(span, "rotation lost", err)
		}
		span.RecordError(err)
		return Pair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if err := s.store.TouchDevice(ctx, claims.DeviceID, now); err != nil {
		log.Printf("touch device %s: %v", claims.DeviceID, err)
	}
	return pair, nil
}

// Revoke revokes every live refresh record of one device.
func (s *Service) Revoke(ctx context.Context, userID, deviceID string) (int64, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(deviceID) == "" {
		return 0, apperrors.New(apperrors.CodeInvalidArgument, "user id and device id are required")
	}
	revoked, err := s.store.RevokeDeviceRefreshTokens(ctx, userID, deviceID, s.clock().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke device tokens: %w", err)
	}
	return revoked, nil
}

// RevokeAll revokes every live refresh record of a user.
func (s *Service) RevokeAll(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, apperrors.New(apperrors.CodeInvalidArgument, "user id is required")
	}
	revoked, err := s.store.RevokeUserRefreshTokens(ctx, userID, s.clock().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}
	return revoked, nil
}

func (s *Service) mint(userID, deviceID string) (Pair, storage.RefreshToken, error) {
	now := s.clock().UTC().Truncate(time.Second)
	accessID, err := s.newID()
	if err != nil {
		return Pair{}, storage.RefreshToken{}, fmt.Errorf("generate access jti: %w", err)
	}
	refreshID, err := s.newID()
	if err != nil {
		return Pair{}, storage.RefreshToken{}, fmt.Errorf("generate refresh jti: %w", err)
	}

	access := Claims{UserID: userID, DeviceID: deviceID, Type: TypeAccess, JTI: accessID, IssuedAt: now, ExpiresAt: now.Add(s.cfg.AccessTTL)}
	refresh := Claims{UserID: userID, DeviceID: deviceID, Type: TypeRefresh, JTI: refreshID, IssuedAt: now, ExpiresAt: now.Add(s.cfg.RefreshTTL)}

	accessToken, err := s.sign(access)
	if err != nil {
		return Pair{}, storage.RefreshToken{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.sign(refresh)
	if err != nil {
		return Pair{}, storage.RefreshToken{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Pair{
			AccessToken:      accessToken,
			RefreshToken:     refreshToken,
			TokenType:        "Bearer",
			AccessExpiresAt:  access.ExpiresAt,
			RefreshExpiresAt: refresh.ExpiresAt,
		}, storage.RefreshToken{
			JTI:       refreshID,
			UserID:    userID,
			DeviceID:  deviceID,
			IssuedAt:  now,
			ExpiresAt: refresh.ExpiresAt,
		}, nil
}

// rejected logs the cause and returns the generic token error.
func (s *Service) rejected(span trace.Span, stage string, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, stage)
	log.Printf("refresh rejected (%s): %v", stage, cause)
	return ErrInvalidToken
}
