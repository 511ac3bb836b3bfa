package devicetoken

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/passwallet/internal/platform/digest"
	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
)

const deviceSecretBytes = 32

// Platform tags the operating system a device runs.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// ParsePlatform normalizes a platform tag.
func ParsePlatform(value string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(value))); p {
	case PlatformIOS, PlatformAndroid, PlatformWeb:
		return p, nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeInvalidArgument, "unsupported device platform", map[string]string{"Platform": value})
	}
}

// DeviceCredential is the device-scoped secret returned once at registration.
type DeviceCredential struct {
	DeviceID  string    `json:"deviceId"`
	Secret    string    `json:"deviceCredential"`
	ExpiresAt time.Time `json:"deviceCredentialExpiresAt"`
}

// ErrDeviceOwned reports a device id already registered to another user.
var ErrDeviceOwned = apperrors.New(apperrors.CodeConflict, "device is registered to another user")

// RegisterDevice binds deviceID to userID and mints a fresh device
// credential. Only the credential's digest is stored; re-registering a device
// replaces the previous credential. A device stays with its first owner.
func (s *Service) RegisterDevice(ctx context.Context, userID, deviceID, platform string) (DeviceCredential, error) {
	userID = strings.TrimSpace(userID)
	deviceID = strings.TrimSpace(deviceID)
	if userID == "" || deviceID == "" {
		return DeviceCredential{}, apperrors.New(apperrors.CodeInvalidArgument, "user id and device id are required")
	}
	tag, err := ParsePlatform(platform)
	if err != nil {
		return DeviceCredential{}, err
	}
	secret, err := digest.NewURLToken(deviceSecretBytes)
	if err != nil {
		return DeviceCredential{}, fmt.Errorf("generate device credential: %w", err)
	}

	now := s.clock().UTC()
	expiresAt := now.Add(s.cfg.DeviceSecretTTL)
	err = s.store.UpsertDevice(ctx, storage.Device{
		ID:              deviceID,
		UserID:          userID,
		Platform:        string(tag),
		SecretDigest:    digest.Sum(secret),
		SecretExpiresAt: expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if errors.Is(err, storage.ErrConflict) {
		log.Printf("device %s registration by user %s refused: owned by another user", deviceID, userID)
		return DeviceCredential{}, ErrDeviceOwned
	}
	if err != nil {
		return DeviceCredential{}, fmt.Errorf("upsert device: %w", err)
	}
	return DeviceCredential{DeviceID: deviceID, Secret: secret, ExpiresAt: expiresAt}, nil
}

// checkDeviceSecret verifies the device credential presented with a refresh.
func (s *Service) checkDeviceSecret(ctx context.Context, claims Claims, secret string, now time.Time) error {
	if strings.TrimSpace(secret) == "" {
		return errors.New("device credential missing")
	}
	device, err := s.store.GetDevice(ctx, claims.DeviceID)
	if err != nil {
		return fmt.Errorf("get device: %w", err)
	}
	if device.UserID != claims.UserID {
		return fmt.Errorf("device %s rebound to another user", device.ID)
	}
	if !device.SecretExpiresAt.After(now) {
		return fmt.Errorf("device %s credential expired", device.ID)
	}
	if !digest.Matches(secret, device.SecretDigest) {
		return fmt.Errorf("device %s credential mismatch", device.ID)
	}
	return nil
}
