package devicetoken

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// MinAccessTTL is the shortest access token lifetime accepted.
	MinAccessTTL = 60 * time.Second

	defaultIssuer   = "passwallet"
	defaultAudience = "passwallet-device"
	minSecretBytes  = 32
)

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	Secret          string        `env:"PASSWALLET_JWT_SECRET"`
	Issuer          string        `env:"PASSWALLET_JWT_ISSUER"             envDefault:"passwallet"`
	Audience        string        `env:"PASSWALLET_JWT_AUDIENCE"           envDefault:"passwallet-device"`
	AccessTTL       time.Duration `env:"PASSWALLET_ACCESS_TOKEN_TTL"       envDefault:"1h"`
	RefreshTTL      time.Duration `env:"PASSWALLET_REFRESH_TOKEN_TTL"      envDefault:"720h"`
	DeviceSecretTTL time.Duration `env:"PASSWALLET_DEVICE_CREDENTIAL_TTL"  envDefault:"2160h"`
}

// Config defines how device tokens are signed and how long they live.
type Config struct {
	Secret          []byte
	Issuer          string
	Audience        string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	DeviceSecretTTL time.Duration
}

// LoadConfigFromEnv reads token configuration. The signing secret is hex
// encoded and must decode to at least 32 bytes.
func LoadConfigFromEnv() (Config, error) {
	var raw tokenEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse token env: %w", err)
	}
	secretHex := strings.TrimSpace(raw.Secret)
	if secretHex == "" {
		return Config{}, fmt.Errorf("PASSWALLET_JWT_SECRET is required")
	}
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return Config{}, fmt.Errorf("decode PASSWALLET_JWT_SECRET: %w", err)
	}
	cfg := Config{
		Secret:          secret,
		Issuer:          strings.TrimSpace(raw.Issuer),
		Audience:        strings.TrimSpace(raw.Audience),
		AccessTTL:       raw.AccessTTL,
		RefreshTTL:      raw.RefreshTTL,
		DeviceSecretTTL: raw.DeviceSecretTTL,
	}
	return cfg.normalized()
}

// normalized fills defaults, clamps the access lifetime, and validates the key.
func (c Config) normalized() (Config, error) {
	if len(c.Secret) < minSecretBytes {
		return Config{}, fmt.Errorf("token signing secret must be at least %d bytes", minSecretBytes)
	}
	if c.Issuer == "" {
		c.Issuer = defaultIssuer
	}
	if c.Audience == "" {
		c.Audience = defaultAudience
	}
	if c.AccessTTL < MinAccessTTL {
		c.AccessTTL = MinAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.RefreshTTL < c.AccessTTL {
		return Config{}, fmt.Errorf("refresh token ttl %s is shorter than access token ttl %s", c.RefreshTTL, c.AccessTTL)
	}
	if c.DeviceSecretTTL <= 0 {
		c.DeviceSecretTTL = 90 * 24 * time.Hour
	}
	return c, nil
}
