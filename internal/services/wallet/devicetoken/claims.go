package devicetoken

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// ErrInvalidToken is returned for every token that fails validation.
var ErrInvalidToken = apperrors.New(apperrors.CodeInvalidToken, "invalid token")

// Claims captures validated token claims.
type Claims struct {
	UserID    string
	DeviceID  string
	Type      TokenType
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the internal claims type used for JWT signing and parsing.
type tokenClaims struct {
	jwt.RegisteredClaims
	DeviceID string    `json:"deviceId"`
	Type     TokenType `json:"type"`
}

func (s *Service) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   claims.UserID,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			ID:        claims.JTI,
		},
		DeviceID: claims.DeviceID,
		Type:     claims.Type,
	})
	return token.SignedString(s.cfg.Secret)
}

// parse verifies signature, issuer, audience, expiry, and token type.
func (s *Service) parse(raw string, want TokenType) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, apperrors.New(apperrors.CodeUnauthenticated, "token is required")
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(token *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer != s.cfg.Issuer || !audienceContains(parsed.Audience, s.cfg.Audience) {
		return Claims{}, ErrInvalidToken
	}
	if parsed.ExpiresAt == nil || parsed.IssuedAt == nil {
		return Claims{}, ErrInvalidToken
	}
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(s.clock().UTC()) {
		return Claims{}, apperrors.Wrap(apperrors.CodeInvalidToken, "token is expired", jwt.ErrTokenExpired)
	}
	if parsed.Type != want {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(parsed.Subject) == "" || strings.TrimSpace(parsed.DeviceID) == "" {
		return Claims{}, ErrInvalidToken
	}
	if want == TypeRefresh && parsed.ID == "" {
		return Claims{}, ErrInvalidToken
	}
	return Claims{
		UserID:    parsed.Subject,
		DeviceID:  parsed.DeviceID,
		Type:      parsed.Type,
		JTI:       parsed.ID,
		IssuedAt:  parsed.IssuedAt.Time.UTC(),
		ExpiresAt: exp,
	}, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.Wrap(apperrors.CodeInvalidToken, "token signature is invalid", err)
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.Wrap(apperrors.CodeInvalidToken, "token alg is invalid", err)
	}
	return apperrors.Wrap(apperrors.CodeInvalidToken, "token is invalid", err)
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}
