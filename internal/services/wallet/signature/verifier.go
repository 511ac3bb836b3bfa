// Package signature authenticates partner requests signed with a shared
// HMAC-SHA256 secret.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"time"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
)

const (
	// HeaderSignature carries "sha256=<hex>" or the bare hex digest.
	HeaderSignature = "X-Signature"
	prefix          = "sha256="
)

// ErrInvalidSignature is returned for missing, malformed, or wrong signatures.
var ErrInvalidSignature = apperrors.New(apperrors.CodeInvalidSignature, "invalid signature")

// ErrStaleTimestamp is returned when a signed timestamp is outside the window.
var ErrStaleTimestamp = apperrors.New(apperrors.CodeInvalidSignature, "request timestamp outside allowed window")

// Verifier checks partner signatures. When enforcement is off, failures are
// logged and Authorize lets the request through.
type Verifier struct {
	secret  []byte
	enforce bool
	window  time.Duration
	clock   func() time.Time
}

// NewVerifier builds a Verifier from config.
func NewVerifier(cfg Config) *Verifier {
	window := cfg.TimestampWindow
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Verifier{
		secret:  []byte(cfg.Secret),
		enforce: cfg.Enforce,
		window:  window,
		clock:   time.Now,
	}
}

// Enforcing reports whether failures reject requests.
func (v *Verifier) Enforcing() bool {
	return v.enforce
}

// Sign returns the header value for body.
func (v *Verifier) Sign(body []byte) string {
	return prefix + hex.EncodeToString(v.mac(body))
}

// Verify checks header against the HMAC of body, in constant time.
func (v *Verifier) Verify(body []byte, header string) error {
	if len(v.secret) == 0 {
		return apperrors.Wrap(apperrors.CodeInvalidSignature, "signature secret is not configured", ErrInvalidSignature)
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrInvalidSignature
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return ErrInvalidSignature
	}
	// hmac.Equal returns false on length mismatch.
	if !hmac.Equal(provided, v.mac(body)) {
		return ErrInvalidSignature
	}
	return nil
}

// CheckTimestamp verifies unix seconds ts is within the window of now.
func (v *Verifier) CheckTimestamp(ts int64) error {
	now := v.clock()
	signed := time.Unix(ts, 0)
	if signed.Before(now.Add(-v.window)) || signed.After(now.Add(v.window)) {
		return ErrStaleTimestamp
	}
	return nil
}

// Authorize applies the enforcement policy to a signature check.
func (v *Verifier) Authorize(body []byte, header string) error {
	return v.apply("signature", v.Verify(body, header))
}

// AuthorizeTimestamp applies the enforcement policy to a timestamp check.
func (v *Verifier) AuthorizeTimestamp(ts int64) error {
	return v.apply("timestamp", v.CheckTimestamp(ts))
}

func (v *Verifier) apply(check string, err error) error {
	if err == nil {
		return nil
	}
	if v.enforce {
		log.Printf("partner %s rejected: %v", check, err)
		return err
	}
	log.Printf("WARNING: partner %s check failed, continuing because enforcement is off: %v", check, err)
	return nil
}

func (v *Verifier) mac(body []byte) []byte {
	h := hmac.New(sha256.New, v.secret)
	h.Write(body)
	return h.Sum(nil)
}

