// Package digest mints random bearer secrets and the BLAKE3 digests stored
// in their place.
package digest

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// NewHexToken returns n random bytes rendered as lowercase hex.
func NewHexToken(n int) (string, error) {
	buf, err := randomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewURLToken returns n random bytes rendered as unpadded base64url.
func NewURLToken(n int) (string, error) {
	buf, err := randomBytes(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func randomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("token size must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	return buf, nil
}

// Sum returns the hex BLAKE3-256 digest of secret.
func Sum(secret string) string {
	sum := blake3.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Matches reports whether secret hashes to storedDigest, in constant time.
func Matches(secret, storedDigest string) bool {
	if secret == "" || storedDigest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Sum(secret)), []byte(storedDigest)) == 1
}
