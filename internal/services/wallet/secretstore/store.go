package secretstore

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
)

// ErrNotFound is returned for keys that were never issued, were already
// consumed, or have expired. Callers cannot tell these apart.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "secret not found")

// Store keeps single-use secrets with an absolute expiry.
type Store interface {
	// Put stores value under key, replacing any live entry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// TakeOnce returns the value and removes it. Concurrent callers racing on
	// the same key see at most one success.
	TakeOnce(ctx context.Context, key string) ([]byte, error)
}
