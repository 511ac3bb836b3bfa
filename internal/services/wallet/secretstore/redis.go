package secretstore

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
	"github.com/louisbranch/passwallet/internal/platform/timeouts"
	"github.com/redis/go-redis/v9"
)

// Redis is a Store shared by every instance pointing at the same server.
// Expiry is delegated to the server, so no sweeper is needed.
type Redis struct {
	client redis.Cmdable
	prefix string
}

// NewRedis wraps client. Keys are namespaced with prefix.
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Put implements Store.
func (r *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("secret key is required")
	}
	if ttl <= 0 {
		return errors.New("secret ttl must be positive")
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.SecretStoreOp)
	defer cancel()
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return apperrors.Wrap(apperrors.CodeUpstreamFailure, "store secret", err)
	}
	return nil
}

// TakeOnce implements Store using GETDEL, which is atomic on the server.
func (r *Redis) TakeOnce(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.SecretStoreOp)
	defer cancel()
	value, err := r.client.GetDel(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUpstreamFailure, "take secret", err)
	}
	return value, nil
}
