package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/louisbranch/passwallet/internal/platform/timeouts"
)

// Redis is a Counter shared by every instance using the same Redis.
type Redis struct {
	client redis.Cmdable
	prefix string
}

// NewRedis wraps a go-redis client. prefix namespaces every key.
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// incrWindow counts a hit and sets the window expiry in one step. A key
// found without a TTL gets one, so a counter can never outlive its window.
const incrWindow = `
local count = redis.call('INCR', KEYS[1])
if count == 1 or redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`

// Incr counts a hit and starts the window on the first hit.
func (r *Redis) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.SecretStoreOp)
	defer cancel()

	count, err := r.client.Eval(ctx, incrWindow, []string{r.prefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("incr rate window: %w", err)
	}
	return count, nil
}
