package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func testRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("PASSWALLET_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PASSWALLET_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCounter(t *testing.T) {
	client := testRedisClient(t)
	prefix := "passwallet-test:" + t.Name() + ":"
	counter := NewRedis(client, prefix)
	ctx := context.Background()
	t.Cleanup(func() { client.Del(context.Background(), prefix+"k") })

	for want := int64(1); want <= 2; want++ {
		got, err := counter.Incr(ctx, "k", time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Fatalf("count = %d, want %d", got, want)
		}
	}
	ttl, err := client.PTTL(ctx, prefix+"k").Result()
	if err != nil {
		t.Fatalf("pttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl = %s", ttl)
	}
}

func TestRedisCounterRepairsMissingExpiry(t *testing.T) {
	client := testRedisClient(t)
	prefix := "passwallet-test:" + t.Name() + ":"
	ctx := context.Background()
	t.Cleanup(func() { client.Del(context.Background(), prefix+"k") })

	if err := client.Set(ctx, prefix+"k", 5, 0).Err(); err != nil {
		t.Fatalf("seed key: %v", err)
	}
	got, err := NewRedis(client, prefix).Incr(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if got != 6 {
		t.Fatalf("count = %d, want 6", got)
	}
	ttl, err := client.PTTL(ctx, prefix+"k").Result()
	if err != nil {
		t.Fatalf("pttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl = %s, want a window expiry", ttl)
	}
}
