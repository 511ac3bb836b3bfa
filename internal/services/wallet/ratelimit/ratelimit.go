// Package ratelimit applies fixed-window request limits per client.
package ratelimit

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
)

// ErrLimited is returned once a client exceeds its window budget.
var ErrLimited = apperrors.New(apperrors.CodeRateLimited, "too many requests")

// Counter counts hits per key within a window. The first hit in a window
// starts it; the count resets when the window lapses.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter allows at most Limit requests per Window for each client.
type Limiter struct {
	counter        Counter
	scope          string
	limit          int64
	window         time.Duration
	trustForwarded bool
}

// NewLimiter builds a Limiter for one scope, such as "passkey" or "refresh".
func NewLimiter(counter Counter, scope string, cfg Config) (*Limiter, error) {
	if counter == nil {
		return nil, fmt.Errorf("rate counter is required")
	}
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		return nil, fmt.Errorf("rate limit and window must be positive")
	}
	return &Limiter{
		counter:        counter,
		scope:          scope,
		limit:          int64(cfg.Limit),
		window:         cfg.Window,
		trustForwarded: cfg.TrustForwarded,
	}, nil
}

// Allow counts r against its client's budget.
func (l *Limiter) Allow(r *http.Request) error {
	key := "ratelimit:" + l.scope + ":" + l.clientIP(r)
	count, err := l.counter.Incr(r.Context(), key, l.window)
	if err != nil {
		// Fail open.
		log.Printf("rate counter %s: %v", l.scope, err)
		return nil
	}
	if count > l.limit {
		return ErrLimited
	}
	return nil
}

// Middleware rejects requests over budget before they reach next.
func (l *Limiter) Middleware(writeError func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := l.Allow(r); err != nil {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(l.window.Seconds())))
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *Limiter) clientIP(r *http.Request) string {
	if l.trustForwarded {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
