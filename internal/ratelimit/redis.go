package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed-window IP limits for unauthenticated endpoints.
const (
	ipWindow      = 15 * time.Minute
	ipMaxRequests = 10
)

// Limiter throttles unauthenticated endpoints by client IP.
// Per-identity action cooldowns are handled by CheckCooldown instead;
// this limiter only blunts anonymous abuse (credential stuffing,
// registration floods).
type Limiter struct {
	client *redis.Client
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

func ipKey(ip, purpose string) string {
	return fmt.Sprintf("ratelimit:ip:%s:%s", purpose, ip)
}

// CheckIPRateLimit reports whether the IP has exhausted its window
// for the given purpose. Read-only.
func (l *Limiter) CheckIPRateLimit(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(ip, purpose)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check IP rate limit: %w", err)
	}
	return count >= ipMaxRequests, nil
}

// RecordIPRequest counts one request against the IP's window.
// The window starts with the first request and expires as a whole.
func (l *Limiter) RecordIPRequest(ctx context.Context, ip, purpose string) error {
	key := ipKey(ip, purpose)

	pipe := l.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ipWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record IP request: %w", err)
	}

	return nil
}
