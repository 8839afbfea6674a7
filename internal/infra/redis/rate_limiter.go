// File: internal/infra/redis/rate_limiter.go
package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter throttles bot traffic per user and command with a fixed
// window counter: the first hit creates the key with an expiry, every
// hit increments it, and the request is refused once the count passes
// the limit. Generation commands are slow and paid, so flooding them
// is both a UX and a billing concern.
type RateLimiter struct {
	client *Client
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow reports whether one more hit on key fits inside the window.
// Counting is approximate across the window boundary, which is fine
// for flood control.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if count == 1 {
		// First hit opens the window.
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}

// UserCommandKey scopes the counter to one user and one command, so a
// chat flood never locks the user out of /balance.
func UserCommandKey(tgID int64, command string) string {
	return fmt.Sprintf("rate:%d:%s", tgID, command)
}
