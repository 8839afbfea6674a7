package repository

import "context"

// UserLocker serializes work per user. WithLock blocks until the
// user's mutual-exclusion region is free, runs fn, then releases; a
// second request arriving while the first is in flight waits rather
// than queueing or failing.
type UserLocker interface {
	WithLock(ctx context.Context, userID string, fn func(ctx context.Context) error) error
}
