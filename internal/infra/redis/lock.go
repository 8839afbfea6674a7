// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"promind-bot/internal/domain/ports/repository"
)

var _ repository.UserLocker = (*UserLocker)(nil)

// UserLocker serializes per-user work across processes. WithLock blocks,
// retrying SetNX until the lock is acquired or the context ends. The TTL
// is a crash guard; normal release goes through the token-checked unlock.
type UserLocker struct {
	cli   *redis.Client
	ttl   time.Duration
	retry time.Duration
}

func NewUserLocker(c *Client) *UserLocker {
	return &UserLocker{
		cli:   c.cli,
		ttl:   10 * time.Minute, // longer than any poll budget
		retry: 100 * time.Millisecond,
	}
}

func (l *UserLocker) key(userID string) string {
	return fmt.Sprintf("user_lock:%s", userID)
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *UserLocker) WithLock(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	key := l.key(userID)
	token := uuid.NewString()

	for {
		ok, err := l.cli.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retry):
		}
	}
	defer func() {
		// Release must not inherit a cancelled ctx.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = luaUnlock.Run(unlockCtx, l.cli, []string{key}, token).Result()
	}()

	return fn(ctx)
}
