// File: internal/infra/memstore/locker.go
package memstore

import (
	"context"
	"sync"

	"promind-bot/internal/domain/ports/repository"
)

var _ repository.UserLocker = (*UserLocker)(nil)

// UserLocker serializes work per user inside a single process.
// Callers block until the previous holder for the same user returns.
type UserLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewUserLocker() *UserLocker {
	return &UserLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *UserLocker) lockFor(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	return m
}

func (l *UserLocker) WithLock(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := l.lockFor(userID)
	m.Lock()
	defer m.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
