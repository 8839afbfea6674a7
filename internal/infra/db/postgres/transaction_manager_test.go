package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v4/pgxpool"

	"promind-bot/internal/domain"
)

func TestPickResolvesExecutor(t *testing.T) {
	pool := &pgxpool.Pool{}

	ex, err := pick(pool, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ex != pool {
		t.Fatal("nil qx must fall back to the pool")
	}

	other := &pgxpool.Pool{}
	ex, err = pick(pool, other)
	if err != nil {
		t.Fatal(err)
	}
	if ex != other {
		t.Fatal("an explicit pool must win over the fallback")
	}
}

func TestPickRejectsBadContext(t *testing.T) {
	if _, err := pick(nil, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if _, err := pick(&pgxpool.Pool{}, struct{}{}); !errors.Is(err, domain.ErrInvalidExecContext) {
		t.Fatalf("err = %v, want ErrInvalidExecContext", err)
	}
}
