// File: internal/usecase/user_uc_test.go
package usecase

import (
	"context"
	"errors"
	"testing"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
)

func TestRegisterOrFetchCreatesAccountOnce(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo()
	repo := newMemLedger()
	ledger := NewLedgerUseCase(repo, repo, testLogger())
	uc := NewUserUseCase(users, ledger, testLogger())

	u, err := uc.RegisterOrFetch(ctx, 4242, "Ada", "ada")
	if err != nil {
		t.Fatal(err)
	}
	if u.ID == "" || u.TelegramID != 4242 {
		t.Fatalf("user = %+v", u)
	}
	if bal, err := ledger.Balance(ctx, u.ID); err != nil || bal != model.InitialGrant {
		t.Fatalf("balance = %d, err = %v", bal, err)
	}

	again, err := uc.RegisterOrFetch(ctx, 4242, "Ada", "ada")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != u.ID {
		t.Fatalf("second registration produced a new user: %s != %s", again.ID, u.ID)
	}
	if bal, _ := ledger.Balance(ctx, u.ID); bal != model.InitialGrant {
		t.Fatalf("second registration re-granted: %d", bal)
	}
}

func TestRegisterOrFetchRejectsBadTelegramID(t *testing.T) {
	users := newMemUserRepo()
	repo := newMemLedger()
	uc := NewUserUseCase(users, NewLedgerUseCase(repo, repo, testLogger()), testLogger())
	if _, err := uc.RegisterOrFetch(context.Background(), 0, "", ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestGetByTelegramIDNotFound(t *testing.T) {
	users := newMemUserRepo()
	repo := newMemLedger()
	uc := NewUserUseCase(users, NewLedgerUseCase(repo, repo, testLogger()), testLogger())
	if _, err := uc.GetByTelegramID(context.Background(), 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStatsSnapshot(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo()
	repo := newMemLedger()
	ledger := NewLedgerUseCase(repo, repo, testLogger())
	userUC := NewUserUseCase(users, ledger, testLogger())

	u1, err := userUC.RegisterOrFetch(ctx, 1, "A", "a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := userUC.RegisterOrFetch(ctx, 2, "B", "b"); err != nil {
		t.Fatal(err)
	}
	if ok, err := ledger.Debit(ctx, u1.ID, 30, "spend"); err != nil || !ok {
		t.Fatalf("debit: ok=%v err=%v", ok, err)
	}

	stats, err := NewStatsUseCase(users, repo, repo).Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Users != 2 {
		t.Fatalf("users = %d", stats.Users)
	}
	if stats.TokensOutstanding != 2*model.InitialGrant-30 {
		t.Fatalf("tokens = %d", stats.TokensOutstanding)
	}
	if stats.Transactions != 3 { // two grants plus one debit
		t.Fatalf("transactions = %d", stats.Transactions)
	}
}
