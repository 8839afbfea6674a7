// File: internal/usecase/ledger_uc_test.go
package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"promind-bot/internal/domain/model"
)

func TestEnsureAccountGrantsOnce(t *testing.T) {
	ctx := context.Background()
	repo := newMemLedger()
	uc := NewLedgerUseCase(repo, repo, testLogger())

	a, err := uc.EnsureAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("EnsureAccount: %v", err)
	}
	if a.Balance != model.InitialGrant {
		t.Fatalf("balance = %d, want %d", a.Balance, model.InitialGrant)
	}

	// Second contact must not re-grant.
	a, err = uc.EnsureAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("EnsureAccount again: %v", err)
	}
	if a.Balance != model.InitialGrant {
		t.Fatalf("balance after second ensure = %d, want %d", a.Balance, model.InitialGrant)
	}
	if got := len(repo.entries("u1")); got != 1 {
		t.Fatalf("transaction count = %d, want 1", got)
	}
}

func TestDebitInsufficientAppendsNothing(t *testing.T) {
	ctx := context.Background()
	repo := newMemLedger()
	uc := NewLedgerUseCase(repo, repo, testLogger())
	if _, err := uc.EnsureAccount(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	before := len(repo.entries("u1"))

	ok, err := uc.Debit(ctx, "u1", model.InitialGrant+1, "too much")
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if ok {
		t.Fatal("Debit succeeded past the balance")
	}
	if bal, _ := uc.Balance(ctx, "u1"); bal != model.InitialGrant {
		t.Fatalf("balance changed on refused debit: %d", bal)
	}
	if got := len(repo.entries("u1")); got != before {
		t.Fatalf("refused debit appended a transaction: %d entries, want %d", got, before)
	}
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	repo := newMemLedger()
	uc := NewLedgerUseCase(repo, repo, testLogger())
	if _, err := uc.Debit(context.Background(), "u1", 0, "zero"); err == nil {
		t.Fatal("expected error for zero amount")
	}
	if _, err := uc.Debit(context.Background(), "u1", -5, "negative"); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	repo := newMemLedger()
	uc := NewLedgerUseCase(repo, repo, testLogger())
	if _, err := uc.EnsureAccount(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	// 40 x 10 tokens against a balance of 100: exactly 10 may win.
	var wg sync.WaitGroup
	granted := make(chan bool, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := uc.Debit(ctx, "u1", 10, "race")
			if err != nil {
				t.Error(err)
				return
			}
			granted <- ok
		}()
	}
	wg.Wait()
	close(granted)

	wins := 0
	for ok := range granted {
		if ok {
			wins++
		}
	}
	if wins != model.InitialGrant/10 {
		t.Fatalf("granted %d debits, want %d", wins, model.InitialGrant/10)
	}
	if bal, _ := uc.Balance(ctx, "u1"); bal != 0 {
		t.Fatalf("final balance = %d, want 0", bal)
	}
}

func TestReplayMatchesBalance(t *testing.T) {
	ctx := context.Background()
	repo := newMemLedger()
	uc := NewLedgerUseCase(repo, repo, testLogger())
	if _, err := uc.EnsureAccount(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := uc.Credit(ctx, "u1", 500, "top-up", "order-1"); err != nil {
		t.Fatal(err)
	}
	for _, amount := range []int{1, 60, 300} {
		if ok, err := uc.Debit(ctx, "u1", amount, "spend"); err != nil || !ok {
			t.Fatalf("debit %d: ok=%v err=%v", amount, ok, err)
		}
	}

	bal, err := uc.Balance(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	replayed, err := repo.ReplayBalance(ctx, nil, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if bal != replayed {
		t.Fatalf("live balance %d != replayed %d", bal, replayed)
	}
	if want := model.InitialGrant + 500 - 361; bal != want {
		t.Fatalf("balance = %d, want %d", bal, want)
	}
}

func TestLazyPlanExpiryClearsPlanNotBalance(t *testing.T) {
	ctx := context.Background()
	repo := newMemLedger()
	uc := NewLedgerUseCase(repo, repo, testLogger())
	if _, err := uc.EnsureAccount(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return now }

	if err := uc.ActivatePlan(ctx, "u1", model.PlanPlus, "order-plus"); err != nil {
		t.Fatal(err)
	}
	if active, _ := uc.HasActivePlan(ctx, "u1"); !active {
		t.Fatal("plan not active after activation")
	}
	balBefore, _ := uc.Balance(ctx, "u1")

	// One second past the 30-day window.
	now = now.Add(model.PlanDuration + time.Second)

	a, err := uc.Account(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if a.Plan != model.PlanNone || a.PlanExpiresAt != nil {
		t.Fatalf("plan not cleared: %q %v", a.Plan, a.PlanExpiresAt)
	}
	if a.Balance != balBefore {
		t.Fatalf("expiry changed balance: %d -> %d", balBefore, a.Balance)
	}
	if active, _ := uc.HasActivePlan(ctx, "u1"); active {
		t.Fatal("HasActivePlan true after expiry")
	}

	// The cleared state is durable, not recomputed per read.
	stored, _ := repo.FindAccount(ctx, nil, "u1")
	if stored.Plan != model.PlanNone {
		t.Fatalf("stored plan = %q, want cleared", stored.Plan)
	}
}

func TestActivatePlanCreditsGrant(t *testing.T) {
	ctx := context.Background()
	repo := newMemLedger()
	uc := NewLedgerUseCase(repo, repo, testLogger())
	if _, err := uc.EnsureAccount(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	if err := uc.ActivatePlan(ctx, "u1", model.PlanPro, "order-pro"); err != nil {
		t.Fatal(err)
	}
	bal, _ := uc.Balance(ctx, "u1")
	if want := model.InitialGrant + model.PlanGrant(model.PlanPro); bal != want {
		t.Fatalf("balance = %d, want %d", bal, want)
	}
	if _, err := repo.FindBySourceOrder(ctx, nil, "order-pro"); err != nil {
		t.Fatalf("grant not recorded against the order: %v", err)
	}
}

func TestSweepExpiredPlans(t *testing.T) {
	ctx := context.Background()
	repo := newMemLedger()
	uc := NewLedgerUseCase(repo, repo, testLogger())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return now }

	for _, id := range []string{"u1", "u2", "u3"} {
		if _, err := uc.EnsureAccount(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if err := uc.ActivatePlan(ctx, "u1", model.PlanPlus, "o1"); err != nil {
		t.Fatal(err)
	}
	if err := uc.ActivatePlan(ctx, "u2", model.PlanPro, "o2"); err != nil {
		t.Fatal(err)
	}

	now = now.Add(model.PlanDuration + time.Hour)
	n, err := uc.SweepExpiredPlans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("swept %d plans, want 2", n)
	}
	if n, _ := uc.SweepExpiredPlans(ctx); n != 0 {
		t.Fatalf("second sweep cleared %d plans, want 0", n)
	}
}
