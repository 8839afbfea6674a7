// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/repository"
	"promind-bot/internal/infra/metrics"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

// LedgerUseCase owns token balances, debits, credits and the
// transaction log. Debit is the sole gate before any paid operation:
// callers must check the boolean and skip the paid work on false.
type LedgerUseCase interface {
	// EnsureAccount creates the account on first contact and applies
	// the initial grant once.
	EnsureAccount(ctx context.Context, userID string) (*model.TokenAccount, error)

	// Account returns the account with lazy plan expiry applied: a plan
	// past its expiry is cleared (no balance change) before any cost
	// check happens.
	Account(ctx context.Context, userID string) (*model.TokenAccount, error)

	// Debit returns true and appends a debit transaction only when
	// balance >= amount; otherwise false and nothing is appended.
	Debit(ctx context.Context, userID string, amount int, comment string) (bool, error)

	// Credit always succeeds, appending a credit transaction.
	Credit(ctx context.Context, userID string, amount int, comment, sourceOrderID string) error

	Balance(ctx context.Context, userID string) (int, error)

	// HasActivePlan is the ledger-exposed fact the dispatcher branches
	// its insufficient-balance messaging on.
	HasActivePlan(ctx context.Context, userID string) (bool, error)

	// ActivatePlan sets the plan, pushes expiry 30 days out and credits
	// the plan's token grant.
	ActivatePlan(ctx context.Context, userID string, plan model.Plan, sourceOrderID string) error

	Transactions(ctx context.Context, userID string, limit int) ([]*model.TokenTransaction, error)

	// SweepExpiredPlans clears every expired plan in one pass. The
	// periodic sweep backs up the lazy per-account expiry so dormant
	// accounts do not keep stale plans forever.
	SweepExpiredPlans(ctx context.Context) (int, error)
}

type ledgerUC struct {
	accounts repository.LedgerRepository
	txs      repository.TransactionRepository
	now      func() time.Time
	log      *zerolog.Logger
}

func NewLedgerUseCase(accounts repository.LedgerRepository, txs repository.TransactionRepository, logger *zerolog.Logger) *ledgerUC {
	l := logger.With().Str("component", "LedgerUC").Logger()
	return &ledgerUC{accounts: accounts, txs: txs, now: time.Now, log: &l}
}

func (l *ledgerUC) EnsureAccount(ctx context.Context, userID string) (*model.TokenAccount, error) {
	created, err := l.accounts.CreateAccount(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	if created {
		if err := l.accounts.Credit(ctx, userID, model.InitialGrant, "initial grant", ""); err != nil {
			return nil, fmt.Errorf("initial grant: %w", err)
		}
		l.log.Info().Str("user_id", userID).Int("amount", model.InitialGrant).Msg("account created with initial grant")
	}
	return l.Account(ctx, userID)
}

func (l *ledgerUC) Account(ctx context.Context, userID string) (*model.TokenAccount, error) {
	a, err := l.accounts.FindAccount(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if a.PlanExpired(l.now()) {
		a.ClearPlan()
		if err := l.accounts.SaveAccount(ctx, nil, a); err != nil {
			return nil, fmt.Errorf("clear expired plan: %w", err)
		}
		l.log.Info().Str("user_id", userID).Msg("plan expired, cleared")
	}
	return a, nil
}

func (l *ledgerUC) Debit(ctx context.Context, userID string, amount int, comment string) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	// Lazy expiry runs before the cost check.
	if _, err := l.Account(ctx, userID); err != nil {
		return false, err
	}
	ok, err := l.accounts.Debit(ctx, userID, amount, comment)
	if err != nil {
		return false, fmt.Errorf("debit: %w", err)
	}
	if ok {
		metrics.ObserveLedger("debit", amount)
	} else {
		metrics.IncInsufficientBalance()
		l.log.Debug().Str("user_id", userID).Int("amount", amount).Msg("debit refused, insufficient balance")
	}
	return ok, nil
}

func (l *ledgerUC) Credit(ctx context.Context, userID string, amount int, comment, sourceOrderID string) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	if err := l.accounts.Credit(ctx, userID, amount, comment, sourceOrderID); err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	metrics.ObserveLedger("credit", amount)
	return nil
}

func (l *ledgerUC) Balance(ctx context.Context, userID string) (int, error) {
	a, err := l.Account(ctx, userID)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

func (l *ledgerUC) HasActivePlan(ctx context.Context, userID string) (bool, error) {
	a, err := l.Account(ctx, userID)
	if err != nil {
		return false, err
	}
	return a.HasActivePlan(l.now()), nil
}

func (l *ledgerUC) ActivatePlan(ctx context.Context, userID string, plan model.Plan, sourceOrderID string) error {
	a, err := l.Account(ctx, userID)
	if err != nil {
		return err
	}
	a.ActivatePlan(plan, l.now())
	a.PendingPayment = model.PendingNone
	if err := l.accounts.SaveAccount(ctx, nil, a); err != nil {
		return fmt.Errorf("activate plan: %w", err)
	}
	grant := model.PlanGrant(plan)
	if grant > 0 {
		if err := l.Credit(ctx, userID, grant, "plan activation "+string(plan), sourceOrderID); err != nil {
			return err
		}
	}
	l.log.Info().Str("user_id", userID).Str("plan", string(plan)).Int("grant", grant).Msg("plan activated")
	return nil
}

func (l *ledgerUC) SweepExpiredPlans(ctx context.Context) (int, error) {
	n, err := l.accounts.ClearExpiredPlans(ctx, nil, l.now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired plans: %w", err)
	}
	if n > 0 {
		metrics.IncPlansExpired(n)
	}
	return n, nil
}

func (l *ledgerUC) Transactions(ctx context.Context, userID string, limit int) ([]*model.TokenTransaction, error) {
	return l.txs.ListByUser(ctx, nil, userID, limit)
}
