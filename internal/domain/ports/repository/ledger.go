package repository

import (
	"context"
	"time"

	"promind-bot/internal/domain/model"
)

// LedgerRepository is the sole write path to token balances. Debit and
// Credit mutate the balance and append the matching transaction as one
// atomic unit; no other component touches balance directly.
type LedgerRepository interface {
	// CreateAccount makes a zero-balance account if none exists yet.
	// Reports whether a new account was created; creating an account
	// that already exists is a no-op.
	CreateAccount(ctx context.Context, qx any, userID string) (bool, error)

	FindAccount(ctx context.Context, qx any, userID string) (*model.TokenAccount, error)

	// Debit decrements balance by amount only when balance >= amount,
	// appending a debit transaction in the same unit of work. Returns
	// false (and appends nothing) when the balance is insufficient.
	// Concurrent debits for one user serialize around the
	// read-check-decrement sequence.
	Debit(ctx context.Context, userID string, amount int, comment string) (bool, error)

	// Credit increments balance and appends a credit transaction. It
	// always succeeds for an existing account.
	Credit(ctx context.Context, userID string, amount int, comment, sourceOrderID string) error

	// SaveAccount persists plan fields (plan, expiry, pending payment).
	// It must never be used to change the balance.
	SaveAccount(ctx context.Context, qx any, a *model.TokenAccount) error

	// SumBalances reports the total tokens outstanding across accounts.
	SumBalances(ctx context.Context, qx any) (int, error)

	// ClearExpiredPlans drops every plan whose expiry has passed,
	// leaving balances untouched. Returns how many accounts changed.
	ClearExpiredPlans(ctx context.Context, qx any, now time.Time) (int, error)
}

// TransactionRepository reads the append-only audit trail.
type TransactionRepository interface {
	ListByUser(ctx context.Context, qx any, userID string, limit int) ([]*model.TokenTransaction, error)

	// ReplayBalance folds every entry for the user into a balance; used
	// to audit the live balance against the log.
	ReplayBalance(ctx context.Context, qx any, userID string) (int, error)

	// FindBySourceOrder returns the entry recorded for an external
	// order id, or ErrNotFound. This is the idempotency check for
	// order reconciliation.
	FindBySourceOrder(ctx context.Context, qx any, sourceOrderID string) (*model.TokenTransaction, error)

	CountAll(ctx context.Context, qx any) (int, error)
}
