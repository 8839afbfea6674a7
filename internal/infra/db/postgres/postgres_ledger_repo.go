package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/repository"
)

var _ repository.LedgerRepository = (*PostgresLedgerRepo)(nil)

// PostgresLedgerRepo owns the token_accounts table and the balance
// half of the ledger contract. Balance changes and their audit entries
// commit in one transaction.
type PostgresLedgerRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewPostgresLedgerRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *PostgresLedgerRepo {
	return &PostgresLedgerRepo{pool: pool, tm: tm}
}

func (r *PostgresLedgerRepo) CreateAccount(ctx context.Context, qx any, userID string) (bool, error) {
	const q = `
INSERT INTO token_accounts (user_id, balance, plan, created_at, updated_at)
VALUES ($1, 0, '', now(), now())
ON CONFLICT (user_id) DO NOTHING;
`
	tag, err := pickExec(ctx, r.pool, qx, q, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresLedgerRepo) FindAccount(ctx context.Context, qx any, userID string) (*model.TokenAccount, error) {
	const q = `
SELECT user_id, balance, plan, plan_expires_at, pending_payment, created_at, updated_at
  FROM token_accounts WHERE user_id=$1;
`
	row, err := pickRow(ctx, r.pool, qx, q, userID)
	if err != nil {
		return nil, err
	}
	var a model.TokenAccount
	if err := row.Scan(&a.UserID, &a.Balance, &a.Plan, &a.PlanExpiresAt, &a.PendingPayment, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

const insertTxQuery = `
INSERT INTO token_transactions (id, user_id, amount, direction, comment, source_order_id, created_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7);
`

// Debit decrements the balance only when it covers the amount. The
// conditional UPDATE and the audit entry commit together, so two
// concurrent debits can never push the balance below zero.
func (r *PostgresLedgerRepo) Debit(ctx context.Context, userID string, amount int, comment string) (bool, error) {
	if amount <= 0 {
		return false, domain.ErrInvalidArgument
	}
	ok := false
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const q = `
UPDATE token_accounts SET balance = balance - $2, updated_at = now()
 WHERE user_id = $1 AND balance >= $2;
`
		tag, err := pickExec(ctx, r.pool, tx, q, userID, amount)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			// Either no account or not enough tokens; distinguish for the caller.
			row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS(SELECT 1 FROM token_accounts WHERE user_id=$1);`, userID)
			if err != nil {
				return err
			}
			var exists bool
			if err := row.Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return domain.ErrAccountNotFound
			}
			return nil
		}

		entry := model.NewTokenTransaction(userID, amount, model.TxDebit, comment, "")
		if _, err := pickExec(ctx, r.pool, tx, insertTxQuery, entry.ID, entry.UserID, entry.Amount, entry.Direction, entry.Comment, entry.SourceOrderID, entry.CreatedAt); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *PostgresLedgerRepo) Credit(ctx context.Context, userID string, amount int, comment, sourceOrderID string) error {
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const q = `
UPDATE token_accounts SET balance = balance + $2, updated_at = now()
 WHERE user_id = $1;
`
		tag, err := pickExec(ctx, r.pool, tx, q, userID, amount)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrAccountNotFound
		}

		entry := model.NewTokenTransaction(userID, amount, model.TxCredit, comment, sourceOrderID)
		if _, err := pickExec(ctx, r.pool, tx, insertTxQuery, entry.ID, entry.UserID, entry.Amount, entry.Direction, entry.Comment, entry.SourceOrderID, entry.CreatedAt); err != nil {
			// The unique source_order_id column makes concurrent credits
			// for the same order lose here rather than double-pay.
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrOrderAlreadyApplied
			}
			return err
		}
		return nil
	})
}

// SaveAccount persists plan fields only. The balance column is owned
// by Debit/Credit and deliberately absent from the update list.
func (r *PostgresLedgerRepo) SaveAccount(ctx context.Context, qx any, a *model.TokenAccount) error {
	const q = `
UPDATE token_accounts
   SET plan=$2, plan_expires_at=$3, pending_payment=$4, updated_at=now()
 WHERE user_id=$1;
`
	tag, err := pickExec(ctx, r.pool, qx, q, a.UserID, a.Plan, a.PlanExpiresAt, a.PendingPayment)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *PostgresLedgerRepo) ClearExpiredPlans(ctx context.Context, qx any, now time.Time) (int, error) {
	const q = `
UPDATE token_accounts
   SET plan='', plan_expires_at=NULL, updated_at=now()
 WHERE plan <> '' AND plan_expires_at IS NOT NULL AND plan_expires_at <= $1;
`
	tag, err := pickExec(ctx, r.pool, qx, q, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresLedgerRepo) SumBalances(ctx context.Context, qx any) (int, error) {
	row, err := pickRow(ctx, r.pool, qx, `SELECT COALESCE(SUM(balance),0) FROM token_accounts;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("sum balances: %w", err)
	}
	return n, nil
}
