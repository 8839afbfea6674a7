package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*PostgresTransactionRepo)(nil)

// PostgresTransactionRepo reads the append-only token_transactions log.
// Writes happen only through the ledger repo.
type PostgresTransactionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresTransactionRepo(pool *pgxpool.Pool) *PostgresTransactionRepo {
	return &PostgresTransactionRepo{pool: pool}
}

func (r *PostgresTransactionRepo) ListByUser(ctx context.Context, qx any, userID string, limit int) ([]*model.TokenTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, user_id, amount, direction, comment, COALESCE(source_order_id,''), created_at
  FROM token_transactions
 WHERE user_id=$1
 ORDER BY created_at DESC
 LIMIT $2;
`
	rows, err := pickQuery(ctx, r.pool, qx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.TokenTransaction
	for rows.Next() {
		var t model.TokenTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Direction, &t.Comment, &t.SourceOrderID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *PostgresTransactionRepo) ReplayBalance(ctx context.Context, qx any, userID string) (int, error) {
	const q = `
SELECT COALESCE(SUM(CASE direction WHEN 'CREDIT' THEN amount ELSE -amount END), 0)
  FROM token_transactions WHERE user_id=$1;
`
	row, err := pickRow(ctx, r.pool, qx, q, userID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("replay balance: %w", err)
	}
	return n, nil
}

func (r *PostgresTransactionRepo) FindBySourceOrder(ctx context.Context, qx any, sourceOrderID string) (*model.TokenTransaction, error) {
	const q = `
SELECT id, user_id, amount, direction, comment, COALESCE(source_order_id,''), created_at
  FROM token_transactions WHERE source_order_id=$1;
`
	row, err := pickRow(ctx, r.pool, qx, q, sourceOrderID)
	if err != nil {
		return nil, err
	}
	var t model.TokenTransaction
	if err := row.Scan(&t.ID, &t.UserID, &t.Amount, &t.Direction, &t.Comment, &t.SourceOrderID, &t.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *PostgresTransactionRepo) CountAll(ctx context.Context, qx any) (int, error) {
	row, err := pickRow(ctx, r.pool, qx, `SELECT COUNT(*) FROM token_transactions;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}
