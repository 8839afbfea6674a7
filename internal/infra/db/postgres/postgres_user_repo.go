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

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

func (r *PostgresUserRepo) Save(ctx context.Context, qx any, u *model.UserProfile) error {
	const q = `
INSERT INTO users (
  id, telegram_id, first_name, username, first_visit_at, last_seen_at
) VALUES (
  $1,$2,$3,$4,$5,$6
) ON CONFLICT (id) DO UPDATE SET
  telegram_id=$2, first_name=$3, username=$4, last_seen_at=$6;
`
	_, err := pickExec(ctx, r.pool, qx, q, u.ID, u.TelegramID, u.FirstName, u.Username, u.FirstVisitAt, u.LastSeenAt)
	return err
}

func (r *PostgresUserRepo) FindByTelegramID(ctx context.Context, qx any, tgID int64) (*model.UserProfile, error) {
	const q = `
SELECT id, telegram_id, first_name, username, first_visit_at, last_seen_at
  FROM users WHERE telegram_id=$1;
`
	row, err := pickRow(ctx, r.pool, qx, q, tgID)
	if err != nil {
		return nil, err
	}
	var u model.UserProfile
	if err := row.Scan(&u.ID, &u.TelegramID, &u.FirstName, &u.Username, &u.FirstVisitAt, &u.LastSeenAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, qx any, id string) (*model.UserProfile, error) {
	const q = `
SELECT id, telegram_id, first_name, username, first_visit_at, last_seen_at
  FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	var u model.UserProfile
	if err := row.Scan(&u.ID, &u.TelegramID, &u.FirstName, &u.Username, &u.FirstVisitAt, &u.LastSeenAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepo) CountUsers(ctx context.Context, qx any) (int, error) {
	row, err := pickRow(ctx, r.pool, qx, `SELECT COUNT(*) FROM users;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
