package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/repository"
)

var _ repository.AssistantSessionRepository = (*PostgresSessionRepo)(nil)

// PostgresSessionRepo persists the user -> assistant session mapping.
type PostgresSessionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSessionRepo(pool *pgxpool.Pool) *PostgresSessionRepo {
	return &PostgresSessionRepo{pool: pool}
}

func (r *PostgresSessionRepo) FindByUser(ctx context.Context, qx any, userID string) (*model.AssistantSession, error) {
	const q = `SELECT user_id, session_id, created_at FROM assistant_sessions WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, userID)
	if err != nil {
		return nil, err
	}
	var s model.AssistantSession
	if err := row.Scan(&s.UserID, &s.SessionID, &s.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Save inserts the mapping unless one exists. When a concurrent create
// wins the race, the pre-existing row is returned so the caller adopts
// it instead of orphaning a second provider session.
func (r *PostgresSessionRepo) Save(ctx context.Context, qx any, s *model.AssistantSession) (*model.AssistantSession, error) {
	const q = `
INSERT INTO assistant_sessions (user_id, session_id, created_at)
VALUES ($1,$2,$3)
ON CONFLICT (user_id) DO NOTHING;
`
	tag, err := pickExec(ctx, r.pool, qx, q, s.UserID, s.SessionID, s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 1 {
		return s, nil
	}
	return r.FindByUser(ctx, qx, s.UserID)
}
