package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

// schema is applied idempotently at startup/seed time.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id             TEXT PRIMARY KEY,
		telegram_id    BIGINT UNIQUE NOT NULL,
		first_name     TEXT NOT NULL DEFAULT '',
		username       TEXT NOT NULL DEFAULT '',
		first_visit_at TIMESTAMPTZ NOT NULL,
		last_seen_at   TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS token_accounts (
		user_id         TEXT PRIMARY KEY REFERENCES users(id),
		balance         BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		plan            TEXT NOT NULL DEFAULT '',
		plan_expires_at TIMESTAMPTZ,
		pending_payment TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS token_transactions (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL REFERENCES users(id),
		amount          BIGINT NOT NULL CHECK (amount > 0),
		direction       TEXT NOT NULL CHECK (direction IN ('DEBIT','CREDIT')),
		comment         TEXT NOT NULL DEFAULT '',
		source_order_id TEXT UNIQUE,
		created_at      TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_token_transactions_user
		ON token_transactions (user_id, created_at DESC);`,
	`CREATE TABLE IF NOT EXISTS assistant_sessions (
		user_id    TEXT PRIMARY KEY REFERENCES users(id),
		session_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`,
}

// Migrate creates any missing tables. Safe to run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
