// File: cmd/migrate/main.go
package main

import (
	"context"
	"log"
	"time"

	"promind-bot/internal/config"
	pg "promind-bot/internal/infra/db/postgres"
)

// migrate applies the idempotent schema against the configured
// database and exits. The app runs the same migration on boot; this
// command exists for provisioning a database ahead of a deploy.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("schema up to date")
}
