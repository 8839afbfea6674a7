package repository

import (
	"context"

	"promind-bot/internal/domain/model"
)

// AssistantSessionRepository persists the user -> provider session
// mapping. Save must be idempotent per user: a concurrent second
// creation for the same user keeps the first-to-persist session, and
// Save reports the winning row so the caller can adopt it.
type AssistantSessionRepository interface {
	FindByUser(ctx context.Context, qx any, userID string) (*model.AssistantSession, error)

	// Save inserts the mapping unless one already exists for the user,
	// and returns the session that is now durable (the argument on
	// insert, the pre-existing row when the insert lost the race).
	Save(ctx context.Context, qx any, s *model.AssistantSession) (*model.AssistantSession, error)
}
