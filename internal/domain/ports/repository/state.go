package repository

import (
	"context"

	"promind-bot/internal/domain/model"
)

// PendingRequestStore keeps each user's in-progress interactive video
// request. It is a narrow get/set/delete surface so the backing store
// (in-process map, Redis) can change without touching orchestration.
type PendingRequestStore interface {
	Get(ctx context.Context, userID string) (*model.PendingVideoRequest, error)
	// Set replaces any prior request for the request's user (last
	// writer wins).
	Set(ctx context.Context, r *model.PendingVideoRequest) error
	Delete(ctx context.Context, userID string) error
}
