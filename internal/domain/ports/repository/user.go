package repository

import (
	"context"

	"promind-bot/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, qx any, u *model.UserProfile) error
	FindByTelegramID(ctx context.Context, qx any, tgID int64) (*model.UserProfile, error)
	FindByID(ctx context.Context, qx any, id string) (*model.UserProfile, error)
	CountUsers(ctx context.Context, qx any) (int, error)
}
