// File: internal/usecase/user_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/repository"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

type UserUseCase interface {
	// RegisterOrFetch returns the user for a Telegram id, creating the
	// profile and its token account (with the initial grant) on first
	// contact.
	RegisterOrFetch(ctx context.Context, tgID int64, firstName, username string) (*model.UserProfile, error)
	GetByTelegramID(ctx context.Context, tgID int64) (*model.UserProfile, error)
}

type userUC struct {
	users  repository.UserRepository
	ledger LedgerUseCase
	log    *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, ledger LedgerUseCase, logger *zerolog.Logger) *userUC {
	l := logger.With().Str("component", "UserUC").Logger()
	return &userUC{users: users, ledger: ledger, log: &l}
}

func (u *userUC) RegisterOrFetch(ctx context.Context, tgID int64, firstName, username string) (*model.UserProfile, error) {
	existing, err := u.users.FindByTelegramID(ctx, nil, tgID)
	if err == nil {
		existing.Touch()
		_ = u.users.Save(ctx, nil, existing)
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	user, err := model.NewUserProfile("", tgID, firstName, username)
	if err != nil {
		return nil, err
	}
	if err := u.users.Save(ctx, nil, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	if _, err := u.ledger.EnsureAccount(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}
	u.log.Info().Int64("tg_id", tgID).Str("user_id", user.ID).Msg("new user registered")
	return user, nil
}

func (u *userUC) GetByTelegramID(ctx context.Context, tgID int64) (*model.UserProfile, error) {
	return u.users.FindByTelegramID(ctx, nil, tgID)
}
