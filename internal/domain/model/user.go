package model

import (
	"time"

	"promind-bot/internal/domain"

	"github.com/google/uuid"
)

// UserProfile is a domain entity representing a Telegram user in our system.
// Telegram IDs can exceed 2^31, so they are kept as int64 end to end.
type UserProfile struct {
	ID           string
	TelegramID   int64
	FirstName    string
	Username     string
	FirstVisitAt time.Time
	LastSeenAt   time.Time
}

func NewUserProfile(id string, tgID int64, firstName, username string) (*UserProfile, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &UserProfile{
		ID:           id,
		TelegramID:   tgID,
		FirstName:    firstName,
		Username:     username,
		FirstVisitAt: now,
		LastSeenAt:   now,
	}, nil
}

func (u *UserProfile) IsZero() bool { return u == nil || u.ID == "" }
func (u *UserProfile) Touch()       { u.LastSeenAt = time.Now() }
