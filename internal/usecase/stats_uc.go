// File: internal/usecase/stats_uc.go
package usecase

import (
	"context"

	"promind-bot/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// Stats is the admin-facing snapshot served by the ops API.
type Stats struct {
	Users             int `json:"users"`
	TokensOutstanding int `json:"tokens_outstanding"`
	Transactions      int `json:"transactions"`
}

type StatsUseCase interface {
	Snapshot(ctx context.Context) (*Stats, error)
}

type statsUC struct {
	users    repository.UserRepository
	accounts repository.LedgerRepository
	txs      repository.TransactionRepository
}

func NewStatsUseCase(users repository.UserRepository, accounts repository.LedgerRepository, txs repository.TransactionRepository) *statsUC {
	return &statsUC{users: users, accounts: accounts, txs: txs}
}

func (s *statsUC) Snapshot(ctx context.Context) (*Stats, error) {
	users, err := s.users.CountUsers(ctx, nil)
	if err != nil {
		return nil, err
	}
	tokens, err := s.accounts.SumBalances(ctx, nil)
	if err != nil {
		return nil, err
	}
	txCount, err := s.txs.CountAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Stats{Users: users, TokensOutstanding: tokens, Transactions: txCount}, nil
}
