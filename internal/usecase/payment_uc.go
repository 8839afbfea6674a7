// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/repository"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// PaymentUseCase reconciles external orders into ledger credits. The
// payment gateway itself lives outside this system; orders arrive here
// already settled, identified by their order id.
type PaymentUseCase interface {
	// SetPending records which product the user is about to pay for.
	SetPending(ctx context.Context, userID string, p model.PendingPayment) error

	// ApplyOrder credits a settled order exactly once (idempotent by
	// order id): plan orders activate the plan and its grant, top-ups
	// credit the purchased amount.
	ApplyOrder(ctx context.Context, userID, orderID string, topUpTokens int) error
}

type paymentUC struct {
	ledger   LedgerUseCase
	accounts repository.LedgerRepository
	txs      repository.TransactionRepository
	log      *zerolog.Logger
}

func NewPaymentUseCase(ledger LedgerUseCase, accounts repository.LedgerRepository, txs repository.TransactionRepository, logger *zerolog.Logger) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{ledger: ledger, accounts: accounts, txs: txs, log: &l}
}

func (p *paymentUC) SetPending(ctx context.Context, userID string, pending model.PendingPayment) error {
	a, err := p.ledger.Account(ctx, userID)
	if err != nil {
		return err
	}
	a.PendingPayment = pending
	return p.accounts.SaveAccount(ctx, nil, a)
}

func (p *paymentUC) ApplyOrder(ctx context.Context, userID, orderID string, topUpTokens int) error {
	if orderID == "" {
		return domain.ErrInvalidArgument
	}
	// Idempotency: an order already present in the transaction log is
	// never credited twice.
	if _, err := p.txs.FindBySourceOrder(ctx, nil, orderID); err == nil {
		return domain.ErrOrderAlreadyApplied
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	a, err := p.ledger.Account(ctx, userID)
	if err != nil {
		return err
	}

	switch a.PendingPayment {
	case model.PendingPlus:
		return p.ledger.ActivatePlan(ctx, userID, model.PlanPlus, orderID)
	case model.PendingPro:
		return p.ledger.ActivatePlan(ctx, userID, model.PlanPro, orderID)
	case model.PendingTopUp:
		if topUpTokens <= 0 {
			return domain.ErrInvalidArgument
		}
		if err := p.ledger.Credit(ctx, userID, topUpTokens, "top-up", orderID); err != nil {
			return err
		}
		a.PendingPayment = model.PendingNone
		return p.accounts.SaveAccount(ctx, nil, a)
	default:
		return domain.ErrNoPendingPayment
	}
}
