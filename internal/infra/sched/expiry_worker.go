package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"promind-bot/internal/usecase"
)

// ExpiryWorker periodically clears expired plans via the ledger use
// case. It backs up the lazy expiry that runs on account reads.
type ExpiryWorker struct {
	interval time.Duration
	ledgerUC usecase.LedgerUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, ledgerUC usecase.LedgerUseCase, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		ledgerUC: ledgerUC,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.ledgerUC.SweepExpiredPlans(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("expired plans cleared")
			}
		}
	}
}
