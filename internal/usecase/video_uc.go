// File: internal/usecase/video_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/repository"
)

// Compile-time check
var _ VideoUseCase = (*videoUC)(nil)

// VideoOutcome is the terminal result of a confirmed video request.
type VideoOutcome struct {
	Success  bool
	VideoURL string
	Data     []byte
	FileName string
	// Charged is true once the debit went through, even when the
	// provider later failed; spent tokens are not auto-refunded.
	Charged bool
	Error   string
}

// VideoUseCase is the interactive request builder plus dispatch. One
// pending request exists per user; a new request replaces the old one
// unconditionally, and only an explicit confirm spends tokens.
type VideoUseCase interface {
	// Begin starts (or replaces) the user's pending request. A prompt
	// matching the "<duration> <quality> <text>" shortcut lands the
	// request directly in AwaitingConfirmation; anything else stays in
	// Collecting with the whole input as the prompt.
	Begin(ctx context.Context, userID, prompt, imageRef string) (*model.PendingVideoRequest, error)

	// SelectParameters fills quality and duration, moving the request
	// to AwaitingConfirmation and returning it with its computed cost.
	SelectParameters(ctx context.Context, userID string, quality model.VideoQuality, duration int) (*model.PendingVideoRequest, error)

	// Confirm debits the cost and submits the job. A false Charged
	// outcome means insufficient balance; the pending request is kept
	// so the user can top up and confirm again.
	Confirm(ctx context.Context, userID string, onProgress ProgressFunc) (*VideoOutcome, error)

	// Cancel drops the pending request with no side effects.
	Cancel(ctx context.Context, userID string) error

	Pending(ctx context.Context, userID string) (*model.PendingVideoRequest, error)
}

type videoUC struct {
	orch    Orchestrator
	ledger  LedgerUseCase
	pending repository.PendingRequestStore
	devMode bool
	log     *zerolog.Logger
}

func NewVideoUseCase(orch Orchestrator, ledger LedgerUseCase, pending repository.PendingRequestStore, devMode bool, logger *zerolog.Logger) *videoUC {
	l := logger.With().Str("component", "VideoUC").Logger()
	return &videoUC{orch: orch, ledger: ledger, pending: pending, devMode: devMode, log: &l}
}

func (v *videoUC) Begin(ctx context.Context, userID, prompt, imageRef string) (*model.PendingVideoRequest, error) {
	input := strings.TrimSpace(prompt)
	duration, quality, text, shortcut := model.ParseVideoShortcut(input)
	req, err := model.NewPendingVideoRequest(userID, text, imageRef)
	if err != nil {
		return nil, err
	}
	if shortcut {
		if err := req.SetParameters(quality, duration); err != nil {
			return nil, err
		}
	}
	// Last writer wins: any prior unconfirmed request is discarded.
	if err := v.pending.Set(ctx, req); err != nil {
		return nil, fmt.Errorf("store pending request: %w", err)
	}
	return req, nil
}

func (v *videoUC) SelectParameters(ctx context.Context, userID string, quality model.VideoQuality, duration int) (*model.PendingVideoRequest, error) {
	req, err := v.pending.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoPendingRequest
		}
		return nil, err
	}
	if err := req.SetParameters(quality, duration); err != nil {
		return nil, err
	}
	if err := v.pending.Set(ctx, req); err != nil {
		return nil, fmt.Errorf("store pending request: %w", err)
	}
	return req, nil
}

func (v *videoUC) Confirm(ctx context.Context, userID string, onProgress ProgressFunc) (*VideoOutcome, error) {
	req, err := v.pending.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoPendingRequest
		}
		return nil, err
	}
	if req.Stage != model.StageAwaitingConfirmation {
		return nil, domain.ErrRequestNotConfirmed
	}
	// A tier with no configured backend is refused before any debit.
	if !v.orch.VideoAvailable(req.Quality) {
		return nil, domain.ErrProviderUnavailable
	}

	cost := req.Cost()
	if !v.devMode {
		ok, err := v.ledger.Debit(ctx, userID, cost, fmt.Sprintf("video %ds %s", req.Duration, req.Quality))
		if err != nil {
			return nil, err
		}
		if !ok {
			return &VideoOutcome{Charged: false}, nil
		}
	}

	// The request is consumed once paid; a failure past this point does
	// not resurrect it.
	if err := v.pending.Delete(ctx, userID); err != nil {
		v.log.Error().Err(err).Str("user_id", userID).Msg("pending request delete failed")
	}

	res, err := v.orch.GenerateVideo(ctx, userID, req, onProgress)
	if err != nil {
		// Spent tokens stay spent on provider failure or timeout; the
		// message tells the user what happened.
		v.log.Error().Err(err).Str("user_id", userID).Int("cost", cost).Msg("video generation failed after debit")
		return &VideoOutcome{Charged: true, Error: userFacingJobError(err)}, nil
	}

	out := &VideoOutcome{Success: true, Charged: true}
	for _, p := range res.Files() {
		out.VideoURL = p.Ref
		out.Data = p.Data
		out.FileName = p.FileName
		break
	}
	return out, nil
}

func (v *videoUC) Cancel(ctx context.Context, userID string) error {
	return v.pending.Delete(ctx, userID)
}

func (v *videoUC) Pending(ctx context.Context, userID string) (*model.PendingVideoRequest, error) {
	req, err := v.pending.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoPendingRequest
		}
		return nil, err
	}
	return req, nil
}

// userFacingJobError folds orchestrator errors into a short reason
// suitable for direct display.
func userFacingJobError(err error) string {
	switch {
	case errors.Is(err, domain.ErrJobTimeout):
		return "generation timed out"
	case errors.Is(err, domain.ErrJobFailed):
		msg := err.Error()
		if idx := strings.Index(msg, ": "); idx >= 0 {
			return msg[idx+2:]
		}
		return "generation failed"
	default:
		return "internal error"
	}
}
