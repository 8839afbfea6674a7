// File: internal/usecase/image_uc.go
package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
)

// Compile-time check
var _ ImageUseCase = (*imageUC)(nil)

// ImageReply mirrors ChatReply for a single image generation.
type ImageReply struct {
	Part    *model.ResultPart
	Charged bool
}

type ImageUseCase interface {
	Generate(ctx context.Context, userID, prompt string) (*ImageReply, error)
}

type imageUC struct {
	orch    Orchestrator
	ledger  LedgerUseCase
	devMode bool
	log     *zerolog.Logger
}

func NewImageUseCase(orch Orchestrator, ledger LedgerUseCase, devMode bool, logger *zerolog.Logger) *imageUC {
	l := logger.With().Str("component", "ImageUC").Logger()
	return &imageUC{orch: orch, ledger: ledger, devMode: devMode, log: &l}
}

func (i *imageUC) Generate(ctx context.Context, userID, prompt string) (*ImageReply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}

	if !i.devMode {
		ok, err := i.ledger.Debit(ctx, userID, model.CostImage, "image generation")
		if err != nil {
			return nil, err
		}
		if !ok {
			return &ImageReply{Charged: false}, nil
		}
	}

	part, err := i.orch.GenerateImage(ctx, userID, prompt, NopProgress)
	if err != nil {
		return nil, err
	}
	return &ImageReply{Part: part, Charged: true}, nil
}
