package adapter

import (
	"context"

	"promind-bot/internal/domain/model"
)

// VideoRequest is the provider-neutral submit payload.
type VideoRequest struct {
	Prompt   string
	Duration int // seconds
	ImageRef string
}

// VideoGenerator is the port one video backend implements. Each
// adapter owns the translation from its raw status vocabulary to the
// canonical model; nothing past this port sees provider strings.
type VideoGenerator interface {
	Name() model.ProviderName

	// Submit starts a generation job and returns the provider job id.
	Submit(ctx context.Context, req VideoRequest) (string, error)

	// Status polls one job, normalized to the canonical model.
	Status(ctx context.Context, jobID string) (model.StatusProbe, error)

	// Download fetches the finished clip.
	Download(ctx context.Context, resultURL string) ([]byte, error)

	PollPolicy() PollPolicy
}
