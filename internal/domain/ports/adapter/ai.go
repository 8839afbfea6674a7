package adapter

import (
	"context"

	"promind-bot/internal/domain/model"
)

// PollPolicy is the provider-specific polling contract: fixed interval
// with a maximum attempt budget.
type PollPolicy struct {
	Interval    int // seconds between polls
	MaxAttempts int
}

// AssistantAdapter is the port for the chat-assistant provider
// (OpenAI-compatible Assistants API: threads, messages, runs, files).
type AssistantAdapter interface {
	// CreateSession opens a new provider conversation and returns its id.
	CreateSession(ctx context.Context) (string, error)

	// AppendMessage adds a user message to the session.
	AppendMessage(ctx context.Context, sessionID, role, content string) error

	// StartRun submits a generation run on the session and returns the
	// provider-assigned run id.
	StartRun(ctx context.Context, sessionID string) (string, error)

	// RunStatus polls one run, already normalized to the canonical model.
	RunStatus(ctx context.Context, sessionID, runID string) (model.StatusProbe, error)

	// ActiveRun reports a still-running run on the session, "" if none.
	// Assistant sessions require serialized access, so a leftover run
	// must be drained before a new one is submitted.
	ActiveRun(ctx context.Context, sessionID string) (string, error)

	// ListResult fetches the final message parts of a completed run:
	// one text block plus any file attachments, in provider order.
	ListResult(ctx context.Context, sessionID string) ([]model.ResultPart, error)

	// FetchFile downloads a provider file by id.
	FetchFile(ctx context.Context, fileID string) (data []byte, filename string, err error)

	// GenerateImage performs a synchronous image generation and returns
	// either raw bytes or a URL ref (provider-dependent).
	GenerateImage(ctx context.Context, prompt string) (*model.ResultPart, error)

	// Transcribe converts a voice recording to text.
	Transcribe(ctx context.Context, audio []byte, fileName string) (string, error)

	// Synthesize renders text as speech, returning encoded audio.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// CountTokens estimates prompt tokens, best effort.
	CountTokens(text string) int

	PollPolicy() PollPolicy
}
