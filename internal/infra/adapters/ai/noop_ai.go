// File: internal/infra/adapters/ai/noop_ai.go
package ai

import (
	"context"
	"fmt"
	"sync/atomic"

	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/adapter"
)

var _ adapter.AssistantAdapter = (*NoopAssistant)(nil)

// NoopAssistant echoes prompts without touching any provider.
// Used in dev mode so the bot can run without credentials.
type NoopAssistant struct {
	seq atomic.Int64
}

func NewNoopAssistant() *NoopAssistant { return &NoopAssistant{} }

func (n *NoopAssistant) CreateSession(ctx context.Context) (string, error) {
	return fmt.Sprintf("noop-session-%d", n.seq.Add(1)), nil
}

func (n *NoopAssistant) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	return nil
}

func (n *NoopAssistant) StartRun(ctx context.Context, sessionID string) (string, error) {
	return fmt.Sprintf("noop-run-%d", n.seq.Add(1)), nil
}

func (n *NoopAssistant) RunStatus(ctx context.Context, sessionID, runID string) (model.StatusProbe, error) {
	return model.StatusProbe{Status: model.StatusCompleted, Raw: "completed", Progress: 100}, nil
}

func (n *NoopAssistant) ActiveRun(ctx context.Context, sessionID string) (string, error) {
	return "", nil
}

func (n *NoopAssistant) ListResult(ctx context.Context, sessionID string) ([]model.ResultPart, error) {
	return []model.ResultPart{{Text: "noop reply"}}, nil
}

func (n *NoopAssistant) FetchFile(ctx context.Context, fileID string) ([]byte, string, error) {
	return []byte("noop"), fileID, nil
}

func (n *NoopAssistant) GenerateImage(ctx context.Context, prompt string) (*model.ResultPart, error) {
	return &model.ResultPart{Data: []byte("noop image"), FileName: "image.png"}, nil
}

func (n *NoopAssistant) Transcribe(ctx context.Context, audio []byte, fileName string) (string, error) {
	return "noop transcript", nil
}

func (n *NoopAssistant) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return []byte("noop voice"), nil
}

func (n *NoopAssistant) CountTokens(text string) int { return len(text) / 4 }

func (n *NoopAssistant) PollPolicy() adapter.PollPolicy {
	return adapter.PollPolicy{Interval: 0, MaxAttempts: 1}
}
