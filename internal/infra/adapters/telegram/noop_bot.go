package telegram

import (
	"context"
	"log"
	"sync/atomic"

	"promind-bot/internal/domain/ports/adapter"
)

var _ adapter.TelegramPort = (*NoopBot)(nil)

// NoopBot implements adapter.TelegramPort for local/dev testing.
// It logs messages instead of hitting the Telegram API.
type NoopBot struct {
	seq atomic.Int64
}

func NewNoopBot() *NoopBot { return &NoopBot{} }

func (b *NoopBot) SendMessage(ctx context.Context, tgID int64, text string) (int, error) {
	log.Printf("[noop-telegram] To user %d: %s\n", tgID, text)
	return int(b.seq.Add(1)), nil
}

func (b *NoopBot) EditMessage(ctx context.Context, tgID int64, messageID int, text string) error {
	log.Printf("[noop-telegram] Edit %d for user %d: %s\n", messageID, tgID, text)
	return nil
}

func (b *NoopBot) DeleteMessage(ctx context.Context, tgID int64, messageID int) error {
	log.Printf("[noop-telegram] Delete %d for user %d\n", messageID, tgID)
	return nil
}

func (b *NoopBot) SendButtons(ctx context.Context, tgID int64, text string, rows [][]adapter.InlineButton) (int, error) {
	log.Printf("[noop-telegram] To user %d: %s [buttons: %v]\n", tgID, text, rows)
	return int(b.seq.Add(1)), nil
}

func (b *NoopBot) SendPhoto(ctx context.Context, tgID int64, name string, data []byte, urlRef string) error {
	log.Printf("[noop-telegram] Photo %q (%d bytes, url %q) to user %d\n", name, len(data), urlRef, tgID)
	return nil
}

func (b *NoopBot) SendVideo(ctx context.Context, tgID int64, name string, data []byte) error {
	log.Printf("[noop-telegram] Video %q (%d bytes) to user %d\n", name, len(data), tgID)
	return nil
}

func (b *NoopBot) SendVoice(ctx context.Context, tgID int64, data []byte) error {
	log.Printf("[noop-telegram] Voice (%d bytes) to user %d\n", len(data), tgID)
	return nil
}
