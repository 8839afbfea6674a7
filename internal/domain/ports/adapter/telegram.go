package adapter

import "context"

// InlineButton is one inline keyboard button: URL buttons open a link,
// Data buttons send callback data.
type InlineButton struct {
	Text string
	URL  string
	Data string
}

// TelegramPort is the outbound message surface the application layer
// uses. The concrete adapter wraps the bot API library.
type TelegramPort interface {
	SendMessage(ctx context.Context, tgID int64, text string) (messageID int, err error)
	EditMessage(ctx context.Context, tgID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, tgID int64, messageID int) error
	SendButtons(ctx context.Context, tgID int64, text string, rows [][]InlineButton) (messageID int, err error)
	SendPhoto(ctx context.Context, tgID int64, name string, data []byte, urlRef string) error
	SendVideo(ctx context.Context, tgID int64, name string, data []byte) error
	SendVoice(ctx context.Context, tgID int64, data []byte) error
}
