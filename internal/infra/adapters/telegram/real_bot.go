package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"promind-bot/internal/application"
	"promind-bot/internal/config"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/adapter"
	"promind-bot/internal/infra/metrics"
	red "promind-bot/internal/infra/redis"
	"promind-bot/internal/infra/worker"
	"promind-bot/internal/usecase"
)

var _ adapter.TelegramPort = (*RealBot)(nil)

// RealBot polls Telegram updates, hands them to the worker pool and
// delegates command handling to the BotFacade.
type RealBot struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.BotConfig
	facade      *application.BotFacade
	rateLimiter *red.RateLimiter
	pool        *worker.Pool
	client      *http.Client
	log         zerolog.Logger

	adminIDs      map[int64]struct{}
	cancelPolling context.CancelFunc
}

func NewRealBot(cfg *config.BotConfig, facade *application.BotFacade, rateLimiter *red.RateLimiter, pool *worker.Pool, logger *zerolog.Logger) (*RealBot, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	if pool == nil {
		return nil, errors.New("worker pool is nil")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	admins := map[int64]struct{}{}
	for _, id := range cfg.AdminIDs {
		admins[id] = struct{}{}
	}

	return &RealBot{
		bot:         bot,
		cfg:         cfg,
		facade:      facade,
		rateLimiter: rateLimiter,
		pool:        pool,
		client:      &http.Client{Timeout: 60 * time.Second},
		log:         logger.With().Str("component", "telegram_bot").Logger(),
		adminIDs:    admins,
	}, nil
}

func (r *RealBot) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up := <-updates:
			if err := r.pool.Submit(func(ctx context.Context) error {
				return r.handleUpdate(ctx, up)
			}); err != nil {
				// Pool saturated; handle inline rather than drop the update.
				r.log.Warn().Err(err).Msg("worker pool full, handling update inline")
				if err := r.handleUpdate(ctx, up); err != nil {
					r.log.Error().Err(err).Msg("update failed")
				}
			}
		}
	}
}

func (r *RealBot) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// ---- adapter.TelegramPort ----

func (r *RealBot) SendMessage(ctx context.Context, tgID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(tgID, text)
	sent, err := r.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (r *RealBot) EditMessage(ctx context.Context, tgID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(tgID, messageID, text)
	_, err := r.bot.Send(edit)
	return err
}

func (r *RealBot) DeleteMessage(ctx context.Context, tgID int64, messageID int) error {
	_, err := r.bot.Request(tgbotapi.NewDeleteMessage(tgID, messageID))
	return err
}

func (r *RealBot) SendButtons(ctx context.Context, tgID int64, text string, rows [][]adapter.InlineButton) (int, error) {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, btns)
	}

	msg := tgbotapi.NewMessage(tgID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	sent, err := r.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (r *RealBot) SendPhoto(ctx context.Context, tgID int64, name string, data []byte, urlRef string) error {
	var file tgbotapi.RequestFileData
	if len(data) > 0 {
		file = tgbotapi.FileReader{Name: name, Reader: bytes.NewReader(data)}
	} else {
		file = tgbotapi.FileURL(urlRef)
	}
	_, err := r.bot.Send(tgbotapi.NewPhoto(tgID, file))
	return err
}

func (r *RealBot) SendVideo(ctx context.Context, tgID int64, name string, data []byte) error {
	file := tgbotapi.FileReader{Name: name, Reader: bytes.NewReader(data)}
	_, err := r.bot.Send(tgbotapi.NewVideo(tgID, file))
	return err
}

func (r *RealBot) SendVoice(ctx context.Context, tgID int64, data []byte) error {
	file := tgbotapi.FileReader{Name: "reply.ogg", Reader: bytes.NewReader(data)}
	_, err := r.bot.Send(tgbotapi.NewVoice(tgID, file))
	return err
}

// ---- update routing ----

func (r *RealBot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	msg := update.Message
	tgID := msg.From.ID

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	fields := strings.Fields(text)
	command := "message"
	if msg.Voice != nil {
		command = "voice"
	} else if len(fields) > 0 && strings.HasPrefix(fields[0], "/") {
		// Group chats address commands as /cmd@botname.
		command, _, _ = strings.Cut(strings.ToLower(fields[0]), "@")
	}
	metrics.IncBotUpdate(command)

	if r.rateLimiter != nil {
		allowed, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(tgID, command), 20, time.Minute)
		if err != nil {
			r.log.Warn().Err(err).Msg("rate limit check failed")
		} else if !allowed {
			metrics.IncRateLimited()
			_, err := r.SendMessage(ctx, tgID, r.facade.TR.T("rate_limited"))
			return err
		}
	}

	if msg.Voice != nil {
		return r.runVoice(ctx, tgID, msg.Voice.FileID)
	}

	switch command {
	case "/start":
		reply, err := r.facade.HandleStart(ctx, tgID, msg.From.FirstName, msg.From.UserName)
		if err != nil {
			r.log.Error().Err(err).Msg("start failed")
			reply = r.facade.TR.T("internal_error")
		}
		_, err = r.SendMessage(ctx, tgID, reply)
		return err

	case "/help":
		_, err := r.SendMessage(ctx, tgID, r.facade.HandleHelp())
		return err

	case "/balance":
		reply, err := r.facade.HandleBalance(ctx, tgID)
		if err != nil {
			reply = r.facade.TR.T("internal_error")
		}
		_, err = r.SendMessage(ctx, tgID, reply)
		return err

	case "/history":
		reply, err := r.facade.HandleHistory(ctx, tgID)
		if err != nil {
			reply = r.facade.TR.T("internal_error")
		}
		_, err = r.SendMessage(ctx, tgID, reply)
		return err

	case "/plans":
		text, rows := r.facade.HandlePlans()
		_, err := r.SendButtons(ctx, tgID, text, rows)
		return err

	case "/topup":
		reply, err := r.facade.HandleTopUp(ctx, tgID)
		if err != nil {
			reply = r.facade.TR.T("internal_error")
		}
		_, err = r.SendMessage(ctx, tgID, reply)
		return err

	case "/image", "/img":
		return r.runImage(ctx, tgID, argAfterCommand(text))

	case "/vid", "/video":
		imageRef := r.largestPhotoURL(msg)
		return r.runVideoBegin(ctx, tgID, argAfterCommand(text), imageRef)

	case "/stats":
		if _, ok := r.adminIDs[tgID]; !ok {
			return nil
		}
		reply, err := r.facade.HandleStats(ctx)
		if err != nil {
			reply = r.facade.TR.T("internal_error")
		}
		_, err = r.SendMessage(ctx, tgID, reply)
		return err

	default:
		// A bare photo with caption text also lands here; treat any
		// remaining text as a chat turn.
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return r.runChat(ctx, tgID, text)
	}
}

func argAfterCommand(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
}

// largestPhotoURL resolves the biggest size of an attached photo to a
// provider-consumable file URL, "" when the message has no photo.
func (r *RealBot) largestPhotoURL(msg *tgbotapi.Message) string {
	if len(msg.Photo) == 0 {
		return ""
	}
	best := msg.Photo[len(msg.Photo)-1]
	url, err := r.bot.GetFileDirectURL(best.FileID)
	if err != nil {
		r.log.Warn().Err(err).Msg("resolve photo url failed")
		return ""
	}
	return url
}

// runChat sends a placeholder, runs the turn, then replaces the
// placeholder with the answer.
func (r *RealBot) runChat(ctx context.Context, tgID int64, text string) error {
	noteID, _ := r.SendMessage(ctx, tgID, r.facade.TR.T("thinking"))

	reply, err := r.facade.HandleChatMessage(ctx, tgID, text, usecase.NopProgress)
	if err != nil {
		r.log.Error().Err(err).Msg("chat failed")
		return r.EditMessage(ctx, tgID, noteID, r.facade.TR.T("internal_error"))
	}
	if err := r.EditMessage(ctx, tgID, noteID, reply.Text); err != nil && reply.Text != "" {
		if _, serr := r.SendMessage(ctx, tgID, reply.Text); serr != nil {
			return serr
		}
	}
	return r.sendFiles(ctx, tgID, reply.Files)
}

// runVoice downloads the recording, runs the spoken turn and answers
// in kind: voice for text answers, media or text otherwise.
func (r *RealBot) runVoice(ctx context.Context, tgID int64, fileID string) error {
	audio, err := r.downloadFile(ctx, fileID)
	if err != nil {
		r.log.Error().Err(err).Msg("voice download failed")
		_, err = r.SendMessage(ctx, tgID, r.facade.TR.T("internal_error"))
		return err
	}

	noteID, _ := r.SendMessage(ctx, tgID, r.facade.TR.T("listening"))

	reply, err := r.facade.HandleVoice(ctx, tgID, audio, usecase.NopProgress)
	if err != nil {
		r.log.Error().Err(err).Msg("voice failed")
		return r.EditMessage(ctx, tgID, noteID, r.facade.TR.T("internal_error"))
	}
	if len(reply.Voice) > 0 {
		_ = r.DeleteMessage(ctx, tgID, noteID)
		if err := r.SendVoice(ctx, tgID, reply.Voice); err != nil {
			r.log.Warn().Err(err).Msg("voice reply upload failed, answering with text")
			_, serr := r.SendMessage(ctx, tgID, reply.Text)
			return serr
		}
		return nil
	}
	if reply.Text != "" {
		if err := r.EditMessage(ctx, tgID, noteID, reply.Text); err != nil {
			_, _ = r.SendMessage(ctx, tgID, reply.Text)
		}
	} else {
		_ = r.DeleteMessage(ctx, tgID, noteID)
	}
	return r.sendFiles(ctx, tgID, reply.Files)
}

func (r *RealBot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram file http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (r *RealBot) runImage(ctx context.Context, tgID int64, prompt string) error {
	noteID, _ := r.SendMessage(ctx, tgID, r.facade.TR.T("generating_image"))

	reply, err := r.facade.HandleImage(ctx, tgID, prompt)
	if err != nil {
		r.log.Error().Err(err).Msg("image failed")
		return r.EditMessage(ctx, tgID, noteID, r.facade.TR.T("internal_error"))
	}
	if reply.Text != "" {
		return r.EditMessage(ctx, tgID, noteID, reply.Text)
	}
	_ = r.DeleteMessage(ctx, tgID, noteID)
	return r.sendFiles(ctx, tgID, reply.Files)
}

func (r *RealBot) runVideoBegin(ctx context.Context, tgID int64, prompt, imageRef string) error {
	text, rows, err := r.facade.HandleVideoBegin(ctx, tgID, prompt, imageRef)
	if err != nil {
		r.log.Error().Err(err).Msg("video begin failed")
		_, err = r.SendMessage(ctx, tgID, r.facade.TR.T("internal_error"))
		return err
	}
	if len(rows) == 0 {
		_, err = r.SendMessage(ctx, tgID, text)
		return err
	}
	_, err = r.SendButtons(ctx, tgID, text, rows)
	return err
}

func (r *RealBot) sendFiles(ctx context.Context, tgID int64, files []model.ResultPart) error {
	for _, f := range files {
		if err := r.SendPhoto(ctx, tgID, f.FileName, f.Data, f.Ref); err != nil {
			return err
		}
	}
	return nil
}

// ---- callbacks ----

func (r *RealBot) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}
	defer func() { _, _ = r.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	tgID := query.From.ID
	data := strings.TrimSpace(query.Data)
	metrics.IncBotUpdate("callback")

	if r.rateLimiter != nil {
		if allowed, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(tgID, "cb"), 30, time.Minute); err == nil && !allowed {
			metrics.IncRateLimited()
			_, err := r.SendMessage(ctx, tgID, r.facade.TR.T("rate_limited"))
			return err
		}
	}

	switch {
	case strings.HasPrefix(data, "vid:p:"):
		return r.cbVideoParams(ctx, query, strings.TrimPrefix(data, "vid:p:"))
	case data == "vid:ok":
		return r.cbVideoConfirm(ctx, query)
	case data == "vid:no":
		return r.cbVideoCancel(ctx, query)
	case strings.HasPrefix(data, "plan:"):
		reply, err := r.facade.HandleChoosePlan(ctx, tgID, model.Plan(strings.TrimPrefix(data, "plan:")))
		if err != nil {
			reply = r.facade.TR.T("internal_error")
		}
		_, err = r.SendMessage(ctx, tgID, reply)
		return err
	}
	return errors.New("unknown callback data: " + data)
}

func (r *RealBot) cbVideoParams(ctx context.Context, query *tgbotapi.CallbackQuery, params string) error {
	tgID := query.From.ID
	parts := strings.Split(params, ":")
	if len(parts) != 2 {
		return errors.New("malformed video params: " + params)
	}
	duration, err := strconv.Atoi(parts[1])
	if err != nil {
		return err
	}

	text, rows, err := r.facade.HandleVideoSelect(ctx, tgID, model.VideoQuality(parts[0]), duration)
	if err != nil {
		r.log.Error().Err(err).Msg("video select failed")
		_, err = r.SendMessage(ctx, tgID, r.facade.TR.T("internal_error"))
		return err
	}

	// Replace the picker message with the confirmation prompt.
	if query.Message != nil {
		_ = r.DeleteMessage(ctx, tgID, query.Message.MessageID)
	}
	if len(rows) == 0 {
		_, err = r.SendMessage(ctx, tgID, text)
		return err
	}
	_, err = r.SendButtons(ctx, tgID, text, rows)
	return err
}

func (r *RealBot) cbVideoConfirm(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	tgID := query.From.ID
	if query.Message != nil {
		_ = r.DeleteMessage(ctx, tgID, query.Message.MessageID)
	}
	noteID, _ := r.SendMessage(ctx, tgID, r.facade.TR.T("thinking"))

	onProgress := func(status string, attempt, maxAttempts int) {
		_ = r.EditMessage(ctx, tgID, noteID, r.facade.TR.T("video_progress", status, attempt, maxAttempts))
	}

	reply, err := r.facade.HandleVideoConfirm(ctx, tgID, onProgress)
	if err != nil {
		r.log.Error().Err(err).Msg("video confirm failed")
		return r.EditMessage(ctx, tgID, noteID, r.facade.TR.T("internal_error"))
	}
	if err := r.EditMessage(ctx, tgID, noteID, reply.Text); err != nil {
		_, _ = r.SendMessage(ctx, tgID, reply.Text)
	}
	if len(reply.Video) > 0 {
		return r.SendVideo(ctx, tgID, reply.FileName, reply.Video)
	}
	if reply.VideoURL != "" {
		_, err := r.SendMessage(ctx, tgID, reply.VideoURL)
		return err
	}
	return nil
}

func (r *RealBot) cbVideoCancel(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	tgID := query.From.ID
	if query.Message != nil {
		_ = r.DeleteMessage(ctx, tgID, query.Message.MessageID)
	}
	reply, err := r.facade.HandleVideoCancel(ctx, tgID)
	if err != nil {
		reply = r.facade.TR.T("internal_error")
	}
	_, err = r.SendMessage(ctx, tgID, reply)
	return err
}
