package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/adapter"
	"promind-bot/internal/infra/i18n"
	"promind-bot/internal/usecase"
)

// BotFacade composes usecases into high-level bot commands.
// Methods return user-facing strings (already translated) so the
// Telegram adapter just renders them.
type BotFacade struct {
	UserUC    usecase.UserUseCase
	LedgerUC  usecase.LedgerUseCase
	ChatUC    usecase.ChatUseCase
	ImageUC   usecase.ImageUseCase
	VideoUC   usecase.VideoUseCase
	PaymentUC usecase.PaymentUseCase
	StatsUC   usecase.StatsUseCase
	TR        *i18n.Translator
}

func NewBotFacade(
	userUC usecase.UserUseCase,
	ledgerUC usecase.LedgerUseCase,
	chatUC usecase.ChatUseCase,
	imageUC usecase.ImageUseCase,
	videoUC usecase.VideoUseCase,
	paymentUC usecase.PaymentUseCase,
	statsUC usecase.StatsUseCase,
	tr *i18n.Translator,
) *BotFacade {
	return &BotFacade{
		UserUC:    userUC,
		LedgerUC:  ledgerUC,
		ChatUC:    chatUC,
		ImageUC:   imageUC,
		VideoUC:   videoUC,
		PaymentUC: paymentUC,
		StatsUC:   statsUC,
		TR:        tr,
	}
}

// MediaReply is a message plus optional attachments for the adapter to
// render (photo/video/document depending on what is set).
type MediaReply struct {
	Text     string
	Files    []model.ResultPart
	Video    []byte
	VideoURL string
	FileName string
	Voice    []byte
}

// HandleStart registers or fetches the user and returns a welcome string.
func (b *BotFacade) HandleStart(ctx context.Context, tgID int64, firstName, username string) (string, error) {
	u, err := b.UserUC.RegisterOrFetch(ctx, tgID, firstName, username)
	if err != nil {
		return "", fmt.Errorf("register/fetch user: %w", err)
	}
	name := u.FirstName
	if name == "" {
		name = u.Username
	}
	return b.TR.T("welcome", name, model.InitialGrant), nil
}

func (b *BotFacade) HandleHelp() string {
	return b.TR.T("help")
}

// resolveUser maps a Telegram id to the internal profile.
func (b *BotFacade) resolveUser(ctx context.Context, tgID int64) (*model.UserProfile, error) {
	return b.UserUC.GetByTelegramID(ctx, tgID)
}

// HandleBalance reports balance plus plan status.
func (b *BotFacade) HandleBalance(ctx context.Context, tgID int64) (string, error) {
	user, err := b.resolveUser(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return b.TR.T("unknown_user"), nil
		}
		return "", err
	}
	acct, err := b.LedgerUC.Account(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if acct.HasActivePlan(time.Now()) && acct.PlanExpiresAt != nil {
		return b.TR.T("balance_with_plan", acct.Balance, string(acct.Plan), acct.PlanExpiresAt.Format("2006-01-02")), nil
	}
	return b.TR.T("balance", acct.Balance), nil
}

// HandleHistory lists the most recent ledger entries.
func (b *BotFacade) HandleHistory(ctx context.Context, tgID int64) (string, error) {
	user, err := b.resolveUser(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return b.TR.T("unknown_user"), nil
		}
		return "", err
	}
	txs, err := b.LedgerUC.Transactions(ctx, user.ID, 10)
	if err != nil {
		return "", err
	}
	if len(txs) == 0 {
		return b.TR.T("history_empty"), nil
	}
	var sb strings.Builder
	sb.WriteString(b.TR.T("history_header"))
	for _, t := range txs {
		sign := "+"
		if t.Direction == model.TxDebit {
			sign = "-"
		}
		sb.WriteString(fmt.Sprintf("\n%s  %s%d  %s", t.CreatedAt.Format("01-02 15:04"), sign, t.Amount, t.Comment))
	}
	return sb.String(), nil
}

// insufficientMessage picks the right upsell: an active plan means the
// user just needs tokens, no plan means we pitch a subscription.
func (b *BotFacade) insufficientMessage(ctx context.Context, userID string, cost int) string {
	hasPlan, err := b.LedgerUC.HasActivePlan(ctx, userID)
	if err == nil && hasPlan {
		return b.TR.T("insufficient_plan", cost)
	}
	return b.TR.T("insufficient_no_plan", cost)
}

// HandleChatMessage runs one paid assistant turn.
func (b *BotFacade) HandleChatMessage(ctx context.Context, tgID int64, text string, onProgress usecase.ProgressFunc) (*MediaReply, error) {
	user, err := b.resolveUser(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &MediaReply{Text: b.TR.T("unknown_user")}, nil
		}
		return nil, err
	}
	reply, err := b.ChatUC.SendMessage(ctx, user.ID, text, onProgress)
	if err != nil {
		if errors.Is(err, domain.ErrJobTimeout) {
			return &MediaReply{Text: b.TR.T("generation_timeout")}, nil
		}
		return nil, err
	}
	if !reply.Charged {
		return &MediaReply{Text: b.insufficientMessage(ctx, user.ID, model.CostChat)}, nil
	}
	return &MediaReply{Text: reply.Text, Files: reply.Files}, nil
}

// HandleVoice transcribes a voice message, runs it as a chat turn and
// answers in kind: a spoken reply for text answers, media otherwise.
func (b *BotFacade) HandleVoice(ctx context.Context, tgID int64, audio []byte, onProgress usecase.ProgressFunc) (*MediaReply, error) {
	user, err := b.resolveUser(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &MediaReply{Text: b.TR.T("unknown_user")}, nil
		}
		return nil, err
	}
	reply, err := b.ChatUC.Voice(ctx, user.ID, audio, onProgress)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyPrompt):
			return &MediaReply{Text: b.TR.T("voice_unclear")}, nil
		case errors.Is(err, domain.ErrJobTimeout):
			return &MediaReply{Text: b.TR.T("generation_timeout")}, nil
		}
		return nil, err
	}
	if !reply.Charged {
		cost := model.CostChat
		if strings.HasPrefix(strings.ToLower(reply.Transcript), "imagine ") {
			cost = model.CostImage
		}
		return &MediaReply{Text: b.insufficientMessage(ctx, user.ID, cost)}, nil
	}
	return &MediaReply{Text: reply.Text, Files: reply.Files, Voice: reply.Audio}, nil
}

// HandleImage runs one paid image generation.
func (b *BotFacade) HandleImage(ctx context.Context, tgID int64, prompt string) (*MediaReply, error) {
	if strings.TrimSpace(prompt) == "" {
		return &MediaReply{Text: b.TR.T("image_usage")}, nil
	}
	user, err := b.resolveUser(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &MediaReply{Text: b.TR.T("unknown_user")}, nil
		}
		return nil, err
	}
	reply, err := b.ImageUC.Generate(ctx, user.ID, prompt)
	if err != nil {
		return nil, err
	}
	if !reply.Charged {
		return &MediaReply{Text: b.insufficientMessage(ctx, user.ID, model.CostImage)}, nil
	}
	return &MediaReply{Files: []model.ResultPart{*reply.Part}}, nil
}

// HandleVideoBegin starts (or replaces) the interactive video request
// and returns the parameter picker.
func (b *BotFacade) HandleVideoBegin(ctx context.Context, tgID int64, prompt, imageRef string) (string, [][]adapter.InlineButton, error) {
	if strings.TrimSpace(prompt) == "" {
		return b.TR.T("video_usage"), nil, nil
	}
	user, err := b.resolveUser(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return b.TR.T("unknown_user"), nil, nil
		}
		return "", nil, err
	}
	req, err := b.VideoUC.Begin(ctx, user.ID, strings.TrimSpace(prompt), imageRef)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyPrompt) {
			return b.TR.T("video_usage"), nil, nil
		}
		return "", nil, err
	}
	// The "/vid 10 pro <text>" shortcut skips the picker entirely.
	if req.Stage == model.StageAwaitingConfirmation {
		return b.TR.T("video_confirm", req.Duration, string(req.Quality), req.Cost()), videoConfirmButtons(), nil
	}
	return b.TR.T("video_pick_params"), VideoParamButtons(), nil
}

// VideoParamButtons builds one row per quality with the allowed
// durations and their prices.
func VideoParamButtons() [][]adapter.InlineButton {
	qualities := []model.VideoQuality{model.QualityLite, model.QualityPro}
	rows := make([][]adapter.InlineButton, 0, len(qualities)+1)
	for _, q := range qualities {
		row := make([]adapter.InlineButton, 0, len(model.VideoDurations))
		for _, d := range model.VideoDurations {
			cost := model.VideoBaseCost(q) * d / model.BaseVideoDuration
			row = append(row, adapter.InlineButton{
				Text: fmt.Sprintf("%s %ds (%d)", q, d, cost),
				Data: fmt.Sprintf("vid:p:%s:%d", q, d),
			})
		}
		rows = append(rows, row)
	}
	rows = append(rows, []adapter.InlineButton{{Text: "✖ Cancel", Data: "vid:no"}})
	return rows
}

// HandleVideoSelect records quality+duration and returns the confirm prompt.
func (b *BotFacade) HandleVideoSelect(ctx context.Context, tgID int64, quality model.VideoQuality, duration int) (string, [][]adapter.InlineButton, error) {
	user, err := b.resolveUser(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return b.TR.T("unknown_user"), nil, nil
		}
		return "", nil, err
	}
	req, err := b.VideoUC.SelectParameters(ctx, user.ID, quality, duration)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoPendingRequest):
			return b.TR.T("video_no_pending"), nil, nil
		case errors.Is(err, domain.ErrInvalidDuration), errors.Is(err, domain.ErrInvalidQuality):
			return b.TR.T("video_pick_params"), VideoParamButtons(), nil
		}
		return "", nil, err
	}
	return b.TR.T("video_confirm", req.Duration, string(req.Quality), req.Cost()), videoConfirmButtons(), nil
}

func videoConfirmButtons() [][]adapter.InlineButton {
	return [][]adapter.InlineButton{{
		{Text: "✔ Generate", Data: "vid:ok"},
		{Text: "✖ Cancel", Data: "vid:no"},
	}}
}

// HandleVideoConfirm charges and runs the confirmed request.
func (b *BotFacade) HandleVideoConfirm(ctx context.Context, tgID int64, onProgress usecase.ProgressFunc) (*MediaReply, error) {
	user, err := b.resolveUser(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &MediaReply{Text: b.TR.T("unknown_user")}, nil
		}
		return nil, err
	}
	outcome, err := b.VideoUC.Confirm(ctx, user.ID, onProgress)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoPendingRequest):
			return &MediaReply{Text: b.TR.T("video_no_pending")}, nil
		case errors.Is(err, domain.ErrRequestNotConfirmed):
			return &MediaReply{Text: b.TR.T("video_not_confirmed")}, nil
		case errors.Is(err, domain.ErrProviderUnavailable):
			return &MediaReply{Text: b.TR.T("video_unavailable")}, nil
		}
		return nil, err
	}
	if !outcome.Charged {
		pending, perr := b.VideoUC.Pending(ctx, user.ID)
		cost := 0
		if perr == nil {
			cost = pending.Cost()
		}
		return &MediaReply{Text: b.insufficientMessage(ctx, user.ID, cost)}, nil
	}
	if !outcome.Success {
		return &MediaReply{Text: b.TR.T("generation_failed", outcome.Error)}, nil
	}
	return &MediaReply{
		Text:     b.TR.T("video_done"),
		Video:    outcome.Data,
		VideoURL: outcome.VideoURL,
		FileName: outcome.FileName,
	}, nil
}

// HandleVideoCancel drops the pending request.
func (b *BotFacade) HandleVideoCancel(ctx context.Context, tgID int64) (string, error) {
	user, err := b.resolveUser(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return b.TR.T("unknown_user"), nil
		}
		return "", err
	}
	if err := b.VideoUC.Cancel(ctx, user.ID); err != nil {
		return "", err
	}
	return b.TR.T("video_cancelled"), nil
}

// HandlePlans lists plans with selection buttons.
func (b *BotFacade) HandlePlans() (string, [][]adapter.InlineButton) {
	rows := [][]adapter.InlineButton{
		{{Text: "PLUS", Data: "plan:PLUS"}, {Text: "PRO", Data: "plan:PRO"}},
	}
	return b.TR.T("plans_intro", model.PlanGrant(model.PlanPlus), model.PlanGrant(model.PlanPro)), rows
}

// HandleChoosePlan marks the account as awaiting payment for a plan.
func (b *BotFacade) HandleChoosePlan(ctx context.Context, tgID int64, plan model.Plan) (string, error) {
	user, err := b.resolveUser(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return b.TR.T("unknown_user"), nil
		}
		return "", err
	}
	var pending model.PendingPayment
	switch plan {
	case model.PlanPlus:
		pending = model.PendingPlus
	case model.PlanPro:
		pending = model.PendingPro
	default:
		return "", domain.ErrInvalidArgument
	}
	if err := b.PaymentUC.SetPending(ctx, user.ID, pending); err != nil {
		return "", err
	}
	return b.TR.T("plan_pending", string(plan)), nil
}

// HandleTopUp marks the account as awaiting a top-up payment.
func (b *BotFacade) HandleTopUp(ctx context.Context, tgID int64) (string, error) {
	user, err := b.resolveUser(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return b.TR.T("unknown_user"), nil
		}
		return "", err
	}
	if err := b.PaymentUC.SetPending(ctx, user.ID, model.PendingTopUp); err != nil {
		return "", err
	}
	return b.TR.T("topup_pending"), nil
}

// ApplyOrder resolves an external payment order against the pending
// purchase. Idempotent per order id.
func (b *BotFacade) ApplyOrder(ctx context.Context, tgID int64, orderID string, topUpTokens int) (string, error) {
	user, err := b.resolveUser(ctx, tgID)
	if err != nil {
		return "", err
	}
	if err := b.PaymentUC.ApplyOrder(ctx, user.ID, orderID, topUpTokens); err != nil {
		return "", err
	}
	acct, err := b.LedgerUC.Account(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if acct.HasActivePlan(time.Now()) && acct.PlanExpiresAt != nil {
		return b.TR.T("plan_activated", string(acct.Plan), acct.PlanExpiresAt.Format("2006-01-02")), nil
	}
	return b.TR.T("balance", acct.Balance), nil
}

// HandleStats builds the admin-facing stats string.
func (b *BotFacade) HandleStats(ctx context.Context) (string, error) {
	stats, err := b.StatsUC.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("📊 Stats:\n👥 Users: %d\n🎫 Tokens outstanding: %d\n🧾 Transactions: %d",
		stats.Users, stats.TokensOutstanding, stats.Transactions), nil
}
