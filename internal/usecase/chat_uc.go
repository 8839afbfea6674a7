// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/adapter"
	"promind-bot/internal/infra/metrics"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

// ChatReply is what one chat turn produced: the assistant text plus
// any generated or attached files.
type ChatReply struct {
	Text  string
	Files []model.ResultPart
	// Charged reports whether the turn was paid for. False means the
	// balance was insufficient and nothing was submitted.
	Charged bool
}

// VoiceReply is one spoken turn: the transcript that was understood,
// the assistant's answer and, for text-only answers, that answer
// rendered as speech.
type VoiceReply struct {
	Transcript string
	Text       string
	Files      []model.ResultPart
	Audio      []byte
	Charged    bool
}

type ChatUseCase interface {
	// SendMessage debits the flat chat price, then drives the
	// orchestrator through a full assistant turn. When the assistant
	// answers with an /imagine directive the image is generated and
	// attached in the same turn.
	SendMessage(ctx context.Context, userID, text string, onProgress ProgressFunc) (*ChatReply, error)

	// Voice transcribes a recording and runs it as a chat turn. A
	// transcript opening with "imagine" draws an image instead; a
	// text-only answer comes back spoken as well.
	Voice(ctx context.Context, userID string, audio []byte, onProgress ProgressFunc) (*VoiceReply, error)
}

type chatUC struct {
	orch    Orchestrator
	ledger  LedgerUseCase
	counter adapter.AssistantAdapter
	devMode bool
	log     *zerolog.Logger
}

func NewChatUseCase(orch Orchestrator, ledger LedgerUseCase, assistant adapter.AssistantAdapter, devMode bool, logger *zerolog.Logger) *chatUC {
	l := logger.With().Str("component", "ChatUC").Logger()
	return &chatUC{orch: orch, ledger: ledger, counter: assistant, devMode: devMode, log: &l}
}

func (c *chatUC) SendMessage(ctx context.Context, userID, text string, onProgress ProgressFunc) (*ChatReply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyPrompt
	}

	metrics.ObservePromptTokens(c.counter.CountTokens(text))

	// Debit before any work; a false return means no job is submitted
	// and no transaction is appended.
	if !c.devMode {
		ok, err := c.ledger.Debit(ctx, userID, model.CostChat, "chat message")
		if err != nil {
			return nil, err
		}
		if !ok {
			return &ChatReply{Charged: false}, nil
		}
	}

	res, err := c.orch.Chat(ctx, userID, text, onProgress)
	if err != nil {
		return nil, err
	}

	reply := &ChatReply{Text: res.Text(), Files: res.Files(), Charged: true}

	// The assistant can itself request an image by replying with an
	// /imagine directive; execute it and attach the image.
	if prompt, ok := strings.CutPrefix(reply.Text, "/imagine"); ok {
		prompt = strings.TrimSpace(prompt)
		part, err := c.orch.GenerateImage(ctx, userID, prompt, NopProgress)
		if err != nil {
			c.log.Error().Err(err).Str("user_id", userID).Msg("assistant-directed image generation failed")
			return reply, nil
		}
		reply.Text = ""
		reply.Files = append(reply.Files, *part)
	}
	return reply, nil
}

func (c *chatUC) Voice(ctx context.Context, userID string, audio []byte, onProgress ProgressFunc) (*VoiceReply, error) {
	if len(audio) == 0 {
		return nil, domain.ErrEmptyPrompt
	}
	transcript, err := c.counter.Transcribe(ctx, audio, "voice.ogg")
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, domain.ErrEmptyPrompt
	}

	// A spoken "imagine ..." is a drawing request, not a chat turn.
	if strings.HasPrefix(strings.ToLower(transcript), "imagine ") {
		if !c.devMode {
			ok, err := c.ledger.Debit(ctx, userID, model.CostImage, "voice image")
			if err != nil {
				return nil, err
			}
			if !ok {
				return &VoiceReply{Transcript: transcript}, nil
			}
		}
		part, err := c.orch.GenerateImage(ctx, userID, transcript, onProgress)
		if err != nil {
			return nil, err
		}
		return &VoiceReply{Transcript: transcript, Files: []model.ResultPart{*part}, Charged: true}, nil
	}

	reply, err := c.SendMessage(ctx, userID, transcript, onProgress)
	if err != nil {
		return nil, err
	}
	out := &VoiceReply{Transcript: transcript, Text: reply.Text, Files: reply.Files, Charged: reply.Charged}
	if !out.Charged {
		return out, nil
	}
	// Speak text-only answers back; an image answer stays visual.
	if out.Text != "" && len(out.Files) == 0 {
		speech, err := c.counter.Synthesize(ctx, out.Text)
		if err != nil {
			c.log.Warn().Err(err).Str("user_id", userID).Msg("voice synthesis failed, answering with text")
			return out, nil
		}
		out.Audio = speech
	}
	return out, nil
}
