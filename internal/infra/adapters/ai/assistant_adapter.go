// File: internal/infra/adapters/ai/assistant_adapter.go
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"promind-bot/internal/config"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AssistantAdapter = (*AssistantAdapter)(nil)

// AssistantAdapter implements adapter.AssistantAdapter against an
// OpenAI-compatible Assistants API (threads, messages, runs, files).
type AssistantAdapter struct {
	apiKey      string
	base        string // e.g., https://api.openai.com/v1
	assistantID string
	imageModel  string

	transcribeModel string
	speechModel     string
	speechVoice     string

	client  *http.Client
	encoder *tiktoken.Tiktoken
	log     zerolog.Logger
}

func NewAssistantAdapter(cfg config.AssistantConfig, logger *zerolog.Logger) (*AssistantAdapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("assistant api key empty")
	}
	if cfg.AssistantID == "" {
		return nil, errors.New("assistant id empty")
	}
	enc, err := tiktoken.EncodingForModel(cfg.TokenModel)
	if err != nil {
		// Token counting is best effort; fall back to a common encoding.
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	}
	return &AssistantAdapter{
		apiKey:          cfg.APIKey,
		base:            cfg.BaseURL,
		assistantID:     cfg.AssistantID,
		imageModel:      cfg.ImageModel,
		transcribeModel: cfg.TranscribeModel,
		speechModel:     cfg.SpeechModel,
		speechVoice:     cfg.SpeechVoice,
		client:          &http.Client{Timeout: 60 * time.Second},
		encoder:         enc,
		log:             logger.With().Str("component", "assistant_adapter").Logger(),
	}, nil
}

func (a *AssistantAdapter) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("assistant http %d: %s", resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *AssistantAdapter) CreateSession(ctx context.Context) (string, error) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := a.do(ctx, http.MethodPost, "/threads", struct{}{}, &payload); err != nil {
		return "", err
	}
	return payload.ID, nil
}

func (a *AssistantAdapter) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	body := struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{Role: role, Content: content}
	return a.do(ctx, http.MethodPost, "/threads/"+sessionID+"/messages", body, nil)
}

func (a *AssistantAdapter) StartRun(ctx context.Context, sessionID string) (string, error) {
	body := struct {
		AssistantID string `json:"assistant_id"`
	}{AssistantID: a.assistantID}
	var payload struct {
		ID string `json:"id"`
	}
	if err := a.do(ctx, http.MethodPost, "/threads/"+sessionID+"/runs", body, &payload); err != nil {
		return "", err
	}
	return payload.ID, nil
}

// normalizeRunStatus maps the provider's run-status vocabulary onto the
// canonical job states. Unknown statuses are treated as still
// processing so one odd poll never kills a job.
func (a *AssistantAdapter) normalizeRunStatus(raw string) model.JobStatus {
	switch raw {
	case "queued":
		return model.StatusQueued
	case "in_progress":
		return model.StatusProcessing
	case "completed":
		return model.StatusCompleted
	case "failed", "expired", "cancelling", "cancelled", "incomplete", "requires_action":
		return model.StatusFailed
	default:
		a.log.Warn().Str("raw_status", raw).Msg("unknown run status, treating as processing")
		return model.StatusProcessing
	}
}

func (a *AssistantAdapter) RunStatus(ctx context.Context, sessionID, runID string) (model.StatusProbe, error) {
	var payload struct {
		Status    string `json:"status"`
		LastError *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"last_error"`
	}
	if err := a.do(ctx, http.MethodGet, "/threads/"+sessionID+"/runs/"+runID, nil, &payload); err != nil {
		return model.StatusProbe{}, err
	}
	probe := model.StatusProbe{
		Status:   a.normalizeRunStatus(payload.Status),
		Raw:      payload.Status,
		Progress: -1,
	}
	if payload.LastError != nil {
		probe.Reason = payload.LastError.Message
	}
	return probe, nil
}

func (a *AssistantAdapter) ActiveRun(ctx context.Context, sessionID string) (string, error) {
	var payload struct {
		Data []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := a.do(ctx, http.MethodGet, "/threads/"+sessionID+"/runs?limit=1&order=desc", nil, &payload); err != nil {
		return "", err
	}
	for _, run := range payload.Data {
		switch run.Status {
		case "queued", "in_progress", "cancelling", "requires_action":
			return run.ID, nil
		}
	}
	return "", nil
}

type messageContent struct {
	Type string `json:"type"`
	Text *struct {
		Value string `json:"value"`
	} `json:"text"`
	ImageFile *struct {
		FileID string `json:"file_id"`
	} `json:"image_file"`
}

func (a *AssistantAdapter) ListResult(ctx context.Context, sessionID string) ([]model.ResultPart, error) {
	var payload struct {
		Data []struct {
			Role        string           `json:"role"`
			Content     []messageContent `json:"content"`
			Attachments []struct {
				FileID string `json:"file_id"`
			} `json:"attachments"`
		} `json:"data"`
	}
	if err := a.do(ctx, http.MethodGet, "/threads/"+sessionID+"/messages?limit=1&order=desc", nil, &payload); err != nil {
		return nil, err
	}
	if len(payload.Data) == 0 {
		return nil, errors.New("no messages on session")
	}
	msg := payload.Data[0]
	if msg.Role != "assistant" {
		return nil, errors.New("latest message is not from assistant")
	}

	var parts []model.ResultPart
	for _, c := range msg.Content {
		switch c.Type {
		case "text":
			if c.Text != nil && c.Text.Value != "" {
				parts = append(parts, model.ResultPart{Text: c.Text.Value})
			}
		case "image_file":
			if c.ImageFile != nil {
				parts = append(parts, model.ResultPart{Ref: c.ImageFile.FileID})
			}
		}
	}
	for _, att := range msg.Attachments {
		parts = append(parts, model.ResultPart{Ref: att.FileID})
	}
	return parts, nil
}

func (a *AssistantAdapter) FetchFile(ctx context.Context, fileID string) ([]byte, string, error) {
	var meta struct {
		Filename string `json:"filename"`
	}
	if err := a.do(ctx, http.MethodGet, "/files/"+fileID, nil, &meta); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+"/files/"+fileID+"/content", nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("assistant file http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	name := meta.Filename
	if name == "" {
		name = fileID
	}
	return data, name, nil
}

func (a *AssistantAdapter) GenerateImage(ctx context.Context, prompt string) (*model.ResultPart, error) {
	body := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
		N      int    `json:"n"`
	}{Model: a.imageModel, Prompt: prompt, N: 1}

	var payload struct {
		Data []struct {
			B64JSON []byte `json:"b64_json"` // decoded by encoding/json from base64
			URL     string `json:"url"`
		} `json:"data"`
	}
	if err := a.do(ctx, http.MethodPost, "/images/generations", body, &payload); err != nil {
		return nil, err
	}
	if len(payload.Data) == 0 {
		return nil, errors.New("no image in response")
	}
	img := payload.Data[0]
	part := &model.ResultPart{FileName: "image.png"}
	if len(img.B64JSON) > 0 {
		part.Data = img.B64JSON
	} else if img.URL != "" {
		part.Ref = img.URL
	} else {
		return nil, errors.New("image response had neither bytes nor url")
	}
	return part, nil
}

func (a *AssistantAdapter) Transcribe(ctx context.Context, audio []byte, fileName string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return "", err
	}
	if err := mw.WriteField("model", a.transcribeModel); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/audio/transcriptions", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("assistant transcription http %d: %s", resp.StatusCode, msg)
	}
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	return payload.Text, nil
}

// Synthesize cannot go through do: the speech endpoint answers with raw
// audio bytes, not JSON.
func (a *AssistantAdapter) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body := struct {
		Model  string `json:"model"`
		Voice  string `json:"voice"`
		Input  string `json:"input"`
		Format string `json:"response_format"`
	}{Model: a.speechModel, Voice: a.speechVoice, Input: text, Format: "opus"}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/audio/speech", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("assistant speech http %d: %s", resp.StatusCode, msg)
	}
	return io.ReadAll(resp.Body)
}

func (a *AssistantAdapter) CountTokens(text string) int {
	if a.encoder == nil {
		return 0
	}
	return len(a.encoder.Encode(text, nil, nil))
}

func (a *AssistantAdapter) PollPolicy() adapter.PollPolicy {
	return adapter.PollPolicy{Interval: 3, MaxAttempts: 40}
}
