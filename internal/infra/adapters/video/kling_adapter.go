// File: internal/infra/adapters/video/kling_adapter.go
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"promind-bot/internal/config"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.VideoGenerator = (*KlingAdapter)(nil)

// KlingAdapter drives the lite-tier video backend. Auth is a short-lived
// HS256 JWT minted per request from an access/secret key pair.
type KlingAdapter struct {
	accessKey string
	secretKey []byte
	base      string
	model     string
	client    *http.Client
	now       func() time.Time
	log       zerolog.Logger
}

func NewKlingAdapter(cfg config.KlingConfig, logger *zerolog.Logger) (*KlingAdapter, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("kling access/secret keys empty")
	}
	return &KlingAdapter{
		accessKey: cfg.AccessKey,
		secretKey: []byte(cfg.SecretKey),
		base:      cfg.BaseURL,
		model:     cfg.Model,
		client:    &http.Client{Timeout: 60 * time.Second},
		now:       time.Now,
		log:       logger.With().Str("component", "kling_adapter").Logger(),
	}, nil
}

func (k *KlingAdapter) Name() model.ProviderName { return model.ProviderVideoA }

// authToken mints the per-request JWT: issuer is the access key,
// valid for 30 minutes, not-before skewed 5 seconds into the past.
func (k *KlingAdapter) authToken() (string, error) {
	now := k.now().Unix()
	claims := jwt.MapClaims{
		"iss": k.accessKey,
		"exp": now + 1800,
		"nbf": now - 5,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["typ"] = "JWT"
	return tok.SignedString(k.secretKey)
}

func (k *KlingAdapter) do(ctx context.Context, method, path string, body any, out any) error {
	token, err := k.authToken()
	if err != nil {
		return fmt.Errorf("sign auth token: %w", err)
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, k.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := k.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("kling http %d: %s", resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (k *KlingAdapter) Submit(ctx context.Context, req adapter.VideoRequest) (string, error) {
	body := map[string]any{
		"model":        k.model,
		"prompt":       req.Prompt,
		"duration":     strconv.Itoa(req.Duration),
		"aspect_ratio": "1:1",
	}
	if req.ImageRef != "" {
		body["image"] = req.ImageRef
	}
	var payload struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := k.do(ctx, http.MethodPost, "/v1/videos/generations", body, &payload); err != nil {
		return "", err
	}
	if payload.ID == "" {
		return "", errors.New("kling submit returned no job id")
	}
	return payload.ID, nil
}

// normalizeStatus maps the provider vocabulary onto canonical states.
// Unknown statuses count as still processing.
func (k *KlingAdapter) normalizeStatus(raw string) model.JobStatus {
	switch raw {
	case "submitted":
		return model.StatusQueued
	case "processing":
		return model.StatusProcessing
	case "succeed", "completed":
		return model.StatusCompleted
	case "failed":
		return model.StatusFailed
	default:
		k.log.Warn().Str("raw_status", raw).Msg("unknown kling status, treating as processing")
		return model.StatusProcessing
	}
}

func (k *KlingAdapter) Status(ctx context.Context, jobID string) (model.StatusProbe, error) {
	var payload struct {
		Status   string `json:"status"`
		Progress *int   `json:"progress"`
		VideoURL string `json:"video_url"`
		Message  string `json:"message"`
	}
	if err := k.do(ctx, http.MethodGet, "/v1/videos/"+jobID, nil, &payload); err != nil {
		return model.StatusProbe{}, err
	}
	probe := model.StatusProbe{
		Status:    k.normalizeStatus(payload.Status),
		Raw:       payload.Status,
		Progress:  -1,
		ResultRef: payload.VideoURL,
		Reason:    payload.Message,
	}
	if payload.Progress != nil {
		probe.Progress = *payload.Progress
	}
	return probe, nil
}

func (k *KlingAdapter) Download(ctx context.Context, resultURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("kling download http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (k *KlingAdapter) PollPolicy() adapter.PollPolicy {
	return adapter.PollPolicy{Interval: 5, MaxAttempts: 60}
}
