// File: internal/infra/adapters/video/runway_adapter.go
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"promind-bot/internal/config"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.VideoGenerator = (*RunwayAdapter)(nil)

// RunwayAdapter drives the pro-tier video backend. Plain bearer auth,
// task-based API with a richer status vocabulary than the lite tier.
type RunwayAdapter struct {
	apiKey string
	base   string
	model  string
	client *http.Client
	log    zerolog.Logger
}

func NewRunwayAdapter(cfg config.RunwayConfig, logger *zerolog.Logger) (*RunwayAdapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("runway api key empty")
	}
	return &RunwayAdapter{
		apiKey: cfg.APIKey,
		base:   cfg.BaseURL,
		model:  cfg.Model,
		client: &http.Client{Timeout: 60 * time.Second},
		log:    logger.With().Str("component", "runway_adapter").Logger(),
	}, nil
}

func (r *RunwayAdapter) Name() model.ProviderName { return model.ProviderVideoB }

func (r *RunwayAdapter) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("X-Runway-Version", "2024-11-06")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("runway http %d: %s", resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (r *RunwayAdapter) Submit(ctx context.Context, req adapter.VideoRequest) (string, error) {
	body := map[string]any{
		"model":      r.model,
		"promptText": req.Prompt,
		"duration":   req.Duration,
	}
	if req.ImageRef != "" {
		body["promptImage"] = req.ImageRef
	}
	var payload struct {
		ID string `json:"id"`
	}
	if err := r.do(ctx, http.MethodPost, "/v1/image_to_video", body, &payload); err != nil {
		return "", err
	}
	if payload.ID == "" {
		return "", errors.New("runway submit returned no task id")
	}
	return payload.ID, nil
}

// normalizeStatus folds the task vocabulary onto canonical states.
// THROTTLED means the task is parked in the provider's queue.
func (r *RunwayAdapter) normalizeStatus(raw string) model.JobStatus {
	switch raw {
	case "PENDING", "THROTTLED":
		return model.StatusQueued
	case "RUNNING":
		return model.StatusProcessing
	case "SUCCEEDED":
		return model.StatusCompleted
	case "FAILED", "CANCELLED":
		return model.StatusFailed
	default:
		r.log.Warn().Str("raw_status", raw).Msg("unknown runway status, treating as processing")
		return model.StatusProcessing
	}
}

func (r *RunwayAdapter) Status(ctx context.Context, jobID string) (model.StatusProbe, error) {
	var payload struct {
		Status   string   `json:"status"`
		Progress *float64 `json:"progress"` // 0..1
		Output   []string `json:"output"`
		Failure  string   `json:"failure"`
	}
	if err := r.do(ctx, http.MethodGet, "/v1/tasks/"+jobID, nil, &payload); err != nil {
		return model.StatusProbe{}, err
	}
	probe := model.StatusProbe{
		Status:   r.normalizeStatus(payload.Status),
		Raw:      payload.Status,
		Progress: -1,
		Reason:   payload.Failure,
	}
	if payload.Progress != nil {
		probe.Progress = int(*payload.Progress * 100)
	}
	if len(payload.Output) > 0 {
		probe.ResultRef = payload.Output[0]
	}
	return probe, nil
}

func (r *RunwayAdapter) Download(ctx context.Context, resultURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("runway download http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (r *RunwayAdapter) PollPolicy() adapter.PollPolicy {
	return adapter.PollPolicy{Interval: 10, MaxAttempts: 30}
}
