// File: internal/usecase/orchestrator_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/adapter"
	"promind-bot/internal/domain/ports/repository"
	"promind-bot/internal/infra/metrics"
)

// ProgressFunc receives one progress event per poll: the canonical
// status text ("queued", "processing (42%)"), the attempt number and
// the attempt budget. Callers decide how to surface it.
type ProgressFunc func(status string, attempt, maxAttempts int)

// NopProgress discards progress events.
func NopProgress(string, int, int) {}

// SubmitPayload carries the kind-specific request data.
type SubmitPayload struct {
	Text  string
	Video *model.PendingVideoRequest
}

// JobHandle is a submitted job plus the provider-bound closures needed
// to poll it and to extract its result. Handles are in-memory only and
// die with the process.
type JobHandle struct {
	Job    *model.GenerationJob
	policy adapter.PollPolicy
	probe  func(ctx context.Context) (model.StatusProbe, error)
	// collect resolves the final result once the job completed,
	// including any secondary fetches (attached files, video download).
	collect func(ctx context.Context) (*model.GenerationResult, error)
}

// Compile-time check
var _ Orchestrator = (*orchestrator)(nil)

// Orchestrator drives provider clients through submit -> poll ->
// terminal, normalizing provider status vocabularies into the
// canonical five-state model and serializing work per user.
type Orchestrator interface {
	Submit(ctx context.Context, userID string, kind model.JobKind, payload SubmitPayload) (*JobHandle, error)
	Await(ctx context.Context, h *JobHandle, onProgress ProgressFunc) (*model.GenerationResult, error)

	// Chat runs a full text turn under the user's single-flight lock:
	// session reuse, submit, poll, result extraction.
	Chat(ctx context.Context, userID, text string, onProgress ProgressFunc) (*model.GenerationResult, error)

	// GenerateImage is synchronous at the provider; it still reports a
	// single progress event for a uniform caller experience.
	GenerateImage(ctx context.Context, userID, prompt string, onProgress ProgressFunc) (*model.ResultPart, error)

	// GenerateVideo submits to the provider serving the request's
	// quality and polls to a terminal state, downloading the clip on
	// success.
	GenerateVideo(ctx context.Context, userID string, req *model.PendingVideoRequest, onProgress ProgressFunc) (*model.GenerationResult, error)

	// VideoAvailable reports whether a backend is wired for the
	// quality tier, so callers can refuse a request before charging.
	VideoAvailable(q model.VideoQuality) bool
}

type orchestrator struct {
	assistant adapter.AssistantAdapter
	videoLite adapter.VideoGenerator
	videoPro  adapter.VideoGenerator
	sessions  repository.AssistantSessionRepository
	locks     repository.UserLocker
	log       *zerolog.Logger

	// sleep is a seam so tests can run the polling loop without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(
	assistant adapter.AssistantAdapter,
	videoLite, videoPro adapter.VideoGenerator,
	sessions repository.AssistantSessionRepository,
	locks repository.UserLocker,
	logger *zerolog.Logger,
) *orchestrator {
	l := logger.With().Str("component", "Orchestrator").Logger()
	return &orchestrator{
		assistant: assistant,
		videoLite: videoLite,
		videoPro:  videoPro,
		sessions:  sessions,
		locks:     locks,
		log:       &l,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ensureSession finds the user's durable conversation session or
// creates one. Creation is idempotent per user: the repository keeps
// the first-to-persist row and we adopt whatever won.
func (o *orchestrator) ensureSession(ctx context.Context, userID string) (*model.AssistantSession, error) {
	s, err := o.sessions.FindByUser(ctx, nil, userID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	sessionID, err := o.assistant.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	// Persist the mapping before first use; adopt the winner on a race.
	winner, err := o.sessions.Save(ctx, nil, model.NewAssistantSession(userID, sessionID))
	if err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	if winner.SessionID != sessionID {
		o.log.Debug().Str("user_id", userID).Str("session_id", winner.SessionID).Msg("adopted concurrently created session")
	}
	return winner, nil
}

func (o *orchestrator) Submit(ctx context.Context, userID string, kind model.JobKind, payload SubmitPayload) (*JobHandle, error) {
	switch kind {
	case model.JobText:
		return o.submitChat(ctx, userID, payload.Text)
	case model.JobImage:
		return o.submitImage(ctx, userID, payload.Text)
	case model.JobVideo:
		if payload.Video == nil {
			return nil, domain.ErrInvalidArgument
		}
		return o.submitVideo(ctx, userID, payload.Video)
	default:
		return nil, fmt.Errorf("%w: unknown job kind %q", domain.ErrInvalidArgument, kind)
	}
}

func (o *orchestrator) submitChat(ctx context.Context, userID, text string) (*JobHandle, error) {
	if text == "" {
		return nil, domain.ErrEmptyPrompt
	}
	sess, err := o.ensureSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The assistant API requires serialized access per session: drain
	// any run left over from a previous process before submitting.
	if runID, err := o.assistant.ActiveRun(ctx, sess.SessionID); err == nil && runID != "" {
		o.log.Warn().Str("session_id", sess.SessionID).Str("run_id", runID).Msg("draining leftover active run")
		if err := o.drainRun(ctx, sess.SessionID, runID); err != nil {
			return nil, err
		}
	}

	if err := o.assistant.AppendMessage(ctx, sess.SessionID, "user", text); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	runID, err := o.assistant.StartRun(ctx, sess.SessionID)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	job := model.NewGenerationJob(userID, model.JobText, model.ProviderAssistant)
	job.ProviderJobID = runID
	return &JobHandle{
		Job:    job,
		policy: o.assistant.PollPolicy(),
		probe: func(ctx context.Context) (model.StatusProbe, error) {
			return o.assistant.RunStatus(ctx, sess.SessionID, runID)
		},
		collect: func(ctx context.Context) (*model.GenerationResult, error) {
			return o.collectChatResult(ctx, job, sess.SessionID)
		},
	}, nil
}

func (o *orchestrator) submitImage(ctx context.Context, userID, prompt string) (*JobHandle, error) {
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}
	// Image generation is synchronous at the provider; the handle
	// completes on its first probe.
	job := model.NewGenerationJob(userID, model.JobImage, model.ProviderAssistant)
	var part *model.ResultPart
	return &JobHandle{
		Job:    job,
		policy: adapter.PollPolicy{Interval: 0, MaxAttempts: 1},
		probe: func(ctx context.Context) (model.StatusProbe, error) {
			p, err := o.assistant.GenerateImage(ctx, prompt)
			if err != nil {
				return model.StatusProbe{Status: model.StatusFailed, Progress: -1, Reason: err.Error()}, nil
			}
			part = p
			return model.StatusProbe{Status: model.StatusCompleted, Progress: -1}, nil
		},
		collect: func(ctx context.Context) (*model.GenerationResult, error) {
			res := &model.GenerationResult{JobID: job.ID}
			if part != nil {
				res.AddPart(*part)
			}
			return res, nil
		},
	}, nil
}

func (o *orchestrator) VideoAvailable(q model.VideoQuality) bool {
	if q == model.QualityPro {
		return o.videoPro != nil
	}
	return o.videoLite != nil
}

func (o *orchestrator) submitVideo(ctx context.Context, userID string, req *model.PendingVideoRequest) (*JobHandle, error) {
	provider := o.videoLite
	if req.Quality == model.QualityPro {
		provider = o.videoPro
	}
	if provider == nil {
		return nil, fmt.Errorf("%s video: %w", req.Quality, domain.ErrProviderUnavailable)
	}
	jobID, err := provider.Submit(ctx, adapter.VideoRequest{
		Prompt:   req.Prompt,
		Duration: req.Duration,
		ImageRef: req.ImageRef,
	})
	if err != nil {
		return nil, fmt.Errorf("submit video: %w", err)
	}

	job := model.NewGenerationJob(userID, model.JobVideo, provider.Name())
	job.ProviderJobID = jobID
	return &JobHandle{
		Job:    job,
		policy: provider.PollPolicy(),
		probe: func(ctx context.Context) (model.StatusProbe, error) {
			return provider.Status(ctx, jobID)
		},
		collect: func(ctx context.Context) (*model.GenerationResult, error) {
			res := &model.GenerationResult{JobID: job.ID}
			if job.ResultRef == "" {
				return res, nil
			}
			data, err := provider.Download(ctx, job.ResultRef)
			if err != nil {
				// The URL is still usable for re-delivery.
				o.log.Error().Err(err).Str("job_id", job.ID).Msg("video download failed, returning ref only")
				res.AddPart(model.ResultPart{Ref: job.ResultRef, FileName: "video.mp4"})
				return res, nil
			}
			res.AddPart(model.ResultPart{Ref: job.ResultRef, FileName: "video.mp4", Data: data})
			return res, nil
		},
	}, nil
}

// Await drives the handle to a terminal state under the polling
// policy. Transient provider errors consume an attempt and are
// retried; exceeding the budget abandons the job as a timeout.
func (o *orchestrator) Await(ctx context.Context, h *JobHandle, onProgress ProgressFunc) (*model.GenerationResult, error) {
	if onProgress == nil {
		onProgress = NopProgress
	}
	job := h.Job
	start := time.Now()
	jl := o.log.With().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Str("provider", string(job.Provider)).
		Logger()

	defer func() {
		metrics.ObserveJobDuration(string(job.Provider), string(job.Kind), time.Since(start).Seconds())
	}()

	interval := time.Duration(h.policy.Interval) * time.Second
	for attempt := 1; attempt <= h.policy.MaxAttempts; attempt++ {
		if attempt > 1 || h.policy.Interval > 0 {
			if err := o.sleep(ctx, interval); err != nil {
				return nil, err
			}
		}

		probe, err := h.probe(ctx)
		if err != nil {
			// Transient failure: logged, retried within the budget, no
			// extra charge.
			jl.Warn().Err(err).Int("attempt", attempt).Int("max", h.policy.MaxAttempts).Msg("poll failed")
			continue
		}

		if err := job.Advance(probe); err != nil {
			// A regressing or post-terminal observation is a provider
			// anomaly; log it and keep the job where it is.
			jl.Warn().Err(err).Str("raw", probe.Raw).Msg("ignoring out-of-order status")
			continue
		}
		onProgress(probe.ProgressText(), attempt, h.policy.MaxAttempts)
		jl.Debug().Int("attempt", attempt).Str("status", string(job.Status)).Str("raw", probe.Raw).Msg("poll")

		switch job.Status {
		case model.StatusCompleted:
			metrics.IncGenerationJob(string(job.Provider), string(job.Kind), "completed")
			metrics.ObserveJobPolls(string(job.Provider), attempt)
			res, err := h.collect(ctx)
			if err != nil {
				return nil, fmt.Errorf("collect result: %w", err)
			}
			return res, nil
		case model.StatusFailed:
			metrics.IncGenerationJob(string(job.Provider), string(job.Kind), "failed")
			metrics.ObserveJobPolls(string(job.Provider), attempt)
			jl.Error().Str("reason", job.Reason).Msg("job failed")
			if job.Reason != "" {
				return nil, fmt.Errorf("%w: %s", domain.ErrJobFailed, job.Reason)
			}
			return nil, domain.ErrJobFailed
		}
	}

	metrics.IncGenerationJob(string(job.Provider), string(job.Kind), "timeout")
	jl.Error().Int("max", h.policy.MaxAttempts).Msg("poll budget exhausted, job abandoned")
	return nil, domain.ErrJobTimeout
}

// drainRun waits out a leftover non-terminal run without surfacing its
// result; errors other than budget exhaustion propagate.
func (o *orchestrator) drainRun(ctx context.Context, sessionID, runID string) error {
	policy := o.assistant.PollPolicy()
	interval := time.Duration(policy.Interval) * time.Second
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		probe, err := o.assistant.RunStatus(ctx, sessionID, runID)
		if err == nil && probe.Status.Terminal() {
			return nil
		}
		if err := o.sleep(ctx, interval); err != nil {
			return err
		}
	}
	return domain.ErrJobTimeout
}

func (o *orchestrator) Chat(ctx context.Context, userID, text string, onProgress ProgressFunc) (*model.GenerationResult, error) {
	var res *model.GenerationResult
	err := o.locks.WithLock(ctx, userID, func(ctx context.Context) error {
		h, err := o.Submit(ctx, userID, model.JobText, SubmitPayload{Text: text})
		if err != nil {
			return err
		}
		res, err = o.Await(ctx, h, onProgress)
		return err
	})
	return res, err
}

func (o *orchestrator) GenerateImage(ctx context.Context, userID, prompt string, onProgress ProgressFunc) (*model.ResultPart, error) {
	h, err := o.Submit(ctx, userID, model.JobImage, SubmitPayload{Text: prompt})
	if err != nil {
		return nil, err
	}
	res, err := o.Await(ctx, h, onProgress)
	if err != nil {
		return nil, err
	}
	if len(res.Parts) == 0 {
		return nil, domain.ErrJobFailed
	}
	return &res.Parts[0], nil
}

func (o *orchestrator) GenerateVideo(ctx context.Context, userID string, req *model.PendingVideoRequest, onProgress ProgressFunc) (*model.GenerationResult, error) {
	var res *model.GenerationResult
	err := o.locks.WithLock(ctx, userID, func(ctx context.Context) error {
		h, err := o.Submit(ctx, userID, model.JobVideo, SubmitPayload{Video: req})
		if err != nil {
			return err
		}
		res, err = o.Await(ctx, h, onProgress)
		return err
	})
	return res, err
}

// collectChatResult extracts a completed chat turn: the assistant's
// final message text plus any attached files, each fetched and
// deduplicated by file identity.
func (o *orchestrator) collectChatResult(ctx context.Context, job *model.GenerationJob, sessionID string) (*model.GenerationResult, error) {
	parts, err := o.assistant.ListResult(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list result: %w", err)
	}
	res := &model.GenerationResult{JobID: job.ID}
	for _, p := range parts {
		if p.Ref != "" && p.Data == nil {
			data, name, err := o.assistant.FetchFile(ctx, p.Ref)
			if err != nil {
				o.log.Error().Err(err).Str("job_id", job.ID).Str("file_id", p.Ref).Msg("attachment fetch failed")
				continue
			}
			p.Data = data
			if p.FileName == "" {
				p.FileName = name
			}
		}
		res.AddPart(p)
	}
	return res, nil
}
