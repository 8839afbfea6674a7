package model

import (
	"fmt"
	"time"

	"promind-bot/internal/domain"

	"github.com/oklog/ulid/v2"
)

// JobKind is what the user asked to generate.
type JobKind string

const (
	JobText  JobKind = "text"
	JobImage JobKind = "image"
	JobVideo JobKind = "video"
)

// ProviderName identifies which backend executes a job.
type ProviderName string

const (
	ProviderAssistant ProviderName = "assistant"
	ProviderVideoA    ProviderName = "video-a"
	ProviderVideoB    ProviderName = "video-b"
)

// JobStatus is the canonical five-state model all provider
// vocabularies are normalized into. Downstream logic branches only on
// these values, never on provider raw strings.
type JobStatus string

const (
	StatusSubmitted  JobStatus = "submitted"
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// rank orders statuses for the monotonicity invariant:
// submitted < queued/processing < completed/failed.
func (s JobStatus) rank() int {
	switch s {
	case StatusSubmitted:
		return 0
	case StatusQueued, StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return 1
	}
}

func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StatusProbe is one poll observation before it is folded into the job.
type StatusProbe struct {
	Status    JobStatus
	Raw       string // provider vocabulary, for logs only
	Progress  int    // percent, -1 when the provider does not report it
	ResultRef string
	Reason    string // human-readable failure reason
}

// ProgressText renders the probe in the uniform form shown to users:
// "processing (N%)" when a percentage is known, else the phase name.
func (p StatusProbe) ProgressText() string {
	if p.Status == StatusProcessing && p.Progress >= 0 {
		return fmt.Sprintf("processing (%d%%)", p.Progress)
	}
	return string(p.Status)
}

// GenerationJob is one asynchronous unit of work submitted to a
// provider. Jobs live in memory for the duration of polling and are
// garbage-collected once the result is delivered.
type GenerationJob struct {
	ID        string
	ProviderJobID string
	UserID    string
	Kind      JobKind
	Provider  ProviderName
	Status    JobStatus
	Progress  int
	ResultRef string
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewGenerationJob(userID string, kind JobKind, provider ProviderName) *GenerationJob {
	now := time.Now()
	return &GenerationJob{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Kind:      kind,
		Provider:  provider,
		Status:    StatusSubmitted,
		Progress:  -1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance folds a poll observation into the job, enforcing the
// monotonic order submitted -> {queued|processing}* -> terminal. Once
// terminal the job never changes again; a later observation of a lower
// rank is rejected.
func (j *GenerationJob) Advance(p StatusProbe) error {
	if j.Status.Terminal() {
		return domain.ErrTerminalJobState
	}
	if p.Status.rank() < j.Status.rank() {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidArgument, j.Status, p.Status)
	}
	j.Status = p.Status
	if p.Progress >= 0 {
		j.Progress = p.Progress
	}
	if p.ResultRef != "" {
		j.ResultRef = p.ResultRef
	}
	if p.Reason != "" {
		j.Reason = p.Reason
	}
	j.UpdatedAt = time.Now()
	return nil
}

// ResultPart is one piece of a completed job's output. Text parts carry
// Text; binary parts carry a reference (URL or provider file id) and,
// once fetched, the bytes.
type ResultPart struct {
	Text     string
	Ref      string
	FileName string
	Data     []byte
}

// GenerationResult is everything a completed job produced, in provider
// order, deduplicated by ref identity.
type GenerationResult struct {
	JobID string
	Parts []ResultPart
}

// Text returns the concatenated text parts.
func (r *GenerationResult) Text() string {
	out := ""
	for _, p := range r.Parts {
		if p.Text != "" {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

// Files returns the non-text parts.
func (r *GenerationResult) Files() []ResultPart {
	var files []ResultPart
	for _, p := range r.Parts {
		if p.Text == "" {
			files = append(files, p)
		}
	}
	return files
}

// AddPart appends a part, dropping duplicates by ref identity.
func (r *GenerationResult) AddPart(p ResultPart) {
	if p.Ref != "" {
		for _, q := range r.Parts {
			if q.Ref == p.Ref {
				return
			}
		}
	}
	r.Parts = append(r.Parts, p)
}
