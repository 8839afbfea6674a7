package model

import (
	"strconv"
	"strings"
	"time"

	"promind-bot/internal/domain"
)

// VideoQuality is a closed enumeration; anything else in user input is
// a validation failure, not a system error.
type VideoQuality string

const (
	QualityLite VideoQuality = "lite"
	QualityPro  VideoQuality = "pro"
)

// BaseVideoDuration is the duration the per-quality base cost is
// priced for. Cost scales linearly with duration.
const BaseVideoDuration = 5

// VideoDurations is the closed set of accepted clip lengths (seconds).
var VideoDurations = []int{5, 10, 15}

// RequestStage tracks the interactive builder's state machine.
type RequestStage string

const (
	StageCollecting           RequestStage = "collecting"
	StageAwaitingConfirmation RequestStage = "awaiting_confirmation"
)

// PendingVideoRequest accumulates a multi-step parameter selection
// before a paid job is dispatched. At most one exists per user;
// creating a new one replaces any prior unconfirmed request.
type PendingVideoRequest struct {
	UserID           string       `json:"user_id"`
	Prompt           string       `json:"prompt"`
	ImageRef         string       `json:"image_ref,omitempty"`
	Duration         int          `json:"duration"`
	Quality          VideoQuality `json:"quality"`
	SkipOptimization bool         `json:"skip_optimization"`
	ConfirmMessageID int          `json:"confirm_message_id,omitempty"`
	Stage            RequestStage `json:"stage"`
	CreatedAt        time.Time    `json:"created_at"`
}

func NewPendingVideoRequest(userID, prompt, imageRef string) (*PendingVideoRequest, error) {
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}
	return &PendingVideoRequest{
		UserID:    userID,
		Prompt:    prompt,
		ImageRef:  imageRef,
		Stage:     StageCollecting,
		CreatedAt: time.Now(),
	}, nil
}

// ParseVideoShortcut recognizes the one-shot command grammar
// "<duration> <quality> <prompt>", e.g. "10 pro a drone shot". When the
// leading tokens do not form a valid duration/quality pair, ok is false
// and the whole input is the prompt; the caller falls back to the
// parameter picker.
func ParseVideoShortcut(input string) (duration int, quality VideoQuality, prompt string, ok bool) {
	fields := strings.Fields(input)
	if len(fields) < 3 {
		return 0, "", input, false
	}
	d, err := strconv.Atoi(fields[0])
	if err != nil || !ValidDuration(d) {
		return 0, "", input, false
	}
	q := VideoQuality(strings.ToLower(fields[1]))
	if !ValidQuality(q) {
		return 0, "", input, false
	}
	return d, q, strings.Join(fields[2:], " "), true
}

func ValidDuration(d int) bool {
	for _, v := range VideoDurations {
		if v == d {
			return true
		}
	}
	return false
}

func ValidQuality(q VideoQuality) bool {
	return q == QualityLite || q == QualityPro
}

// SetParameters fills duration and quality, moving the request to
// AwaitingConfirmation when both are valid.
func (r *PendingVideoRequest) SetParameters(quality VideoQuality, duration int) error {
	if !ValidQuality(quality) {
		return domain.ErrInvalidQuality
	}
	if !ValidDuration(duration) {
		return domain.ErrInvalidDuration
	}
	r.Quality = quality
	r.Duration = duration
	r.Stage = StageAwaitingConfirmation
	return nil
}

// Cost is baseCost(quality) x (duration / base duration).
func (r *PendingVideoRequest) Cost() int {
	return VideoBaseCost(r.Quality) * r.Duration / BaseVideoDuration
}
