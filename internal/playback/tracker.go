// Package playback holds the learner playback core: progress tracking, the transcript
// scroll-sync engine, quiz evaluation, completion gating and the learner flow state machine.
//
// Everything in this package is free of I/O. Persistence and transport live in the
// services and repositories packages.
package playback

import (
	"math"
	"time"

	"github.com/corptrain/playback/internal/models"
)

const (
	// DefaultCompletionThreshold is the watch percentage that marks media as completed
	DefaultCompletionThreshold = 90.0
	// DefaultSeekThresholdSeconds is the jump size classified as a seek or rewind
	DefaultSeekThresholdSeconds = 5.0
)

// Discontinuity classifies a jump between two consecutive samples
type Discontinuity string

const (
	DiscontinuityNone   Discontinuity = ""
	DiscontinuitySeek   Discontinuity = "seek"
	DiscontinuityRewind Discontinuity = "rewind"
)

// TrackerConfig holds the tunables of a Tracker
type TrackerConfig struct {
	CompletionThreshold  float64
	SeekThresholdSeconds float64
}

// DefaultTrackerConfig returns the default tracker tunables
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		CompletionThreshold:  DefaultCompletionThreshold,
		SeekThresholdSeconds: DefaultSeekThresholdSeconds,
	}
}

// SampleResult is the outcome of feeding one sample to a Tracker
type SampleResult struct {
	Percentage    float64       `json:"percentage"`
	Discontinuity Discontinuity `json:"discontinuity,omitempty"`
	// JustCompleted is true only for the sample that completed the media.
	JustCompleted bool `json:"justCompleted"`
}

// TrackerSnapshot is the current tracker state in persistable form
type TrackerSnapshot struct {
	PositionSeconds float64    `json:"positionSeconds"`
	DurationSeconds float64    `json:"durationSeconds"`
	Percentage      float64    `json:"percentage"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	Score           *float64   `json:"score,omitempty"`
}

// Tracker converts playback telemetry into a completion decision.
//
// A Tracker is not safe for concurrent use; the owning session serializes access.
type Tracker struct {
	cfg         TrackerConfig
	now         func() time.Time
	hasSample   bool
	position    float64
	duration    float64
	percentage  float64
	completed   bool
	completedAt *time.Time
	score       *float64
}

// NewTracker creates a tracker, restoring state from a persisted record when one is given
func NewTracker(cfg TrackerConfig, resume *models.ProgressRecord) *Tracker {
	if cfg.CompletionThreshold <= 0 {
		cfg.CompletionThreshold = DefaultCompletionThreshold
	}
	if cfg.SeekThresholdSeconds <= 0 {
		cfg.SeekThresholdSeconds = DefaultSeekThresholdSeconds
	}

	t := &Tracker{cfg: cfg, now: time.Now}
	if resume != nil {
		t.position = resume.PositionSeconds
		t.duration = resume.DurationSeconds
		t.percentage = clampPercent(resume.Percentage)
		t.completed = resume.Completed
		t.completedAt = resume.CompletedAt
		t.score = resume.Score
	}
	return t
}

// Sample feeds a (currentTime, duration) pair
func (t *Tracker) Sample(currentTime, duration float64) SampleResult {
	var res SampleResult

	if t.hasSample {
		delta := currentTime - t.position
		if math.Abs(delta) > t.cfg.SeekThresholdSeconds {
			if delta > 0 {
				res.Discontinuity = DiscontinuitySeek
			} else {
				res.Discontinuity = DiscontinuityRewind
			}
		}
	}
	t.hasSample = true

	if validDuration(duration) {
		t.duration = duration
	}
	if !math.IsNaN(currentTime) && currentTime >= 0 {
		t.position = currentTime
	}

	t.percentage = percentOf(t.position, t.duration)
	if !t.completed && validDuration(t.duration) && t.percentage >= t.cfg.CompletionThreshold {
		t.markCompleted()
		res.JustCompleted = true
	}

	res.Percentage = t.percentage
	return res
}

// End records the natural end of the stream.
//
// The end of the stream completes the media regardless of the threshold.
func (t *Tracker) End() SampleResult {
	if validDuration(t.duration) {
		t.position = t.duration
	}
	t.percentage = 100
	res := SampleResult{Percentage: t.percentage}
	if !t.completed {
		t.markCompleted()
		res.JustCompleted = true
	}
	return res
}

// MarkExternalComplete records a completion signal that does not come from the timeline,
// such as an interactive package reporting it is done.
func (t *Tracker) MarkExternalComplete(score *float64) SampleResult {
	if score != nil {
		s := *score
		t.score = &s
	}
	t.percentage = 100
	res := SampleResult{Percentage: t.percentage}
	if !t.completed {
		t.markCompleted()
		res.JustCompleted = true
	}
	return res
}

// Completed reports whether the media has been completed
func (t *Tracker) Completed() bool {
	return t.completed
}

// Percentage returns the current completion percentage
func (t *Tracker) Percentage() float64 {
	return t.percentage
}

// ResumePosition returns the position playback should resume from
func (t *Tracker) ResumePosition() float64 {
	return t.position
}

// Snapshot returns the persistable tracker state
func (t *Tracker) Snapshot() TrackerSnapshot {
	return TrackerSnapshot{
		PositionSeconds: t.position,
		DurationSeconds: t.duration,
		Percentage:      t.percentage,
		Completed:       t.completed,
		CompletedAt:     t.completedAt,
		Score:           t.score,
	}
}

func (t *Tracker) markCompleted() {
	now := t.now().UTC()
	t.completed = true
	t.completedAt = &now
}

func validDuration(d float64) bool {
	return d > 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}

func percentOf(position, duration float64) float64 {
	if !validDuration(duration) {
		return 0
	}
	return clampPercent(position / duration * 100)
}

func clampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
