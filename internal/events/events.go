// Package events delivers playback session events to the learner's browser over
// Server-Sent Events and to downstream consumers over Redis pub/sub.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Type names a session event
type Type string

const (
	TypeStageChanged    Type = "stage_changed"
	TypeGateChanged     Type = "gate_changed"
	TypeStageCompleted  Type = "stage_completed"
	TypeSegmentFocused  Type = "segment_focused"
	TypeOverrideChanged Type = "override_changed"
	TypeMediaFallback   Type = "media_fallback"
	TypeSaveFailed      Type = "save_failed"
	TypeQuizFinalized   Type = "quiz_finalized"
	TypeFlowCompleted   Type = "flow_completed"
	TypeSessionClosed   Type = "session_closed"
)

// Event is one notification about a playback session
type Event struct {
	SessionID    string    `json:"sessionId"`
	AssignmentID int       `json:"assignmentId"`
	LearnerID    int       `json:"learnerId"`
	Type         Type      `json:"type"`
	Data         any       `json:"data,omitempty"`
	At           time.Time `json:"at"`
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Fanout publishes every event to all of its publishers. A failing publisher is logged and
// does not stop delivery to the others.
type Fanout struct {
	publishers []Publisher
	logger     *zap.Logger
}

// NewFanout creates a publisher that delivers to all given publishers
func NewFanout(logger *zap.Logger, publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers, logger: logger}
}

// Publish implements Publisher. It returns the first error after trying every publisher.
func (f *Fanout) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	var first error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			f.logger.Warn("failed to publish session event",
				zap.String("session_id", ev.SessionID),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
