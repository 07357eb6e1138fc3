package services

import (
	"context"
	"fmt"

	"github.com/corptrain/playback/internal/events"
	"github.com/corptrain/playback/internal/models"
	"github.com/corptrain/playback/internal/playback"
)

// narratedStage returns the active stage when it is a narrated document
func narratedStage(sess *Session) (*stageRuntime, error) {
	rt, err := contentStage(sess)
	if err != nil {
		return nil, err
	}
	if doc, ok := rt.scene.Content.(models.DocumentContent); !ok || !doc.Narrated() {
		return nil, fmt.Errorf("%w: scene has no narration", ErrStageMismatch)
	}
	return rt, nil
}

// ReportAudio applies a narration audio report. The transcript frame loop runs only while the
// audio plays and is stopped on every report that says it does not.
func (s *sessionService) ReportAudio(ctx context.Context, learnerID int, sessionID string, st models.AudioState) (*Snapshot, error) {
	sess, err := s.acquire(learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	rt, err := narratedStage(sess)
	if err != nil {
		return nil, err
	}
	if err := rt.clock.Report(st); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStageMismatch, err)
	}
	s.attachSync(sess, rt)

	res := rt.tracker.Sample(st.CurrentTime, rt.clock.Duration())
	rt.dirty = true

	if rt.sync != nil && !rt.mediaFallback {
		if st.Playing {
			rt.sync.Start(sess.ctx)
		} else {
			rt.sync.Stop()
			rt.sync.Tick()
		}
	}

	if res.JustCompleted {
		s.stageCompleted(sess, rt)
	}
	if res.JustCompleted || !st.Playing {
		if err := s.persistStage(ctx, sess); err != nil {
			return s.snapshotLocked(sess), err
		}
	}
	return s.snapshotLocked(sess), nil
}

// UserScroll records a manual scroll of the transcript
func (s *sessionService) UserScroll(ctx context.Context, learnerID int, sessionID string) (*playback.SyncState, error) {
	sess, err := s.acquire(learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	engine, err := syncEngine(sess)
	if err != nil {
		return nil, err
	}
	before := engine.State().Override
	if engine.UserScrolled() && !before {
		state := engine.State()
		s.publish(sess, events.TypeOverrideChanged, map[string]any{"override": true, "overrideAt": state.OverrideAt})
	}
	state := engine.State()
	return &state, nil
}

// Resync drops the manual override and refocuses the transcript on the live audio position
func (s *sessionService) Resync(ctx context.Context, learnerID int, sessionID string) (*playback.SyncState, error) {
	sess, err := s.acquire(learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	engine, err := syncEngine(sess)
	if err != nil {
		return nil, err
	}
	engine.Resync()
	s.publish(sess, events.TypeOverrideChanged, map[string]any{"override": false})
	state := engine.State()
	return &state, nil
}

func syncEngine(sess *Session) (*playback.ScrollSync, error) {
	rt, err := narratedStage(sess)
	if err != nil {
		return nil, err
	}
	if rt.sync == nil {
		return nil, fmt.Errorf("%w: transcript timing is not known yet", ErrStageMismatch)
	}
	return rt.sync, nil
}
