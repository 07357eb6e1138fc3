package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/corptrain/playback/internal/events"
	"github.com/corptrain/playback/internal/models"
	"github.com/corptrain/playback/internal/playback"
	"go.uber.org/zap"
)

// contentStage returns the active content stage of a locked session
func contentStage(sess *Session) (*stageRuntime, error) {
	if sess.stage == nil {
		return nil, fmt.Errorf("%w: no content stage in %s", ErrStageMismatch, sess.state.Stage)
	}
	return sess.stage, nil
}

// ReportPlayback applies a video telemetry sample. Progress is saved on pause, on end and when
// the sample completes the video.
func (s *sessionService) ReportPlayback(ctx context.Context, learnerID int, sessionID string, sample models.PlaybackSample) (*Snapshot, error) {
	sess, err := s.acquire(learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	rt, err := contentStage(sess)
	if err != nil {
		return nil, err
	}
	if _, ok := rt.scene.Content.(models.VideoContent); !ok {
		return nil, fmt.Errorf("%w: scene is not a video", ErrStageMismatch)
	}

	playing := sample.Event == models.PlaybackEventPlay || sample.Event == models.PlaybackEventTimeUpdate
	if err := rt.clock.Report(models.AudioState{CurrentTime: sample.CurrentTime, Duration: sample.Duration, Playing: playing}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStageMismatch, err)
	}

	var res playback.SampleResult
	if sample.Event == models.PlaybackEventEnded {
		res = rt.tracker.End()
	} else {
		res = rt.tracker.Sample(sample.CurrentTime, sample.Duration)
	}
	rt.dirty = true

	if res.Discontinuity != playback.DiscontinuityNone {
		s.logger.Debug("playback discontinuity",
			zap.String("session_id", sess.ID),
			zap.String("kind", string(res.Discontinuity)),
			zap.Float64("current_time", sample.CurrentTime),
		)
	}

	checkpoint := res.JustCompleted ||
		sample.Event == models.PlaybackEventPause ||
		sample.Event == models.PlaybackEventEnded
	if res.JustCompleted {
		s.stageCompleted(sess, rt)
	}
	if checkpoint {
		if err := s.persistStage(ctx, sess); err != nil {
			return s.snapshotLocked(sess), err
		}
	}
	return s.snapshotLocked(sess), nil
}

// CompletePackage records the completion signal of an interactive package
func (s *sessionService) CompletePackage(ctx context.Context, learnerID int, sessionID string, score *float64) (*Snapshot, error) {
	sess, err := s.acquire(learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	rt, err := contentStage(sess)
	if err != nil {
		return nil, err
	}
	if _, ok := rt.scene.Content.(models.PackageContent); !ok {
		return nil, fmt.Errorf("%w: scene is not an interactive package", ErrStageMismatch)
	}

	res := rt.tracker.MarkExternalComplete(score)
	rt.dirty = true
	if res.JustCompleted {
		s.stageCompleted(sess, rt)
	}
	if err := s.persistStage(ctx, sess); err != nil {
		return s.snapshotLocked(sess), err
	}
	return s.snapshotLocked(sess), nil
}

// SetCertification records the state of the certification checkbox
func (s *sessionService) SetCertification(ctx context.Context, learnerID int, sessionID string, checked bool) (*Snapshot, error) {
	sess, err := s.acquire(learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	rt, err := contentStage(sess)
	if err != nil {
		return nil, err
	}
	if !rt.scene.RequiresCertification {
		return nil, fmt.Errorf("%w: scene does not require certification", ErrStageMismatch)
	}
	if rt.certified != checked {
		rt.certified = checked
		s.publishGate(sess, rt)
	}
	return s.snapshotLocked(sess), nil
}

// ReportMediaError switches the active stage to fallback completion so a broken source never
// traps the learner.
func (s *sessionService) ReportMediaError(ctx context.Context, learnerID int, sessionID string, reason string) (*Snapshot, error) {
	sess, err := s.acquire(learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	rt, err := contentStage(sess)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "media failed to play"
	}
	s.fallback(sess, rt, reason)
	return s.snapshotLocked(sess), nil
}

// Save re-attempts the saves that failed, from the in-memory state
func (s *sessionService) Save(ctx context.Context, learnerID int, sessionID string) (*Snapshot, error) {
	sess, err := s.acquire(learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	var errs []error
	if sess.stage != nil {
		if err := s.persistStage(ctx, sess); err != nil {
			errs = append(errs, err)
		}
	}
	if sess.completionPending {
		s.enterCompletion(ctx, sess)
		if sess.completionPending {
			errs = append(errs, fmt.Errorf("%w: completion not saved", ErrStoreUnavailable))
		}
	} else {
		s.queueCertificate(ctx, sess)
	}
	return s.snapshotLocked(sess), errors.Join(errs...)
}

// Beacon closes the session of a page that is going away: the sync loop stops, the media is
// released and a best-effort save runs. It returns without waiting for the save.
func (s *sessionService) Beacon(learnerID int, sessionID string) error {
	sess, err := s.lookup(learnerID, sessionID)
	if err != nil {
		return err
	}
	sess.touch(s.now())

	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.BeaconTimeout)
		defer cancel()

		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sess.closed {
			return
		}
		s.logger.Info("page unloaded, closing playback session",
			zap.String("session_id", sess.ID),
			zap.Int("assignment_id", sess.AssignmentID),
		)
		s.closeLocked(ctx, sess)
	}()
	return nil
}

// Autosave saves every content stage with unsaved changes or time spent and returns how many
// were saved. Certificates that could not be queued on completion are retried.
func (s *sessionService) Autosave(ctx context.Context) int {
	saved := 0
	for _, sess := range s.registry.All() {
		sess.mu.Lock()
		if !sess.closed {
			if sess.stage != nil && sess.stage.unsaved(sess.LastActivity()) {
				if err := s.persistStage(ctx, sess); err == nil {
					saved++
				}
			}
			s.queueCertificate(ctx, sess)
		}
		sess.mu.Unlock()
	}
	return saved
}

func (s *sessionService) stageCompleted(sess *Session, rt *stageRuntime) {
	s.logger.Info("stage media completed",
		zap.String("session_id", sess.ID),
		zap.Int("scene_id", rt.scene.ID),
		zap.Float64("percentage", rt.tracker.Percentage()),
	)
	s.publish(sess, events.TypeStageCompleted, map[string]any{"sceneId": rt.scene.ID, "stage": rt.stage})
	s.publishGate(sess, rt)
}
