package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/corptrain/playback/internal/events"
	"github.com/corptrain/playback/internal/models"
	"github.com/corptrain/playback/internal/playback"
	"github.com/corptrain/playback/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds the tunables of the session service
type Config struct {
	Tracker               playback.TrackerConfig
	FirstSegmentAllowance float64
	FrameInterval         time.Duration
	SessionIdleTimeout    time.Duration
	BeaconTimeout         time.Duration
	// TestingMode enables the gate override and skip. It must never be set in production.
	TestingMode bool
}

type sessionService struct {
	deps      Dependencies
	cfg       Config
	gate      playback.Gate
	evaluator *playback.Evaluator
	registry  *SessionRegistry
	logger    *zap.Logger
	now       func() time.Time

	background sync.WaitGroup
}

// NewSessionService creates the service that drives playback sessions through the learner flow
func NewSessionService(deps Dependencies, registry *SessionRegistry, evaluator *playback.Evaluator, cfg Config, logger *zap.Logger) *sessionService {
	if cfg.SessionIdleTimeout <= 0 {
		cfg.SessionIdleTimeout = 30 * time.Minute
	}
	if cfg.BeaconTimeout <= 0 {
		cfg.BeaconTimeout = 5 * time.Second
	}
	if cfg.Tracker.CompletionThreshold <= 0 {
		cfg.Tracker.CompletionThreshold = playback.DefaultCompletionThreshold
	}
	if cfg.Tracker.SeekThresholdSeconds <= 0 {
		cfg.Tracker.SeekThresholdSeconds = playback.DefaultSeekThresholdSeconds
	}
	if cfg.FirstSegmentAllowance <= 0 {
		cfg.FirstSegmentAllowance = playback.DefaultFirstSegmentAllowance
	}
	return &sessionService{
		deps:      deps,
		cfg:       cfg,
		gate:      playback.NewGate(cfg.TestingMode),
		evaluator: evaluator,
		registry:  registry,
		logger:    logger,
		now:       time.Now,
	}
}

// Open starts a session for an assignment and resumes it at the stage found in the progress store.
//
// An older session of the same learner and assignment is closed first. When the store cannot be
// read, the session is still registered in the error stage and its snapshot is returned together
// with ErrStoreUnavailable, so the client can offer a retry.
func (s *sessionService) Open(ctx context.Context, learnerID, assignmentID int) (*Snapshot, error) {
	sess := newSession(uuid.NewString(), learnerID, assignmentID, s.now())
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if old := s.registry.Add(sess); old != nil {
		s.logger.Info("replacing playback session",
			zap.String("session_id", old.ID),
			zap.Int("assignment_id", assignmentID),
		)
		s.closeSession(ctx, old)
	}

	err := s.load(ctx, sess)
	if errors.Is(err, ErrAssignmentNotFound) || errors.Is(err, ErrForbidden) {
		s.registry.Remove(sess)
		sess.closed = true
		sess.cancel()
		return nil, err
	}
	return s.snapshotLocked(sess), err
}

// Snapshot returns the current state of a session
func (s *sessionService) Snapshot(ctx context.Context, learnerID int, sessionID string) (*Snapshot, error) {
	sess, err := s.acquire(learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return s.snapshotLocked(sess), nil
}

// Retry reloads a session that is in the error stage
func (s *sessionService) Retry(ctx context.Context, learnerID int, sessionID string) (*Snapshot, error) {
	sess, err := s.acquire(learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if sess.state.Stage != playback.StageError {
		return nil, fmt.Errorf("%w: retry requires the error stage", ErrStageMismatch)
	}
	err = s.load(ctx, sess)
	return s.snapshotLocked(sess), err
}

// Next continues past the current stage once its gate is open
func (s *sessionService) Next(ctx context.Context, learnerID int, sessionID string) (*Snapshot, error) {
	return s.advance(ctx, learnerID, sessionID, false)
}

// Skip continues past the current content stage without checking its gate. Only available in
// testing mode.
func (s *sessionService) Skip(ctx context.Context, learnerID int, sessionID string) (*Snapshot, error) {
	if !s.gate.TestingModeAllowed() {
		return nil, ErrSkipNotAllowed
	}
	return s.advance(ctx, learnerID, sessionID, true)
}

// Close stops every loop of a session, releases its media and saves its progress
func (s *sessionService) Close(ctx context.Context, learnerID int, sessionID string) error {
	sess, err := s.acquire(learnerID, sessionID)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()
	s.closeLocked(ctx, sess)
	return nil
}

// CloseIdle closes the sessions without activity for longer than the idle timeout and returns
// how many were closed.
func (s *sessionService) CloseIdle(ctx context.Context) int {
	idle := s.registry.IdleSince(s.now().Add(-s.cfg.SessionIdleTimeout))
	for _, sess := range idle {
		s.logger.Info("closing idle playback session",
			zap.String("session_id", sess.ID),
			zap.Int("assignment_id", sess.AssignmentID),
		)
		s.closeSession(ctx, sess)
	}
	return len(idle)
}

// CloseAll closes every open session with a final save. Used on shutdown.
func (s *sessionService) CloseAll(ctx context.Context) int {
	all := s.registry.All()
	for _, sess := range all {
		s.closeSession(ctx, sess)
	}
	return len(all)
}

// Wait blocks until background saves have finished
func (s *sessionService) Wait() {
	s.background.Wait()
}

// acquire returns the live session locked for the caller
func (s *sessionService) acquire(learnerID int, sessionID string) (*Session, error) {
	sess, err := s.lookup(learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

func (s *sessionService) lookup(learnerID int, sessionID string) (*Session, error) {
	sess, ok := s.registry.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.LearnerID != learnerID {
		return nil, ErrForbidden
	}
	return sess, nil
}

// load reads the assignment and the resume point and enters the resumed stage
func (s *sessionService) load(ctx context.Context, sess *Session) error {
	s.exitStage(sess)
	sess.content = nil
	sess.completion = nil
	sess.completionPending = false
	sess.score = nil
	sess.lastResult = nil

	content, err := s.deps.Content.GetModuleContent(ctx, sess.AssignmentID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrAssignmentNotFound
	}
	if err != nil {
		return s.fail(sess, "failed to load assignment", err)
	}
	if content.Assignment.LearnerID != sess.LearnerID {
		return ErrForbidden
	}

	sess.content = content
	sess.flow = playback.Flow{HasSupplemental: content.HasSupplemental()}
	if content.Quiz != nil && len(content.Quiz.Questions) > 0 {
		sess.flow.HasQuiz = true
		sess.flow.RequirePass = content.Quiz.RequirePass
	}

	facts, err := s.resumeFacts(ctx, sess)
	if err != nil {
		return s.fail(sess, "failed to load progress", err)
	}
	sess.state = sess.flow.Resume(facts)

	s.logger.Info("playback session resumed",
		zap.String("session_id", sess.ID),
		zap.Int("assignment_id", sess.AssignmentID),
		zap.String("stage", string(sess.state.Stage)),
	)
	return s.enterStage(ctx, sess)
}

func (s *sessionService) resumeFacts(ctx context.Context, sess *Session) (playback.ResumeFacts, error) {
	var facts playback.ResumeFacts
	content := sess.content

	completion, err := s.deps.Completions.GetByAssignment(ctx, sess.AssignmentID)
	if err != nil {
		return facts, fmt.Errorf("failed to get completion: %w", err)
	}
	if completion != nil {
		sess.completion = completion
		sess.score = completion.ScorePercent
		facts.CompletionExists = true
		return facts, nil
	}

	records, err := s.deps.Progress.ListByAssignment(ctx, sess.LearnerID, sess.AssignmentID)
	if err != nil {
		return facts, fmt.Errorf("failed to list progress: %w", err)
	}
	for _, rec := range records {
		switch {
		case rec.SceneID == content.Primary.ID:
			facts.PrimaryCompleted = rec.Completed
		case content.Supplemental != nil && rec.SceneID == content.Supplemental.ID:
			facts.SupplementalCompleted = rec.Completed
		}
	}

	if sess.flow.HasQuiz {
		latest, err := s.deps.Quizzes.GetLatest(ctx, sess.LearnerID, content.Quiz.ID, sess.AssignmentID)
		if err != nil {
			return facts, fmt.Errorf("failed to get quiz session: %w", err)
		}
		if latest != nil {
			facts.Attempts = latest.Attempt
			if latest.Status == models.QuizSessionOpen {
				facts.Attempts--
			} else if latest.Passed || !sess.flow.RequirePass {
				facts.AssessmentDone = true
				score := latest.ScorePercent
				sess.score = &score
			}
		}
	}
	return facts, nil
}

// fail moves the session into the error stage
func (s *sessionService) fail(sess *Session, reason string, err error) error {
	s.logger.Error(reason,
		zap.String("session_id", sess.ID),
		zap.Int("assignment_id", sess.AssignmentID),
		zap.Error(err),
	)
	s.exitStage(sess)
	sess.state = playback.Failed(reason)
	s.publish(sess, events.TypeStageChanged, sess.state)
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func (s *sessionService) advance(ctx context.Context, learnerID int, sessionID string, skip bool) (*Snapshot, error) {
	sess, err := s.acquire(learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	switch sess.state.Stage {
	case playback.StageIntro:
		next, err := sess.flow.Transition(sess.state, playback.Event{Kind: playback.EventBegin})
		if err != nil {
			return nil, err
		}
		sess.state = next
		err = s.enterStage(ctx, sess)
		return s.snapshotLocked(sess), err

	case playback.StagePrimaryContent, playback.StageSupplementalReview:
		rt := sess.stage
		if rt == nil {
			return nil, fmt.Errorf("%w: stage is not active", ErrStageMismatch)
		}
		if !skip {
			if unmet := s.gate.Unmet(rt.conditions, rt.gateState(s.cfg.TestingMode)); len(unmet) > 0 {
				return nil, &GateError{Unmet: unmet}
			}
		}
		if !rt.tracker.Completed() {
			rt.tracker.MarkExternalComplete(nil)
			rt.dirty = true
		}
		if err := s.persistStage(ctx, sess); err != nil {
			return s.snapshotLocked(sess), err
		}

		next, err := sess.flow.Transition(sess.state, playback.Event{Kind: playback.EventStageCompleted})
		if err != nil {
			return nil, err
		}
		next, err = sess.flow.Transition(next, playback.Event{Kind: playback.EventNext})
		if err != nil {
			return nil, err
		}
		s.logger.Info("stage completed",
			zap.String("session_id", sess.ID),
			zap.Int("assignment_id", sess.AssignmentID),
			zap.String("stage", string(sess.state.Stage)),
			zap.Bool("skipped", skip),
		)
		s.exitStage(sess)
		sess.state = next
		err = s.enterStage(ctx, sess)
		return s.snapshotLocked(sess), err

	default:
		return nil, fmt.Errorf("%w: cannot continue from %s", ErrStageMismatch, sess.state.Stage)
	}
}

// enterStage activates the component of the current stage. Only failures that leave the stage
// unverifiable are returned; persistence failures are kept on the session for a retry.
func (s *sessionService) enterStage(ctx context.Context, sess *Session) error {
	var err error
	switch sess.state.Stage {
	case playback.StagePrimaryContent:
		err = s.enterContent(ctx, sess, sess.content.Primary)
	case playback.StageSupplementalReview:
		err = s.enterContent(ctx, sess, *sess.content.Supplemental)
	case playback.StageAssessment:
		s.enterAssessment(ctx, sess)
	case playback.StageCompletion:
		s.enterCompletion(ctx, sess)
	}
	if err != nil {
		return err
	}
	s.publish(sess, events.TypeStageChanged, sess.state)
	return nil
}

func (s *sessionService) enterContent(ctx context.Context, sess *Session, scene models.Scene) error {
	conds, err := playback.RequirementsFor(scene, s.cfg.Tracker.CompletionThreshold)
	if err != nil {
		return s.fail(sess, "unsupported scene content", err)
	}
	rec, err := s.deps.Progress.Get(ctx, sess.LearnerID, scene.ID, sess.AssignmentID)
	if err != nil {
		return s.fail(sess, "failed to load stage progress", err)
	}

	rt := &stageRuntime{
		stage:       sess.state.Stage,
		scene:       scene,
		tracker:     playback.NewTracker(s.cfg.Tracker, rec),
		conditions:  conds,
		lastAccrual: s.now(),
	}
	if rec != nil {
		rt.timeSpent = float64(rec.TimeSpentSeconds)
	}

	switch c := scene.Content.(type) {
	case models.VideoContent:
		rt.clock = playback.NewMediaClock(c.SourceURL, c.ExpectedDuration, rt.tracker.ResumePosition())
	case models.DocumentContent:
		if c.Narrated() {
			rt.clock = playback.NewMediaClock(c.AudioURL, scene.ExpectedDuration(), rt.tracker.ResumePosition())
			s.attachSync(sess, rt)
		}
	}
	sess.stage = rt

	if s.deps.Prober != nil {
		if _, err := s.deps.Prober.Probe(ctx, scene); err != nil {
			s.fallback(sess, rt, err.Error())
		}
	}

	if rec == nil {
		// records are created lazily on first entry
		_ = s.persistStage(ctx, sess)
	}
	return nil
}

// attachSync builds the transcript sync engine once the timing of the document is known
func (s *sessionService) attachSync(sess *Session, rt *stageRuntime) {
	doc, ok := rt.scene.Content.(models.DocumentContent)
	if !ok || rt.sync != nil || rt.clock == nil {
		return
	}
	timing, err := playback.TimingFor(doc, rt.clock.Duration(), s.cfg.FirstSegmentAllowance)
	if errors.Is(err, playback.ErrUnknownDuration) {
		return
	}
	if err != nil {
		s.logger.Warn("no transcript timing for scene",
			zap.String("session_id", sess.ID),
			zap.Int("scene_id", rt.scene.ID),
			zap.Error(err),
		)
		return
	}
	sink := focusSink{publish: func(t events.Type, data any) { s.publish(sess, t, data) }}
	engine, err := playback.NewScrollSync(timing, rt.clock, sink, s.cfg.FrameInterval)
	if err != nil {
		s.logger.Warn("failed to start transcript sync",
			zap.String("session_id", sess.ID),
			zap.Int("scene_id", rt.scene.ID),
			zap.Error(err),
		)
		return
	}
	rt.sync = engine
}

// fallback lets a stage whose media failed be completed without the media
func (s *sessionService) fallback(sess *Session, rt *stageRuntime, reason string) {
	if rt.mediaFallback {
		return
	}
	rt.mediaFallback = true
	rt.fallbackReason = reason
	if rt.sync != nil {
		rt.sync.Stop()
	}
	s.logger.Warn("media unavailable, stage switched to fallback completion",
		zap.String("session_id", sess.ID),
		zap.Int("scene_id", rt.scene.ID),
		zap.String("reason", reason),
	)
	s.publish(sess, events.TypeMediaFallback, map[string]any{"sceneId": rt.scene.ID, "reason": reason})
	s.publishGate(sess, rt)
}

func (s *sessionService) enterAssessment(ctx context.Context, sess *Session) {
	if _, err := s.ensureAttempt(ctx, sess); err != nil {
		s.logger.Warn("failed to open quiz attempt, will retry on submit",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
}

// enterCompletion writes the completion record of the assignment and queues its certificate.
// A failed write is kept pending for Save.
func (s *sessionService) enterCompletion(ctx context.Context, sess *Session) {
	if sess.completion == nil && !s.writeCompletion(ctx, sess) {
		return
	}
	s.queueCertificate(ctx, sess)
}

func (s *sessionService) writeCompletion(ctx context.Context, sess *Session) bool {
	rec := &models.CompletionRecord{
		AssignmentID: sess.AssignmentID,
		LearnerID:    sess.LearnerID,
		ScorePercent: sess.score,
		CompletedAt:  s.now().UTC(),
	}
	created, err := s.deps.Completions.Create(ctx, rec)
	if err != nil {
		sess.completionPending = true
		s.logger.Error("failed to save completion",
			zap.String("session_id", sess.ID),
			zap.Int("assignment_id", sess.AssignmentID),
			zap.Error(err),
		)
		s.publish(sess, events.TypeSaveFailed, map[string]string{"error": err.Error()})
		return false
	}
	sess.completionPending = false
	sess.completion = rec

	s.logger.Info("assignment completed",
		zap.String("session_id", sess.ID),
		zap.Int("assignment_id", sess.AssignmentID),
		zap.Bool("created", created),
	)
	s.publish(sess, events.TypeFlowCompleted, rec)
	return true
}

// queueCertificate enqueues certificate issuance for a stored completion that has none queued
// yet. Failures are retried by Open, Save and autosave; the task id keeps a retried enqueue
// from producing a second task.
func (s *sessionService) queueCertificate(ctx context.Context, sess *Session) {
	rec := sess.completion
	if s.deps.Certificates == nil || rec == nil || rec.ID == 0 || rec.CertificateQueuedAt != nil {
		return
	}
	if err := s.deps.Certificates.Enqueue(ctx, *rec); err != nil {
		s.logger.Error("failed to enqueue certificate issuance",
			zap.Int("assignment_id", sess.AssignmentID),
			zap.Error(err),
		)
		return
	}
	at := s.now().UTC()
	if err := s.deps.Completions.MarkCertificateQueued(ctx, rec.ID, at); err != nil {
		s.logger.Warn("failed to record queued certificate",
			zap.Int("assignment_id", sess.AssignmentID),
			zap.Error(err),
		)
		return
	}
	rec.CertificateQueuedAt = &at
}

func (s *sessionService) exitStage(sess *Session) {
	if sess.stage != nil {
		sess.stage.release()
		sess.stage = nil
	}
	sess.attempt = nil
}

// persistStage saves the progress of the active content stage
func (s *sessionService) persistStage(ctx context.Context, sess *Session) error {
	rt := sess.stage
	if rt == nil {
		return nil
	}
	rt.accrue(s.now(), sess.LastActivity())
	rec := rt.record(sess.LearnerID, sess.AssignmentID)
	if err := s.deps.Progress.Upsert(ctx, rec); err != nil {
		rt.saveErr = err
		s.logger.Error("failed to save progress",
			zap.String("session_id", sess.ID),
			zap.Int("scene_id", rt.scene.ID),
			zap.Int("assignment_id", sess.AssignmentID),
			zap.Error(err),
		)
		s.publish(sess, events.TypeSaveFailed, map[string]string{"error": err.Error()})
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	rt.saveErr = nil
	rt.dirty = false
	return nil
}

func (s *sessionService) closeSession(ctx context.Context, sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.closeLocked(ctx, sess)
}

func (s *sessionService) closeLocked(ctx context.Context, sess *Session) {
	if sess.closed {
		return
	}
	if sess.stage != nil {
		if err := s.persistStage(ctx, sess); err != nil {
			s.logger.Warn("final save failed on close",
				zap.String("session_id", sess.ID),
				zap.Error(err),
			)
		}
	}
	s.exitStage(sess)
	sess.closed = true
	sess.cancel()
	s.registry.Remove(sess)
	s.publish(sess, events.TypeSessionClosed, nil)
	if s.deps.Streams != nil {
		s.deps.Streams.CloseSession(sess.ID)
	}
}

func (s *sessionService) publish(sess *Session, typ events.Type, data any) {
	if s.deps.Events == nil {
		return
	}
	ev := events.Event{
		SessionID:    sess.ID,
		AssignmentID: sess.AssignmentID,
		LearnerID:    sess.LearnerID,
		Type:         typ,
		Data:         data,
		At:           s.now().UTC(),
	}
	if err := s.deps.Events.Publish(context.Background(), ev); err != nil {
		s.logger.Debug("session event not published", zap.String("type", string(typ)), zap.Error(err))
	}
}

func (s *sessionService) publishGate(sess *Session, rt *stageRuntime) {
	unmet := s.gate.Unmet(rt.conditions, rt.gateState(s.cfg.TestingMode))
	s.publish(sess, events.TypeGateChanged, GateView{CanProceed: len(unmet) == 0, Unmet: unmet})
}

func (s *sessionService) snapshotLocked(sess *Session) *Snapshot {
	snap := &Snapshot{
		SessionID:    sess.ID,
		AssignmentID: sess.AssignmentID,
		LearnerID:    sess.LearnerID,
		Flow:         sess.state,
		Completion:   sess.completion,
		PendingSave:  sess.completionPending,
		TestingMode:  s.gate.TestingModeAllowed(),
	}
	if sess.content != nil {
		snap.Title = sess.content.Title
	}

	if rt := sess.stage; rt != nil {
		unmet := s.gate.Unmet(rt.conditions, rt.gateState(s.cfg.TestingMode))
		view := &StageView{
			Scene:            rt.scene,
			Percentage:       rt.tracker.Percentage(),
			Completed:        rt.tracker.Completed(),
			ResumePosition:   rt.tracker.ResumePosition(),
			Certified:        rt.certified,
			MediaFallback:    rt.mediaFallback,
			FallbackReason:   rt.fallbackReason,
			TimeSpentSeconds: int(rt.timeSpent),
			Gate:             GateView{CanProceed: len(unmet) == 0, Unmet: unmet},
		}
		if rt.sync != nil {
			view.Sync = &SyncView{SyncState: rt.sync.State(), Segments: rt.sync.Segments()}
		}
		if rt.saveErr != nil {
			view.SaveError = rt.saveErr.Error()
			snap.PendingSave = true
		}
		snap.Stage = view
	}

	if sess.state.Stage == playback.StageAssessment && sess.content != nil && sess.content.Quiz != nil {
		qv := &QuizView{
			Quiz:       *sess.content.Quiz,
			Attempts:   sess.state.Attempts,
			LastResult: sess.lastResult,
		}
		if sess.attempt != nil {
			qv.Attempt = sess.attempt.Attempt
		}
		snap.Quiz = qv
	}
	return snap
}
