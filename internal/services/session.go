package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corptrain/playback/internal/events"
	"github.com/corptrain/playback/internal/models"
	"github.com/corptrain/playback/internal/playback"
)

// Session is one learner's live run through an assignment.
//
// All fields below mu are guarded by it. ID, LearnerID and AssignmentID never change.
type Session struct {
	ID           string
	LearnerID    int
	AssignmentID int

	activity atomic.Int64

	mu                sync.Mutex
	ctx               context.Context
	cancel            context.CancelFunc
	content           *models.ModuleContent
	flow              playback.Flow
	state             playback.FlowState
	stage             *stageRuntime
	attempt           *models.QuizSession
	lastResult        *playback.QuizResult
	score             *float64
	completion        *models.CompletionRecord
	completionPending bool
	closed            bool
}

func newSession(id string, learnerID, assignmentID int, now time.Time) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:           id,
		LearnerID:    learnerID,
		AssignmentID: assignmentID,
		ctx:          ctx,
		cancel:       cancel,
		state:        playback.FlowState{Stage: playback.StageIntro},
	}
	s.touch(now)
	return s
}

// LastActivity returns the time of the last learner interaction
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.activity.Load())
}

func (s *Session) touch(now time.Time) {
	s.activity.Store(now.UnixNano())
}

// stageRuntime is the live state of a content stage: the tracker, the media handle and,
// for narrated documents, the transcript sync engine.
type stageRuntime struct {
	stage          playback.Stage
	scene          models.Scene
	tracker        *playback.Tracker
	conditions     []playback.Condition
	certified      bool
	mediaFallback  bool
	fallbackReason string
	clock          *playback.MediaClock
	sync           *playback.ScrollSync
	timeSpent      float64
	lastAccrual    time.Time
	dirty          bool
	saveErr        error
}

// accrue adds the time between the previous accrual and now to the time spent. Time after the
// last learner activity is not counted.
func (rt *stageRuntime) accrue(now, lastActivity time.Time) {
	end := now
	if lastActivity.Before(end) {
		end = lastActivity
	}
	if rt.lastAccrual.IsZero() {
		rt.lastAccrual = end
		return
	}
	if end.After(rt.lastAccrual) {
		rt.timeSpent += end.Sub(rt.lastAccrual).Seconds()
		rt.lastAccrual = end
	}
}

// unsaved reports whether the stage has changes or active time the store does not have yet
func (rt *stageRuntime) unsaved(lastActivity time.Time) bool {
	return rt.dirty || rt.saveErr != nil || lastActivity.After(rt.lastAccrual)
}

func (rt *stageRuntime) record(learnerID, assignmentID int) *models.ProgressRecord {
	snap := rt.tracker.Snapshot()
	return &models.ProgressRecord{
		LearnerID:        learnerID,
		SceneID:          rt.scene.ID,
		AssignmentID:     assignmentID,
		PositionSeconds:  snap.PositionSeconds,
		DurationSeconds:  snap.DurationSeconds,
		Percentage:       snap.Percentage,
		Completed:        snap.Completed,
		CompletedAt:      snap.CompletedAt,
		Score:            snap.Score,
		TimeSpentSeconds: int(rt.timeSpent),
	}
}

func (rt *stageRuntime) gateState(testingMode bool) playback.GateState {
	return playback.GateState{
		Percentage:    rt.tracker.Percentage(),
		Completed:     rt.tracker.Completed(),
		Certified:     rt.certified,
		MediaFallback: rt.mediaFallback,
		TestingMode:   testingMode,
	}
}

// release stops the sync loop and detaches the media
func (rt *stageRuntime) release() {
	if rt.sync != nil {
		rt.sync.Stop()
	}
	if rt.clock != nil {
		rt.clock.Release()
	}
}

// Snapshot is what a client renders for a session
type Snapshot struct {
	SessionID    string                   `json:"sessionId"`
	AssignmentID int                      `json:"assignmentId"`
	LearnerID    int                      `json:"learnerId"`
	Title        string                   `json:"title,omitempty"`
	Flow         playback.FlowState       `json:"flow"`
	Stage        *StageView               `json:"stage,omitempty"`
	Quiz         *QuizView                `json:"quiz,omitempty"`
	Completion   *models.CompletionRecord `json:"completion,omitempty"`
	PendingSave  bool                     `json:"pendingSave"`
	TestingMode  bool                     `json:"testingMode"`
}

// StageView describes the active content stage
type StageView struct {
	Scene            models.Scene `json:"scene"`
	Percentage       float64      `json:"percentage"`
	Completed        bool         `json:"completed"`
	ResumePosition   float64      `json:"resumePosition"`
	Certified        bool         `json:"certified"`
	MediaFallback    bool         `json:"mediaFallback"`
	FallbackReason   string       `json:"fallbackReason,omitempty"`
	TimeSpentSeconds int          `json:"timeSpentSeconds"`
	Gate             GateView     `json:"gate"`
	Sync             *SyncView    `json:"sync,omitempty"`
	SaveError        string       `json:"saveError,omitempty"`
}

// GateView is the evaluated continue gate
type GateView struct {
	CanProceed bool                 `json:"canProceed"`
	Unmet      []playback.Condition `json:"unmet,omitempty"`
}

// SyncView is the transcript sync state of a narrated document
type SyncView struct {
	playback.SyncState
	Segments []models.Segment `json:"segments"`
}

// QuizView describes the assessment stage
type QuizView struct {
	Quiz       models.Quiz           `json:"quiz"`
	Attempt    int                   `json:"attempt"`
	Attempts   int                   `json:"attempts"`
	LastResult *playback.QuizResult `json:"lastResult,omitempty"`
}

// focusSink publishes transcript focus changes of one session
type focusSink struct {
	publish func(events.Type, any)
}

// ScrollTo implements playback.Scroller
func (f focusSink) ScrollTo(index int, segment models.Segment) {
	f.publish(events.TypeSegmentFocused, map[string]any{
		"index":            index,
		"label":            segment.Label,
		"startTimeSeconds": segment.StartTimeSeconds,
	})
}
