package playback

import (
	"context"
	"sync"
	"time"

	"github.com/corptrain/playback/internal/models"
)

// DefaultFrameInterval is the period of the sync loop
const DefaultFrameInterval = 50 * time.Millisecond

// AudioClock is the source of the live narration position
type AudioClock interface {
	CurrentTime() float64
	Duration() float64
	Playing() bool
}

// Scroller brings a transcript segment into view.
//
// ScrollTo is called with the engine lock held and must not call back into the engine.
type Scroller interface {
	ScrollTo(index int, segment models.Segment)
}

// SyncState is a point-in-time view of a ScrollSync
type SyncState struct {
	ActiveIndex     int        `json:"activeIndex"`
	AudioTime       float64    `json:"audioTime"`
	ProgressPercent float64    `json:"progressPercent"`
	Override        bool       `json:"override"`
	OverrideAt      float64    `json:"overrideAt,omitempty"`
	OverrideSince   *time.Time `json:"overrideSince,omitempty"`
	Running         bool       `json:"running"`
}

// ScrollSync keeps a transcript focused on the segment matching the live audio position.
//
// While audio plays, a frame loop resolves the active segment and scrolls to it when it
// changes. A user scroll during playback sets a manual override that suspends scrolling
// (progress keeps updating) until Resync re-anchors the view to the live audio position.
type ScrollSync struct {
	mu       sync.Mutex
	timing   models.ScrollTimingConfig
	starts   []float64
	clock    AudioClock
	scroller Scroller
	interval time.Duration
	now      func() time.Time

	active        int
	progress      float64
	audioTime     float64
	override      bool
	overrideAt    float64
	overrideSince time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScrollSync creates an engine over a validated timing config
func NewScrollSync(timing models.ScrollTimingConfig, clock AudioClock, scroller Scroller, interval time.Duration) (*ScrollSync, error) {
	if err := ValidateTiming(timing); err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &ScrollSync{
		timing:   timing,
		starts:   timing.StartTimes(),
		clock:    clock,
		scroller: scroller,
		interval: interval,
		now:      time.Now,
		active:   -1,
	}, nil
}

// Segments returns the transcript segments
func (s *ScrollSync) Segments() []models.Segment {
	return s.timing.Segments
}

// Tick runs one frame: it refreshes progress and, unless a manual override is active,
// scrolls to the segment matching the live audio time when it changed.
func (s *ScrollSync) Tick() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.clock.CurrentTime()
	s.refreshProgress(t)
	if !s.override {
		s.focus(ResolveSegment(s.starts, t))
	}
	return s.stateLocked()
}

// UserScrolled records a scroll gesture on the transcript. It only sets the manual override
// while audio is playing and reports whether it did.
func (s *ScrollSync) UserScrolled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.clock.Playing() {
		return false
	}
	if !s.override {
		s.override = true
		s.overrideAt = s.clock.CurrentTime()
		s.overrideSince = s.now()
	}
	return true
}

// Resync clears the manual override and jumps to the segment matching the live audio time.
// It returns the focused segment index.
func (s *ScrollSync) Resync() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.override = false
	s.overrideAt = 0
	s.overrideSince = time.Time{}

	t := s.clock.CurrentTime()
	s.refreshProgress(t)
	idx := ResolveSegment(s.starts, t)
	s.active = idx
	s.scroller.ScrollTo(idx, s.timing.Segments[idx])
	return idx
}

// Start runs the frame loop until ctx is done, Stop is called or the audio stops playing.
// It reports false when the loop was already running.
func (s *ScrollSync) Start(ctx context.Context) bool {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.run(ctx, done)
	return true
}

// Stop ends the frame loop and waits for it to exit
func (s *ScrollSync) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the frame loop is active
func (s *ScrollSync) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// State returns the current engine state
func (s *ScrollSync) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *ScrollSync) run(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		s.mu.Lock()
		if s.done == done {
			s.done = nil
			s.cancel = nil
		}
		s.mu.Unlock()
		close(done)
	}()

	s.Tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.clock.Playing() {
				return
			}
			s.Tick()
		}
	}
}

func (s *ScrollSync) focus(idx int) {
	if idx < 0 || idx == s.active {
		return
	}
	s.active = idx
	s.scroller.ScrollTo(idx, s.timing.Segments[idx])
}

func (s *ScrollSync) refreshProgress(t float64) {
	s.audioTime = t
	d := s.clock.Duration()
	if !validDuration(d) {
		d = s.timing.AudioDurationSeconds
	}
	if !validDuration(d) {
		s.progress = 0
		return
	}
	ratio := t / d
	if ratio > 1 {
		ratio = 1
	}
	s.progress = clampPercent(ratio * 100)
}

func (s *ScrollSync) stateLocked() SyncState {
	st := SyncState{
		ActiveIndex:     s.active,
		AudioTime:       s.audioTime,
		ProgressPercent: s.progress,
		Override:        s.override,
		Running:         s.done != nil,
	}
	if s.override {
		since := s.overrideSince
		st.OverrideAt = s.overrideAt
		st.OverrideSince = &since
	}
	return st
}
