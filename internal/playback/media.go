package playback

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/corptrain/playback/internal/models"
)

// ErrMediaReleased is returned when a released media clock receives a report
var ErrMediaReleased = errors.New("media handle released")

// MediaClock is the scoped handle of the single media element of a stage.
//
// It tracks the position reported by the client and extrapolates it while playing, so the
// sync loop can read a live position between reports. A clock is acquired on stage entry
// and released on stage exit; once released it is paused, detached from its source and
// rejects further reports.
type MediaClock struct {
	mu         sync.Mutex
	now        func() time.Time
	source     string
	position   float64
	duration   float64
	playing    bool
	reportedAt time.Time
	released   bool
}

// NewMediaClock acquires a paused clock for the given media source, positioned at start.
// A resumed stage passes its saved position so the clock reads it before the first report.
func NewMediaClock(source string, duration, start float64) *MediaClock {
	return newMediaClock(source, duration, start, time.Now)
}

func newMediaClock(source string, duration, start float64, now func() time.Time) *MediaClock {
	c := &MediaClock{now: now, source: source}
	if validDuration(duration) {
		c.duration = duration
	}
	if !math.IsNaN(start) && !math.IsInf(start, 0) && start > 0 {
		c.position = start
		if c.duration > 0 && c.position > c.duration {
			c.position = c.duration
		}
	}
	c.reportedAt = now()
	return c
}

// Report applies a client report of the media state
func (c *MediaClock) Report(st models.AudioState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return ErrMediaReleased
	}
	if validDuration(st.Duration) {
		c.duration = st.Duration
	}
	if !math.IsNaN(st.CurrentTime) && st.CurrentTime >= 0 {
		c.position = st.CurrentTime
	}
	c.playing = st.Playing
	c.reportedAt = c.now()
	return nil
}

// CurrentTime returns the live media position in seconds
func (c *MediaClock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos := c.position
	if c.playing {
		pos += c.now().Sub(c.reportedAt).Seconds()
	}
	if c.duration > 0 && pos > c.duration {
		pos = c.duration
	}
	return pos
}

// Duration returns the media duration in seconds, 0 when unknown
func (c *MediaClock) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// Playing reports whether the media is playing
func (c *MediaClock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Source returns the attached media locator, empty once released
func (c *MediaClock) Source() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Release pauses the media and detaches its source. It is safe to call more than once.
func (c *MediaClock) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}
	if c.playing {
		c.position += c.now().Sub(c.reportedAt).Seconds()
	}
	c.playing = false
	c.source = ""
	c.released = true
}

// Released reports whether the clock has been released
func (c *MediaClock) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}
