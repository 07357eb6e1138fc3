package playback

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/corptrain/playback/internal/models"
)

// DefaultFirstSegmentAllowance is the time given to the first transcript segment when timing
// is derived rather than authored. Introductions are read more slowly than body text.
const DefaultFirstSegmentAllowance = 20.0

var (
	ErrNoSegments      = errors.New("timing has no segments")
	ErrUnknownDuration = errors.New("audio duration is unknown")
)

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	sentenceEnd    = regexp.MustCompile(`([.!?])\s+`)
)

// maxSegmentChars bounds a segment built from sentences when the transcript has no paragraphs
const maxSegmentChars = 400

// ResolveSegment returns the index of the active segment for audio time t: the last index
// whose start time is <= t. Times before the first start resolve to 0 and times past the
// last start keep the last segment active.
func ResolveSegment(starts []float64, t float64) int {
	if len(starts) == 0 {
		return -1
	}
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > t })
	if i == 0 {
		return 0
	}
	return i - 1
}

// ValidateTiming checks the ordering invariants of a timing config
func ValidateTiming(cfg models.ScrollTimingConfig) error {
	if len(cfg.Segments) == 0 {
		return ErrNoSegments
	}
	for i, seg := range cfg.Segments {
		if math.IsNaN(seg.StartTimeSeconds) || math.IsInf(seg.StartTimeSeconds, 0) {
			return fmt.Errorf("segment %d has a non-finite start time", i)
		}
	}
	if cfg.Segments[0].StartTimeSeconds != 0 {
		return fmt.Errorf("first segment must start at 0, got %.2f", cfg.Segments[0].StartTimeSeconds)
	}
	for i := 1; i < len(cfg.Segments); i++ {
		if cfg.Segments[i].StartTimeSeconds < cfg.Segments[i-1].StartTimeSeconds {
			return fmt.Errorf("segment %d starts before segment %d", i, i-1)
		}
	}
	return nil
}

// SegmentTranscript splits a transcript into display segments.
//
// Paragraphs (blank-line separated) become segments. A transcript without paragraph breaks
// is grouped sentence by sentence into segments of bounded length.
func SegmentTranscript(transcript string) []string {
	transcript = strings.TrimSpace(strings.ReplaceAll(transcript, "\r\n", "\n"))
	if transcript == "" {
		return nil
	}

	var segments []string
	for _, p := range paragraphSplit.Split(transcript, -1) {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			segments = append(segments, p)
		}
	}
	if len(segments) > 1 {
		return segments
	}

	sentences := sentenceEnd.ReplaceAllString(segments[0], "$1\n")
	segments = segments[:0]
	var current strings.Builder
	for _, s := range strings.Split(sentences, "\n") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(s)+1 > maxSegmentChars {
			segments = append(segments, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}

// DeriveTiming builds a timing config for texts when none was authored.
//
// Segment 0 gets firstAllowance seconds and the rest of the audio is split evenly across the
// remaining segments. When the audio is not longer than the allowance, all segments share the
// audio evenly.
func DeriveTiming(texts []string, audioDuration, firstAllowance float64) (models.ScrollTimingConfig, error) {
	if len(texts) == 0 {
		return models.ScrollTimingConfig{}, ErrNoSegments
	}
	if !validDuration(audioDuration) {
		return models.ScrollTimingConfig{}, ErrUnknownDuration
	}
	if firstAllowance < 0 {
		firstAllowance = 0
	}

	cfg := models.ScrollTimingConfig{
		Segments:             make([]models.Segment, len(texts)),
		AudioDurationSeconds: audioDuration,
	}

	n := len(texts)
	var starts []float64
	if n == 1 {
		starts = []float64{0}
	} else if audioDuration <= firstAllowance {
		step := audioDuration / float64(n)
		starts = make([]float64, n)
		for i := range starts {
			starts[i] = float64(i) * step
		}
	} else {
		step := (audioDuration - firstAllowance) / float64(n-1)
		starts = make([]float64, n)
		for i := 1; i < n; i++ {
			starts[i] = firstAllowance + float64(i-1)*step
		}
	}

	for i, text := range texts {
		cfg.Segments[i] = models.Segment{
			Text:             text,
			StartTimeSeconds: starts[i],
			Label:            fmt.Sprintf("Part %d", i+1),
		}
	}
	return cfg, nil
}

// TimingFor returns the authored timing of a document when valid, otherwise timing derived from
// its transcript and the given audio duration.
func TimingFor(doc models.DocumentContent, audioDuration, firstAllowance float64) (models.ScrollTimingConfig, error) {
	if doc.Timing != nil {
		if err := ValidateTiming(*doc.Timing); err != nil {
			return models.ScrollTimingConfig{}, fmt.Errorf("invalid authored timing: %w", err)
		}
		cfg := *doc.Timing
		if !validDuration(cfg.AudioDurationSeconds) {
			cfg.AudioDurationSeconds = audioDuration
		}
		return cfg, nil
	}
	return DeriveTiming(SegmentTranscript(doc.Transcript), audioDuration, firstAllowance)
}
