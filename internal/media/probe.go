// Package media checks that a scene's media source can be played before a stage starts
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/corptrain/playback/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrMediaUnavailable is returned when the source is missing or cannot be reached
	ErrMediaUnavailable = errors.New("media unavailable")
	// ErrUnsupportedFormat is returned when the source does not serve a playable format
	ErrUnsupportedFormat = errors.New("unsupported media format")
)

// ProbeResult describes a reachable media source
type ProbeResult struct {
	Locator         string  `json:"locator"`
	Available       bool    `json:"available"`
	ContentType     string  `json:"contentType,omitempty"`
	ContentLength   int64   `json:"contentLength,omitempty"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// Config controls probe behaviour
type Config struct {
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Prober issues lightweight HTTP requests against media sources
type Prober struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger
}

// NewProber creates a prober. A nil client gets a client with cfg.Timeout.
func NewProber(client *http.Client, cfg Config, logger *zap.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Prober{client: client, cfg: cfg, logger: logger}
}

// Probe checks the media of a scene. Scenes without media (a document with no narration)
// are reported available without a request.
func (p *Prober) Probe(ctx context.Context, scene models.Scene) (*ProbeResult, error) {
	locator := scene.Locator()
	res := &ProbeResult{Locator: locator, DurationSeconds: scene.ExpectedDuration()}
	if locator == "" {
		if doc, ok := scene.Content.(models.DocumentContent); ok && !doc.Narrated() {
			res.Available = true
			return res, nil
		}
		return nil, fmt.Errorf("%w: scene %d has no source", ErrMediaUnavailable, scene.ID)
	}

	resp, err := p.fetchHead(ctx, locator)
	if err != nil {
		p.logger.Warn("media probe failed",
			zap.Int("scene_id", scene.ID),
			zap.String("locator", locator),
			zap.Error(err),
		)
		return nil, err
	}

	res.ContentType = resp.contentType
	res.ContentLength = resp.contentLength
	if !acceptable(scene.Content, res.ContentType) {
		return nil, fmt.Errorf("%w: %q for %s", ErrUnsupportedFormat, res.ContentType, scene.Content.Kind())
	}
	res.Available = true
	return res, nil
}

type headResult struct {
	contentType   string
	contentLength int64
}

// fetchHead tries HEAD first and falls back to a one-byte ranged GET for servers that
// reject HEAD. Transient failures are retried with exponential backoff.
func (p *Prober) fetchHead(ctx context.Context, locator string) (*headResult, error) {
	method := http.MethodHead
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := p.backoff(ctx, attempt); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, locator, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid locator: %v", ErrMediaUnavailable, err)
		}
		if method == http.MethodGet {
			req.Header.Set("Range", "bytes=0-0")
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			if retryableNetErr(err) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
			return &headResult{
				contentType:   resp.Header.Get("Content-Type"),
				contentLength: contentLength(resp),
			}, nil
		case method == http.MethodHead && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented):
			method = http.MethodGet
			attempt--
			continue
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		default:
			return nil, fmt.Errorf("%w: status %d", ErrMediaUnavailable, resp.StatusCode)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrMediaUnavailable, lastErr)
}

func (p *Prober) backoff(ctx context.Context, attempt int) error {
	d := p.cfg.BaseDelay << (attempt - 1)
	if d > p.cfg.MaxDelay {
		d = p.cfg.MaxDelay
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func contentLength(resp *http.Response) int64 {
	// a ranged response carries the full size after the slash of Content-Range
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if i := strings.LastIndexByte(cr, '/'); i >= 0 {
			var n int64
			if _, err := fmt.Sscan(cr[i+1:], &n); err == nil {
				return n
			}
		}
	}
	return resp.ContentLength
}

func retryableNetErr(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "eof")
}

// acceptable reports whether contentType can be played for the content kind.
// Servers that send no type or a generic binary type are trusted.
func acceptable(content models.Content, contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	if mediaType == "application/octet-stream" {
		return true
	}

	switch content.(type) {
	case models.VideoContent:
		return strings.HasPrefix(mediaType, "video/") ||
			mediaType == "application/vnd.apple.mpegurl" ||
			mediaType == "application/x-mpegurl" ||
			mediaType == "application/dash+xml"
	case models.DocumentContent:
		return strings.HasPrefix(mediaType, "audio/")
	case models.PackageContent:
		return mediaType == "text/html" || mediaType == "application/xhtml+xml"
	default:
		return false
	}
}
