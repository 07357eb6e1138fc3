package models

import (
	"encoding/json"
	"fmt"
)

// ContentKind represents the kind of a playable scene
type ContentKind string

const (
	ContentKindVideo    ContentKind = "video"
	ContentKindPackage  ContentKind = "interactive-package"
	ContentKindDocument ContentKind = "plan-document"
)

// ParseContentKind converts a stored kind into a ContentKind.
//
// Unknown kinds are rejected instead of being treated as a default kind.
func ParseContentKind(s string) (ContentKind, error) {
	switch ContentKind(s) {
	case ContentKindVideo, ContentKindPackage, ContentKindDocument:
		return ContentKind(s), nil
	default:
		return "", fmt.Errorf("unknown content kind %q", s)
	}
}

// SceneRole represents the position of a scene in the learner flow
type SceneRole string

const (
	SceneRolePrimary      SceneRole = "primary"
	SceneRoleSupplemental SceneRole = "supplemental"
)

// Content is the closed set of scene payloads.
//
// Only VideoContent, PackageContent and DocumentContent implement it.
type Content interface {
	Kind() ContentKind
	isContent()
}

// VideoContent is a video scene
type VideoContent struct {
	SourceURL        string  `json:"sourceUrl"`
	ExpectedDuration float64 `json:"expectedDuration"`
}

// PackageContent is an interactive (SCORM) package treated as a black box
type PackageContent struct {
	LaunchURL string `json:"launchUrl"`
}

// DocumentContent is a plan document, optionally narrated by an audio track
type DocumentContent struct {
	DocumentURL      string              `json:"documentUrl"`
	AudioURL         string              `json:"audioUrl,omitempty"`
	Transcript       string              `json:"transcript,omitempty"`
	ExpectedDuration float64             `json:"expectedDuration,omitempty"`
	Timing           *ScrollTimingConfig `json:"timing,omitempty"`
}

func (VideoContent) Kind() ContentKind    { return ContentKindVideo }
func (PackageContent) Kind() ContentKind  { return ContentKindPackage }
func (DocumentContent) Kind() ContentKind { return ContentKindDocument }

func (VideoContent) isContent()    {}
func (PackageContent) isContent()  {}
func (DocumentContent) isContent() {}

// Narrated reports whether the document has an audio track to follow
func (d DocumentContent) Narrated() bool {
	return d.AudioURL != ""
}

// Scene is one playable content unit of a training module
type Scene struct {
	ID                    int       `json:"id"`
	ModuleID              int       `json:"moduleId"`
	Role                  SceneRole `json:"role"`
	Title                 string    `json:"title"`
	RequiresCertification bool      `json:"requiresCertification"`
	Content               Content   `json:"-"`
}

// MarshalJSON flattens the content variant next to its kind
func (s Scene) MarshalJSON() ([]byte, error) {
	type alias Scene
	var kind ContentKind
	if s.Content != nil {
		kind = s.Content.Kind()
	}
	return json.Marshal(struct {
		alias
		Kind    ContentKind `json:"kind"`
		Content Content     `json:"content"`
	}{alias: alias(s), Kind: kind, Content: s.Content})
}

// Locator returns the media locator of the scene, if any
func (s Scene) Locator() string {
	switch c := s.Content.(type) {
	case VideoContent:
		return c.SourceURL
	case PackageContent:
		return c.LaunchURL
	case DocumentContent:
		return c.AudioURL
	default:
		return ""
	}
}

// ExpectedDuration returns the authored media duration in seconds, 0 when unknown
func (s Scene) ExpectedDuration() float64 {
	switch c := s.Content.(type) {
	case VideoContent:
		return c.ExpectedDuration
	case DocumentContent:
		if c.Timing != nil && c.Timing.AudioDurationSeconds > 0 {
			return c.Timing.AudioDurationSeconds
		}
		return c.ExpectedDuration
	default:
		return 0
	}
}
