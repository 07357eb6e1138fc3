package models

import "time"

// ProgressRecord represents a learner's progress on one scene of one assignment
//
// Records are keyed by the (LearnerID, SceneID, AssignmentID) triple and are never duplicated.
// Completed is monotonic: once stored as true, it stays true.
type ProgressRecord struct {
	ID               int        `json:"id"`
	LearnerID        int        `json:"learnerId"`
	SceneID          int        `json:"sceneId"`
	AssignmentID     int        `json:"assignmentId"`
	PositionSeconds  float64    `json:"positionSeconds"`
	DurationSeconds  float64    `json:"durationSeconds"`
	Percentage       float64    `json:"percentage"`
	Completed        bool       `json:"completed"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	Score            *float64   `json:"score,omitempty"`
	TimeSpentSeconds int        `json:"timeSpentSeconds"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// PlaybackEvent represents the kind of a media telemetry sample
type PlaybackEvent string

const (
	PlaybackEventTimeUpdate PlaybackEvent = "timeupdate"
	PlaybackEventPlay       PlaybackEvent = "play"
	PlaybackEventPause      PlaybackEvent = "pause"
	PlaybackEventEnded      PlaybackEvent = "ended"
)

// PlaybackSample is one telemetry sample reported by the client
type PlaybackSample struct {
	CurrentTime float64       `json:"currentTime"`
	Duration    float64       `json:"duration"`
	Event       PlaybackEvent `json:"event"`
}
