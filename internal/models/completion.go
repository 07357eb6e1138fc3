package models

import "time"

// CompletionRecord marks a whole assignment as finished
//
// There is at most one record per assignment.
type CompletionRecord struct {
	ID           int       `json:"id"`
	AssignmentID int       `json:"assignmentId"`
	LearnerID    int       `json:"learnerId"`
	ScorePercent *float64  `json:"scorePercent,omitempty"`
	CompletedAt  time.Time `json:"completedAt"`
	// CertificateQueuedAt is set once the certificate task of the completion was enqueued
	CertificateQueuedAt *time.Time `json:"certificateQueuedAt,omitempty"`
}
