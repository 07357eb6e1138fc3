package services

import (
	"context"
	"time"

	"github.com/corptrain/playback/internal/events"
	"github.com/corptrain/playback/internal/media"
	"github.com/corptrain/playback/internal/models"
)

// ContentRepository is the interface that wraps read access to assigned training content
type ContentRepository interface {
	// Method GetModuleContent retrieves the assignment with its module, scenes and quiz.
	//
	// repositories.ErrNotFound is returned when the assignment or its primary scene does not exist.
	GetModuleContent(ctx context.Context, assignmentID int) (*models.ModuleContent, error)
}

// ProgressRepository is the interface that wraps methods for ProgressRecord persistence
type ProgressRepository interface {
	// Method Get retrieves the progress of a learner on a scene of an assignment.
	//
	// When no record exists, "nil" is returned together with a "nil" error.
	Get(ctx context.Context, learnerID, sceneID, assignmentID int) (*models.ProgressRecord, error)
	// Method ListByAssignment retrieves every record of a learner for an assignment.
	ListByAssignment(ctx context.Context, learnerID, assignmentID int) ([]models.ProgressRecord, error)
	// Method Upsert creates or updates a record keyed by (learner, scene, assignment).
	//
	// Replaying the same record is harmless and a stored completion is never cleared.
	Upsert(ctx context.Context, rec *models.ProgressRecord) error
}

// QuizSessionRepository is the interface that wraps methods for quiz attempts
type QuizSessionRepository interface {
	// Method GetLatest retrieves the attempt with the highest number, "nil" when there is none.
	GetLatest(ctx context.Context, learnerID, quizID, assignmentID int) (*models.QuizSession, error)
	// Method Create stores a new open attempt and sets its ID.
	Create(ctx context.Context, s *models.QuizSession) error
	// Method Finalize stores the responses and closes the attempt exactly once.
	//
	// repositories.ErrQuizFinalized is returned when the attempt was already finalized.
	Finalize(ctx context.Context, s *models.QuizSession, responses []models.QuizResponse) error
}

// CompletionRepository is the interface that wraps methods for CompletionRecord persistence
type CompletionRepository interface {
	// Method GetByAssignment retrieves the completion of an assignment, "nil" when there is none.
	GetByAssignment(ctx context.Context, assignmentID int) (*models.CompletionRecord, error)
	// Method Create stores the completion of an assignment unless one exists already.
	//
	// The returned flag is true only when this call created the record.
	Create(ctx context.Context, rec *models.CompletionRecord) (bool, error)
	// Method MarkCertificateQueued records that the certificate task of a completion was enqueued.
	MarkCertificateQueued(ctx context.Context, id int, at time.Time) error
}

// MediaProber checks that the media of a scene can be played
type MediaProber interface {
	Probe(ctx context.Context, scene models.Scene) (*media.ProbeResult, error)
}

// CertificateQueue schedules certificate issuance for a finished assignment
type CertificateQueue interface {
	Enqueue(ctx context.Context, rec models.CompletionRecord) error
}

// StreamCloser ends the event streams of a session
type StreamCloser interface {
	CloseSession(sessionID string)
}

// Dependencies are the collaborators of the session service.
//
// Prober, Certificates and Streams are optional.
type Dependencies struct {
	Content      ContentRepository
	Progress     ProgressRepository
	Quizzes      QuizSessionRepository
	Completions  CompletionRepository
	Prober       MediaProber
	Certificates CertificateQueue
	Events       events.Publisher
	Streams      StreamCloser
}
