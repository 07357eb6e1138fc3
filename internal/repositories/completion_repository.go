package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/corptrain/playback/internal/models"
)

// completionRepository implements the completion part of the progress store
type completionRepository struct {
	db *sql.DB
}

// NewCompletionRepository creates a new completion repository
func NewCompletionRepository(db *sql.DB) *completionRepository {
	return &completionRepository{
		db: db,
	}
}

// GetByAssignment retrieves the completion record of an assignment, nil when there is none
func (r *completionRepository) GetByAssignment(ctx context.Context, assignmentID int) (*models.CompletionRecord, error) {
	query := `
		SELECT id, assignment_id, learner_id, score_percent, completed_at, certificate_queued_at
		FROM completion_records
		WHERE assignment_id = ?`

	var (
		rec      models.CompletionRecord
		score    sql.NullFloat64
		queuedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, assignmentID).Scan(
		&rec.ID,
		&rec.AssignmentID,
		&rec.LearnerID,
		&score,
		&rec.CompletedAt,
		&queuedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get completion record: %w", err)
	}
	if score.Valid {
		s := score.Float64
		rec.ScorePercent = &s
	}
	if queuedAt.Valid {
		t := queuedAt.Time
		rec.CertificateQueuedAt = &t
	}
	return &rec, nil
}

// Create writes the completion record of an assignment.
//
// At most one record exists per assignment: when one is already stored, the call is a no-op
// and created is false.
func (r *completionRepository) Create(ctx context.Context, rec *models.CompletionRecord) (bool, error) {
	query := `
		INSERT INTO completion_records (assignment_id, learner_id, score_percent, completed_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id
	`

	var score sql.NullFloat64
	if rec.ScorePercent != nil {
		score = sql.NullFloat64{Float64: *rec.ScorePercent, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query, rec.AssignmentID, rec.LearnerID, score, rec.CompletedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create completion record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected != 1 {
		return false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = int(id)
	return true, nil
}

// MarkCertificateQueued records that the certificate task of a completion was enqueued.
// The first timestamp is kept.
func (r *completionRepository) MarkCertificateQueued(ctx context.Context, id int, at time.Time) error {
	query := `
		UPDATE completion_records
		SET certificate_queued_at = COALESCE(certificate_queued_at, ?)
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to mark certificate queued: %w", err)
	}
	return nil
}
