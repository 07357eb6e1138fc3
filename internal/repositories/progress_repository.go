package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/corptrain/playback/internal/models"
)

// progressRepository implements the progress part of the progress store
type progressRepository struct {
	db *sql.DB
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db *sql.DB) *progressRepository {
	return &progressRepository{
		db: db,
	}
}

const progressColumns = `id, learner_id, scene_id, assignment_id, position_seconds, duration_seconds,
		       percentage, completed, completed_at, score, time_spent_seconds, updated_at`

// Get retrieves the progress of a learner on one scene of an assignment.
// It returns nil without error when no progress was saved yet.
func (r *progressRepository) Get(ctx context.Context, learnerID, sceneID, assignmentID int) (*models.ProgressRecord, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM progress_records
		WHERE learner_id = ? AND scene_id = ? AND assignment_id = ?`

	rec, err := scanProgress(r.db.QueryRowContext(ctx, query, learnerID, sceneID, assignmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return rec, nil
}

// ListByAssignment retrieves all progress records of a learner for an assignment
func (r *progressRepository) ListByAssignment(ctx context.Context, learnerID, assignmentID int) ([]models.ProgressRecord, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM progress_records
		WHERE learner_id = ? AND assignment_id = ?
		ORDER BY scene_id`

	rows, err := r.db.QueryContext(ctx, query, learnerID, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	records := []models.ProgressRecord{}
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		records = append(records, *rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// Upsert saves a progress record keyed by (learner, scene, assignment).
//
// Position, duration and percentage are last-write-wins. The completed flag is OR-ed with the
// stored one and the first completion timestamp is kept, so completion never regresses.
// Time spent only grows. Saving the same record twice leaves the same row.
func (r *progressRepository) Upsert(ctx context.Context, rec *models.ProgressRecord) error {
	query := `
		INSERT INTO progress_records
		(learner_id, scene_id, assignment_id, position_seconds, duration_seconds, percentage,
		 completed, completed_at, score, time_spent_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			position_seconds = VALUES(position_seconds),
			duration_seconds = VALUES(duration_seconds),
			percentage = VALUES(percentage),
			completed_at = COALESCE(completed_at, VALUES(completed_at)),
			completed = completed OR VALUES(completed),
			score = COALESCE(VALUES(score), score),
			time_spent_seconds = GREATEST(time_spent_seconds, VALUES(time_spent_seconds))
	`

	var completedAt sql.NullTime
	if rec.Completed && rec.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *rec.CompletedAt, Valid: true}
	}
	var score sql.NullFloat64
	if rec.Score != nil {
		score = sql.NullFloat64{Float64: *rec.Score, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		rec.LearnerID,
		rec.SceneID,
		rec.AssignmentID,
		rec.PositionSeconds,
		rec.DurationSeconds,
		rec.Percentage,
		rec.Completed,
		completedAt,
		score,
		rec.TimeSpentSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (*models.ProgressRecord, error) {
	var (
		rec         models.ProgressRecord
		completedAt sql.NullTime
		score       sql.NullFloat64
	)
	err := row.Scan(
		&rec.ID,
		&rec.LearnerID,
		&rec.SceneID,
		&rec.AssignmentID,
		&rec.PositionSeconds,
		&rec.DurationSeconds,
		&rec.Percentage,
		&rec.Completed,
		&completedAt,
		&score,
		&rec.TimeSpentSeconds,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	if score.Valid {
		s := score.Float64
		rec.Score = &s
	}
	return &rec, nil
}
