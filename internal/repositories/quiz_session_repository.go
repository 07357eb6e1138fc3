package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/corptrain/playback/internal/models"
)

// quizSessionRepository implements the quiz part of the progress store
type quizSessionRepository struct {
	db *sql.DB
}

// NewQuizSessionRepository creates a new quiz session repository
func NewQuizSessionRepository(db *sql.DB) *quizSessionRepository {
	return &quizSessionRepository{
		db: db,
	}
}

// GetLatest retrieves the latest attempt of a learner at a quiz within an assignment,
// nil when the learner never started it
func (r *quizSessionRepository) GetLatest(ctx context.Context, learnerID, quizID, assignmentID int) (*models.QuizSession, error) {
	query := `
		SELECT id, learner_id, quiz_id, assignment_id, attempt, total_questions, correct_count,
		       score_percent, passed, status, started_at, completed_at
		FROM quiz_sessions
		WHERE learner_id = ? AND quiz_id = ? AND assignment_id = ?
		ORDER BY attempt DESC
		LIMIT 1`

	var (
		s           models.QuizSession
		status      string
		completedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, learnerID, quizID, assignmentID).Scan(
		&s.ID,
		&s.LearnerID,
		&s.QuizID,
		&s.AssignmentID,
		&s.Attempt,
		&s.TotalQuestions,
		&s.CorrectCount,
		&s.ScorePercent,
		&s.Passed,
		&status,
		&s.StartedAt,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz session: %w", err)
	}
	s.Status = models.QuizSessionStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	return &s, nil
}

// Create inserts a new open quiz session and sets its ID
func (r *quizSessionRepository) Create(ctx context.Context, s *models.QuizSession) error {
	query := `
		INSERT INTO quiz_sessions
		(learner_id, quiz_id, assignment_id, attempt, total_questions, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		s.LearnerID,
		s.QuizID,
		s.AssignmentID,
		s.Attempt,
		s.TotalQuestions,
		string(models.QuizSessionOpen),
		s.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create quiz session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	s.ID = int(id)
	s.Status = models.QuizSessionOpen
	return nil
}

// Finalize stores the aggregate result of a session together with every response.
//
// A session is finalized exactly once: when it is not open anymore, nothing is written and
// ErrQuizFinalized is returned.
func (r *quizSessionRepository) Finalize(ctx context.Context, s *models.QuizSession, responses []models.QuizResponse) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE quiz_sessions
		SET correct_count = ?, score_percent = ?, passed = ?, status = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		s.CorrectCount,
		s.ScorePercent,
		s.Passed,
		string(models.QuizSessionFinalized),
		s.CompletedAt,
		s.ID,
		string(models.QuizSessionOpen),
	)
	if err != nil {
		return fmt.Errorf("failed to finalize quiz session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrQuizFinalized
	}

	if len(responses) > 0 {
		placeholders := make([]string, len(responses))
		args := make([]any, 0, len(responses)*4)
		for i, resp := range responses {
			answer, err := json.Marshal(resp.Answer)
			if err != nil {
				return fmt.Errorf("failed to encode answer to question %d: %w", resp.QuestionID, err)
			}
			placeholders[i] = "(?, ?, ?, ?)"
			args = append(args, s.ID, resp.QuestionID, answer, resp.Correct)
		}

		query := fmt.Sprintf(`
			INSERT INTO quiz_responses (session_id, question_id, answer, correct)
			VALUES %s`, strings.Join(placeholders, ","))
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert quiz responses: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.Status = models.QuizSessionFinalized
	return nil
}
