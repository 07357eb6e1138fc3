package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/corptrain/playback/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupQuizSessionTestRepository creates a quiz session repository with a mock database
func setupQuizSessionTestRepository(t *testing.T) (*quizSessionRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return NewQuizSessionRepository(db), mock, func() { db.Close() }
}

func TestQuizSessionRepository_GetLatest(t *testing.T) {
	repo, mock, cleanup := setupQuizSessionTestRepository(t)
	defer cleanup()

	started := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	completed := started.Add(5 * time.Minute)
	mock.ExpectQuery(`SELECT (.+) FROM quiz_sessions WHERE learner_id = \? AND quiz_id = \? AND assignment_id = \? ORDER BY attempt DESC LIMIT 1`).
		WithArgs(7, 2, 11).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "learner_id", "quiz_id", "assignment_id", "attempt", "total_questions", "correct_count",
			"score_percent", "passed", "status", "started_at", "completed_at",
		}).AddRow(9, 7, 2, 11, 2, 2, 2, 100.0, true, "finalized", started, completed))

	s, err := repo.GetLatest(context.Background(), 7, 2, 11)

	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 2, s.Attempt)
	assert.Equal(t, models.QuizSessionFinalized, s.Status)
	assert.Equal(t, &completed, s.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizSessionRepository_Create(t *testing.T) {
	repo, mock, cleanup := setupQuizSessionTestRepository(t)
	defer cleanup()

	started := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO quiz_sessions`).
		WithArgs(7, 2, 11, 1, 2, "open", started).
		WillReturnResult(sqlmock.NewResult(9, 1))

	s := &models.QuizSession{LearnerID: 7, QuizID: 2, AssignmentID: 11, Attempt: 1, TotalQuestions: 2, StartedAt: started}
	err := repo.Create(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, 9, s.ID)
	assert.Equal(t, models.QuizSessionOpen, s.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizSessionRepository_Finalize(t *testing.T) {
	completed := time.Date(2024, 6, 1, 8, 5, 0, 0, time.UTC)
	responses := []models.QuizResponse{
		{QuestionID: 1, Answer: models.Answer{QuestionID: 1, SelectedOptionIDs: []string{"B"}}, Correct: true},
		{QuestionID: 2, Answer: models.Answer{QuestionID: 2, SelectedOptionIDs: []string{"A"}}, Correct: true},
	}

	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
		expectedState models.QuizSessionStatus
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`UPDATE quiz_sessions SET (.+) WHERE id = \? AND status = \?`).
					WithArgs(2, 100.0, true, "finalized", completed, 9, "open").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO quiz_responses \(session_id, question_id, answer, correct\) VALUES \(\?, \?, \?, \?\),\(\?, \?, \?, \?\)`).
					WithArgs(9, 1, sqlmock.AnyArg(), true, 9, 2, sqlmock.AnyArg(), true).
					WillReturnResult(sqlmock.NewResult(1, 2))
				mock.ExpectCommit()
			},
			expectedState: models.QuizSessionFinalized,
		},
		{
			name: "already finalized",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`UPDATE quiz_sessions`).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			expectedError: ErrQuizFinalized,
			expectedState: models.QuizSessionOpen,
		},
		{
			name: "response insert fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`UPDATE quiz_sessions`).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO quiz_responses`).
					WillReturnError(errors.New("duplicate entry"))
				mock.ExpectRollback()
			},
			expectedError: errors.New("any"),
			expectedState: models.QuizSessionOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupQuizSessionTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			s := &models.QuizSession{
				ID: 9, CorrectCount: 2, ScorePercent: 100, Passed: true,
				Status: models.QuizSessionOpen, CompletedAt: &completed,
			}
			err := repo.Finalize(context.Background(), s, responses)

			switch {
			case tt.expectedError == nil:
				assert.NoError(t, err)
			case errors.Is(tt.expectedError, ErrQuizFinalized):
				assert.ErrorIs(t, err, ErrQuizFinalized)
			default:
				assert.Error(t, err)
			}
			assert.Equal(t, tt.expectedState, s.Status)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
