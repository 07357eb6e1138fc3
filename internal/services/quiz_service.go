package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/corptrain/playback/internal/events"
	"github.com/corptrain/playback/internal/models"
	"github.com/corptrain/playback/internal/playback"
	"github.com/corptrain/playback/internal/repositories"
	"go.uber.org/zap"
)

// QuizOutcome is the result of a quiz submission
type QuizOutcome struct {
	Result   *playback.QuizResult `json:"result"`
	Attempt  models.QuizSession   `json:"attempt"`
	Snapshot *Snapshot            `json:"session"`
}

// SubmitQuiz validates, scores and finalizes the open attempt of the assessment stage.
//
// Missing required answers yield a *playback.ValidationError and nothing is stored. A passed
// attempt, or any attempt when passing is not required, completes the flow; otherwise the
// assessment stays active and the next submission uses a new attempt.
func (s *sessionService) SubmitQuiz(ctx context.Context, learnerID int, sessionID string, answers []models.Answer) (*QuizOutcome, error) {
	sess, err := s.acquire(learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if sess.state.Stage != playback.StageAssessment {
		return nil, fmt.Errorf("%w: no assessment in %s", ErrStageMismatch, sess.state.Stage)
	}
	quiz := sess.content.Quiz

	result, err := s.evaluator.Evaluate(quiz.Questions, answers, quiz.PassThreshold)
	if err != nil {
		return nil, err
	}

	attempt, err := s.ensureAttempt(ctx, sess)
	if err != nil {
		return nil, err
	}

	responses := make([]models.QuizResponse, 0, len(result.Graded))
	for _, g := range result.Graded {
		responses = append(responses, models.QuizResponse{
			SessionID:  attempt.ID,
			QuestionID: g.Answer.QuestionID,
			Answer:     g.Answer,
			Correct:    g.Correct,
		})
	}

	finalized := *attempt
	completedAt := s.now().UTC()
	finalized.TotalQuestions = result.Total
	finalized.CorrectCount = result.CorrectCount
	finalized.ScorePercent = result.ScorePercent
	finalized.Passed = result.Passed
	finalized.CompletedAt = &completedAt

	if err := s.deps.Quizzes.Finalize(ctx, &finalized, responses); err != nil {
		if errors.Is(err, repositories.ErrQuizFinalized) {
			sess.attempt = nil
			return nil, ErrQuizAlreadyFinalized
		}
		s.logger.Error("failed to finalize quiz attempt",
			zap.String("session_id", sess.ID),
			zap.Int("quiz_session_id", attempt.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	sess.attempt = nil
	sess.lastResult = result
	score := result.ScorePercent
	sess.score = &score

	next, err := sess.flow.Transition(sess.state, playback.Event{Kind: playback.EventAssessmentSubmitted, Passed: result.Passed})
	if err != nil {
		return nil, err
	}
	sess.state = next

	s.logger.Info("quiz attempt finalized",
		zap.String("session_id", sess.ID),
		zap.Int("assignment_id", sess.AssignmentID),
		zap.Int("attempt", finalized.Attempt),
		zap.Float64("score_percent", result.ScorePercent),
		zap.Bool("passed", result.Passed),
	)
	s.publish(sess, events.TypeQuizFinalized, map[string]any{
		"attempt":      finalized.Attempt,
		"scorePercent": result.ScorePercent,
		"passed":       result.Passed,
	})

	if next.Stage == playback.StageAssessment {
		// retake: open the next attempt now, Submit retries when this fails
		s.enterAssessment(ctx, sess)
	} else if err := s.enterStage(ctx, sess); err != nil {
		return nil, err
	}

	return &QuizOutcome{Result: result, Attempt: finalized, Snapshot: s.snapshotLocked(sess)}, nil
}

// ensureAttempt returns the open attempt of the session, creating attempt n+1 when the latest
// stored attempt is finalized.
func (s *sessionService) ensureAttempt(ctx context.Context, sess *Session) (*models.QuizSession, error) {
	if sess.attempt != nil && sess.attempt.Status == models.QuizSessionOpen {
		return sess.attempt, nil
	}
	quiz := sess.content.Quiz

	latest, err := s.deps.Quizzes.GetLatest(ctx, sess.LearnerID, quiz.ID, sess.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if latest != nil && latest.Status == models.QuizSessionOpen {
		sess.attempt = latest
		return latest, nil
	}

	attempt := &models.QuizSession{
		LearnerID:      sess.LearnerID,
		QuizID:         quiz.ID,
		AssignmentID:   sess.AssignmentID,
		Attempt:        1,
		TotalQuestions: len(quiz.Questions),
		StartedAt:      s.now().UTC(),
	}
	if latest != nil {
		attempt.Attempt = latest.Attempt + 1
	}
	if err := s.deps.Quizzes.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	sess.attempt = attempt
	return attempt, nil
}
