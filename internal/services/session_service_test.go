package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corptrain/playback/internal/events"
	"github.com/corptrain/playback/internal/models"
	"github.com/corptrain/playback/internal/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sample(t, d float64, ev models.PlaybackEvent) models.PlaybackSample {
	return models.PlaybackSample{CurrentTime: t, Duration: d, Event: ev}
}

func TestSessionService_EndToEnd(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, twoQuestionQuiz(true)), false)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	assert.Equal(t, playback.StageIntro, snap.Flow.Stage)
	id := snap.SessionID

	snap, err = env.svc.Next(ctx, testLearnerID, id)
	require.NoError(t, err)
	assert.Equal(t, playback.StagePrimaryContent, snap.Flow.Stage)
	require.NotNil(t, snap.Stage)
	assert.False(t, snap.Stage.Gate.CanProceed)

	_, err = env.svc.ReportPlayback(ctx, testLearnerID, id, sample(60, 120, models.PlaybackEventTimeUpdate))
	require.NoError(t, err)
	snap, err = env.svc.ReportPlayback(ctx, testLearnerID, id, sample(110, 120, models.PlaybackEventTimeUpdate))
	require.NoError(t, err)
	assert.True(t, snap.Stage.Completed)
	assert.True(t, snap.Stage.Gate.CanProceed)

	rec, ok := env.progress.record(testLearnerID, videoSceneID, testAssignmentID)
	require.True(t, ok)
	assert.True(t, rec.Completed)
	assert.InDelta(t, 110, rec.PositionSeconds, 0.001)

	snap, err = env.svc.Next(ctx, testLearnerID, id)
	require.NoError(t, err)
	assert.Equal(t, playback.StageAssessment, snap.Flow.Stage)
	require.NotNil(t, snap.Quiz)
	assert.Equal(t, 1, snap.Quiz.Attempt)

	outcome, err := env.svc.SubmitQuiz(ctx, testLearnerID, id, correctAnswers())
	require.NoError(t, err)
	assert.Equal(t, 100.0, outcome.Result.ScorePercent)
	assert.True(t, outcome.Result.Passed)
	assert.Equal(t, models.QuizSessionFinalized, outcome.Attempt.Status)
	assert.Equal(t, playback.StageCompletion, outcome.Snapshot.Flow.Stage)
	require.NotNil(t, outcome.Snapshot.Completion)

	assert.Equal(t, 1, env.completions.creates)
	require.Len(t, env.certificates.enqueued, 1)
	assert.Equal(t, testAssignmentID, env.certificates.enqueued[0].AssignmentID)
	assert.Len(t, env.quizzes.responses[outcome.Attempt.ID], 2)
	assert.Equal(t, 1, env.publisher.count(events.TypeFlowCompleted))

	// reopening resumes at completion without writing the record again
	snap, err = env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	assert.Equal(t, playback.StageCompletion, snap.Flow.Stage)
	assert.Equal(t, 1, env.completions.creates)
	assert.Len(t, env.certificates.enqueued, 1)

	_, err = env.svc.Snapshot(ctx, testLearnerID, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_Open(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		setup         func(env *testEnv)
		learnerID     int
		assignmentID  int
		expectedStage playback.Stage
		expectedError error
	}{
		{
			name:          "fresh assignment starts at intro",
			learnerID:     testLearnerID,
			assignmentID:  testAssignmentID,
			expectedStage: playback.StageIntro,
		},
		{
			name: "completed primary resumes at assessment",
			setup: func(env *testEnv) {
				env.progress.records[progressKey{testLearnerID, videoSceneID, testAssignmentID}] = models.ProgressRecord{
					LearnerID: testLearnerID, SceneID: videoSceneID, AssignmentID: testAssignmentID,
					Percentage: 95, Completed: true,
				}
			},
			learnerID:     testLearnerID,
			assignmentID:  testAssignmentID,
			expectedStage: playback.StageAssessment,
		},
		{
			name: "existing completion resumes at completion",
			setup: func(env *testEnv) {
				env.completions.record = &models.CompletionRecord{ID: 1, AssignmentID: testAssignmentID, LearnerID: testLearnerID}
			},
			learnerID:     testLearnerID,
			assignmentID:  testAssignmentID,
			expectedStage: playback.StageCompletion,
		},
		{
			name:          "unknown assignment",
			learnerID:     testLearnerID,
			assignmentID:  999,
			expectedError: ErrAssignmentNotFound,
		},
		{
			name:          "assignment of another learner",
			learnerID:     testLearnerID + 1,
			assignmentID:  testAssignmentID,
			expectedError: ErrForbidden,
		},
		{
			name: "store failure enters error stage",
			setup: func(env *testEnv) {
				env.progress.getErr = errors.New("connection refused")
			},
			learnerID:     testLearnerID,
			assignmentID:  testAssignmentID,
			expectedStage: playback.StageError,
			expectedError: ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, moduleContent(nil, twoQuestionQuiz(true)), false)
			if tt.setup != nil {
				tt.setup(env)
			}

			snap, err := env.svc.Open(ctx, tt.learnerID, tt.assignmentID)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			if tt.expectedStage == "" {
				assert.Nil(t, snap)
				assert.Equal(t, 0, env.svc.registry.Len())
				return
			}
			require.NotNil(t, snap)
			assert.Equal(t, tt.expectedStage, snap.Flow.Stage)
		})
	}
}

func TestSessionService_ResumeReadsProgressOnce(t *testing.T) {
	scene := narratedScene()
	env := newTestEnv(t, moduleContent(&scene, twoQuestionQuiz(true)), false)
	for _, sceneID := range []int{videoSceneID, documentSceneID} {
		env.progress.records[progressKey{testLearnerID, sceneID, testAssignmentID}] = models.ProgressRecord{
			LearnerID: testLearnerID, SceneID: sceneID, AssignmentID: testAssignmentID, Percentage: 100, Completed: true,
		}
	}
	// progress of another assignment is ignored
	env.progress.records[progressKey{testLearnerID, videoSceneID, testAssignmentID + 1}] = models.ProgressRecord{
		LearnerID: testLearnerID, SceneID: videoSceneID, AssignmentID: testAssignmentID + 1,
	}

	snap, err := env.svc.Open(context.Background(), testLearnerID, testAssignmentID)
	require.NoError(t, err)
	assert.Equal(t, playback.StageAssessment, snap.Flow.Stage)
	assert.True(t, snap.Flow.PrimaryCompleted)
	assert.True(t, snap.Flow.SupplementalCompleted)
	assert.Equal(t, 1, env.progress.lists)
}

func TestSessionService_Retry(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, nil), false)
	ctx := context.Background()
	env.content.err = errors.New("timeout")

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.Equal(t, playback.StageError, snap.Flow.Stage)
	assert.NotEmpty(t, snap.Flow.ErrorReason)

	_, err = env.svc.Next(ctx, testLearnerID, snap.SessionID)
	assert.ErrorIs(t, err, ErrStageMismatch)

	env.content.err = nil
	snap, err = env.svc.Retry(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, playback.StageIntro, snap.Flow.Stage)

	_, err = env.svc.Retry(ctx, testLearnerID, snap.SessionID)
	assert.ErrorIs(t, err, ErrStageMismatch)
}

func TestSessionService_NextGate(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, twoQuestionQuiz(true)), false)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	id := snap.SessionID
	_, err = env.svc.Next(ctx, testLearnerID, id)
	require.NoError(t, err)

	_, err = env.svc.ReportPlayback(ctx, testLearnerID, id, sample(60, 120, models.PlaybackEventPause))
	require.NoError(t, err)

	_, err = env.svc.Next(ctx, testLearnerID, id)
	require.ErrorIs(t, err, ErrGateClosed)
	var gateErr *GateError
	require.True(t, errors.As(err, &gateErr))
	require.Len(t, gateErr.Unmet, 1)
	assert.Equal(t, playback.ConditionWatchPercentage, gateErr.Unmet[0].Kind)

	_, err = env.svc.Skip(ctx, testLearnerID, id)
	assert.ErrorIs(t, err, ErrSkipNotAllowed)

	_, err = env.svc.SubmitQuiz(ctx, testLearnerID, id, correctAnswers())
	assert.ErrorIs(t, err, ErrStageMismatch)
}

func TestSessionService_SkipInTestingMode(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, twoQuestionQuiz(true)), true)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	assert.True(t, snap.TestingMode)
	_, err = env.svc.Next(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)

	snap, err = env.svc.Skip(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, playback.StageAssessment, snap.Flow.Stage)

	rec, ok := env.progress.record(testLearnerID, videoSceneID, testAssignmentID)
	require.True(t, ok)
	assert.True(t, rec.Completed)
}

func TestSessionService_AccessControl(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, nil), false)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)

	_, err = env.svc.Snapshot(ctx, testLearnerID+1, snap.SessionID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.Snapshot(ctx, testLearnerID, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_SupplementalFlow(t *testing.T) {
	scene := narratedScene()
	env := newTestEnv(t, moduleContent(&scene, nil), false)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	id := snap.SessionID
	_, err = env.svc.Next(ctx, testLearnerID, id)
	require.NoError(t, err)
	_, err = env.svc.ReportPlayback(ctx, testLearnerID, id, sample(120, 120, models.PlaybackEventEnded))
	require.NoError(t, err)

	snap, err = env.svc.Next(ctx, testLearnerID, id)
	require.NoError(t, err)
	assert.Equal(t, playback.StageSupplementalReview, snap.Flow.Stage)
	require.NotNil(t, snap.Stage.Sync)
	assert.Len(t, snap.Stage.Sync.Segments, 4)

	_, err = env.svc.ReportAudio(ctx, testLearnerID, id, models.AudioState{CurrentTime: 85, Duration: 90, Playing: false})
	require.NoError(t, err)

	snap, err = env.svc.Next(ctx, testLearnerID, id)
	require.NoError(t, err)
	assert.Equal(t, playback.StageCompletion, snap.Flow.Stage)
	assert.Equal(t, 1, env.completions.creates)
	assert.Nil(t, env.completions.record.ScorePercent)
}

func TestSessionService_FailedAssessmentRetake(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, twoQuestionQuiz(true)), false)
	env.progress.records[progressKey{testLearnerID, videoSceneID, testAssignmentID}] = models.ProgressRecord{
		LearnerID: testLearnerID, SceneID: videoSceneID, AssignmentID: testAssignmentID, Percentage: 100, Completed: true,
	}
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	require.Equal(t, playback.StageAssessment, snap.Flow.Stage)
	id := snap.SessionID

	outcome, err := env.svc.SubmitQuiz(ctx, testLearnerID, id, wrongAnswers())
	require.NoError(t, err)
	assert.False(t, outcome.Result.Passed)
	assert.Equal(t, 1, outcome.Attempt.Attempt)
	assert.Equal(t, playback.StageAssessment, outcome.Snapshot.Flow.Stage)
	assert.Equal(t, 1, outcome.Snapshot.Flow.Attempts)
	assert.Equal(t, 2, outcome.Snapshot.Quiz.Attempt)
	assert.Equal(t, 0, env.completions.creates)

	outcome, err = env.svc.SubmitQuiz(ctx, testLearnerID, id, correctAnswers())
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Attempt.Attempt)
	assert.Equal(t, playback.StageCompletion, outcome.Snapshot.Flow.Stage)
	require.Len(t, env.quizzes.sessions, 2)
	assert.Equal(t, models.QuizSessionFinalized, env.quizzes.sessions[0].Status)
	assert.False(t, env.quizzes.sessions[0].Passed)
	require.NotNil(t, env.completions.record.ScorePercent)
	assert.Equal(t, 100.0, *env.completions.record.ScorePercent)
}

func TestSessionService_NonRequiredAssessmentCompletesOnFail(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, twoQuestionQuiz(false)), true)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	_, err = env.svc.Next(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)
	_, err = env.svc.Skip(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)

	outcome, err := env.svc.SubmitQuiz(ctx, testLearnerID, snap.SessionID, wrongAnswers())
	require.NoError(t, err)
	assert.False(t, outcome.Result.Passed)
	assert.Equal(t, playback.StageCompletion, outcome.Snapshot.Flow.Stage)
	assert.False(t, outcome.Snapshot.Flow.AssessmentPassed)
}

func TestSessionService_QuizValidation(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, twoQuestionQuiz(true)), false)
	env.progress.records[progressKey{testLearnerID, videoSceneID, testAssignmentID}] = models.ProgressRecord{
		LearnerID: testLearnerID, SceneID: videoSceneID, AssignmentID: testAssignmentID, Completed: true,
	}
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)

	_, err = env.svc.SubmitQuiz(ctx, testLearnerID, snap.SessionID, []models.Answer{{QuestionID: 1, SelectedOptionIDs: []string{"b"}}})
	var vErr *playback.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, map[int]string{2: "answer is required"}, vErr.Fields)
	assert.Empty(t, env.quizzes.responses)
}

func TestSessionService_QuizAlreadyFinalized(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, twoQuestionQuiz(true)), false)
	env.progress.records[progressKey{testLearnerID, videoSceneID, testAssignmentID}] = models.ProgressRecord{
		LearnerID: testLearnerID, SceneID: videoSceneID, AssignmentID: testAssignmentID, Completed: true,
	}
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)

	// another tab finalized the open attempt
	env.quizzes.sessions[0].Status = models.QuizSessionFinalized

	_, err = env.svc.SubmitQuiz(ctx, testLearnerID, snap.SessionID, correctAnswers())
	assert.ErrorIs(t, err, ErrQuizAlreadyFinalized)
	assert.Equal(t, 0, env.completions.creates)
}

func TestSessionService_PersistenceFailureAndSave(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, nil), false)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	id := snap.SessionID
	_, err = env.svc.Next(ctx, testLearnerID, id)
	require.NoError(t, err)

	env.progress.upsertErr = errors.New("deadlock")
	snap, err = env.svc.ReportPlayback(ctx, testLearnerID, id, sample(45, 120, models.PlaybackEventPause))
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.NotNil(t, snap)
	assert.True(t, snap.PendingSave)
	assert.Equal(t, 1, env.publisher.count(events.TypeSaveFailed))

	env.progress.upsertErr = nil
	snap, err = env.svc.Save(ctx, testLearnerID, id)
	require.NoError(t, err)
	assert.False(t, snap.PendingSave)

	rec, ok := env.progress.record(testLearnerID, videoSceneID, testAssignmentID)
	require.True(t, ok)
	assert.InDelta(t, 45, rec.PositionSeconds, 0.001)
}

func TestSessionService_CompletionWriteRetriedBySave(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, nil), true)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	_, err = env.svc.Next(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)

	env.completions.createErr = errors.New("lost connection")
	snap, err = env.svc.Skip(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, playback.StageCompletion, snap.Flow.Stage)
	assert.True(t, snap.PendingSave)
	assert.Nil(t, snap.Completion)

	_, err = env.svc.Save(ctx, testLearnerID, snap.SessionID)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	env.completions.createErr = nil
	snap, err = env.svc.Save(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)
	assert.False(t, snap.PendingSave)
	assert.NotNil(t, snap.Completion)
	assert.Equal(t, 1, env.completions.creates)
}

func TestSessionService_CertificateEnqueueRetriedOnReopen(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, nil), true)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	_, err = env.svc.Next(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)

	env.certificates.err = errors.New("redis: connection refused")
	snap, err = env.svc.Skip(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, playback.StageCompletion, snap.Flow.Stage)
	assert.Equal(t, 1, env.completions.creates)
	assert.Empty(t, env.certificates.enqueued)
	assert.Nil(t, env.completions.record.CertificateQueuedAt)

	env.certificates.err = nil
	snap, err = env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	assert.Equal(t, playback.StageCompletion, snap.Flow.Stage)
	require.Len(t, env.certificates.enqueued, 1)
	assert.Equal(t, testAssignmentID, env.certificates.enqueued[0].AssignmentID)
	assert.NotNil(t, env.completions.record.CertificateQueuedAt)

	_, err = env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	assert.Len(t, env.certificates.enqueued, 1)
	assert.Equal(t, 1, env.completions.creates)
}

func TestSessionService_CertificateEnqueueRetriedByAutosave(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, nil), true)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	_, err = env.svc.Next(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)

	env.certificates.err = errors.New("redis: connection refused")
	_, err = env.svc.Skip(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)

	env.svc.Autosave(ctx)
	assert.Empty(t, env.certificates.enqueued)

	env.certificates.err = nil
	env.svc.Autosave(ctx)
	require.Len(t, env.certificates.enqueued, 1)

	env.svc.Autosave(ctx)
	_, err = env.svc.Save(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)
	assert.Len(t, env.certificates.enqueued, 1)
}

func TestSessionService_MediaFallback(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, nil), false)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	id := snap.SessionID
	_, err = env.svc.Next(ctx, testLearnerID, id)
	require.NoError(t, err)

	snap, err = env.svc.ReportMediaError(ctx, testLearnerID, id, "autoplay blocked")
	require.NoError(t, err)
	assert.True(t, snap.Stage.MediaFallback)
	assert.True(t, snap.Stage.Gate.CanProceed)
	assert.Equal(t, 1, env.publisher.count(events.TypeMediaFallback))

	snap, err = env.svc.Next(ctx, testLearnerID, id)
	require.NoError(t, err)
	assert.Equal(t, playback.StageCompletion, snap.Flow.Stage)
}

func TestSessionService_ProbeFailureFallsBack(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, nil), false)
	env.svc.deps.Prober = &mockProber{err: errors.New("media unavailable: 404")}
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	snap, err = env.svc.Next(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)

	assert.True(t, snap.Stage.MediaFallback)
	assert.Contains(t, snap.Stage.FallbackReason, "404")
}

func TestSessionService_Certification(t *testing.T) {
	content := moduleContent(nil, nil)
	content.Primary.RequiresCertification = true
	env := newTestEnv(t, content, false)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	id := snap.SessionID
	_, err = env.svc.Next(ctx, testLearnerID, id)
	require.NoError(t, err)
	_, err = env.svc.ReportPlayback(ctx, testLearnerID, id, sample(120, 120, models.PlaybackEventEnded))
	require.NoError(t, err)

	_, err = env.svc.Next(ctx, testLearnerID, id)
	var gateErr *GateError
	require.True(t, errors.As(err, &gateErr))
	assert.Equal(t, playback.ConditionCertification, gateErr.Unmet[0].Kind)

	snap, err = env.svc.SetCertification(ctx, testLearnerID, id, true)
	require.NoError(t, err)
	assert.True(t, snap.Stage.Gate.CanProceed)

	snap, err = env.svc.Next(ctx, testLearnerID, id)
	require.NoError(t, err)
	assert.Equal(t, playback.StageCompletion, snap.Flow.Stage)
}

func TestSessionService_PackageCompletion(t *testing.T) {
	content := moduleContent(nil, nil)
	content.Primary.Content = models.PackageContent{LaunchURL: "https://cdn.example.com/pkg/index.html"}
	env := newTestEnv(t, content, false)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	id := snap.SessionID
	_, err = env.svc.Next(ctx, testLearnerID, id)
	require.NoError(t, err)

	_, err = env.svc.ReportPlayback(ctx, testLearnerID, id, sample(1, 10, models.PlaybackEventTimeUpdate))
	assert.ErrorIs(t, err, ErrStageMismatch)

	score := 85.0
	snap, err = env.svc.CompletePackage(ctx, testLearnerID, id, &score)
	require.NoError(t, err)
	assert.True(t, snap.Stage.Completed)

	rec, ok := env.progress.record(testLearnerID, videoSceneID, testAssignmentID)
	require.True(t, ok)
	require.NotNil(t, rec.Score)
	assert.Equal(t, 85.0, *rec.Score)
}

func TestSessionService_ResumeRestoresPosition(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, nil), false)
	env.progress.records[progressKey{testLearnerID, videoSceneID, testAssignmentID}] = models.ProgressRecord{
		LearnerID: testLearnerID, SceneID: videoSceneID, AssignmentID: testAssignmentID,
		PositionSeconds: 42, DurationSeconds: 120, Percentage: 35, TimeSpentSeconds: 60,
	}
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	require.Equal(t, playback.StageIntro, snap.Flow.Stage)

	snap, err = env.svc.Next(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 42.0, snap.Stage.ResumePosition)
	assert.Equal(t, 35.0, snap.Stage.Percentage)
	assert.GreaterOrEqual(t, snap.Stage.TimeSpentSeconds, 60)

	sess, ok := env.svc.registry.Get(snap.SessionID)
	require.True(t, ok)
	assert.Equal(t, 42.0, sess.stage.clock.CurrentTime())
}

func TestSessionService_DefaultThresholds(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	content := &mockContentRepository{content: moduleContent(nil, nil)}
	svc := NewSessionService(Dependencies{
		Content:     content,
		Progress:    newMockProgressRepository(),
		Quizzes:     newMockQuizSessionRepository(),
		Completions: &mockCompletionRepository{},
	}, NewSessionRegistry(), playback.NewEvaluator(nil), Config{}, logger)
	t.Cleanup(func() { svc.CloseAll(context.Background()) })
	ctx := context.Background()

	assert.Equal(t, playback.DefaultCompletionThreshold, svc.cfg.Tracker.CompletionThreshold)
	assert.Equal(t, playback.DefaultSeekThresholdSeconds, svc.cfg.Tracker.SeekThresholdSeconds)

	snap, err := svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	snap, err = svc.Next(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)
	assert.False(t, snap.Stage.Gate.CanProceed)

	_, err = svc.Next(ctx, testLearnerID, snap.SessionID)
	assert.ErrorIs(t, err, ErrGateClosed)
}

func TestSessionService_CloseAndReplace(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, nil), false)
	ctx := context.Background()

	first, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	_, err = env.svc.Next(ctx, testLearnerID, first.SessionID)
	require.NoError(t, err)
	sess, ok := env.svc.registry.Get(first.SessionID)
	require.True(t, ok)
	clock := sess.stage.clock

	second, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.True(t, clock.Released())
	assert.Equal(t, 1, env.svc.registry.Len())
	assert.Contains(t, env.streams.closed, first.SessionID)

	_, err = env.svc.Next(ctx, testLearnerID, first.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, env.svc.Close(ctx, testLearnerID, second.SessionID))
	assert.Equal(t, 0, env.svc.registry.Len())
	assert.ErrorIs(t, env.svc.Close(ctx, testLearnerID, second.SessionID), ErrSessionNotFound)
}

func TestSessionService_CloseIdle(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, nil), false)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return base }

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	_, err = env.svc.Next(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)

	env.svc.now = func() time.Time { return base.Add(5 * time.Minute) }
	_, err = env.svc.ReportPlayback(ctx, testLearnerID, snap.SessionID, sample(20, 120, models.PlaybackEventTimeUpdate))
	require.NoError(t, err)
	before := env.progress.upsertCount()

	env.svc.now = func() time.Time { return base.Add(20 * time.Minute) }
	assert.Equal(t, 0, env.svc.CloseIdle(ctx))

	env.svc.now = func() time.Time { return base.Add(36 * time.Minute) }
	assert.Equal(t, 1, env.svc.CloseIdle(ctx))
	assert.Equal(t, 0, env.svc.registry.Len())
	assert.Greater(t, env.progress.upsertCount(), before)

	// the idle half hour before the sweep is not counted
	rec, ok := env.progress.record(testLearnerID, videoSceneID, testAssignmentID)
	require.True(t, ok)
	assert.Equal(t, 5*60, rec.TimeSpentSeconds)
}

func TestSessionService_AutosaveDoesNotCountIdleTime(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, nil), false)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return base }

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	_, err = env.svc.Next(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)

	env.svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = env.svc.ReportPlayback(ctx, testLearnerID, snap.SessionID, sample(30, 120, models.PlaybackEventTimeUpdate))
	require.NoError(t, err)

	env.svc.now = func() time.Time { return base.Add(10 * time.Minute) }
	assert.Equal(t, 1, env.svc.Autosave(ctx))
	rec, _ := env.progress.record(testLearnerID, videoSceneID, testAssignmentID)
	assert.Equal(t, 120, rec.TimeSpentSeconds)

	env.svc.now = func() time.Time { return base.Add(20 * time.Minute) }
	assert.Equal(t, 0, env.svc.Autosave(ctx))
	rec, _ = env.progress.record(testLearnerID, videoSceneID, testAssignmentID)
	assert.Equal(t, 120, rec.TimeSpentSeconds)

	env.svc.now = func() time.Time { return base.Add(21 * time.Minute) }
	_, err = env.svc.ReportPlayback(ctx, testLearnerID, snap.SessionID, sample(35, 120, models.PlaybackEventPause))
	require.NoError(t, err)
	rec, _ = env.progress.record(testLearnerID, videoSceneID, testAssignmentID)
	assert.Equal(t, 21*60, rec.TimeSpentSeconds)
}

func TestSessionService_BeaconAndAutosave(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, nil), false)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	_, err = env.svc.Next(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)
	_, err = env.svc.ReportPlayback(ctx, testLearnerID, snap.SessionID, sample(30, 120, models.PlaybackEventTimeUpdate))
	require.NoError(t, err)

	before := env.progress.upsertCount()
	assert.Equal(t, 1, env.svc.Autosave(ctx))
	assert.Equal(t, before+1, env.progress.upsertCount())

	assert.ErrorIs(t, env.svc.Beacon(testLearnerID+1, snap.SessionID), ErrForbidden)

	_, err = env.svc.ReportPlayback(ctx, testLearnerID, snap.SessionID, sample(34, 120, models.PlaybackEventTimeUpdate))
	require.NoError(t, err)
	require.NoError(t, env.svc.Beacon(testLearnerID, snap.SessionID))
	env.svc.Wait()
	assert.Equal(t, before+2, env.progress.upsertCount())
	rec, _ := env.progress.record(testLearnerID, videoSceneID, testAssignmentID)
	assert.InDelta(t, 34, rec.PositionSeconds, 0.001)

	assert.Equal(t, 0, env.svc.registry.Len())
	assert.Equal(t, 0, env.svc.Autosave(ctx))
	assert.ErrorIs(t, env.svc.Beacon(testLearnerID, snap.SessionID), ErrSessionNotFound)
}

func TestSessionService_BeaconStopsSyncAndReleasesMedia(t *testing.T) {
	scene := narratedScene()
	env := newTestEnv(t, moduleContent(&scene, nil), false)
	env.progress.records[progressKey{testLearnerID, videoSceneID, testAssignmentID}] = models.ProgressRecord{
		LearnerID: testLearnerID, SceneID: videoSceneID, AssignmentID: testAssignmentID, Percentage: 100, Completed: true,
	}
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	require.Equal(t, playback.StageSupplementalReview, snap.Flow.Stage)

	_, err = env.svc.ReportAudio(ctx, testLearnerID, snap.SessionID, models.AudioState{CurrentTime: 10, Duration: 90, Playing: true})
	require.NoError(t, err)

	sess, ok := env.svc.registry.Get(snap.SessionID)
	require.True(t, ok)
	sess.mu.Lock()
	rt := sess.stage
	sess.mu.Unlock()
	require.NotNil(t, rt.sync)
	require.True(t, rt.sync.Running())

	require.NoError(t, env.svc.Beacon(testLearnerID, snap.SessionID))
	env.svc.Wait()

	assert.False(t, rt.sync.Running())
	assert.True(t, rt.clock.Released())
	assert.False(t, rt.clock.Playing())
	assert.Contains(t, env.streams.closed, snap.SessionID)
	assert.Equal(t, 1, env.publisher.count(events.TypeSessionClosed))

	rec, ok := env.progress.record(testLearnerID, documentSceneID, testAssignmentID)
	require.True(t, ok)
	assert.GreaterOrEqual(t, rec.PositionSeconds, 10.0)

	_, err = env.svc.Snapshot(ctx, testLearnerID, snap.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_CloseAll(t *testing.T) {
	env := newTestEnv(t, moduleContent(nil, nil), false)
	ctx := context.Background()

	snap, err := env.svc.Open(ctx, testLearnerID, testAssignmentID)
	require.NoError(t, err)
	_, err = env.svc.Next(ctx, testLearnerID, snap.SessionID)
	require.NoError(t, err)
	_, err = env.svc.ReportPlayback(ctx, testLearnerID, snap.SessionID, sample(45, 120, models.PlaybackEventTimeUpdate))
	require.NoError(t, err)

	assert.Equal(t, 1, env.svc.CloseAll(ctx))
	assert.Equal(t, 0, env.svc.registry.Len())

	rec, ok := env.progress.record(testLearnerID, videoSceneID, testAssignmentID)
	require.True(t, ok)
	assert.InDelta(t, 45, rec.PositionSeconds, 0.001)

	_, err = env.svc.Snapshot(ctx, testLearnerID, snap.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
