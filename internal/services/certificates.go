package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/corptrain/playback/internal/models"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// TaskCertificateIssue is the asynq task type consumed by the certificate worker
	TaskCertificateIssue = "certificate:issue"
	// QueueCertificates is the asynq queue certificate tasks are enqueued to
	QueueCertificates = "certificates"
)

// CertificatePayload is the payload of a certificate issuance task
type CertificatePayload struct {
	AssignmentID int       `json:"assignment_id"`
	LearnerID    int       `json:"learner_id"`
	ScorePercent *float64  `json:"score_percent,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// taskEnqueuer is the part of *asynq.Client the queue needs
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type certificateQueue struct {
	client taskEnqueuer
	logger *zap.Logger
}

// NewCertificateQueue creates a queue that enqueues certificate issuance tasks through asynq
func NewCertificateQueue(client taskEnqueuer, logger *zap.Logger) *certificateQueue {
	return &certificateQueue{client: client, logger: logger}
}

// Enqueue schedules certificate issuance for a completion. The task id is derived from the
// assignment, so enqueueing the same completion twice leaves a single task.
func (q *certificateQueue) Enqueue(ctx context.Context, rec models.CompletionRecord) error {
	payload, err := json.Marshal(CertificatePayload{
		AssignmentID: rec.AssignmentID,
		LearnerID:    rec.LearnerID,
		ScorePercent: rec.ScorePercent,
		CompletedAt:  rec.CompletedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode certificate payload: %w", err)
	}

	task := asynq.NewTask(TaskCertificateIssue, payload)
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueCertificates),
		asynq.TaskID(fmt.Sprintf("certificate-%d", rec.AssignmentID)),
		asynq.MaxRetry(10),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		q.logger.Debug("certificate task already enqueued", zap.Int("assignment_id", rec.AssignmentID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue certificate task: %w", err)
	}

	q.logger.Info("certificate task enqueued",
		zap.Int("assignment_id", rec.AssignmentID),
		zap.String("task_id", info.ID),
	)
	return nil
}
