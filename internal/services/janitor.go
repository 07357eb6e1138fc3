package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SessionMaintainer is the periodic work of the session service
type SessionMaintainer interface {
	Autosave(ctx context.Context) int
	CloseIdle(ctx context.Context) int
}

// Janitor runs the autosave and idle-session sweeps on a cron schedule
type Janitor struct {
	cron    *cron.Cron
	target  SessionMaintainer
	timeout time.Duration
	logger  *zap.Logger
}

// NewJanitor schedules autosave every autosaveInterval and the idle sweep every minute
func NewJanitor(target SessionMaintainer, autosaveInterval time.Duration, logger *zap.Logger) (*Janitor, error) {
	if autosaveInterval <= 0 {
		autosaveInterval = 30 * time.Second
	}
	j := &Janitor{
		cron:    cron.New(),
		target:  target,
		timeout: autosaveInterval,
		logger:  logger,
	}

	if _, err := j.cron.AddFunc(fmt.Sprintf("@every %s", autosaveInterval), j.autosave); err != nil {
		return nil, fmt.Errorf("failed to schedule autosave: %w", err)
	}
	if _, err := j.cron.AddFunc("@every 1m", j.sweep); err != nil {
		return nil, fmt.Errorf("failed to schedule idle sweep: %w", err)
	}
	return j, nil
}

// Start runs the schedule in the background
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop stops the schedule and waits for running jobs
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) autosave() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if n := j.target.Autosave(ctx); n > 0 {
		j.logger.Debug("autosaved playback sessions", zap.Int("count", n))
	}
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if n := j.target.CloseIdle(ctx); n > 0 {
		j.logger.Info("closed idle playback sessions", zap.Int("count", n))
	}
}
