package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/corptrain/playback/internal/playback"
)

var (
	// ErrSessionNotFound is returned for unknown or closed playback sessions
	ErrSessionNotFound = errors.New("playback session not found")
	// ErrAssignmentNotFound is returned when the assignment or its content does not exist
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrForbidden is returned when a learner accesses another learner's session or assignment
	ErrForbidden = errors.New("access to playback session denied")
	// ErrStageMismatch is returned when an operation does not apply to the current stage
	ErrStageMismatch = errors.New("operation not available in current stage")
	// ErrSkipNotAllowed is returned when skip is requested outside of testing mode
	ErrSkipNotAllowed = errors.New("skip is only available in testing mode")
	// ErrStoreUnavailable is returned when the progress store could not be read or written.
	// In-memory state is kept so the operation can be retried.
	ErrStoreUnavailable = errors.New("progress store unavailable")
	// ErrGateClosed is returned when a learner tries to continue before the stage is satisfied
	ErrGateClosed = errors.New("stage requirements not met")
	// ErrQuizAlreadyFinalized is returned when a finalized attempt is submitted again
	ErrQuizAlreadyFinalized = errors.New("quiz attempt already finalized")
)

// GateError lists the conditions that keep a gate closed
type GateError struct {
	Unmet []playback.Condition
}

func (e *GateError) Error() string {
	parts := make([]string, len(e.Unmet))
	for i, c := range e.Unmet {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s: %s", ErrGateClosed, strings.Join(parts, ", "))
}

func (e *GateError) Unwrap() error {
	return ErrGateClosed
}
