package repositories

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrQuizFinalized is returned when a finalized quiz session would be modified
	ErrQuizFinalized = errors.New("quiz session already finalized")
)
