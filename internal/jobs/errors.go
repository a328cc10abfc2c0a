package jobs

import "errors"

var (
	// ErrNotFound is returned by Update when the job no longer exists.
	ErrNotFound = errors.New("job not found")
	// ErrTerminal is returned by Update when the stored job already reached
	// completed or failed.
	ErrTerminal = errors.New("job already in a terminal state")
)
