package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a concurrent writer won the race.
	ErrConflict = errors.New("conflict")
)
