package repository

import "errors"

var (
	// ErrStorageUnavailable wraps every failure talking to the profile store.
	// Callers must treat it as retryable and never as "no data".
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
)
