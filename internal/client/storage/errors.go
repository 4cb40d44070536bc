package storage

import "errors"

// Common client storage errors
var (
	// ErrSessionNotFound indicates that no session exists
	ErrSessionNotFound = errors.New("session not found")

	// ErrWriteNotQueued indicates that the queued write was not found
	ErrWriteNotQueued = errors.New("queued write not found")
)
