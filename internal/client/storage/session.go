package storage

import (
	"context"
)

// SessionStorage defines interface for storing the device session on client.
// Tokens are stored as-is: the session file lives in the user's home
// directory with 0600 permissions.
type SessionStorage interface {
	// SaveSession stores the current session, replacing any previous one
	SaveSession(ctx context.Context, session *Session) error

	// GetSession retrieves the stored session.
	// Returns ErrSessionNotFound if no session exists.
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession removes the stored session (logout)
	DeleteSession(ctx context.Context) error

	// IsAuthenticated checks if a non-expired session exists
	IsAuthenticated(ctx context.Context) (bool, error)
}

// Session represents the authenticated device session
type Session struct {
	DeviceID    string `json:"device_id"`
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"` // unix seconds
}
