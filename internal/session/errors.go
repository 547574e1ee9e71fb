package session

import "errors"

var (
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRefreshFailed    = errors.New("token refresh failed")
	ErrProfileFetch     = errors.New("failed to fetch user profile")
	ErrStorageCorrupt   = errors.New("persisted session is corrupt")
	ErrSessionEnded     = errors.New("session ended while request was in flight")
)
