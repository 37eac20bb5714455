package models

import "errors"

var (
	// ErrNotFound means no student matches the given id.
	ErrNotFound = errors.New("student not found")
	// ErrWrongSecret means the student exists but the secret does not match.
	ErrWrongSecret = errors.New("wrong secret")
	// ErrBackendUnavailable means the identity store or the media collection
	// could not be reached or is not configured.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrSubscription means a live feed failed after it was opened.
	ErrSubscription = errors.New("subscription failed")
	// ErrSessionExpired means the server no longer accepts the session's
	// access token.
	ErrSessionExpired = errors.New("session expired")
	// ErrForeignItem means a snapshot carried an item owned by somebody else.
	ErrForeignItem = errors.New("item belongs to another student")
)
