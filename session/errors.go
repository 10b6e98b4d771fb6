package session

import (
	"fmt"

	apperrors "github.com/jrsteele09/bluecollar-client/internal/errors"
)

var (
	// ErrSessionInvalidated is returned to callers that were waiting on a
	// refresh exchange that failed. The session has been cleared.
	ErrSessionInvalidated = apperrors.ErrSessionInvalidated
	// ErrNoRefreshCredential means a refresh was needed but none is stored.
	ErrNoRefreshCredential = apperrors.ErrNoRefreshCredential
	// ErrRefreshRejected is the cause of every ExchangeError.
	ErrRefreshRejected = apperrors.ErrRefreshRejected
	// ErrNotAuthenticated is returned by TokenSource when no credential is held.
	ErrNotAuthenticated = apperrors.ErrNotAuthenticated
)

// ExchangeError is the backend's rejection of a refresh exchange.
type ExchangeError struct {
	Status int
	Body   []byte
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("refresh exchange rejected: status %d: %s", e.Status, string(e.Body))
}

func (e *ExchangeError) Unwrap() error {
	return ErrRefreshRejected
}
