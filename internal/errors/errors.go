package errors

import (
	"errors"
	"fmt"
)

// Common error types for the bluecollar client
var (
	// Credential errors
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrNoRefreshCredential = errors.New("no refresh credential stored")
	ErrRefreshRejected     = errors.New("refresh exchange rejected")

	// Session errors
	ErrSessionInvalidated = errors.New("session invalidated")
	ErrNotAuthenticated   = errors.New("not authenticated")

	// Chat errors
	ErrNotConnected   = errors.New("chat connection is not open")
	ErrConnectionLost = errors.New("chat connection closed unexpectedly")
	ErrMalformedFrame = errors.New("malformed chat frame")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrInvalidRoom    = errors.New("invalid room identifier")

	// Store errors
	ErrNotFound    = errors.New("not found")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
