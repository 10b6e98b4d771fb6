package chat

import (
	apperrors "github.com/jrsteele09/bluecollar-client/internal/errors"
)

var (
	// ErrNotConnected is returned by SendMessage outside the Open state.
	ErrNotConnected = apperrors.ErrNotConnected

	// ErrConnectionLost is surfaced when the peer or the network ends the connection.
	ErrConnectionLost = apperrors.ErrConnectionLost

	ErrMalformedFrame   = apperrors.ErrMalformedFrame
	ErrEmptyMessage     = apperrors.ErrEmptyMessage
	ErrInvalidRoom      = apperrors.ErrInvalidRoom
	ErrNotAuthenticated = apperrors.ErrNotAuthenticated
)

// RoomError is an error frame sent by the backend. The connection stays open.
type RoomError struct {
	Room    string
	Message string
}

func (e *RoomError) Error() string {
	return "chat room " + e.Room + ": " + e.Message
}
