package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jrsteele09/bluecollar-client/token"
)

const (
	bookingRoomPrefix = "booking_"
	userRoomPrefix    = "chat_user"
)

// BookingRoom names the chat room attached to a booking.
func BookingRoom(bookingID int64) string {
	return bookingRoomPrefix + strconv.FormatInt(bookingID, 10)
}

// BookingID extracts the booking id from a booking_<id> room.
func BookingID(room string) (int64, bool) {
	rest, ok := strings.CutPrefix(room, bookingRoomPrefix)
	if !ok || rest == "" || strings.Contains(rest, "_") {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// UserRoom names the direct chat between two users. The lower id comes first
// so both sides build the same name.
func UserRoom(a, b token.UserID) string {
	ai, aok := a.Int64()
	bi, bok := b.Int64()
	if (aok && bok && bi < ai) || (!(aok && bok) && b < a) {
		a, b = b, a
	}
	return fmt.Sprintf("%s%s_user%s", userRoomPrefix, a, b)
}

// UserRoomMembers returns the two users of a chat_user<a>_user<b> room.
func UserRoomMembers(room string) (token.UserID, token.UserID, bool) {
	rest, ok := strings.CutPrefix(room, userRoomPrefix)
	if !ok {
		return "", "", false
	}
	first, second, ok := strings.Cut(rest, "_user")
	if !ok || first == "" || second == "" {
		return "", "", false
	}
	return token.NewUserID(first), token.NewUserID(second), true
}

// ValidateRoom rejects room ids that cannot be used as a single URL path segment.
func ValidateRoom(room string) error {
	if strings.TrimSpace(room) == "" {
		return fmt.Errorf("%w: empty room id", ErrInvalidRoom)
	}
	if strings.ContainsAny(room, "/?#% \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}
	return nil
}
