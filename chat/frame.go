package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/bluecollar-client/token"
)

// Inbound frame types.
const (
	FrameHistory = "message_history"
	FrameMessage = "chat_message"
	FrameError   = "error"
)

// Message is one chat message as the backend serialises it.
type Message struct {
	ID             int64        `json:"id"`
	Message        string       `json:"message"`
	SenderID       token.UserID `json:"sender_id"`
	SenderUsername string       `json:"sender_username"`
	Timestamp      time.Time    `json:"timestamp"`
	RoomName       string       `json:"room_name,omitempty"`
	IsSelf         bool         `json:"is_self"`
}

// Frame is a decoded inbound frame. Messages is set for history frames,
// Message for live messages and Error for error frames.
type Frame struct {
	Type     string
	Messages []Message
	Message  Message
	Error    string
}

type inboundFrame struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
	Message
}

// DecodeFrame parses an inbound frame. A frame without a type that carries
// a message id is a live message.
func DecodeFrame(data []byte) (Frame, error) {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	switch in.Type {
	case FrameHistory:
		messages := in.Messages
		if messages == nil {
			messages = []Message{}
		}
		return Frame{Type: FrameHistory, Messages: messages}, nil
	case FrameMessage:
		return Frame{Type: FrameMessage, Message: in.Message}, nil
	case FrameError:
		return Frame{Type: FrameError, Error: in.Message.Message}, nil
	case "":
		if in.ID != 0 {
			return Frame{Type: FrameMessage, Message: in.Message}, nil
		}
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	default:
		return Frame{}, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, in.Type)
	}
}

// Outbound is the frame sent for a new message.
type Outbound struct {
	Message   string `json:"message"`
	BookingID int64  `json:"booking_id,omitempty"`
}

// NewOutbound builds the payload for text sent to room, correlating it with
// the booking when the room is a booking room.
func NewOutbound(room, text string) Outbound {
	out := Outbound{Message: text}
	if id, ok := BookingID(room); ok {
		out.BookingID = id
	}
	return out
}
