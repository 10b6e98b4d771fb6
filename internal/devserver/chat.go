package devserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/jrsteele09/bluecollar-client/chat"
	"github.com/jrsteele09/bluecollar-client/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/websocket"
)

const (
	maxRoomMessages = 200
	historyLimit    = 50
)

const notAuthorizedMessage = "Failed to save or send message. You might not be authorized for this chat."

type historyFrame struct {
	Type     string         `json:"type"`
	Messages []chat.Message `json:"messages"`
}

type messageFrame struct {
	Type string `json:"type"`
	chat.Message
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type chatPeer struct {
	mu     sync.Mutex
	ws     *websocket.Conn
	userID token.UserID
}

func (p *chatPeer) send(frame any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return websocket.JSON.Send(p.ws, frame)
}

type roomHub struct {
	mu     sync.Mutex
	nextID int64
	rooms  map[string]*chatRoom
}

func newRoomHub() *roomHub {
	return &roomHub{rooms: make(map[string]*chatRoom)}
}

func (h *roomHub) room(name string) *chatRoom {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[name]
	if ok {
		return room
	}
	room = &chatRoom{hub: h, name: name, subscribers: make(map[*chatPeer]struct{})}
	h.rooms[name] = room
	return room
}

func (h *roomHub) messageID() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	return h.nextID
}

type chatRoom struct {
	hub         *roomHub
	name        string
	mu          sync.Mutex
	messages    []chat.Message
	subscribers map[*chatPeer]struct{}
}

// join subscribes the peer and sends it the recent history. Holding the
// room lock keeps the history ahead of any broadcast.
func (r *chatRoom) join(peer *chatPeer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[peer] = struct{}{}
	history := r.messages
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	return peer.send(historyFrame{Type: chat.FrameHistory, Messages: attributed(history, peer.userID)})
}

func (r *chatRoom) leave(peer *chatPeer) {
	r.mu.Lock()
	delete(r.subscribers, peer)
	r.mu.Unlock()
}

// publish stores msg and sends it to every subscriber, marking it as their
// own for the sender.
func (r *chatRoom) publish(msg chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg.ID = r.hub.messageID()
	r.messages = append(r.messages, msg)
	if len(r.messages) > maxRoomMessages {
		r.messages = r.messages[len(r.messages)-maxRoomMessages:]
	}

	for subscriber := range r.subscribers {
		out := msg
		out.IsSelf = subscriber.userID == msg.SenderID
		if err := subscriber.send(messageFrame{Type: chat.FrameMessage, Message: out}); err != nil {
			log.Debug().Err(err).Str("room", r.name).Msg("chat: broadcast failed")
		}
	}
}

// ChatHandler upgrades /ws/chat/{room}/?token=<access> to a websocket. The
// credential is checked before the upgrade; room membership is checked on
// every send.
func (s *Server) ChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomName := r.PathValue("room")
		if err := chat.ValidateRoom(roomName); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		claims, err := s.authenticate(strings.TrimSpace(r.URL.Query().Get("token")))
		if err != nil {
			log.Debug().Err(err).Str("room", roomName).Msg("chat: websocket unauthorized")
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		websocket.Handler(func(ws *websocket.Conn) {
			s.serveChat(ws, roomName, claims)
		}).ServeHTTP(w, r)
	}
}

func (s *Server) serveChat(ws *websocket.Conn, roomName string, claims *token.Claims) {
	defer func() {
		_ = ws.Close()
	}()

	peer := &chatPeer{ws: ws, userID: claims.UserID}
	room := s.rooms.room(roomName)
	defer room.leave(peer)
	if err := room.join(peer); err != nil {
		return
	}
	log.Debug().Str("room", roomName).Str("user", claims.Username).Msg("chat: connected")

	for {
		var raw []byte
		if err := websocket.Message.Receive(ws, &raw); err != nil {
			log.Debug().Err(err).Str("room", roomName).Msg("chat: disconnected")
			return
		}
		var in chat.Outbound
		if err := json.Unmarshal(raw, &in); err != nil {
			_ = peer.send(errorFrame{Type: chat.FrameError, Message: "invalid message payload"})
			continue
		}
		if strings.TrimSpace(in.Message) == "" {
			continue
		}
		if !s.mayPost(roomName, claims) {
			log.Info().Str("room", roomName).Str("user", claims.Username).Msg("chat: denied message to room")
			_ = peer.send(errorFrame{Type: chat.FrameError, Message: notAuthorizedMessage})
			continue
		}

		room.publish(chat.Message{
			Message:        in.Message,
			SenderID:       claims.UserID,
			SenderUsername: claims.Username,
			Timestamp:      s.nowFunc().UTC(),
			RoomName:       roomName,
		})
	}
}

// mayPost applies the room naming rules: booking rooms are limited to the
// booking's customer and provider, user rooms to the two users named.
func (s *Server) mayPost(roomName string, claims *token.Claims) bool {
	userID, ok := claims.UserID.Int64()
	if !ok {
		return false
	}
	if bookingID, ok := chat.BookingID(roomName); ok {
		booking, found := s.bookings.get(bookingID)
		return found && booking.participant(userID)
	}
	if a, b, ok := chat.UserRoomMembers(roomName); ok {
		return claims.UserID == a || claims.UserID == b
	}
	return true
}

func attributed(messages []chat.Message, userID token.UserID) []chat.Message {
	out := make([]chat.Message, len(messages))
	for i, m := range messages {
		m.IsSelf = m.SenderID == userID
		out[i] = m
	}
	return out
}
