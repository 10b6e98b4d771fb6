package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/bluecollar-client/chat"
	"github.com/jrsteele09/bluecollar-client/token"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

// echoRoom sends an empty history and broadcasts every message back
// without a type field.
func echoRoom(t *testing.T) (*httptest.Server, chan string) {
	t.Helper()
	tokens := make(chan string, 4)
	mux := http.NewServeMux()
	mux.Handle("/ws/chat/", websocket.Handler(func(ws *websocket.Conn) {
		defer ws.Close()
		tokens <- ws.Request().URL.Query().Get("token")

		_ = websocket.Message.Send(ws, `{"type":"message_history","messages":[]}`)
		var id int64
		for {
			var raw string
			if err := websocket.Message.Receive(ws, &raw); err != nil {
				return
			}
			var in chat.Outbound
			if err := json.Unmarshal([]byte(raw), &in); err != nil {
				return
			}
			id++
			out, _ := json.Marshal(chat.Message{
				ID:             id,
				Message:        in.Message,
				SenderID:       "42",
				SenderUsername: "me",
				Timestamp:      time.Now().UTC(),
			})
			_ = websocket.Message.Send(ws, string(out))
		}
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, tokens
}

func TestWebsocketDialer_RoundTrip(t *testing.T) {
	srv, tokens := echoRoom(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"

	creds := &fakeCreds{access: "a b+c", identity: &token.Identity{UserID: token.UserIDFromInt(42)}}
	listener := &recorder{}
	ch, err := chat.NewChannel(wsURL, "booking_3", creds, listener, chat.WithDialer(chat.WebsocketDialer{Origin: srv.URL}))
	require.NoError(t, err)

	require.NoError(t, ch.Open(context.Background()))
	require.Equal(t, "a b+c", <-tokens)

	require.Eventually(t, func() bool {
		_, _, updates, _ := listener.snapshot()
		return updates == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, ch.SendMessage("hello there"))

	got := listener.waitMessages(t, 1)
	require.Equal(t, "hello there", got[0].Message)
	require.True(t, got[0].IsSelf)

	require.NoError(t, ch.Close())
	_, _, _, errs := listener.snapshot()
	require.Empty(t, errs)
}
