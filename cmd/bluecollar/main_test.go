package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/bluecollar-client/chat"
	"github.com/jrsteele09/bluecollar-client/credentials/memory"
	"github.com/jrsteele09/bluecollar-client/session"
	"github.com/jrsteele09/bluecollar-client/token"
	"github.com/stretchr/testify/require"
)

func TestRoomArg(t *testing.T) {
	require.Equal(t, "booking_12", roomArg("12"))
	require.Equal(t, "chat_user1_user2", roomArg("chat_user1_user2"))
}

func TestChatPrinterPrintsEachMessageOnce(t *testing.T) {
	var out bytes.Buffer
	p := &chatPrinter{out: &out, printed: make(map[int64]struct{}), lost: make(chan struct{})}

	first := chat.Message{ID: 1, Message: "hi", SenderUsername: "bob", Timestamp: time.Now()}
	second := chat.Message{ID: 2, Message: "hello", SenderUsername: "alice", IsSelf: true, Timestamp: time.Now()}
	p.MessagesChanged("booking_1", []chat.Message{first})
	p.MessagesChanged("booking_1", []chat.Message{first, second})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "bob: hi")
	require.Contains(t, lines[1], "me: hello")

	p.Error("booking_1", &chat.RoomError{Room: "booking_1", Message: "not allowed"})
	require.Contains(t, out.String(), "! not allowed")

	p.Error("booking_1", chat.ErrConnectionLost)
	p.Error("booking_1", chat.ErrConnectionLost)
	select {
	case <-p.lost:
	default:
		t.Fatal("lost not signalled")
	}
}

func TestWhoami(t *testing.T) {
	var out bytes.Buffer
	sess := session.New(memory.New())
	a := &app{session: sess, out: &out}

	require.NoError(t, a.whoami())
	require.Equal(t, "Not logged in\n", out.String())

	claims := token.NewAccessClaims(token.UserIDFromInt(7), "bob", true, time.Now(), time.Hour)
	access, err := token.NewHMACSigner("test").Sign(claims)
	require.NoError(t, err)
	require.NoError(t, sess.Login(context.Background(), token.Pair{Access: access, Refresh: "r"}))

	out.Reset()
	require.NoError(t, a.whoami())
	require.Contains(t, out.String(), "bob (id 7, provider)")
}
