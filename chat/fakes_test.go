package chat_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/bluecollar-client/chat"
	"github.com/jrsteele09/bluecollar-client/token"
	"github.com/stretchr/testify/require"
)

type fakeCreds struct {
	mu       sync.Mutex
	access   string
	identity *token.Identity
}

func (f *fakeCreds) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access
}

func (f *fakeCreds) Identity() *token.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identity
}

func (f *fakeCreds) set(access string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = access
}

type fakeConn struct {
	url       string
	frames    chan []byte
	sent      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn(url string) *fakeConn {
	return &fakeConn{
		url:    url,
		frames: make(chan []byte, 16),
		sent:   make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Receive() ([]byte, error) {
	select {
	case data, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-c.closed:
		return nil, net.ErrClosed
	}
}

func (c *fakeConn) Send(data []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	c.sent <- data
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) push(t *testing.T, frame any) {
	t.Helper()
	if raw, ok := frame.(string); ok {
		c.frames <- []byte(raw)
		return
	}
	data, err := json.Marshal(frame)
	require.NoError(t, err)
	c.frames <- data
}

// peerClose ends the connection from the backend side.
func (c *fakeConn) peerClose() {
	close(c.frames)
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
	hold  chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (chat.Conn, error) {
	if d.hold != nil {
		select {
		case <-d.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	conn := newFakeConn(url)
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(t *testing.T, i int) *fakeConn {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.Greater(t, len(d.conns), i)
	return d.conns[i]
}

type recorder struct {
	mu       sync.Mutex
	states   []chat.State
	messages []chat.Message
	updates  int
	errs     []error
}

func (r *recorder) StateChanged(_ string, state chat.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recorder) MessagesChanged(_ string, messages []chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = messages
	r.updates++
}

func (r *recorder) Error(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) snapshot() ([]chat.State, []chat.Message, int, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.State(nil), r.states...), append([]chat.Message(nil), r.messages...), r.updates, append([]error(nil), r.errs...)
}

func (r *recorder) waitMessages(t *testing.T, n int) []chat.Message {
	t.Helper()
	var got []chat.Message
	require.Eventually(t, func() bool {
		_, got, _, _ = r.snapshot()
		return len(got) == n
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func (r *recorder) waitErrors(t *testing.T, n int) []error {
	t.Helper()
	var got []error
	require.Eventually(t, func() bool {
		_, _, _, got = r.snapshot()
		return len(got) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func historyFrame(messages ...map[string]any) map[string]any {
	if messages == nil {
		messages = []map[string]any{}
	}
	return map[string]any{"type": chat.FrameHistory, "messages": messages}
}

func messageFields(id int64, sender any, text string) map[string]any {
	return map[string]any{
		"id":              id,
		"message":         text,
		"sender_id":       sender,
		"sender_username": "user",
		"timestamp":       "2026-10-18T09:30:00.123456+00:00",
	}
}

func liveFrame(id int64, sender any, text string) map[string]any {
	m := messageFields(id, sender, text)
	m["type"] = chat.FrameMessage
	return m
}

func ids(messages []chat.Message) []int64 {
	out := make([]int64, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.ID)
	}
	return out
}
