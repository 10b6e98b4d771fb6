// Package chat keeps one live connection per chat room and turns its frame
// stream into an ordered message sequence.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/bluecollar-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultHistoryWait is how long live messages are held back waiting for
// the history snapshot after a connection opens.
const DefaultHistoryWait = 2 * time.Second

type State int

const (
	Idle State = iota
	Connecting
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CredentialSource supplies the access credential a channel connects with
// and the identity its messages are attributed against.
type CredentialSource interface {
	AccessToken() string
	Identity() *token.Identity
}

type Option func(*options)

type options struct {
	dialer      Dialer
	historyWait time.Duration
}

func WithDialer(d Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithHistoryWait bounds the wait for the history snapshot. Zero shows live
// messages immediately.
func WithHistoryWait(d time.Duration) Option {
	return func(o *options) {
		o.historyWait = d
	}
}

type event func(Listener)

// Channel is the connection to one room. The zero state is Idle; Open moves
// it to Connecting and then Open, and any disconnect ends in Closed, from
// where Open may be called again.
type Channel struct {
	room     string
	baseURL  string
	creds    CredentialSource
	listener Listener
	opts     options

	mu            sync.Mutex
	state         State
	conn          Conn
	credential    string
	closing       bool
	historyLoaded bool
	pending       []Message
	messages      []Message
	readerDone    chan struct{}
	gate          *time.Timer
	events        []event
	dispatching   bool
}

func NewChannel(baseURL, room string, creds CredentialSource, listener Listener, opts ...Option) (*Channel, error) {
	if err := ValidateRoom(room); err != nil {
		return nil, err
	}
	o := options{
		dialer:      WebsocketDialer{},
		historyWait: DefaultHistoryWait,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if listener == nil {
		listener = ListenerFuncs{}
	}
	return &Channel{
		room:     room,
		baseURL:  strings.TrimRight(baseURL, "/"),
		creds:    creds,
		listener: listener,
		opts:     o,
	}, nil
}

func (c *Channel) Room() string {
	return c.room
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether the channel holds or is acquiring a connection.
func (c *Channel) Active() bool {
	state := c.State()
	return state == Connecting || state == Open
}

// Credential is the access credential the current or last connection was
// opened with.
func (c *Channel) Credential() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential
}

func (c *Channel) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

func (c *Channel) url(access string) string {
	return c.baseURL + "/" + c.room + "/?token=" + url.QueryEscape(access)
}

// Open connects to the room with the current access credential. It is a
// no-op while a connection is being opened or is open.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Connecting || c.state == Open {
		c.mu.Unlock()
		return nil
	}
	access := c.creds.AccessToken()
	if access == "" {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	c.state = Connecting
	c.credential = access
	c.closing = false
	c.historyLoaded = false
	c.pending = nil
	c.messages = nil
	c.queue(func(l Listener) { l.StateChanged(c.room, Connecting) })
	c.mu.Unlock()
	c.flush()

	conn, err := c.opts.dialer.Dial(ctx, c.url(access))

	c.mu.Lock()
	switch {
	case c.closing:
		c.state = Closed
		c.queue(func(l Listener) { l.StateChanged(c.room, Closed) })
		if conn != nil {
			_ = conn.Close()
		}
		err = ErrNotConnected
	case err != nil:
		log.Warn().Err(err).Str("room", c.room).Msg("chat: connect failed")
		c.state = Closed
		lost := fmt.Errorf("%w: %w", ErrConnectionLost, err)
		c.queue(func(l Listener) {
			l.StateChanged(c.room, Closed)
			l.Error(c.room, lost)
		})
	default:
		c.state = Open
		c.conn = conn
		c.readerDone = make(chan struct{})
		if c.opts.historyWait > 0 {
			c.gate = time.AfterFunc(c.opts.historyWait, func() { c.releaseGate(conn) })
		} else {
			c.historyLoaded = true
		}
		go c.read(conn, c.readerDone)
		log.Debug().Str("room", c.room).Msg("chat: connected")
		c.queue(func(l Listener) { l.StateChanged(c.room, Open) })
	}
	c.mu.Unlock()
	c.flush()
	return err
}

// Close ends the connection cleanly and waits for its reader to stop. No
// connection-lost error is surfaced.
func (c *Channel) Close() error {
	c.mu.Lock()
	switch c.state {
	case Connecting:
		c.closing = true
		c.mu.Unlock()
		return nil
	case Open:
	default:
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	conn, done := c.conn, c.readerDone
	c.mu.Unlock()

	err := conn.Close()
	<-done
	return err
}

// SendMessage transmits text immediately. Outside the Open state nothing is
// sent and ErrNotConnected is both returned and surfaced to the listener.
func (c *Channel) SendMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	conn := c.conn
	if c.state != Open || conn == nil {
		c.queue(func(l Listener) { l.Error(c.room, ErrNotConnected) })
		c.mu.Unlock()
		c.flush()
		return ErrNotConnected
	}
	c.mu.Unlock()

	data, err := json.Marshal(NewOutbound(c.room, text))
	if err != nil {
		return errors.Wrap(err, "Channel.SendMessage marshal")
	}
	if err := conn.Send(data); err != nil {
		return errors.Wrap(err, "Channel.SendMessage send")
	}
	return nil
}

func (c *Channel) read(conn Conn, done chan struct{}) {
	defer close(done)
	for {
		data, err := conn.Receive()
		if err != nil {
			c.disconnected(conn, err)
			return
		}
		c.handle(conn, data)
	}
}

func (c *Channel) handle(conn Conn, data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		log.Warn().Err(err).Str("room", c.room).Msg("chat: ignoring frame")
		return
	}
	identity := c.creds.Identity()

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	switch frame.Type {
	case FrameError:
		roomErr := &RoomError{Room: c.room, Message: frame.Error}
		c.queue(func(l Listener) { l.Error(c.room, roomErr) })
	case FrameHistory:
		c.messages = attribute(frame.Messages, identity)
		if !c.historyLoaded {
			c.historyLoaded = true
			c.stopGate()
			c.messages = appendUnseen(c.messages, c.pending)
			c.pending = nil
		}
		c.queueMessages()
	case FrameMessage:
		msg := attribute([]Message{frame.Message}, identity)[0]
		if !c.historyLoaded {
			c.pending = append(c.pending, msg)
			break
		}
		c.messages = append(c.messages, msg)
		c.queueMessages()
	}
	c.mu.Unlock()
	c.flush()
}

// releaseGate shows buffered live messages when no snapshot arrived in time.
func (c *Channel) releaseGate(conn Conn) {
	c.mu.Lock()
	if c.conn != conn || c.historyLoaded {
		c.mu.Unlock()
		return
	}
	c.historyLoaded = true
	c.messages = append(c.messages, c.pending...)
	c.pending = nil
	if len(c.messages) > 0 {
		c.queueMessages()
	}
	c.mu.Unlock()
	c.flush()
}

func (c *Channel) disconnected(conn Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	clean := c.closing
	c.conn = nil
	c.state = Closed
	c.pending = nil
	c.stopGate()

	if clean {
		log.Debug().Str("room", c.room).Msg("chat: closed")
		c.queue(func(l Listener) { l.StateChanged(c.room, Closed) })
	} else {
		log.Warn().Err(cause).Str("room", c.room).Msg("chat: connection lost")
		lost := fmt.Errorf("%w: %w", ErrConnectionLost, cause)
		c.queue(func(l Listener) {
			l.StateChanged(c.room, Closed)
			l.Error(c.room, lost)
		})
	}
	c.mu.Unlock()
	c.flush()
}

func (c *Channel) stopGate() {
	if c.gate != nil {
		c.gate.Stop()
		c.gate = nil
	}
}

func (c *Channel) queueMessages() {
	snapshot := slices.Clone(c.messages)
	c.queue(func(l Listener) { l.MessagesChanged(c.room, snapshot) })
}

// queue must be called with mu held.
func (c *Channel) queue(ev event) {
	c.events = append(c.events, ev)
}

// flush delivers queued events. Only one goroutine delivers at a time; the
// others leave their events to it.
func (c *Channel) flush() {
	c.mu.Lock()
	if c.dispatching {
		c.mu.Unlock()
		return
	}
	c.dispatching = true
	for len(c.events) > 0 {
		ev := c.events[0]
		c.events = c.events[1:]
		c.mu.Unlock()
		ev(c.listener)
		c.mu.Lock()
	}
	c.dispatching = false
	c.mu.Unlock()
}

func attribute(messages []Message, identity *token.Identity) []Message {
	out := slices.Clone(messages)
	if identity == nil {
		return out
	}
	for i := range out {
		out[i].IsSelf = identity.Is(out[i].SenderID)
	}
	return out
}

func appendUnseen(messages, live []Message) []Message {
	seen := make(map[int64]struct{}, len(messages))
	for _, m := range messages {
		if m.ID != 0 {
			seen[m.ID] = struct{}{}
		}
	}
	for _, m := range live {
		if _, dup := seen[m.ID]; dup && m.ID != 0 {
			continue
		}
		messages = append(messages, m)
	}
	return messages
}
