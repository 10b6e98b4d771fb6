package chat

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub owns at most one Channel per room. A channel belongs to the access
// credential it was opened with; once the session's credential changes the
// channel is replaced rather than reused.
type Hub struct {
	baseURL string
	creds   CredentialSource
	opts    []Option

	mu       sync.Mutex
	channels map[string]*Channel
}

func NewHub(baseURL string, creds CredentialSource, opts ...Option) *Hub {
	return &Hub{
		baseURL:  baseURL,
		creds:    creds,
		opts:     opts,
		channels: make(map[string]*Channel),
	}
}

// Join returns the room's channel, opening it if needed. An active channel
// opened with the current credential is returned as is, keeping its
// original listener. A channel opened with an older credential is closed
// before its replacement is opened.
func (h *Hub) Join(ctx context.Context, room string, listener Listener) (*Channel, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.join(ctx, room, listener)
}

func (h *Hub) join(ctx context.Context, room string, listener Listener) (*Channel, error) {
	current := h.creds.AccessToken()
	if current == "" {
		return nil, ErrNotAuthenticated
	}

	if ch, ok := h.channels[room]; ok {
		if ch.Active() && ch.Credential() == current {
			return ch, nil
		}
		delete(h.channels, room)
		if err := ch.Close(); err != nil {
			log.Debug().Err(err).Str("room", room).Msg("chat: closing stale channel")
		}
	}

	ch, err := NewChannel(h.baseURL, room, h.creds, listener, h.opts...)
	if err != nil {
		return nil, err
	}
	if err := ch.Open(ctx); err != nil {
		return nil, err
	}
	h.channels[room] = ch
	return ch, nil
}

// Leave closes the room's channel.
func (h *Hub) Leave(room string) error {
	h.mu.Lock()
	ch, ok := h.channels[room]
	delete(h.channels, room)
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return ch.Close()
}

// Rekey replaces every active channel opened with a credential other than
// the current one. Channels that already lost their connection are dropped,
// as are all stale channels when there is no current credential.
func (h *Hub) Rekey(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	current := h.creds.AccessToken()
	var firstErr error
	for _, room := range slices.Sorted(maps.Keys(h.channels)) {
		ch := h.channels[room]
		if ch.Credential() == current {
			continue
		}
		if current == "" || !ch.Active() {
			delete(h.channels, room)
			_ = ch.Close()
			continue
		}
		if _, err := h.join(ctx, room, ch.listener); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CloseAll closes every channel.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	channels := h.channels
	h.channels = make(map[string]*Channel)
	h.mu.Unlock()

	for _, room := range slices.Sorted(maps.Keys(channels)) {
		if err := channels[room].Close(); err != nil {
			log.Debug().Err(err).Str("room", room).Msg("chat: close")
		}
	}
}

// Rooms lists the rooms with a channel, sorted.
func (h *Hub) Rooms() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Sorted(maps.Keys(h.channels))
}

// Channel returns the room's channel, if any.
func (h *Hub) Channel(room string) (*Channel, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[room]
	return ch, ok
}
