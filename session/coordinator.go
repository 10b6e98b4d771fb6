package session

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/bluecollar-client/internal/errors"
	"github.com/jrsteele09/bluecollar-client/token"
	"github.com/rs/zerolog/log"
)

// Refresher performs the refresh exchange. rotated is empty when the backend
// kept the refresh credential unchanged.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (access string, rotated string, err error)
}

// continuation is one suspended caller waiting on a flight.
type continuation struct {
	resolve func(access string)
	reject  func(err error)
}

// pendingQueue is drained exactly once, all-resolve or all-reject, in the
// order callers were enqueued.
type pendingQueue struct {
	items   []continuation
	drained bool
}

func (q *pendingQueue) push(c continuation) {
	q.items = append(q.items, c)
}

func (q *pendingQueue) len() int {
	return len(q.items)
}

func (q *pendingQueue) drain(access string, err error) {
	if q.drained {
		return
	}
	q.drained = true
	items := q.items
	q.items = nil
	for _, c := range items {
		if err != nil {
			c.reject(err)
		} else {
			c.resolve(access)
		}
	}
}

// flight is the in-flight refresh handle. Its queue is only touched under
// the coordinator's lock until the flight is detached.
type flight struct {
	queue  pendingQueue
	done   chan struct{}
	access string
	err    error
}

// Coordinator guarantees at most one refresh exchange in flight. The first
// caller to need a refresh leads it; everyone arriving meanwhile waits on the
// same flight.
type Coordinator struct {
	session   *Session
	refresher Refresher

	mu       sync.Mutex
	inflight *flight

	// resumed, when set, sees each follower's enqueue position as the
	// queue is drained.
	resumed func(position int)
}

func NewCoordinator(session *Session, refresher Refresher) *Coordinator {
	return &Coordinator{
		session:   session,
		refresher: refresher,
	}
}

// Refresh returns a fresh access credential, either by leading a new
// refresh exchange or by waiting on the one already in flight. seen is the
// session generation the rejected request was sent under; if the session
// has moved on since, no exchange is started and the current credential is
// returned instead. leader tells the caller which role it played. A caller
// whose ctx ends stops waiting; the flight always runs to completion.
func (c *Coordinator) Refresh(ctx context.Context, seen uint64) (access string, leader bool, err error) {
	c.mu.Lock()
	if f := c.inflight; f != nil {
		results := make(chan flightResult, 1)
		position := f.queue.len()
		f.queue.push(continuation{
			resolve: func(access string) {
				c.resume(position)
				results <- flightResult{access: access}
			},
			reject: func(err error) {
				c.resume(position)
				results <- flightResult{err: err}
			},
		})
		c.mu.Unlock()

		select {
		case r := <-results:
			return r.access, false, r.err
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}

	// A flight finished after the request was sent.
	if c.session.generationNow() != seen {
		c.mu.Unlock()
		if current := c.session.AccessToken(); current != "" {
			return current, false, nil
		}
		return "", false, ErrSessionInvalidated
	}

	f := &flight{done: make(chan struct{})}
	c.inflight = f
	c.mu.Unlock()

	go c.run(context.WithoutCancel(ctx), f)

	select {
	case <-f.done:
		return f.access, true, f.err
	case <-ctx.Done():
		return "", true, ctx.Err()
	}
}

// RefreshNow refreshes the access credential without waiting for a
// rejection. It joins a flight already in progress, and returns the
// credential of one that finished a moment ago.
func (c *Coordinator) RefreshNow(ctx context.Context) (string, error) {
	access, _, err := c.Refresh(ctx, c.session.generationNow())
	return access, err
}

type flightResult struct {
	access string
	err    error
}

func (c *Coordinator) resume(position int) {
	if c.resumed != nil {
		c.resumed(position)
	}
}

// run leads one flight. The session is settled and the flight detached
// before the queue drains; observers run last, so they are free to send
// requests of their own.
func (c *Coordinator) run(ctx context.Context, f *flight) {
	defer close(f.done)

	pair, err := c.exchange(ctx)

	c.mu.Lock()
	var dropped uint64
	if err != nil {
		dropped = c.session.drop()
	}
	c.inflight = nil
	queue := f.queue
	f.queue = pendingQueue{drained: true}
	c.mu.Unlock()

	f.access, f.err = pair.Access, err
	queue.drain(pair.Access, err)

	if err != nil {
		log.Warn().Err(err).Msg("Session: token refresh failed, logging out")
		c.session.invalidate(ctx, dropped)
		return
	}
	log.Debug().Msg("Session: token refreshed")
	c.session.notifyChanged(pair)
}

func (c *Coordinator) exchange(ctx context.Context) (token.Pair, error) {
	pair := c.session.Pair()
	if pair.Refresh == "" {
		return token.Pair{}, ErrNoRefreshCredential
	}

	access, rotated, err := c.refresher.Refresh(ctx, pair.Refresh)
	if err != nil {
		return token.Pair{}, err
	}
	next := pair.Rotate(access, rotated)
	if err := c.session.replace(ctx, next); err != nil {
		return token.Pair{}, apperrors.Wrapf(err, "persist refreshed credentials")
	}
	return next, nil
}

// pending reports how many callers are queued behind the current flight.
func (c *Coordinator) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		return 0
	}
	return c.inflight.queue.len()
}
