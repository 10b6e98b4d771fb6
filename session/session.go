// Package session owns the credential pair, the identity decoded from it and
// the refresh protocol that keeps it alive across concurrent requests.
package session

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jrsteele09/bluecollar-client/credentials"
	apperrors "github.com/jrsteele09/bluecollar-client/internal/errors"
	"github.com/jrsteele09/bluecollar-client/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Session is the process-wide holder of the credential pair. Writes only
// happen through Login, Logout and the coordinator's refresh outcome.
type Session struct {
	store   credentials.Store
	nowFunc func() time.Time

	mu           sync.RWMutex
	pair         token.Pair
	identity     *token.Identity
	initializing bool
	generation   uint64

	obsMu       sync.Mutex
	nextID      int
	invalidated map[int]func()
	changed     map[int]func(token.Pair)
}

type Option func(*Session)

func WithNowFunc(now func() time.Time) Option {
	return func(s *Session) {
		s.nowFunc = now
	}
}

func New(store credentials.Store, options ...Option) *Session {
	s := &Session{
		store:       store,
		invalidated: make(map[int]func()),
		changed:     make(map[int]func(token.Pair)),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}
	return s
}

// Restore performs the one-time startup check: a persisted, decodable and
// unexpired access credential becomes the session, anything else is cleared.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	s.initializing = true
	s.mu.Unlock()

	pair, identity, err := s.load(ctx)

	s.mu.Lock()
	s.initializing = false
	if err != nil || identity == nil {
		s.pair = token.Pair{}
		s.identity = nil
		s.mu.Unlock()
		if err != nil {
			log.Debug().Err(err).Msg("Session: stored credentials discarded on startup")
			if clearErr := credentials.DeleteAll(ctx, s.store, credentials.AccessKey, credentials.RefreshKey); clearErr != nil {
				return apperrors.Wrapf(clearErr, "Session.Restore clear")
			}
		}
		return nil
	}
	s.pair = pair
	s.identity = identity
	s.generation++
	s.mu.Unlock()

	log.Debug().Str("user_id", identity.UserID.String()).Msg("Session: restored from store")
	s.notifyChanged(pair)
	return nil
}

func (s *Session) load(ctx context.Context) (token.Pair, *token.Identity, error) {
	access, accessErr := s.store.Get(ctx, credentials.AccessKey)
	if accessErr != nil && !apperrors.Is(accessErr, credentials.ErrNotFound) {
		return token.Pair{}, nil, apperrors.Wrapf(accessErr, "Session.Restore access")
	}
	refresh, err := s.store.Get(ctx, credentials.RefreshKey)
	if err != nil && !apperrors.Is(err, credentials.ErrNotFound) {
		return token.Pair{}, nil, apperrors.Wrapf(err, "Session.Restore refresh")
	}
	if accessErr != nil {
		if refresh != "" {
			return token.Pair{}, nil, apperrors.Wrapf(accessErr, "Session.Restore refresh credential without access credential")
		}
		return token.Pair{}, nil, nil
	}

	identity, err := token.Decode(access)
	if err != nil {
		return token.Pair{}, nil, err
	}
	if identity.Expired(s.nowFunc()) {
		return token.Pair{}, nil, apperrors.ErrTokenExpired
	}
	return token.Pair{Access: access, Refresh: refresh}, identity, nil
}

// Initializing is true only while Restore runs.
func (s *Session) Initializing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initializing
}

// Login persists both credentials and adopts them. An access credential
// that cannot be decoded is still stored but leaves the identity empty.
func (s *Session) Login(ctx context.Context, pair token.Pair) error {
	if err := s.adopt(ctx, pair); err != nil {
		return apperrors.Wrapf(err, "Session.Login")
	}
	return nil
}

// Logout deletes both credentials and clears the session. It does not raise
// the invalidated signal.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.pair = token.Pair{}
	s.identity = nil
	s.generation++
	err := credentials.DeleteAll(ctx, s.store, credentials.AccessKey, credentials.RefreshKey)
	s.mu.Unlock()

	s.notifyChanged(token.Pair{})
	if err != nil {
		return apperrors.Wrapf(err, "Session.Logout")
	}
	return nil
}

// replace persists and adopts the pair produced by a successful refresh
// exchange. Observers are not notified; the coordinator does that once the
// flight has settled.
func (s *Session) replace(ctx context.Context, pair token.Pair) error {
	return s.commit(ctx, pair)
}

func (s *Session) adopt(ctx context.Context, pair token.Pair) error {
	if err := s.commit(ctx, pair); err != nil {
		return err
	}
	s.notifyChanged(pair)
	return nil
}

func (s *Session) commit(ctx context.Context, pair token.Pair) error {
	identity, err := token.Decode(pair.Access)
	if err != nil {
		log.Warn().Err(err).Msg("Session: access credential could not be decoded")
		identity = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	values := map[string]string{credentials.AccessKey: pair.Access}
	if pair.Refresh != "" {
		values[credentials.RefreshKey] = pair.Refresh
	}
	if err := credentials.SetAll(ctx, s.store, values); err != nil {
		return err
	}
	if pair.Refresh == "" {
		if err := s.store.Delete(ctx, credentials.RefreshKey); err != nil && !apperrors.Is(err, credentials.ErrNotFound) {
			return err
		}
	}
	s.pair = pair
	s.identity = identity
	s.generation++
	return nil
}

// drop clears the in-memory session and returns the generation it left
// behind. Stored credentials and observers are handled by invalidate.
func (s *Session) drop() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = token.Pair{}
	s.identity = nil
	s.generation++
	return s.generation
}

// invalidate deletes the stored credentials of a dropped session and raises
// the invalidated signal once. A login that happened since the drop keeps
// its credentials.
func (s *Session) invalidate(ctx context.Context, dropped uint64) {
	s.mu.Lock()
	var err error
	if s.generation == dropped {
		err = credentials.DeleteAll(ctx, s.store, credentials.AccessKey, credentials.RefreshKey)
	}
	s.mu.Unlock()
	if err != nil {
		log.Err(err).Msg("Session: failed to clear stored credentials")
	}

	s.notifyChanged(token.Pair{})

	s.obsMu.Lock()
	observers := make([]func(), 0, len(s.invalidated))
	for _, id := range sortedIDs(s.invalidated) {
		observers = append(observers, s.invalidated[id])
	}
	s.obsMu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// OnInvalidated registers fn to run whenever the session is invalidated by a
// failed refresh. The returned func removes the subscription.
func (s *Session) OnInvalidated(fn func()) (unsubscribe func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.nextID
	s.nextID++
	s.invalidated[id] = fn
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.invalidated, id)
	}
}

// OnChange registers fn to run after every credential change, including
// logout (with an empty pair).
func (s *Session) OnChange(fn func(token.Pair)) (unsubscribe func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.nextID
	s.nextID++
	s.changed[id] = fn
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.changed, id)
	}
}

func (s *Session) notifyChanged(pair token.Pair) {
	s.obsMu.Lock()
	observers := make([]func(token.Pair), 0, len(s.changed))
	for _, id := range sortedIDs(s.changed) {
		observers = append(observers, s.changed[id])
	}
	s.obsMu.Unlock()

	for _, fn := range observers {
		fn(pair)
	}
}

func (s *Session) Pair() token.Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair
}

// snapshot returns the pair together with the generation it belongs to.
// The generation changes on every login, logout and refresh.
func (s *Session) snapshot() (token.Pair, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair, s.generation
}

func (s *Session) generationNow() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Session) AccessToken() string {
	return s.Pair().Access
}

func (s *Session) RefreshToken() string {
	return s.Pair().Refresh
}

// Identity returns a copy of the decoded identity, or nil when logged out.
func (s *Session) Identity() *token.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	identity := *s.identity
	return &identity
}

func (s *Session) Authenticated() bool {
	return s.AccessToken() != ""
}

// TokenSource exposes the current access credential to oauth2-aware code.
// It never refreshes on its own; refreshing is the coordinator's job.
func (s *Session) TokenSource() oauth2.TokenSource {
	return tokenSource{session: s}
}

type tokenSource struct {
	session *Session
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	ts.session.mu.RLock()
	defer ts.session.mu.RUnlock()
	if ts.session.pair.Access == "" {
		return nil, ErrNotAuthenticated
	}
	t := &oauth2.Token{
		AccessToken:  ts.session.pair.Access,
		RefreshToken: ts.session.pair.Refresh,
		TokenType:    "Bearer",
	}
	if ts.session.identity != nil {
		t.Expiry = ts.session.identity.ExpiresAt
	}
	return t, nil
}

func sortedIDs[T any](m map[int]T) []int {
	return slices.Sorted(maps.Keys(m))
}
