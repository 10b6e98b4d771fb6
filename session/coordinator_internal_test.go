package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/bluecollar-client/credentials"
	"github.com/jrsteele09/bluecollar-client/credentials/memory"
	"github.com/jrsteele09/bluecollar-client/token"
	"github.com/stretchr/testify/require"
)

type gatedRefresher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	access  string
	rotated string
	err     error
}

func newGatedRefresher(access, rotated string, err error) *gatedRefresher {
	return &gatedRefresher{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
		access:  access,
		rotated: rotated,
		err:     err,
	}
}

func (g *gatedRefresher) Refresh(ctx context.Context, _ string) (string, string, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	<-g.release
	return g.access, g.rotated, g.err
}

type coordinatorFixture struct {
	store       *memory.Store
	session     *Session
	refresher   *gatedRefresher
	coordinator *Coordinator
	signals     atomic.Int32
}

func setupCoordinatorFixture(t *testing.T, pair token.Pair, refresher *gatedRefresher) *coordinatorFixture {
	t.Helper()
	f := &coordinatorFixture{
		store:     memory.New(),
		refresher: refresher,
	}
	f.session = New(f.store)
	require.NoError(t, f.session.Login(context.Background(), pair))
	f.session.OnInvalidated(func() { f.signals.Add(1) })
	f.coordinator = NewCoordinator(f.session, refresher)
	return f
}

type refreshOutcome struct {
	access string
	leader bool
	err    error
}

// runFlight starts a leader, waits for its exchange to begin, queues
// followers behind it and then lets the exchange finish.
func (f *coordinatorFixture) runFlight(t *testing.T, followers int) []refreshOutcome {
	t.Helper()
	ctx := context.Background()
	seen := f.session.generationNow()
	outcomes := make([]refreshOutcome, followers+1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a, l, err := f.coordinator.Refresh(ctx, seen)
		outcomes[0] = refreshOutcome{a, l, err}
	}()
	<-f.refresher.started

	for i := 1; i <= followers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, l, err := f.coordinator.Refresh(ctx, seen)
			outcomes[i] = refreshOutcome{a, l, err}
		}(i)
	}
	require.Eventually(t, func() bool { return f.coordinator.pending() == followers }, time.Second, time.Millisecond)

	close(f.refresher.release)
	wg.Wait()
	return outcomes
}

func TestPendingQueue_DrainsInOrderOnce(t *testing.T) {
	var q pendingQueue
	var order []int
	for i := range 3 {
		q.push(continuation{
			resolve: func(string) { order = append(order, i) },
			reject:  func(error) { t.Fatal("unexpected reject") },
		})
	}
	require.Equal(t, 3, q.len())

	q.drain("a", nil)
	q.drain("b", nil)
	q.drain("", errors.New("late"))

	require.Equal(t, []int{0, 1, 2}, order)
	require.Zero(t, q.len())
}

func TestPendingQueue_RejectsAll(t *testing.T) {
	var q pendingQueue
	boom := errors.New("boom")
	var got []error
	for range 2 {
		q.push(continuation{
			resolve: func(string) { t.Fatal("unexpected resolve") },
			reject:  func(err error) { got = append(got, err) },
		})
	}
	q.drain("", boom)
	require.Equal(t, []error{boom, boom}, got)
}

func TestCoordinator_SingleFlightSuccess(t *testing.T) {
	f := setupCoordinatorFixture(t, token.Pair{Access: "a1", Refresh: "r1"}, newGatedRefresher("a2", "", nil))

	outcomes := f.runFlight(t, 4)

	require.EqualValues(t, 1, f.refresher.calls.Load())
	leaders := 0
	for _, o := range outcomes {
		require.NoError(t, o.err)
		require.Equal(t, "a2", o.access)
		if o.leader {
			leaders++
		}
	}
	require.Equal(t, 1, leaders)
	require.Equal(t, token.Pair{Access: "a2", Refresh: "r1"}, f.session.Pair())
	require.Zero(t, f.signals.Load())
	require.Zero(t, f.coordinator.pending())

	stored, err := f.store.Get(context.Background(), credentials.AccessKey)
	require.NoError(t, err)
	require.Equal(t, "a2", stored)
}

func TestCoordinator_RotatesRefreshCredential(t *testing.T) {
	f := setupCoordinatorFixture(t, token.Pair{Access: "a1", Refresh: "r1"}, newGatedRefresher("a2", "r2", nil))

	f.runFlight(t, 0)

	require.Equal(t, token.Pair{Access: "a2", Refresh: "r2"}, f.session.Pair())
}

func TestCoordinator_FailureRejectsEveryone(t *testing.T) {
	boom := errors.New("refresh rejected")
	f := setupCoordinatorFixture(t, token.Pair{Access: "a1", Refresh: "r1"}, newGatedRefresher("", "", boom))

	outcomes := f.runFlight(t, 4)

	require.EqualValues(t, 1, f.refresher.calls.Load())
	for _, o := range outcomes {
		require.ErrorIs(t, o.err, boom)
		require.Empty(t, o.access)
	}
	require.EqualValues(t, 1, f.signals.Load())
	require.False(t, f.session.Authenticated())

	_, err := f.store.Get(context.Background(), credentials.AccessKey)
	require.ErrorIs(t, err, credentials.ErrNotFound)
	_, err = f.store.Get(context.Background(), credentials.RefreshKey)
	require.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestCoordinator_NoRefreshCredential(t *testing.T) {
	refresher := newGatedRefresher("a2", "", nil)
	f := setupCoordinatorFixture(t, token.Pair{Access: "a1"}, refresher)

	_, leader, err := f.coordinator.Refresh(context.Background(), f.session.generationNow())

	require.True(t, leader)
	require.ErrorIs(t, err, ErrNoRefreshCredential)
	require.Zero(t, refresher.calls.Load())
	require.EqualValues(t, 1, f.signals.Load())
	require.False(t, f.session.Authenticated())
}

func TestCoordinator_StaleGenerationSkipsFlight(t *testing.T) {
	refresher := newGatedRefresher("a3", "", nil)
	f := setupCoordinatorFixture(t, token.Pair{Access: "a1", Refresh: "r1"}, refresher)
	seen := f.session.generationNow()

	require.NoError(t, f.session.replace(context.Background(), token.Pair{Access: "a2", Refresh: "r1"}))
	access, leader, err := f.coordinator.Refresh(context.Background(), seen)
	require.NoError(t, err)
	require.False(t, leader)
	require.Equal(t, "a2", access)

	require.NoError(t, f.session.Logout(context.Background()))
	_, _, err = f.coordinator.Refresh(context.Background(), seen)
	require.ErrorIs(t, err, ErrSessionInvalidated)

	require.Zero(t, refresher.calls.Load())
	require.Zero(t, f.signals.Load())
}

func TestCoordinator_CallerLeavesFlightCompletes(t *testing.T) {
	f := setupCoordinatorFixture(t, token.Pair{Access: "a1", Refresh: "r1"}, newGatedRefresher("a2", "", nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := f.coordinator.Refresh(ctx, f.session.generationNow())
		done <- err
	}()
	<-f.refresher.started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(f.refresher.release)
	require.Eventually(t, func() bool { return f.session.AccessToken() == "a2" }, time.Second, time.Millisecond)
}

func TestCoordinator_FollowersResumeInArrivalOrder(t *testing.T) {
	f := setupCoordinatorFixture(t, token.Pair{Access: "a1", Refresh: "r1"}, newGatedRefresher("a2", "", nil))
	var (
		mu    sync.Mutex
		order []int
	)
	f.coordinator.resumed = func(position int) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, position)
	}

	ctx := context.Background()
	seen := f.session.generationNow()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, _ = f.coordinator.Refresh(ctx, seen)
	}()
	<-f.refresher.started

	const followers = 5
	accesses := make([]string, followers)
	for i := range followers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			access, _, err := f.coordinator.Refresh(ctx, seen)
			require.NoError(t, err)
			accesses[i] = access
		}(i)
		require.Eventually(t, func() bool { return f.coordinator.pending() == i+1 }, time.Second, time.Millisecond)
	}

	close(f.refresher.release)
	wg.Wait()

	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
	require.Equal(t, []string{"a2", "a2", "a2", "a2", "a2"}, accesses)
	require.EqualValues(t, 1, f.refresher.calls.Load())
}

func TestCoordinator_RefreshNowJoinsFlight(t *testing.T) {
	f := setupCoordinatorFixture(t, token.Pair{Access: "a1", Refresh: "r1"}, newGatedRefresher("a2", "", nil))
	ctx := context.Background()
	seen := f.session.generationNow()

	results := make(chan string, 4)
	go func() {
		access, err := f.coordinator.RefreshNow(ctx)
		require.NoError(t, err)
		results <- access
	}()
	<-f.refresher.started

	for range 2 {
		go func() {
			access, _, err := f.coordinator.Refresh(ctx, seen)
			require.NoError(t, err)
			results <- access
		}()
	}
	go func() {
		access, err := f.coordinator.RefreshNow(ctx)
		require.NoError(t, err)
		results <- access
	}()
	require.Eventually(t, func() bool { return f.coordinator.pending() == 3 }, time.Second, time.Millisecond)

	close(f.refresher.release)
	for range 4 {
		require.Equal(t, "a2", <-results)
	}
	require.EqualValues(t, 1, f.refresher.calls.Load())

	// Nothing in flight: a proactive refresh starts its own exchange.
	access, err := f.coordinator.RefreshNow(ctx)
	require.NoError(t, err)
	require.Equal(t, "a2", access)
	require.EqualValues(t, 2, f.refresher.calls.Load())
}

func TestCoordinator_ObserversRunAfterFlightSettles(t *testing.T) {
	boom := errors.New("refresh rejected")
	f := setupCoordinatorFixture(t, token.Pair{Access: "a1", Refresh: "r1"}, newGatedRefresher("", "", boom))
	close(f.refresher.release)

	type seenState struct {
		pending  int
		inflight bool
	}
	observed := make(chan seenState, 1)
	f.session.OnInvalidated(func() {
		f.coordinator.mu.Lock()
		inflight := f.coordinator.inflight != nil
		f.coordinator.mu.Unlock()
		observed <- seenState{pending: f.coordinator.pending(), inflight: inflight}
	})

	_, leader, err := f.coordinator.Refresh(context.Background(), f.session.generationNow())
	require.True(t, leader)
	require.ErrorIs(t, err, boom)
	require.Equal(t, seenState{}, <-observed)
	require.False(t, f.session.Authenticated())
}
