package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/bluecollar-client/chat"
	"github.com/stretchr/testify/require"
)

type hubFixture struct {
	creds  *fakeCreds
	dialer *fakeDialer
	hub    *chat.Hub
}

func setupHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	f := &hubFixture{
		creds:  &fakeCreds{access: "access-1"},
		dialer: &fakeDialer{},
	}
	f.hub = chat.NewHub(wsBase, f.creds, chat.WithDialer(f.dialer), chat.WithHistoryWait(0))
	t.Cleanup(f.hub.CloseAll)
	return f
}

func TestHub_JoinReusesChannelForSameCredential(t *testing.T) {
	f := setupHubFixture(t)
	ctx := context.Background()

	first, err := f.hub.Join(ctx, "booking_1", &recorder{})
	require.NoError(t, err)
	second, err := f.hub.Join(ctx, "booking_1", &recorder{})
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, f.dialer.dials())
	require.Equal(t, []string{"booking_1"}, f.hub.Rooms())
}

func TestHub_JoinReplacesChannelOnCredentialChange(t *testing.T) {
	f := setupHubFixture(t)
	ctx := context.Background()
	listener := &recorder{}

	first, err := f.hub.Join(ctx, "booking_1", listener)
	require.NoError(t, err)
	f.creds.set("access-2")
	second, err := f.hub.Join(ctx, "booking_1", listener)
	require.NoError(t, err)

	require.NotSame(t, first, second)
	require.True(t, f.dialer.conn(t, 0).isClosed(), "stale connection closed before the new one opens")
	require.Equal(t, wsBase+"/booking_1/?token=access-2", f.dialer.conn(t, 1).url)
	require.Equal(t, chat.Closed, first.State())
	require.Equal(t, chat.Open, second.State())

	_, _, _, errs := listener.snapshot()
	require.Empty(t, errs)
}

func TestHub_JoinReopensLostChannel(t *testing.T) {
	f := setupHubFixture(t)
	ctx := context.Background()
	listener := &recorder{}

	first, err := f.hub.Join(ctx, "booking_1", listener)
	require.NoError(t, err)
	f.dialer.conn(t, 0).peerClose()
	require.Eventually(t, func() bool { return first.State() == chat.Closed }, time.Second, time.Millisecond)

	second, err := f.hub.Join(ctx, "booking_1", listener)
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.Equal(t, 2, f.dialer.dials())
}

func TestHub_JoinRequiresCredential(t *testing.T) {
	f := setupHubFixture(t)
	f.creds.set("")

	_, err := f.hub.Join(context.Background(), "booking_1", nil)

	require.ErrorIs(t, err, chat.ErrNotAuthenticated)
	require.Zero(t, f.dialer.dials())
}

func TestHub_Rekey(t *testing.T) {
	f := setupHubFixture(t)
	ctx := context.Background()

	_, err := f.hub.Join(ctx, "booking_1", nil)
	require.NoError(t, err)
	_, err = f.hub.Join(ctx, "booking_2", nil)
	require.NoError(t, err)

	require.NoError(t, f.hub.Rekey(ctx))
	require.Equal(t, 2, f.dialer.dials(), "nothing to do while the credential is unchanged")

	f.creds.set("access-2")
	require.NoError(t, f.hub.Rekey(ctx))
	require.Equal(t, 4, f.dialer.dials())
	for _, room := range []string{"booking_1", "booking_2"} {
		ch, ok := f.hub.Channel(room)
		require.True(t, ok)
		require.Equal(t, "access-2", ch.Credential())
	}

	f.creds.set("")
	require.NoError(t, f.hub.Rekey(ctx))
	require.Empty(t, f.hub.Rooms())
}

func TestHub_LeaveAndCloseAll(t *testing.T) {
	f := setupHubFixture(t)
	ctx := context.Background()
	listeners := map[string]*recorder{"booking_1": {}, "booking_2": {}, "booking_3": {}}
	for room, l := range listeners {
		_, err := f.hub.Join(ctx, room, l)
		require.NoError(t, err)
	}

	require.NoError(t, f.hub.Leave("booking_2"))
	require.NoError(t, f.hub.Leave("booking_9"))
	require.Equal(t, []string{"booking_1", "booking_3"}, f.hub.Rooms())

	f.hub.CloseAll()
	require.Empty(t, f.hub.Rooms())
	for room, l := range listeners {
		states, _, _, errs := l.snapshot()
		require.Equal(t, chat.Closed, states[len(states)-1], room)
		require.Empty(t, errs, room)
	}
}
