package refresh_test

import (
	"testing"
	"time"

	apperrors "github.com/jrsteele09/bluecollar-client/internal/errors"
	"github.com/jrsteele09/bluecollar-client/token/refresh"
	refreshrepofake "github.com/jrsteele09/bluecollar-client/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

func TestManager_Exchange(t *testing.T) {
	t.Run("valid without rotation", func(t *testing.T) {
		m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), time.Hour, false)
		tok, err := m.Create("user-1")
		require.NoError(t, err)

		rt, rotated, err := m.Exchange(tok)
		require.NoError(t, err)
		require.Equal(t, "user-1", rt.UserID)
		require.Empty(t, rotated)
	})

	t.Run("rotation invalidates the old credential", func(t *testing.T) {
		m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), time.Hour, true)
		tok, err := m.Create("user-1")
		require.NoError(t, err)

		_, rotated, err := m.Exchange(tok)
		require.NoError(t, err)
		require.NotEmpty(t, rotated)
		require.NotEqual(t, tok, rotated)

		_, _, err = m.Exchange(tok)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("unknown", func(t *testing.T) {
		m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), time.Hour, false)
		_, _, err := m.Exchange("nope")
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), time.Minute, false)
		tok, err := m.Create("user-1")
		require.NoError(t, err)

		refresh.NowTimeFunc = func() time.Time { return time.Now().Add(time.Hour) }
		t.Cleanup(func() { refresh.NowTimeFunc = time.Now })

		_, _, err = m.Exchange(tok)
		require.ErrorIs(t, err, apperrors.ErrTokenExpired)
	})
}
