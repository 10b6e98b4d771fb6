package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/bluecollar-client/credentials"
	"github.com/jrsteele09/bluecollar-client/credentials/sqlite"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "creds.db")

	s := openStore(t, path)
	require.NoError(t, s.SetAll(ctx, map[string]string{
		credentials.AccessKey:  "a1",
		credentials.RefreshKey: "r1",
	}))
	require.NoError(t, s.Set(ctx, credentials.AccessKey, "a2"))
	require.NoError(t, s.Close())

	reopened := openStore(t, path)
	v, err := reopened.Get(ctx, credentials.AccessKey)
	require.NoError(t, err)
	require.Equal(t, "a2", v)

	v, err = reopened.Get(ctx, credentials.RefreshKey)
	require.NoError(t, err)
	require.Equal(t, "r1", v)
}

func TestStore_DeleteAll(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "creds.db"))

	require.NoError(t, s.Set(ctx, credentials.AccessKey, "a"))
	require.NoError(t, s.DeleteAll(ctx, credentials.AccessKey, credentials.RefreshKey))

	_, err := s.Get(ctx, credentials.AccessKey)
	require.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := sqlite.Open(" ")
	require.Error(t, err)
}
