package memory_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/bluecollar-client/credentials"
	"github.com/jrsteele09/bluecollar-client/credentials/memory"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := s.Get(ctx, credentials.AccessKey)
	require.ErrorIs(t, err, credentials.ErrNotFound)

	require.NoError(t, credentials.SetAll(ctx, s, map[string]string{
		credentials.AccessKey:  "a",
		credentials.RefreshKey: "r",
	}))
	v, err := s.Get(ctx, credentials.RefreshKey)
	require.NoError(t, err)
	require.Equal(t, "r", v)

	require.NoError(t, credentials.DeleteAll(ctx, s, credentials.AccessKey, credentials.RefreshKey))
	_, err = s.Get(ctx, credentials.AccessKey)
	require.ErrorIs(t, err, credentials.ErrNotFound)
}
