// Package credentials persists the session's credential pair in an opaque
// key-value store.
package credentials

import (
	"context"

	apperrors "github.com/jrsteele09/bluecollar-client/internal/errors"
)

// Well-known keys the credential pair is stored under.
const (
	AccessKey  = "accessToken"
	RefreshKey = "refreshToken"
)

// ErrNotFound is returned by Get when a key holds no value.
var ErrNotFound = apperrors.ErrNotFound

// Store is an opaque string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Batcher is implemented by stores that can write several keys atomically.
type Batcher interface {
	SetAll(ctx context.Context, values map[string]string) error
	DeleteAll(ctx context.Context, keys ...string) error
}

// SetAll writes every value, atomically when the store supports it.
func SetAll(ctx context.Context, s Store, values map[string]string) error {
	if b, ok := s.(Batcher); ok {
		return b.SetAll(ctx, values)
	}
	for k, v := range values {
		if err := s.Set(ctx, k, v); err != nil {
			return apperrors.Wrapf(err, "set %s", k)
		}
	}
	return nil
}

// DeleteAll removes every key, atomically when the store supports it.
// Missing keys are not an error.
func DeleteAll(ctx context.Context, s Store, keys ...string) error {
	if b, ok := s.(Batcher); ok {
		return b.DeleteAll(ctx, keys...)
	}
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil && !apperrors.Is(err, ErrNotFound) {
			return apperrors.Wrapf(err, "delete %s", k)
		}
	}
	return nil
}
