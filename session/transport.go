package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/bluecollar-client/internal/config"
	"github.com/rs/zerolog/log"
)

type retryKey struct{}

// retryOf marks a request as the single permitted resubmission, carrying
// the credential it must be sent with.
func retryOf(ctx context.Context, access string) context.Context {
	return context.WithValue(ctx, retryKey{}, access)
}

func retried(ctx context.Context) (string, bool) {
	access, ok := ctx.Value(retryKey{}).(string)
	return access, ok
}

// Transport attaches the session's access credential to outgoing requests
// and, when the backend rejects it, runs the refresh protocol and resubmits
// the request once.
type Transport struct {
	Base        http.RoundTripper
	Session     *Session
	Coordinator *Coordinator
	PublicPaths config.PublicPaths
	RefreshPath string
}

var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) isPublic(path string) bool {
	return t.PublicPaths.IsPublic(path)
}

func (t *Transport) isRefresh(path string) bool {
	return t.RefreshPath != "" && strings.HasSuffix(path, t.RefreshPath)
}

// attach returns a copy of req carrying the credential it should be sent
// with, the session generation that credential came from and whether one
// was attached at all.
func (t *Transport) attach(req *http.Request) (*http.Request, uint64, bool) {
	out := req.Clone(req.Context())
	out.Body = req.Body
	pair, generation := t.Session.snapshot()
	if t.isPublic(req.URL.Path) {
		out.Header.Del("Authorization")
		return out, generation, false
	}

	access, ok := retried(req.Context())
	if !ok {
		access = pair.Access
	}
	if access == "" {
		return out, generation, false
	}
	out.Header.Set("Authorization", "Bearer "+access)
	return out, generation, true
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req, err := rewindable(req)
	if err != nil {
		return nil, err
	}

	attempt, generation, authenticated := t.attach(req)
	resp, err := t.base().RoundTrip(attempt)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// There is nothing to refresh for a request sent without a credential.
	if _, isRetry := retried(req.Context()); isRetry || !authenticated || t.isRefresh(req.URL.Path) {
		return resp, nil
	}

	if err := buffer(resp); err != nil {
		return nil, err
	}

	log.Debug().Str("path", req.URL.Path).Msg("Session: access credential rejected")
	access, leader, err := t.Coordinator.Refresh(req.Context(), generation)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if leader {
			return resp, nil
		}
		if errors.Is(err, ErrSessionInvalidated) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSessionInvalidated, err)
	}
	return t.resubmit(req, access)
}

func (t *Transport) resubmit(req *http.Request, access string) (*http.Response, error) {
	retry := req.WithContext(retryOf(req.Context(), access))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		retry.Body = body
	}
	return t.RoundTrip(retry)
}

// rewindable makes sure a request with a body can be replayed.
func rewindable(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return req, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(data))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return out, nil
}

// buffer reads the response body into memory so the connection is released
// while the caller waits on a refresh.
func buffer(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read rejected response: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return nil
}
