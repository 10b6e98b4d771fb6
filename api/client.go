// Package api is the REST client for the marketplace backend. Every request
// it sends goes through the session's Transport.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/bluecollar-client/internal/config"
	"github.com/jrsteele09/bluecollar-client/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	RequestIDHeader = "X-Request-ID"
	maxErrorBody    = 4 << 10
)

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Status, string(e.Body))
}

type Client struct {
	baseURL     string
	loginPath   string
	session     *session.Session
	coordinator *session.Coordinator
	http        *http.Client
}

type Option func(*options)

type options struct {
	base http.RoundTripper
}

// WithBaseTransport sets the round tripper underneath both the session
// transport and the isolated refresh client.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

func New(cfg config.APIConfig, sess *session.Session, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	exchanger := session.NewExchanger(cfg.GetAPIURL(), cfg.GetRefreshPath(),
		session.WithHTTPClient(&http.Client{Transport: o.base, Timeout: cfg.GetRequestTimeout()}))
	coordinator := session.NewCoordinator(sess, exchanger)

	return &Client{
		baseURL:     cfg.GetAPIURL(),
		loginPath:   cfg.GetLoginPath(),
		session:     sess,
		coordinator: coordinator,
		http: &http.Client{
			Timeout: cfg.GetRequestTimeout(),
			Transport: &session.Transport{
				Base:        o.base,
				Session:     sess,
				Coordinator: coordinator,
				PublicPaths: cfg.GetPublicPaths(),
				RefreshPath: cfg.GetRefreshPath(),
			},
		},
	}
}

// Do sends in as JSON to path and decodes the reply into out. Either may be nil.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "Client.Do marshal")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "Client.Do request")
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	log.Debug().Str("request_id", requestID).Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Status: resp.StatusCode, Body: msg}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "Client.Do decode")
	}
	return nil
}
