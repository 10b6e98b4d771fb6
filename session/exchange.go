package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const maxErrorBody = 4 << 10

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Exchanger performs the refresh exchange on its own http.Client so the
// request never passes through Transport.
type Exchanger struct {
	url    string
	client *http.Client
}

var _ Refresher = (*Exchanger)(nil)

type ExchangerOption func(*Exchanger)

// WithHTTPClient replaces the exchanger's isolated client. It must not be
// a client whose transport is this package's Transport.
func WithHTTPClient(client *http.Client) ExchangerOption {
	return func(e *Exchanger) {
		e.client = client
	}
}

// NewExchanger targets baseURL+refreshPath.
func NewExchanger(baseURL, refreshPath string, options ...ExchangerOption) *Exchanger {
	e := &Exchanger{
		url:    strings.TrimRight(baseURL, "/") + refreshPath,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	body, err := json.Marshal(refreshRequest{Refresh: refreshToken})
	if err != nil {
		return "", "", errors.Wrap(err, "Exchanger.Refresh marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return "", "", errors.Wrap(err, "Exchanger.Refresh request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", "", errors.Wrap(err, "Exchanger.Refresh send")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", "", &ExchangeError{Status: resp.StatusCode, Body: msg}
	}

	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", errors.Wrap(err, "Exchanger.Refresh decode")
	}
	if out.Access == "" {
		return "", "", errors.Wrap(ErrRefreshRejected, "response has no access credential")
	}
	return out.Access, out.Refresh, nil
}
