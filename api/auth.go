package api

import (
	"context"
	"net/http"

	"github.com/jrsteele09/bluecollar-client/token"
	"github.com/pkg/errors"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges a username and password for a credential pair and makes
// it the session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var pair token.Pair
	if err := c.Do(ctx, http.MethodPost, c.loginPath, loginRequest{Username: username, Password: password}, &pair); err != nil {
		return err
	}
	return c.session.Login(ctx, pair)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// Refresh exchanges the refresh credential for a new access credential
// ahead of any rejection. It shares the exchange with requests already
// waiting on one.
func (c *Client) Refresh(ctx context.Context) error {
	if _, err := c.coordinator.RefreshNow(ctx); err != nil {
		return errors.Wrap(err, "Client.Refresh")
	}
	return nil
}
