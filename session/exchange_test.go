package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/bluecollar-client/session"
	"github.com/stretchr/testify/require"
)

func TestExchanger_Refresh(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantAccess  string
		wantRotated string
		wantStatus  int
		wantErr     error
	}{
		{name: "keeps refresh", status: http.StatusOK, body: `{"access":"a2"}`, wantAccess: "a2"},
		{name: "rotates refresh", status: http.StatusOK, body: `{"access":"a2","refresh":"r2"}`, wantAccess: "a2", wantRotated: "r2"},
		{name: "rejected", status: http.StatusUnauthorized, body: `{"detail":"Token is blacklisted"}`, wantStatus: http.StatusUnauthorized, wantErr: session.ErrRefreshRejected},
		{name: "missing access", status: http.StatusOK, body: `{}`, wantErr: session.ErrRefreshRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/api/token/refresh/", r.URL.Path)
				require.Empty(t, r.Header.Get("Authorization"))
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			exchanger := session.NewExchanger(srv.URL+"/api/", "/token/refresh/", session.WithHTTPClient(srv.Client()))
			access, rotated, err := exchanger.Refresh(context.Background(), "r1")

			require.Equal(t, "r1", got["refresh"])
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				if tt.wantStatus != 0 {
					var exchangeErr *session.ExchangeError
					require.ErrorAs(t, err, &exchangeErr)
					require.Equal(t, tt.wantStatus, exchangeErr.Status)
					require.Contains(t, string(exchangeErr.Body), "blacklisted")
				}
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantAccess, access)
			require.Equal(t, tt.wantRotated, rotated)
		})
	}
}
