package devserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/jrsteele09/bluecollar-client/token"
	"github.com/rs/zerolog/log"
)

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// TokenHandler exchanges a username and password for an access and refresh
// credential pair
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
			writeDetail(w, http.StatusBadRequest, "username and password are required", "")
			return
		}

		user, err := s.users.GetByUsername(req.Username)
		if err != nil || !user.CheckPassword(req.Password) || !user.CanLogin() {
			writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials", "")
			return
		}

		access, err := s.issueAccess(user)
		if err != nil {
			log.Err(err).Msg("issue access token")
			writeDetail(w, http.StatusInternalServerError, "could not issue token", "")
			return
		}
		refreshToken, err := s.refresh.Create(userIDString(user.ID))
		if err != nil {
			log.Err(err).Msg("issue refresh token")
			writeDetail(w, http.StatusInternalServerError, "could not issue token", "")
			return
		}

		user.LastLogin = s.nowFunc()
		_ = s.users.Upsert(user)
		writeJSON(w, http.StatusOK, tokenResponse{Access: access, Refresh: refreshToken})
	}
}

// RefreshHandler exchanges a refresh credential for a new access credential,
// and a rotated refresh credential when rotation is on
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls.Add(1)

		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
			writeDetail(w, http.StatusBadRequest, "refresh is required", "")
			return
		}

		stored, rotated, err := s.refresh.Exchange(req.Refresh)
		if err != nil {
			log.Debug().Err(err).Msg("refresh rejected")
			writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired", "token_not_valid")
			return
		}

		id, err := strconv.ParseInt(stored.UserID, 10, 64)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired", "token_not_valid")
			return
		}
		user, err := s.users.GetByID(id)
		if err != nil || !user.CanLogin() {
			writeDetail(w, http.StatusUnauthorized, "User not found", "user_not_found")
			return
		}

		access, err := s.issueAccess(user)
		if err != nil {
			log.Err(err).Msg("issue access token")
			writeDetail(w, http.StatusInternalServerError, "could not issue token", "")
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{Access: access, Refresh: rotated})
	}
}

type jwksPublisher interface {
	JWKS() (token.JWKS, error)
}

// JWKSHandler publishes the access credential verification key. HS256
// secrets are never published, so the set is empty for them.
func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		publisher, ok := s.signer.(jwksPublisher)
		if !ok {
			writeJSON(w, http.StatusOK, token.JWKS{Keys: []token.JWK{}})
			return
		}
		jwks, err := publisher.JWKS()
		if err != nil {
			log.Err(err).Msg("build jwks")
			writeDetail(w, http.StatusInternalServerError, "could not publish keys", "")
			return
		}
		writeJSON(w, http.StatusOK, jwks)
	}
}
