// Package devserver is a small stand-in for the marketplace backend: JWT
// login and refresh, a protected bookings listing and the booking chat
// websocket. It backs the end-to-end tests and cmd/devserver.
package devserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/bluecollar-client/internal/config"
	"github.com/jrsteele09/bluecollar-client/token"
	"github.com/jrsteele09/bluecollar-client/token/refresh"
	"github.com/jrsteele09/bluecollar-client/users"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	users     users.UserRepo
	refresh   *refresh.Manager
	signer    token.Signer
	ledger    *token.AccessLedger
	accessTTL time.Duration
	origins   config.AllowedOrigins
	nowFunc   func() time.Time

	bookings *bookingStore
	rooms    *roomHub

	refreshCalls atomic.Int64
}

type Option func(*Server)

// WithNowFunc sets the clock used to issue access credentials.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func New(cfg config.DevServerConfig, userRepo users.UserRepo, refreshRepo refresh.Repo, options ...Option) (*Server, error) {
	signer, err := token.NewSigner(cfg.GetSigningAlg(), cfg.GetSigningSecret(), "devserver-"+uuid.NewString()[:8])
	if err != nil {
		return nil, err
	}

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		users:     userRepo,
		refresh:   refresh.NewManager(refreshRepo, cfg.GetRefreshTTL(), cfg.GetRotateRefresh()),
		signer:    signer,
		ledger:    token.NewAccessLedger(),
		accessTTL: cfg.GetAccessTTL(),
		origins:   cfg.GetAllowedOrigins(),
		nowFunc:   time.Now,
		bookings:  newBookingStore(),
		rooms:     newRoomHub(),
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// RefreshCalls counts refresh exchanges received, successful or not.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// RevokeAccessTokens makes every access credential issued so far invalid,
// as if they had all expired.
func (s *Server) RevokeAccessTokens() {
	live := s.ledger.RevokeAll(s.nowFunc())
	log.Debug().Int("revoked", live).Msg("revoked access tokens")
}

// RevokeRefreshToken deletes a refresh credential so the next exchange with
// it fails.
func (s *Server) RevokeRefreshToken(refreshToken string) error {
	return s.refresh.Delete(refreshToken)
}

func (s *Server) issueAccess(user *users.User) (string, error) {
	claims := token.NewAccessClaims(token.UserIDFromInt(user.ID), user.Username, user.IsProvider, s.nowFunc(), s.accessTTL)
	raw, err := s.signer.Sign(claims)
	if err != nil {
		return "", err
	}
	s.ledger.Issued(claims)
	return raw, nil
}

// authenticate verifies an access credential and returns its claims.
func (s *Server) authenticate(raw string) (*token.Claims, error) {
	claims, err := s.signer.Verify(raw)
	if err != nil {
		return nil, err
	}
	if s.ledger.IsRevoked(claims.ID) {
		return nil, fmt.Errorf("access token %s revoked", claims.ID)
	}
	return claims, nil
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Info().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}

func userIDString(id int64) string {
	return strconv.FormatInt(id, 10)
}
