package devserver

import "net/http"

const (
	RouteToken    = "/api/token/"
	RouteRefresh  = "/api/token/refresh/"
	RouteBookings = "/api/bookings/"
	RouteJWKS     = "/api/.well-known/jwks.json"
	RouteChat     = "/ws/chat/{room}/"
	routeAPI      = "/api/"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("POST "+RouteToken, ChainMiddleware(s.TokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteBookings, ChainMiddleware(s.BookingsHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteJWKS, ChainMiddleware(s.JWKSHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+routeAPI, ChainMiddleware(http.NotFound, s.LoggingMiddleware, s.CorsMiddleware))
	s.RegisterRouteHandler("GET "+RouteChat, ChainMiddleware(s.ChatHandler(), s.LoggingMiddleware, s.RecoverMiddleware))
}
