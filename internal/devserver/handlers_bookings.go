package devserver

import (
	"net/http"
	"time"

	"github.com/jrsteele09/bluecollar-client/users"
	"github.com/pkg/errors"
)

// BookingsHandler lists the bookings the authenticated user takes part in
func (s *Server) BookingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		id, ok := claims.UserID.Int64()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type", "token_not_valid")
			return
		}
		writeJSON(w, http.StatusOK, s.bookings.forUser(id))
	}
}

// AddUser registers a user with a bcrypt hashed password
func (s *Server) AddUser(username, password string, isProvider bool) (*users.User, error) {
	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	user := &users.User{
		Username:     username,
		PasswordHash: hash,
		IsProvider:   isProvider,
		DateJoined:   s.nowFunc(),
	}
	if err := s.users.Upsert(user); err != nil {
		return nil, errors.Wrap(err, "store user")
	}
	return user, nil
}

// AddBooking creates a pending booking between a customer and a provider
func (s *Server) AddBooking(customer, provider *users.User, description string, at time.Time) *Booking {
	return s.bookings.add(&Booking{
		Customer:           BasicUser{ID: customer.ID, Username: customer.Username},
		ProviderUsername:   provider.Username,
		ProviderID:         provider.ID,
		ServiceDescription: description,
		BookingDatetime:    at,
		AddressForService:  "1 Main Street",
		Status:             BookingPending,
		CreatedAt:          s.nowFunc(),
	})
}
