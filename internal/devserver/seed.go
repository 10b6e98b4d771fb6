package devserver

import (
	"time"

	"github.com/pkg/errors"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "Passw0rd!"

// Seed adds a customer, two providers and a booking with each provider so
// the CLI has something to list and chat about.
func (s *Server) Seed() error {
	customer, err := s.AddUser("alice", DemoPassword, false)
	if err != nil {
		return errors.Wrap(err, "seed customer")
	}
	plumber, err := s.AddUser("bob", DemoPassword, true)
	if err != nil {
		return errors.Wrap(err, "seed provider")
	}
	electrician, err := s.AddUser("carol", DemoPassword, true)
	if err != nil {
		return errors.Wrap(err, "seed provider")
	}

	tomorrow := s.nowFunc().Add(24 * time.Hour).Truncate(time.Hour)
	s.AddBooking(customer, plumber, "Fix leaking kitchen tap", tomorrow)
	s.AddBooking(customer, electrician, "Replace fuse box", tomorrow.Add(48*time.Hour))
	return nil
}
