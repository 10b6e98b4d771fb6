package devserver

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCompleted = "COMPLETED"
)

type BasicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Booking struct {
	ID                 int64     `json:"id"`
	Customer           BasicUser `json:"customer"`
	ProviderUsername   string    `json:"provider_username"`
	ProviderID         int64     `json:"-"`
	ServiceDescription string    `json:"service_description"`
	BookingDatetime    time.Time `json:"booking_datetime"`
	AddressForService  string    `json:"address_for_service"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

// participant reports whether the user is the booking's customer or provider
func (b *Booking) participant(userID int64) bool {
	return b.Customer.ID == userID || b.ProviderID == userID
}

type bookingStore struct {
	mu       sync.RWMutex
	nextID   int64
	bookings map[int64]*Booking
}

func newBookingStore() *bookingStore {
	return &bookingStore{bookings: make(map[int64]*Booking)}
}

func (s *bookingStore) add(b *Booking) *Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	b.ID = s.nextID
	s.bookings[b.ID] = b
	return b
}

func (s *bookingStore) get(id int64) (*Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	return b, ok
}

// forUser lists the user's bookings, newest first
func (s *bookingStore) forUser(userID int64) []Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Booking, 0)
	for _, b := range s.bookings {
		if b.participant(userID) {
			out = append(out, *b)
		}
	}
	slices.SortFunc(out, func(a, b Booking) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}
