package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/bluecollar-client/chat"
	"github.com/jrsteele09/bluecollar-client/token"
)

type BasicUser struct {
	ID       token.UserID `json:"id"`
	Username string       `json:"username"`
}

type Booking struct {
	ID                   int64     `json:"id"`
	Customer             BasicUser `json:"customer"`
	ProviderBusinessName string    `json:"provider_business_name,omitempty"`
	ProviderUsername     string    `json:"provider_username,omitempty"`
	ServiceDescription   string    `json:"service_description"`
	BookingDatetime      time.Time `json:"booking_datetime"`
	AddressForService    string    `json:"address_for_service"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
}

// RoomID is the chat room attached to the booking.
func (b Booking) RoomID() string {
	return chat.BookingRoom(b.ID)
}

// Bookings lists the bookings the current user takes part in.
func (c *Client) Bookings(ctx context.Context) ([]Booking, error) {
	var out []Booking
	if err := c.Do(ctx, http.MethodGet, "/bookings/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
