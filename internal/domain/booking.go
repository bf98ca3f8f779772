package domain

import (
	"strconv"
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// ExternalBooking is a booking owned by the airline backend. The dialogue
// engine only ever holds it for the duration of a turn.
type ExternalBooking struct {
	BookingID     string        `json:"booking_id"`
	UserID        string        `json:"user_id"`
	FlightNumber  string        `json:"flight_number"`
	Origin        string        `json:"origin"`
	Destination   string        `json:"destination"`
	Date          string        `json:"date"`
	PassengerName string        `json:"passenger_name"`
	Status        BookingStatus `json:"status"`
	Seat          string        `json:"seat"`
	PriceCents    int64         `json:"price_cents"`
	CreatedAt     time.Time     `json:"created_at"`
	// RequestID is the client's idempotency key for the create call.
	RequestID string `json:"-"`
}

const (
	ClassEconomy        = "economy"
	ClassPremiumEconomy = "premium_economy"
	ClassBusiness       = "business"
)

// SeatClass derives the cabin from the seat row: rows 1-5 are business,
// 6-10 premium economy and the rest economy.
func SeatClass(seat string) string {
	digits := strings.TrimRightFunc(seat, func(r rune) bool { return r < '0' || r > '9' })
	row, err := strconv.Atoi(digits)
	if err != nil || row <= 0 {
		return ClassEconomy
	}
	switch {
	case row <= 5:
		return ClassBusiness
	case row <= 10:
		return ClassPremiumEconomy
	default:
		return ClassEconomy
	}
}
