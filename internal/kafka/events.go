package kafka

import "time"

// BookingEvent is published on the notifications topic after the airline
// backend commits a change.
type BookingEvent struct {
	Type          string    `json:"type"`
	BookingID     string    `json:"booking_id"`
	UserID        string    `json:"user_id"`
	FlightNumber  string    `json:"flight_number"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	Date          string    `json:"date"`
	PassengerName string    `json:"passenger_name"`
	Seat          string    `json:"seat"`
	Status        string    `json:"status"`
	AmountCents   int64     `json:"amount_cents"`
	OccurredAt    time.Time `json:"occurred_at"`
}

const (
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
	EventDateChanged      = "date_changed"
	EventSeatUpgraded     = "seat_upgraded"
)

// ConversationEvent records one processed chat turn.
type ConversationEvent struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	MessageID  int64     `json:"message_id,omitempty"`
	Text       string    `json:"text"`
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Flow       string    `json:"flow"`
	Step       string    `json:"step"`
	Response   string    `json:"response"`
	OccurredAt time.Time `json:"occurred_at"`
}
