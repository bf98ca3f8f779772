package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Domenick1991/airbot/internal/kafka"
)

// Sender stands in for a mail gateway: it renders the notification and logs
// it.
type Sender struct {
	logger *slog.Logger
}

func NewSender(logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	subject, body := Render(event)
	s.logger.InfoContext(ctx, "send email", "user_id", event.UserID, "booking_id", event.BookingID,
		"subject", subject, "body", body)
	return nil
}

func Render(event kafka.BookingEvent) (subject, body string) {
	switch event.Type {
	case kafka.EventBookingCreated:
		return fmt.Sprintf("Booking %s confirmed", event.BookingID),
			fmt.Sprintf("%s, your flight %s from %s to %s on %s is booked.", event.PassengerName, event.FlightNumber,
				event.Origin, event.Destination, event.Date)
	case kafka.EventBookingCancelled:
		return fmt.Sprintf("Booking %s cancelled", event.BookingID),
			fmt.Sprintf("Your booking %s has been cancelled. A refund of %s is on its way.", event.BookingID, dollars(event.AmountCents))
	case kafka.EventDateChanged:
		return fmt.Sprintf("Booking %s rescheduled", event.BookingID),
			fmt.Sprintf("Your flight %s now departs on %s. Change fee: %s.", event.FlightNumber, event.Date, dollars(event.AmountCents))
	case kafka.EventSeatUpgraded:
		return fmt.Sprintf("Seat upgraded on booking %s", event.BookingID),
			fmt.Sprintf("Your new seat on flight %s is %s. Upgrade cost: %s.", event.FlightNumber, event.Seat, dollars(event.AmountCents))
	default:
		return fmt.Sprintf("Update on booking %s", event.BookingID),
			fmt.Sprintf("Booking %s is now %s.", event.BookingID, event.Status)
	}
}

func dollars(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
