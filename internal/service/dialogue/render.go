package dialogue

import (
	"fmt"
	"strings"

	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/Domenick1991/airbot/internal/recommend"
)

const (
	greetingText = "Hello! I'm your airline assistant. I can book flights, look up bookings, cancel or reschedule trips and change seats. What can I do for you?"
	helpText     = "Here's what I can do:\n" +
		"- book a new flight\n" +
		"- check a booking or list your bookings\n" +
		"- cancel a booking\n" +
		"- change your travel date\n" +
		"- pick a different seat\n" +
		"I can also answer questions about baggage, cancellations, pets, children and travel insurance."
	offTopicText     = "I appreciate the question, but I can only help with airline services such as bookings, cancellations, date changes, seats and travel policies."
	clarifyText      = "Sorry, I'm not sure what you mean. You can ask me to book a flight, check, cancel or change a booking, or pick a different seat."
	nothingToConfirm = "There's nothing waiting for your confirmation right now."
	nothingToCancel  = "There's nothing in progress to stop."
	resetApology     = "Sorry, something went wrong with our conversation, so I've started over. Could you tell me again what you'd like to do?"
	stillWorking     = "I'm still working on your last request. Please give me a moment and check back."
)

var flowNames = map[domain.Flow]string{
	domain.FlowBooking:      "flight booking",
	domain.FlowCancellation: "cancellation",
	domain.FlowDateChange:   "date change",
	domain.FlowSeatUpgrade:  "seat change",
}

var flowIntros = map[domain.Flow]string{
	domain.FlowBooking:      "Great, let's book a flight.",
	domain.FlowCancellation: "I can help you cancel a booking.",
	domain.FlowDateChange:   "I can help you change your travel date.",
	domain.FlowSeatUpgrade:  "I can help you pick a different seat.",
}

var flowExamples = map[domain.Flow]string{
	domain.FlowBooking:      "I want to book a flight",
	domain.FlowCancellation: "cancel booking BK001",
	domain.FlowDateChange:   "change the date of booking BK001",
	domain.FlowSeatUpgrade:  "upgrade my seat on BK001",
}

// flowGuessText answers a message that only loosely resembles a flow request.
func flowGuessText(flow domain.Flow) string {
	return fmt.Sprintf("I'm not quite sure what you need. If you'd like help with a %s, say something like %q. "+
		"To look up a trip, just give me the booking ID.", flowNames[flow], flowExamples[flow])
}

func joinLabels(slots []slotSpec) string {
	labels := make([]string, len(slots))
	for i, s := range slots {
		labels[i] = "the " + s.label
	}
	switch len(labels) {
	case 0:
		return ""
	case 1:
		return labels[0]
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + " and " + labels[len(labels)-1]
	}
}

// stillNeeded restates every unfilled slot and asks for the first one.
func stillNeeded(missing []slotSpec, prompt string) string {
	if len(missing) == 1 {
		return prompt
	}
	return fmt.Sprintf("I still need %s. %s", joinLabels(missing), prompt)
}

func renderBooking(b *domain.ExternalBooking) string {
	return fmt.Sprintf("Booking %s\n"+
		"Flight: %s\n"+
		"Route: %s to %s\n"+
		"Date: %s\n"+
		"Passenger: %s\n"+
		"Seat: %s\n"+
		"Status: %s",
		b.BookingID, b.FlightNumber, b.Origin, b.Destination, b.Date, b.PassengerName, b.Seat, strings.ToLower(string(b.Status)))
}

func renderBookingList(bookings []domain.ExternalBooking) string {
	var sb strings.Builder
	sb.WriteString("Here are your bookings:")
	for _, b := range bookings {
		fmt.Fprintf(&sb, "\n- %s: flight %s from %s to %s on %s, seat %s", b.BookingID, b.FlightNumber, b.Origin, b.Destination, b.Date, b.Seat)
	}
	sb.WriteString("\nTell me a booking ID if you'd like the details of one.")
	return sb.String()
}

func confirmSummary(st *domain.WorkflowState, booking *domain.ExternalBooking) string {
	s := st.Slots
	switch st.Flow {
	case domain.FlowBooking:
		return fmt.Sprintf("Here's your trip: %s to %s on %s for %s.",
			s[domain.SlotOrigin], s[domain.SlotDestination], s[domain.SlotDate], s[domain.SlotPassengerName])
	case domain.FlowCancellation:
		if booking == nil {
			return fmt.Sprintf("You're about to cancel booking %s.", s[domain.SlotBookingID])
		}
		return fmt.Sprintf("You're about to cancel booking %s: flight %s from %s to %s on %s, seat %s.",
			booking.BookingID, booking.FlightNumber, booking.Origin, booking.Destination, booking.Date, booking.Seat)
	case domain.FlowDateChange:
		if booking == nil {
			return fmt.Sprintf("You're about to move booking %s to %s.", s[domain.SlotBookingID], s[domain.SlotNewDate])
		}
		return fmt.Sprintf("You're about to move booking %s (flight %s, %s to %s) from %s to %s.",
			booking.BookingID, booking.FlightNumber, booking.Origin, booking.Destination, booking.Date, s[domain.SlotNewDate])
	case domain.FlowSeatUpgrade:
		if booking == nil {
			return fmt.Sprintf("You're about to move to seat %s on booking %s.", s[domain.SlotSeat], s[domain.SlotBookingID])
		}
		return fmt.Sprintf("You're about to move from seat %s to seat %s on booking %s (flight %s).",
			booking.Seat, s[domain.SlotSeat], booking.BookingID, booking.FlightNumber)
	}
	return ""
}

func yesNoPrompt(action string) string {
	return fmt.Sprintf("Shall I go ahead and %s? Please reply yes or no.", action)
}

func retryPrompt() string {
	return "Reply yes to try again, or no to stop here."
}

func bookedText(b *domain.ExternalBooking) string {
	return fmt.Sprintf("Your flight is booked! Booking ID %s: flight %s from %s to %s on %s for %s. A confirmation email is on its way.",
		b.BookingID, b.FlightNumber, b.Origin, b.Destination, b.Date, b.PassengerName)
}

func cancelledText(bookingID string, refund int64) string {
	return fmt.Sprintf("Booking %s has been cancelled. Your refund of %s will be processed within 5-7 business days.",
		bookingID, recommend.FormatCents(refund))
}

func dateChangedText(bookingID, date string, fee int64) string {
	if fee == 0 {
		return fmt.Sprintf("Done! Booking %s now departs on %s with no change fee.", bookingID, date)
	}
	return fmt.Sprintf("Done! Booking %s now departs on %s. A change fee of %s applies.", bookingID, date, recommend.FormatCents(fee))
}

func seatChangedText(bookingID, seat string, cost int64) string {
	if cost == 0 {
		return fmt.Sprintf("Done! Your seat on booking %s is now %s, at no extra charge.", bookingID, seat)
	}
	return fmt.Sprintf("Done! Your seat on booking %s is now %s. The upgrade costs %s.", bookingID, seat, recommend.FormatCents(cost))
}
