package airline

import "github.com/Domenick1991/airbot/internal/domain"

// SeedBookings are the demo bookings every fresh ledger starts with.
func SeedBookings() []domain.ExternalBooking {
	return []domain.ExternalBooking{
		{BookingID: "BK001", UserID: "user123", FlightNumber: "AA101", PassengerName: "John Doe", Date: "2026-11-15",
			Origin: "JFK", Destination: "LAX", Seat: "12A", Status: domain.BookingStatusConfirmed, PriceCents: 35000},
		{BookingID: "BK002", UserID: "user123", FlightNumber: "AA202", PassengerName: "John Doe", Date: "2026-11-20",
			Origin: "LAX", Destination: "ORD", Seat: "8B", Status: domain.BookingStatusConfirmed, PriceCents: 28000},
		{BookingID: "BK003", UserID: "user456", FlightNumber: "AA303", PassengerName: "Jane Smith", Date: "2026-11-18",
			Origin: "MIA", Destination: "SFO", Seat: "5C", Status: domain.BookingStatusConfirmed, PriceCents: 42000},
	}
}

// DefaultSeatInventory lists the seats sold on each flight.
func DefaultSeatInventory() map[string][]string {
	return map[string][]string{
		"AA101": {"12A", "12B", "15C", "20A", "20B"},
		"AA202": {"8B", "10A", "10B", "18C"},
		"AA303": {"5C", "7A", "7B", "14A"},
	}
}
