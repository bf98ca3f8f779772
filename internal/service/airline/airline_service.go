// Package airline is the mock airline backend: a booking ledger with the
// create, lookup, cancel, reschedule and seat operations the chat engine
// drives.
package airline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/Domenick1991/airbot/internal/kafka"
	"github.com/Domenick1991/airbot/internal/repository"
)

const (
	DefaultFlightNumber = "AA999"
	DefaultPriceCents   = 30000
	ChangeFeeCents      = 7500
	LateCancelFeeCents  = 5000
	unassignedSeat      = "TBD"
	publishRetries      = 3
	publishTimeout      = 10 * time.Second
)

var classPriceCents = map[string]int64{
	domain.ClassEconomy:        0,
	domain.ClassPremiumEconomy: 5000,
	domain.ClassBusiness:       20000,
}

type Producer interface {
	PublishWithRetry(ctx context.Context, topic, key string, payload interface{}, maxRetries int) error
}

type CreateBookingInput struct {
	UserID        string `json:"user_id"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	Date          string `json:"date"`
	PassengerName string `json:"passenger_name"`
	// RequestID makes the call idempotent: repeating it returns the booking
	// the first call created.
	RequestID string `json:"request_id,omitempty"`
}

type Service struct {
	bookings           repository.BookingRepository
	producer           Producer
	notificationsTopic string
	seats              map[string][]string
	logger             *slog.Logger
	now                func() time.Time
	fault              func(op string) error
	inflight           sync.WaitGroup
}

type ServiceOption func(*Service)

func WithProducer(producer Producer, notificationsTopic string) ServiceOption {
	return func(s *Service) {
		s.producer = producer
		s.notificationsTopic = notificationsTopic
	}
}

func WithSeatInventory(seats map[string][]string) ServiceOption {
	return func(s *Service) {
		s.seats = seats
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithFaults runs fn before every operation; a non-nil result is returned as
// a transient failure. Used to rehearse outages.
func WithFaults(fn func(op string) error) ServiceOption {
	return func(s *Service) {
		s.fault = fn
	}
}

func NewService(bookings repository.BookingRepository, opts ...ServiceOption) *Service {
	s := &Service{
		bookings: bookings,
		seats:    DefaultSeatInventory(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.ExternalBooking, error) {
	if err := s.enter(ctx, "create_booking"); err != nil {
		return nil, err
	}
	origin := strings.ToUpper(strings.TrimSpace(input.Origin))
	destination := strings.ToUpper(strings.TrimSpace(input.Destination))
	switch {
	case origin == "" || destination == "":
		return nil, fmt.Errorf("%w: origin and destination are required", ErrRejected)
	case origin == destination:
		return nil, fmt.Errorf("%w: origin and destination must differ", ErrRejected)
	case strings.TrimSpace(input.PassengerName) == "":
		return nil, fmt.Errorf("%w: passenger name is required", ErrRejected)
	}
	if _, err := time.Parse(time.DateOnly, input.Date); err != nil {
		return nil, fmt.Errorf("%w: invalid departure date %q", ErrRejected, input.Date)
	}

	if input.RequestID != "" {
		existing, err := s.bookings.GetByRequestID(ctx, input.RequestID)
		switch {
		case err == nil:
			s.logger.InfoContext(ctx, "replayed create_booking", "request_id", input.RequestID, "booking_id", existing.BookingID)
			return existing, nil
		case !errors.Is(err, repository.ErrNotFound):
			return nil, transient(err)
		}
	}

	id, err := s.bookings.NextBookingID(ctx)
	if err != nil {
		return nil, transient(err)
	}
	booking := &domain.ExternalBooking{
		BookingID:     id,
		UserID:        input.UserID,
		FlightNumber:  DefaultFlightNumber,
		Origin:        origin,
		Destination:   destination,
		Date:          input.Date,
		PassengerName: strings.TrimSpace(input.PassengerName),
		Status:        domain.BookingStatusConfirmed,
		Seat:          unassignedSeat,
		PriceCents:    DefaultPriceCents,
		RequestID:     input.RequestID,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		if input.RequestID != "" && errors.Is(err, repository.ErrDuplicate) {
			if existing, getErr := s.bookings.GetByRequestID(ctx, input.RequestID); getErr == nil {
				return existing, nil
			}
		}
		return nil, transient(err)
	}

	s.publish(ctx, kafka.EventBookingCreated, booking, booking.PriceCents)
	return booking, nil
}

// GetBooking looks a booking up. With a non-empty userID, bookings owned by
// someone else are reported as not found.
func (s *Service) GetBooking(ctx context.Context, bookingID, userID string) (*domain.ExternalBooking, error) {
	if err := s.enter(ctx, "get_booking"); err != nil {
		return nil, err
	}
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, s.mapErr(err, bookingID)
	}
	if userID != "" && booking.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, bookingID)
	}
	return booking, nil
}

func (s *Service) ListUserBookings(ctx context.Context, userID string) ([]domain.ExternalBooking, error) {
	if err := s.enter(ctx, "list_user_bookings"); err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, transient(err)
	}
	return bookings, nil
}

// CancelBooking returns the refund: the full fare more than 24 hours before
// departure, less the late cancellation fee after that.
func (s *Service) CancelBooking(ctx context.Context, bookingID string) (int64, error) {
	if err := s.enter(ctx, "cancel_booking"); err != nil {
		return 0, err
	}
	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return 0, s.mapErr(err, bookingID)
	}
	if current.Status == domain.BookingStatusCancelled {
		return 0, fmt.Errorf("%w: booking %s is already cancelled", ErrRejected, bookingID)
	}

	refund := current.PriceCents
	if departure, err := time.Parse(time.DateOnly, current.Date); err == nil && departure.Sub(s.now()) < 24*time.Hour {
		refund = max(current.PriceCents-LateCancelFeeCents, 0)
	}

	updated, err := s.bookings.UpdateStatus(ctx, bookingID, domain.BookingStatusCancelled)
	if err != nil {
		return 0, s.mapErr(err, bookingID)
	}
	s.publish(ctx, kafka.EventBookingCancelled, updated, refund)
	return refund, nil
}

func (s *Service) ChangeDate(ctx context.Context, bookingID, newDate string) (int64, error) {
	if err := s.enter(ctx, "change_date"); err != nil {
		return 0, err
	}
	if _, err := time.Parse(time.DateOnly, newDate); err != nil {
		return 0, fmt.Errorf("%w: invalid date %q", ErrRejected, newDate)
	}
	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return 0, s.mapErr(err, bookingID)
	}
	if current.Status != domain.BookingStatusConfirmed {
		return 0, fmt.Errorf("%w: booking %s is %s", ErrRejected, bookingID, strings.ToLower(string(current.Status)))
	}
	if current.Date == newDate {
		return 0, fmt.Errorf("%w: booking %s already departs on %s", ErrRejected, bookingID, newDate)
	}

	updated, err := s.bookings.UpdateDate(ctx, bookingID, newDate)
	if err != nil {
		return 0, s.mapErr(err, bookingID)
	}
	s.publish(ctx, kafka.EventDateChanged, updated, ChangeFeeCents)
	return ChangeFeeCents, nil
}

// ListAvailableSeats returns the flight's seats not held by a confirmed
// booking, in inventory order.
func (s *Service) ListAvailableSeats(ctx context.Context, bookingID string) ([]string, error) {
	if err := s.enter(ctx, "list_available_seats"); err != nil {
		return nil, err
	}
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, s.mapErr(err, bookingID)
	}
	return s.availableSeats(ctx, booking.FlightNumber)
}

func (s *Service) availableSeats(ctx context.Context, flightNumber string) ([]string, error) {
	occupied, err := s.bookings.OccupiedSeats(ctx, flightNumber)
	if err != nil {
		return nil, transient(err)
	}
	available := make([]string, 0)
	for _, seat := range s.seats[flightNumber] {
		if !slices.Contains(occupied, seat) {
			available = append(available, seat)
		}
	}
	return available, nil
}

// UpgradeSeat moves the booking to seat and returns the fare difference
// between the two cabins, never negative.
func (s *Service) UpgradeSeat(ctx context.Context, bookingID, seat string) (int64, error) {
	if err := s.enter(ctx, "upgrade_seat"); err != nil {
		return 0, err
	}
	seat = strings.ToUpper(strings.TrimSpace(seat))
	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return 0, s.mapErr(err, bookingID)
	}
	if current.Status != domain.BookingStatusConfirmed {
		return 0, fmt.Errorf("%w: booking %s is %s", ErrRejected, bookingID, strings.ToLower(string(current.Status)))
	}
	available, err := s.availableSeats(ctx, current.FlightNumber)
	if err != nil {
		return 0, err
	}
	if !slices.Contains(available, seat) {
		return 0, fmt.Errorf("%w: seat %s is not available on %s", ErrRejected, seat, current.FlightNumber)
	}

	cost := max(classPriceCents[domain.SeatClass(seat)]-classPriceCents[domain.SeatClass(current.Seat)], 0)
	updated, err := s.bookings.UpdateSeat(ctx, bookingID, seat)
	if err != nil {
		return 0, s.mapErr(err, bookingID)
	}
	s.publish(ctx, kafka.EventSeatUpgraded, updated, cost)
	return cost, nil
}

func (s *Service) enter(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return transient(err)
	}
	if s.fault != nil {
		if err := s.fault(op); err != nil {
			return transient(err)
		}
	}
	return nil
}

func (s *Service) mapErr(err error, bookingID string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, bookingID)
	}
	return transient(err)
}

func transient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Wait blocks until every queued booking event has been handed to the
// producer.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// publish hands the event to the producer in the background, so a slow broker
// never holds up the change that was already committed.
func (s *Service) publish(ctx context.Context, eventType string, booking *domain.ExternalBooking, amount int64) {
	if s.producer == nil || s.notificationsTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:          eventType,
		BookingID:     booking.BookingID,
		UserID:        booking.UserID,
		FlightNumber:  booking.FlightNumber,
		Origin:        booking.Origin,
		Destination:   booking.Destination,
		Date:          booking.Date,
		PassengerName: booking.PassengerName,
		Seat:          booking.Seat,
		Status:        string(booking.Status),
		AmountCents:   amount,
		OccurredAt:    s.now(),
	}
	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		// notification failures never undo a committed change
		if err := s.producer.PublishWithRetry(ctx, s.notificationsTopic, event.BookingID, event, publishRetries); err != nil {
			s.logger.WarnContext(ctx, "failed to publish booking event", "type", eventType, "booking_id", event.BookingID, "error", err)
		}
	}()
}
