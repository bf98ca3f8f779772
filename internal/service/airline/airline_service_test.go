package airline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/Domenick1991/airbot/internal/kafka"
	"github.com/Domenick1991/airbot/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) PublishWithRetry(ctx context.Context, topic, key string, payload interface{}, maxRetries int) error {
	args := m.Called(ctx, topic, key, payload, maxRetries)
	return args.Error(0)
}

var testNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *repository.MemoryBookingRepository) {
	t.Helper()
	repo := repository.NewMemoryBookingRepository()
	require.NoError(t, repo.Seed(context.Background(), SeedBookings()))
	opts = append([]ServiceOption{
		WithClock(func() time.Time { return testNow }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return NewService(repo, opts...), repo
}

func TestService_CreateBooking(t *testing.T) {
	producer := &MockProducer{}
	producer.On("PublishWithRetry", mock.Anything, "notifications", "BK004",
		mock.MatchedBy(func(e kafka.BookingEvent) bool { return e.Type == kafka.EventBookingCreated && e.Origin == "BOS" }),
		publishRetries).Return(nil).Once()

	s, _ := newTestService(t, WithProducer(producer, "notifications"))
	booking, err := s.CreateBooking(context.Background(), CreateBookingInput{
		UserID: "user123", Origin: "bos", Destination: "JFK", Date: "2026-12-01", PassengerName: "Jane Doe",
	})

	require.NoError(t, err)
	assert.Equal(t, "BK004", booking.BookingID)
	assert.Equal(t, DefaultFlightNumber, booking.FlightNumber)
	assert.Equal(t, "BOS", booking.Origin)
	assert.Equal(t, domain.BookingStatusConfirmed, booking.Status)
	s.Wait()
	producer.AssertExpectations(t)
}

func TestService_CreateBookingRejected(t *testing.T) {
	s, _ := newTestService(t)
	testCases := []struct {
		name  string
		input CreateBookingInput
	}{
		{"missing origin", CreateBookingInput{Destination: "JFK", Date: "2026-12-01", PassengerName: "A B"}},
		{"same airports", CreateBookingInput{Origin: "JFK", Destination: "jfk", Date: "2026-12-01", PassengerName: "A B"}},
		{"no name", CreateBookingInput{Origin: "BOS", Destination: "JFK", Date: "2026-12-01"}},
		{"bad date", CreateBookingInput{Origin: "BOS", Destination: "JFK", Date: "2026-02-30", PassengerName: "A B"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateBooking(context.Background(), tc.input)
			assert.ErrorIs(t, err, ErrRejected)
		})
	}
}

func TestService_GetBooking(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	b, err := s.GetBooking(ctx, "BK001", "user123")
	require.NoError(t, err)
	assert.Equal(t, "AA101", b.FlightNumber)

	_, err = s.GetBooking(ctx, "BK003", "user123")
	assert.ErrorIs(t, err, ErrNotFound, "owned by someone else")

	b, err = s.GetBooking(ctx, "BK003", "")
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", b.PassengerName)

	_, err = s.GetBooking(ctx, "BK999", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_CancelBooking(t *testing.T) {
	s, repo := newTestService(t)
	ctx := context.Background()

	refund, err := s.CancelBooking(ctx, "BK002")
	require.NoError(t, err)
	assert.Equal(t, int64(28000), refund)

	b, _ := repo.GetByID(ctx, "BK002")
	assert.Equal(t, domain.BookingStatusCancelled, b.Status)

	_, err = s.CancelBooking(ctx, "BK002")
	assert.ErrorIs(t, err, ErrRejected)

	_, err = s.CancelBooking(ctx, "BK404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_CancelBookingLateFee(t *testing.T) {
	s, _ := newTestService(t, WithClock(func() time.Time { return time.Date(2026, 11, 14, 12, 0, 0, 0, time.UTC) }))

	refund, err := s.CancelBooking(context.Background(), "BK001")
	require.NoError(t, err)
	assert.Equal(t, int64(35000-LateCancelFeeCents), refund)
}

func TestService_ChangeDate(t *testing.T) {
	s, repo := newTestService(t)
	ctx := context.Background()

	fee, err := s.ChangeDate(ctx, "BK001", "2026-12-24")
	require.NoError(t, err)
	assert.Equal(t, int64(ChangeFeeCents), fee)
	b, _ := repo.GetByID(ctx, "BK001")
	assert.Equal(t, "2026-12-24", b.Date)

	_, err = s.ChangeDate(ctx, "BK001", "2026-12-24")
	assert.ErrorIs(t, err, ErrRejected)

	_, err = s.ChangeDate(ctx, "BK001", "someday")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestService_Seats(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	seats, err := s.ListAvailableSeats(ctx, "BK001")
	require.NoError(t, err)
	assert.Equal(t, []string{"12B", "15C", "20A", "20B"}, seats)

	cost, err := s.UpgradeSeat(ctx, "BK001", "12A")
	assert.ErrorIs(t, err, ErrRejected, "own seat is taken")
	assert.Zero(t, cost)

	cost, err = s.UpgradeSeat(ctx, "BK002", "10a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cost, "same cabin")

	seats, err = s.ListAvailableSeats(ctx, "BK002")
	require.NoError(t, err)
	assert.Equal(t, []string{"8B", "10B", "18C"}, seats)

	cost, err = s.UpgradeSeat(ctx, "BK002", "8B")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cost)
}

func TestService_UpgradeCostsCabinDifference(t *testing.T) {
	s, _ := newTestService(t, WithSeatInventory(map[string][]string{"AA101": {"3A", "12A"}}))

	cost, err := s.UpgradeSeat(context.Background(), "BK001", "3A")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), cost)
}

func TestService_TransientFailures(t *testing.T) {
	s, _ := newTestService(t, WithFaults(func(op string) error {
		if op == "cancel_booking" {
			return errors.New("connection reset")
		}
		return nil
	}))

	_, err := s.CancelBooking(context.Background(), "BK001")
	assert.ErrorIs(t, err, ErrTransient)

	_, err = s.GetBooking(context.Background(), "BK001", "")
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.GetBooking(ctx, "BK001", "")
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_PublishFailureDoesNotFailCall(t *testing.T) {
	producer := &MockProducer{}
	producer.On("PublishWithRetry", mock.Anything, "notifications", "BK003", mock.Anything, publishRetries).
		Return(errors.New("broker down")).Once()

	s, _ := newTestService(t, WithProducer(producer, "notifications"))
	refund, err := s.CancelBooking(context.Background(), "BK003")

	require.NoError(t, err)
	assert.Equal(t, int64(42000), refund)
	s.Wait()
	producer.AssertExpectations(t)
}

func TestService_CreateBookingReplaysRequestID(t *testing.T) {
	s, repo := newTestService(t)
	ctx := context.Background()
	input := CreateBookingInput{
		UserID: "user123", Origin: "BOS", Destination: "JFK", Date: "2026-12-01", PassengerName: "Jane Doe", RequestID: "confirm-1",
	}

	first, err := s.CreateBooking(ctx, input)
	require.NoError(t, err)
	second, err := s.CreateBooking(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, first.BookingID, second.BookingID)
	bookings, err := repo.ListByUser(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, bookings, 3)

	input.RequestID = "confirm-2"
	third, err := s.CreateBooking(ctx, input)
	require.NoError(t, err)
	assert.NotEqual(t, first.BookingID, third.BookingID)
}

func TestService_SlowBrokerDoesNotHoldCall(t *testing.T) {
	release := make(chan struct{})
	producer := &MockProducer{}
	producer.On("PublishWithRetry", mock.Anything, "notifications", "BK004", mock.Anything, publishRetries).
		Run(func(args mock.Arguments) { <-release }).
		Return(nil).Once()

	s, _ := newTestService(t, WithProducer(producer, "notifications"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	booking, err := s.CreateBooking(ctx, CreateBookingInput{
		UserID: "user123", Origin: "BOS", Destination: "JFK", Date: "2026-12-01", PassengerName: "Jane Doe",
	})
	require.NoError(t, err)
	assert.Equal(t, "BK004", booking.BookingID)

	close(release)
	s.Wait()
	producer.AssertExpectations(t)
}
