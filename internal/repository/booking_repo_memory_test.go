package repository

import (
	"context"
	"testing"

	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBookingRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepository()

	require.NoError(t, repo.Seed(ctx, []domain.ExternalBooking{
		{BookingID: "BK001", UserID: "user123", FlightNumber: "AA101", Seat: "12A", Date: "2026-11-15", Status: domain.BookingStatusConfirmed},
		{BookingID: "BK002", UserID: "user123", FlightNumber: "AA202", Seat: "8B", Date: "2026-11-20", Status: domain.BookingStatusConfirmed},
	}))

	id, err := repo.NextBookingID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "BK003", id)

	require.NoError(t, repo.Create(ctx, &domain.ExternalBooking{BookingID: id, UserID: "user123", FlightNumber: "AA101", Seat: "15C",
		Date: "2026-12-01", Status: domain.BookingStatusConfirmed}))
	assert.Error(t, repo.Create(ctx, &domain.ExternalBooking{BookingID: id}))

	list, err := repo.ListByUser(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "BK003", list[0].BookingID, "latest departure first")

	seats, err := repo.OccupiedSeats(ctx, "AA101")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"12A", "15C"}, seats)

	updated, err := repo.UpdateStatus(ctx, "BK001", domain.BookingStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, updated.Status)

	seats, _ = repo.OccupiedSeats(ctx, "AA101")
	assert.Equal(t, []string{"15C"}, seats)

	list, _ = repo.ListByUser(ctx, "user123")
	assert.Len(t, list, 2)

	_, err = repo.UpdateSeat(ctx, "BK999", "1A")
	assert.ErrorIs(t, err, ErrNotFound)

	b, err := repo.UpdateDate(ctx, "BK002", "2026-12-24")
	require.NoError(t, err)
	assert.Equal(t, "2026-12-24", b.Date)

	_, err = repo.GetByID(ctx, "BK404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBookingRepository_RequestID(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()

	_, err := repo.GetByRequestID(ctx, "confirm-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Create(ctx, &domain.ExternalBooking{BookingID: "BK001", UserID: "user123", RequestID: "confirm-1"}))
	got, err := repo.GetByRequestID(ctx, "confirm-1")
	require.NoError(t, err)
	assert.Equal(t, "BK001", got.BookingID)

	assert.ErrorIs(t, repo.Create(ctx, &domain.ExternalBooking{BookingID: "BK002", RequestID: "confirm-1"}), ErrDuplicate)
	assert.ErrorIs(t, repo.Create(ctx, &domain.ExternalBooking{BookingID: "BK001"}), ErrDuplicate)
	require.NoError(t, repo.Create(ctx, &domain.ExternalBooking{BookingID: "BK003"}))
	require.NoError(t, repo.Create(ctx, &domain.ExternalBooking{BookingID: "BK004"}), "empty request ids never collide")
}
