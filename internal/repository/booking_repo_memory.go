package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/airbot/internal/domain"
)

// MemoryBookingRepository keeps the ledger in process. It backs local runs
// without Postgres and the service tests.
type MemoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]domain.ExternalBooking
	requests map[string]string
	seq      int
	now      func() time.Time
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{
		bookings: make(map[string]domain.ExternalBooking),
		requests: make(map[string]string),
		now:      time.Now,
	}
}

func (r *MemoryBookingRepository) NextBookingID(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("BK%03d", r.seq), nil
}

func (r *MemoryBookingRepository) Create(_ context.Context, b *domain.ExternalBooking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bookings[b.BookingID]; exists {
		return fmt.Errorf("%w: booking %s already exists", ErrDuplicate, b.BookingID)
	}
	if _, exists := r.requests[b.RequestID]; exists && b.RequestID != "" {
		return fmt.Errorf("%w: request %s already booked", ErrDuplicate, b.RequestID)
	}
	b.CreatedAt = r.now()
	r.bookings[b.BookingID] = *b
	if b.RequestID != "" {
		r.requests[b.RequestID] = b.BookingID
	}
	return nil
}

func (r *MemoryBookingRepository) GetByRequestID(_ context.Context, requestID string) (*domain.ExternalBooking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.requests[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	b := r.bookings[id]
	return &b, nil
}

func (r *MemoryBookingRepository) GetByID(_ context.Context, bookingID string) (*domain.ExternalBooking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (r *MemoryBookingRepository) ListByUser(_ context.Context, userID string) ([]domain.ExternalBooking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ExternalBooking, 0)
	for _, b := range r.bookings {
		if b.UserID == userID && b.Status == domain.BookingStatusConfirmed {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].BookingID < out[j].BookingID
	})
	return out, nil
}

func (r *MemoryBookingRepository) update(bookingID string, apply func(b *domain.ExternalBooking)) (*domain.ExternalBooking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	apply(&b)
	r.bookings[bookingID] = b
	return &b, nil
}

func (r *MemoryBookingRepository) UpdateStatus(_ context.Context, bookingID string, status domain.BookingStatus) (*domain.ExternalBooking, error) {
	return r.update(bookingID, func(b *domain.ExternalBooking) { b.Status = status })
}

func (r *MemoryBookingRepository) UpdateDate(_ context.Context, bookingID, date string) (*domain.ExternalBooking, error) {
	return r.update(bookingID, func(b *domain.ExternalBooking) { b.Date = date })
}

func (r *MemoryBookingRepository) UpdateSeat(_ context.Context, bookingID, seat string) (*domain.ExternalBooking, error) {
	return r.update(bookingID, func(b *domain.ExternalBooking) { b.Seat = seat })
}

func (r *MemoryBookingRepository) OccupiedSeats(_ context.Context, flightNumber string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var seats []string
	for _, b := range r.bookings {
		if b.FlightNumber == flightNumber && b.Status == domain.BookingStatusConfirmed {
			seats = append(seats, b.Seat)
		}
	}
	return seats, nil
}

func (r *MemoryBookingRepository) Seed(_ context.Context, bookings []domain.ExternalBooking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range bookings {
		if _, exists := r.bookings[b.BookingID]; exists {
			continue
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = r.now()
		}
		r.bookings[b.BookingID] = b
	}
	if len(r.bookings) > r.seq {
		r.seq = len(r.bookings)
	}
	return nil
}

var _ BookingRepository = (*MemoryBookingRepository)(nil)
