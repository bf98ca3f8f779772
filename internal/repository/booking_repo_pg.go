package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BookingRepository is the airline's booking ledger.
type BookingRepository interface {
	NextBookingID(ctx context.Context) (string, error)
	Create(ctx context.Context, booking *domain.ExternalBooking) error
	GetByID(ctx context.Context, bookingID string) (*domain.ExternalBooking, error)
	// GetByRequestID finds the booking created for a client request id.
	GetByRequestID(ctx context.Context, requestID string) (*domain.ExternalBooking, error)
	ListByUser(ctx context.Context, userID string) ([]domain.ExternalBooking, error)
	UpdateStatus(ctx context.Context, bookingID string, status domain.BookingStatus) (*domain.ExternalBooking, error)
	UpdateDate(ctx context.Context, bookingID, date string) (*domain.ExternalBooking, error)
	UpdateSeat(ctx context.Context, bookingID, seat string) (*domain.ExternalBooking, error)
	OccupiedSeats(ctx context.Context, flightNumber string) ([]string, error)
	Seed(ctx context.Context, bookings []domain.ExternalBooking) error
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `booking_id, user_id, flight_number, origin, destination, departure_date, passenger_name, seat, status, price_cents, created_at`

func scanBooking(row pgx.Row) (*domain.ExternalBooking, error) {
	var b domain.ExternalBooking
	if err := row.Scan(&b.BookingID, &b.UserID, &b.FlightNumber, &b.Origin, &b.Destination, &b.Date,
		&b.PassengerName, &b.Seat, &b.Status, &b.PriceCents, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) NextBookingID(ctx context.Context) (string, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('booking_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("BK%03d", n), nil
}

func (r *PGBookingRepository) Create(ctx context.Context, b *domain.ExternalBooking) error {
	err := r.db.QueryRow(ctx, `INSERT INTO bookings (booking_id, user_id, flight_number, origin, destination, departure_date, passenger_name, seat, status, price_cents, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''))
		RETURNING created_at`,
		b.BookingID, b.UserID, b.FlightNumber, b.Origin, b.Destination, b.Date, b.PassengerName, b.Seat, b.Status, b.PriceCents, b.RequestID).
		Scan(&b.CreatedAt)
	return classify(err)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, bookingID string) (*domain.ExternalBooking, error) {
	return scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_id=$1`, bookingID))
}

func (r *PGBookingRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.ExternalBooking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE request_id=$1`, requestID))
	if err != nil {
		return nil, err
	}
	b.RequestID = requestID
	return b, nil
}

func (r *PGBookingRepository) ListByUser(ctx context.Context, userID string) ([]domain.ExternalBooking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id=$1 AND status=$2 ORDER BY departure_date DESC`,
		userID, domain.BookingStatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.ExternalBooking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *PGBookingRepository) UpdateStatus(ctx context.Context, bookingID string, status domain.BookingStatus) (*domain.ExternalBooking, error) {
	return scanBooking(r.db.QueryRow(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE booking_id=$2 RETURNING `+bookingColumns, status, bookingID))
}

func (r *PGBookingRepository) UpdateDate(ctx context.Context, bookingID, date string) (*domain.ExternalBooking, error) {
	return scanBooking(r.db.QueryRow(ctx, `UPDATE bookings SET departure_date=$1, updated_at=now() WHERE booking_id=$2 RETURNING `+bookingColumns, date, bookingID))
}

func (r *PGBookingRepository) UpdateSeat(ctx context.Context, bookingID, seat string) (*domain.ExternalBooking, error) {
	return scanBooking(r.db.QueryRow(ctx, `UPDATE bookings SET seat=$1, updated_at=now() WHERE booking_id=$2 RETURNING `+bookingColumns, seat, bookingID))
}

func (r *PGBookingRepository) OccupiedSeats(ctx context.Context, flightNumber string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT seat FROM bookings WHERE flight_number=$1 AND status=$2`, flightNumber, domain.BookingStatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// Seed inserts the given bookings unless they already exist and moves the
// booking number sequence past them.
func (r *PGBookingRepository) Seed(ctx context.Context, bookings []domain.ExternalBooking) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, b := range bookings {
		if _, err := tx.Exec(ctx, `INSERT INTO bookings (booking_id, user_id, flight_number, origin, destination, departure_date, passenger_name, seat, status, price_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (booking_id) DO NOTHING`,
			b.BookingID, b.UserID, b.FlightNumber, b.Origin, b.Destination, b.Date, b.PassengerName, b.Seat, b.Status, b.PriceCents); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `SELECT setval('booking_number_seq', GREATEST(n, 1), n > 0) FROM (SELECT COUNT(*) AS n FROM bookings) c`); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

var _ BookingRepository = (*PGBookingRepository)(nil)
