package repository

import (
	"context"
	"errors"
	"fmt"

	"bus-booking/internal/data/entity"
	"bus-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type BookingRepository interface {
	// Persist stores the booking and its seats atomically.
	Persist(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
}

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

func (r *bookingRepository) Persist(ctx context.Context, booking *entity.Booking) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin persist booking %s: %w", booking.ID, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (id, trip_id, holder_token, contact_name, contact_email, contact_phone, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		booking.ID,
		booking.TripID,
		booking.HolderToken,
		booking.Passenger.ContactName,
		booking.Passenger.ContactEmail,
		booking.Passenger.ContactPhone,
		booking.Status,
		booking.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("trip_id", booking.TripID),
		)
		return fmt.Errorf("create booking %s: %w", booking.ID, err)
	}

	batch := &pgx.Batch{}
	for _, seatID := range booking.SeatIDs {
		p, _ := booking.Passenger.Passenger(seatID)
		batch.Queue(`
			INSERT INTO booking_seats (booking_id, trip_id, seat_id, passenger_name, passenger_age, gender)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, booking.ID, booking.TripID, seatID, p.Name, p.Age, p.Gender)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		r.log.Error("Failed to create booking seats",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.Strings("seat_ids", booking.SeatIDs),
		)
		return fmt.Errorf("create seats for booking %s: %w", booking.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit booking %s: %w", booking.ID, err)
	}
	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `
		SELECT id, trip_id, holder_token, contact_name, contact_email, contact_phone, status, created_at
		FROM bookings
		WHERE id = $1
	`

	var booking entity.Booking
	err := r.db.QueryRow(ctx, query, id).Scan(
		&booking.ID,
		&booking.TripID,
		&booking.HolderToken,
		&booking.Passenger.ContactName,
		&booking.Passenger.ContactEmail,
		&booking.Passenger.ContactPhone,
		&booking.Status,
		&booking.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT seat_id, passenger_name, passenger_age, gender
		FROM booking_seats
		WHERE booking_id = $1
		ORDER BY seat_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("find seats for booking %s: %w", id.String(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var p entity.PassengerDetail
		if err := rows.Scan(&p.SeatID, &p.Name, &p.Age, &p.Gender); err != nil {
			return nil, fmt.Errorf("scan booking seat row: %w", err)
		}
		booking.SeatIDs = append(booking.SeatIDs, p.SeatID)
		booking.Passenger.Passengers = append(booking.Passenger.Passengers, p)
	}

	return &booking, rows.Err()
}
