package repository

import (
	"bus-booking/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Bus       BusRepository
	Trip      TripRepository
	Booking   BookingRepository
	SeatState SeatStateRepository
}

// NewRepository wires the Postgres repositories around the chosen seat store.
func NewRepository(db database.PgxIface, seats SeatStateRepository, log *zap.Logger) *Repository {
	return &Repository{
		Bus:       NewBusRepository(db, log),
		Trip:      NewTripRepository(db, log),
		Booking:   NewBookingRepository(db, log),
		SeatState: seats,
	}
}
