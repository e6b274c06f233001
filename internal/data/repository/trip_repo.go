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

type TripRepository interface {
	Create(ctx context.Context, trip *entity.Trip) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Trip, error)
	FindOpenByBusID(ctx context.Context, busID uuid.UUID) ([]*entity.Trip, error)
}

type tripRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewTripRepository(db database.PgxIface, log *zap.Logger) TripRepository {
	return &tripRepository{
		db:  db,
		log: log.With(zap.String("repository", "trip")),
	}
}

func (r *tripRepository) Create(ctx context.Context, trip *entity.Trip) error {
	query := `
		INSERT INTO trips (id, bus_id, departure_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		trip.ID,
		trip.BusID,
		trip.DepartureAt,
		trip.Status,
		trip.CreatedAt,
		trip.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create trip",
			zap.Error(err),
			zap.String("trip_id", trip.ID.String()),
			zap.String("bus_id", trip.BusID.String()),
		)
		return fmt.Errorf("create trip %s: %w", trip.ID.String(), err)
	}

	return nil
}

func (r *tripRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Trip, error) {
	query := `
		SELECT id, bus_id, departure_at, status, created_at, updated_at
		FROM trips
		WHERE id = $1
	`

	var trip entity.Trip
	err := r.db.QueryRow(ctx, query, id).Scan(
		&trip.ID,
		&trip.BusID,
		&trip.DepartureAt,
		&trip.Status,
		&trip.CreatedAt,
		&trip.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find trip by ID",
			zap.Error(err),
			zap.String("trip_id", id.String()),
		)
		return nil, fmt.Errorf("find trip by ID %s: %w", id.String(), err)
	}

	return &trip, nil
}

func (r *tripRepository) FindOpenByBusID(ctx context.Context, busID uuid.UUID) ([]*entity.Trip, error) {
	query := `
		SELECT id, bus_id, departure_at, status, created_at, updated_at
		FROM trips
		WHERE bus_id = $1 AND status = $2
		ORDER BY departure_at
	`

	rows, err := r.db.Query(ctx, query, busID, entity.TripStatusOpen)
	if err != nil {
		r.log.Error("Failed to find open trips by bus",
			zap.Error(err),
			zap.String("bus_id", busID.String()),
		)
		return nil, fmt.Errorf("find open trips for bus %s: %w", busID.String(), err)
	}
	defer rows.Close()

	var trips []*entity.Trip
	for rows.Next() {
		var trip entity.Trip
		err := rows.Scan(
			&trip.ID,
			&trip.BusID,
			&trip.DepartureAt,
			&trip.Status,
			&trip.CreatedAt,
			&trip.UpdatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan trip row", zap.Error(err))
			return nil, fmt.Errorf("scan trip row: %w", err)
		}
		trips = append(trips, &trip)
	}

	return trips, rows.Err()
}
