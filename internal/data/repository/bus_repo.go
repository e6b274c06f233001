package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bus-booking/internal/data/entity"
	"bus-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type BusRepository interface {
	Create(ctx context.Context, bus *entity.Bus) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Bus, error)
	FindAll(ctx context.Context) ([]*entity.Bus, error)
	UpdateTopology(ctx context.Context, bus *entity.Bus) error
}

type busRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBusRepository(db database.PgxIface, log *zap.Logger) BusRepository {
	return &busRepository{
		db:  db,
		log: log.With(zap.String("repository", "bus")),
	}
}

func (r *busRepository) Create(ctx context.Context, bus *entity.Bus) error {
	query := `
		INSERT INTO buses (id, name, bus_type, total_seats, topology, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	topology, err := json.Marshal(bus.Topology)
	if err != nil {
		return fmt.Errorf("encode topology for bus %s: %w", bus.ID, err)
	}

	_, err = r.db.Exec(ctx, query,
		bus.ID,
		bus.Name,
		bus.BusType,
		bus.TotalSeats,
		topology,
		bus.CreatedAt,
		bus.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create bus",
			zap.Error(err),
			zap.String("bus_id", bus.ID.String()),
			zap.String("name", bus.Name),
		)
		return fmt.Errorf("create bus %s: %w", bus.Name, err)
	}

	return nil
}

func (r *busRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Bus, error) {
	query := `
		SELECT id, name, bus_type, total_seats, topology, created_at, updated_at, deleted_at
		FROM buses
		WHERE id = $1 AND deleted_at IS NULL
	`

	bus, err := scanBus(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find bus by ID",
			zap.Error(err),
			zap.String("bus_id", id.String()),
		)
		return nil, fmt.Errorf("find bus by ID %s: %w", id.String(), err)
	}

	return bus, nil
}

func (r *busRepository) FindAll(ctx context.Context) ([]*entity.Bus, error) {
	query := `
		SELECT id, name, bus_type, total_seats, topology, created_at, updated_at, deleted_at
		FROM buses
		WHERE deleted_at IS NULL
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.log.Error("Failed to list buses", zap.Error(err))
		return nil, fmt.Errorf("list buses: %w", err)
	}
	defer rows.Close()

	var buses []*entity.Bus
	for rows.Next() {
		bus, err := scanBus(rows)
		if err != nil {
			r.log.Error("Failed to scan bus row", zap.Error(err))
			return nil, fmt.Errorf("scan bus row: %w", err)
		}
		buses = append(buses, bus)
	}

	return buses, rows.Err()
}

func (r *busRepository) UpdateTopology(ctx context.Context, bus *entity.Bus) error {
	query := `
		UPDATE buses
		SET bus_type = $2, total_seats = $3, topology = $4, updated_at = $5
		WHERE id = $1 AND deleted_at IS NULL
	`

	topology, err := json.Marshal(bus.Topology)
	if err != nil {
		return fmt.Errorf("encode topology for bus %s: %w", bus.ID, err)
	}

	tag, err := r.db.Exec(ctx, query, bus.ID, bus.BusType, bus.TotalSeats, topology, bus.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to update bus topology",
			zap.Error(err),
			zap.String("bus_id", bus.ID.String()),
		)
		return fmt.Errorf("update topology for bus %s: %w", bus.ID.String(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bus %s not found", bus.ID.String())
	}

	return nil
}

func scanBus(row pgx.Row) (*entity.Bus, error) {
	var (
		bus      entity.Bus
		topology []byte
	)
	err := row.Scan(
		&bus.ID,
		&bus.Name,
		&bus.BusType,
		&bus.TotalSeats,
		&topology,
		&bus.CreatedAt,
		&bus.UpdatedAt,
		&bus.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(topology, &bus.Topology); err != nil {
		return nil, fmt.Errorf("decode topology for bus %s: %w", bus.ID, err)
	}
	return &bus, nil
}
