package entity

import (
	"time"

	"github.com/google/uuid"
)

type TripStatus string

const (
	TripStatusOpen     TripStatus = "open"
	TripStatusArchived TripStatus = "archived"
)

type Trip struct {
	BaseNoDelete
	BusID       uuid.UUID  `db:"bus_id"`
	DepartureAt time.Time  `db:"departure_at"`
	Status      TripStatus `db:"status"`
}
