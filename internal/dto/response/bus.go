package response

import (
	"time"

	"bus-booking/internal/data/entity"
)

type BusResponse struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	BusType    entity.BusType       `json:"bus_type"`
	TotalSeats int                  `json:"total_seats"`
	Topology   *entity.SeatTopology `json:"topology"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

type LayoutUpdateResponse struct {
	Bus     *BusResponse `json:"bus"`
	Added   []string     `json:"added_seat_ids,omitempty"`
	Removed []string     `json:"removed_seat_ids,omitempty"`
	Warning string       `json:"warning,omitempty"`
}

func NewBusResponse(bus *entity.Bus) *BusResponse {
	topo := bus.Topology
	return &BusResponse{
		ID:         bus.ID.String(),
		Name:       bus.Name,
		BusType:    bus.BusType,
		TotalSeats: bus.TotalSeats,
		Topology:   &topo,
		CreatedAt:  bus.CreatedAt,
		UpdatedAt:  bus.UpdatedAt,
	}
}
