package request

import "time"

type OpenTripRequest struct {
	BusID       string    `json:"bus_id" validate:"required,uuid4"`
	DepartureAt time.Time `json:"departure_at" validate:"required"`
}
