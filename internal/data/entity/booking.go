package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type PassengerDetail struct {
	SeatID string `json:"seat_id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

type PassengerDetails struct {
	ContactName  string            `json:"contact_name"`
	ContactEmail string            `json:"contact_email"`
	ContactPhone string            `json:"contact_phone"`
	Passengers   []PassengerDetail `json:"passengers"`
}

// Passenger returns the passenger riding in seatID, if one was supplied.
func (p PassengerDetails) Passenger(seatID string) (PassengerDetail, bool) {
	for _, ps := range p.Passengers {
		if ps.SeatID == seatID {
			return ps, true
		}
	}
	return PassengerDetail{}, false
}

type Booking struct {
	ID          uuid.UUID        `db:"id"`
	TripID      string           `db:"trip_id"`
	HolderToken string           `db:"holder_token"`
	SeatIDs     []string         `db:"-"`
	Passenger   PassengerDetails `db:"-"`
	Status      BookingStatus    `db:"status"`
	CreatedAt   time.Time        `db:"created_at"`
}
