package response

import (
	"time"

	"bus-booking/internal/data/entity"
)

type PassengerResponse struct {
	SeatID string `json:"seat_id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

type BookingResponse struct {
	ID           string               `json:"id"`
	TripID       string               `json:"trip_id"`
	SeatIDs      []string             `json:"seat_ids"`
	Status       entity.BookingStatus `json:"status"`
	ContactName  string               `json:"contact_name"`
	ContactEmail string               `json:"contact_email"`
	ContactPhone string               `json:"contact_phone"`
	Passengers   []PassengerResponse  `json:"passengers"`
	CreatedAt    time.Time            `json:"created_at"`
}

func NewBookingResponse(b *entity.Booking) *BookingResponse {
	resp := &BookingResponse{
		ID:           b.ID.String(),
		TripID:       b.TripID,
		SeatIDs:      b.SeatIDs,
		Status:       b.Status,
		ContactName:  b.Passenger.ContactName,
		ContactEmail: b.Passenger.ContactEmail,
		ContactPhone: b.Passenger.ContactPhone,
		Passengers:   make([]PassengerResponse, len(b.Passenger.Passengers)),
		CreatedAt:    b.CreatedAt,
	}
	for i, p := range b.Passenger.Passengers {
		resp.Passengers[i] = PassengerResponse{SeatID: p.SeatID, Name: p.Name, Age: p.Age, Gender: p.Gender}
	}
	return resp
}
