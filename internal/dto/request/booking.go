package request

import "bus-booking/internal/data/entity"

type PassengerRequest struct {
	SeatID string `json:"seat_id" validate:"required"`
	Name   string `json:"name" validate:"required,min=2,max=100"`
	Age    int    `json:"age" validate:"required,min=1,max=120"`
	Gender string `json:"gender" validate:"required,oneof=male female other"`
}

type CommitBookingRequest struct {
	HolderToken  string             `json:"holder_token" validate:"required,max=128"`
	SeatIDs      []string           `json:"seat_ids" validate:"required,min=1,max=20,dive,required"`
	ContactName  string             `json:"contact_name" validate:"required,min=2,max=100"`
	ContactEmail string             `json:"contact_email" validate:"required,email"`
	ContactPhone string             `json:"contact_phone" validate:"required,min=6,max=20"`
	Passengers   []PassengerRequest `json:"passengers" validate:"required,min=1,dive"`
}

func (r *CommitBookingRequest) Details() entity.PassengerDetails {
	details := entity.PassengerDetails{
		ContactName:  r.ContactName,
		ContactEmail: r.ContactEmail,
		ContactPhone: r.ContactPhone,
		Passengers:   make([]entity.PassengerDetail, len(r.Passengers)),
	}
	for i, p := range r.Passengers {
		details.Passengers[i] = entity.PassengerDetail{
			SeatID: p.SeatID,
			Name:   p.Name,
			Age:    p.Age,
			Gender: p.Gender,
		}
	}
	return details
}
