package request

import "bus-booking/internal/data/entity"

type SeatDescriptorRequest struct {
	SeatID string `json:"seat_id" validate:"required,max=16"`
	Deck   string `json:"deck" validate:"required,oneof=lower upper"`
	Side   string `json:"side" validate:"required,oneof=left right"`
	Row    int    `json:"row" validate:"required,min=1"`
	Column int    `json:"column" validate:"required,min=1"`
}

type RegisterBusRequest struct {
	Name       string                  `json:"name" validate:"required,min=2,max=100"`
	BusType    string                  `json:"bus_type" validate:"required,oneof=seater semi-sleeper sleeper"`
	TotalSeats int                     `json:"total_seats" validate:"required,min=1,max=200"`
	Layout     []SeatDescriptorRequest `json:"layout,omitempty" validate:"omitempty,dive"`
}

type UpdateLayoutRequest struct {
	BusType    string                  `json:"bus_type" validate:"required,oneof=seater semi-sleeper sleeper"`
	TotalSeats int                     `json:"total_seats" validate:"required,min=1,max=200"`
	Layout     []SeatDescriptorRequest `json:"layout,omitempty" validate:"omitempty,dive"`
	Force      bool                    `json:"force"`
}

// Descriptors converts an authored layout; nil means "synthesize".
func Descriptors(layout []SeatDescriptorRequest) []entity.SeatDescriptor {
	if len(layout) == 0 {
		return nil
	}
	out := make([]entity.SeatDescriptor, len(layout))
	for i, s := range layout {
		out[i] = entity.SeatDescriptor{
			SeatID: s.SeatID,
			Deck:   entity.Deck(s.Deck),
			Side:   entity.Side(s.Side),
			Row:    s.Row,
			Column: s.Column,
		}
	}
	return out
}
