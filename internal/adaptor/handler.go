package adaptor

import (
	"bus-booking/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Bus         *BusHandler
	Trip        *TripHandler
	Reservation *ReservationHandler
	Booking     *BookingHandler
	Checkout    *CheckoutHandler
	SeatMap     *SeatMapSocket
}

func NewHandler(service *usecase.Service, allowedOrigins []string, log *zap.Logger) *Handler {
	return &Handler{
		Bus:         NewBusHandler(service.Bus, log),
		Trip:        NewTripHandler(service.Trip, log),
		Reservation: NewReservationHandler(service.Reservation, log),
		Booking:     NewBookingHandler(service.Booking, log),
		Checkout:    NewCheckoutHandler(log),
		SeatMap:     NewSeatMapSocket(service.Hub, service.Trip, service.Reservation, allowedOrigins, log),
	}
}
