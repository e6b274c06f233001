package usecase

import (
	"bus-booking/internal/data/repository"
	"bus-booking/pkg/broker"
	"bus-booking/pkg/clock"
	"bus-booking/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Bus         BusService
	Trip        TripService
	Reservation ReservationService
	Booking     BookingService
	Hub         *NotificationHub
	Sweeper     *ExpirySweeper
}

func NewService(repo *repository.Repository, publisher broker.Publisher, config *utils.Config, clk clock.Clock, log *zap.Logger) *Service {
	trip := NewTripService(repo, clk, log)
	reservation := NewReservationService(repo.SeatState, trip, config.Hold, clk, log)
	return &Service{
		Bus:         NewBusService(repo, clk, log),
		Trip:        trip,
		Reservation: reservation,
		Booking:     NewBookingService(repo, trip, publisher, clk, log),
		Hub:         NewNotificationHub(repo.SeatState, config.Hub.MaxPending, log),
		Sweeper:     NewExpirySweeper(repo.SeatState, reservation, config.Sweep.Interval, config.Sweep.Concurrency, log),
	}
}
