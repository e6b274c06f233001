package usecase

import (
	"context"
	"fmt"

	"bus-booking/internal/data/entity"
	"bus-booking/internal/data/repository"
	"bus-booking/internal/dto/request"
	"bus-booking/internal/dto/response"
	"bus-booking/pkg/clock"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TripService interface {
	// OpenTrip creates a trip and one available seat state per topology seat.
	OpenTrip(ctx context.Context, req *request.OpenTripRequest) (*response.TripResponse, error)
	// SeatMap returns topology plus a consistent state snapshot. viewer, if
	// set, marks the seats it holds.
	SeatMap(ctx context.Context, tripID, viewer string) (*response.SeatMapResponse, error)
	Topology(ctx context.Context, tripID string) (*entity.SeatTopology, error)
}

type tripService struct {
	repo  *repository.Repository
	clock clock.Clock
	log   *zap.Logger
}

func NewTripService(repo *repository.Repository, clk clock.Clock, log *zap.Logger) TripService {
	return &tripService{
		repo:  repo,
		clock: clk,
		log:   log.With(zap.String("service", "trip")),
	}
}

func (s *tripService) OpenTrip(ctx context.Context, req *request.OpenTripRequest) (*response.TripResponse, error) {
	busID, err := uuid.Parse(req.BusID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid bus ID format %s", ErrInvalidRequest, req.BusID)
	}
	bus, err := s.repo.Bus.FindByID(ctx, busID)
	if err != nil {
		return nil, fmt.Errorf("get bus %s: %w", req.BusID, err)
	}
	if bus == nil {
		return nil, fmt.Errorf("bus %s: %w", req.BusID, ErrBusNotFound)
	}

	now := s.clock.Now()
	trip := &entity.Trip{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		BusID:       bus.ID,
		DepartureAt: req.DepartureAt.UTC(),
		Status:      entity.TripStatusOpen,
	}

	// Seat states first: the trip only becomes visible once they exist.
	if err := s.repo.SeatState.OpenTrip(ctx, trip.ID.String(), bus.Topology.SeatIDs()); err != nil {
		return nil, fmt.Errorf("open seats for trip %s: %w", trip.ID, err)
	}
	if err := s.repo.Trip.Create(ctx, trip); err != nil {
		return nil, fmt.Errorf("open trip: %w", err)
	}

	s.log.Info("Trip opened",
		zap.String("trip_id", trip.ID.String()),
		zap.String("bus_id", bus.ID.String()),
		zap.Int("seats", len(bus.Topology.Seats)),
	)
	return &response.TripResponse{
		ID:          trip.ID.String(),
		BusID:       trip.BusID.String(),
		DepartureAt: trip.DepartureAt,
		Status:      trip.Status,
		TotalSeats:  bus.TotalSeats,
		CreatedAt:   trip.CreatedAt,
	}, nil
}

func (s *tripService) SeatMap(ctx context.Context, tripID, viewer string) (*response.SeatMapResponse, error) {
	topology, err := s.Topology(ctx, tripID)
	if err != nil {
		return nil, err
	}

	snap, err := s.repo.SeatState.Snapshot(ctx, tripID)
	if err != nil {
		return nil, mapStoreError(s.log, err, tripID, "")
	}

	return &response.SeatMapResponse{
		TripID:   tripID,
		Version:  snap.Version,
		Topology: topology,
		States:   response.NewSeatStates(snap.Within(topology), viewer),
	}, nil
}

func (s *tripService) Topology(ctx context.Context, tripID string) (*entity.SeatTopology, error) {
	id, err := uuid.Parse(tripID)
	if err != nil {
		return nil, fmt.Errorf("trip %s: %w", tripID, ErrTripNotFound)
	}
	trip, err := s.repo.Trip.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get trip %s: %w", tripID, err)
	}
	if trip == nil {
		return nil, fmt.Errorf("trip %s: %w", tripID, ErrTripNotFound)
	}

	bus, err := s.repo.Bus.FindByID(ctx, trip.BusID)
	if err != nil {
		return nil, fmt.Errorf("get bus %s: %w", trip.BusID, err)
	}
	if bus == nil {
		return nil, fmt.Errorf("bus %s: %w", trip.BusID, ErrBusNotFound)
	}
	return &bus.Topology, nil
}
