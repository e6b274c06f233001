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

type BusService interface {
	RegisterBus(ctx context.Context, req *request.RegisterBusRequest) (*response.BusResponse, error)
	GetBus(ctx context.Context, busID string) (*response.BusResponse, error)
	// UpdateLayout regenerates the topology. A change of the seat id set is
	// refused with LayoutChangeError unless req.Force is set.
	UpdateLayout(ctx context.Context, busID string, req *request.UpdateLayoutRequest) (*response.LayoutUpdateResponse, error)
}

type busService struct {
	repo  *repository.Repository
	clock clock.Clock
	log   *zap.Logger
}

func NewBusService(repo *repository.Repository, clk clock.Clock, log *zap.Logger) BusService {
	return &busService{
		repo:  repo,
		clock: clk,
		log:   log.With(zap.String("service", "bus")),
	}
}

func (s *busService) RegisterBus(ctx context.Context, req *request.RegisterBusRequest) (*response.BusResponse, error) {
	busType := entity.BusType(req.BusType)
	topology, err := GenerateTopology(busType, req.TotalSeats, request.Descriptors(req.Layout))
	if err != nil {
		s.log.Warn("Rejected bus configuration", zap.Error(err), zap.String("name", req.Name))
		return nil, err
	}

	now := s.clock.Now()
	bus := &entity.Bus{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:       req.Name,
		BusType:    busType,
		TotalSeats: req.TotalSeats,
		Topology:   *topology,
	}

	if err := s.repo.Bus.Create(ctx, bus); err != nil {
		return nil, fmt.Errorf("register bus: %w", err)
	}

	s.log.Info("Bus registered",
		zap.String("bus_id", bus.ID.String()),
		zap.String("bus_type", string(bus.BusType)),
		zap.Int("total_seats", bus.TotalSeats),
		zap.Bool("custom_layout", topology.Custom),
	)
	return response.NewBusResponse(bus), nil
}

func (s *busService) GetBus(ctx context.Context, busID string) (*response.BusResponse, error) {
	bus, err := s.findBus(ctx, busID)
	if err != nil {
		return nil, err
	}
	return response.NewBusResponse(bus), nil
}

func (s *busService) UpdateLayout(ctx context.Context, busID string, req *request.UpdateLayoutRequest) (*response.LayoutUpdateResponse, error) {
	bus, err := s.findBus(ctx, busID)
	if err != nil {
		return nil, err
	}

	busType := entity.BusType(req.BusType)
	topology, err := GenerateTopology(busType, req.TotalSeats, request.Descriptors(req.Layout))
	if err != nil {
		return nil, err
	}

	added, removed := diffSeatIDs(bus.Topology.SeatIDs(), topology.SeatIDs())
	changed := len(added) > 0 || len(removed) > 0
	if changed && !req.Force {
		return nil, &LayoutChangeError{Added: added, Removed: removed}
	}

	bus.BusType = busType
	bus.TotalSeats = req.TotalSeats
	bus.Topology = *topology
	bus.UpdatedAt = s.clock.Now()
	if err := s.repo.Bus.UpdateTopology(ctx, bus); err != nil {
		return nil, fmt.Errorf("update layout: %w", err)
	}

	resp := &response.LayoutUpdateResponse{
		Bus:     response.NewBusResponse(bus),
		Added:   added,
		Removed: removed,
	}
	if !changed {
		return resp, nil
	}

	resp.Warning = fmt.Sprintf("seat id set changed: %d added, %d removed; removed seat ids are invalidated on open trips and can no longer be held or booked, existing bookings keep their records",
		len(added), len(removed))
	s.log.Warn("Bus layout forcibly changed",
		zap.String("bus_id", bus.ID.String()),
		zap.Strings("added", added),
		zap.Strings("removed", removed),
	)

	// Open trips get states for the new seats; existing states are untouched.
	if len(added) > 0 {
		trips, err := s.repo.Trip.FindOpenByBusID(ctx, bus.ID)
		if err != nil {
			return nil, fmt.Errorf("find open trips for bus %s: %w", busID, err)
		}
		for _, trip := range trips {
			if err := s.repo.SeatState.OpenTrip(ctx, trip.ID.String(), topology.SeatIDs()); err != nil {
				return nil, fmt.Errorf("extend trip %s: %w", trip.ID, err)
			}
		}
	}

	return resp, nil
}

func (s *busService) findBus(ctx context.Context, busID string) (*entity.Bus, error) {
	id, err := uuid.Parse(busID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid bus ID format %s", ErrInvalidRequest, busID)
	}
	bus, err := s.repo.Bus.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get bus %s: %w", busID, err)
	}
	if bus == nil {
		return nil, fmt.Errorf("bus %s: %w", busID, ErrBusNotFound)
	}
	return bus, nil
}

