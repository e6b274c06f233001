package usecase

import (
	"context"
	"fmt"
	"time"

	"bus-booking/internal/data/entity"
	"bus-booking/internal/data/repository"
	"bus-booking/internal/dto/response"
	"bus-booking/pkg/broker"
	"bus-booking/pkg/clock"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const publishTimeout = 3 * time.Second

type BookingService interface {
	// Commit turns the caller's live holds into a persisted booking.
	Commit(ctx context.Context, tripID string, seatIDs []string, holderToken string, details entity.PassengerDetails) (*response.BookingResponse, error)
	GetBooking(ctx context.Context, bookingID string) (*response.BookingResponse, error)
}

type bookingService struct {
	store     repository.SeatStateRepository
	catalog   SeatCatalog
	bookings  repository.BookingRepository
	publisher broker.Publisher
	clock     clock.Clock
	log       *zap.Logger
}

func NewBookingService(repo *repository.Repository, catalog SeatCatalog, publisher broker.Publisher, clk clock.Clock, log *zap.Logger) BookingService {
	return &bookingService{
		store:     repo.SeatState,
		catalog:   catalog,
		bookings:  repo.Booking,
		publisher: publisher,
		clock:     clk,
		log:       log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) Commit(ctx context.Context, tripID string, seatIDs []string, holderToken string, details entity.PassengerDetails) (*response.BookingResponse, error) {
	seats, err := normalizeSeatIDs(seatIDs)
	if err != nil {
		return nil, err
	}
	if holderToken == "" {
		return nil, fmt.Errorf("%w: holder token is required", ErrInvalidRequest)
	}
	if err := validatePassengers(seats, details); err != nil {
		return nil, err
	}
	if err := checkSeats(ctx, s.catalog, tripID, seats); err != nil {
		return nil, err
	}

	// Preconditions first, so a lost hold changes nothing.
	snap, err := s.store.Snapshot(ctx, tripID)
	if err != nil {
		return nil, mapStoreError(s.log, err, tripID, "")
	}
	idx := snap.Index()
	now := s.clock.Now()

	var lost []string
	for _, seatID := range seats {
		st, ok := idx[seatID]
		if !ok {
			return nil, fmt.Errorf("seat %s on trip %s: %w", seatID, tripID, ErrUnknownSeat)
		}
		if !st.HeldBy(holderToken) || st.Expired(now) {
			lost = append(lost, seatID)
		}
	}
	if len(lost) > 0 {
		s.log.Debug("Commit refused, holds lost", zap.String("trip_id", tripID), zap.Strings("seat_ids", lost))
		return nil, &HoldLostDuringCheckoutError{SeatIDs: lost}
	}

	bookingID := uuid.New()
	booked := make([]string, 0, len(seats))
	for _, seatID := range seats {
		at := s.clock.Now()
		cond := entity.SeatCondition{Status: entity.SeatStatusHeld, HolderToken: holderToken, LiveAt: &at}
		ok, err := s.store.CompareAndSwap(ctx, tripID, seatID, cond, entity.BookedAs(bookingID.String()))
		if err != nil || !ok {
			s.restoreHolds(ctx, tripID, holderToken, bookingID.String(), booked, idx)
			if err != nil {
				return nil, mapStoreError(s.log, err, tripID, seatID)
			}
			s.log.Debug("Commit lost a hold mid-way",
				zap.String("trip_id", tripID),
				zap.String("seat_id", seatID),
			)
			return nil, &HoldLostDuringCheckoutError{SeatIDs: []string{seatID}}
		}
		booked = append(booked, seatID)
	}

	booking := &entity.Booking{
		ID:          bookingID,
		TripID:      tripID,
		HolderToken: holderToken,
		SeatIDs:     seats,
		Passenger:   details,
		Status:      entity.BookingStatusConfirmed,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.bookings.Persist(ctx, booking); err != nil {
		s.compensate(ctx, tripID, bookingID.String(), booked)
		s.log.Error("Booking persistence failed, seats released",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
			zap.String("trip_id", tripID),
			zap.Strings("seat_ids", booked),
		)
		return nil, &BookingPersistenceFailedError{BookingID: bookingID.String(), Err: err}
	}

	s.publishConfirmed(ctx, booking)

	s.log.Info("Booking confirmed",
		zap.String("booking_id", bookingID.String()),
		zap.String("trip_id", tripID),
		zap.Strings("seat_ids", seats),
	)
	return response.NewBookingResponse(booking), nil
}

// restoreHolds undoes the seats this commit already booked: back to the
// caller's hold while it is still live, otherwise to available.
func (s *bookingService) restoreHolds(ctx context.Context, tripID, token, bookingID string, seats []string, before map[string]*entity.SeatState) {
	ctx = context.WithoutCancel(ctx)
	cond := entity.SeatCondition{Status: entity.SeatStatusBooked, BookingID: bookingID}
	for _, seatID := range seats {
		next := entity.Available()
		if prev := before[seatID]; prev != nil && prev.HoldExpiresAt != nil && prev.HoldExpiresAt.After(s.clock.Now()) {
			next = entity.HeldUntil(token, *prev.HoldExpiresAt)
		}

		ok, err := s.store.CompareAndSwap(ctx, tripID, seatID, cond, next)
		if err != nil && next.Status == entity.SeatStatusHeld {
			// The hold lapsed in between.
			ok, err = s.store.CompareAndSwap(ctx, tripID, seatID, cond, entity.Available())
		}
		if err != nil || !ok {
			s.log.Error("Failed to restore seat after aborted commit",
				zap.Error(err),
				zap.String("trip_id", tripID),
				zap.String("seat_id", seatID),
				zap.String("booking_id", bookingID),
			)
		}
	}
}

// compensate releases seats whose booking could not be persisted.
func (s *bookingService) compensate(ctx context.Context, tripID, bookingID string, seats []string) {
	ctx = context.WithoutCancel(ctx)
	cond := entity.SeatCondition{Status: entity.SeatStatusBooked, BookingID: bookingID}
	for _, seatID := range seats {
		ok, err := s.store.CompareAndSwap(ctx, tripID, seatID, cond, entity.Available())
		if err != nil || !ok {
			s.log.Error("Failed to compensate unpersisted booking",
				zap.Error(err),
				zap.String("trip_id", tripID),
				zap.String("seat_id", seatID),
				zap.String("booking_id", bookingID),
			)
		}
	}
}

func (s *bookingService) publishConfirmed(ctx context.Context, booking *entity.Booking) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.publisher.PublishBookingConfirmed(ctx, broker.BookingConfirmedEvent{
		BookingID:      booking.ID.String(),
		TripID:         booking.TripID,
		SeatIDs:        booking.SeatIDs,
		PassengerCount: len(booking.Passenger.Passengers),
		ConfirmedAt:    booking.CreatedAt,
	})
	if err != nil {
		s.log.Warn("Failed to publish booking confirmed event",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
	}
}

func (s *bookingService) GetBooking(ctx context.Context, bookingID string) (*response.BookingResponse, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid booking ID format %s", ErrInvalidRequest, bookingID)
	}

	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", bookingID, err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, ErrBookingNotFound)
	}

	return response.NewBookingResponse(booking), nil
}

// validatePassengers requires exactly one passenger per booked seat.
func validatePassengers(seats []string, details entity.PassengerDetails) error {
	if len(details.Passengers) != len(seats) {
		return fmt.Errorf("%w: %d passengers for %d seats", ErrInvalidRequest, len(details.Passengers), len(seats))
	}
	for _, seatID := range seats {
		if _, ok := details.Passenger(seatID); !ok {
			return fmt.Errorf("%w: no passenger for seat %s", ErrInvalidRequest, seatID)
		}
	}
	return nil
}
