package repository

import (
	"context"
	"errors"
	"time"

	"bus-booking/internal/data/entity"
)

var (
	ErrTripNotOpen       = errors.New("trip not open for booking")
	ErrSeatNotFound      = errors.New("seat not found")
	ErrInvalidTransition = errors.New("invalid seat state transition")
)

// DiffSink receives the ordered diff stream of a SeatStateRepository.
// Publish must not block.
type DiffSink interface {
	Publish(ev entity.SeatDiffEvent)
	// Resync is called when the stream may have lost events, e.g. after a
	// reconnect. Consumers must re-read a snapshot.
	Resync()
}

// SeatStateRepository is the authoritative per-trip seat state store.
// CompareAndSwap is the only mutation primitive; every successful swap
// emits exactly one SeatDiffEvent, ordered per trip.
type SeatStateRepository interface {
	// OpenTrip creates an available state for every seat that has none yet.
	OpenTrip(ctx context.Context, tripID string, seatIDs []string) error
	Snapshot(ctx context.Context, tripID string) (*entity.TripSnapshot, error)
	// CompareAndSwap returns false without error when cond does not match.
	CompareAndSwap(ctx context.Context, tripID, seatID string, cond entity.SeatCondition, next entity.SeatUpdate) (bool, error)
	// TripsWithHolds lists trips that may currently contain held seats.
	TripsWithHolds(ctx context.Context) ([]string, error)
	// StreamDiffs feeds sink until ctx is done.
	StreamDiffs(ctx context.Context, sink DiffSink) error
}

type timeNow func() time.Time

func checkSwap(cond entity.SeatCondition, next entity.SeatUpdate, now timeNow) error {
	if !entity.CanTransition(cond, next.Status) {
		return ErrInvalidTransition
	}
	return next.Validate(now())
}
