package repository

import (
	"context"
	"sync"

	"bus-booking/internal/data/entity"
	"bus-booking/pkg/clock"

	"go.uber.org/zap"
)

type memoryTrip struct {
	mu    sync.Mutex
	seq   int64
	order []string
	seats map[string]*entity.SeatState
}

type memorySeatStateRepository struct {
	clock clock.Clock
	log   *zap.Logger

	mu    sync.RWMutex
	trips map[string]*memoryTrip

	sinkMu   sync.RWMutex
	sinks    map[uint64]DiffSink
	nextSink uint64
}

// NewMemorySeatStateRepository returns a single-process store. Each trip is
// its own shard guarded by its own mutex; swaps on different trips never
// contend.
func NewMemorySeatStateRepository(clk clock.Clock, log *zap.Logger) SeatStateRepository {
	return &memorySeatStateRepository{
		clock: clk,
		log:   log.With(zap.String("repository", "seat_state_memory")),
		trips: make(map[string]*memoryTrip),
		sinks: make(map[uint64]DiffSink),
	}
}

func (r *memorySeatStateRepository) trip(tripID string) *memoryTrip {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trips[tripID]
}

func (r *memorySeatStateRepository) OpenTrip(ctx context.Context, tripID string, seatIDs []string) error {
	r.mu.Lock()
	t, ok := r.trips[tripID]
	if !ok {
		t = &memoryTrip{seats: make(map[string]*entity.SeatState, len(seatIDs))}
		r.trips[tripID] = t
	}
	r.mu.Unlock()

	now := r.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	added := 0
	for _, id := range seatIDs {
		if _, exists := t.seats[id]; exists {
			continue
		}
		t.seats[id] = &entity.SeatState{
			TripID:    tripID,
			SeatID:    id,
			Status:    entity.SeatStatusAvailable,
			UpdatedAt: now,
		}
		t.order = append(t.order, id)
		added++
	}

	r.log.Debug("Trip opened", zap.String("trip_id", tripID), zap.Int("seats_added", added))
	return nil
}

func (r *memorySeatStateRepository) Snapshot(ctx context.Context, tripID string) (*entity.TripSnapshot, error) {
	t := r.trip(tripID)
	if t == nil {
		return nil, ErrTripNotOpen
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	snap := &entity.TripSnapshot{
		TripID:  tripID,
		Version: t.seq,
		States:  make([]*entity.SeatState, 0, len(t.order)),
	}
	for _, id := range t.order {
		snap.States = append(snap.States, t.seats[id].Clone())
	}
	return snap, nil
}

func (r *memorySeatStateRepository) CompareAndSwap(ctx context.Context, tripID, seatID string, cond entity.SeatCondition, next entity.SeatUpdate) (bool, error) {
	if err := checkSwap(cond, next, r.clock.Now); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	t := r.trip(tripID)
	if t == nil {
		return false, ErrTripNotOpen
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.seats[seatID]
	if !ok {
		return false, ErrSeatNotFound
	}
	if !cond.Matches(cur) {
		return false, nil
	}

	now := r.clock.Now()
	t.seats[seatID] = next.Apply(cur, now)
	t.seq++

	// Emitted under the trip lock so sinks observe swaps in apply order.
	r.emit(entity.SeatDiffEvent{
		TripID:      tripID,
		SeatID:      seatID,
		Seq:         t.seq,
		OldStatus:   cur.Status,
		NewStatus:   next.Status,
		HolderToken: next.HolderToken,
		At:          now,
	})
	return true, nil
}

func (r *memorySeatStateRepository) TripsWithHolds(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.trips))
	trips := make([]*memoryTrip, 0, len(r.trips))
	for id, t := range r.trips {
		ids = append(ids, id)
		trips = append(trips, t)
	}
	r.mu.RUnlock()

	var out []string
	for i, t := range trips {
		t.mu.Lock()
		for _, s := range t.seats {
			if s.Status == entity.SeatStatusHeld {
				out = append(out, ids[i])
				break
			}
		}
		t.mu.Unlock()
	}
	return out, nil
}

func (r *memorySeatStateRepository) StreamDiffs(ctx context.Context, sink DiffSink) error {
	r.sinkMu.Lock()
	id := r.nextSink
	r.nextSink++
	r.sinks[id] = sink
	r.sinkMu.Unlock()

	<-ctx.Done()

	r.sinkMu.Lock()
	delete(r.sinks, id)
	r.sinkMu.Unlock()
	return ctx.Err()
}

func (r *memorySeatStateRepository) emit(ev entity.SeatDiffEvent) {
	r.sinkMu.RLock()
	defer r.sinkMu.RUnlock()
	for _, s := range r.sinks {
		s.Publish(ev)
	}
}
