package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bus-booking/internal/data/entity"
	"bus-booking/internal/data/repository"
	"bus-booking/pkg/broker"
	"bus-booking/pkg/clock"
	"bus-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var testEpoch = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type fakeBusRepo struct {
	mu    sync.Mutex
	buses map[uuid.UUID]*entity.Bus
}

func newFakeBusRepo() *fakeBusRepo {
	return &fakeBusRepo{buses: make(map[uuid.UUID]*entity.Bus)}
}

func (f *fakeBusRepo) Create(_ context.Context, bus *entity.Bus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *bus
	f.buses[bus.ID] = &c
	return nil
}

func (f *fakeBusRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Bus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buses[id]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (f *fakeBusRepo) FindAll(_ context.Context) ([]*entity.Bus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Bus
	for _, b := range f.buses {
		c := *b
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeBusRepo) UpdateTopology(_ context.Context, bus *entity.Bus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buses[bus.ID]; !ok {
		return errors.New("bus not found")
	}
	c := *bus
	f.buses[bus.ID] = &c
	return nil
}

type fakeTripRepo struct {
	mu    sync.Mutex
	trips map[uuid.UUID]*entity.Trip
}

func newFakeTripRepo() *fakeTripRepo {
	return &fakeTripRepo{trips: make(map[uuid.UUID]*entity.Trip)}
}

func (f *fakeTripRepo) Create(_ context.Context, trip *entity.Trip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *trip
	f.trips[trip.ID] = &c
	return nil
}

func (f *fakeTripRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[id]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (f *fakeTripRepo) FindOpenByBusID(_ context.Context, busID uuid.UUID) ([]*entity.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Trip
	for _, t := range f.trips {
		if t.BusID == busID && t.Status == entity.TripStatusOpen {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*entity.Booking
	failWith error
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]*entity.Booking)}
}

func (f *fakeBookingRepo) Persist(_ context.Context, b *entity.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	c := *b
	f.bookings[b.ID] = &c
	return nil
}

func (f *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (f *fakeBookingRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bookings)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []broker.BookingConfirmedEvent
	err    error
}

func (p *fakePublisher) PublishBookingConfirmed(_ context.Context, ev broker.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) published() []broker.BookingConfirmedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]broker.BookingConfirmedEvent(nil), p.events...)
}

// flakyStore fails the swap into booked for one seat, simulating a hold
// stolen between the precondition check and the swap.
type flakyStore struct {
	repository.SeatStateRepository
	loseSeat string
}

func (s *flakyStore) CompareAndSwap(ctx context.Context, tripID, seatID string, cond entity.SeatCondition, next entity.SeatUpdate) (bool, error) {
	if seatID == s.loseSeat && next.Status == entity.SeatStatusBooked {
		return false, nil
	}
	return s.SeatStateRepository.CompareAndSwap(ctx, tripID, seatID, cond, next)
}

// churnStore loses every swap from available to held, as if another buyer
// always took the seat and let it go again before it could be read.
type churnStore struct {
	repository.SeatStateRepository
	swaps int
}

func (s *churnStore) CompareAndSwap(ctx context.Context, tripID, seatID string, cond entity.SeatCondition, next entity.SeatUpdate) (bool, error) {
	if cond.Status == entity.SeatStatusAvailable && next.Status == entity.SeatStatusHeld {
		s.swaps++
		return false, nil
	}
	return s.SeatStateRepository.CompareAndSwap(ctx, tripID, seatID, cond, next)
}

type testEnv struct {
	clock     *clock.Fake
	store     repository.SeatStateRepository
	repo      *repository.Repository
	buses     *fakeBusRepo
	trips     *fakeTripRepo
	bookings  *fakeBookingRepo
	publisher *fakePublisher
	config    *utils.Config
	svc       *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clk := clock.NewFake(testEpoch)
	log := zap.NewNop()

	env := &testEnv{
		clock:     clk,
		store:     repository.NewMemorySeatStateRepository(clk, log),
		buses:     newFakeBusRepo(),
		trips:     newFakeTripRepo(),
		bookings:  newFakeBookingRepo(),
		publisher: &fakePublisher{},
		config: &utils.Config{
			Hold:  utils.HoldConfig{DefaultTTL: 5 * time.Minute, MaxTTL: 15 * time.Minute},
			Sweep: utils.SweepConfig{Interval: time.Second, Concurrency: 2},
			Hub:   utils.HubConfig{MaxPending: 64},
		},
	}
	env.rebuild()
	return env
}

// rebuild rewires the services after env.store was replaced.
func (e *testEnv) rebuild() {
	e.repo = &repository.Repository{
		Bus:       e.buses,
		Trip:      e.trips,
		Booking:   e.bookings,
		SeatState: e.store,
	}
	e.svc = NewService(e.repo, e.publisher, e.config, e.clock, zap.NewNop())
}

// openTrip registers a single-deck bus laid out with exactly the given seats
// and opens a trip on it.
func (e *testEnv) openTrip(t *testing.T, seats ...string) string {
	t.Helper()
	ctx := context.Background()
	bus := &entity.Bus{
		Base:       entity.Base{ID: uuid.New(), CreatedAt: testEpoch, UpdatedAt: testEpoch},
		Name:       "fixture",
		BusType:    entity.BusTypeSeater,
		TotalSeats: len(seats),
		Topology:   entity.SeatTopology{BusType: entity.BusTypeSeater, TotalSeats: len(seats), Custom: true},
	}
	for i, id := range seats {
		bus.Topology.Seats = append(bus.Topology.Seats, entity.SeatDescriptor{
			SeatID: id, Deck: entity.DeckLower, Side: entity.SideLeft, Row: i + 1, Column: 1,
		})
	}
	trip := &entity.Trip{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New(), CreatedAt: testEpoch, UpdatedAt: testEpoch},
		BusID:        bus.ID,
		DepartureAt:  testEpoch.Add(24 * time.Hour),
		Status:       entity.TripStatusOpen,
	}
	tripID := trip.ID.String()
	if err := e.store.OpenTrip(ctx, tripID, seats); err != nil {
		t.Fatalf("open trip: %v", err)
	}
	e.buses.Create(ctx, bus)
	e.trips.Create(ctx, trip)
	return tripID
}

func (e *testEnv) state(t *testing.T, tripID, seatID string) *entity.SeatState {
	t.Helper()
	snap, err := e.store.Snapshot(context.Background(), tripID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	st, ok := snap.Index()[seatID]
	if !ok {
		t.Fatalf("seat %s missing from trip %s", seatID, tripID)
	}
	return st
}

func passengersFor(seats ...string) entity.PassengerDetails {
	d := entity.PassengerDetails{
		ContactName:  "Asha Rao",
		ContactEmail: "asha@example.com",
		ContactPhone: "+911234567890",
	}
	for _, s := range seats {
		d.Passengers = append(d.Passengers, entity.PassengerDetail{SeatID: s, Name: "Rider " + s, Age: 30, Gender: "other"})
	}
	return d
}
