package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"bus-booking/internal/data/entity"
	"bus-booking/internal/dto/request"
)

func registerSleeper(t *testing.T, env *testEnv, seats int) string {
	t.Helper()
	bus, err := env.svc.Bus.RegisterBus(context.Background(), &request.RegisterBusRequest{
		Name:       "Night Rider",
		BusType:    string(entity.BusTypeSleeper),
		TotalSeats: seats,
	})
	if err != nil {
		t.Fatalf("register bus: %v", err)
	}
	return bus.ID
}

func TestBusService_RegisterAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	busID := registerSleeper(t, env, 40)
	bus, err := env.svc.Bus.GetBus(ctx, busID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if bus.TotalSeats != 40 || len(bus.Topology.Seats) != 40 || bus.Topology.Seats[20].SeatID != "U1" {
		t.Fatalf("unexpected bus %+v", bus)
	}

	_, err = env.svc.Bus.RegisterBus(ctx, &request.RegisterBusRequest{
		Name:       "Broken",
		BusType:    string(entity.BusTypeSeater),
		TotalSeats: 3,
		Layout: []request.SeatDescriptorRequest{
			{SeatID: "A", Deck: "lower", Side: "left", Row: 1, Column: 1},
		},
	})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}

	if _, err := env.svc.Bus.GetBus(ctx, "nope"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := env.svc.Bus.GetBus(ctx, "6f1c2a34-8a1e-4c1b-9a77-0d3a1f6f2b10"); !errors.Is(err, ErrBusNotFound) {
		t.Fatalf("expected ErrBusNotFound, got %v", err)
	}
}

func TestBusService_UpdateLayout(t *testing.T) {
	ctx := context.Background()

	t.Run("unchanged seat set", func(t *testing.T) {
		env := newTestEnv(t)
		busID := registerSleeper(t, env, 4)
		resp, err := env.svc.Bus.UpdateLayout(ctx, busID, &request.UpdateLayoutRequest{
			BusType:    string(entity.BusTypeSleeper),
			TotalSeats: 4,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Warning != "" || len(resp.Added) != 0 || len(resp.Removed) != 0 {
			t.Fatalf("unexpected change report %+v", resp)
		}
	})

	t.Run("refused without force", func(t *testing.T) {
		env := newTestEnv(t)
		busID := registerSleeper(t, env, 4)
		_, err := env.svc.Bus.UpdateLayout(ctx, busID, &request.UpdateLayoutRequest{
			BusType:    string(entity.BusTypeSleeper),
			TotalSeats: 6,
		})
		var change *LayoutChangeError
		if !errors.As(err, &change) {
			t.Fatalf("expected LayoutChangeError, got %v", err)
		}
		if !reflect.DeepEqual(change.Added, []string{"L3", "U3"}) || len(change.Removed) != 0 {
			t.Fatalf("unexpected diff %+v", change)
		}

		bus, _ := env.svc.Bus.GetBus(ctx, busID)
		if bus.TotalSeats != 4 {
			t.Fatalf("refused change was applied: %+v", bus)
		}
	})

	t.Run("forced change extends open trips", func(t *testing.T) {
		env := newTestEnv(t)
		busID := registerSleeper(t, env, 4)
		trip, err := env.svc.Trip.OpenTrip(ctx, &request.OpenTripRequest{
			BusID:       busID,
			DepartureAt: testEpoch.Add(24 * time.Hour),
		})
		if err != nil {
			t.Fatalf("open trip: %v", err)
		}
		if _, err := env.svc.Reservation.Acquire(ctx, trip.ID, []string{"L1"}, "tok-x", time.Minute); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		resp, err := env.svc.Bus.UpdateLayout(ctx, busID, &request.UpdateLayoutRequest{
			BusType:    string(entity.BusTypeSleeper),
			TotalSeats: 6,
			Force:      true,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Warning == "" || resp.Bus.TotalSeats != 6 {
			t.Fatalf("expected warning and new layout, got %+v", resp)
		}

		seatMap, err := env.svc.Trip.SeatMap(ctx, trip.ID, "tok-x")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(seatMap.States) != 6 {
			t.Fatalf("expected 6 seat states after extension, got %d", len(seatMap.States))
		}
		if st := env.state(t, trip.ID, "L1"); !st.HeldBy("tok-x") {
			t.Fatalf("existing hold disturbed by layout change: %+v", st)
		}
		if st := env.state(t, trip.ID, "U3"); st.Status != entity.SeatStatusAvailable {
			t.Fatalf("new seat not available: %+v", st)
		}
	})

	t.Run("forced shrink invalidates removed seats", func(t *testing.T) {
		env := newTestEnv(t)
		busID := registerSleeper(t, env, 4)
		trip, err := env.svc.Trip.OpenTrip(ctx, &request.OpenTripRequest{
			BusID:       busID,
			DepartureAt: testEpoch.Add(24 * time.Hour),
		})
		if err != nil {
			t.Fatalf("open trip: %v", err)
		}
		if _, err := env.svc.Reservation.Acquire(ctx, trip.ID, []string{"L2", "U1"}, "tok-x", time.Minute); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		resp, err := env.svc.Bus.UpdateLayout(ctx, busID, &request.UpdateLayoutRequest{
			BusType:    string(entity.BusTypeSleeper),
			TotalSeats: 2,
			Force:      true,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(resp.Removed, []string{"L2", "U2"}) || !strings.Contains(resp.Warning, "invalidated") {
			t.Fatalf("unexpected change report %+v", resp)
		}

		if _, err := env.svc.Reservation.Acquire(ctx, trip.ID, []string{"U2"}, "tok-y", time.Minute); !errors.Is(err, ErrUnknownSeat) {
			t.Fatalf("expected ErrUnknownSeat for removed seat, got %v", err)
		}
		if st := env.state(t, trip.ID, "U2"); st.Status != entity.SeatStatusAvailable {
			t.Fatalf("removed seat was taken: %+v", st)
		}
		if _, err := env.svc.Reservation.Renew(ctx, trip.ID, []string{"L2"}, "tok-x", time.Minute); !errors.Is(err, ErrUnknownSeat) {
			t.Fatalf("expected ErrUnknownSeat on renew, got %v", err)
		}

		// A hold taken before the shrink cannot be turned into a booking.
		_, err = env.svc.Booking.Commit(ctx, trip.ID, []string{"L2", "U1"}, "tok-x", passengersFor("L2", "U1"))
		if !errors.Is(err, ErrUnknownSeat) {
			t.Fatalf("expected ErrUnknownSeat on commit, got %v", err)
		}
		if st := env.state(t, trip.ID, "L2"); st.Status != entity.SeatStatusHeld {
			t.Fatalf("refused commit touched removed seat: %+v", st)
		}
		if st := env.state(t, trip.ID, "U1"); !st.HeldBy("tok-x") {
			t.Fatalf("refused commit touched surviving seat: %+v", st)
		}
		if len(env.bookings.bookings) != 0 {
			t.Fatalf("booking persisted for removed seat")
		}

		booking, err := env.svc.Booking.Commit(ctx, trip.ID, []string{"U1"}, "tok-x", passengersFor("U1"))
		if err != nil {
			t.Fatalf("expected surviving seat to book, got %v", err)
		}
		if !reflect.DeepEqual(booking.SeatIDs, []string{"U1"}) {
			t.Fatalf("unexpected booking %+v", booking)
		}

		// The holder can still let go of the stranded seat.
		released, err := env.svc.Reservation.Release(ctx, trip.ID, []string{"L2"}, "tok-x")
		if err != nil || !reflect.DeepEqual(released.SeatIDs, []string{"L2"}) {
			t.Fatalf("expected L2 released, got %+v %v", released, err)
		}

		seatMap, err := env.svc.Trip.SeatMap(ctx, trip.ID, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var ids []string
		for _, st := range seatMap.States {
			ids = append(ids, st.SeatID)
		}
		if !reflect.DeepEqual(ids, []string{"L1", "U1"}) {
			t.Fatalf("seat map lists %v, want the current layout", ids)
		}
	})
}

func TestTripService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	busID := registerSleeper(t, env, 4)

	trip, err := env.svc.Trip.OpenTrip(ctx, &request.OpenTripRequest{BusID: busID, DepartureAt: testEpoch.Add(time.Hour)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if trip.Status != entity.TripStatusOpen || trip.TotalSeats != 4 {
		t.Fatalf("unexpected trip %+v", trip)
	}

	if _, err := env.svc.Reservation.Acquire(ctx, trip.ID, []string{"U2"}, "tok-x", time.Minute); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	seatMap, err := env.svc.Trip.SeatMap(ctx, trip.ID, "tok-x")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if seatMap.Version != 1 || len(seatMap.Topology.Seats) != 4 {
		t.Fatalf("unexpected seat map %+v", seatMap)
	}
	for _, st := range seatMap.States {
		mine := st.SeatID == "U2"
		if st.HeldByYou != mine {
			t.Fatalf("seat %s held_by_you=%v", st.SeatID, st.HeldByYou)
		}
	}

	anonymous, err := env.svc.Trip.SeatMap(ctx, trip.ID, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, st := range anonymous.States {
		if st.HeldByYou {
			t.Fatalf("anonymous viewer marked as holder of %s", st.SeatID)
		}
	}

	t.Run("errors", func(t *testing.T) {
		if _, err := env.svc.Trip.OpenTrip(ctx, &request.OpenTripRequest{BusID: "6f1c2a34-8a1e-4c1b-9a77-0d3a1f6f2b10"}); !errors.Is(err, ErrBusNotFound) {
			t.Fatalf("expected ErrBusNotFound, got %v", err)
		}
		if _, err := env.svc.Trip.SeatMap(ctx, "bogus", ""); !errors.Is(err, ErrTripNotFound) {
			t.Fatalf("expected ErrTripNotFound, got %v", err)
		}
		if _, err := env.svc.Trip.Topology(ctx, "6f1c2a34-8a1e-4c1b-9a77-0d3a1f6f2b10"); !errors.Is(err, ErrTripNotFound) {
			t.Fatalf("expected ErrTripNotFound, got %v", err)
		}
	})
}
