package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bus-booking/internal/data/entity"
	"bus-booking/pkg/clock"

	"github.com/google/uuid"
)

var suiteEpoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type seatStoreFactory func(t *testing.T, clk clock.Clock) SeatStateRepository

type recordingSink struct {
	mu      sync.Mutex
	events  []entity.SeatDiffEvent
	resyncs chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{resyncs: make(chan struct{}, 16)}
}

func (s *recordingSink) Publish(ev entity.SeatDiffEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) Resync() {
	select {
	case s.resyncs <- struct{}{}:
	default:
	}
}

func (s *recordingSink) forTrip(tripID string) []entity.SeatDiffEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.SeatDiffEvent
	for _, ev := range s.events {
		if ev.TripID == tripID {
			out = append(out, ev)
		}
	}
	return out
}

func (s *recordingSink) waitFor(t *testing.T, tripID string, n int) []entity.SeatDiffEvent {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if evs := s.forTrip(tripID); len(evs) >= n {
			return evs
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d events for trip %s, got %d", n, tripID, len(s.forTrip(tripID)))
	return nil
}

func newTripID() string {
	return "trip-" + uuid.NewString()
}

// runSeatStoreSuite checks behaviour every seat store backend must share.
// waitStream blocks until sink is attached to the store's diff stream.
func runSeatStoreSuite(t *testing.T, newStore seatStoreFactory, waitStream func(t *testing.T, sink *recordingSink)) {
	ctx := context.Background()

	t.Run("OpenTrip is idempotent and keeps order", func(t *testing.T) {
		store := newStore(t, clock.NewFake(suiteEpoch))
		trip := newTripID()

		if err := store.OpenTrip(ctx, trip, []string{"L1", "L2", "L3"}); err != nil {
			t.Fatalf("open: %v", err)
		}
		if err := store.OpenTrip(ctx, trip, []string{"L3", "L4"}); err != nil {
			t.Fatalf("reopen: %v", err)
		}

		snap, err := store.Snapshot(ctx, trip)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if snap.Version != 0 {
			t.Fatalf("expected version 0, got %d", snap.Version)
		}
		want := []string{"L1", "L2", "L3", "L4"}
		if len(snap.States) != len(want) {
			t.Fatalf("expected %d seats, got %d", len(want), len(snap.States))
		}
		for i, st := range snap.States {
			if st.SeatID != want[i] {
				t.Fatalf("seat %d: expected %s, got %s", i, want[i], st.SeatID)
			}
			if st.Status != entity.SeatStatusAvailable {
				t.Fatalf("seat %s: expected available, got %s", st.SeatID, st.Status)
			}
		}
	})

	t.Run("unknown trip and seat", func(t *testing.T) {
		clk := clock.NewFake(suiteEpoch)
		store := newStore(t, clk)
		trip := newTripID()
		exp := clk.Now().Add(time.Minute)

		if _, err := store.Snapshot(ctx, trip); !errors.Is(err, ErrTripNotOpen) {
			t.Fatalf("expected ErrTripNotOpen, got %v", err)
		}
		_, err := store.CompareAndSwap(ctx, trip, "L1",
			entity.SeatCondition{Status: entity.SeatStatusAvailable}, entity.HeldUntil("tok", exp))
		if !errors.Is(err, ErrTripNotOpen) {
			t.Fatalf("expected ErrTripNotOpen, got %v", err)
		}

		if err := store.OpenTrip(ctx, trip, []string{"L1"}); err != nil {
			t.Fatalf("open: %v", err)
		}
		_, err = store.CompareAndSwap(ctx, trip, "Z9",
			entity.SeatCondition{Status: entity.SeatStatusAvailable}, entity.HeldUntil("tok", exp))
		if !errors.Is(err, ErrSeatNotFound) {
			t.Fatalf("expected ErrSeatNotFound, got %v", err)
		}
	})

	t.Run("swap applies only when condition matches", func(t *testing.T) {
		clk := clock.NewFake(suiteEpoch)
		store := newStore(t, clk)
		trip := newTripID()
		if err := store.OpenTrip(ctx, trip, []string{"L1"}); err != nil {
			t.Fatalf("open: %v", err)
		}
		exp := clk.Now().Add(time.Minute)

		ok, err := store.CompareAndSwap(ctx, trip, "L1",
			entity.SeatCondition{Status: entity.SeatStatusAvailable}, entity.HeldUntil("alice", exp))
		if err != nil || !ok {
			t.Fatalf("expected hold to apply, got ok=%v err=%v", ok, err)
		}

		ok, err = store.CompareAndSwap(ctx, trip, "L1",
			entity.SeatCondition{Status: entity.SeatStatusAvailable}, entity.HeldUntil("bob", exp))
		if err != nil || ok {
			t.Fatalf("expected mismatch, got ok=%v err=%v", ok, err)
		}

		ok, err = store.CompareAndSwap(ctx, trip, "L1",
			entity.SeatCondition{Status: entity.SeatStatusHeld, HolderToken: "bob"}, entity.Available())
		if err != nil || ok {
			t.Fatalf("expected holder mismatch, got ok=%v err=%v", ok, err)
		}

		other := exp.Add(time.Second)
		ok, err = store.CompareAndSwap(ctx, trip, "L1",
			entity.SeatCondition{Status: entity.SeatStatusHeld, HolderToken: "alice", HoldExpiresAt: &other}, entity.Available())
		if err != nil || ok {
			t.Fatalf("expected expiry mismatch, got ok=%v err=%v", ok, err)
		}

		late := exp
		ok, err = store.CompareAndSwap(ctx, trip, "L1",
			entity.SeatCondition{Status: entity.SeatStatusHeld, HolderToken: "alice", LiveAt: &late}, entity.BookedAs("b-1"))
		if err != nil || ok {
			t.Fatalf("expected lapsed hold to mismatch, got ok=%v err=%v", ok, err)
		}

		now := clk.Now()
		ok, err = store.CompareAndSwap(ctx, trip, "L1",
			entity.SeatCondition{Status: entity.SeatStatusHeld, HolderToken: "alice", LiveAt: &now}, entity.BookedAs("b-1"))
		if err != nil || !ok {
			t.Fatalf("expected booking to apply, got ok=%v err=%v", ok, err)
		}

		snap, err := store.Snapshot(ctx, trip)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if snap.Version != 2 {
			t.Fatalf("expected version 2, got %d", snap.Version)
		}
		st := snap.States[0]
		if st.Status != entity.SeatStatusBooked || st.BookingID != "b-1" || st.HolderToken != "" || st.HoldExpiresAt != nil {
			t.Fatalf("unexpected state: %+v", st)
		}
	})

	t.Run("hold expiry round-trips exactly", func(t *testing.T) {
		clk := clock.NewFake(suiteEpoch)
		store := newStore(t, clk)
		trip := newTripID()
		if err := store.OpenTrip(ctx, trip, []string{"L1"}); err != nil {
			t.Fatalf("open: %v", err)
		}
		exp := clk.Now().Add(90 * time.Second).Add(123 * time.Millisecond)

		if ok, err := store.CompareAndSwap(ctx, trip, "L1",
			entity.SeatCondition{Status: entity.SeatStatusAvailable}, entity.HeldUntil("alice", exp)); err != nil || !ok {
			t.Fatalf("hold: ok=%v err=%v", ok, err)
		}

		snap, err := store.Snapshot(ctx, trip)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		got := snap.States[0].HoldExpiresAt
		if got == nil || !got.Equal(exp) {
			t.Fatalf("expected expiry %v, got %v", exp, got)
		}

		ok, err := store.CompareAndSwap(ctx, trip, "L1",
			entity.SeatCondition{Status: entity.SeatStatusHeld, HolderToken: "alice", HoldExpiresAt: got}, entity.Available())
		if err != nil || !ok {
			t.Fatalf("expected exact-expiry release, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("illegal transitions are rejected", func(t *testing.T) {
		clk := clock.NewFake(suiteEpoch)
		store := newStore(t, clk)
		trip := newTripID()
		if err := store.OpenTrip(ctx, trip, []string{"L1"}); err != nil {
			t.Fatalf("open: %v", err)
		}

		_, err := store.CompareAndSwap(ctx, trip, "L1",
			entity.SeatCondition{Status: entity.SeatStatusAvailable}, entity.BookedAs("b-1"))
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}

		_, err = store.CompareAndSwap(ctx, trip, "L1",
			entity.SeatCondition{Status: entity.SeatStatusBooked}, entity.Available())
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition for anonymous unbook, got %v", err)
		}

		_, err = store.CompareAndSwap(ctx, trip, "L1",
			entity.SeatCondition{Status: entity.SeatStatusAvailable}, entity.HeldUntil("alice", clk.Now()))
		if !errors.Is(err, entity.ErrInvalidSeatUpdate) {
			t.Fatalf("expected ErrInvalidSeatUpdate for elapsed hold, got %v", err)
		}

		snap, err := store.Snapshot(ctx, trip)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if snap.Version != 0 || snap.States[0].Status != entity.SeatStatusAvailable {
			t.Fatalf("expected untouched seat, got version=%d state=%+v", snap.Version, snap.States[0])
		}
	})

	t.Run("concurrent holds on one seat admit a single winner", func(t *testing.T) {
		clk := clock.NewFake(suiteEpoch)
		store := newStore(t, clk)
		trip := newTripID()
		if err := store.OpenTrip(ctx, trip, []string{"L1"}); err != nil {
			t.Fatalf("open: %v", err)
		}
		exp := clk.Now().Add(time.Minute)

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := store.CompareAndSwap(ctx, trip, "L1",
					entity.SeatCondition{Status: entity.SeatStatusAvailable},
					entity.HeldUntil(uuid.NewString(), exp))
				if err != nil {
					t.Errorf("swap %d: %v", i, err)
					return
				}
				if ok {
					atomic.AddInt32(&wins, 1)
				}
			}(i)
		}
		wg.Wait()

		if wins != 1 {
			t.Fatalf("expected exactly one winner, got %d", wins)
		}
	})

	t.Run("TripsWithHolds follows held seats", func(t *testing.T) {
		clk := clock.NewFake(suiteEpoch)
		store := newStore(t, clk)
		trip := newTripID()
		if err := store.OpenTrip(ctx, trip, []string{"L1"}); err != nil {
			t.Fatalf("open: %v", err)
		}

		contains := func() bool {
			ids, err := store.TripsWithHolds(ctx)
			if err != nil {
				t.Fatalf("trips with holds: %v", err)
			}
			for _, id := range ids {
				if id == trip {
					return true
				}
			}
			return false
		}

		if contains() {
			t.Fatalf("trip without holds listed")
		}
		if ok, err := store.CompareAndSwap(ctx, trip, "L1",
			entity.SeatCondition{Status: entity.SeatStatusAvailable}, entity.HeldUntil("alice", clk.Now().Add(time.Minute))); err != nil || !ok {
			t.Fatalf("hold: ok=%v err=%v", ok, err)
		}
		if !contains() {
			t.Fatalf("trip with hold not listed")
		}
		if ok, err := store.CompareAndSwap(ctx, trip, "L1",
			entity.SeatCondition{Status: entity.SeatStatusHeld, HolderToken: "alice"}, entity.Available()); err != nil || !ok {
			t.Fatalf("release: ok=%v err=%v", ok, err)
		}
		if contains() {
			t.Fatalf("released trip still listed")
		}
	})

	t.Run("diffs stream in apply order", func(t *testing.T) {
		clk := clock.NewFake(suiteEpoch)
		store := newStore(t, clk)
		trip := newTripID()
		if err := store.OpenTrip(ctx, trip, []string{"L1", "L2"}); err != nil {
			t.Fatalf("open: %v", err)
		}

		streamCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		sink := newRecordingSink()
		done := make(chan error, 1)
		go func() { done <- store.StreamDiffs(streamCtx, sink) }()
		waitStream(t, sink)

		exp := clk.Now().Add(time.Minute)
		now := clk.Now()
		swaps := []struct {
			seat string
			cond entity.SeatCondition
			next entity.SeatUpdate
		}{
			{"L1", entity.SeatCondition{Status: entity.SeatStatusAvailable}, entity.HeldUntil("alice", exp)},
			{"L2", entity.SeatCondition{Status: entity.SeatStatusAvailable}, entity.HeldUntil("alice", exp)},
			{"L1", entity.SeatCondition{Status: entity.SeatStatusHeld, HolderToken: "alice", LiveAt: &now}, entity.BookedAs("b-1")},
		}
		for _, s := range swaps {
			if ok, err := store.CompareAndSwap(ctx, trip, s.seat, s.cond, s.next); err != nil || !ok {
				t.Fatalf("swap %s: ok=%v err=%v", s.seat, ok, err)
			}
		}

		evs := sink.waitFor(t, trip, 3)
		for i, ev := range evs {
			if ev.Seq != int64(i+1) {
				t.Fatalf("event %d: expected seq %d, got %d", i, i+1, ev.Seq)
			}
			if ev.SeatID != swaps[i].seat || ev.NewStatus != swaps[i].next.Status || ev.OldStatus != swaps[i].cond.Status {
				t.Fatalf("event %d mismatch: %+v", i, ev)
			}
		}
		if evs[0].HolderToken != "alice" {
			t.Fatalf("expected holder token on hold diff, got %q", evs[0].HolderToken)
		}

		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("expected context.Canceled, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("stream did not stop after cancel")
		}
	})
}

// waitResync is the readiness signal of stores that Resync once attached.
func waitResync(t *testing.T, sink *recordingSink) {
	t.Helper()
	select {
	case <-sink.resyncs:
	case <-time.After(5 * time.Second):
		t.Fatalf("diff stream never attached")
	}
}
