package repository

import (
	"context"
	"testing"
	"time"

	"bus-booking/internal/data/entity"
	"bus-booking/pkg/clock"

	"go.uber.org/zap"
)

func TestMemorySeatStateRepository(t *testing.T) {
	var current *memorySeatStateRepository
	newStore := func(t *testing.T, clk clock.Clock) SeatStateRepository {
		current = NewMemorySeatStateRepository(clk, zap.NewNop()).(*memorySeatStateRepository)
		return current
	}
	waitSink := func(t *testing.T, sink *recordingSink) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			current.sinkMu.RLock()
			n := len(current.sinks)
			current.sinkMu.RUnlock()
			if n > 0 {
				return
			}
			time.Sleep(time.Millisecond)
		}
		t.Fatalf("sink never registered")
	}

	runSeatStoreSuite(t, newStore, waitSink)
}

func TestMemorySeatStateRepository_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(suiteEpoch)
	store := NewMemorySeatStateRepository(clk, zap.NewNop())
	if err := store.OpenTrip(ctx, "t1", []string{"L1"}); err != nil {
		t.Fatalf("open: %v", err)
	}
	exp := clk.Now().Add(time.Minute)
	if ok, err := store.CompareAndSwap(ctx, "t1", "L1",
		entity.SeatCondition{Status: entity.SeatStatusAvailable}, entity.HeldUntil("alice", exp)); err != nil || !ok {
		t.Fatalf("hold: ok=%v err=%v", ok, err)
	}

	snap, err := store.Snapshot(ctx, "t1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	snap.States[0].Status = entity.SeatStatusBooked
	*snap.States[0].HoldExpiresAt = exp.Add(time.Hour)

	again, err := store.Snapshot(ctx, "t1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	st := again.States[0]
	if st.Status != entity.SeatStatusHeld || !st.HoldExpiresAt.Equal(exp) {
		t.Fatalf("store state leaked through snapshot: %+v", st)
	}
}

func TestMemorySeatStateRepository_CancelledContext(t *testing.T) {
	clk := clock.NewFake(suiteEpoch)
	store := NewMemorySeatStateRepository(clk, zap.NewNop())
	if err := store.OpenTrip(context.Background(), "t1", []string{"L1"}); err != nil {
		t.Fatalf("open: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, err := store.CompareAndSwap(ctx, "t1", "L1",
		entity.SeatCondition{Status: entity.SeatStatusAvailable}, entity.HeldUntil("alice", clk.Now().Add(time.Minute)))
	if ok || err == nil {
		t.Fatalf("expected cancelled swap to fail, got ok=%v err=%v", ok, err)
	}
}
