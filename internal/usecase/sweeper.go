package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"bus-booking/internal/data/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExpirySweeper periodically frees lapsed holds on every trip that has any.
type ExpirySweeper struct {
	store       repository.SeatStateRepository
	reservation ReservationService
	interval    time.Duration
	concurrency int
	log         *zap.Logger
}

func NewExpirySweeper(store repository.SeatStateRepository, reservation ReservationService, interval time.Duration, concurrency int, log *zap.Logger) *ExpirySweeper {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ExpirySweeper{
		store:       store,
		reservation: reservation,
		interval:    interval,
		concurrency: concurrency,
		log:         log.With(zap.String("service", "expiry_sweeper")),
	}
}

// Run sweeps on every tick until ctx is done.
func (w *ExpirySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("Expiry sweeper started",
		zap.Duration("interval", w.interval),
		zap.Int("concurrency", w.concurrency),
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				w.log.Error("Expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce sweeps all trips with holds once and returns the number of holds
// freed. A failing trip does not stop the others.
func (w *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	trips, err := w.store.TripsWithHolds(ctx)
	if err != nil {
		return 0, err
	}

	var total, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, tripID := range trips {
		g.Go(func() error {
			n, err := w.reservation.SweepExpired(gctx, tripID)
			total.Add(int64(n))
			if err != nil && !errors.Is(err, ErrTripNotFound) {
				failed.Add(1)
				w.log.Warn("Trip sweep failed", zap.Error(err), zap.String("trip_id", tripID))
			}
			return nil
		})
	}
	_ = g.Wait()

	if failed.Load() > 0 {
		return int(total.Load()), errors.New("one or more trip sweeps failed")
	}
	return int(total.Load()), nil
}
