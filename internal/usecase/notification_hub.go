package usecase

import (
	"context"
	"errors"
	"sync"

	"bus-booking/internal/data/entity"
	"bus-booking/internal/data/repository"

	"go.uber.org/zap"
)

var (
	ErrSubscriberLagging  = errors.New("subscriber fell too far behind")
	ErrStreamResync       = errors.New("diff stream interrupted, resubscribe")
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// NotificationHub fans the seat store's diff stream out to per-trip
// subscribers. Publish never blocks: each subscriber owns an unbounded queue
// drained by its own goroutine, and a subscriber whose queue passes
// maxPending is disconnected instead of slowing the writer.
type NotificationHub struct {
	store      repository.SeatStateRepository
	maxPending int
	log        *zap.Logger

	mu    sync.RWMutex
	trips map[string]map[*Subscription]struct{}
}

func NewNotificationHub(store repository.SeatStateRepository, maxPending int, log *zap.Logger) *NotificationHub {
	if maxPending <= 0 {
		maxPending = 1024
	}
	return &NotificationHub{
		store:      store,
		maxPending: maxPending,
		log:        log.With(zap.String("service", "notification_hub")),
		trips:      make(map[string]map[*Subscription]struct{}),
	}
}

// Run feeds the hub from the store until ctx is done. Subscriptions still
// open afterwards are closed.
func (h *NotificationHub) Run(ctx context.Context) error {
	err := h.store.StreamDiffs(ctx, h)
	h.closeAll(ErrSubscriptionClosed)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Subscribe registers for the trip's diffs, then snapshots it. Diffs already
// reflected in the snapshot are skipped, so the snapshot followed by Events
// has neither gaps nor repeats.
func (h *NotificationHub) Subscribe(ctx context.Context, tripID string) (*Subscription, error) {
	sub := &Subscription{
		tripID: tripID,
		events: make(chan entity.SeatDiffEvent),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		max:    h.maxPending,
		hub:    h,
	}

	h.mu.Lock()
	subs, ok := h.trips[tripID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.trips[tripID] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	snap, err := h.store.Snapshot(ctx, tripID)
	if err != nil {
		h.unregister(sub)
		return nil, mapStoreError(h.log, err, tripID, "")
	}
	sub.snapshot = snap
	sub.floor = snap.Version

	go sub.pump()
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	h.log.Debug("Subscribed", zap.String("trip_id", tripID), zap.Int64("version", snap.Version))
	return sub, nil
}

// Publish implements repository.DiffSink.
func (h *NotificationHub) Publish(ev entity.SeatDiffEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.trips[ev.TripID] {
		sub.push(ev)
	}
}

// Resync implements repository.DiffSink. Every subscriber is closed with
// ErrStreamResync and must take a fresh snapshot.
func (h *NotificationHub) Resync() {
	if n := h.closeAll(ErrStreamResync); n > 0 {
		h.log.Warn("Diff stream resync, subscribers dropped", zap.Int("subscribers", n))
	}
}

// Subscribers reports the live subscriptions for a trip.
func (h *NotificationHub) Subscribers(tripID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.trips[tripID])
}

func (h *NotificationHub) closeAll(reason error) int {
	h.mu.Lock()
	trips := h.trips
	h.trips = make(map[string]map[*Subscription]struct{})
	h.mu.Unlock()

	n := 0
	for _, subs := range trips {
		for sub := range subs {
			sub.closeWith(reason)
			n++
		}
	}
	return n
}

func (h *NotificationHub) unregister(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.trips[sub.tripID]
	if subs == nil {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.trips, sub.tripID)
	}
}

// Subscription is one reader of a trip's diff stream.
type Subscription struct {
	tripID   string
	snapshot *entity.TripSnapshot
	// floor is the last seq handed to the reader; only pump touches it.
	floor int64
	max   int
	hub   *NotificationHub

	events chan entity.SeatDiffEvent
	wake   chan struct{}
	done   chan struct{}

	mu     sync.Mutex
	queue  []entity.SeatDiffEvent
	closed bool
	err    error
}

func (s *Subscription) TripID() string { return s.tripID }

// Snapshot is the trip state the event stream continues from.
func (s *Subscription) Snapshot() *entity.TripSnapshot { return s.snapshot }

// Events yields diffs in seq order and is closed when the subscription ends.
func (s *Subscription) Events() <-chan entity.SeatDiffEvent { return s.events }

// Err tells why the subscription ended; nil while it is open.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) Close() {
	s.closeWith(ErrSubscriptionClosed)
}

func (s *Subscription) closeWith(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = reason
	s.queue = nil
	close(s.done)
}

// push runs under the hub's read lock and must not block.
func (s *Subscription) push(ev entity.SeatDiffEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.max {
		s.mu.Unlock()
		s.closeWith(ErrSubscriberLagging)
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.events)
	defer s.hub.unregister(s)

	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range batch {
			if ev.Seq <= s.floor {
				continue
			}
			if ev.Seq != s.floor+1 {
				// A diff went missing upstream; the reader's view is stale.
				s.closeWith(ErrStreamResync)
				return
			}
			select {
			case s.events <- ev:
				s.floor = ev.Seq
			case <-s.done:
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}
