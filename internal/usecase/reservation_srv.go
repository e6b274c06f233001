package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"bus-booking/internal/data/entity"
	"bus-booking/internal/data/repository"
	"bus-booking/internal/dto/response"
	"bus-booking/pkg/clock"
	"bus-booking/pkg/utils"

	"go.uber.org/zap"
)

const (
	minHoldTTL = time.Second
	// A seat can flip between reads and swaps; give up after this many rounds.
	maxSeatAttempts = 3
)

type ReservationService interface {
	// Acquire holds every seat for holderToken or none of them.
	Acquire(ctx context.Context, tripID string, seatIDs []string, holderToken string, ttl time.Duration) (*response.HoldResponse, error)
	// Renew extends live holds of holderToken. It is not all-or-nothing: when
	// it fails, the listed seats that were still live keep their new expiry,
	// while the token's other holds are left alone.
	Renew(ctx context.Context, tripID string, seatIDs []string, holderToken string, ttl time.Duration) (*response.HoldResponse, error)
	// Release is idempotent; seats not held by holderToken are skipped.
	Release(ctx context.Context, tripID string, seatIDs []string, holderToken string) (*response.ReleaseResponse, error)
	ReleaseAll(ctx context.Context, tripID, holderToken string) (*response.ReleaseResponse, error)
	SweepExpired(ctx context.Context, tripID string) (int, error)
}

type reservationService struct {
	store   repository.SeatStateRepository
	catalog SeatCatalog
	config  utils.HoldConfig
	clock   clock.Clock
	log     *zap.Logger
}

func NewReservationService(store repository.SeatStateRepository, catalog SeatCatalog, config utils.HoldConfig, clk clock.Clock, log *zap.Logger) ReservationService {
	return &reservationService{
		store:   store,
		catalog: catalog,
		config:  config,
		clock:   clk,
		log:     log.With(zap.String("service", "reservation")),
	}
}

type seatOutcome int

const (
	seatTaken seatOutcome = iota
	seatOwned
	seatConflict
)

func (s *reservationService) Acquire(ctx context.Context, tripID string, seatIDs []string, holderToken string, ttl time.Duration) (*response.HoldResponse, error) {
	seats, err := normalizeSeatIDs(seatIDs)
	if err != nil {
		return nil, err
	}
	if holderToken == "" {
		return nil, fmt.Errorf("%w: holder token is required", ErrInvalidRequest)
	}
	ttl, err = s.holdTTL(ttl)
	if err != nil {
		return nil, err
	}
	if err := checkSeats(ctx, s.catalog, tripID, seats); err != nil {
		return nil, err
	}

	if _, err := s.SweepExpired(ctx, tripID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(ttl).Truncate(time.Millisecond)

	var taken []string
	for i, seatID := range seats {
		outcome, status, err := s.takeSeat(ctx, tripID, seatID, holderToken, expiresAt)
		if err != nil {
			s.rollback(ctx, tripID, holderToken, expiresAt, taken)
			return nil, err
		}

		switch outcome {
		case seatTaken:
			taken = append(taken, seatID)
		case seatOwned:
		case seatConflict:
			s.rollback(ctx, tripID, holderToken, expiresAt, taken)
			conflicts := append([]SeatConflict{{SeatID: seatID, Status: status}},
				s.pendingConflicts(ctx, tripID, seats[i+1:], holderToken)...)

			s.log.Debug("Acquire lost to contention",
				zap.String("trip_id", tripID),
				zap.Strings("seat_ids", seats),
				zap.Int("conflicts", len(conflicts)),
			)
			return nil, &SeatsUnavailableError{Conflicts: conflicts}
		}
	}

	s.alignHolds(ctx, tripID, holderToken, expiresAt)

	s.log.Debug("Seats held",
		zap.String("trip_id", tripID),
		zap.Strings("seat_ids", seats),
		zap.Time("expires_at", expiresAt),
	)
	return &response.HoldResponse{
		TripID:      tripID,
		HolderToken: holderToken,
		SeatIDs:     seats,
		ExpiresAt:   expiresAt,
	}, nil
}

// takeSeat moves one seat to a hold of token. A seat already live-held by the
// token counts as owned; a lapsed hold of anyone is swept and retried.
func (s *reservationService) takeSeat(ctx context.Context, tripID, seatID, token string, expiresAt time.Time) (seatOutcome, entity.SeatStatus, error) {
	available := entity.SeatCondition{Status: entity.SeatStatusAvailable}
	last := entity.SeatStatusHeld

	for attempt := 0; attempt < maxSeatAttempts; attempt++ {
		ok, err := s.store.CompareAndSwap(ctx, tripID, seatID, available, entity.HeldUntil(token, expiresAt))
		if err != nil {
			return 0, "", s.storeError(err, tripID, seatID)
		}
		if ok {
			return seatTaken, entity.SeatStatusHeld, nil
		}

		st, err := s.seat(ctx, tripID, seatID)
		if err != nil {
			return 0, "", err
		}
		last = st.Status
		now := s.clock.Now()

		switch {
		case st.Status == entity.SeatStatusAvailable:
			// Freed between the swap and the read.
		case st.HeldBy(token) && !st.Expired(now):
			return seatOwned, st.Status, nil
		case st.Expired(now):
			if _, err := s.expire(ctx, st); err != nil {
				return 0, "", err
			}
		default:
			return seatConflict, st.Status, nil
		}
	}
	// Seen available on every read: it kept being taken by someone else.
	if last == entity.SeatStatusAvailable {
		last = entity.SeatStatusHeld
	}
	return seatConflict, last, nil
}

// pendingConflicts reports which of the not yet attempted seats would also
// have failed, so the caller learns every lost seat at once.
func (s *reservationService) pendingConflicts(ctx context.Context, tripID string, seats []string, token string) []SeatConflict {
	if len(seats) == 0 {
		return nil
	}
	snap, err := s.store.Snapshot(ctx, tripID)
	if err != nil {
		s.log.Warn("Failed to inspect remaining seats", zap.Error(err), zap.String("trip_id", tripID))
		return nil
	}

	idx := snap.Index()
	now := s.clock.Now()
	var out []SeatConflict
	for _, id := range seats {
		st, ok := idx[id]
		if !ok || st.Status == entity.SeatStatusAvailable || st.Expired(now) || st.HeldBy(token) {
			continue
		}
		out = append(out, SeatConflict{SeatID: id, Status: st.Status})
	}
	return out
}

// rollback returns seats held by this call to available. The swap names the
// exact expiry written by the call so a newer hold is never undone.
func (s *reservationService) rollback(ctx context.Context, tripID, token string, expiresAt time.Time, seats []string) {
	ctx = context.WithoutCancel(ctx)
	cond := entity.SeatCondition{Status: entity.SeatStatusHeld, HolderToken: token, HoldExpiresAt: &expiresAt}
	for _, seatID := range seats {
		if _, err := s.store.CompareAndSwap(ctx, tripID, seatID, cond, entity.Available()); err != nil {
			s.log.Error("Failed to roll back hold",
				zap.Error(err),
				zap.String("trip_id", tripID),
				zap.String("seat_id", seatID),
			)
		}
	}
}

// alignHolds moves every live hold of token on the trip to expiresAt.
func (s *reservationService) alignHolds(ctx context.Context, tripID, token string, expiresAt time.Time) {
	snap, err := s.store.Snapshot(ctx, tripID)
	if err != nil {
		s.log.Warn("Failed to align hold expiry", zap.Error(err), zap.String("trip_id", tripID))
		return
	}

	now := s.clock.Now()
	for _, st := range snap.States {
		if !st.HeldBy(token) || st.Expired(now) || st.HoldExpiresAt.Equal(expiresAt) {
			continue
		}
		cond := entity.SeatCondition{Status: entity.SeatStatusHeld, HolderToken: token, HoldExpiresAt: st.HoldExpiresAt}
		if _, err := s.store.CompareAndSwap(ctx, tripID, st.SeatID, cond, entity.HeldUntil(token, expiresAt)); err != nil {
			s.log.Warn("Failed to align hold expiry",
				zap.Error(err),
				zap.String("trip_id", tripID),
				zap.String("seat_id", st.SeatID),
			)
		}
	}
}

func (s *reservationService) Renew(ctx context.Context, tripID string, seatIDs []string, holderToken string, ttl time.Duration) (*response.HoldResponse, error) {
	seats, err := normalizeSeatIDs(seatIDs)
	if err != nil {
		return nil, err
	}
	if holderToken == "" {
		return nil, fmt.Errorf("%w: holder token is required", ErrInvalidRequest)
	}
	ttl, err = s.holdTTL(ttl)
	if err != nil {
		return nil, err
	}
	if err := checkSeats(ctx, s.catalog, tripID, seats); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(ttl).Truncate(time.Millisecond)
	live := entity.SeatCondition{Status: entity.SeatStatusHeld, HolderToken: holderToken, LiveAt: &now}

	var notHolder, expired []string
	for _, seatID := range seats {
		ok, err := s.store.CompareAndSwap(ctx, tripID, seatID, live, entity.HeldUntil(holderToken, expiresAt))
		if err != nil {
			return nil, s.storeError(err, tripID, seatID)
		}
		if ok {
			continue
		}

		st, err := s.seat(ctx, tripID, seatID)
		if err != nil {
			return nil, err
		}
		switch {
		case st.Status == entity.SeatStatusBooked,
			st.Status == entity.SeatStatusHeld && st.HolderToken != holderToken:
			notHolder = append(notHolder, seatID)
		default:
			expired = append(expired, seatID)
		}
	}

	if len(notHolder) > 0 {
		s.log.Debug("Renew refused, not holder", zap.String("trip_id", tripID), zap.Strings("seat_ids", notHolder))
		return nil, &NotHolderError{SeatIDs: notHolder}
	}
	if len(expired) > 0 {
		s.log.Debug("Renew refused, hold expired", zap.String("trip_id", tripID), zap.Strings("seat_ids", expired))
		return nil, &HoldExpiredError{SeatIDs: expired}
	}

	s.alignHolds(ctx, tripID, holderToken, expiresAt)

	return &response.HoldResponse{
		TripID:      tripID,
		HolderToken: holderToken,
		SeatIDs:     seats,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *reservationService) Release(ctx context.Context, tripID string, seatIDs []string, holderToken string) (*response.ReleaseResponse, error) {
	seats, err := normalizeSeatIDs(seatIDs)
	if err != nil {
		return nil, err
	}
	if holderToken == "" {
		return nil, fmt.Errorf("%w: holder token is required", ErrInvalidRequest)
	}

	owned := entity.SeatCondition{Status: entity.SeatStatusHeld, HolderToken: holderToken}
	released := make([]string, 0, len(seats))
	for _, seatID := range seats {
		ok, err := s.store.CompareAndSwap(ctx, tripID, seatID, owned, entity.Available())
		if err != nil {
			return nil, s.storeError(err, tripID, seatID)
		}
		if ok {
			released = append(released, seatID)
		}
	}

	if len(released) > 0 {
		s.log.Debug("Seats released", zap.String("trip_id", tripID), zap.Strings("seat_ids", released))
	}
	return &response.ReleaseResponse{TripID: tripID, SeatIDs: released}, nil
}

func (s *reservationService) ReleaseAll(ctx context.Context, tripID, holderToken string) (*response.ReleaseResponse, error) {
	if holderToken == "" {
		return nil, fmt.Errorf("%w: holder token is required", ErrInvalidRequest)
	}
	snap, err := s.store.Snapshot(ctx, tripID)
	if err != nil {
		return nil, s.storeError(err, tripID, "")
	}

	var seats []string
	for _, st := range snap.States {
		if st.HeldBy(holderToken) {
			seats = append(seats, st.SeatID)
		}
	}
	if len(seats) == 0 {
		return &response.ReleaseResponse{TripID: tripID, SeatIDs: []string{}}, nil
	}
	return s.Release(ctx, tripID, seats, holderToken)
}

// SweepExpired frees every lapsed hold on the trip. Concurrent sweeps are
// safe: each release names the exact hold it observed.
func (s *reservationService) SweepExpired(ctx context.Context, tripID string) (int, error) {
	snap, err := s.store.Snapshot(ctx, tripID)
	if err != nil {
		return 0, s.storeError(err, tripID, "")
	}

	now := s.clock.Now()
	swept := 0
	var errs []error
	for _, st := range snap.States {
		if !st.Expired(now) {
			continue
		}
		ok, err := s.expire(ctx, st)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			swept++
		}
	}

	if swept > 0 {
		s.log.Info("Expired holds swept", zap.String("trip_id", tripID), zap.Int("count", swept))
	}
	return swept, errors.Join(errs...)
}

func (s *reservationService) expire(ctx context.Context, st *entity.SeatState) (bool, error) {
	cond := entity.SeatCondition{
		Status:        entity.SeatStatusHeld,
		HolderToken:   st.HolderToken,
		HoldExpiresAt: st.HoldExpiresAt,
	}
	ok, err := s.store.CompareAndSwap(ctx, st.TripID, st.SeatID, cond, entity.Available())
	if err != nil {
		return false, s.storeError(err, st.TripID, st.SeatID)
	}
	return ok, nil
}

func (s *reservationService) seat(ctx context.Context, tripID, seatID string) (*entity.SeatState, error) {
	snap, err := s.store.Snapshot(ctx, tripID)
	if err != nil {
		return nil, s.storeError(err, tripID, seatID)
	}
	st, ok := snap.Index()[seatID]
	if !ok {
		return nil, fmt.Errorf("seat %s on trip %s: %w", seatID, tripID, ErrUnknownSeat)
	}
	return st, nil
}

func (s *reservationService) holdTTL(ttl time.Duration) (time.Duration, error) {
	switch {
	case ttl == 0:
		return s.config.DefaultTTL, nil
	case ttl < minHoldTTL:
		return 0, fmt.Errorf("%w: ttl must be at least %s", ErrInvalidRequest, minHoldTTL)
	case s.config.MaxTTL > 0 && ttl > s.config.MaxTTL:
		return s.config.MaxTTL, nil
	}
	return ttl, nil
}

func (s *reservationService) storeError(err error, tripID, seatID string) error {
	return mapStoreError(s.log, err, tripID, seatID)
}

func mapStoreError(log *zap.Logger, err error, tripID, seatID string) error {
	switch {
	case errors.Is(err, repository.ErrTripNotOpen):
		return fmt.Errorf("trip %s: %w", tripID, ErrTripNotFound)
	case errors.Is(err, repository.ErrSeatNotFound):
		return fmt.Errorf("seat %s on trip %s: %w", seatID, tripID, ErrUnknownSeat)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	log.Error("Seat store failure",
		zap.Error(err),
		zap.String("trip_id", tripID),
		zap.String("seat_id", seatID),
	)
	return fmt.Errorf("seat store %s/%s: %w", tripID, seatID, err)
}

// normalizeSeatIDs dedupes and sorts seat ids. Every caller swaps seats in the
// same order, so two overlapping requests collide on their first shared seat.
func normalizeSeatIDs(seatIDs []string) ([]string, error) {
	if len(seatIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one seat id is required", ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(seatIDs))
	out := make([]string, 0, len(seatIDs))
	for _, id := range seatIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("%w: empty seat id", ErrInvalidRequest)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// SeatCatalog resolves the layout a trip currently sells. TripService
// implements it.
type SeatCatalog interface {
	Topology(ctx context.Context, tripID string) (*entity.SeatTopology, error)
}

// checkSeats refuses seat ids outside the trip's current layout, including
// seats removed by a forced layout change.
func checkSeats(ctx context.Context, catalog SeatCatalog, tripID string, seats []string) error {
	topology, err := catalog.Topology(ctx, tripID)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(topology.Seats))
	for _, d := range topology.Seats {
		known[d.SeatID] = struct{}{}
	}
	for _, seatID := range seats {
		if _, ok := known[seatID]; !ok {
			return fmt.Errorf("seat %s on trip %s: %w", seatID, tripID, ErrUnknownSeat)
		}
	}
	return nil
}
