package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bus-booking/internal/data/entity"
	"bus-booking/pkg/clock"
	"bus-booking/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	seatDiffChannel      = "seat_diff"
	listenBackoffInitial = 500 * time.Millisecond
	listenBackoffMax     = 30 * time.Second
)

type postgresSeatStateRepository struct {
	db    database.PgxIface
	clock clock.Clock
	log   *zap.Logger
}

// NewPostgresSeatStateRepository stores seat states in Postgres. Swaps are
// conditional UPDATEs; the per-trip version row serializes swaps of one trip
// and diffs are fanned out with NOTIFY on commit.
func NewPostgresSeatStateRepository(db database.PgxIface, clk clock.Clock, log *zap.Logger) SeatStateRepository {
	return &postgresSeatStateRepository{
		db:    db,
		clock: clk,
		log:   log.With(zap.String("repository", "seat_state_postgres")),
	}
}

func (r *postgresSeatStateRepository) OpenTrip(ctx context.Context, tripID string, seatIDs []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin open trip %s: %w", tripID, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO trip_seat_versions (trip_id, version)
		VALUES ($1, 0)
		ON CONFLICT (trip_id) DO NOTHING
	`, tripID)
	if err != nil {
		return fmt.Errorf("init version for trip %s: %w", tripID, err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO seat_states (trip_id, seat_id, position, status, updated_at)
		SELECT $1, s.seat_id,
		       (COALESCE((SELECT MAX(position) FROM seat_states WHERE trip_id = $1), 0) + s.ord)::int,
		       'available', $3
		FROM unnest($2::text[]) WITH ORDINALITY AS s(seat_id, ord)
		ON CONFLICT (trip_id, seat_id) DO NOTHING
	`, tripID, seatIDs, r.clock.Now())
	if err != nil {
		r.log.Error("Failed to open trip seats", zap.Error(err), zap.String("trip_id", tripID))
		return fmt.Errorf("insert seats for trip %s: %w", tripID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit open trip %s: %w", tripID, err)
	}

	r.log.Debug("Trip opened", zap.String("trip_id", tripID), zap.Int64("seats_added", tag.RowsAffected()))
	return nil
}

func (r *postgresSeatStateRepository) Snapshot(ctx context.Context, tripID string) (*entity.TripSnapshot, error) {
	query := `
		SELECT v.version, s.seat_id, s.status, s.holder_token, s.hold_expires_at, s.booking_id, s.updated_at
		FROM trip_seat_versions v
		JOIN seat_states s ON s.trip_id = v.trip_id
		WHERE v.trip_id = $1
		ORDER BY s.position
	`

	rows, err := r.db.Query(ctx, query, tripID)
	if err != nil {
		r.log.Error("Failed to snapshot trip", zap.Error(err), zap.String("trip_id", tripID))
		return nil, fmt.Errorf("snapshot trip %s: %w", tripID, err)
	}
	defer rows.Close()

	snap := &entity.TripSnapshot{TripID: tripID}
	for rows.Next() {
		var (
			st      entity.SeatState
			holder  *string
			booking *string
		)
		if err := rows.Scan(&snap.Version, &st.SeatID, &st.Status, &holder, &st.HoldExpiresAt, &booking, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan seat state row: %w", err)
		}
		st.TripID = tripID
		if holder != nil {
			st.HolderToken = *holder
		}
		if booking != nil {
			st.BookingID = *booking
		}
		snap.States = append(snap.States, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seat states for trip %s: %w", tripID, err)
	}
	if len(snap.States) == 0 {
		return nil, ErrTripNotOpen
	}
	return snap, nil
}

func (r *postgresSeatStateRepository) CompareAndSwap(ctx context.Context, tripID, seatID string, cond entity.SeatCondition, next entity.SeatUpdate) (bool, error) {
	if err := checkSwap(cond, next, r.clock.Now); err != nil {
		return false, err
	}

	now := r.clock.Now()
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin swap %s/%s: %w", tripID, seatID, err)
	}
	defer tx.Rollback(ctx)

	// The version row lock is held until commit, so seq order is commit order.
	query := `
		WITH swapped AS (
			UPDATE seat_states
			SET status = $4, holder_token = $5::text, hold_expires_at = $6::timestamptz,
			    booking_id = $7::text, updated_at = $12
			WHERE trip_id = $1 AND seat_id = $2 AND status = $3
			  AND ($8::text IS NULL OR holder_token = $8::text)
			  AND ($9::timestamptz IS NULL OR hold_expires_at = $9::timestamptz)
			  AND ($10::timestamptz IS NULL OR hold_expires_at > $10::timestamptz)
			  AND ($11::text IS NULL OR booking_id = $11::text)
			RETURNING trip_id
		)
		UPDATE trip_seat_versions v
		SET version = v.version + 1
		FROM swapped
		WHERE v.trip_id = swapped.trip_id
		RETURNING v.version
	`

	var seq int64
	err = tx.QueryRow(ctx, query,
		tripID,
		seatID,
		cond.Status,
		next.Status,
		nullString(next.HolderToken),
		next.HoldExpiresAt,
		nullString(next.BookingID),
		nullString(cond.HolderToken),
		cond.HoldExpiresAt,
		cond.LiveAt,
		nullString(cond.BookingID),
		now,
	).Scan(&seq)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, r.missing(ctx, tx, tripID, seatID)
	}
	if err != nil {
		r.log.Error("Failed to swap seat state",
			zap.Error(err),
			zap.String("trip_id", tripID),
			zap.String("seat_id", seatID),
		)
		return false, fmt.Errorf("swap seat %s/%s: %w", tripID, seatID, err)
	}

	payload, err := json.Marshal(entity.SeatDiffEvent{
		TripID:      tripID,
		SeatID:      seatID,
		Seq:         seq,
		OldStatus:   cond.Status,
		NewStatus:   next.Status,
		HolderToken: next.HolderToken,
		At:          now,
	})
	if err != nil {
		return false, fmt.Errorf("encode seat diff: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, seatDiffChannel, string(payload)); err != nil {
		return false, fmt.Errorf("notify seat diff %s/%s: %w", tripID, seatID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit swap %s/%s: %w", tripID, seatID, err)
	}
	return true, nil
}

// missing tells a condition mismatch apart from an unknown trip or seat.
func (r *postgresSeatStateRepository) missing(ctx context.Context, tx pgx.Tx, tripID, seatID string) error {
	var tripExists, seatExists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM trip_seat_versions WHERE trip_id = $1),
		       EXISTS (SELECT 1 FROM seat_states WHERE trip_id = $1 AND seat_id = $2)
	`, tripID, seatID).Scan(&tripExists, &seatExists)
	if err != nil {
		return fmt.Errorf("check seat %s/%s: %w", tripID, seatID, err)
	}
	switch {
	case !tripExists:
		return ErrTripNotOpen
	case !seatExists:
		return ErrSeatNotFound
	}
	return nil
}

func (r *postgresSeatStateRepository) TripsWithHolds(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT trip_id FROM seat_states WHERE status = 'held'`)
	if err != nil {
		return nil, fmt.Errorf("list trips with holds: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan trip id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StreamDiffs LISTENs on a dedicated connection and reconnects with backoff.
// Every (re)established LISTEN is followed by a Resync since notifications
// sent while no listener was attached are gone.
func (r *postgresSeatStateRepository) StreamDiffs(ctx context.Context, sink DiffSink) error {
	backoff := listenBackoffInitial
	for {
		err := r.listen(ctx, sink, func() { backoff = listenBackoffInitial })
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.log.Warn("Seat diff listener disconnected",
			zap.Error(err),
			zap.Duration("retry_in", backoff),
		)
		sink.Resync()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > listenBackoffMax {
			backoff = listenBackoffMax
		}
	}
}

func (r *postgresSeatStateRepository) listen(ctx context.Context, sink DiffSink, connected func()) error {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+seatDiffChannel); err != nil {
		return fmt.Errorf("listen %s: %w", seatDiffChannel, err)
	}
	defer func() {
		// Release returns the conn to the pool; drop the subscription first.
		_, _ = conn.Exec(context.Background(), "UNLISTEN "+seatDiffChannel)
	}()

	connected()
	sink.Resync()
	r.log.Info("Listening for seat diffs", zap.String("channel", seatDiffChannel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var ev entity.SeatDiffEvent
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			r.log.Error("Dropping malformed seat diff", zap.Error(err), zap.String("payload", n.Payload))
			sink.Resync()
			continue
		}
		sink.Publish(ev)
	}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
