package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bus-booking/internal/data/entity"
	"bus-booking/pkg/clock"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisTripsKey       = "seats:trips"
	redisChannelPrefix  = "seat-diff:"
	redisReceiveBackoff = time.Second
)

// All keys of one trip share a hash tag so the scripts stay single-slot.
func redisStatesKey(tripID string) string  { return "seats:{" + tripID + "}:states" }
func redisVersionKey(tripID string) string { return "seats:{" + tripID + "}:version" }
func redisOrderKey(tripID string) string   { return "seats:{" + tripID + "}:order" }
func redisHeldKey(tripID string) string    { return "seats:{" + tripID + "}:held" }
func redisChannel(tripID string) string    { return redisChannelPrefix + tripID }

var redisOpenScript = redis.NewScript(`
redis.call('SETNX', KEYS[2], 0)
local added = 0
for i = 2, #ARGV do
	if redis.call('HSETNX', KEYS[1], ARGV[i], ARGV[1]) == 1 then
		redis.call('RPUSH', KEYS[3], ARGV[i])
		added = added + 1
	end
end
return added
`)

var redisSnapshotScript = redis.NewScript(`
local v = redis.call('GET', KEYS[2])
if not v then
	return false
end
local order = redis.call('LRANGE', KEYS[3], 0, -1)
if #order == 0 then
	return {v, {}, {}}
end
return {v, order, redis.call('HMGET', KEYS[1], unpack(order))}
`)

// Returns -2 for an unknown trip, -1 for an unknown seat, 0 on condition
// mismatch and the new sequence number on success.
var redisCASScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 0 then
	return -2
end
local raw = redis.call('HGET', KEYS[1], ARGV[1])
if not raw then
	return -1
end
local cur = cjson.decode(raw)
if cur.status ~= ARGV[2] then
	return 0
end
if ARGV[3] ~= '' and cur.holder_token ~= ARGV[3] then
	return 0
end
if ARGV[4] ~= '' and tonumber(cur.hold_expires_at_ms or -1) ~= tonumber(ARGV[4]) then
	return 0
end
if ARGV[5] ~= '' and (cur.hold_expires_at_ms == nil or tonumber(cur.hold_expires_at_ms) <= tonumber(ARGV[5])) then
	return 0
end
if ARGV[6] ~= '' and cur.booking_id ~= ARGV[6] then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[7])
local delta = 0
if ARGV[8] == 'held' then delta = delta + 1 end
if cur.status == 'held' then delta = delta - 1 end
if delta ~= 0 then
	redis.call('INCRBY', KEYS[3], delta)
end
local seq = redis.call('INCR', KEYS[2])
local payload = string.gsub(ARGV[9], '"seq":0,', '"seq":' .. seq .. ',', 1)
redis.call('PUBLISH', ARGV[10], payload)
return seq
`)

type redisSeatRecord struct {
	Status          entity.SeatStatus `json:"status"`
	HolderToken     string            `json:"holder_token,omitempty"`
	HoldExpiresAtMs int64             `json:"hold_expires_at_ms,omitempty"`
	BookingID       string            `json:"booking_id,omitempty"`
	UpdatedAtMs     int64             `json:"updated_at_ms"`
}

func (rec redisSeatRecord) state(tripID, seatID string) *entity.SeatState {
	st := &entity.SeatState{
		TripID:      tripID,
		SeatID:      seatID,
		Status:      rec.Status,
		HolderToken: rec.HolderToken,
		BookingID:   rec.BookingID,
		UpdatedAt:   time.UnixMilli(rec.UpdatedAtMs).UTC(),
	}
	if rec.HoldExpiresAtMs != 0 {
		exp := time.UnixMilli(rec.HoldExpiresAtMs).UTC()
		st.HoldExpiresAt = &exp
	}
	return st
}

type redisSeatStateRepository struct {
	client redis.UniversalClient
	clock  clock.Clock
	log    *zap.Logger
}

// NewRedisSeatStateRepository keeps seat states in Redis hashes and swaps them
// with Lua scripts. Diffs travel over one pub/sub channel per trip.
// Timestamps are stored with millisecond precision.
func NewRedisSeatStateRepository(client redis.UniversalClient, clk clock.Clock, log *zap.Logger) SeatStateRepository {
	return &redisSeatStateRepository{
		client: client,
		clock:  clk,
		log:    log.With(zap.String("repository", "seat_state_redis")),
	}
}

func (r *redisSeatStateRepository) OpenTrip(ctx context.Context, tripID string, seatIDs []string) error {
	initial, err := json.Marshal(redisSeatRecord{
		Status:      entity.SeatStatusAvailable,
		UpdatedAtMs: r.clock.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode seat record: %w", err)
	}

	args := make([]any, 0, len(seatIDs)+1)
	args = append(args, string(initial))
	for _, id := range seatIDs {
		args = append(args, id)
	}

	keys := []string{redisStatesKey(tripID), redisVersionKey(tripID), redisOrderKey(tripID)}
	added, err := redisOpenScript.Run(ctx, r.client, keys, args...).Int64()
	if err != nil {
		r.log.Error("Failed to open trip seats", zap.Error(err), zap.String("trip_id", tripID))
		return fmt.Errorf("open trip %s: %w", tripID, err)
	}
	if err := r.client.SAdd(ctx, redisTripsKey, tripID).Err(); err != nil {
		return fmt.Errorf("register trip %s: %w", tripID, err)
	}

	r.log.Debug("Trip opened", zap.String("trip_id", tripID), zap.Int64("seats_added", added))
	return nil
}

func (r *redisSeatStateRepository) Snapshot(ctx context.Context, tripID string) (*entity.TripSnapshot, error) {
	keys := []string{redisStatesKey(tripID), redisVersionKey(tripID), redisOrderKey(tripID)}
	res, err := redisSnapshotScript.Run(ctx, r.client, keys).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTripNotOpen
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot trip %s: %w", tripID, err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("snapshot trip %s: unexpected reply of %d elements", tripID, len(res))
	}

	version, err := strconv.ParseInt(fmt.Sprint(res[0]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse version for trip %s: %w", tripID, err)
	}
	order, _ := res[1].([]any)
	raws, _ := res[2].([]any)
	if len(order) != len(raws) {
		return nil, fmt.Errorf("snapshot trip %s: order and states differ in length", tripID)
	}

	snap := &entity.TripSnapshot{
		TripID:  tripID,
		Version: version,
		States:  make([]*entity.SeatState, 0, len(order)),
	}
	for i, o := range order {
		seatID, _ := o.(string)
		raw, ok := raws[i].(string)
		if !ok {
			return nil, fmt.Errorf("snapshot trip %s: seat %s has no state", tripID, seatID)
		}
		var rec redisSeatRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode seat %s/%s: %w", tripID, seatID, err)
		}
		snap.States = append(snap.States, rec.state(tripID, seatID))
	}
	if len(snap.States) == 0 {
		return nil, ErrTripNotOpen
	}
	return snap, nil
}

func (r *redisSeatStateRepository) CompareAndSwap(ctx context.Context, tripID, seatID string, cond entity.SeatCondition, next entity.SeatUpdate) (bool, error) {
	if err := checkSwap(cond, next, r.clock.Now); err != nil {
		return false, err
	}

	now := r.clock.Now()
	rec := redisSeatRecord{
		Status:      next.Status,
		HolderToken: next.HolderToken,
		BookingID:   next.BookingID,
		UpdatedAtMs: now.UnixMilli(),
	}
	if next.HoldExpiresAt != nil {
		rec.HoldExpiresAtMs = next.HoldExpiresAt.UnixMilli()
	}
	record, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode seat record: %w", err)
	}

	// Seq is filled in by the script once the swap is applied.
	event, err := json.Marshal(entity.SeatDiffEvent{
		TripID:      tripID,
		SeatID:      seatID,
		OldStatus:   cond.Status,
		NewStatus:   next.Status,
		HolderToken: next.HolderToken,
		At:          time.UnixMilli(now.UnixMilli()).UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("encode seat diff: %w", err)
	}

	keys := []string{redisStatesKey(tripID), redisVersionKey(tripID), redisHeldKey(tripID)}
	seq, err := redisCASScript.Run(ctx, r.client, keys,
		seatID,
		string(cond.Status),
		cond.HolderToken,
		millisArg(cond.HoldExpiresAt),
		millisArg(cond.LiveAt),
		cond.BookingID,
		string(record),
		string(next.Status),
		string(event),
		redisChannel(tripID),
	).Int64()
	if err != nil {
		r.log.Error("Failed to swap seat state",
			zap.Error(err),
			zap.String("trip_id", tripID),
			zap.String("seat_id", seatID),
		)
		return false, fmt.Errorf("swap seat %s/%s: %w", tripID, seatID, err)
	}

	switch {
	case seq == -2:
		return false, ErrTripNotOpen
	case seq == -1:
		return false, ErrSeatNotFound
	case seq == 0:
		return false, nil
	}
	return true, nil
}

func (r *redisSeatStateRepository) TripsWithHolds(ctx context.Context) ([]string, error) {
	trips, err := r.client.SMembers(ctx, redisTripsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	if len(trips) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(trips))
	for i, id := range trips {
		cmds[i] = pipe.Get(ctx, redisHeldKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read held counters: %w", err)
	}

	var out []string
	for i, cmd := range cmds {
		n, err := cmd.Int64()
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, trips[i])
	}
	return out, nil
}

// StreamDiffs pattern-subscribes to every trip channel. go-redis reconnects
// the subscription on its own; each (re)subscribe confirmation triggers a
// Resync because messages published in between are lost.
func (r *redisSeatStateRepository) StreamDiffs(ctx context.Context, sink DiffSink) error {
	pubsub := r.client.PSubscribe(ctx, redisChannelPrefix+"*")
	defer pubsub.Close()

	for {
		msg, err := pubsub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn("Seat diff subscription error", zap.Error(err))
			sink.Resync()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(redisReceiveBackoff):
			}
			continue
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			r.log.Info("Subscribed to seat diffs", zap.String("kind", m.Kind), zap.String("pattern", m.Channel))
			sink.Resync()
		case *redis.Message:
			var ev entity.SeatDiffEvent
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				r.log.Error("Dropping malformed seat diff",
					zap.Error(err),
					zap.String("channel", m.Channel),
				)
				sink.Resync()
				continue
			}
			if ev.TripID == "" {
				ev.TripID = strings.TrimPrefix(m.Channel, redisChannelPrefix)
			}
			sink.Publish(ev)
		case *redis.Pong:
		}
	}
}

func millisArg(t *time.Time) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}
