package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"bus-booking/pkg/clock"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("skipping Redis integration tests: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisSeatStateRepository(t *testing.T) {
	client := newTestRedis(t)
	newStore := func(t *testing.T, clk clock.Clock) SeatStateRepository {
		return NewRedisSeatStateRepository(client, clk, zap.NewNop())
	}
	runSeatStoreSuite(t, newStore, waitResync)
}
