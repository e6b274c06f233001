package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bus-booking/cmd"
	"bus-booking/internal/data/repository"
	"bus-booking/internal/wire"
	"bus-booking/pkg/broker"
	"bus-booking/pkg/clock"
	"bus-booking/pkg/database"
	"bus-booking/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.String("seat_store", config.SeatStore.Backend),
		zap.String("events_broker", config.Events.Broker),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, logger); err != nil {
		logger.Fatal("Application stopped with error", zap.Error(err))
	}
	logger.Info("Application stopped")
}

func run(ctx context.Context, config *utils.Config, logger *zap.Logger) error {
	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	logger.Info("Database connected successfully")

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	seats, closeSeats, err := newSeatStore(config, db, logger)
	if err != nil {
		return err
	}
	defer closeSeats()

	publisher, err := broker.New(config.Events, logger)
	if err != nil {
		return fmt.Errorf("events broker: %w", err)
	}
	defer publisher.Close()

	repos := repository.NewRepository(db, seats, logger)
	app := wire.Wiring(repos, publisher, config, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Service.Hub.Run(ctx) })
	g.Go(func() error { return app.Service.Sweeper.Run(ctx) })
	g.Go(func() error { return cmd.APIServer(ctx, app.Router, config.App.Port, logger) })
	return g.Wait()
}

// newSeatStore builds the configured seat state backend and its cleanup.
func newSeatStore(config *utils.Config, db database.PgxIface, logger *zap.Logger) (repository.SeatStateRepository, func(), error) {
	clk := clock.NewSystem()

	switch config.SeatStore.Backend {
	case utils.SeatStoreMemory:
		logger.Warn("Using in-memory seat store; holds do not survive restarts or span instances")
		return repository.NewMemorySeatStateRepository(clk, logger), func() {}, nil

	case utils.SeatStoreRedis:
		client, err := database.InitRedis(config.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("Redis connected successfully", zap.String("addr", config.Redis.Addr))
		return repository.NewRedisSeatStateRepository(client, clk, logger), func() { client.Close() }, nil

	default:
		return repository.NewPostgresSeatStateRepository(db, clk, logger), func() {}, nil
	}
}
