package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	SeatStore SeatStoreConfig
	Hold      HoldConfig
	Sweep     SweepConfig
	Hub       HubConfig
	Events    EventsConfig
}

type AppConfig struct {
	Name           string
	Port           string
	Debug          bool
	LogPath        string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// SeatStoreConfig selects the seat state backend: memory, postgres or redis.
type SeatStoreConfig struct {
	Backend string
}

type HoldConfig struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

type SweepConfig struct {
	Interval    time.Duration
	Concurrency int
}

type HubConfig struct {
	// MaxPending is the queue length at which a lagging subscriber is dropped.
	MaxPending int
}

type EventsConfig struct {
	Broker       string
	RabbitMQURL  string
	Queue        string
	KafkaBrokers []string
	KafkaTopic   string
}

const (
	SeatStoreMemory   = "memory"
	SeatStorePostgres = "postgres"
	SeatStoreRedis    = "redis"

	BrokerNone     = "none"
	BrokerRabbitMQ = "rabbitmq"
	BrokerKafka    = "kafka"
)

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "bus-booking")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SEAT_STORE", SeatStorePostgres)
	viper.SetDefault("HOLD_DEFAULT_TTL", "5m")
	viper.SetDefault("HOLD_MAX_TTL", "15m")
	viper.SetDefault("SWEEP_INTERVAL", "5s")
	viper.SetDefault("SWEEP_CONCURRENCY", 4)
	viper.SetDefault("HUB_MAX_PENDING", 1024)
	viper.SetDefault("EVENTS_BROKER", BrokerNone)
	viper.SetDefault("RABBITMQ_QUEUE", "booking.confirmed")
	viper.SetDefault("KAFKA_TOPIC", "booking-confirmed")

	if err := viper.ReadInConfig(); err != nil {
		// .env is optional when the environment carries everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:           viper.GetString("APP_NAME"),
			Port:           viper.GetString("PORT"),
			Debug:          viper.GetBool("DEBUG"),
			LogPath:        viper.GetString("LOG_PATH"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
			TLS:      viper.GetBool("REDIS_TLS"),
		},
		SeatStore: SeatStoreConfig{
			Backend: strings.ToLower(viper.GetString("SEAT_STORE")),
		},
		Hold: HoldConfig{
			DefaultTTL: viper.GetDuration("HOLD_DEFAULT_TTL"),
			MaxTTL:     viper.GetDuration("HOLD_MAX_TTL"),
		},
		Sweep: SweepConfig{
			Interval:    viper.GetDuration("SWEEP_INTERVAL"),
			Concurrency: viper.GetInt("SWEEP_CONCURRENCY"),
		},
		Hub: HubConfig{
			MaxPending: viper.GetInt("HUB_MAX_PENDING"),
		},
		Events: EventsConfig{
			Broker:       strings.ToLower(viper.GetString("EVENTS_BROKER")),
			RabbitMQURL:  viper.GetString("RABBITMQ_URL"),
			Queue:        viper.GetString("RABBITMQ_QUEUE"),
			KafkaBrokers: splitList(viper.GetString("KAFKA_BROKERS")),
			KafkaTopic:   viper.GetString("KAFKA_TOPIC"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.SeatStore.Backend {
	case SeatStoreMemory, SeatStorePostgres, SeatStoreRedis:
	default:
		return fmt.Errorf("unknown SEAT_STORE %q", c.SeatStore.Backend)
	}
	if c.Hold.DefaultTTL <= 0 || c.Hold.MaxTTL <= 0 {
		return fmt.Errorf("hold ttl must be positive")
	}
	if c.Hold.DefaultTTL > c.Hold.MaxTTL {
		return fmt.Errorf("HOLD_DEFAULT_TTL %s exceeds HOLD_MAX_TTL %s", c.Hold.DefaultTTL, c.Hold.MaxTTL)
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.Sweep.Concurrency <= 0 {
		c.Sweep.Concurrency = 1
	}
	if c.Hub.MaxPending <= 0 {
		return fmt.Errorf("HUB_MAX_PENDING must be positive")
	}
	switch c.Events.Broker {
	case BrokerNone, "":
		c.Events.Broker = BrokerNone
	case BrokerRabbitMQ:
		if c.Events.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required for EVENTS_BROKER=rabbitmq")
		}
	case BrokerKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for EVENTS_BROKER=kafka")
		}
	default:
		return fmt.Errorf("unknown EVENTS_BROKER %q", c.Events.Broker)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
