// Package broker publishes booking lifecycle events to a message broker.
// Publishing is best effort: callers log failures and carry on.
package broker

import (
	"context"
	"fmt"
	"time"

	"bus-booking/pkg/utils"

	"go.uber.org/zap"
)

// BookingConfirmedEvent is emitted once a booking has been persisted.
type BookingConfirmedEvent struct {
	BookingID      string    `json:"booking_id"`
	TripID         string    `json:"trip_id"`
	SeatIDs        []string  `json:"seat_ids"`
	PassengerCount int       `json:"passenger_count"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
}

type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, event BookingConfirmedEvent) error
	Close() error
}

// New returns the publisher selected by config.
func New(config utils.EventsConfig, log *zap.Logger) (Publisher, error) {
	switch config.Broker {
	case utils.BrokerRabbitMQ:
		return NewRabbitMQPublisher(config.RabbitMQURL, config.Queue, log)
	case utils.BrokerKafka:
		return NewKafkaPublisher(config.KafkaBrokers, config.KafkaTopic, log)
	case utils.BrokerNone, "":
		return NewNoopPublisher(), nil
	}
	return nil, fmt.Errorf("unknown events broker %q", config.Broker)
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PublishBookingConfirmed(context.Context, BookingConfirmedEvent) error {
	return nil
}

func (noopPublisher) Close() error { return nil }
