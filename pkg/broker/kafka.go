package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type kafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaPublisher writes events keyed by trip id, so events of one trip
// land on one partition in order.
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) (Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	l := log.With(zap.String("publisher", "kafka"), zap.String("topic", topic))
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			l.Error(fmt.Sprintf(msg, args...))
		}),
	}

	return &kafkaPublisher{writer: writer, log: l}, nil
}

func (p *kafkaPublisher) PublishBookingConfirmed(ctx context.Context, event BookingConfirmedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal booking confirmed event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TripID),
		Value: body,
		Time:  event.ConfirmedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("booking.confirmed")},
			{Key: "booking_id", Value: []byte(event.BookingID)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka publish booking %s: %w", event.BookingID, err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
