package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saha-club/bookingservice/internal/booking/domain"
)

// Event types emitted by the booking core.
const (
	TypeReservationCreated   = "reservation.created"
	TypeReservationConfirmed = "reservation.confirmed"
	TypeReservationCancelled = "reservation.cancelled"
	TypeReservationNoShow    = "reservation.no_show"
	TypeReservationCompleted = "reservation.completed"
	TypeCheckIn              = "reservation.checked_in"
)

// Event is the envelope published for every reservation lifecycle change.
type Event struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	ReservationID string                 `json:"reservation_id"`
	UserID        string                 `json:"user_id"`
	ResourceID    string                 `json:"resource_id"`
	Data          map[string]interface{} `json:"data,omitempty"`
	Timestamp     int64                  `json:"timestamp"`
	Version       int                    `json:"version"`
}

// NewEvent builds an event envelope for a reservation.
func NewEvent(eventType string, r *domain.Reservation, data map[string]interface{}) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		ReservationID: r.ID.String(),
		UserID:        r.UserID,
		ResourceID:    r.ResourceID,
		Data:          data,
		Timestamp:     time.Now().Unix(),
		Version:       1,
	}
}

// Publisher defines the interface for publishing reservation events.
// Publishing is best-effort: the booking flow logs failures and moves on.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// NoopPublisher is a no-operation publisher for tests and development.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event *Event) error { return nil }
func (NoopPublisher) Close() error                                    { return nil }

// KafkaPublisher publishes reservation events to a Kafka topic, keyed by
// reservation ID so per-reservation ordering holds within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafkaPublisher connects a synchronous producer to the brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting kafka producer: %w", err)
	}
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}, nil
}

// NewKafkaPublisherFromProducer wraps an existing producer, used in tests.
func NewKafkaPublisherFromProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

// Publish sends the event to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event %s: %w", event.ID, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.ReservationID),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publishing event %s: %w", event.ID, err)
	}

	p.logger.Debug("Published reservation event",
		zap.String("type", event.Type),
		zap.String("reservation_id", event.ReservationID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Close shuts down the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
