package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saha-club/bookingservice/internal/booking/domain"
)

func testReservation() *domain.Reservation {
	return &domain.Reservation{
		ID:         uuid.New(),
		Number:     "SAH20250601X7K2QD",
		ResourceID: "court-1",
		UserID:     "user-1",
		StartTime:  time.Now().Add(24 * time.Hour),
		EndTime:    time.Now().Add(25 * time.Hour),
		Status:     domain.StatusConfirmed,
	}
}

func TestNoopPublisher(t *testing.T) {
	publisher := NoopPublisher{}

	event := NewEvent(TypeReservationCreated, testReservation(), nil)
	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Errorf("Expected no error from NoopPublisher, got: %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Errorf("Expected no error from Close, got: %v", err)
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	r := testReservation()
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "booking.events" {
			t.Errorf("topic = %s, want booking.events", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != r.ID.String() {
			t.Errorf("key = %s, want reservation id %s", key, r.ID)
		}
		raw, _ := msg.Value.Encode()
		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			t.Fatalf("unmarshaling published event: %v", err)
		}
		if event.Type != TypeReservationConfirmed {
			t.Errorf("event type = %s, want %s", event.Type, TypeReservationConfirmed)
		}
		if event.ResourceID != "court-1" {
			t.Errorf("resource id = %s, want court-1", event.ResourceID)
		}
		return nil
	})

	publisher := NewKafkaPublisherFromProducer(producer, "booking.events", zap.NewNop())
	event := NewEvent(TypeReservationConfirmed, r, map[string]interface{}{"total": 195.0})

	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrBrokerNotAvailable)

	publisher := NewKafkaPublisherFromProducer(producer, "booking.events", zap.NewNop())
	event := NewEvent(TypeReservationCreated, testReservation(), nil)

	if err := publisher.Publish(context.Background(), event); err == nil {
		t.Error("expected error when the broker rejects the message")
	}
	publisher.Close()
}

func TestPublisherInterface(t *testing.T) {
	var _ Publisher = NoopPublisher{}
	var _ Publisher = &KafkaPublisher{}
}
