package events

import (
	"context"

	"smartassist/pkg/kafka"
	"smartassist/pkg/model"
)

const (
	SchemaVersion = "1"
	Source        = "smartassist-portal"
)

// KafkaObserver writes every event to the ledger topic. Booking events are
// keyed by booking so a partition sees a booking's transitions in order.
type KafkaObserver struct {
	publisher kafka.Publisher
}

func NewKafkaObserver(publisher kafka.Publisher) *KafkaObserver {
	return &KafkaObserver{publisher: publisher}
}

func (o *KafkaObserver) Name() string { return "kafka" }

func (o *KafkaObserver) Notify(ctx context.Context, event model.LedgerEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(EventKey(event)).
		WithValue(event).
		WithEventID(event.ID).
		WithEventType(event.Type).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		return err
	}
	return o.publisher.Publish(ctx, msg)
}

type amqpPublisher interface {
	Publish(ctx context.Context, routingKey, messageID string, payload any) error
}

// RabbitMQObserver publishes events on the topic exchange with the event
// type as routing key, so consumers can bind to "booking.*".
type RabbitMQObserver struct {
	publisher amqpPublisher
}

func NewRabbitMQObserver(publisher amqpPublisher) *RabbitMQObserver {
	return &RabbitMQObserver{publisher: publisher}
}

func (o *RabbitMQObserver) Name() string { return "rabbitmq" }

func (o *RabbitMQObserver) Notify(ctx context.Context, event model.LedgerEvent) error {
	return o.publisher.Publish(ctx, event.Type, event.ID, event)
}

func EventKey(event model.LedgerEvent) string {
	switch {
	case event.Booking != nil:
		return "booking:" + event.Booking.ID
	case event.Announcement != nil:
		return "announcement:" + event.Announcement.ID
	default:
		return event.ID
	}
}
