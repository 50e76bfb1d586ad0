package outbox

import (
	"context"
	"strings"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"

	"banhngot/backend/internal/domain"
)

// KafkaPublisher writes outbox events to a single topic keyed by the event's
// aggregate (branch or group id), so consumers see per-aggregate ordering.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.OutboxEvent) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "event_id", Value: []byte(eventID(event))},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func eventID(event domain.OutboxEvent) string {
	if event.ID != "" {
		return event.ID
	}
	return uuid.NewString()
}
