// Package events moves domain events between services over Kafka. The trace
// context travels in the message headers so consumers continue the trace of
// the request that produced the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fjod/traced_shop/pkg/telemetry"
)

const (
	OrderEventsTopic = "order-events"

	EventTypeHeader = "event_type"

	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
)

type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	topic  string
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{topic: topic, writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	ctx, span := otel.Tracer("github.com/fjod/traced_shop/pkg/events").Start(ctx, "publish "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", p.topic),
			attribute.String("messaging.kafka.message.key", key),
			attribute.String("event.type", eventType),
		),
	)
	defer span.End()

	value, err := json.Marshal(payload)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	headers := []kafka.Header{{Key: EventTypeHeader, Value: []byte(eventType)}}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{headers: &headers})

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: headers,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

func (NopPublisher) Close() error { return nil }
