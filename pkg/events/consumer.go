package events

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/pkg/logger"
	"github.com/fjod/traced_shop/pkg/telemetry"
)

type Message struct {
	Type  string
	Key   string
	Value []byte
}

type Handler func(ctx context.Context, msg Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	topic   string
	reader  messageReader
	handler Handler
	log     *zap.Logger
}

func NewConsumer(topic, groupID string, handler Handler, log *zap.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{topic: topic, reader: reader, handler: handler, log: log}
}

// Run consumes until ctx is cancelled. Handler errors are logged and the
// message is committed anyway; handlers are expected to be idempotent.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			c.log.Warn("fetch message failed", zap.String("topic", c.topic), zap.Error(err))
			continue
		}

		c.process(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.log.Warn("commit message failed", zap.String("topic", c.topic), zap.Error(err))
		}
	}
}

func (c *Consumer) process(ctx context.Context, m kafka.Message) {
	carrier := headerCarrier{headers: &m.Headers}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)
	msg := Message{Type: carrier.Get(EventTypeHeader), Key: string(m.Key), Value: m.Value}

	ctx, span := otel.Tracer("github.com/fjod/traced_shop/pkg/events").Start(ctx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", c.topic),
			attribute.Int64("messaging.kafka.message.offset", m.Offset),
			attribute.String("event.type", msg.Type),
		),
	)
	defer span.End()

	if err := c.handler(ctx, msg); err != nil {
		telemetry.RecordError(span, err)
		logger.For(ctx, c.log).Error("event handler failed",
			zap.String("event_type", msg.Type),
			zap.String("key", msg.Key),
			zap.Error(err),
		)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
