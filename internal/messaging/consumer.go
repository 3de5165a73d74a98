package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var consumerTracer = otel.Tracer("messaging/consumer")

// ErrMalformed marks a message that can never be processed. Consume commits
// such messages and moves on instead of stopping.
var ErrMalformed = errors.New("malformed message")

// HandlerFunc processes one message. Any error other than ErrMalformed is
// retried, then stops consumption without committing the message.
type HandlerFunc func(ctx context.Context, topic string, payload []byte) error

type Consumer struct {
	reader   *kafka.Reader
	groupID  string
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

type consumerConfig struct {
	reader   kafka.ReaderConfig
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

type ConsumerOption func(*consumerConfig)

func WithStartOffset(offset int64) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.reader.StartOffset = offset
	}
}

// WithRetry runs a failing handler up to attempts times, doubling the pause
// after each failure.
func WithRetry(attempts int, backoff time.Duration) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.attempts = max(attempts, 1)
		cfg.backoff = backoff
	}
}

func WithLogger(logger *slog.Logger) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.logger = logger
	}
}

func NewConsumer(brokers []string, groupID string, topics []string, opts ...ConsumerOption) *Consumer {
	cfg := consumerConfig{
		reader: kafka.ReaderConfig{
			Brokers:     brokers,
			GroupID:     groupID,
			GroupTopics: topics,
		},
		attempts: 1,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &Consumer{
		reader:   kafka.NewReader(cfg.reader),
		groupID:  groupID,
		attempts: cfg.attempts,
		backoff:  cfg.backoff,
		logger:   cfg.logger,
	}
}

// Consume blocks until ctx is done or handler fails for good. Messages are
// committed only after handler succeeds or reports ErrMalformed.
func (c *Consumer) Consume(ctx context.Context, handler HandlerFunc) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if err := c.deliver(ctx, msg, handler); err != nil {
			if !errors.Is(err, ErrMalformed) {
				return err
			}
			c.logger.Warn("skipping malformed message",
				"error", err, "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, msg kafka.Message, handler HandlerFunc) error {
	if ct, ok := header(&msg, contentTypeHeader); ok && ct != contentTypeJSON {
		return fmt.Errorf("%w: content type %q", ErrMalformed, ct)
	}

	pause := c.backoff
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err = c.processMessage(ctx, msg, attempt, handler)
		if err == nil || errors.Is(err, ErrMalformed) || attempt == c.attempts {
			return err
		}

		c.logger.Warn("handler failed, retrying",
			"error", err, "topic", msg.Topic, "offset", msg.Offset, "attempt", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
		pause *= 2
	}
	return err
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, attempt int, handler HandlerFunc) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, NewHeaderCarrier(&msg))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(msg.Topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
			attribute.Int("messaging.delivery.attempt", attempt),
		),
	)
	defer span.End()

	if err := handler(spanCtx, msg.Topic, msg.Value); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
