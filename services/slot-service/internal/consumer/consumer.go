// Package consumer subscribes to the slot change topics and clears the local
// slot cache when another replica commits a mutation.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinicware/slotengine/libs/kafkax"
	"github.com/clinicware/slotengine/services/slot-service/internal/inbox"
	"github.com/clinicware/slotengine/services/slot-service/internal/metrics"
	"github.com/clinicware/slotengine/services/slot-service/internal/outbox"
)

// Invalidator clears the slot cache. In production it is the engine Service.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Consumer struct {
	reader      *kafka.Reader
	logger      *slog.Logger
	inbox       *inbox.Repository
	invalidator Invalidator
	ops         *metrics.Ops
}

type Config struct {
	Brokers string
	GroupID string
}

func New(logger *slog.Logger, inboxRepo *inbox.Repository, invalidator Invalidator, ops *metrics.Ops, cfg Config) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: kafkax.SplitBrokers(cfg.Brokers),
		GroupID: cfg.GroupID,
		GroupTopics: []string{
			outbox.BookingChanged,
			outbox.RuleChanged,
			outbox.ServiceTypeChanged,
		},
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:      reader,
		logger:      logger,
		inbox:       inboxRepo,
		invalidator: invalidator,
		ops:         ops,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := kafkax.ExtractEventMeta(msg)

		ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err)
			span.RecordError(err)
			span.End()
			continue
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			span.End()
			continue
		}

		if err := c.invalidator.Invalidate(ctxSpan); err != nil {
			c.logger.Error("cache invalidation failed", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
			span.End()
			continue
		}
		c.ops.ObserveInvalidation("kafka")
		span.End()
	}
}
