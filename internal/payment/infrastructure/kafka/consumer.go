package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/learnhub/settlement/internal/payment/application"
	"github.com/learnhub/settlement/internal/payment/domain"
	"github.com/learnhub/settlement/pkg/idempotency"
	"github.com/learnhub/settlement/pkg/tracing"
)

// Consumer is the durable settlement retry path. Every gate winner commits
// a PaymentCompleted event to the outbox; the relay publishes it here, and
// this consumer replays settlement + enrollment until both stick. Because
// the stores are idempotent per payment, replaying after an inline success
// is a no-op.
type Consumer struct {
	log     *slog.Logger
	reader  *kafka.Reader
	settler application.Settler
	granter application.Granter
	idem    *idempotency.Store
	tracer  trace.Tracer
	backoff time.Duration
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, settler application.Settler, granter application.Granter, idem *idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:     log,
		reader:  r,
		settler: settler,
		granter: granter,
		idem:    idem,
		tracer:  otel.Tracer("settlement-consumer"),
		backoff: 2 * time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if headerValue(msg.Headers, "event_type") != application.EventPaymentCompleted {
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		var ev domain.PaymentCompleted
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.log.Error("unmarshal failed", "err", err)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		key := c.idem.EventKey(application.EventPaymentCompleted, ev.PaymentID)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
		}
		if seen {
			c.log.Info("duplicate settlement event skipped", "payment_id", ev.PaymentID)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, "SettlePayment")

		if err := c.process(msgCtx, ev); err != nil {
			span.End()
			return err
		}
		span.End()

		if err := c.idem.Mark(ctx, key); err != nil {
			c.log.Error("idempotency mark failed", "err", err)
		}
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

// process retries until the credits and the enrollment are durably
// recorded or the context is cancelled. Money owed but not yet recorded
// must never be dropped, so the partition blocks rather than skipping.
func (c *Consumer) process(ctx context.Context, ev domain.PaymentCompleted) error {
	p, err := paymentFromEvent(ev)
	if err != nil {
		c.log.Error("invalid settlement event dropped", "payment_id", ev.PaymentID, "err", err)
		return nil
	}

	for {
		err := c.settler.Settle(ctx, p)
		if err == nil {
			err = c.granter.Grant(ctx, p.UserID, p.CourseID)
		}
		if err == nil {
			c.log.Info("settlement replay complete", "payment_id", ev.PaymentID)
			return nil
		}

		c.log.Error("settlement replay failed, will retry",
			"payment_id", ev.PaymentID, "instructor_id", ev.InstructorID, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}
}

func paymentFromEvent(ev domain.PaymentCompleted) (domain.Payment, error) {
	id, err := uuid.Parse(ev.PaymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	return domain.Payment{
		ID:                   id,
		UserID:               ev.UserID,
		CourseID:             ev.CourseID,
		InstructorID:         ev.InstructorID,
		AmountCents:          ev.AmountCents,
		InstructorShareCents: ev.InstructorShareCents,
		AdminShareCents:      ev.AdminShareCents,
		Status:               domain.StatusCompleted,
	}, nil
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
