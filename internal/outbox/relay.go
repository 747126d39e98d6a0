package outbox

import (
	"context"
	"time"

	"bookstore-be/internal/db"
	"bookstore-be/internal/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Relay polls unsent outbox rows and publishes them. Delivery is at least
// once; consumers dedupe on the event_id header.
type Relay struct {
	store  Store
	q      db.DBTX
	writer MessageWriter
	tick   time.Duration
	batch  int
}

func NewRelay(store Store, q db.DBTX, writer MessageWriter) *Relay {
	return &Relay{store: store, q: q, writer: writer, tick: time.Second, batch: 100}
}

func (r *Relay) Run(ctx context.Context) {
	log := logger.L().With(zap.String("component", "outbox-relay"))
	log.Info("outbox relay started")

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil {
				log.Warn("outbox flush failed", zap.Error(err))
			}
		case <-ctx.Done():
			log.Info("outbox relay stopped")
			return
		}
	}
}

// Flush publishes one batch and returns how many rows were marked sent.
// A failed publish leaves the row pending for the next tick.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	records, err := r.store.FetchPending(ctx, r.q, r.batch)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range records {
		msg := kafka.Message{
			Key:   []byte(rec.Key), // order id, keeps per-order ordering
			Value: rec.Payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(rec.Topic)},
				{Key: "event_id", Value: []byte(rec.EventID)},
			},
		}
		if err := r.writer.WriteMessages(ctx, msg); err != nil {
			logger.FromCtx(ctx).Warn("failed to publish outbox event",
				zap.Int64("id", rec.ID), zap.String("topic", rec.Topic), zap.Error(err))
			// keep order: stop at the first failure
			return sent, nil
		}
		if err := r.store.MarkSent(ctx, r.q, rec.ID); err != nil {
			logger.FromCtx(ctx).Warn("failed to mark outbox event sent",
				zap.Int64("id", rec.ID), zap.Error(err))
			return sent, nil
		}
		sent++
	}
	return sent, nil
}
