// Package outbox moves audit rows from the outbox table onto Kafka.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/kafka"
	"github.com/herwingx/nexogym-sub000/internal/metrics"
	"github.com/herwingx/nexogym-sub000/internal/model"
	"go.uber.org/zap"
)

// Source is the outbox table as the relay sees it.
type Source interface {
	ListPending(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
}

type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Relay publishes pending rows in id order. A publish failure stops the batch so rows
// of one aggregate never overtake each other.
type Relay struct {
	src Source
	pub Publisher
	log *zap.Logger

	BatchSize int
	Interval  time.Duration
}

func NewRelay(src Source, pub Publisher, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{src: src, pub: pub, log: log, BatchSize: 100, Interval: time.Second}
}

// RunOnce relays one batch and reports how many rows were published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	rows, err := r.src.ListPending(ctx, r.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	published := 0
	for _, row := range rows {
		msg := kafka.Message{
			Topic: row.Topic,
			Key:   []byte(row.Aggregate + ":" + row.AggregateID),
			Value: row.Payload,
			Headers: []kafka.Header{
				{Key: "aggregate", Value: []byte(row.Aggregate)},
			},
		}
		if err := r.pub.Publish(ctx, msg); err != nil {
			metrics.OutboxRelayedTotal.WithLabelValues("failed").Inc()
			if mErr := r.src.MarkFailed(ctx, row.ID); mErr != nil {
				r.log.Warn("outbox: mark failed", zap.Int64("id", row.ID), zap.Error(mErr))
			}
			return published, fmt.Errorf("publish outbox %d: %w", row.ID, err)
		}
		if err := r.src.MarkPublished(ctx, row.ID); err != nil {
			// the row will be published again; consumers dedupe on aggregate_id
			return published, fmt.Errorf("mark published %d: %w", row.ID, err)
		}
		metrics.OutboxRelayedTotal.WithLabelValues("published").Inc()
		published++
	}
	return published, nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by the next.
func (r *Relay) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		r.Interval = time.Second
	}
	if r.BatchSize <= 0 {
		r.BatchSize = 100
	}

	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		n, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.log.Warn("outbox relay batch failed", zap.Int("published", n), zap.Error(err))
		}
		if n == r.BatchSize && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
