package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/herwingx/nexogym-sub000/internal/kafka"
	"github.com/herwingx/nexogym-sub000/internal/metrics"
	"github.com/herwingx/nexogym-sub000/internal/model"
)

// MessageWriter is the subset of the Kafka producer the publisher needs.
type MessageWriter interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher puts events on a topic for the notifier worker. Messages are keyed
// by identity so one member's events stay ordered.
type KafkaPublisher struct {
	w     MessageWriter
	topic string
}

func NewKafkaPublisher(w MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: w, topic: topic}
}

func (p *KafkaPublisher) Notify(ctx context.Context, ev model.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(ev.TenantID, 10) + ":" + strconv.FormatInt(ev.IdentityID, 10)),
		Value: b,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	}
	if err := p.w.Publish(ctx, msg); err != nil {
		metrics.NotificationFailuresTotal.WithLabelValues("kafka").Inc()
		return fmt.Errorf("publish %s event: %w", ev.Kind, err)
	}
	return nil
}
