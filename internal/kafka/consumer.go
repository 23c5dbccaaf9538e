package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Config describes one consumer group over an entry event topic.
type Config struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int           // default 1KB
	MaxBytes       int           // default 10MB
	CommitInterval time.Duration // default 1s
	MaxWait        time.Duration // default 50ms
	// FromBeginning makes a group with no committed offset start at the oldest
	// retained event instead of the newest.
	FromBeginning bool
}

// Consumer reads check-in and courtesy events for one group.
type Consumer struct {
	r *kafka.Reader
}

func NewConsumerFromConfig(c Config) *Consumer {
	minBytes := c.MinBytes
	if minBytes <= 0 {
		minBytes = 1 << 10
	}
	maxBytes := c.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	commitEvery := c.CommitInterval
	if commitEvery <= 0 {
		commitEvery = time.Second
	}
	maxWait := c.MaxWait
	if maxWait <= 0 {
		maxWait = 50 * time.Millisecond
	}
	start := kafka.LastOffset
	if c.FromBeginning {
		start = kafka.FirstOffset
	}

	return &Consumer{r: kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		MinBytes:       minBytes,
		MaxBytes:       maxBytes,
		CommitInterval: commitEvery,
		MaxWait:        maxWait,
		StartOffset:    start,
	})}
}

type Message = kafka.Message

// Fetch blocks for the next event; offsets advance only on Commit.
func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

// Commit acknowledges msgs. The history writer commits a whole flushed batch at once.
func (c *Consumer) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return c.r.CommitMessages(ctx, msgs...)
}

func (c *Consumer) Close() error { return c.r.Close() }
