package model

import "time"

// OutboxEvent is an audit row written in the same transaction as the entry it
// describes. The relay publishes it and stamps PublishedAt.
type OutboxEvent struct {
	ID          int64      `db:"id"`
	Aggregate   string     `db:"aggregate"`    // e.g. "entry"
	AggregateID string     `db:"aggregate_id"` // entry.ID
	Topic       string     `db:"topic"`
	Payload     []byte     `db:"payload"`
	Attempts    int        `db:"attempts"`
	PublishedAt *time.Time `db:"published_at"`
	CreatedAt   time.Time  `db:"created_at"`
}
