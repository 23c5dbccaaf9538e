package model

import "time"

type EventKind string

const (
	EventVisit    EventKind = "visit"
	EventReward   EventKind = "reward"
	EventCourtesy EventKind = "courtesy"
)

// Event is the payload handed to the notification dispatcher and published to Kafka.
type Event struct {
	ID            string    `json:"id"` // entry ULID
	Kind          EventKind `json:"kind"`
	TenantID      int64     `json:"tenant_id"`
	IdentityID    int64     `json:"identity_id"`
	At            time.Time `json:"at"`
	Method        string    `json:"method,omitempty"`
	Streak        int       `json:"streak,omitempty"`
	RewardLabel   string    `json:"reward_label,omitempty"`
	ActorID       int64     `json:"actor_id,omitempty"`
	Justification string    `json:"justification,omitempty"`
}
