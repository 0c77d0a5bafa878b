package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeCaseCreated   Type = "case.created"
	TypeCaseDeleted   Type = "case.deleted"
	TypeCaseReordered Type = "case.reordered"
)

type Event struct {
	ID        string `json:"id"`
	Seq       uint64 `json:"seq"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"`
}

func New(eventType Type, actorID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ActorID:   actorID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
