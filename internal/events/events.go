package events

import (
	"time"

	"github.com/example/message-scheduler/internal/schedule"
)

type Type string

const (
	MessageScheduled Type = "message.scheduled"
	MessageUpdated   Type = "message.updated"
	MessageDeleted   Type = "message.deleted"
)

// Lifecycle is published whenever an owner changes one of their messages.
// Message is omitted for deletions.
type Lifecycle struct {
	Type       Type              `json:"type"`
	MessageID  string            `json:"message_id"`
	OwnerID    string            `json:"owner_id"`
	Channel    schedule.Channel  `json:"channel"`
	Message    *schedule.Message `json:"message,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func NewLifecycle(t Type, msg schedule.Message, at time.Time) Lifecycle {
	ev := Lifecycle{
		Type:       t,
		MessageID:  msg.ID,
		OwnerID:    msg.OwnerID,
		Channel:    msg.Channel,
		OccurredAt: at.UTC(),
	}
	if t != MessageDeleted {
		m := msg
		ev.Message = &m
	}
	return ev
}

func (e Lifecycle) Key() []byte {
	return []byte(e.OwnerID + ":" + e.MessageID)
}

// DeliveryReport is the outcome the delivery subsystem reports for a
// message it attempted.
type DeliveryReport struct {
	MessageID  string           `json:"message_id"`
	Channel    schedule.Channel `json:"channel"`
	Status     schedule.Status  `json:"status"`
	Reason     string           `json:"reason,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func (r DeliveryReport) Key() []byte {
	return []byte(r.MessageID)
}
