package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelChat
}

// ParseChannel accepts the channel names used by clients. "whatsapp" is the
// legacy name for the chat channel.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return ChannelEmail, nil
	case "chat", "whatsapp":
		return ChannelChat, nil
	default:
		return "", fmt.Errorf("unknown channel %q", s)
	}
}

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed:
		return true
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return status, nil
}

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Message is a notification scheduled on behalf of its owner. Subject is
// empty for chat messages. SentAt is only set once delivery succeeded.
type Message struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Channel      Channel    `json:"channel"`
	Recipient    string     `json:"recipient"`
	Subject      string     `json:"subject,omitempty"`
	Body         string     `json:"body"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
}

// Editable reports whether the message can still be changed by its owner.
func (m Message) Editable() bool {
	return m.Status == StatusPending
}

var (
	ErrNotPending     = errors.New("message is no longer pending")
	ErrInvalidOutcome = errors.New("delivery outcome must be sent or failed")
)

// RecordOutcome applies a delivery result reported for a pending message.
func RecordOutcome(m Message, status Status, at time.Time) (Message, error) {
	if status != StatusSent && status != StatusFailed {
		return Message{}, ErrInvalidOutcome
	}
	if m.Status != StatusPending {
		return Message{}, ErrNotPending
	}
	m.Status = status
	m.SentAt = nil
	if status == StatusSent {
		sentAt := at
		m.SentAt = &sentAt
	}
	return m, nil
}
