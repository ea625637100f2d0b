package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/message-scheduler/internal/schedule"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// MessageRepository holds scheduled messages. List results are ordered
// newest first.
//
// Update and RecordOutcome only change a message whose stored status is
// still pending and return schedule.ErrNotPending otherwise. RecordOutcome
// writes nothing but the status and the sent time.
type MessageRepository interface {
	Create(ctx context.Context, msg schedule.Message) error
	Update(ctx context.Context, msg schedule.Message) error
	RecordOutcome(ctx context.Context, id string, status schedule.Status, at time.Time) (schedule.Message, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (schedule.Message, error)
	ListByOwner(ctx context.Context, ownerID string) ([]schedule.Message, error)
	List(ctx context.Context) ([]schedule.Message, error)
}

type UserRepository interface {
	ListUsers(ctx context.Context) ([]schedule.User, error)
	GetUser(ctx context.Context, id string) (schedule.User, error)
}
