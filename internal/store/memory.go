package store

import (
	"context"
	"sync"
	"time"

	"github.com/example/message-scheduler/internal/schedule"
)

// MemoryStore keeps messages and users in process memory. New messages are
// placed in front of older ones.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []schedule.Message
	users    []schedule.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(_ context.Context, msg schedule.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(msg.ID) >= 0 {
		return ErrDuplicate
	}
	s.messages = append([]schedule.Message{clone(msg)}, s.messages...)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, msg schedule.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(msg.ID)
	if i < 0 {
		return ErrNotFound
	}
	if !s.messages[i].Editable() {
		return schedule.ErrNotPending
	}
	s.messages[i] = clone(msg)
	return nil
}

func (s *MemoryStore) RecordOutcome(_ context.Context, id string, status schedule.Status, at time.Time) (schedule.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return schedule.Message{}, ErrNotFound
	}
	updated, err := schedule.RecordOutcome(s.messages[i], status, at)
	if err != nil {
		return schedule.Message{}, err
	}
	s.messages[i] = updated
	return clone(updated), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (schedule.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return schedule.Message{}, ErrNotFound
	}
	return clone(s.messages[i]), nil
}

func (s *MemoryStore) ListByOwner(_ context.Context, ownerID string) ([]schedule.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []schedule.Message{}
	for _, m := range s.messages {
		if m.OwnerID == ownerID {
			out = append(out, clone(m))
		}
	}
	return out, nil
}

func (s *MemoryStore) List(_ context.Context) ([]schedule.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schedule.Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, clone(m))
	}
	return out, nil
}

func (s *MemoryStore) AddUser(u schedule.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == u.ID {
			s.users[i] = u
			return
		}
	}
	s.users = append(s.users, u)
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]schedule.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]schedule.User{}, s.users...), nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (schedule.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return schedule.User{}, ErrNotFound
}

func (s *MemoryStore) indexOf(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// clone detaches SentAt so callers cannot write through to stored messages.
func clone(m schedule.Message) schedule.Message {
	if m.SentAt != nil {
		sentAt := *m.SentAt
		m.SentAt = &sentAt
	}
	return m
}
