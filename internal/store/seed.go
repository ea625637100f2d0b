package store

import (
	"context"
	"fmt"
	"time"

	"github.com/example/message-scheduler/internal/schedule"
)

func DemoUsers() []schedule.User {
	return []schedule.User{
		{ID: "1", Email: "admin@example.com", Name: "Admin User", Role: schedule.RoleAdmin},
		{ID: "2", Email: "john@example.com", Name: "John Doe", Role: schedule.RoleUser},
		{ID: "3", Email: "jane@example.com", Name: "Jane Smith", Role: schedule.RoleUser},
		{ID: "4", Email: "bob@example.com", Name: "Bob Johnson", Role: schedule.RoleUser},
	}
}

// DemoMessages returns sample messages timed relative to now, oldest first.
func DemoMessages(now time.Time) []schedule.Message {
	at := func(d time.Duration) time.Time { return now.Add(d) }
	ptr := func(t time.Time) *time.Time { return &t }
	return []schedule.Message{
		{
			ID: "3", OwnerID: "2", Channel: schedule.ChannelEmail,
			Recipient: "customer2@example.com", Subject: "Appointment Reminder",
			Body:         "This is a reminder about your upcoming appointment.",
			ScheduledFor: at(-time.Hour), Status: schedule.StatusFailed,
			CreatedAt: at(-2 * time.Hour),
		},
		{
			ID: "4", OwnerID: "4", Channel: schedule.ChannelChat,
			Recipient: "+0987654321", Body: "Thank you for your purchase!",
			ScheduledFor: at(-30 * time.Minute), Status: schedule.StatusSent,
			CreatedAt: at(-time.Hour), SentAt: ptr(at(-30 * time.Minute)),
		},
		{
			ID: "2", OwnerID: "3", Channel: schedule.ChannelChat,
			Recipient: "+1234567890", Body: "Your order has been shipped!",
			ScheduledFor: at(12 * time.Hour), Status: schedule.StatusSent,
			CreatedAt: at(-24 * time.Hour), SentAt: ptr(at(-time.Hour)),
		},
		{
			ID: "1", OwnerID: "2", Channel: schedule.ChannelEmail,
			Recipient: "customer1@example.com", Subject: "Welcome Newsletter",
			Body:         "Welcome to our monthly newsletter!",
			ScheduledFor: at(24 * time.Hour), Status: schedule.StatusPending,
			CreatedAt: now,
		},
	}
}

// Seed loads the demo users and messages into s.
func Seed(ctx context.Context, s *MemoryStore, now time.Time) error {
	for _, u := range DemoUsers() {
		s.AddUser(u)
	}
	for _, m := range DemoMessages(now) {
		if err := s.Create(ctx, m); err != nil {
			return fmt.Errorf("seed message %s: %w", m.ID, err)
		}
	}
	return nil
}
