package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/message-scheduler/internal/schedule"
)

type fakeWriter struct {
	mu       sync.Mutex
	failures int
	records  []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("broker unavailable")
	}
	f.records = append(f.records, msgs...)
	return nil
}

func TestPublishRetriesTransientErrors(t *testing.T) {
	w := &fakeWriter{failures: 2}
	p := NewPublisher(w, "messages.lifecycle")

	msg := schedule.Message{ID: "m1", OwnerID: "u1", Channel: schedule.ChannelEmail, Status: schedule.StatusPending}
	ev := NewLifecycle(MessageScheduled, msg, time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC))
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, w.records, 1)
	assert.Equal(t, "u1:m1", string(w.records[0].Key))

	var decoded Lifecycle
	require.NoError(t, json.Unmarshal(w.records[0].Value, &decoded))
	assert.Equal(t, MessageScheduled, decoded.Type)
	require.NotNil(t, decoded.Message)
	assert.Equal(t, "m1", decoded.Message.ID)
}

func TestPublishGivesUp(t *testing.T) {
	w := &fakeWriter{failures: 1 << 30}
	p := NewPublisher(w, "messages.lifecycle")
	p.MaxElapsedTime = 50 * time.Millisecond

	err := p.Publish(context.Background(), DeliveryReport{MessageID: "m1"})
	assert.Error(t, err)
	assert.Empty(t, w.records)
}

func TestDeletedLifecycleHasNoMessage(t *testing.T) {
	msg := schedule.Message{ID: "m1", OwnerID: "u1", Channel: schedule.ChannelChat}
	ev := NewLifecycle(MessageDeleted, msg, time.Now())
	assert.Nil(t, ev.Message)
	assert.Equal(t, schedule.ChannelChat, ev.Channel)
}
