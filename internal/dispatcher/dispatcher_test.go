package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/message-scheduler/internal/events"
	"github.com/example/message-scheduler/internal/schedule"
)

var topics = Topics{Email: "dispatch.email", Chat: "dispatch.chat", DeadLetter: "dlq.messages"}

func TestTopicForChannel(t *testing.T) {
	cases := map[schedule.Channel]string{
		schedule.ChannelEmail: "dispatch.email",
		schedule.ChannelChat:  "dispatch.chat",
		"push":                "",
	}

	for input, expected := range cases {
		if got := topics.forChannel(input); got != expected {
			t.Fatalf("forChannel(%s)=%s, expected %s", input, got, expected)
		}
	}
}

type fakeReader struct {
	queue     []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		return kafka.Message{}, context.Canceled
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

type topicWriter struct {
	topic   string
	written map[string][]kafka.Message
}

func (w topicWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.written[w.topic] = append(w.written[w.topic], msgs...)
	return nil
}

func record(t *testing.T, ev events.Lifecycle) kafka.Message {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Value: body}
}

func TestRunRoutesByChannel(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	reader := &fakeReader{queue: []kafka.Message{
		record(t, events.NewLifecycle(events.MessageScheduled, schedule.Message{ID: "m1", OwnerID: "u1", Channel: schedule.ChannelEmail}, now)),
		record(t, events.NewLifecycle(events.MessageUpdated, schedule.Message{ID: "m2", OwnerID: "u1", Channel: schedule.ChannelChat}, now)),
		{Value: []byte("not json")},
		record(t, events.NewLifecycle(events.MessageDeleted, schedule.Message{ID: "m3", OwnerID: "u2", Channel: "fax"}, now)),
	}}
	written := map[string][]kafka.Message{}

	d := Dispatcher{
		ReaderFactory: func() Reader { return reader },
		WriterFactory: func(topic string) events.Writer { return topicWriter{topic: topic, written: written} },
		Topics:        topics,
		Logger:        zerolog.New(io.Discard),
	}

	err := d.Run(context.Background())
	assert.True(t, errors.Is(err, context.Canceled))

	require.Len(t, written["dispatch.email"], 1)
	assert.Equal(t, "u1:m1", string(written["dispatch.email"][0].Key))
	require.Len(t, written["dispatch.chat"], 1)
	assert.Equal(t, "u1:m2", string(written["dispatch.chat"][0].Key))
	require.Len(t, written["dlq.messages"], 1)
	assert.Equal(t, "u2:m3", string(written["dlq.messages"][0].Key))
	assert.Len(t, reader.committed, 4)
}

func TestRunRequiresFactories(t *testing.T) {
	d := Dispatcher{}
	assert.Error(t, d.Run(context.Background()))
}
