package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"swfdiff/internal/common/mq"
	appErr "swfdiff/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	topic string
	msgs  []*mq.Message
	err   error
}

func (f *fakeProducer) Publish(ctx context.Context, topic string, m *mq.Message) error {
	f.topic = topic
	f.msgs = append(f.msgs, m)
	return f.err
}

func (f *fakeProducer) PublishBatch(ctx context.Context, topic string, ms []*mq.Message) error {
	for _, m := range ms {
		if err := f.Publish(ctx, topic, m); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeProducer) Ping(ctx context.Context) error { return nil }
func (f *fakeProducer) Close() error                   { return nil }

func TestKafkaNotifierPublishesEvent(t *testing.T) {
	p := &fakeProducer{}
	n, err := NewKafkaNotifier(p, "swfdiff.failures")
	require.NoError(t, err)

	rec := record("fp9", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, n.Notify(context.Background(), rec))

	require.Len(t, p.msgs, 1)
	assert.Equal(t, "swfdiff.failures", p.topic)
	msg := p.msgs[0]
	assert.Equal(t, "fp9", msg.ID)
	assert.Equal(t, "failure.created", msg.Headers["event"])
	assert.Equal(t, "output-mismatch", msg.Headers["reason"])

	var ev FailureEvent
	require.NoError(t, json.Unmarshal(msg.Body, &ev))
	assert.Equal(t, "failure.created", ev.Event)
	assert.Equal(t, "fp9", ev.Fingerprint)
	assert.Equal(t, uint64(42), ev.Seed)
}

func TestKafkaNotifierErrors(t *testing.T) {
	_, err := NewKafkaNotifier(&fakeProducer{}, "")
	assert.True(t, appErr.Is(err, appErr.ConfigInvalid))

	n, err := NewKafkaNotifier(&fakeProducer{err: errors.New("down")}, "t")
	require.NoError(t, err)
	err = n.Notify(context.Background(), record("fp", time.Now()))
	assert.True(t, appErr.Is(err, appErr.PublishFailed))
}
