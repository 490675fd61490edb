package store

import (
	"context"
	"encoding/json"

	"swfdiff/internal/common/mq"
	appErr "swfdiff/pkg/errors"
)

// Notifier announces newly created fingerprints to triage tooling.
type Notifier interface {
	Notify(ctx context.Context, rec FailureRecord) error
}

// FailureEvent is the JSON body published for a new fingerprint.
type FailureEvent struct {
	Event string `json:"event"`
	FailureRecord
}

const eventFailureCreated = "failure.created"

// KafkaNotifier publishes FailureEvents keyed by fingerprint.
type KafkaNotifier struct {
	producer mq.Producer
	topic    string
}

func NewKafkaNotifier(producer mq.Producer, topic string) (*KafkaNotifier, error) {
	if topic == "" {
		return nil, appErr.ConfigError("kafka.topic", "required")
	}
	return &KafkaNotifier{producer: producer, topic: topic}, nil
}

func (n *KafkaNotifier) Notify(ctx context.Context, rec FailureRecord) error {
	body, err := json.Marshal(FailureEvent{Event: eventFailureCreated, FailureRecord: rec})
	if err != nil {
		return appErr.Wrapf(err, appErr.PublishFailed, "encode failure event")
	}
	msg := mq.NewMessage(rec.Fingerprint, body)
	msg.SetHeader("event", eventFailureCreated)
	msg.SetHeader("reason", rec.Reason)
	if err := n.producer.Publish(ctx, n.topic, msg); err != nil {
		return appErr.Wrapf(err, appErr.PublishFailed, "publish failure event")
	}
	return nil
}
