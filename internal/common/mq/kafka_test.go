package mq

import (
	"context"
	"testing"
	"time"
)

func TestToKafkaMessage(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := &Message{
		ID:        "abc",
		Body:      []byte(`{"x":1}`),
		Headers:   map[string]string{"b": "2", "a": "1"},
		Timestamp: ts,
	}
	km := toKafkaMessage("failures", msg)

	if km.Topic != "failures" || string(km.Key) != "abc" || string(km.Value) != `{"x":1}` {
		t.Fatalf("unexpected message %+v", km)
	}
	if !km.Time.Equal(ts) {
		t.Fatalf("time = %v", km.Time)
	}
	want := []string{"a", "b", headerID, headerTimestamp}
	if len(km.Headers) != len(want) {
		t.Fatalf("headers = %+v", km.Headers)
	}
	for i, h := range km.Headers {
		if h.Key != want[i] {
			t.Fatalf("header %d = %q, want %q", i, h.Key, want[i])
		}
	}
	if got := string(km.Headers[3].Value); got != ts.Format(time.RFC3339Nano) {
		t.Fatalf("timestamp header = %q", got)
	}
}

func TestToKafkaMessageStampsMissingTime(t *testing.T) {
	km := toKafkaMessage("t", &Message{Body: []byte("x")})
	if km.Time.IsZero() {
		t.Fatal("expected a timestamp")
	}
	if len(km.Key) != 0 {
		t.Fatalf("key = %q", km.Key)
	}
}

func TestProducerValidation(t *testing.T) {
	if _, err := NewKafkaProducer(KafkaConfig{}); err == nil {
		t.Fatal("expected error without brokers")
	}
	p, err := NewKafkaProducer(KafkaConfig{Brokers: []string{"127.0.0.1:1"}})
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	if err := p.Publish(ctx, "", NewMessage("id", nil)); err == nil {
		t.Fatal("expected error for empty topic")
	}
	if err := p.Publish(ctx, "t", nil); err == nil {
		t.Fatal("expected error for nil message")
	}
	if err := p.PublishBatch(ctx, "t", nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}
