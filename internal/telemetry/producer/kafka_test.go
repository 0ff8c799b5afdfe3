package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"remindme/internal/telemetry"
)

type fakeWriter struct {
	msgs    []kafka.Message
	err     error
	closed  bool
	hadDead bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.hadDead = ctx.Deadline()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaProducer_Disabled(t *testing.T) {
	if p := NewKafkaProducer(nil, "topic"); p != nil {
		t.Error("no brokers should disable the producer")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, ""); p != nil {
		t.Error("empty topic should disable the producer")
	}
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &telemetry.Event{}); err != nil {
		t.Errorf("nil producer Emit = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil producer Close = %v", err)
	}
}

func TestNewKafkaProducer_Topic(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"}, "session-events")
	if p.Topic() != "session-events" {
		t.Errorf("Topic = %q, want %q", p.Topic(), "session-events")
	}
	_ = p.Close()
}

func TestKafkaProducer_Emit(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "t"}
	if err := p.Emit(context.Background(), &telemetry.Event{UserID: "u1", EventType: telemetry.EventLogin}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "u1" {
		t.Errorf("key = %q, want u1", msg.Key)
	}
	if !w.hadDead {
		t.Error("write context should carry a deadline")
	}
	var got telemetry.Event
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.EventType != telemetry.EventLogin {
		t.Errorf("eventType = %q, want %q", got.EventType, telemetry.EventLogin)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != telemetry.EventLogin {
		t.Errorf("headers = %+v", msg.Headers)
	}

	if err := p.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(nil) = %v", err)
	}
	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("Close = %v, closed=%v", err, w.closed)
	}
}

func TestKafkaProducer_EmitError(t *testing.T) {
	want := errors.New("broker down")
	p := &KafkaProducer{writer: &fakeWriter{err: want}, topic: "t"}
	if err := p.Emit(context.Background(), &telemetry.Event{EventType: telemetry.EventLogout}); !errors.Is(err, want) {
		t.Errorf("Emit = %v, want %v", err, want)
	}
}
