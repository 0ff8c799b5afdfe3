package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*Event
	emitErr error
	delay   time.Duration
	done    chan struct{}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *Event) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Event(nil), m.events...)
}

func waitN(t *testing.T, done <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d emits", i, n)
		}
	}
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitAsync(nil, &Event{EventType: EventLogin})
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitAsync(emitter, nil)
	time.Sleep(10 * time.Millisecond)
	if events := emitter.getEvents(); len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 1)}
	EmitAsync(emitter, &Event{UserID: "u1", EventType: EventLogin, Source: "remindctl"})
	waitN(t, emitter.done, 1)

	events := emitter.getEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].UserID != "u1" {
		t.Errorf("event user_id = %q, want %q", events[0].UserID, "u1")
	}
	if events[0].EventType != EventLogin {
		t.Errorf("event type = %q, want %q", events[0].EventType, EventLogin)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be filled in")
	}
}

func TestEmitAsync_KeepsCreatedAt(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 1)}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	EmitAsync(emitter, &Event{EventType: EventLogout, CreatedAt: at})
	waitN(t, emitter.done, 1)
	if got := emitter.getEvents()[0].CreatedAt; !got.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", got, at)
	}
}

func TestEmitAsync_ErrorHandling(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: context.DeadlineExceeded, done: make(chan struct{}, 1)}
	// Should not panic on error
	EmitAsync(emitter, &Event{EventType: EventExpired})
	waitN(t, emitter.done, 1)
}

func TestEmitAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 10)}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(emitter, &Event{EventType: EventRefreshed})
		}()
	}
	wg.Wait()
	waitN(t, emitter.done, 10)
	if events := emitter.getEvents(); len(events) != 10 {
		t.Errorf("expected 10 events, got %d", len(events))
	}
}

func TestMulti_Emit(t *testing.T) {
	ok := &mockEventEmitter{}
	failing := &mockEventEmitter{emitErr: errors.New("boom")}
	m := Multi{ok, nil, failing}
	err := m.Emit(context.Background(), &Event{EventType: EventLogin})
	if err == nil || err.Error() != "boom" {
		t.Errorf("Emit error = %v, want boom", err)
	}
	if len(ok.getEvents()) != 1 || len(failing.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
	if err := (Multi{}).Emit(context.Background(), &Event{}); err != nil {
		t.Errorf("empty Multi Emit = %v, want nil", err)
	}
}
