// Package telemetry carries session lifecycle events to OTel logs, Kafka and Loki.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Session lifecycle event types.
const (
	EventLogin         = "session.login"
	EventLogout        = "session.logout"
	EventExpired       = "session.expired"
	EventRefreshed     = "session.refreshed"
	EventRefreshFailed = "session.refresh_failed"
	EventRestored      = "session.restored"
)

// Event is a single session lifecycle event. It never carries the bearer token.
type Event struct {
	UserID    string          `json:"userId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// EventEmitter emits session events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// Multi fans an event out to every non-nil emitter and joins their errors.
type Multi []EventEmitter

// Emit implements EventEmitter.
func (m Multi) Emit(ctx context.Context, event *Event) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
