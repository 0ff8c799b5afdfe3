// Package consumer reads session events from Kafka and forwards them to an emitter (Loki in cmd/worker).
package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"remindme/internal/telemetry"
)

const pushTimeout = 10 * time.Second

// MessageReader is the subset of *kafka.Reader used by Run.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// NewReader returns a consumer-group reader for topic. The caller closes it.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// Run reads messages until ctx is cancelled and emits each decoded event.
// Read, decode and emit failures are logged and skipped. Returns the number of events emitted.
func Run(ctx context.Context, reader MessageReader, emitter telemetry.EventEmitter, logger zerolog.Logger) int {
	emitted := 0
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return emitted
			}
			logger.Warn().Err(err).Msg("consumer: kafka read failed")
			continue
		}

		var event telemetry.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("consumer: skipping malformed event")
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		err = emitter.Emit(pushCtx, &event)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("event_type", event.EventType).Msg("consumer: push failed")
			continue
		}
		emitted++
	}
}
