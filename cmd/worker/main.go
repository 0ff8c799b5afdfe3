// Worker consumes session events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, TELEMETRY_KAFKA_TOPIC, KAFKA_GROUP_ID, and LOKI_URL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"remindme/internal/config"
	"remindme/internal/logging"
	"remindme/internal/telemetry/consumer"
	"remindme/internal/telemetry/loki"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger := logging.Component(logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr), "worker")

	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) == 0 {
		logger.Fatal().Msg("worker: KAFKA_BROKERS is required")
	}
	lokiClient := loki.NewClient(cfg.LokiURL)
	if lokiClient == nil {
		logger.Fatal().Msg("worker: LOKI_URL is required")
	}

	reader := consumer.NewReader(brokers, cfg.TelemetryKafkaTopic, cfg.KafkaGroupID)
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("topic", cfg.TelemetryKafkaTopic).
		Str("group", cfg.KafkaGroupID).
		Str("loki", lokiClient.BaseURL).
		Msg("worker: consuming")

	n := consumer.Run(ctx, reader, lokiClient, logger)
	logger.Info().Int("pushed", n).Msg("worker: stopped")
}
