// devapi serves the reminders backend API in memory for local development and end-to-end runs of remindctl.
// Set DEVAPI_ADDR (default :8080) and, for production-like runs, DEVAPI_TOKEN_SECRET and APP_ENV.
// SESSION_STORE=redis or postgres keeps revoked tokens there; anything else keeps them in memory.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"remindme/internal/config"
	"remindme/internal/health"
	identityservice "remindme/internal/identity/service"
	"remindme/internal/logging"
	"remindme/internal/security"
	"remindme/internal/server"
	"remindme/internal/storage"
	"remindme/internal/telemetry"
	"remindme/internal/telemetry/loki"
	"remindme/internal/telemetry/metrics"
	otelsetup "remindme/internal/telemetry/otel"
	"remindme/internal/telemetry/producer"
	userrepo "remindme/internal/user/repository"
	"remindme/internal/verification"
)

const (
	devTokenSecret  = "remindme-dev-secret"
	tokenIssuer     = "remindme-devapi"
	rememberMeTTL   = 30 * 24 * time.Hour
	healthInterval  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger := logging.Component(logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr), "devapi")
	if cfg.Env == "production" || cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	serviceName := cfg.ServiceName
	if serviceName == "" || serviceName == "remindctl" {
		serviceName = "remindme-devapi"
	}
	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		logger.Fatal().Err(err).Msg("telemetry providers")
	}
	providers.SetGlobal()

	kafkaProducer := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	emitter := telemetry.Multi{otelsetup.NewEventEmitter(providers.LoggerProvider)}
	if kafkaProducer != nil {
		emitter = append(emitter, kafkaProducer)
		logger.Info().Str("topic", kafkaProducer.Topic()).Msg("kafka telemetry enabled")
	}
	if lokiClient := loki.NewClient(cfg.LokiURL); lokiClient != nil {
		emitter = append(emitter, lokiClient)
		logger.Info().Str("url", lokiClient.BaseURL).Msg("loki telemetry enabled")
	}

	revoked, err := openRevocationStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("revocation store")
	}
	defer revoked.Close()

	secret := cfg.DevAPITokenSecret
	if secret == "" {
		logger.Warn().Msg("DEVAPI_TOKEN_SECRET is not set; using the built-in development secret")
		secret = devTokenSecret
	}
	tokens := security.NewTokenProvider([]byte(secret), tokenIssuer, cfg.TokenTTL())

	var codes verification.Store
	if cfg.Env != "production" {
		codes = verification.NewMemoryStore()
	}
	authLogger := logging.Component(logger, "auth")
	auth := identityservice.NewAuthService(
		userrepo.NewMemoryRepository(),
		codes,
		revoked,
		security.NewHasher(cfg.BcryptCost),
		tokens,
		rememberMeTTL,
		authLogger,
	)

	checker := health.NewChecker(0)
	checker.Add("revocation_store", health.StoreProbe(revoked))

	router := server.NewRouter(server.Deps{
		Auth:           auth,
		Codes:          codes,
		Health:         checker,
		Metrics:        metrics.NewHTTP(prometheus.DefaultRegisterer),
		Emitter:        emitter,
		TracerProvider: providers.TracerProvider,
	})

	srv := &http.Server{
		Addr:              cfg.DevAPIAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.DevAPIAddr).Bool("dev_routes", codes != nil).Msg("devapi: listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("devapi: serve")
		}
	}()

	stopGRPC := serveGRPCHealth(ctx, cfg.DevAPIGRPCAddr, checker, logger)

	<-ctx.Done()
	logger.Info().Msg("devapi: shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// 1. Stop accepting requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("devapi: http shutdown")
	}
	stopGRPC()

	// 2. Let in-flight async emits finish, then flush exporters.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := kafkaProducer.Close(); err != nil {
		logger.Warn().Err(err).Msg("devapi: kafka close")
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("devapi: telemetry shutdown")
	}
	logger.Info().Msg("devapi: stopped")
}

// openRevocationStore keeps revoked tokens in the shared store when one is configured.
// The file store is the client's session file, so it is never used here.
func openRevocationStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.SessionStore {
	case config.StoreRedis, config.StorePostgres:
		return storage.Open(ctx, cfg)
	default:
		return storage.NewMemoryStore(), nil
	}
}

// serveGRPCHealth starts the grpc.health.v1 endpoint when addr is set and returns its stop function.
func serveGRPCHealth(ctx context.Context, addr string, checker *health.Checker, logger zerolog.Logger) func() {
	if addr == "" {
		return func() {}
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", addr).Msg("devapi: grpc listen")
	}
	s, hs := health.NewGRPCServer()
	go checker.Watch(ctx, hs, healthInterval)
	go func() {
		logger.Info().Str("addr", addr).Msg("devapi: grpc health listening")
		if err := s.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("devapi: grpc serve")
		}
	}()
	return s.GracefulStop
}
