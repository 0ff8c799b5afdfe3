package health

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewGRPCServer returns a gRPC server instrumented with otelgrpc that serves grpc.health.v1.Health.
// The returned health server starts NOT_SERVING until Update runs.
func NewGRPCServer() (*grpc.Server, *grpchealth.Server) {
	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

// Update runs the probes once and sets the overall serving status of hs.
func (c *Checker) Update(ctx context.Context, hs *grpchealth.Server) bool {
	checks, ok := c.Check(ctx)
	if ok {
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		return true
	}
	log.Warn().Interface("checks", checks).Msg("health: probes failing")
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return false
}

// Watch calls Update every interval until ctx is done, then marks hs as shutting down.
func (c *Checker) Watch(ctx context.Context, hs *grpchealth.Server, interval time.Duration) {
	c.Update(ctx, hs)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			c.Update(ctx, hs)
		}
	}
}
