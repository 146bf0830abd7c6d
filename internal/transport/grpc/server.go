// Package grpc exposes the product service's health over the standard gRPC health protocol.
package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported by the health service next to the overall ("") status.
const ServiceName = "products"

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer reports SERVING while the database answers pings.
type HealthServer struct {
	health *health.Server
	db     Pinger
	logger *slog.Logger
}

func NewHealthServer(db Pinger, logger *slog.Logger) *HealthServer {
	return &HealthServer{
		health: health.NewServer(),
		db:     db,
		logger: logger.With("component", "grpc-health"),
	}
}

// Register adds the health service to s.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

// Check pings the database once and publishes the resulting status.
func (h *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.db.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "Database ping failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	return status
}

// Run checks immediately and then every interval until ctx is done.
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) {
	h.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING and ignores later updates.
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
}
