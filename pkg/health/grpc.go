package health

import (
	"context"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultGRPCUpdateInterval is how often readiness is mirrored into the gRPC health service.
const DefaultGRPCUpdateInterval = 5 * time.Second

// RegisterWithGRPC registers the standard grpc.health.v1.Health service on
// server and keeps the overall ("") status in sync with the readiness checks
// until ctx is cancelled, after which the status is NOT_SERVING.
func (c *Checker) RegisterWithGRPC(ctx context.Context, server *grpc.Server, interval time.Duration) *grpchealth.Server {
	if interval <= 0 {
		interval = DefaultGRPCUpdateInterval
	}

	hs := grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(server, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		c.syncGRPC(ctx, hs, interval)
		for {
			select {
			case <-ctx.Done():
				hs.Shutdown()
				return
			case <-ticker.C:
				c.syncGRPC(ctx, hs, interval)
			}
		}
	}()

	return hs
}

func (c *Checker) syncGRPC(ctx context.Context, hs *grpchealth.Server, timeout time.Duration) {
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status, err := c.CheckReadiness(checkCtx)
	if err != nil || !status.Healthy {
		hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		return
	}
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
}
