package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/memvault/memvault/pkg/logger"
)

// ServiceName is the service reported alongside the overall "" status.
const ServiceName = "memvault.Memory"

const defaultProbeInterval = 10 * time.Second

// Pinger is satisfied by the relational store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreHealth is the grpc.health.v1 service with its status bound to the
// store. Both "" and ServiceName always carry the same status.
type StoreHealth struct {
	*health.Server
}

func newStoreHealth() *StoreHealth {
	return &StoreHealth{Server: health.NewServer()}
}

// Set reports status for the server and for ServiceName.
func (h *StoreHealth) Set(status healthpb.HealthCheckResponse_ServingStatus) {
	for _, svc := range []string{"", ServiceName} {
		h.SetServingStatus(svc, status)
	}
}

// watch pings probe every interval until ctx is done and logs each change
// between SERVING and NOT_SERVING.
func (h *StoreHealth) watch(ctx context.Context, probe Pinger, interval time.Duration, log logger.Logger) {
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	up := true
	for {
		pctx, cancel := context.WithTimeout(ctx, interval)
		err := probe.Ping(pctx)
		cancel()
		if ctx.Err() != nil {
			return
		}

		if healthy := err == nil; healthy != up {
			up = healthy
			if up {
				log.Info("store reachable again", "status", healthpb.HealthCheckResponse_SERVING)
				h.Set(healthpb.HealthCheckResponse_SERVING)
			} else {
				log.Warn("store unreachable", "status", healthpb.HealthCheckResponse_NOT_SERVING, "error", err)
				h.Set(healthpb.HealthCheckResponse_NOT_SERVING)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
