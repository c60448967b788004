package transport

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const HealthServiceName = "confectionery"

// HealthServer reports store reachability over grpc.health.v1.
type HealthServer struct {
	server   *health.Server
	store    StorePinger
	interval time.Duration
}

func NewHealthServer(store StorePinger, interval time.Duration) *HealthServer {
	server := health.NewServer()
	server.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{server: server, store: store, interval: interval}
}

func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Run probes the store until ctx is done, then marks every service as not
// serving.
func (h *HealthServer) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return nil
		case <-ticker.C:
			h.probe(ctx)
		}
	}
}

func (h *HealthServer) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.store.Ping(ctx); err != nil {
		log.WithError(err).Warn("health probe failed")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus(HealthServiceName, status)
	h.server.SetServingStatus("", status)
}
