package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

// MetricsServer serves the Prometheus scrape endpoint as an observability
// side-car.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer builds a server exposing handler at /metrics on port.
func NewMetricsServer(port int, handler http.Handler) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background.
func (s *MetricsServer) Start() {
	go func() {
		logger.Infof("metrics endpoint listening on %s/metrics", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics server stopped: %v", err)
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *MetricsServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
