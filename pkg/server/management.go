package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nimburion/docroute/pkg/config"
	"github.com/nimburion/docroute/pkg/health"
	"github.com/nimburion/docroute/pkg/middleware/recovery"
	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/observability/metrics"
)

// ManagementServer serves operational endpoints on a port separate from
// application traffic:
//   - /health: liveness, always 200
//   - /ready: readiness, 503 when a required dependency is down
//   - /metrics: Prometheus exposition
type ManagementServer struct {
	*Server
	router          *mux.Router
	healthRegistry  *health.Registry
	metricsRegistry *metrics.Registry
}

// NewManagementServer registers the standard endpoints on a gorilla/mux router.
func NewManagementServer(
	cfg config.ManagementConfig,
	healthRegistry *health.Registry,
	metricsRegistry *metrics.Registry,
	log logger.Logger,
) *ManagementServer {
	if healthRegistry == nil {
		healthRegistry = health.NewRegistry()
	}
	if metricsRegistry == nil {
		metricsRegistry = metrics.NewRegistry()
	}

	r := mux.NewRouter()
	r.Use(mux.MiddlewareFunc(recovery.Recovery(log)))

	s := &ManagementServer{
		router:          r,
		healthRegistry:  healthRegistry,
		metricsRegistry: metricsRegistry,
	}
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", metricsRegistry.Handler()).Methods(http.MethodGet)

	s.Server = NewServer("management", Config{
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}, r, log)
	return s
}

// Router returns the underlying router for registering extra admin routes.
func (s *ManagementServer) Router() *mux.Router {
	return s.router
}

func (s *ManagementServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": string(health.StatusHealthy)})
}

func (s *ManagementServer) handleReady(w http.ResponseWriter, r *http.Request) {
	report := s.healthRegistry.Check(r.Context())
	status := http.StatusOK
	if !report.Ready() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
