package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/compozy/plansync/pkg/config"
	"github.com/compozy/plansync/pkg/logger"
	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plansync"

// Service owns the prometheus registry and every collector plansync exports.
type Service struct {
	registry *prom.Registry
	path     string
	enabled  bool
	workflow *WorkflowMetrics
	http     *httpMetrics
}

// NewMonitoringService builds the registry. A disabled service still hands
// out working metric sinks so callers do not branch on configuration.
func NewMonitoringService(ctx context.Context, cfg *config.MonitoringConfig) (*Service, error) {
	log := logger.FromContext(ctx)
	registry := prom.NewRegistry()
	s := &Service{
		registry: registry,
		path:     cfg.Path,
		enabled:  cfg.Enabled,
		workflow: newWorkflowMetrics(),
		http:     newHTTPMetrics(),
	}
	if !cfg.Enabled {
		log.Debug("Monitoring disabled, metrics are not exported")
		return s, nil
	}
	if err := s.Register(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.workflow,
		s.http,
	); err != nil {
		return nil, err
	}
	log.Info("Monitoring service initialized", "path", cfg.Path)
	return s, nil
}

// Register adds collectors to the registry. Nil collectors are skipped.
func (s *Service) Register(cs ...prom.Collector) error {
	if !s.enabled {
		return nil
	}
	for _, c := range cs {
		if c == nil {
			continue
		}
		if err := s.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Enabled() bool { return s.enabled }

func (s *Service) Path() string { return s.path }

// WorkflowMetrics returns the workflow.Metrics implementation.
func (s *Service) WorkflowMetrics() *WorkflowMetrics { return s.workflow }

// GinMiddleware returns Gin middleware recording request counts and latency.
func (s *Service) GinMiddleware() gin.HandlerFunc {
	if !s.enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		s.http.inFlight.Inc()
		defer s.http.inFlight.Dec()
		c.Next()
		s.http.observe(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// ExporterHandler returns an HTTP handler for the metrics endpoint.
func (s *Service) ExporterHandler() http.Handler {
	if !s.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte("Monitoring service not initialized")); err != nil {
				logger.FromContext(r.Context()).Error("Failed to write response", "error", err)
			}
		})
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
