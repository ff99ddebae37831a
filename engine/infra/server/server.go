package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/compozy/plansync/engine/infra/monitoring"
	"github.com/compozy/plansync/engine/workflow"
	wfrouter "github.com/compozy/plansync/engine/workflow/router"
	"github.com/compozy/plansync/pkg/config"
	"github.com/compozy/plansync/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	httpReadTimeout       = 15 * time.Second
	httpIdleTimeout       = 60 * time.Second
	serverShutdownTimeout = 5 * time.Second
	APIPrefix             = "/api/v0"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies are the components the HTTP surface is built from.
type Dependencies struct {
	Service    wfrouter.Service
	Dispatcher workflow.Dispatcher
	Monitoring *monitoring.Service
	Checks     map[string]HealthChecker
	Version    string
}

type Server struct {
	cfg        *config.ServerConfig
	deps       *Dependencies
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(ctx context.Context, cfg *config.ServerConfig, deps *Dependencies) (*Server, error) {
	if deps == nil || deps.Service == nil || deps.Dispatcher == nil {
		return nil, errors.New("server: service and dispatcher are required")
	}
	s := &Server{cfg: cfg, deps: deps}
	s.router = s.buildRouter(ctx)
	return s, nil
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter(ctx context.Context) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware(logger.FromContext(ctx)))
	r.Use(LoggerMiddleware())
	if s.deps.Monitoring != nil {
		r.Use(s.deps.Monitoring.GinMiddleware())
		if s.deps.Monitoring.Enabled() {
			r.GET(s.deps.Monitoring.Path(), gin.WrapH(s.deps.Monitoring.ExporterHandler()))
		}
	}
	r.GET("/healthz", CreateHealthHandler(s.deps.Checks, s.deps.Version))
	api := r.Group(APIPrefix)
	api.Use(UserMiddleware())
	wfrouter.NewHandlers(s.deps.Service, s.deps.Dispatcher).Register(api)
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	writeTimeout := s.cfg.Timeout
	if writeTimeout <= 0 {
		writeTimeout = httpReadTimeout
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  httpIdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	log.Info("HTTP server stopped")
	return nil
}
