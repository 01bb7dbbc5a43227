// Package server exposes the validator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/config"
	"github.com/tissguard/validator/engine"
	"github.com/tissguard/validator/pkg/logger"
)

// Server serves validation, reference-table and health endpoints.
type Server struct {
	config    config.ServerConfig
	validator *engine.Validator
	settings  tv.Settings
	registry  *prometheus.Registry
	router    *gin.Engine
}

// New creates a server over v. settings are the defaults applied when a
// request does not override a toggle.
func New(v *engine.Validator, cfg config.ServerConfig, settings tv.Settings) *Server {
	if settings == nil {
		settings = tv.DefaultSettings()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		v.Metrics().Collector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		config:    cfg,
		validator: v,
		settings:  settings,
		registry:  registry,
	}
	s.buildRouter()
	return s
}

func (s *Server) buildRouter() {
	if s.config.Mode != "" {
		gin.SetMode(s.config.Mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())

	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	v1.Use(BodyLimitMiddleware(s.config.MaxBodyBytes))
	v1.POST("/validate", s.validate)
	v1.GET("/selftest", s.selfTest)

	tuss := v1.Group("/tuss")
	tuss.POST("/import", s.importTable)
	tuss.GET("/count", s.countTable)

	s.router = router
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.config.ReadTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", s.config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Debug("Received shutdown signal, initiating graceful shutdown")
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
