// Package web is the HTTP layer: an echo server with request logging, error
// mapping, health and metrics endpoints. Resource routes are registered by the
// service handlers.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"food-delivery/internal/config"
	"food-delivery/internal/logger"
	"food-delivery/internal/metrics"

	"github.com/labstack/echo/v4"
)

// Registrar mounts a resource's routes on the authenticated /api group.
type Registrar interface {
	Register(g *echo.Group)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo    *echo.Echo
	http    *http.Server
	cfg     config.ServerConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	health  HealthChecker
	service string
}

// NewServer builds the echo router. auth guards every route under /api.
func NewServer(cfg config.ServerConfig, service string, log *logger.Logger, m *metrics.Metrics,
	health HealthChecker, auth echo.MiddlewareFunc, registrars ...Registrar) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		cfg:     cfg,
		logger:  log,
		metrics: m,
		health:  health,
		service: service,
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(s.withRequestID, s.withLogging, s.withTimeout)

	e.GET("/health", s.healthCheck)
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	api := e.Group("/api")
	if auth != nil {
		api.Use(auth)
	}
	for _, r := range registrars {
		r.Register(api)
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("service_started", fmt.Sprintf("HTTP server listening on %s", s.http.Addr), "startup", map[string]interface{}{
		"port": s.cfg.Port,
	})
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) healthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	healthy := s.health == nil || s.health.Ping(ctx) == nil

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   s.service,
		"healthy":   healthy,
	}
	if !healthy {
		response["status"] = "unhealthy"
		return c.JSON(http.StatusServiceUnavailable, response)
	}
	return c.JSON(http.StatusOK, response)
}
