package web

import (
	"context"
	"fmt"
	"time"

	"food-delivery/internal/logger"

	"github.com/labstack/echo/v4"
)

const requestIDHeader = "X-Request-ID"

func (s *Server) withRequestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}

		req := c.Request()
		c.SetRequest(req.WithContext(logger.WithRequestID(req.Context(), requestID)))
		c.Response().Header().Set(requestIDHeader, requestID)
		return next(c)
	}
}

// withLogging logs every request and records its latency.
func (s *Server) withLogging(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		requestID := logger.RequestIDFromContext(req.Context())

		s.logger.Debug("request_started",
			fmt.Sprintf("%s %s", req.Method, req.URL.Path),
			requestID,
			map[string]interface{}{
				"method":      req.Method,
				"path":        req.URL.Path,
				"remote_addr": c.RealIP(),
				"user_agent":  req.UserAgent(),
			})

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		status := c.Response().Status
		duration := time.Since(start)
		s.metrics.ObserveHTTP(req.Method, c.Path(), status, duration)
		s.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", req.Method, req.URL.Path, status),
			requestID,
			map[string]interface{}{
				"method":      req.Method,
				"path":        req.URL.Path,
				"status_code": status,
				"duration_ms": duration.Milliseconds(),
			})
		return nil
	}
}

func (s *Server) withTimeout(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.cfg.RequestTimeout <= 0 {
			return next(c)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), s.cfg.RequestTimeout)
		defer cancel()
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
