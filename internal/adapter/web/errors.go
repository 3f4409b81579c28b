package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"food-delivery/internal/logger"
	"food-delivery/internal/models"
	"food-delivery/internal/validation"

	"github.com/labstack/echo/v4"
)

// StatusFor maps a service error to its HTTP status code.
func StatusFor(err error) int {
	var httpErr *echo.HTTPError
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrStorage):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &httpErr):
		return httpErr.Code
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	requestID := logger.RequestIDFromContext(c.Request().Context())
	status := StatusFor(err)

	body := map[string]interface{}{
		"error":      err.Error(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	}

	var vErr validation.ValidationError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &vErr):
		body["error"] = vErr.Message
		body["field"] = vErr.Field
	case errors.As(err, &httpErr):
		body["error"] = http.StatusText(httpErr.Code)
		if msg, ok := httpErr.Message.(string); ok {
			body["error"] = msg
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request_failed", "Request failed", requestID, err, map[string]interface{}{
			"method": c.Request().Method,
			"path":   c.Request().URL.Path,
			"status": status,
		})
		if status != http.StatusGatewayTimeout {
			body["error"] = "Internal server error"
		}
	}

	if err := c.JSON(status, body); err != nil {
		s.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}

// Bind decodes the JSON request body into v. Malformed bodies are validation errors.
func Bind(c echo.Context, v interface{}) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return validation.ValidationError{Field: "body", Message: "invalid JSON format"}
	}
	return nil
}
