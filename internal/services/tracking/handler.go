package tracking

import (
	"net/http"

	"food-delivery/internal/identity"
	"food-delivery/internal/logger"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for the tracking service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new tracking handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// Register mounts the /tracking routes
func (h *Handler) Register(g *echo.Group) {
	t := g.Group("/tracking/orders/:number")
	t.GET("/status", h.GetOrderStatus)
	t.GET("/history", h.GetOrderHistory)
	t.GET("/delivery", h.GetDeliveryTracking)
}

// ownerScope limits customers to their own orders; staff see all of them.
func ownerScope(c echo.Context) (string, error) {
	p, err := identity.FromContext(c)
	if err != nil {
		return "", err
	}
	if p.Role == identity.RoleCustomer {
		return p.UserID, nil
	}
	return "", nil
}

// GetOrderStatus handles GET /tracking/orders/:number/status
func (h *Handler) GetOrderStatus(c echo.Context) error {
	owner, err := ownerScope(c)
	if err != nil {
		return err
	}

	h.logger.Debug("request_received", "Get order status request", logger.RequestIDFromContext(c.Request().Context()), map[string]interface{}{
		"order_number": c.Param("number"),
		"endpoint":     "status",
	})

	status, err := h.service.GetOrderStatus(c.Request().Context(), c.Param("number"), owner)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

// GetOrderHistory handles GET /tracking/orders/:number/history
func (h *Handler) GetOrderHistory(c echo.Context) error {
	owner, err := ownerScope(c)
	if err != nil {
		return err
	}

	history, err := h.service.GetOrderHistory(c.Request().Context(), c.Param("number"), owner)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, history)
}

// GetDeliveryTracking handles GET /tracking/orders/:number/delivery
func (h *Handler) GetDeliveryTracking(c echo.Context) error {
	owner, err := ownerScope(c)
	if err != nil {
		return err
	}

	tracking, err := h.service.GetDeliveryTracking(c.Request().Context(), c.Param("number"), owner)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tracking)
}
