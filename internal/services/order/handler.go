package order

import (
	"net/http"

	"food-delivery/internal/adapter/web"
	"food-delivery/internal/identity"
	"food-delivery/internal/logger"
	"food-delivery/internal/models"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for the order service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new order handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// Register mounts the /orders routes
func (h *Handler) Register(g *echo.Group) {
	orders := g.Group("/orders")
	orders.POST("", h.CreateOrder, identity.RequireRole(identity.RoleCustomer))
	orders.GET("", h.ListOrders, identity.RequireRole(identity.RoleCustomer))
	orders.GET("/restaurant/:restaurantId", h.ListRestaurantOrders, identity.RequireRole(identity.RoleRestaurantOwner))
	orders.GET("/:id", h.GetOrder)
	orders.POST("/:id/cancel", h.CancelOrder, identity.RequireRole(identity.RoleCustomer))
	orders.PATCH("/:id/status", h.UpdateOrderStatus, identity.RequireRole(identity.RoleRestaurantOwner))
}

// CreateOrder handles POST /orders. With from_cart set and no items the
// caller's cart becomes the order.
func (h *Handler) CreateOrder(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	var req models.CreateOrderRequest
	if err := web.Bind(c, &req); err != nil {
		return err
	}

	h.logger.Debug("order_received", "Received order creation request", logger.RequestIDFromContext(c.Request().Context()), map[string]interface{}{
		"owner_id":  p.UserID,
		"from_cart": req.FromCart,
		"items":     len(req.Items),
	})

	var order *models.Order
	if req.FromCart && len(req.Items) == 0 {
		order, err = h.service.CreateOrderFromCart(c.Request().Context(), p.UserID, &req)
	} else {
		order, err = h.service.CreateOrder(c.Request().Context(), p.UserID, &req)
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, models.CreateOrderResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
	})
}

// ListOrders handles GET /orders
func (h *Handler) ListOrders(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	orders, err := h.service.ListOrders(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orders)
}

// ListRestaurantOrders handles GET /orders/restaurant/:restaurantId?status=
func (h *Handler) ListRestaurantOrders(c echo.Context) error {
	status := models.OrderStatus(c.QueryParam("status"))
	orders, err := h.service.ListRestaurantOrders(c.Request().Context(), c.Param("restaurantId"), status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orders)
}

// GetOrder handles GET /orders/:id. Customers only see their own orders.
func (h *Handler) GetOrder(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	ownerID := ""
	if p.Role == identity.RoleCustomer {
		ownerID = p.UserID
	}

	order, err := h.service.GetOrder(c.Request().Context(), c.Param("id"), ownerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

// CancelOrder handles POST /orders/:id/cancel
func (h *Handler) CancelOrder(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	var req models.CancelOrderRequest
	if c.Request().ContentLength != 0 {
		if err := web.Bind(c, &req); err != nil {
			return err
		}
	}

	order, err := h.service.CancelOrder(c.Request().Context(), c.Param("id"), p.UserID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus handles PATCH /orders/:id/status
func (h *Handler) UpdateOrderStatus(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	var req models.UpdateOrderStatusRequest
	if err := web.Bind(c, &req); err != nil {
		return err
	}

	order, err := h.service.UpdateOrderStatus(c.Request().Context(), c.Param("id"), req.Status, p.UserID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}
