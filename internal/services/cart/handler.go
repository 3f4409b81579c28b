package cart

import (
	"net/http"

	"food-delivery/internal/adapter/web"
	"food-delivery/internal/identity"
	"food-delivery/internal/logger"
	"food-delivery/internal/models"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for the cart
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new cart handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// Register mounts the /cart routes
func (h *Handler) Register(g *echo.Group) {
	cart := g.Group("/cart", identity.RequireRole(identity.RoleCustomer))
	cart.POST("", h.AddToCart)
	cart.GET("", h.ListCart)
	cart.DELETE("", h.ClearCart)
	cart.GET("/total", h.CartTotal)
	cart.GET("/count", h.CartCount)
	cart.PUT("/:id", h.UpdateCartLine)
	cart.DELETE("/:id", h.RemoveCartLine)
}

// AddToCart handles POST /cart
func (h *Handler) AddToCart(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	var req models.AddToCartRequest
	if err := web.Bind(c, &req); err != nil {
		return err
	}

	line, err := h.service.AddToCart(c.Request().Context(), p.UserID, req.MenuItemRef, req.Quantity, req.SpecialInstructions)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, line)
}

// ListCart handles GET /cart
func (h *Handler) ListCart(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	lines, err := h.service.ListCart(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lines)
}

// UpdateCartLine handles PUT /cart/:id. A quantity of zero removes the line.
func (h *Handler) UpdateCartLine(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	var req models.UpdateCartLineRequest
	if err := web.Bind(c, &req); err != nil {
		return err
	}

	line, err := h.service.UpdateCartLine(c.Request().Context(), p.UserID, c.Param("id"), req.Quantity)
	if err != nil {
		return err
	}
	if line == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, line)
}

// RemoveCartLine handles DELETE /cart/:id
func (h *Handler) RemoveCartLine(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	if err := h.service.RemoveCartLine(c.Request().Context(), p.UserID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearCart handles DELETE /cart
func (h *Handler) ClearCart(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	if err := h.service.ClearCart(c.Request().Context(), p.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CartTotal handles GET /cart/total
func (h *Handler) CartTotal(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	total, err := h.service.CartTotal(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"total": total})
}

// CartCount handles GET /cart/count
func (h *Handler) CartCount(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	count, err := h.service.CartCount(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"count": count})
}
