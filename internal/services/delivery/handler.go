package delivery

import (
	"fmt"
	"net/http"

	"food-delivery/internal/adapter/web"
	"food-delivery/internal/identity"
	"food-delivery/internal/logger"
	"food-delivery/internal/models"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for deliveries
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new delivery handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// Register mounts the /deliveries routes
func (h *Handler) Register(g *echo.Group) {
	d := g.Group("/deliveries")
	d.POST("", h.CreateDelivery, identity.RequireRole(identity.RoleRestaurantOwner))
	d.GET("/partner/:partnerId", h.ListPartnerDeliveries, identity.RequireRole(identity.RoleDeliveryPartner))
	d.POST("/:id/assign", h.AssignPartner, identity.RequireRole(identity.RoleDeliveryPartner))
	d.POST("/:id/location", h.UpdateLocation, identity.RequireRole(identity.RoleDeliveryPartner))
	d.PATCH("/:id/status", h.UpdateStatus, identity.RequireRole(identity.RoleDeliveryPartner))
	d.POST("/:id/verify-otp", h.VerifyOtp, identity.RequireRole(identity.RoleDeliveryPartner))
	d.POST("/:id/otp", h.ReissueOtp, identity.RequireRole(identity.RoleCustomer))
	d.POST("/:id/rating", h.Rate, identity.RequireRole(identity.RoleCustomer))
}

// partnerScope returns the partner a call is restricted to; admins act for anyone.
func partnerScope(p identity.Principal) string {
	if p.Role == identity.RoleDeliveryPartner {
		return p.UserID
	}
	return ""
}

// CreateDelivery handles POST /deliveries
func (h *Handler) CreateDelivery(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	var req models.CreateDeliveryRequest
	if err := web.Bind(c, &req); err != nil {
		return err
	}

	d, err := h.service.CreateDelivery(c.Request().Context(), req.OrderID, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

// ListPartnerDeliveries handles GET /deliveries/partner/:partnerId. Partners
// only see their own deliveries.
func (h *Handler) ListPartnerDeliveries(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	partnerID := c.Param("partnerId")
	if scoped := partnerScope(p); scoped != "" && scoped != partnerID {
		return fmt.Errorf("%w: partners can only list their own deliveries", models.ErrForbidden)
	}

	deliveries, err := h.service.ListPartnerDeliveries(c.Request().Context(), partnerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deliveries)
}

// AssignPartner handles POST /deliveries/:id/assign. Partners can only claim
// a delivery for themselves.
func (h *Handler) AssignPartner(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	var req models.AssignPartnerRequest
	if c.Request().ContentLength != 0 {
		if err := web.Bind(c, &req); err != nil {
			return err
		}
	}
	if scoped := partnerScope(p); scoped != "" {
		req.PartnerID = scoped
	}

	d, err := h.service.AssignDeliveryPartner(c.Request().Context(), c.Param("id"), req.PartnerID, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// UpdateLocation handles POST /deliveries/:id/location
func (h *Handler) UpdateLocation(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	var req models.UpdateLocationRequest
	if err := web.Bind(c, &req); err != nil {
		return err
	}

	d, err := h.service.UpdateDeliveryLocation(c.Request().Context(), c.Param("id"), partnerScope(p), req.Latitude, req.Longitude)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// UpdateStatus handles PATCH /deliveries/:id/status
func (h *Handler) UpdateStatus(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	var req models.UpdateDeliveryStatusRequest
	if err := web.Bind(c, &req); err != nil {
		return err
	}

	d, err := h.service.UpdateDeliveryStatus(c.Request().Context(), c.Param("id"), req.Status, req.Reason, partnerScope(p), p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// VerifyOtp handles POST /deliveries/:id/verify-otp
func (h *Handler) VerifyOtp(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	var req models.VerifyOtpRequest
	if err := web.Bind(c, &req); err != nil {
		return err
	}

	d, err := h.service.VerifyDeliveryOtp(c.Request().Context(), c.Param("id"), req.Otp, partnerScope(p))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// ReissueOtp handles POST /deliveries/:id/otp
func (h *Handler) ReissueOtp(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	otp, d, err := h.service.ReissueDeliveryOtp(c.Request().Context(), c.Param("id"), p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.ReissueOtpResponse{DeliveryID: d.ID, Otp: otp})
}

// Rate handles POST /deliveries/:id/rating
func (h *Handler) Rate(c echo.Context) error {
	p, err := identity.FromContext(c)
	if err != nil {
		return err
	}

	var req models.RateDeliveryRequest
	if err := web.Bind(c, &req); err != nil {
		return err
	}

	d, err := h.service.RateDelivery(c.Request().Context(), c.Param("id"), p.UserID, req.Rating, req.Feedback)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}
