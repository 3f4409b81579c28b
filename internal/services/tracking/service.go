package tracking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"food-delivery/internal/logger"
	"food-delivery/internal/models"
	"food-delivery/internal/validation"
)

const orderNumberLen = len("ORD-") + 26

// Service serves read models of orders and their deliveries
type Service struct {
	repos  Repositories
	logger *logger.Logger
}

// NewService creates a new tracking service
func NewService(repos Repositories, log *logger.Logger) *Service {
	return &Service{
		repos:  repos,
		logger: log,
	}
}

// GetOrderStatus returns the current status of an order and of its delivery,
// if one exists. A non-empty ownerID restricts the lookup to that customer.
func (s *Service) GetOrderStatus(ctx context.Context, orderNumber, ownerID string) (*models.OrderTrackingResponse, error) {
	o, err := s.findOrder(ctx, orderNumber, ownerID)
	if err != nil {
		return nil, err
	}

	resp := &models.OrderTrackingResponse{
		OrderNumber:           o.OrderNumber,
		CurrentStatus:         string(o.Status),
		UpdatedAt:             o.UpdatedAt,
		EstimatedDeliveryTime: o.EstimatedDeliveryTime,
	}

	d, err := s.repos.Deliveries().FindByOrderID(ctx, o.ID)
	switch {
	case err == nil:
		display := d.Status.Display()
		resp.DeliveryStatus = &display
	case !errors.Is(err, models.ErrNotFound):
		s.logger.Error("db_query_failed", "Failed to get delivery", logger.RequestIDFromContext(ctx), err, map[string]interface{}{
			"order_number": orderNumber,
		})
		return nil, err
	}

	return resp, nil
}

// GetOrderHistory returns every recorded transition of the order and its
// delivery, oldest first.
func (s *Service) GetOrderHistory(ctx context.Context, orderNumber, ownerID string) ([]models.StatusLogEntry, error) {
	o, err := s.findOrder(ctx, orderNumber, ownerID)
	if err != nil {
		return nil, err
	}

	history, err := s.repos.StatusLog().History(ctx, models.EntityOrder, o.ID)
	if err != nil {
		return nil, err
	}

	d, err := s.repos.Deliveries().FindByOrderID(ctx, o.ID)
	switch {
	case err == nil:
		deliveryHistory, err := s.repos.StatusLog().History(ctx, models.EntityDelivery, d.ID)
		if err != nil {
			return nil, err
		}
		history = append(history, deliveryHistory...)
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	slices.SortStableFunc(history, func(a, b models.StatusLogEntry) int {
		return a.ChangedAt.Compare(b.ChangedAt)
	})
	if history == nil {
		history = []models.StatusLogEntry{}
	}
	return history, nil
}

// GetDeliveryTracking returns the live view of an order's delivery.
func (s *Service) GetDeliveryTracking(ctx context.Context, orderNumber, ownerID string) (*models.DeliveryTrackingResponse, error) {
	o, err := s.findOrder(ctx, orderNumber, ownerID)
	if err != nil {
		return nil, err
	}

	d, err := s.repos.Deliveries().FindByOrderID(ctx, o.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %s has no delivery yet", models.ErrNotFound, orderNumber)
		}
		return nil, err
	}

	resp := &models.DeliveryTrackingResponse{
		DeliveryID:        d.ID,
		OrderID:           d.OrderID,
		Status:            d.Status,
		StatusDisplay:     d.Status.Display(),
		Trackable:         d.Status.CanBeTracked(),
		InProgress:        d.Status.IsInProgress(),
		DeliveryPartnerID: d.DeliveryPartnerID,
	}
	if resp.Trackable {
		resp.CurrentLatitude = d.CurrentLatitude
		resp.CurrentLongitude = d.CurrentLongitude
		resp.LastLocationUpdate = d.LastLocationUpdate
	}
	if minutes, ok := d.DurationMinutes(); ok {
		resp.DurationMinutes = &minutes
	}
	return resp, nil
}

func (s *Service) findOrder(ctx context.Context, orderNumber, ownerID string) (*models.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if len(orderNumber) != orderNumberLen || !strings.HasPrefix(orderNumber, "ORD-") {
		return nil, validation.ValidationError{Field: "order_number", Message: "invalid order number"}
	}

	o, err := s.repos.Orders().FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && o.OwnerID != ownerID {
		// Other customers' orders are indistinguishable from missing ones.
		return nil, fmt.Errorf("%w: order %s", models.ErrNotFound, orderNumber)
	}
	return o, nil
}
