package order

import (
	"context"
	"fmt"
	"time"

	"food-delivery/internal/catalog"
	"food-delivery/internal/logger"
	"food-delivery/internal/messaging"
	"food-delivery/internal/metrics"
	"food-delivery/internal/models"
	"food-delivery/internal/pricing"
	"food-delivery/internal/storage"
	"food-delivery/internal/validation"
)

// Service builds orders and drives the order state machine
type Service struct {
	store       storage.Store
	catalog     catalog.Gateway
	events      messaging.EventPublisher
	logger      *logger.Logger
	metrics     *metrics.Metrics
	policy      pricing.Policy
	lifecycle   *Lifecycle
	parallelism int
}

// NewService creates a new order service
func NewService(store storage.Store, gw catalog.Gateway, events messaging.EventPublisher, log *logger.Logger,
	m *metrics.Metrics, policy pricing.Policy, eta time.Duration, parallelism int) *Service {
	if events == nil {
		events = messaging.Discard{}
	}
	if parallelism <= 0 {
		parallelism = catalog.DefaultParallelism
	}
	return &Service{
		store:       store,
		catalog:     gw,
		events:      events,
		logger:      log,
		metrics:     m,
		policy:      policy,
		lifecycle:   NewLifecycle(eta),
		parallelism: parallelism,
	}
}

// Lifecycle exposes the transition logic to services that move orders as a side effect.
func (s *Service) Lifecycle() *Lifecycle {
	return s.lifecycle
}

// CreateOrder builds and persists an order from explicitly requested lines.
func (s *Service) CreateOrder(ctx context.Context, ownerID string, req *models.CreateOrderRequest) (*models.Order, error) {
	requestID := logger.RequestIDFromContext(ctx)

	d, err := newDraft(ownerID, req)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateOrderLines(req.Items); err != nil {
		return nil, err
	}
	d.lines = req.Items

	order, err := s.build(ctx, d)
	if err != nil {
		s.logger.Debug("order_rejected", "Order could not be built", requestID, map[string]interface{}{
			"owner_id": ownerID,
			"reason":   err.Error(),
		})
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return tx.StatusLog().Append(ctx, placedEntry(order, ownerID, order.CreatedAt))
	})
	if err != nil {
		s.logger.Error("db_transaction_failed", "Failed to persist order", requestID, err, map[string]interface{}{
			"order_number": order.OrderNumber,
		})
		return nil, err
	}

	s.placed(ctx, order, "items")
	return order, nil
}

// CreateOrderFromCart builds an order from every line in the owner's cart and
// removes those lines in the same transaction. Catalog lookups happen before
// the transaction; the cart is locked and compared with what was priced, and a
// cart that changed in between is rejected with ErrConflict.
func (s *Service) CreateOrderFromCart(ctx context.Context, ownerID string, req *models.CreateOrderRequest) (*models.Order, error) {
	requestID := logger.RequestIDFromContext(ctx)

	d, err := newDraft(ownerID, req)
	if err != nil {
		return nil, err
	}

	priced, err := s.store.Carts().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(priced) == 0 {
		return nil, validation.ValidationError{Field: "cart", Message: "cart is empty"}
	}
	d.lines = cartRequests(priced)

	order, err := s.build(ctx, d)
	if err != nil {
		s.logger.Debug("order_rejected", "Order could not be built from cart", requestID, map[string]interface{}{
			"owner_id": ownerID,
			"reason":   err.Error(),
		})
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		locked, err := tx.Carts().ListByOwnerForUpdate(ctx, ownerID)
		if err != nil {
			return err
		}
		if !sameCart(priced, locked) {
			return fmt.Errorf("%w: cart changed during checkout, review it and retry", models.ErrConflict)
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := tx.StatusLog().Append(ctx, placedEntry(order, ownerID, order.CreatedAt)); err != nil {
			return err
		}

		ids := make([]string, len(locked))
		for i, l := range locked {
			ids[i] = l.ID
		}
		return tx.Carts().DeleteByIDs(ctx, ids)
	})
	if err != nil {
		s.logger.Debug("order_rejected", "Cart checkout was not committed", requestID, map[string]interface{}{
			"owner_id": ownerID,
			"reason":   err.Error(),
		})
		return nil, err
	}

	s.placed(ctx, order, "cart")
	return order, nil
}

func cartRequests(lines []models.CartLine) []models.OrderLineRequest {
	out := make([]models.OrderLineRequest, len(lines))
	for i, l := range lines {
		out[i] = models.OrderLineRequest{
			MenuItemRef:         l.MenuItemRef,
			Quantity:            l.Quantity,
			SpecialInstructions: l.SpecialInstructions,
		}
	}
	return out
}

// sameCart reports whether two reads of a cart hold the same lines with the
// same quantities and instructions, in any order.
func sameCart(a, b []models.CartLine) bool {
	if len(a) != len(b) {
		return false
	}
	byID := make(map[string]models.CartLine, len(a))
	for _, l := range a {
		byID[l.ID] = l
	}
	for _, l := range b {
		prev, ok := byID[l.ID]
		if !ok || prev.MenuItemRef != l.MenuItemRef || prev.Quantity != l.Quantity {
			return false
		}
		if !sameText(prev.SpecialInstructions, l.SpecialInstructions) {
			return false
		}
	}
	return true
}

func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func newDraft(ownerID string, req *models.CreateOrderRequest) (draft, error) {
	if req == nil {
		return draft{}, validation.ValidationError{Field: "body", Message: "request body is required"}
	}

	address := req.DeliveryAddress
	if err := validation.ValidateAddress(&address); err != nil {
		return draft{}, err
	}
	method, err := validation.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return draft{}, err
	}

	return draft{
		ownerID:       ownerID,
		address:       address,
		paymentMethod: method,
		couponCode:    req.CouponCode,
	}, nil
}

// placed runs the post-commit side effects of a new order.
func (s *Service) placed(ctx context.Context, order *models.Order, source string) {
	var box messaging.Outbox
	box.AddEvent(models.NewOrderMessage(models.EventOrderPlaced, order))

	update := models.CreateStatusUpdateMessage(models.EntityOrder, order.ID, "", string(order.Status), order.OwnerID)
	update.OrderNumber = order.OrderNumber
	update.OwnerID = order.OwnerID
	total := order.TotalAmount
	update.TotalAmount = &total
	box.AddUpdate(update)

	box.Flush(ctx, s.events, s.logger)

	s.metrics.OrderCreated(source)
	s.logger.Info("order_created", "Order placed", logger.RequestIDFromContext(ctx), map[string]interface{}{
		"order_number":  order.OrderNumber,
		"owner_id":      order.OwnerID,
		"restaurant_id": order.RestaurantID,
		"items":         len(order.Items),
		"total_amount":  order.TotalAmount.StringFixed(2),
	})
}

// CancelOrder cancels the caller's own order while it is still PLACED or CONFIRMED.
func (s *Service) CancelOrder(ctx context.Context, orderID, ownerID string, reason *string) (*models.Order, error) {
	var (
		order *models.Order
		box   messaging.Outbox
	)

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		box.Reset()

		o, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.OwnerID != ownerID {
			return fmt.Errorf("%w: order belongs to another customer", models.ErrForbidden)
		}
		if !o.Status.CanBeCancelled() {
			return fmt.Errorf("%w: order %s is %s and can no longer be cancelled",
				models.ErrInvalidTransition, o.OrderNumber, o.Status)
		}

		if err := s.lifecycle.Apply(ctx, tx, o, models.OrderCancelled, ownerID, reason, &box); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, order, &box)
	return order, nil
}

// UpdateOrderStatus moves an order along the transition table on behalf of changedBy.
// OUT_FOR_DELIVERY and DELIVERED follow the delivery and cannot be set here.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, next models.OrderStatus, changedBy string, notes *string) (*models.Order, error) {
	if !next.Valid() {
		return nil, validation.ValidationError{Field: "status", Message: "unknown order status"}
	}
	if deliveryDriven(next) {
		return nil, fmt.Errorf("%w: %s is set by the delivery, not directly", models.ErrInvalidTransition, next)
	}

	var (
		order *models.Order
		box   messaging.Outbox
	)

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		box.Reset()

		o, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.lifecycle.Apply(ctx, tx, o, next, changedBy, notes, &box); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, order, &box)
	return order, nil
}

func deliveryDriven(s models.OrderStatus) bool {
	return s == models.OrderOutForDelivery || s == models.OrderDelivered
}

// committed publishes collected messages and records the transition.
func (s *Service) committed(ctx context.Context, order *models.Order, box *messaging.Outbox) {
	box.Flush(ctx, s.events, s.logger)

	s.metrics.Transition(models.EntityOrder, string(order.Status))
	s.logger.Info("order_status_changed", "Order status updated", logger.RequestIDFromContext(ctx), map[string]interface{}{
		"order_number": order.OrderNumber,
		"status":       order.Status,
	})
}

// GetOrder returns an order with its items. An empty ownerID skips the ownership check.
func (s *Service) GetOrder(ctx context.Context, orderID, ownerID string) (*models.Order, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && o.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: order belongs to another customer", models.ErrForbidden)
	}
	return o, nil
}

// ListOrders returns the owner's orders newest first.
func (s *Service) ListOrders(ctx context.Context, ownerID string) ([]models.Order, error) {
	orders, err := s.store.Orders().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// ListRestaurantOrders returns a restaurant's orders oldest first, optionally
// narrowed to one status.
func (s *Service) ListRestaurantOrders(ctx context.Context, restaurantID string, status models.OrderStatus) ([]models.Order, error) {
	if restaurantID == "" {
		return nil, validation.ValidationError{Field: "restaurant_id", Message: "restaurant_id is required"}
	}
	if status != "" && !status.Valid() {
		return nil, validation.ValidationError{Field: "status", Message: "unknown order status"}
	}

	orders, err := s.store.Orders().ListByRestaurant(ctx, restaurantID, status)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}
