package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"food-delivery/internal/messaging"
	"food-delivery/internal/models"
	"food-delivery/internal/storage"
)

// Lifecycle applies order status transitions inside a caller's transaction.
// It is shared with the delivery service, which moves orders as parcels move.
type Lifecycle struct {
	Now func() time.Time
	ETA time.Duration
}

func NewLifecycle(eta time.Duration) *Lifecycle {
	return &Lifecycle{
		Now: func() time.Time { return time.Now().UTC() },
		ETA: eta,
	}
}

// Apply moves o to next, stamping lifecycle fields, persisting the order and
// appending to the status log. Messages to publish after commit go to box.
func (l *Lifecycle) Apply(ctx context.Context, tx storage.Tx, o *models.Order, next models.OrderStatus,
	changedBy string, notes *string, box *messaging.Outbox) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: order %s cannot move from %s to %s",
			models.ErrInvalidTransition, o.OrderNumber, o.Status, next)
	}

	now := l.Now()
	prev := o.Status
	o.Status = next
	o.UpdatedAt = now

	switch next {
	case models.OrderConfirmed:
		eta := now.Add(l.ETA)
		o.EstimatedDeliveryTime = &eta
	case models.OrderDelivered:
		o.ActualDeliveryTime = &now
	case models.OrderCancelled:
		o.CancellationReason = notes
		o.PaymentStatus = models.PaymentCancelled
	case models.OrderRefunded:
		o.RefundAmount = o.TotalAmount
		o.PaymentStatus = models.PaymentRefunded
	}

	if err := tx.Orders().Update(ctx, o); err != nil {
		return err
	}

	if next == models.OrderCancelled || next == models.OrderRefunded {
		if err := l.closeDelivery(ctx, tx, o, changedBy, notes, box); err != nil {
			return err
		}
	}

	if err := tx.StatusLog().Append(ctx, models.StatusLogEntry{
		EntityType: models.EntityOrder,
		EntityID:   o.ID,
		FromStatus: string(prev),
		ToStatus:   string(next),
		ChangedBy:  changedBy,
		Notes:      notes,
		ChangedAt:  now,
	}); err != nil {
		return err
	}

	update := models.CreateStatusUpdateMessage(models.EntityOrder, o.ID, string(prev), string(next), changedBy)
	update.OrderNumber = o.OrderNumber
	update.OwnerID = o.OwnerID
	update.EstimatedCompletion = o.EstimatedDeliveryTime
	box.AddUpdate(update)

	switch next {
	case models.OrderConfirmed:
		box.AddEvent(models.NewOrderMessage(models.EventOrderConfirmed, o))
	case models.OrderCancelled:
		box.AddEvent(models.NewOrderMessage(models.EventOrderCancelled, o))
	}
	return nil
}

// closeDelivery ends the order's delivery if one exists and is still open.
// A cancelled order cancels it. A refunded order cancels it before pickup and
// marks it RETURNED once the parcel has left the restaurant.
func (l *Lifecycle) closeDelivery(ctx context.Context, tx storage.Tx, o *models.Order,
	changedBy string, reason *string, box *messaging.Outbox) error {
	d, err := tx.Deliveries().FindByOrderIDForUpdate(ctx, o.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if d.Status.IsTerminal() {
		return nil
	}

	target := models.DeliveryCancelled
	if o.Status == models.OrderRefunded && !d.Status.CanTransitionTo(target) {
		target = models.DeliveryReturned
	}
	if !d.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: delivery for order %s is already %s",
			models.ErrInvalidTransition, o.OrderNumber, d.Status)
	}

	prev := d.Status
	d.Status = target
	d.CancellationReason = reason
	d.UpdatedAt = l.Now()
	if err := tx.Deliveries().Update(ctx, d); err != nil {
		return err
	}

	if err := tx.StatusLog().Append(ctx, models.StatusLogEntry{
		EntityType: models.EntityDelivery,
		EntityID:   d.ID,
		FromStatus: string(prev),
		ToStatus:   string(d.Status),
		ChangedBy:  changedBy,
		Notes:      reason,
		ChangedAt:  d.UpdatedAt,
	}); err != nil {
		return err
	}

	update := models.CreateStatusUpdateMessage(models.EntityDelivery, d.ID, string(prev), string(d.Status), changedBy)
	update.OrderNumber = o.OrderNumber
	update.OwnerID = o.OwnerID
	box.AddUpdate(update)
	return nil
}
