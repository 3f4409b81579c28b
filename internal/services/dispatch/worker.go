// Package dispatch opens a delivery for every confirmed order it hears about.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"food-delivery/internal/logger"
	"food-delivery/internal/messaging"
	"food-delivery/internal/models"
)

// DeliveryCreator is the part of the delivery service the worker drives.
type DeliveryCreator interface {
	CreateDelivery(ctx context.Context, orderID, changedBy string) (*models.Delivery, error)
}

// Worker represents a dispatch worker
type Worker struct {
	name       string
	source     messaging.Source
	deliveries DeliveryCreator
	logger     *logger.Logger
}

// NewWorker creates a new dispatch worker
func NewWorker(name string, source messaging.Source, deliveries DeliveryCreator, log *logger.Logger) *Worker {
	return &Worker{
		name:       name,
		source:     source,
		deliveries: deliveries,
		logger:     log,
	}
}

// Start consumes order events until ctx is cancelled, then closes the source.
func (w *Worker) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	w.logger.Info("worker_started", fmt.Sprintf("Dispatch worker %s started", w.name), requestID, map[string]interface{}{
		"worker_name": w.name,
	})

	err := w.source.StartConsuming(ctx, w.handleMessage)

	w.logger.Info("graceful_shutdown", "Stopping dispatch worker", requestID, nil)
	if closeErr := w.source.Close(); closeErr != nil {
		w.logger.Error("shutdown_failed", "Failed to close consumer", requestID, closeErr, nil)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handleMessage opens a delivery for an order.confirmed event. Redelivered
// events find the delivery already there and are acknowledged.
func (w *Worker) handleMessage(ctx context.Context, body []byte) error {
	requestID := logger.RequestIDFromContext(ctx)

	var msg models.OrderMessage
	if err := messaging.ParseMessage(body, &msg); err != nil {
		w.logger.Error("message_parsing_failed", "Failed to parse order message", requestID, err, nil)
		return err
	}

	if msg.Event != models.EventOrderConfirmed {
		w.logger.Debug("message_skipped", "Ignoring order event", requestID, map[string]interface{}{
			"event":        msg.Event,
			"order_number": msg.OrderNumber,
		})
		return nil
	}

	d, err := w.deliveries.CreateDelivery(ctx, msg.OrderID, w.name)
	switch {
	case err == nil:
		w.logger.Info("delivery_created", fmt.Sprintf("Opened delivery for order %s", msg.OrderNumber), requestID, map[string]interface{}{
			"order_number": msg.OrderNumber,
			"delivery_id":  d.ID,
		})
		return nil
	case errors.Is(err, models.ErrConflict):
		w.logger.Debug("delivery_exists", "Order already has a delivery", requestID, map[string]interface{}{
			"order_number": msg.OrderNumber,
		})
		return nil
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrInvalidTransition):
		return messaging.Permanent(fmt.Errorf("order %s: %w", msg.OrderNumber, err))
	default:
		return fmt.Errorf("create delivery for %s: %w", msg.OrderNumber, err)
	}
}
