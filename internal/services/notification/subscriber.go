package notification

import (
	"context"
	"errors"
	"fmt"
	"io"

	"food-delivery/internal/logger"
	"food-delivery/internal/messaging"
	"food-delivery/internal/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const timeLayout = "2006-01-02 15:04:05"

// Subscriber prints status updates for customers
type Subscriber struct {
	source  messaging.Source
	out     io.Writer
	printer *message.Printer
	logger  *logger.Logger
}

// NewSubscriber creates a new notification subscriber. Amounts are formatted for lang.
func NewSubscriber(source messaging.Source, out io.Writer, lang language.Tag, log *logger.Logger) *Subscriber {
	return &Subscriber{
		source:  source,
		out:     out,
		printer: message.NewPrinter(lang),
		logger:  log,
	}
}

// Start consumes notifications until ctx is cancelled, then closes the source.
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	err := s.source.StartConsuming(ctx, s.handleNotification)

	s.logger.Info("graceful_shutdown", "Stopping notification subscriber", requestID, nil)
	if closeErr := s.source.Close(); closeErr != nil {
		s.logger.Error("shutdown_failed", "Failed to close consumer", requestID, closeErr, nil)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handleNotification processes incoming status update notifications
func (s *Subscriber) handleNotification(ctx context.Context, body []byte) error {
	requestID := logger.RequestIDFromContext(ctx)

	var update models.StatusUpdateMessage
	if err := messaging.ParseMessage(body, &update); err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse notification message", requestID, err, nil)
		return err
	}

	if _, err := fmt.Fprintln(s.out, s.formatNotification(&update)); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}

	s.logger.Info("notification_displayed", "Notification displayed to user", requestID, map[string]interface{}{
		"entity_type":  update.EntityType,
		"order_number": update.OrderNumber,
		"old_status":   update.OldStatus,
		"new_status":   update.NewStatus,
		"changed_by":   update.ChangedBy,
	})
	return nil
}

// formatNotification creates a human-readable notification message
func (s *Subscriber) formatNotification(u *models.StatusUpdateMessage) string {
	ts := u.Timestamp.Format(timeLayout)

	if u.EntityType == models.EntityDelivery {
		msg := s.printer.Sprintf("🛵 [%s] Order %s: %s.", ts, u.OrderNumber, models.DeliveryStatus(u.NewStatus).Display())
		if u.DeliveryOtp != "" {
			msg += s.printer.Sprintf(" Share code %s with your delivery partner on arrival.", u.DeliveryOtp)
		}
		return msg
	}

	switch models.OrderStatus(u.NewStatus) {
	case models.OrderPlaced:
		if u.TotalAmount != nil {
			return s.printer.Sprintf("🧾 [%s] Order %s placed. Total: %.2f", ts, u.OrderNumber, u.TotalAmount.InexactFloat64())
		}
		return s.printer.Sprintf("🧾 [%s] Order %s placed.", ts, u.OrderNumber)
	case models.OrderConfirmed:
		if u.EstimatedCompletion != nil {
			return s.printer.Sprintf("👍 [%s] Order %s confirmed by the restaurant. Estimated delivery: %s",
				ts, u.OrderNumber, u.EstimatedCompletion.Format("15:04"))
		}
		return s.printer.Sprintf("👍 [%s] Order %s confirmed by the restaurant.", ts, u.OrderNumber)
	case models.OrderPreparing:
		return s.printer.Sprintf("🍳 [%s] Order %s is being prepared.", ts, u.OrderNumber)
	case models.OrderReadyForPickup:
		return s.printer.Sprintf("✅ [%s] Order %s is ready for pickup.", ts, u.OrderNumber)
	case models.OrderOutForDelivery:
		return s.printer.Sprintf("🚚 [%s] Order %s is out for delivery.", ts, u.OrderNumber)
	case models.OrderDelivered:
		return s.printer.Sprintf("🎉 [%s] Order %s has been delivered. Enjoy your meal!", ts, u.OrderNumber)
	case models.OrderCancelled:
		return s.printer.Sprintf("❌ [%s] Order %s has been cancelled.", ts, u.OrderNumber)
	case models.OrderRefunded:
		return s.printer.Sprintf("💸 [%s] Order %s has been refunded.", ts, u.OrderNumber)
	default:
		return s.printer.Sprintf("📋 [%s] Order %s status changed from '%s' to '%s' by %s.",
			ts, u.OrderNumber, u.OldStatus, u.NewStatus, u.ChangedBy)
	}
}
