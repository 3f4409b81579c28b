package messaging

import (
	"context"

	"food-delivery/internal/logger"
	"food-delivery/internal/models"
)

// EventPublisher is the publishing side used by the services. *Publisher implements it.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, msg *models.OrderMessage) error
	PublishStatusUpdate(ctx context.Context, msg *models.StatusUpdateMessage) error
}

var _ EventPublisher = (*Publisher)(nil)

// Discard drops every message. Used when no broker is configured.
type Discard struct{}

func (Discard) PublishOrderEvent(context.Context, *models.OrderMessage) error          { return nil }
func (Discard) PublishStatusUpdate(context.Context, *models.StatusUpdateMessage) error { return nil }

// Outbox collects messages produced inside a transaction so they can be
// published after it commits. The zero value is ready to use.
type Outbox struct {
	events  []*models.OrderMessage
	updates []*models.StatusUpdateMessage
}

func (o *Outbox) AddEvent(msg *models.OrderMessage) {
	o.events = append(o.events, msg)
}

func (o *Outbox) AddUpdate(msg *models.StatusUpdateMessage) {
	o.updates = append(o.updates, msg)
}

// Reset drops collected messages, e.g. before a transaction retry.
func (o *Outbox) Reset() {
	o.events, o.updates = nil, nil
}

// Flush publishes everything collected. Failures are logged and never returned:
// the state change has already committed.
func (o *Outbox) Flush(ctx context.Context, pub EventPublisher, log *logger.Logger) {
	requestID := logger.RequestIDFromContext(ctx)

	for _, e := range o.events {
		if err := pub.PublishOrderEvent(ctx, e); err != nil {
			log.Error("event_publish_failed", "Failed to publish order event", requestID, err, map[string]interface{}{
				"event":        e.Event,
				"order_number": e.OrderNumber,
			})
		}
	}
	for _, u := range o.updates {
		if err := pub.PublishStatusUpdate(ctx, u); err != nil {
			log.Error("notification_publish_failed", "Failed to publish status update", requestID, err, map[string]interface{}{
				"entity_type": u.EntityType,
				"entity_id":   u.EntityID,
				"new_status":  u.NewStatus,
			})
		}
	}
	o.Reset()
}
