package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"food-delivery/internal/logger"
	"food-delivery/internal/models"

	"github.com/rabbitmq/amqp091-go"
)

const requestIDHeader = "x-request-id"

// Publisher handles message publishing to RabbitMQ
type Publisher struct {
	conn   *Connection
	logger *logger.Logger
}

// NewPublisher creates a new message publisher
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: log,
	}
}

// PublishOrderEvent publishes to the orders topic exchange using the event name as routing key
func (p *Publisher) PublishOrderEvent(ctx context.Context, msg *models.OrderMessage) error {
	return p.publish(ctx, OrdersExchange, msg.Event, msg, true)
}

// PublishStatusUpdate publishes to the notifications fanout exchange
func (p *Publisher) PublishStatusUpdate(ctx context.Context, msg *models.StatusUpdateMessage) error {
	return p.publish(ctx, NotificationsExchange, "", msg, false)
}

func newPublishing(ctx context.Context, message interface{}, persistent bool) (amqp091.Publishing, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	deliveryMode := amqp091.Transient
	if persistent {
		deliveryMode = amqp091.Persistent
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: deliveryMode,
		Timestamp:    time.Now().UTC(),
	}
	if rid := logger.RequestIDFromContext(ctx); rid != "" {
		publishing.Headers = amqp091.Table{requestIDHeader: rid}
	}
	return publishing, nil
}

func (p *Publisher) publish(ctx context.Context, exchange, routingKey string, message interface{}, persistent bool) error {
	requestID := logger.RequestIDFromContext(ctx)

	if p.conn.IsClosed() {
		if err := p.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	publishing, err := newPublishing(ctx, message, persistent)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = p.conn.Channel().PublishWithContext(ctx, exchange, routingKey, false, false, publishing)
	if err != nil {
		p.logger.Error("message_publish_failed",
			fmt.Sprintf("Failed to publish message to exchange %s", exchange),
			requestID, err, map[string]interface{}{
				"exchange":    exchange,
				"routing_key": routingKey,
			})
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("message_published",
		fmt.Sprintf("Published message to exchange %s", exchange),
		requestID, map[string]interface{}{
			"exchange":     exchange,
			"routing_key":  routingKey,
			"message_size": len(publishing.Body),
		})
	return nil
}
