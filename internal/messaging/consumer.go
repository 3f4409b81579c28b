package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"food-delivery/internal/logger"
	"food-delivery/internal/metrics"

	"github.com/rabbitmq/amqp091-go"
)

// MessageHandler processes one message body
type MessageHandler func(ctx context.Context, body []byte) error

var errPermanent = errors.New("permanent failure")

// Permanent marks err as not worth retrying; the message is dropped instead of requeued.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", errPermanent, err)
}

func IsPermanent(err error) bool {
	return errors.Is(err, errPermanent)
}

// Source delivers message bodies to a handler until ctx is cancelled.
type Source interface {
	StartConsuming(ctx context.Context, handler MessageHandler) error
	Close() error
}

var _ Source = (*Consumer)(nil)

// Consumer handles message consumption from RabbitMQ
type Consumer struct {
	conn        *Connection
	logger      *logger.Logger
	metrics     *metrics.Metrics
	queueName   string
	consumerTag string
	prefetch    int
}

// NewConsumer creates a new message consumer
func NewConsumer(conn *Connection, log *logger.Logger, m *metrics.Metrics, queueName, consumerTag string, prefetch int) *Consumer {
	return &Consumer{
		conn:        conn,
		logger:      log,
		metrics:     m,
		queueName:   queueName,
		consumerTag: consumerTag,
		prefetch:    prefetch,
	}
}

// StartConsuming blocks delivering messages to handler until ctx is cancelled
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	for {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
			return ctx.Err()
		}

		c.logger.Error("consumer_channel_closed", "Message channel closed, attempting to reconnect", "", err, nil)
		if err := c.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect after channel closed: %w", err)
		}
	}
}

func (c *Consumer) consume(ctx context.Context, handler MessageHandler) error {
	if c.conn.IsClosed() {
		if err := c.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	ch := c.conn.Channel()
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(c.queueName, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("consumer_started",
		fmt.Sprintf("Started consuming from queue %s", c.queueName),
		"", map[string]interface{}{
			"queue":    c.queueName,
			"consumer": c.consumerTag,
			"prefetch": c.prefetch,
		})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.processMessage(ctx, d, handler)
		}
	}
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRequeue
	outcomeDrop
)

func (o outcome) String() string {
	switch o {
	case outcomeAck:
		return "ack"
	case outcomeRequeue:
		return "requeue"
	default:
		return "drop"
	}
}

func decide(err error) outcome {
	switch {
	case err == nil:
		return outcomeAck
	case IsPermanent(err):
		return outcomeDrop
	default:
		return outcomeRequeue
	}
}

func requestIDOf(d amqp091.Delivery) string {
	if rid, ok := d.Headers[requestIDHeader].(string); ok && rid != "" {
		return rid
	}
	return logger.GenerateRequestID()
}

func (c *Consumer) processMessage(ctx context.Context, d amqp091.Delivery, handler MessageHandler) {
	start := time.Now()
	requestID := requestIDOf(d)

	processingCtx, cancel := context.WithTimeout(logger.WithRequestID(ctx, requestID), 30*time.Second)
	defer cancel()

	err := handler(processingCtx, d.Body)
	result := decide(err)
	c.metrics.MessageConsumed(c.consumerTag, result.String())

	fields := map[string]interface{}{
		"queue":        c.queueName,
		"routing_key":  d.RoutingKey,
		"duration_ms":  time.Since(start).Milliseconds(),
		"delivery_tag": d.DeliveryTag,
		"outcome":      result.String(),
	}

	switch result {
	case outcomeAck:
		c.logger.Debug("message_processed", "Successfully processed message", requestID, fields)
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("message_ack_failed", "Failed to ack message", requestID, ackErr, nil)
		}
	default:
		c.logger.Error("message_processing_failed", "Failed to process message", requestID, err, fields)
		if nackErr := d.Nack(false, result == outcomeRequeue); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", requestID, nackErr, nil)
		}
	}
}

// ParseMessage decodes a JSON body; decode failures are permanent
func ParseMessage(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return Permanent(fmt.Errorf("decode message: %w", err))
	}
	return nil
}

// Close cancels the consumer and closes the connection
func (c *Consumer) Close() error {
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Channel().Cancel(c.consumerTag, false); err != nil {
			c.logger.Error("consumer_cancel_failed", "Failed to cancel consumer", "", err, nil)
		}
		return c.conn.Close()
	}
	return nil
}
