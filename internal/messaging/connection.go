package messaging

import (
	"fmt"
	"sync"
	"time"

	"food-delivery/internal/config"
	"food-delivery/internal/logger"

	"github.com/rabbitmq/amqp091-go"
)

// Exchange and queue names
const (
	OrdersExchange        = "orders_topic"
	NotificationsExchange = "notifications_fanout"
	DispatchQueue         = "dispatch_queue"
	NotificationsQueue    = "notifications_queue"
)

type Exchange struct {
	Name string
	Kind string
}

type Queue struct {
	Name string
	TTL  time.Duration
}

type Binding struct {
	Queue      string
	RoutingKey string
	Exchange   string
}

// Topology is everything declared on connect.
type Topology struct {
	Exchanges []Exchange
	Queues    []Queue
	Bindings  []Binding
}

// DefaultTopology routes confirmed orders to the dispatch worker and fans
// every status update out to the notification subscriber.
func DefaultTopology() Topology {
	return Topology{
		Exchanges: []Exchange{
			{Name: OrdersExchange, Kind: amqp091.ExchangeTopic},
			{Name: NotificationsExchange, Kind: amqp091.ExchangeFanout},
		},
		Queues: []Queue{
			{Name: DispatchQueue, TTL: 10 * time.Minute},
			{Name: NotificationsQueue},
		},
		Bindings: []Binding{
			{Queue: DispatchQueue, RoutingKey: "order.confirmed", Exchange: OrdersExchange},
			{Queue: NotificationsQueue, RoutingKey: "", Exchange: NotificationsExchange},
		},
	}
}

// Connection wraps RabbitMQ connection with reconnection logic
type Connection struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	topology Topology
	logger   *logger.Logger
	url      string
}

// New creates a new RabbitMQ connection and declares the default topology
func New(cfg *config.Config, log *logger.Logger) (*Connection, error) {
	c := &Connection{
		topology: DefaultTopology(),
		logger:   log,
		url:      cfg.RabbitMQURL(),
	}

	if err := c.connect(); err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}
	return c, nil
}

// connect establishes connection to RabbitMQ with retry logic
func (c *Connection) connect() error {
	const maxRetries = 5
	var err error

	for i := 0; i < maxRetries; i++ {
		if err = c.dial(); err == nil {
			return nil
		}

		if i < maxRetries-1 {
			waitTime := time.Duration(i+1) * 2 * time.Second
			c.logger.Error("rabbitmq_connection_failed",
				fmt.Sprintf("Failed to connect to RabbitMQ, retrying in %v", waitTime),
				"startup", err, nil)
			time.Sleep(waitTime)
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

func (c *Connection) dial() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	if err := declare(ch, c.topology); err != nil {
		c.logger.Error("rabbitmq_setup_failed", "Failed to set up topology", "startup", err, nil)
		ch.Close()
		conn.Close()
		return err
	}

	c.conn, c.channel = conn, ch
	return nil
}

func declare(ch *amqp091.Channel, t Topology) error {
	for _, ex := range t.Exchanges {
		if err := ch.ExchangeDeclare(ex.Name, ex.Kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare %s exchange: %w", ex.Name, err)
		}
	}

	for _, q := range t.Queues {
		var args amqp091.Table
		if q.TTL > 0 {
			args = amqp091.Table{"x-message-ttl": q.TTL.Milliseconds()}
		}
		if _, err := ch.QueueDeclare(q.Name, true, false, false, false, args); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q.Name, err)
		}
	}

	for _, b := range t.Bindings {
		if err := ch.QueueBind(b.Queue, b.RoutingKey, b.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s with routing key %s: %w", b.Queue, b.RoutingKey, err)
		}
	}
	return nil
}

// Channel returns the current channel
func (c *Connection) Channel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// Close closes the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.close()
}

func (c *Connection) close() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsClosed checks if the connection is closed
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == nil || c.conn.IsClosed()
}

// Reconnect drops the current connection and dials again with retries
func (c *Connection) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.close()
	return c.connect()
}
