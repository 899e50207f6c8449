package amqp

// Package amqp provides the RabbitMQ broker client for the tallyd system:
// topology declaration, the chunk publisher, and per-queue consumers.

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/quorumworks/tallyd/internal/domain/model"
)

// Config holds broker connection and topology configuration.
type Config struct {
	URL                string
	Exchange           string
	DeadLetterExchange string
	DeadLetterQueue    string
	QueuePrefix        string
	Heartbeat          time.Duration
	ConnectAttempts    int
	ConnectBackoff     time.Duration
	PublishRetries     int
	PublishRetryDelay  time.Duration
}

// DefaultConfig returns a Config with the standard tallyd topology names.
func DefaultConfig(url string) Config {
	return Config{
		URL:                url,
		Exchange:           "tallyd.operations",
		DeadLetterExchange: "tallyd.operations.dlx",
		DeadLetterQueue:    "tallyd.operations.dead",
		QueuePrefix:        "tallyd.operations.",
		Heartbeat:          10 * time.Second,
		ConnectAttempts:    5,
		ConnectBackoff:     2 * time.Second,
		PublishRetries:     3,
		PublishRetryDelay:  100 * time.Millisecond,
	}
}

func (c *Config) sanitize() {
	if c.Exchange == "" {
		c.Exchange = "tallyd.operations"
	}
	if c.DeadLetterExchange == "" {
		c.DeadLetterExchange = c.Exchange + ".dlx"
	}
	if c.DeadLetterQueue == "" {
		c.DeadLetterQueue = c.Exchange + ".dead"
	}
	if c.QueuePrefix == "" {
		c.QueuePrefix = c.Exchange + "."
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = 10 * time.Second
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 5
	}
	if c.ConnectBackoff <= 0 {
		c.ConnectBackoff = 2 * time.Second
	}
	if c.PublishRetries < 0 {
		c.PublishRetries = 3
	}
	if c.PublishRetryDelay <= 0 {
		c.PublishRetryDelay = 100 * time.Millisecond
	}
}

// QueueName returns the durable queue owned by the given operation type.
func (c Config) QueueName(op model.OperationType) string {
	return c.QueuePrefix + string(op)
}

// Client owns the broker connection and the publish channel. Consumers get
// dedicated channels so per-pool prefetch stays independent.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	conn      *amqp091.Connection
	channel   *amqp091.Channel
	closeCh   chan *amqp091.Error
	connected bool
}

// NewClient dials the broker, declares the tallyd topology, and returns a
// ready client. Dial failures are retried ConnectAttempts times.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg.sanitize()
	if cfg.URL == "" {
		return nil, errors.New("broker url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{cfg: cfg, logger: logger}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	amqpConfig := amqp091.Config{
		Heartbeat: c.cfg.Heartbeat,
		Locale:    "en_US",
	}

	var (
		conn *amqp091.Connection
		err  error
	)
	for attempt := 1; attempt <= c.cfg.ConnectAttempts; attempt++ {
		conn, err = amqp091.DialConfig(c.cfg.URL, amqpConfig)
		if err == nil {
			break
		}
		c.logger.Warn("broker dial failed",
			"attempt", attempt, "max_attempts", c.cfg.ConnectAttempts, "error", err)
		if attempt < c.cfg.ConnectAttempts {
			time.Sleep(c.cfg.ConnectBackoff)
		}
	}
	if err != nil {
		return fmt.Errorf("connect to broker after %d attempts: %w", c.cfg.ConnectAttempts, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(channel, c.cfg); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.closeCh = conn.NotifyClose(make(chan *amqp091.Error, 1))
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("broker client ready",
		"exchange", c.cfg.Exchange, "dead_letter_queue", c.cfg.DeadLetterQueue)
	return nil
}

// declareTopology sets up the direct work exchange, one durable queue per
// operation type bound by its routing key, and the dead-letter flow every
// work queue feeds on nack.
func declareTopology(ch *amqp091.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	if err := ch.ExchangeDeclare(
		cfg.DeadLetterExchange,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.DeadLetterExchange, err)
	}

	if _, err := ch.QueueDeclare(
		cfg.DeadLetterQueue, // name
		true,                // durable
		false,               // auto-delete
		false,               // exclusive
		false,               // no-wait
		nil,                 // arguments
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.DeadLetterQueue, err)
	}
	if err := ch.QueueBind(cfg.DeadLetterQueue, "", cfg.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", cfg.DeadLetterQueue, err)
	}

	for _, op := range model.AllOperationTypes() {
		queue := cfg.QueueName(op)
		if _, err := ch.QueueDeclare(
			queue,
			true,
			false,
			false,
			false,
			amqp091.Table{"x-dead-letter-exchange": cfg.DeadLetterExchange},
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, string(op), cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

// Closed reports asynchronous connection loss. The channel delivers at most
// one error and is closed when the connection shuts down cleanly.
func (c *Client) Closed() <-chan *amqp091.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCh
}

// IsConnected returns the connection status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.conn != nil && !c.conn.IsClosed()
}

// Close shuts down the publish channel and the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			c.logger.Warn("close broker channel", "error", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			return fmt.Errorf("close broker connection: %w", err)
		}
	}
	return nil
}
