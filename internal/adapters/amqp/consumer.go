package amqp

import (
	"errors"
	"fmt"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/quorumworks/tallyd/internal/domain/model"
)

// Consumer owns a dedicated channel draining one operation queue with its own
// prefetch window. Deliveries require explicit ack or nack; nacked deliveries
// without requeue flow to the dead-letter queue.
type Consumer struct {
	channel    *amqp091.Channel
	queue      string
	Deliveries <-chan amqp091.Delivery
}

// Consume opens a dedicated channel on the shared connection, applies the
// prefetch, and starts delivering from the operation's queue with manual acks.
func (c *Client) Consume(op model.OperationType, consumerTag string, prefetch int) (*Consumer, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("invalid operation type: %s", op)
	}
	if prefetch <= 0 {
		prefetch = 1
	}

	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return nil, errors.New("not connected to broker")
	}

	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}
	if err := channel.Qos(prefetch, 0, false); err != nil {
		_ = channel.Close()
		return nil, fmt.Errorf("set prefetch: %w", err)
	}

	queue := c.cfg.QueueName(op)
	deliveries, err := channel.Consume(
		queue,       // queue
		consumerTag, // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		_ = channel.Close()
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}

	c.logger.Info("consuming operation queue",
		"queue", queue, "consumer_tag", consumerTag, "prefetch", prefetch)

	return &Consumer{channel: channel, queue: queue, Deliveries: deliveries}, nil
}

// Queue returns the queue this consumer drains.
func (c *Consumer) Queue() string { return c.queue }

// Close shuts the consumer channel; Deliveries closes once the broker
// confirms the cancellation.
func (c *Consumer) Close() error {
	if err := c.channel.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
		return fmt.Errorf("close consumer channel: %w", err)
	}
	return nil
}
