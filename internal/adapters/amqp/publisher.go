package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/domain/model"
)

// PublishChunk places one persistent chunk message on the queue owned by the
// message's operation type. Broker hiccups are retried with exponential
// backoff before the error surfaces to the caller.
func (c *Client) PublishChunk(ctx context.Context, msg *model.ChunkMessage) error {
	if msg == nil {
		return errors.New("chunk message is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	body, err := msg.Encode()
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.PublishRetries; attempt++ {
		c.mu.Lock()
		channel := c.channel
		connected := c.connected
		c.mu.Unlock()
		if !connected || channel == nil {
			return errors.New("not connected to broker")
		}

		lastErr = channel.PublishWithContext(
			ctx,
			c.cfg.Exchange,        // exchange
			string(msg.Operation), // routing key
			false,                 // mandatory
			false,                 // immediate
			publishing,
		)
		if lastErr == nil {
			if attempt > 0 {
				c.logger.InfoContext(ctx, "chunk published after retry",
					"job_id", msg.JobID, "chunk_index", msg.ChunkIndex, "attempt", attempt+1)
			}
			return nil
		}

		if attempt < c.cfg.PublishRetries {
			backoff := c.cfg.PublishRetryDelay * time.Duration(1<<uint(attempt))
			c.logger.WarnContext(ctx, "publish chunk failed, retrying",
				"job_id", msg.JobID, "chunk_index", msg.ChunkIndex,
				"retry_in", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("publish chunk %d for job %s after %d attempts: %w",
		msg.ChunkIndex, msg.JobID, c.cfg.PublishRetries+1, lastErr)
}

var _ core.ChunkPublisher = (*Client)(nil)
