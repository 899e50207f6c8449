// Package core provides the business logic and service layer for the tallyd orchestration system.
package core

import (
	"context"

	"github.com/quorumworks/tallyd/internal/domain/model"
)

// ChunkPublisher defines the interface for enqueueing chunk messages onto the
// work distribution broker.
type ChunkPublisher interface {
	// PublishChunk places one chunk message on the queue for its operation
	// type. Delivery is at-least-once; consumers must tolerate duplicates.
	PublishChunk(ctx context.Context, msg *model.ChunkMessage) error
}
