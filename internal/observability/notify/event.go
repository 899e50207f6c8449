package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
)

// JobFailurePayload captures the canonical data we emit when a job settles as
// failed. Counters describe the job at the moment of the terminal transition.
type JobFailurePayload struct {
	JobID        string
	Operation    string
	ElectionID   string
	Error        string
	ErrorClass   string
	Severity     string
	FailedChunks int
	TotalChunks  int
	OccurredAt   time.Time
	Metadata     map[string]string
}

// Sink describes a destination capable of consuming job failure notifications.
type Sink interface {
	SendJobFailure(ctx context.Context, payload JobFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload JobFailurePayload) error

// SendJobFailure implements the Sink interface.
func (f SinkFunc) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
