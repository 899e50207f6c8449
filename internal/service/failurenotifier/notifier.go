// Package failurenotifier fans job failure notifications out to the configured
// sinks (Slack, PagerDuty). It is optional wiring: with no sinks registered the
// service is inert and callers can invoke it unconditionally.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quorumworks/tallyd/internal/domain/model"
	"github.com/quorumworks/tallyd/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
}

// Service dispatches failure events to all registered sinks.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
}

// NewService constructs a failure notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "failure_notifier")
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{
			Name: name,
			Sink: entry.Sink,
		})
	}

	return &Service{
		logger: logger,
		sinks:  sinks,
	}
}

// PayloadFromJob shapes a notification payload from a settled job row. The
// counters and error message describe the job at its terminal transition.
func PayloadFromJob(job *model.Job, occurredAt time.Time) notify.JobFailurePayload {
	payload := notify.JobFailurePayload{
		JobID:        job.ID,
		Operation:    string(job.Operation),
		ElectionID:   job.ElectionID,
		FailedChunks: job.FailedChunks,
		TotalChunks:  job.TotalChunks,
		OccurredAt:   occurredAt,
	}
	if job.ErrorMessage != nil {
		payload.Error = *job.ErrorMessage
	}
	return payload
}

// NotifyJobFailure fan-outs the job failure payload to all sinks.
func (s *Service) NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload) {
	if len(s.sinks) == 0 {
		return
	}

	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendJobFailure(ctx, payload); err != nil {
				s.logger.Error("failure notifier delivery error",
					"sink", entry.Name,
					"job_id", payload.JobID,
					"operation", payload.Operation,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}
