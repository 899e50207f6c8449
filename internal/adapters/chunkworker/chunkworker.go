// Package chunkworker drains operation queues and executes chunk processing
// against the crypto engine. One Runner serves one operation type; deliveries
// are acknowledged only after their outcome is settled, so the broker
// redelivers anything a crashed worker held.
package chunkworker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/data"
	"github.com/quorumworks/tallyd/internal/domain/model"
	apperrors "github.com/quorumworks/tallyd/internal/errors"
	"github.com/quorumworks/tallyd/internal/observability/metrics"
	"github.com/quorumworks/tallyd/internal/observability/statsd"
	"github.com/quorumworks/tallyd/internal/service"
	"github.com/quorumworks/tallyd/internal/service/failurenotifier"
)

// handlerFunc executes one operation type against a decoded chunk message.
// It reports how the attempt ended when no error occurred; errors flow into
// the shared retry/fail path.
type handlerFunc func(ctx context.Context, msg *model.ChunkMessage, meta *model.JobMetadata) (handlerResult, error)

// handlerResult describes a settled chunk attempt.
type handlerResult struct {
	// Credit moves the processed counter: a first-effective write, another
	// job's row already satisfying the chunk, or a vacuous empty chunk.
	// Same-job duplicates leave it false so redeliveries never double-count.
	Credit bool

	// Outcome labels the attempt in the audit log.
	Outcome model.ChunkOutcome
}

// RunnerOptions configures a chunk worker pool for a single operation type.
type RunnerOptions struct {
	Operation  model.OperationType     // Required: operation this pool serves
	Deliveries <-chan amqp091.Delivery // Required: consumer stream for the operation queue

	Jobs      core.JobRepository        // Required: job registry and counters
	Chunks    core.ChunkRepository      // Required: assignments and tallies
	Items     core.CipherItemRepository // Required: encrypted ballot store
	Shares    core.ShareRepository      // Required: decryption share store
	Results   core.ResultRepository     // Required: combined result attribution
	Engine    core.CryptoEngine         // Required: chunk math
	Combiner  *service.CombinerService  // Required: inline and explicit combines
	Publisher core.ChunkPublisher       // Required: transient retry republish

	Audit    core.AuditRepository     // Optional: per-attempt audit rows
	Notifier *failurenotifier.Service // Optional: fan-out when a job settles failed
	Logger   *slog.Logger             // Optional: structured logger
	Metrics  statsd.Sink              // Optional: metrics sink (StatsD-compatible)

	// Concurrency is the number of worker goroutines; defaults to 1.
	Concurrency int

	// MaxRetries is the transient republish budget per chunk message.
	MaxRetries int

	// WorkerID identifies this instance in audit rows. Defaults to
	// "hostname/operation".
	WorkerID string
}

// Runner consumes one operation queue and drives the per-chunk algorithm:
// load job, load inputs, call the engine, persist idempotently, move exactly
// one counter. Redelivery safety comes from the insert-or-skip writes, never
// from the broker.
type Runner struct {
	operation  model.OperationType
	deliveries <-chan amqp091.Delivery
	jobs       core.JobRepository
	chunks     core.ChunkRepository
	items      core.CipherItemRepository
	shares     core.ShareRepository
	results    core.ResultRepository
	engine     core.CryptoEngine
	combiner   *service.CombinerService
	publisher  core.ChunkPublisher
	audit      core.AuditRepository
	notifier   *failurenotifier.Service
	logger     *slog.Logger
	metrics    statsd.Sink
	workers    int
	maxRetries int
	workerID   string
	handlers   map[model.OperationType]handlerFunc
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// NewRunner validates dependencies and constructs a worker pool for one
// operation type.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if !opts.Operation.Valid() {
		return nil, fmt.Errorf("invalid operation type: %q", opts.Operation)
	}
	if opts.Deliveries == nil {
		return nil, errors.New("Deliveries channel is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Chunks == nil {
		return nil, errors.New("ChunkRepository is required")
	}
	if opts.Items == nil {
		return nil, errors.New("CipherItemRepository is required")
	}
	if opts.Shares == nil {
		return nil, errors.New("ShareRepository is required")
	}
	if opts.Results == nil {
		return nil, errors.New("ResultRepository is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("CryptoEngine is required")
	}
	if opts.Combiner == nil {
		return nil, errors.New("CombinerService is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("ChunkPublisher is required")
	}

	workers := opts.Concurrency
	if workers < 1 {
		workers = 1
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	workerID := opts.WorkerID
	if workerID == "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "tallyd"
		}
		workerID = fmt.Sprintf("%s/%s", hostname, opts.Operation)
	}

	logger := resolveLogger(opts.Logger).With(
		"component", "chunk_worker",
		"operation", opts.Operation,
	)

	r := &Runner{
		operation:  opts.Operation,
		deliveries: opts.Deliveries,
		jobs:       opts.Jobs,
		chunks:     opts.Chunks,
		items:      opts.Items,
		shares:     opts.Shares,
		results:    opts.Results,
		engine:     opts.Engine,
		combiner:   opts.Combiner,
		publisher:  opts.Publisher,
		audit:      opts.Audit,
		notifier:   opts.Notifier,
		logger:     logger,
		metrics:    opts.Metrics,
		workers:    workers,
		maxRetries: maxRetries,
		workerID:   workerID,
	}
	r.handlers = map[model.OperationType]handlerFunc{
		model.OperationTally:                 r.handleTally,
		model.OperationPartialDecryption:     r.handlePartialShare,
		model.OperationCompensatedDecryption: r.handleCompensatedShare,
		model.OperationCombine:               r.handleCombine,
	}
	return r, nil
}

// Run starts worker goroutines and processes deliveries until the context is
// cancelled or the delivery stream closes underneath the pool.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting chunk worker pool",
		"workers", r.workers,
		"max_retries", r.maxRetries,
		"worker_id", r.workerID,
	)

	// Derive a cancellable context so the first fatal error stops every worker
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.workerLoop(ctx); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (r *Runner) workerLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-r.deliveries:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("delivery stream for %s closed", r.operation)
			}
			r.processDelivery(ctx, d)
		}
	}
}

// attemptContext bundles everything the outcome helpers need once a delivery
// decoded cleanly.
type attemptContext struct {
	delivery amqp091.Delivery
	msg      *model.ChunkMessage
	entryID  int64
	emit     func(outcome string, err error)
	logger   *slog.Logger
}

// processDelivery settles exactly one delivery: every path ends in an ack or
// a nack, and at most one job counter moves.
func (r *Runner) processDelivery(ctx context.Context, d amqp091.Delivery) {
	start := time.Now()
	emit := func(outcome string, err error) {
		metrics.EmitChunkProcessed(r.metrics, metrics.ChunkMetric{
			Operation: string(r.operation),
			Outcome:   outcome,
			Duration:  time.Since(start),
			Err:       err,
		})
	}

	msg, err := model.DecodeChunkMessage(d.Body)
	if err != nil {
		r.poison(ctx, d, emit, "undecodable chunk message", err)
		return
	}
	if msg.Operation != r.operation {
		r.poison(ctx, d, emit,
			fmt.Sprintf("operation %q does not belong on the %s queue", msg.Operation, r.operation), nil)
		return
	}

	logger := r.logger.With("job_id", msg.JobID, "chunk_index", msg.ChunkIndex)

	job, err := r.jobs.GetByID(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			r.poison(ctx, d, emit, "job not found", err)
			return
		}
		at := attemptContext{delivery: d, msg: msg, emit: emit, logger: logger}
		r.retryOrFail(ctx, at, fmt.Errorf("load job %s: %w", msg.JobID, err))
		return
	}
	if !job.Active() {
		logger.DebugContext(ctx, "dropping delivery for terminal job", "status", job.Status)
		r.ack(ctx, d, logger)
		emit(string(model.ChunkOutcomeSkipped), nil)
		return
	}

	at := attemptContext{
		delivery: d,
		msg:      msg,
		entryID:  r.recordStart(ctx, msg),
		emit:     emit,
		logger:   logger,
	}

	meta, err := model.ParseJobMetadata(job.Metadata, msg.Operation)
	if err != nil {
		r.fail(ctx, at, apperrors.Wrap(err, apperrors.ErrCodeValidation, "job metadata rejected"))
		return
	}

	h, ok := r.handlers[msg.Operation]
	if !ok {
		// Unreachable while the queue/operation check above holds.
		r.poison(ctx, d, emit, fmt.Sprintf("no handler for operation %s", msg.Operation), nil)
		return
	}

	res, err := h(ctx, msg, meta)
	if err != nil {
		r.retryOrFail(ctx, at, err)
		return
	}

	if res.Credit {
		r.incrementProcessed(ctx, msg.JobID, logger)
	}
	r.recordFinish(ctx, at.entryID, res.Outcome, "")
	r.ack(ctx, d, logger)
	emit(string(res.Outcome), nil)

	logger.DebugContext(ctx, "chunk settled",
		"outcome", res.Outcome, "credited", res.Credit, "duration", time.Since(start))
}

// retryOrFail routes a processing error: shutdown interruptions requeue for
// another worker, transient errors with budget left are republished with a
// bumped retry count, and everything else fails the chunk.
func (r *Runner) retryOrFail(ctx context.Context, at attemptContext, procErr error) {
	if ctx.Err() != nil && (errors.Is(procErr, context.Canceled) || apperrors.IsCanceled(procErr)) {
		// No counters move; the audit entry stays open for the redelivery.
		at.logger.InfoContext(ctx, "requeueing chunk interrupted by shutdown", "error", procErr)
		r.nack(ctx, at.delivery, true, at.logger)
		return
	}

	if apperrors.IsTransient(procErr) && at.msg.RetryCount < r.maxRetries {
		if err := r.republish(ctx, at.msg); err != nil {
			at.logger.ErrorContext(ctx, "republish chunk for retry",
				"error", err, "processing_error", procErr)
			r.nack(ctx, at.delivery, true, at.logger)
			return
		}
		r.recordFinish(ctx, at.entryID, model.ChunkOutcomeFailed, procErr.Error())
		r.ack(ctx, at.delivery, at.logger)
		at.emit(metrics.OutcomeRetried, procErr)
		at.logger.WarnContext(ctx, "chunk failed transiently, republished",
			"attempt", at.msg.RetryCount+1, "max_retries", r.maxRetries, "error", procErr)
		return
	}

	r.fail(ctx, at, procErr)
}

// fail settles a chunk terminally: failed counter, audit row, dead-letter.
// The increment is best-effort and never masks the original error.
func (r *Runner) fail(ctx context.Context, at attemptContext, procErr error) {
	r.incrementFailed(ctx, at.msg.JobID, procErr.Error(), at.logger)
	r.recordFinish(ctx, at.entryID, model.ChunkOutcomeFailed, procErr.Error())
	r.nack(ctx, at.delivery, false, at.logger)
	at.emit(string(model.ChunkOutcomeFailed), procErr)
	at.logger.ErrorContext(ctx, "chunk failed",
		"retry_count", at.msg.RetryCount, "error", procErr)
}

// poison dead-letters a delivery that can never succeed. No counters and no
// audit rows: there is no trustworthy job to attribute the attempt to.
func (r *Runner) poison(
	ctx context.Context,
	d amqp091.Delivery,
	emit func(outcome string, err error),
	reason string,
	cause error,
) {
	r.logger.WarnContext(ctx, "dead-lettering poison delivery", "reason", reason, "error", cause)
	r.nack(ctx, d, false, r.logger)
	emit(metrics.OutcomePoison, cause)
}

// republish re-enqueues the message with the retry count bumped. The original
// delivery is acked afterwards, so the retry budget lives in the message, not
// in broker redelivery state.
func (r *Runner) republish(ctx context.Context, msg *model.ChunkMessage) error {
	retry := *msg
	retry.RetryCount++
	return r.publisher.PublishChunk(ctx, &retry)
}

func (r *Runner) incrementProcessed(ctx context.Context, jobID string, logger *slog.Logger) {
	job, err := r.jobs.IncrementProcessed(ctx, jobID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotActive) || errors.Is(err, data.ErrJobNotFound) {
			logger.DebugContext(ctx, "processed increment after terminal status", "error", err)
			return
		}
		logger.ErrorContext(ctx, "increment processed counter", "error", err)
		return
	}
	r.jobSettled(ctx, job, logger)
}

func (r *Runner) incrementFailed(ctx context.Context, jobID, errMsg string, logger *slog.Logger) {
	job, err := r.jobs.IncrementFailed(ctx, core.IncrementFailedParams{
		JobID:    jobID,
		ErrorMsg: errMsg,
	})
	if err != nil {
		if errors.Is(err, data.ErrJobNotActive) || errors.Is(err, data.ErrJobNotFound) {
			logger.DebugContext(ctx, "failed increment after terminal status", "error", err)
			return
		}
		logger.ErrorContext(ctx, "increment failed counter", "error", err)
		return
	}
	r.jobSettled(ctx, job, logger)
}

// jobSettled reacts to the increment that tripped a job's terminal transition.
// The repos refuse increments on settled jobs, so a returned terminal row means
// this worker landed the deciding counter; that makes the lifecycle emission
// and the failure fan-out fire exactly once per job.
func (r *Runner) jobSettled(ctx context.Context, job *model.Job, logger *slog.Logger) {
	if job == nil || !job.Status.Terminal() {
		return
	}

	logger.InfoContext(ctx, "job settled",
		"status", job.Status,
		"processed_chunks", job.ProcessedChunks,
		"failed_chunks", job.FailedChunks,
		"total_chunks", job.TotalChunks,
	)
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		Operation:  string(job.Operation),
		Transition: string(job.Status),
		Result:     metrics.ResultSuccess,
	})

	if job.Status == model.JobStatusFailed && r.notifier != nil && r.notifier.Enabled() {
		r.notifier.NotifyJobFailure(ctx, failurenotifier.PayloadFromJob(job, time.Now().UTC()))
	}
}

// recordStart opens an audit row for the attempt. Best effort: a zero entry id
// disables the matching finish.
func (r *Runner) recordStart(ctx context.Context, msg *model.ChunkMessage) int64 {
	if r.audit == nil {
		return 0
	}
	id, err := r.audit.RecordStart(ctx, core.RecordChunkStartParams{
		JobID:      msg.JobID,
		ChunkIndex: msg.ChunkIndex,
		WorkerID:   r.workerID,
	})
	if err != nil {
		r.logger.WarnContext(ctx, "record chunk start",
			"job_id", msg.JobID, "chunk_index", msg.ChunkIndex, "error", err)
		return 0
	}
	return id
}

func (r *Runner) recordFinish(ctx context.Context, entryID int64, outcome model.ChunkOutcome, errMsg string) {
	if r.audit == nil || entryID == 0 {
		return
	}
	if err := r.audit.RecordFinish(ctx, core.RecordChunkFinishParams{
		EntryID:  entryID,
		Outcome:  outcome,
		ErrorMsg: errMsg,
	}); err != nil {
		r.logger.WarnContext(ctx, "record chunk finish", "entry_id", entryID, "error", err)
	}
}

func (r *Runner) ack(ctx context.Context, d amqp091.Delivery, logger *slog.Logger) {
	if err := d.Ack(false); err != nil {
		logger.ErrorContext(ctx, "ack delivery", "error", err)
	}
}

func (r *Runner) nack(ctx context.Context, d amqp091.Delivery, requeue bool, logger *slog.Logger) {
	if err := d.Nack(false, requeue); err != nil {
		logger.ErrorContext(ctx, "nack delivery", "requeue", requeue, "error", err)
	}
}
