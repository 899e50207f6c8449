package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/quorumworks/tallyd/config"
	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/domain/model"
	"github.com/quorumworks/tallyd/internal/domain/partition"
	apperrors "github.com/quorumworks/tallyd/internal/errors"
	"github.com/quorumworks/tallyd/internal/observability/metrics"
	"github.com/quorumworks/tallyd/internal/observability/statsd"
)

// OrchestratorOptions groups dependencies for OrchestratorService.
type OrchestratorOptions struct {
	Jobs      core.JobRepository        // Required: job registry
	Chunks    core.ChunkRepository      // Required: chunk assignments
	Items     core.CipherItemRepository // Required: encrypted ballot store
	Locks     core.LockManager          // Required: per-operation election lock
	Publisher core.ChunkPublisher       // Required: broker publisher
	Config    config.OrchestratorConfig // Required: chunk size, lock TTL, holder
	Logger    *slog.Logger              // Optional: structured logger
	Metrics   statsd.Sink               // Optional: metrics sink (StatsD-compatible)
}

// OrchestratorService initiates jobs: it serializes initiation per
// (election, operation) through the lock manager, plans chunks, records the
// job, persists tally assignments, and publishes one message per chunk.
//
// Job creation and message publication are deliberately non-atomic; consumers
// are idempotent, so a crash between the two leaves at worst a job the reaper
// eventually fails.
type OrchestratorService struct {
	jobs      core.JobRepository
	chunks    core.ChunkRepository
	items     core.CipherItemRepository
	locks     core.LockManager
	publisher core.ChunkPublisher
	planner   *partition.Planner
	lockTTL   time.Duration
	holder    string
	logger    *slog.Logger
	metrics   statsd.Sink
}

// InitiateRequest carries the caller-supplied parameters for starting a job.
type InitiateRequest struct {
	ElectionID string
	Operation  model.OperationType
	CreatedBy  string
	Metadata   model.JobMetadata
}

// Validate checks the request before any lock or database work happens.
func (r *InitiateRequest) Validate() error {
	if r.ElectionID == "" {
		return apperrors.Validation("election id is required")
	}
	if !r.Operation.Valid() {
		return apperrors.Validationf("invalid operation type: %q", r.Operation)
	}
	if err := r.Metadata.ValidateFor(r.Operation); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid job metadata")
	}
	return nil
}

// NewOrchestratorService constructs a new OrchestratorService.
func NewOrchestratorService(opts OrchestratorOptions) (*OrchestratorService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Chunks == nil {
		return nil, errors.New("ChunkRepository is required")
	}
	if opts.Items == nil {
		return nil, errors.New("CipherItemRepository is required")
	}
	if opts.Locks == nil {
		return nil, errors.New("LockManager is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("ChunkPublisher is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	holder := cfg.LockHolder
	if holder == "" {
		if hostname, err := os.Hostname(); err == nil {
			holder = hostname
		} else {
			holder = "tallyd"
		}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "orchestrator_service")
		logger.Debug("OrchestratorService initialized",
			"chunk_size", cfg.ChunkSize,
			"lock_ttl", cfg.LockTTL,
			"lock_holder", holder,
		)
	}

	return &OrchestratorService{
		jobs:      opts.Jobs,
		chunks:    opts.Chunks,
		items:     opts.Items,
		locks:     opts.Locks,
		publisher: opts.Publisher,
		planner:   partition.NewPlanner(cfg.ChunkSize),
		lockTTL:   cfg.LockTTL,
		holder:    holder,
		logger:    logger,
		metrics:   opts.Metrics,
	}, nil
}

// MustNewOrchestratorService constructs a new OrchestratorService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewOrchestratorService(opts OrchestratorOptions) *OrchestratorService {
	svc, err := NewOrchestratorService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create OrchestratorService: %v", err))
	}
	return svc
}

// operationPlan is everything initiation needs once planning succeeded: the
// chunk count recorded on the job row and, for tally, the assignments to
// persist before anything is published.
type operationPlan struct {
	descriptors []partition.Descriptor
	assignments []*model.ChunkAssignment
}

// Initiate starts a job for the given election and operation. It acquires the
// operation lock, plans the chunks, creates the job row, persists tally
// assignments, and publishes one message per chunk.
//
// The lock is released only when initiation fails; on success it is left to
// expire with its TTL so a second initiation of the same operation stays
// rejected while the job runs.
func (s *OrchestratorService) Initiate(ctx context.Context, req *InitiateRequest) (*model.Job, error) {
	start := time.Now()

	if req == nil {
		return nil, apperrors.Validation("initiate request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := model.LockKey{ElectionID: req.ElectionID, Operation: req.Operation}
	token, err := s.locks.Acquire(ctx, key, core.AcquireLockParams{
		Holder: s.holder,
		TTL:    s.lockTTL,
	})
	if err != nil {
		s.emitInitiated(req.Operation, time.Since(start), err)
		return nil, fmt.Errorf("initiate %s for election %s: %w", req.Operation, req.ElectionID, err)
	}

	job, err := s.initiateLocked(ctx, req)
	if err != nil {
		s.releaseLock(ctx, key, token)
		s.emitInitiated(req.Operation, time.Since(start), err)
		return nil, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "initiated job",
			"job_id", job.ID,
			"election_id", job.ElectionID,
			"operation", job.Operation,
			"total_chunks", job.TotalChunks,
		)
	}
	s.emitInitiated(req.Operation, time.Since(start), nil)

	return job, nil
}

// initiateLocked runs the initiation steps that happen under the lock.
func (s *OrchestratorService) initiateLocked(
	ctx context.Context,
	req *InitiateRequest,
) (*model.Job, error) {
	plan, err := s.plan(ctx, req)
	if err != nil {
		return nil, err
	}

	job, err := s.jobs.Create(ctx, core.CreateJobParams{
		ElectionID:  req.ElectionID,
		Operation:   req.Operation,
		TotalChunks: len(plan.descriptors),
		CreatedBy:   req.CreatedBy,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s job for election %s: %w", req.Operation, req.ElectionID, err)
	}

	if len(plan.assignments) > 0 {
		if err := s.chunks.SaveAssignments(ctx, plan.assignments); err != nil {
			s.failJob(ctx, job.ID, fmt.Sprintf("persist chunk assignments: %v", err))
			return nil, fmt.Errorf("persist chunk assignments for job %s: %w", job.ID, err)
		}
	}

	if err := s.dispatch(ctx, job, req, plan.descriptors); err != nil {
		return nil, err
	}

	return job, nil
}

// plan computes the chunk layout for the requested operation. Tally plans from
// the election's cipher items and snapshots per-chunk assignments; every other
// operation reuses the tally's persisted chunk layout one message per chunk.
func (s *OrchestratorService) plan(ctx context.Context, req *InitiateRequest) (*operationPlan, error) {
	if req.Operation == model.OperationTally {
		return s.planTally(ctx, req.ElectionID)
	}
	return s.planFromExistingChunks(ctx, req.ElectionID)
}

func (s *OrchestratorService) planTally(ctx context.Context, electionID string) (*operationPlan, error) {
	itemIDs, err := s.items.ListIDs(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("list cipher items for election %s: %w", electionID, err)
	}
	if len(itemIDs) == 0 {
		return nil, apperrors.Validationf("election %s has no cipher items to tally", electionID)
	}

	descriptors, err := s.planner.Plan(len(itemIDs))
	if err != nil {
		return nil, fmt.Errorf("plan chunks for election %s: %w", electionID, err)
	}
	if err := partition.Validate(descriptors, len(itemIDs)); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation,
			"chunk plan for election %s is inconsistent", electionID)
	}

	assignments := make([]*model.ChunkAssignment, 0, len(descriptors))
	for _, d := range descriptors {
		assignments = append(assignments, &model.ChunkAssignment{
			ElectionID: electionID,
			ChunkIndex: d.Index,
			ItemIDs:    itemIDs[d.Offset : d.Offset+d.Count],
		})
	}

	return &operationPlan{descriptors: descriptors, assignments: assignments}, nil
}

func (s *OrchestratorService) planFromExistingChunks(
	ctx context.Context,
	electionID string,
) (*operationPlan, error) {
	chunkCount, err := s.chunks.CountAssignments(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("count chunk assignments for election %s: %w", electionID, err)
	}
	if chunkCount == 0 {
		return nil, apperrors.Validationf(
			"election %s has no chunk plan; initiate a tally first", electionID)
	}

	descriptors, err := partition.PlanExisting(chunkCount)
	if err != nil {
		return nil, fmt.Errorf("plan from existing chunks for election %s: %w", electionID, err)
	}

	return &operationPlan{descriptors: descriptors}, nil
}

// dispatch publishes one message per descriptor. The publisher retries each
// message with backoff; when one still fails, dispatch aborts with the count
// published so far, marks the job failed, and reports the failure. Messages
// already published are harmless because consumers are idempotent.
func (s *OrchestratorService) dispatch(
	ctx context.Context,
	job *model.Job,
	req *InitiateRequest,
	descriptors []partition.Descriptor,
) error {
	for published, d := range descriptors {
		msg := &model.ChunkMessage{
			JobID:             job.ID,
			ElectionID:        job.ElectionID,
			Operation:         job.Operation,
			ChunkIndex:        d.Index,
			GuardianID:        req.Metadata.GuardianID,
			MissingGuardianID: req.Metadata.MissingGuardianID,
		}
		if err := s.publisher.PublishChunk(ctx, msg); err != nil {
			if s.metrics != nil {
				s.metrics.Count("dispatch.publish_failed", 1, map[string]string{
					"operation": string(job.Operation),
				})
			}
			s.failJob(ctx, job.ID, fmt.Sprintf(
				"published %d of %d chunk messages: %v", published, len(descriptors), err))
			return apperrors.Wrapf(err, apperrors.ErrCodeUnavailable,
				"publish chunk %d of job %s (%d of %d published)",
				d.Index, job.ID, published, len(descriptors))
		}
	}
	return nil
}

// failJob stamps a job failed after an initiation-side abort. Best effort: a
// failure here is logged and never masks the original error.
func (s *OrchestratorService) failJob(ctx context.Context, jobID, msg string) {
	if _, err := s.jobs.MarkFailed(ctx, core.MarkFailedParams{JobID: jobID, ErrorMsg: msg}); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to mark aborted job failed",
				"job_id", jobID, "error", err)
		}
	}
}

// releaseLock frees the operation lock after a failed initiation. Best effort:
// an expired or taken-over lock is already out of our hands.
func (s *OrchestratorService) releaseLock(ctx context.Context, key model.LockKey, token string) {
	if err := s.locks.Release(ctx, key, token); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to release operation lock",
				"election_id", key.ElectionID, "operation", key.Operation, "error", err)
		}
	}
}

func (s *OrchestratorService) emitInitiated(op model.OperationType, elapsed time.Duration, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Operation:  string(op),
		Transition: "initiated",
		Result:     result,
		Duration:   elapsed,
		Err:        err,
	})
}
