package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/domain/model"
	apperrors "github.com/quorumworks/tallyd/internal/errors"
)

// ProgressOptions groups dependencies for ProgressService.
type ProgressOptions struct {
	Jobs   core.JobRepository   // Required: job rows and counters
	Audit  core.AuditRepository // Required: per-chunk attempt history
	Locks  core.LockManager     // Optional: surfaces the lock holder on active jobs
	Logger *slog.Logger         // Optional: structured logger
}

// ProgressService serves the read side of the orchestration surface: job
// snapshots for polling clients, per-chunk drill-downs, and per-operation
// stats. It never mutates anything, so every method is safe to call at any
// point in a job's lifecycle.
type ProgressService struct {
	jobs   core.JobRepository
	audit  core.AuditRepository
	locks  core.LockManager
	logger *slog.Logger
}

// NewProgressService constructs a new ProgressService.
func NewProgressService(opts ProgressOptions) (*ProgressService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Audit == nil {
		return nil, errors.New("AuditRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "progress_service")
	}

	return &ProgressService{
		jobs:   opts.Jobs,
		audit:  opts.Audit,
		locks:  opts.Locks,
		logger: logger,
	}, nil
}

// MustNewProgressService constructs a new ProgressService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewProgressService(opts ProgressOptions) *ProgressService {
	svc, err := NewProgressService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ProgressService: %v", err))
	}
	return svc
}

// GetJob returns the polling view of one job: the row, derived percent,
// timing aggregates, and the current lock holder while the job is active.
// Timing and lock lookups are best effort and never fail the read.
func (s *ProgressService) GetJob(ctx context.Context, id string) (*model.JobProgress, error) {
	if id == "" {
		return nil, apperrors.Validation("job id is required")
	}

	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	progress := &model.JobProgress{
		Job:     job,
		Percent: job.Percent(),
	}

	timing, err := s.audit.TimingStats(ctx, id)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to load chunk timing stats",
				"job_id", id, "error", err)
		}
	} else {
		progress.Timing = timing
	}

	if s.locks != nil && job.Active() {
		key := model.LockKey{ElectionID: job.ElectionID, Operation: job.Operation}
		lock, err := s.locks.Peek(ctx, key)
		if err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "failed to peek operation lock",
					"job_id", id, "lock_key", key.String(), "error", err)
			}
		} else {
			progress.Lock = lock
		}
	}

	return progress, nil
}

// GetJobChunks returns the per-chunk drill-down for one job: timing aggregates
// plus the audit row of every failed attempt.
func (s *ProgressService) GetJobChunks(ctx context.Context, jobID string) (*model.JobChunksView, error) {
	if jobID == "" {
		return nil, apperrors.Validation("job id is required")
	}

	// Resolve the job first so an unknown id reads as not found rather than
	// an empty drill-down.
	if _, err := s.jobs.GetByID(ctx, jobID); err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}

	timing, err := s.audit.TimingStats(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load chunk timing stats for job %s: %w", jobID, err)
	}

	failures, err := s.audit.ListFailures(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list chunk failures for job %s: %w", jobID, err)
	}
	if failures == nil {
		failures = []*model.ChunkAuditEntry{}
	}

	return &model.JobChunksView{
		JobID:    jobID,
		Timing:   timing,
		Failures: failures,
	}, nil
}

// ListElectionJobs returns the job history for one election, newest first,
// with optional status and operation filters. Pagination is normalized here
// to avoid drift across layers.
func (s *ProgressService) ListElectionJobs(
	ctx context.Context,
	opts model.JobListOptions,
) ([]*model.Job, error) {
	if opts.ElectionID == "" {
		return nil, apperrors.Validation("election id is required")
	}
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, apperrors.Validationf("invalid job status filter: %q", *opts.Status)
	}
	if opts.Operation != nil && !opts.Operation.Valid() {
		return nil, apperrors.Validationf("invalid operation type filter: %q", *opts.Operation)
	}

	p := normalizePagination(opts.Limit, opts.Offset)
	opts.Limit = p.Limit
	opts.Offset = p.Offset

	jobs, err := s.jobs.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs for election %s: %w", opts.ElectionID, err)
	}
	return jobs, nil
}

// ListActive returns every queued or in-progress job across all elections.
func (s *ProgressService) ListActive(ctx context.Context) ([]*model.Job, error) {
	jobs, err := s.jobs.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	return jobs, nil
}

// Stats summarizes jobs per status for one operation type.
func (s *ProgressService) Stats(ctx context.Context, op model.OperationType) (*model.JobStats, error) {
	if !op.Valid() {
		return nil, apperrors.Validationf("invalid operation type: %q", op)
	}

	stats, err := s.jobs.Stats(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("job stats for operation %s: %w", op, err)
	}
	return stats, nil
}

type paginationParams struct {
	Limit  int
	Offset int
}

// normalizePagination clamps pagination parameters to safe defaults.
// Default limit: 50, max limit: 1000, min offset: 0.
func normalizePagination(limit, offset int) paginationParams {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return paginationParams{Limit: limit, Offset: offset}
}
