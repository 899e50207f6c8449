package core

import (
	"context"
	"time"

	"github.com/quorumworks/tallyd/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// CreateJobParams groups parameters for JobRepository.Create to keep param count ≤3.
type CreateJobParams struct {
	ElectionID  string
	Operation   model.OperationType
	TotalChunks int
	CreatedBy   string
	Metadata    model.JobMetadata
}

// IncrementFailedParams groups parameters for JobRepository.IncrementFailed.
type IncrementFailedParams struct {
	JobID    string
	ErrorMsg string
}

// MarkFailedParams groups parameters for JobRepository.MarkFailed.
type MarkFailedParams struct {
	JobID    string
	ErrorMsg string
}

// JobRepository defines the interface for job data operations.
type JobRepository interface {
	Create(ctx context.Context, params CreateJobParams) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)
	ListActive(ctx context.Context) ([]*model.Job, error)
	Stats(ctx context.Context, op model.OperationType) (*model.JobStats, error)

	// IncrementProcessed atomically bumps processed_chunks by one and derives
	// the job status from the freshly incremented counters in the same
	// statement. Terminal jobs are left untouched (ErrJobNotActive).
	IncrementProcessed(ctx context.Context, id string) (*model.Job, error)

	// IncrementFailed atomically bumps failed_chunks by one. The first
	// non-empty error message recorded across all chunk failures is kept.
	IncrementFailed(ctx context.Context, params IncrementFailedParams) (*model.Job, error)

	// MarkFailed forces an active job into the failed state without touching
	// the chunk counters. Already-terminal jobs are returned unchanged.
	MarkFailed(ctx context.Context, params MarkFailedParams) (*model.Job, error)
}

// DeleteOldJobsParams groups parameters for DeleteOldJobs to keep param count ≤3.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository defines the interface for job cleanup operations.
type ReaperRepository interface {
	// FailStaleJobs marks active jobs that have not been updated within maxAge
	// as failed. Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs marked as failed.
	FailStaleJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldJobs deletes terminal jobs with the given status older than maxAge.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs deleted.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
}

// ChunkRepository defines the interface for chunk plan and tally data operations.
type ChunkRepository interface {
	// SaveAssignments persists the chunk-to-ballot mapping produced when a
	// tally job is partitioned. The mapping is written once per election and
	// reread verbatim by every later operation on the same election.
	SaveAssignments(ctx context.Context, assignments []*model.ChunkAssignment) error
	GetAssignment(ctx context.Context, electionID string, chunkIndex int) (*model.ChunkAssignment, error)
	CountAssignments(ctx context.Context, electionID string) (int, error)

	// SaveTally stores the encrypted aggregate for a chunk. Returns false when
	// a tally for the chunk already exists; the stored row wins and the new
	// value is discarded.
	SaveTally(ctx context.Context, tally *model.ChunkTally) (bool, error)
	GetTally(ctx context.Context, electionID string, chunkIndex int) (*model.ChunkTally, error)
}

// CipherItemRepository defines the interface for encrypted ballot data operations.
type CipherItemRepository interface {
	// ListIDs returns every ballot id for the election in stable insertion
	// order. Partitioning snapshots this list, so the order must not depend
	// on anything that changes between calls.
	ListIDs(ctx context.Context, electionID string) ([]string, error)
	ListByIDs(ctx context.Context, electionID string, ids []string) ([]*model.CipherItem, error)
	Count(ctx context.Context, electionID string) (int, error)
	BulkInsert(ctx context.Context, items []*model.CipherItem) (int, error)
}

// ShareLookupParams identifies one share row for point reads.
// MissingGuardianID applies to compensated shares only.
type ShareLookupParams struct {
	ElectionID        string
	ChunkIndex        int
	GuardianID        string
	MissingGuardianID string
}

// ShareRepository defines the interface for decryption share data operations.
// Inserts are keyed by (election, chunk, contributor) so redelivered chunk
// messages collapse onto the existing row.
type ShareRepository interface {
	// InsertPartial stores a guardian's partial share for a chunk. Returns
	// false when the (chunk, guardian) share already exists.
	InsertPartial(ctx context.Context, share *model.PartialShare) (bool, error)

	// InsertCompensated stores a compensated share for a missing guardian.
	// Returns false when the (chunk, guardian, missing guardian) share
	// already exists.
	InsertCompensated(ctx context.Context, share *model.CompensatedShare) (bool, error)

	// GetPartial and GetCompensated read one share row. Workers whose insert
	// was absorbed use them to learn which job wrote the existing row.
	GetPartial(ctx context.Context, params ShareLookupParams) (*model.PartialShare, error)
	GetCompensated(ctx context.Context, params ShareLookupParams) (*model.CompensatedShare, error)

	CountForChunk(ctx context.Context, electionID string, chunkIndex int) (model.ShareCount, error)
	ListForChunk(ctx context.Context, electionID string, chunkIndex int) (*model.ChunkShares, error)
}

// ResultRepository defines the interface for combined plaintext result data operations.
type ResultRepository interface {
	// Insert stores the combined plaintext for a chunk. Returns false when a
	// result row already exists, which is how concurrent combine attempts for
	// the same chunk collapse to a single effective write.
	Insert(ctx context.Context, result *model.ChunkResult) (bool, error)
	GetByChunk(ctx context.Context, electionID string, chunkIndex int) (*model.ChunkResult, error)
	ListByElection(ctx context.Context, electionID string) ([]*model.ChunkResult, error)
	Count(ctx context.Context, electionID string) (int, error)
}

// RecordChunkStartParams groups parameters for AuditRepository.RecordStart.
type RecordChunkStartParams struct {
	JobID      string
	ChunkIndex int
	WorkerID   string
}

// RecordChunkFinishParams groups parameters for AuditRepository.RecordFinish.
type RecordChunkFinishParams struct {
	EntryID  int64
	Outcome  model.ChunkOutcome
	ErrorMsg string
}

// AuditRepository defines the interface for per-chunk attempt bookkeeping.
type AuditRepository interface {
	RecordStart(ctx context.Context, params RecordChunkStartParams) (int64, error)
	RecordFinish(ctx context.Context, params RecordChunkFinishParams) error
	TimingStats(ctx context.Context, jobID string) (*model.ChunkTimingStats, error)
	ListFailures(ctx context.Context, jobID string) ([]*model.ChunkAuditEntry, error)

	// DeleteBefore trims audit rows finished before the cutoff.
	// Processes up to batchSize rows per call.
	DeleteBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}
