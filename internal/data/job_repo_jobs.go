package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/domain/model"
)

// SQL used by IncrementProcessed. The counters on the right-hand side are the
// values before this update, so the terminal decision reads the freshly
// incremented totals without a separate SELECT. The WHERE clause drops the
// update once every chunk is accounted for, which is what makes redelivered
// completions harmless.
const incrementProcessedSQL = `
  UPDATE jobs
  SET
    processed_chunks = processed_chunks + 1,
    status = CASE
      WHEN status = 'failed' THEN 'failed'
      WHEN processed_chunks + 1 + failed_chunks >= total_chunks AND failed_chunks > 0 THEN 'failed'
      WHEN processed_chunks + 1 + failed_chunks >= total_chunks THEN 'completed'
      ELSE 'in_progress'
    END,
    started_at = COALESCE(started_at, $2),
    completed_at = CASE
      WHEN processed_chunks + 1 + failed_chunks >= total_chunks THEN COALESCE(completed_at, $2)
      ELSE completed_at
    END,
    updated_at = $2
  WHERE id = $1 AND status <> 'completed' AND processed_chunks + failed_chunks < total_chunks
  RETURNING ` + jobColumns

// SQL used by IncrementFailed. A failed chunk never completes the job early;
// the job stays in progress until every chunk reports, then lands on failed.
const incrementFailedSQL = `
  UPDATE jobs
  SET
    failed_chunks = failed_chunks + 1,
    status = CASE
      WHEN processed_chunks + failed_chunks + 1 >= total_chunks THEN 'failed'
      WHEN status = 'queued' THEN 'in_progress'
      ELSE status
    END,
    error_message = COALESCE(error_message, NULLIF($2, '')),
    started_at = COALESCE(started_at, $3),
    completed_at = CASE
      WHEN processed_chunks + failed_chunks + 1 >= total_chunks THEN COALESCE(completed_at, $3)
      ELSE completed_at
    END,
    updated_at = $3
  WHERE id = $1 AND status <> 'completed' AND processed_chunks + failed_chunks < total_chunks
  RETURNING ` + jobColumns

const markFailedSQL = `
  UPDATE jobs
  SET
    status = 'failed',
    error_message = COALESCE(error_message, NULLIF($2, '')),
    started_at = COALESCE(started_at, $3),
    completed_at = COALESCE(completed_at, $3),
    updated_at = $3
  WHERE id = $1 AND status IN ('queued', 'in_progress')
  RETURNING ` + jobColumns

func validateCreateJobParams(p core.CreateJobParams) error {
	if strings.TrimSpace(p.ElectionID) == "" {
		return errors.New("election id is required")
	}
	if !p.Operation.Valid() {
		return fmt.Errorf("invalid operation type: %s", p.Operation)
	}
	if p.TotalChunks <= 0 {
		return errors.New("total chunks must be positive")
	}
	return p.Metadata.ValidateFor(p.Operation)
}

// Create inserts a new queued job. The partial unique index on active
// (election_id, operation_type) pairs rejects a second live job for the same
// operation, which surfaces here as ErrDuplicateActiveJob.
func (r *JobRepo) Create(ctx context.Context, params core.CreateJobParams) (*model.Job, error) {
	if err := validateCreateJobParams(params); err != nil {
		return nil, err
	}

	meta, err := json.Marshal(params.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal job metadata: %w", err)
	}

	query := `
      INSERT INTO jobs(election_id, operation_type, status, total_chunks, created_by, metadata, created_at, updated_at)
      VALUES ($1, $2, 'queued', $3, $4, $5, $6, $6)
      RETURNING ` + jobColumns

	currentTime := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(
		ctx,
		query,
		params.ElectionID,
		params.Operation,
		params.TotalChunks,
		params.CreatedBy,
		meta,
		currentTime,
	)

	job, scanErr := scanJobFromRow(row)
	if scanErr != nil {
		var pgErr *pgconn.PgError
		if errors.As(scanErr, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrDuplicateActiveJob
		}
		return nil, fmt.Errorf("insert job: %w", scanErr)
	}

	return job, nil
}

// GetByID retrieves a job by its id.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJobFromRow(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// IncrementProcessed records one successfully processed chunk and returns the
// job as the update left it.
func (r *JobRepo) IncrementProcessed(ctx context.Context, id string) (*model.Job, error) {
	currentTime := r.timeProvider.Now().UTC()

	job, err := scanJobFromRow(r.DB.QueryRowContext(ctx, incrementProcessedSQL, id, currentTime))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.classifySettled(ctx, id)
		}
		return nil, fmt.Errorf("increment processed chunks: %w", err)
	}
	return job, nil
}

// IncrementFailed records one terminally failed chunk. The first non-empty
// error message across all chunk failures is retained on the job.
func (r *JobRepo) IncrementFailed(ctx context.Context, params core.IncrementFailedParams) (*model.Job, error) {
	currentTime := r.timeProvider.Now().UTC()

	job, err := scanJobFromRow(
		r.DB.QueryRowContext(ctx, incrementFailedSQL, params.JobID, params.ErrorMsg, currentTime),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.classifySettled(ctx, params.JobID)
		}
		return nil, fmt.Errorf("increment failed chunks: %w", err)
	}
	return job, nil
}

// MarkFailed forces an active job into the failed state, leaving the chunk
// counters untouched. Calling it on a job that already reached a terminal
// state returns the job unchanged.
func (r *JobRepo) MarkFailed(ctx context.Context, params core.MarkFailedParams) (*model.Job, error) {
	currentTime := r.timeProvider.Now().UTC()

	job, err := scanJobFromRow(
		r.DB.QueryRowContext(ctx, markFailedSQL, params.JobID, params.ErrorMsg, currentTime),
	)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mark job failed: %w", err)
	}

	// No row updated: the job is missing or already terminal.
	return r.GetByID(ctx, params.JobID)
}

// classifySettled distinguishes a missing job from one whose chunks are all
// accounted for. Redeliveries routinely hit settled jobs, so the latter is
// reported as a benign ErrJobNotActive.
func (r *JobRepo) classifySettled(ctx context.Context, id string) error {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "counter update ignored for settled job",
			"job_id", id,
			"status", job.Status,
		)
	}
	return ErrJobNotActive
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	metadata               []byte
	errorMessage           sql.NullString
	startedAt, completedAt sql.NullTime
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.ElectionID,
		&job.Operation,
		&job.Status,
		&job.TotalChunks,
		&job.ProcessedChunks,
		&job.FailedChunks,
		&job.CreatedBy,
		&d.metadata,
		&d.errorMessage,
		&d.startedAt,
		&d.completedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}

func (d *jobRowData) apply(job *model.Job) {
	job.Metadata = cloneJSON(d.metadata)
	job.ErrorMessage = cloneNullableString(d.errorMessage)
	job.StartedAt = cloneNullableTime(d.startedAt)
	job.CompletedAt = cloneNullableTime(d.completedAt)
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}

	data.apply(job)
	return job, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
