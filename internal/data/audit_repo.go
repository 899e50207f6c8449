package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/data/pgxutil"
	"github.com/quorumworks/tallyd/internal/domain/model"
)

// ErrAuditEntryNotFound is returned when finishing an audit entry that does not exist.
var ErrAuditEntryNotFound = errors.New("audit entry not found")

// advisoryLockReaperAudit is the minor key for DeleteBefore under the reaper
// advisory lock namespace.
const advisoryLockReaperAudit = 3

// AuditRepo records per-chunk processing attempts. Audit rows are purely an
// observability side channel; chunk processing never reads them back.
type AuditRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAuditRepo creates an AuditRepo. A nil TimeProvider falls back to system time.
func NewAuditRepo(db *sql.DB, tp TimeProvider) *AuditRepo {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &AuditRepo{DB: db, timeProvider: tp}
}

// RecordStart opens an audit entry for one processing attempt and returns its id.
func (r *AuditRepo) RecordStart(ctx context.Context, params core.RecordChunkStartParams) (int64, error) {
	if params.JobID == "" {
		return 0, errors.New("job id is required")
	}

	var id int64
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO chunk_audit(job_id, chunk_index, worker_id, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, params.JobID, params.ChunkIndex, params.WorkerID, r.timeProvider.Now().UTC())
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("record chunk start: %w", err)
	}
	return id, nil
}

// RecordFinish closes an audit entry with its outcome.
func (r *AuditRepo) RecordFinish(ctx context.Context, params core.RecordChunkFinishParams) error {
	switch params.Outcome {
	case model.ChunkOutcomeCompleted, model.ChunkOutcomeFailed, model.ChunkOutcomeSkipped:
	default:
		return fmt.Errorf("invalid chunk outcome: %s", params.Outcome)
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE chunk_audit
		SET finished_at = $2,
			outcome = $3,
			error_message = NULLIF($4, '')
		WHERE id = $1
	`, params.EntryID, r.timeProvider.Now().UTC(), string(params.Outcome), params.ErrorMsg)
	if err != nil {
		return fmt.Errorf("record chunk finish: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAuditEntryNotFound
	}
	return nil
}

// TimingStats aggregates attempt counts and durations for one job.
func (r *AuditRepo) TimingStats(ctx context.Context, jobID string) (*model.ChunkTimingStats, error) {
	query := `
		SELECT
			COUNT(*) AS attempts,
			COUNT(*) FILTER (WHERE outcome = 'completed') AS completed,
			COUNT(*) FILTER (WHERE outcome = 'failed') AS failed,
			COALESCE(AVG(EXTRACT(EPOCH FROM (finished_at - started_at)) * 1000)
				FILTER (WHERE finished_at IS NOT NULL), 0) AS avg_duration_ms,
			COALESCE(SUM(EXTRACT(EPOCH FROM (finished_at - started_at)) * 1000)
				FILTER (WHERE finished_at IS NOT NULL), 0) AS total_duration_ms
		FROM chunk_audit
		WHERE job_id = $1
	`

	var stats model.ChunkTimingStats
	row := r.DB.QueryRowContext(ctx, query, jobID)
	if err := row.Scan(&stats.Attempts, &stats.Completed, &stats.Failed, &stats.AvgDurationMS, &stats.TotalDurationMS); err != nil {
		return nil, fmt.Errorf("chunk timing stats: %w", err)
	}
	return &stats, nil
}

// ListFailures returns the failed attempts for a job, oldest first, so the
// first error a chunk ever hit reads top of the list.
func (r *AuditRepo) ListFailures(ctx context.Context, jobID string) ([]*model.ChunkAuditEntry, error) {
	query := `
		SELECT id, job_id, chunk_index, worker_id, started_at, finished_at, outcome, error_message
		FROM chunk_audit
		WHERE job_id = $1 AND outcome = 'failed'
		ORDER BY started_at ASC, id ASC
	`

	rows, err := r.DB.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("query chunk failures: %w", err)
	}
	defer rows.Close()

	entries := []*model.ChunkAuditEntry{}
	for rows.Next() {
		entry, scanErr := scanAuditEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan chunk failure: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk failures: %w", err)
	}
	return entries, nil
}

func scanAuditEntry(scanner jobRowScanner) (*model.ChunkAuditEntry, error) {
	entry := &model.ChunkAuditEntry{}
	var finishedAt sql.NullTime
	var outcome, errorMessage sql.NullString

	if err := scanner.Scan(
		&entry.ID,
		&entry.JobID,
		&entry.ChunkIndex,
		&entry.WorkerID,
		&entry.StartedAt,
		&finishedAt,
		&outcome,
		&errorMessage,
	); err != nil {
		return nil, err
	}

	entry.FinishedAt = cloneNullableTime(finishedAt)
	entry.Outcome = model.ChunkOutcome(outcome.String)
	entry.ErrorMessage = cloneNullableString(errorMessage)
	return entry, nil
}

// DeleteBefore trims audit rows whose attempt finished before the cutoff.
// Processes up to batchSize rows per call to prevent long locks and I/O spikes.
// Uses advisory locks to prevent concurrent reaper instances from conflicting.
func (r *AuditRepo) DeleteBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperAudit).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			res, err := tx.ExecContext(ctx, `
				DELETE FROM chunk_audit
				USING (
					SELECT ctid
					FROM chunk_audit
					WHERE finished_at IS NOT NULL
					  AND finished_at < $1
					ORDER BY finished_at
					LIMIT $2
				) sub
				WHERE chunk_audit.ctid = sub.ctid
			`, cutoff.UTC(), batchSize)
			if err != nil {
				return fmt.Errorf("delete old audit rows: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}
