package data

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/quorumworks/tallyd/internal/data/database"
	"github.com/quorumworks/tallyd/internal/data/pgxutil"
	"github.com/quorumworks/tallyd/internal/domain/model"
)

func buildJobListConditions(opts model.JobListOptions) []database.Condition {
	conds := []database.Condition{}
	if opts.ElectionID != "" {
		conds = append(conds, database.WhereCond("election_id", database.Equal, opts.ElectionID))
	}
	if opts.Status != nil {
		conds = append(conds, database.WhereCond("status", database.Equal, string(*opts.Status)))
	}
	if opts.Operation != nil {
		conds = append(conds, database.WhereCond("operation_type", database.Equal, string(*opts.Operation)))
	}
	return conds
}

// List returns jobs matching the given filters, newest first.
func (r *JobRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50 // Default limit
	}
	if limit > 1000 {
		limit = 1000 // Max limit
	}
	offset := max(opts.Offset, 0)

	query, args := database.BuildListQuery(database.NewListQueryOptions("jobs",
		database.WithColumns(jobColumnNames...),
		database.WithConditions(buildJobListConditions(opts)...),
		database.WithOrderBy("created_at", "DESC"),
		database.WithLimit(limit),
		database.WithOffset(offset),
	))

	var result []*model.Job
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query jobs: %w", err)
		}
		defer rows.Close()

		vals, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Job])
		if err != nil {
			return fmt.Errorf("collect jobs: %w", err)
		}
		result = vals
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListActive returns every queued or in-progress job across all elections,
// oldest first so long-running work surfaces at the top.
func (r *JobRepo) ListActive(ctx context.Context) ([]*model.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status IN ('queued', 'in_progress')
		ORDER BY created_at ASC, id ASC
	`

	var result []*model.Job
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return fmt.Errorf("query active jobs: %w", err)
		}
		defer rows.Close()

		vals, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Job])
		if err != nil {
			return fmt.Errorf("collect active jobs: %w", err)
		}
		result = vals
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// Stats returns per-status job counts for one operation type.
func (r *JobRepo) Stats(ctx context.Context, op model.OperationType) (*model.JobStats, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("invalid operation type: %s", op)
	}

	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'queued') AS queued,
			COUNT(*) FILTER (WHERE status = 'in_progress') AS in_progress,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed
		FROM jobs
		WHERE operation_type = $1
	`

	var stats model.JobStats
	row := r.DB.QueryRowContext(ctx, query, string(op))
	if err := row.Scan(&stats.Queued, &stats.InProgress, &stats.Completed, &stats.Failed); err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return &stats, nil
}
