package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/quorumworks/tallyd/internal/data/pgxutil"
	"github.com/quorumworks/tallyd/internal/domain/model"
)

// ErrResultNotFound is returned when a chunk has no combined result yet.
var ErrResultNotFound = errors.New("chunk result not found")

// ResultRepo provides database operations for combined chunk plaintexts.
type ResultRepo struct{ DB *sql.DB }

// Insert stores the combined plaintext for a chunk. The unique result row per
// chunk is what collapses concurrent combine attempts: exactly one caller sees
// true, everyone else false.
func (r *ResultRepo) Insert(ctx context.Context, result *model.ChunkResult) (bool, error) {
	if result == nil {
		return false, errors.New("chunk result is required")
	}
	if result.ElectionID == "" {
		return false, errors.New("election id is required")
	}
	if result.JobID == "" {
		return false, errors.New("job id is required")
	}
	if len(result.Plaintext) == 0 {
		return false, errors.New("plaintext is required")
	}

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO chunk_results(election_id, chunk_index, job_id, plaintext, share_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (election_id, chunk_index) DO NOTHING
	`, result.ElectionID, result.ChunkIndex, result.JobID, []byte(result.Plaintext), result.ShareCount)
	if err != nil {
		return false, fmt.Errorf("insert chunk result: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// GetByChunk returns the combined plaintext for one chunk.
func (r *ResultRepo) GetByChunk(ctx context.Context, electionID string, chunkIndex int) (*model.ChunkResult, error) {
	query := `
		SELECT election_id, chunk_index, job_id, plaintext, share_count, combined_at
		FROM chunk_results
		WHERE election_id = $1 AND chunk_index = $2
	`

	result := &model.ChunkResult{}
	var plaintext []byte
	row := r.DB.QueryRowContext(ctx, query, electionID, chunkIndex)
	if err := row.Scan(&result.ElectionID, &result.ChunkIndex, &result.JobID, &plaintext, &result.ShareCount, &result.CombinedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get chunk result: %w", err)
	}

	result.Plaintext = cloneJSON(plaintext)
	return result, nil
}

// ListByElection returns every combined chunk for the election in chunk order.
func (r *ResultRepo) ListByElection(ctx context.Context, electionID string) ([]*model.ChunkResult, error) {
	query := `
		SELECT election_id, chunk_index, job_id, plaintext, share_count, combined_at
		FROM chunk_results
		WHERE election_id = $1
		ORDER BY chunk_index ASC
	`

	var result []*model.ChunkResult
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, electionID)
		if err != nil {
			return fmt.Errorf("query chunk results: %w", err)
		}
		defer rows.Close()

		vals, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.ChunkResult])
		if err != nil {
			return fmt.Errorf("collect chunk results: %w", err)
		}
		result = vals
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// Count returns how many chunks of the election have been combined.
func (r *ResultRepo) Count(ctx context.Context, electionID string) (int, error) {
	var n int
	row := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM chunk_results
		WHERE election_id = $1
	`, electionID)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunk results: %w", err)
	}
	return n, nil
}
