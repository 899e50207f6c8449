package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/quorumworks/tallyd/internal/data/pgxutil"
	"github.com/quorumworks/tallyd/internal/domain/model"
)

// ErrChunkNotFound is returned when a chunk assignment or tally is missing.
var ErrChunkNotFound = errors.New("chunk not found")

// ChunkRepo provides database operations for chunk plans and per-chunk tallies.
type ChunkRepo struct{ DB *sql.DB }

// SaveAssignments persists the chunk plan for an election in a single
// transaction. Replays of the same plan are absorbed row by row, so a
// partially written plan from a crashed orchestrator heals on retry.
func (r *ChunkRepo) SaveAssignments(ctx context.Context, assignments []*model.ChunkAssignment) error {
	if len(assignments) == 0 {
		return errors.New("at least one chunk assignment is required")
	}

	return pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			batch := &pgx.Batch{}

			for _, a := range assignments {
				itemIDs, err := json.Marshal(a.ItemIDs)
				if err != nil {
					return fmt.Errorf("marshal item ids for chunk %d: %w", a.ChunkIndex, err)
				}

				batch.Queue(`
					INSERT INTO chunk_assignments(election_id, chunk_index, item_ids)
					VALUES ($1, $2, $3)
					ON CONFLICT (election_id, chunk_index) DO NOTHING
				`, a.ElectionID, a.ChunkIndex, itemIDs)
			}

			br := tx.SendBatch(ctx, batch)
			for i := range assignments {
				if _, err := br.Exec(); err != nil {
					return fmt.Errorf("insert chunk assignment %d: %w", i, err)
				}
			}
			if cerr := br.Close(); cerr != nil {
				return fmt.Errorf("batch close: %w", cerr)
			}
			return nil
		},
	})
}

// GetAssignment returns the persisted item list for one chunk.
func (r *ChunkRepo) GetAssignment(ctx context.Context, electionID string, chunkIndex int) (*model.ChunkAssignment, error) {
	query := `
		SELECT election_id, chunk_index, item_ids, created_at
		FROM chunk_assignments
		WHERE election_id = $1 AND chunk_index = $2
	`

	assignment := &model.ChunkAssignment{}
	var itemIDs []byte
	row := r.DB.QueryRowContext(ctx, query, electionID, chunkIndex)
	if err := row.Scan(&assignment.ElectionID, &assignment.ChunkIndex, &itemIDs, &assignment.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChunkNotFound
		}
		return nil, fmt.Errorf("get chunk assignment: %w", err)
	}

	if err := json.Unmarshal(itemIDs, &assignment.ItemIDs); err != nil {
		return nil, fmt.Errorf("decode item ids: %w", err)
	}
	return assignment, nil
}

// CountAssignments returns how many chunks an election was partitioned into.
func (r *ChunkRepo) CountAssignments(ctx context.Context, electionID string) (int, error) {
	var n int
	row := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM chunk_assignments
		WHERE election_id = $1
	`, electionID)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunk assignments: %w", err)
	}
	return n, nil
}

// SaveTally stores the encrypted aggregate for a chunk. The first writer wins;
// a false return means a tally already existed and the given value was dropped.
func (r *ChunkRepo) SaveTally(ctx context.Context, tally *model.ChunkTally) (bool, error) {
	if tally == nil {
		return false, errors.New("chunk tally is required")
	}
	if tally.JobID == "" {
		return false, errors.New("job id is required")
	}
	if len(tally.EncryptedTally) == 0 {
		return false, errors.New("encrypted tally is required")
	}

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO chunk_tallies(election_id, chunk_index, job_id, encrypted_tally, ballot_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (election_id, chunk_index) DO NOTHING
	`, tally.ElectionID, tally.ChunkIndex, tally.JobID, []byte(tally.EncryptedTally), tally.BallotCount)
	if err != nil {
		return false, fmt.Errorf("insert chunk tally: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// GetTally returns the stored encrypted aggregate for one chunk.
func (r *ChunkRepo) GetTally(ctx context.Context, electionID string, chunkIndex int) (*model.ChunkTally, error) {
	query := `
		SELECT election_id, chunk_index, job_id, encrypted_tally, ballot_count, created_at
		FROM chunk_tallies
		WHERE election_id = $1 AND chunk_index = $2
	`

	tally := &model.ChunkTally{}
	var encrypted []byte
	row := r.DB.QueryRowContext(ctx, query, electionID, chunkIndex)
	if err := row.Scan(&tally.ElectionID, &tally.ChunkIndex, &tally.JobID, &encrypted, &tally.BallotCount, &tally.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChunkNotFound
		}
		return nil, fmt.Errorf("get chunk tally: %w", err)
	}

	tally.EncryptedTally = cloneJSON(encrypted)
	return tally, nil
}
