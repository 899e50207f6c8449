package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/data/pgxutil"
	"github.com/quorumworks/tallyd/internal/domain/model"
)

// ErrShareNotFound is returned when a requested share row does not exist.
var ErrShareNotFound = errors.New("share not found")

// ShareRepo provides database operations for decryption shares.
//
// Both insert methods are write-once per identity: a second insert with the
// same key reports false instead of replacing the stored share. At-least-once
// delivery makes duplicate inserts a normal event, not an error.
type ShareRepo struct{ DB *sql.DB }

func validatePartialShare(share *model.PartialShare) error {
	if share == nil {
		return errors.New("partial share is required")
	}
	if share.ElectionID == "" || share.GuardianID == "" {
		return errors.New("election id and guardian id are required")
	}
	if share.JobID == "" {
		return errors.New("job id is required")
	}
	if share.ChunkIndex < 0 {
		return errors.New("chunk index must not be negative")
	}
	if len(share.Share) == 0 {
		return errors.New("share value is required")
	}
	return nil
}

// InsertPartial stores one guardian's share for a chunk. Returns false when
// the (chunk, guardian) share already exists.
func (r *ShareRepo) InsertPartial(ctx context.Context, share *model.PartialShare) (bool, error) {
	if err := validatePartialShare(share); err != nil {
		return false, err
	}

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO partial_decryption_shares(election_id, chunk_index, guardian_id, job_id, share, proof)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (election_id, chunk_index, guardian_id) DO NOTHING
	`, share.ElectionID, share.ChunkIndex, share.GuardianID, share.JobID, []byte(share.Share), []byte(share.Proof))
	if err != nil {
		return false, fmt.Errorf("insert partial share: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// InsertCompensated stores a share computed on behalf of a missing guardian.
// Returns false when the (chunk, guardian, missing guardian) share already exists.
func (r *ShareRepo) InsertCompensated(ctx context.Context, share *model.CompensatedShare) (bool, error) {
	if share == nil {
		return false, errors.New("compensated share is required")
	}
	if share.ElectionID == "" || share.GuardianID == "" || share.MissingGuardianID == "" {
		return false, errors.New("election id, guardian id, and missing guardian id are required")
	}
	if share.GuardianID == share.MissingGuardianID {
		return false, errors.New("compensating and missing guardian must differ")
	}
	if share.JobID == "" {
		return false, errors.New("job id is required")
	}
	if len(share.Share) == 0 {
		return false, errors.New("share value is required")
	}

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO compensated_decryption_shares(election_id, chunk_index, guardian_id, missing_guardian_id, job_id, share, proof)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (election_id, chunk_index, guardian_id, missing_guardian_id) DO NOTHING
	`, share.ElectionID, share.ChunkIndex, share.GuardianID, share.MissingGuardianID, share.JobID, []byte(share.Share), []byte(share.Proof))
	if err != nil {
		return false, fmt.Errorf("insert compensated share: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// GetPartial returns one guardian's stored share for a chunk, or
// ErrShareNotFound.
func (r *ShareRepo) GetPartial(ctx context.Context, params core.ShareLookupParams) (*model.PartialShare, error) {
	query := `
		SELECT election_id, chunk_index, guardian_id, job_id, share, proof, created_at
		FROM partial_decryption_shares
		WHERE election_id = $1 AND chunk_index = $2 AND guardian_id = $3
	`

	share := &model.PartialShare{}
	var value, proof []byte
	row := r.DB.QueryRowContext(ctx, query, params.ElectionID, params.ChunkIndex, params.GuardianID)
	err := row.Scan(&share.ElectionID, &share.ChunkIndex, &share.GuardianID,
		&share.JobID, &value, &proof, &share.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("get partial share: %w", err)
	}

	share.Share = cloneJSON(value)
	share.Proof = cloneJSON(proof)
	return share, nil
}

// GetCompensated returns one stored compensated share, or ErrShareNotFound.
func (r *ShareRepo) GetCompensated(ctx context.Context, params core.ShareLookupParams) (*model.CompensatedShare, error) {
	query := `
		SELECT election_id, chunk_index, guardian_id, missing_guardian_id, job_id, share, proof, created_at
		FROM compensated_decryption_shares
		WHERE election_id = $1 AND chunk_index = $2 AND guardian_id = $3 AND missing_guardian_id = $4
	`

	share := &model.CompensatedShare{}
	var value, proof []byte
	row := r.DB.QueryRowContext(ctx, query,
		params.ElectionID, params.ChunkIndex, params.GuardianID, params.MissingGuardianID)
	err := row.Scan(&share.ElectionID, &share.ChunkIndex, &share.GuardianID,
		&share.MissingGuardianID, &share.JobID, &value, &proof, &share.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("get compensated share: %w", err)
	}

	share.Share = cloneJSON(value)
	share.Proof = cloneJSON(proof)
	return share, nil
}

// CountForChunk reports how many guardians a chunk has shares from. Partial
// shares count per contributing guardian; compensated shares count per missing
// guardian covered, so two guardians compensating for the same absentee still
// count once.
func (r *ShareRepo) CountForChunk(ctx context.Context, electionID string, chunkIndex int) (model.ShareCount, error) {
	query := `
		SELECT
			(SELECT COUNT(DISTINCT guardian_id)
			 FROM partial_decryption_shares
			 WHERE election_id = $1 AND chunk_index = $2) AS partial,
			(SELECT COUNT(DISTINCT missing_guardian_id)
			 FROM compensated_decryption_shares
			 WHERE election_id = $1 AND chunk_index = $2) AS compensated
	`

	var count model.ShareCount
	row := r.DB.QueryRowContext(ctx, query, electionID, chunkIndex)
	if err := row.Scan(&count.Partial, &count.Compensated); err != nil {
		return model.ShareCount{}, fmt.Errorf("count shares: %w", err)
	}
	return count, nil
}

// ListForChunk returns every stored share for a chunk, ordered by guardian so
// combine requests built from the same rows are byte-identical.
func (r *ShareRepo) ListForChunk(ctx context.Context, electionID string, chunkIndex int) (*model.ChunkShares, error) {
	shares := &model.ChunkShares{
		Partial:     []*model.PartialShare{},
		Compensated: []*model.CompensatedShare{},
	}

	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT election_id, chunk_index, guardian_id, job_id, share, proof, created_at
			FROM partial_decryption_shares
			WHERE election_id = $1 AND chunk_index = $2
			ORDER BY guardian_id
		`, electionID, chunkIndex)
		if err != nil {
			return fmt.Errorf("query partial shares: %w", err)
		}
		partial, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.PartialShare])
		if err != nil {
			return fmt.Errorf("collect partial shares: %w", err)
		}
		shares.Partial = partial

		rows, err = conn.Query(ctx, `
			SELECT election_id, chunk_index, guardian_id, missing_guardian_id, job_id, share, proof, created_at
			FROM compensated_decryption_shares
			WHERE election_id = $1 AND chunk_index = $2
			ORDER BY missing_guardian_id, guardian_id
		`, electionID, chunkIndex)
		if err != nil {
			return fmt.Errorf("query compensated shares: %w", err)
		}
		compensated, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.CompensatedShare])
		if err != nil {
			return fmt.Errorf("collect compensated shares: %w", err)
		}
		shares.Compensated = compensated
		return nil
	}); err != nil {
		return nil, err
	}

	return shares, nil
}
