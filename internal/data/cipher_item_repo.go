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

// CipherItemRepo provides database operations for stored encrypted ballots.
type CipherItemRepo struct{ DB *sql.DB }

// ListIDs returns every ballot id for the election ordered by (cast_at, id).
// Rows are immutable once cast, so the order is stable across calls and safe
// to snapshot into a chunk plan.
func (r *CipherItemRepo) ListIDs(ctx context.Context, electionID string) ([]string, error) {
	query := `
		SELECT id
		FROM cipher_items
		WHERE election_id = $1
		ORDER BY cast_at ASC, id ASC
	`

	rows, err := r.DB.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("list cipher item ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("scan cipher item id: %w", scanErr)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cipher item ids: %w", err)
	}
	return ids, nil
}

// ListByIDs returns the referenced ballots in the order the ids were given,
// which is the order the chunk plan fixed at partition time.
func (r *CipherItemRepo) ListByIDs(ctx context.Context, electionID string, ids []string) ([]*model.CipherItem, error) {
	if len(ids) == 0 {
		return []*model.CipherItem{}, nil
	}

	query := `
		SELECT c.id, c.election_id, c.ciphertext, c.cast_at
		FROM cipher_items c
		JOIN unnest($2::text[]) WITH ORDINALITY AS wanted(id, ord) ON c.id = wanted.id
		WHERE c.election_id = $1
		ORDER BY wanted.ord
	`

	var result []*model.CipherItem
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, electionID, ids)
		if err != nil {
			return fmt.Errorf("query cipher items: %w", err)
		}
		defer rows.Close()

		vals, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.CipherItem])
		if err != nil {
			return fmt.Errorf("collect cipher items: %w", err)
		}
		result = vals
		return nil
	}); err != nil {
		return nil, err
	}

	if len(result) != len(ids) {
		return nil, fmt.Errorf("cipher items missing: wanted %d, found %d", len(ids), len(result))
	}
	return result, nil
}

// Count returns the number of ballots stored for the election.
func (r *CipherItemRepo) Count(ctx context.Context, electionID string) (int, error) {
	var n int
	row := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM cipher_items
		WHERE election_id = $1
	`, electionID)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count cipher items: %w", err)
	}
	return n, nil
}

// BulkInsert loads ballots using the COPY protocol. It is intended for the
// ingestion path and dev seeding; duplicate ids fail the whole batch.
func (r *CipherItemRepo) BulkInsert(ctx context.Context, items []*model.CipherItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	var inserted int
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			rows := make([][]any, 0, len(items))
			for _, item := range items {
				if item.ID == "" || item.ElectionID == "" {
					return errors.New("cipher item id and election id are required")
				}
				rows = append(rows, []any{item.ID, item.ElectionID, []byte(item.Ciphertext), item.CastAt})
			}

			copyCount, copyErr := tx.CopyFrom(
				ctx,
				pgx.Identifier{"cipher_items"},
				[]string{"id", "election_id", "ciphertext", "cast_at"},
				pgx.CopyFromRows(rows),
			)
			if copyErr != nil {
				return fmt.Errorf("bulk copy cipher items: %w", copyErr)
			}

			inserted = int(copyCount)
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
