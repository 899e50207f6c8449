package model

import (
	"encoding/json"
	"time"
)

// ChunkAssignment pins the exact cipher items a chunk index covers. It is
// written once at partition time so that reprocessing a redelivered chunk
// message always sees the same inputs.
type ChunkAssignment struct {
	ElectionID string    `json:"election_id" db:"election_id"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	ItemIDs    []string  `json:"item_ids"    db:"item_ids"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
}

// ChunkTally is the homomorphic aggregate a tally worker produced for one
// chunk. It is the input ciphertext for every later decryption share over
// that chunk. JobID attributes the row to the job whose worker wrote it;
// workers use it to tell a same-job redelivery from a later job finding the
// chunk already done.
type ChunkTally struct {
	ElectionID     string          `json:"election_id"     db:"election_id"`
	ChunkIndex     int             `json:"chunk_index"     db:"chunk_index"`
	JobID          string          `json:"job_id"          db:"job_id"`
	EncryptedTally json.RawMessage `json:"encrypted_tally" db:"encrypted_tally"`
	BallotCount    int             `json:"ballot_count"    db:"ballot_count"`
	CreatedAt      time.Time       `json:"created_at"      db:"created_at"`
}

// ChunkResult is the combined plaintext for one chunk: per-option counts as
// produced by the engine's combine call. One row per chunk; extra shares
// arriving after combination never rewrite it.
type ChunkResult struct {
	ElectionID string          `json:"election_id" db:"election_id"`
	ChunkIndex int             `json:"chunk_index" db:"chunk_index"`
	JobID      string          `json:"job_id"      db:"job_id"`
	Plaintext  json.RawMessage `json:"plaintext"   db:"plaintext"`
	ShareCount int             `json:"share_count" db:"share_count"`
	CombinedAt time.Time       `json:"combined_at" db:"combined_at"`
}

// CipherItem is a stored encrypted ballot. Rows are written by the casting
// pipeline upstream of this service; tally chunks only read them.
type CipherItem struct {
	ID         string          `json:"id"          db:"id"`
	ElectionID string          `json:"election_id" db:"election_id"`
	Ciphertext json.RawMessage `json:"ciphertext"  db:"ciphertext"`
	CastAt     time.Time       `json:"cast_at"     db:"cast_at"`
}

// ChunkOutcome labels how one processing attempt ended in the audit log.
type ChunkOutcome string

const (
	// ChunkOutcomeCompleted marks an attempt whose write took effect.
	ChunkOutcomeCompleted ChunkOutcome = "completed"
	// ChunkOutcomeFailed marks an attempt that ended in an error.
	ChunkOutcomeFailed ChunkOutcome = "failed"
	// ChunkOutcomeSkipped marks a redelivery absorbed by the dedup check.
	ChunkOutcomeSkipped ChunkOutcome = "skipped"
)

// ChunkAuditEntry records one processing attempt for observability. Audit rows
// are a side channel: nothing in the control flow depends on them.
type ChunkAuditEntry struct {
	ID           int64        `json:"id"                      db:"id"`
	JobID        string       `json:"job_id"                  db:"job_id"`
	ChunkIndex   int          `json:"chunk_index"             db:"chunk_index"`
	WorkerID     string       `json:"worker_id"               db:"worker_id"`
	StartedAt    time.Time    `json:"started_at"              db:"started_at"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"   db:"finished_at"`
	Outcome      ChunkOutcome `json:"outcome"                 db:"outcome"`
	ErrorMessage *string      `json:"error_message,omitempty" db:"error_message"`
}

// ChunkTimingStats aggregates audit rows for the progress surface.
type ChunkTimingStats struct {
	Attempts        int     `json:"attempts"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	AvgDurationMS   float64 `json:"avg_duration_ms"`
	TotalDurationMS float64 `json:"total_duration_ms"`
}
