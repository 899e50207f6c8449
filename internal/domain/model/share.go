package model

import (
	"encoding/json"
	"time"
)

// PartialShare is one guardian's decryption share for one chunk's encrypted
// tally. At most one row exists per (election, chunk, guardian); duplicate
// deliveries are absorbed by an upsert-or-skip write. JobID attributes the
// row to the job that wrote it.
type PartialShare struct {
	ElectionID string          `json:"election_id" db:"election_id"`
	ChunkIndex int             `json:"chunk_index" db:"chunk_index"`
	GuardianID string          `json:"guardian_id" db:"guardian_id"`
	JobID      string          `json:"job_id"      db:"job_id"`
	Share      json.RawMessage `json:"share"       db:"share"`
	Proof      json.RawMessage `json:"proof"       db:"proof"`
	CreatedAt  time.Time       `json:"created_at"  db:"created_at"`
}

// CompensatedShare is a share computed by an available guardian on behalf of a
// guardian who did not participate, using pre-distributed backup material.
// Identity is (election, chunk, compensating guardian, missing guardian).
type CompensatedShare struct {
	ElectionID        string          `json:"election_id"         db:"election_id"`
	ChunkIndex        int             `json:"chunk_index"         db:"chunk_index"`
	GuardianID        string          `json:"guardian_id"         db:"guardian_id"`
	MissingGuardianID string          `json:"missing_guardian_id" db:"missing_guardian_id"`
	JobID             string          `json:"job_id"              db:"job_id"`
	Share             json.RawMessage `json:"share"               db:"share"`
	Proof             json.RawMessage `json:"proof"               db:"proof"`
	CreatedAt         time.Time       `json:"created_at"          db:"created_at"`
}

// ChunkShares bundles everything a combine call feeds the engine for one chunk.
type ChunkShares struct {
	Partial     []*PartialShare     `json:"partial"`
	Compensated []*CompensatedShare `json:"compensated"`
}

// Count summarizes the bundle for quorum checks.
func (s *ChunkShares) Count() ShareCount {
	return ShareCount{Partial: len(s.Partial), Compensated: len(s.Compensated)}
}

// ShareCount holds the per-chunk share tally the quorum check reads.
type ShareCount struct {
	Partial     int `json:"partial"`
	Compensated int `json:"compensated"`
}

// Total returns the combined share count measured against the quorum.
func (c ShareCount) Total() int {
	return c.Partial + c.Compensated
}

// Meets reports whether the accumulated shares satisfy the quorum.
func (c ShareCount) Meets(quorum int) bool {
	return quorum > 0 && c.Total() >= quorum
}
