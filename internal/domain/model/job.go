// Package model defines the core data types shared across the tallyd orchestration system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// OperationType identifies the kind of cryptographic operation a job coordinates.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type OperationType string

// JobStatus represents the current lifecycle state of a job.
type JobStatus string

const (
	// OperationTally homomorphically aggregates a chunk of encrypted ballots.
	OperationTally OperationType = "tally"
	// OperationPartialDecryption computes one guardian's decryption share per chunk.
	OperationPartialDecryption OperationType = "partial_decryption"
	// OperationCompensatedDecryption computes a share on behalf of a missing guardian.
	OperationCompensatedDecryption OperationType = "compensated_decryption"
	// OperationCombine combines accumulated shares into a chunk's plaintext result.
	OperationCombine OperationType = "combine"

	// JobStatusQueued indicates a job has been created and its chunks enqueued.
	JobStatusQueued JobStatus = "queued"
	// JobStatusInProgress indicates at least one chunk has finished processing.
	JobStatusInProgress JobStatus = "in_progress"
	// JobStatusCompleted indicates every chunk processed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates at least one chunk failed terminally.
	JobStatusFailed JobStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for OperationType so it can be
// parsed from env values and message payloads.
func (t *OperationType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	ot := OperationType(v)
	if ot.Valid() {
		*t = ot
		return nil
	}
	return fmt.Errorf("invalid OperationType: %q", v)
}

// Valid returns true if the OperationType is one of the four supported operations.
func (t OperationType) Valid() bool {
	return t == OperationTally || t == OperationPartialDecryption ||
		t == OperationCompensatedDecryption || t == OperationCombine
}

// Decryption returns true for the two operations that produce decryption shares.
func (t OperationType) Decryption() bool {
	return t == OperationPartialDecryption || t == OperationCompensatedDecryption
}

// AllOperationTypes lists every operation type in queue-declaration order.
func AllOperationTypes() []OperationType {
	return []OperationType{
		OperationTally,
		OperationPartialDecryption,
		OperationCompensatedDecryption,
		OperationCombine,
	}
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusInProgress || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal returns true once a status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the durable record of one asynchronous operation over an election.
// Workers mutate only the counters and, through them, the terminal status;
// TotalChunks is fixed at creation.
type Job struct {
	ID              string          `json:"id"                      db:"id"`
	ElectionID      string          `json:"election_id"             db:"election_id"`
	Operation       OperationType   `json:"operation_type"          db:"operation_type"`
	Status          JobStatus       `json:"status"                  db:"status"`
	TotalChunks     int             `json:"total_chunks"            db:"total_chunks"`
	ProcessedChunks int             `json:"processed_chunks"        db:"processed_chunks"`
	FailedChunks    int             `json:"failed_chunks"           db:"failed_chunks"`
	CreatedBy       string          `json:"created_by"              db:"created_by"`
	Metadata        json.RawMessage `json:"metadata,omitempty"      db:"metadata"`
	ErrorMessage    *string         `json:"error_message,omitempty" db:"error_message"`
	StartedAt       *time.Time      `json:"started_at,omitempty"    db:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"  db:"completed_at"`
	CreatedAt       time.Time       `json:"created_at"              db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"              db:"updated_at"`
}

// Active returns true while the job still accepts chunk completions.
func (j *Job) Active() bool {
	return j.Status == JobStatusQueued || j.Status == JobStatusInProgress
}

// Percent returns processing progress in [0, 100].
func (j *Job) Percent() float64 {
	if j.TotalChunks <= 0 {
		return 0
	}
	done := j.ProcessedChunks + j.FailedChunks
	return float64(done) / float64(j.TotalChunks) * 100
}

// JobMetadata is the typed view of a job's opaque metadata blob. It carries the
// public cryptographic context workers hand to the engine; it never contains
// vote values or private key material.
type JobMetadata struct {
	Quorum            int             `json:"quorum"`
	GuardianCount     int             `json:"guardian_count"`
	GuardianID        string          `json:"guardian_id,omitempty"`
	MissingGuardianID string          `json:"missing_guardian_id,omitempty"`
	PublicMaterial    json.RawMessage `json:"public_material,omitempty"`
	ManifestHash      string          `json:"manifest_hash,omitempty"`
}

// ParseJobMetadata decodes and validates a job's metadata blob for the given operation.
func ParseJobMetadata(raw json.RawMessage, op OperationType) (*JobMetadata, error) {
	if len(raw) == 0 {
		return nil, errors.New("job metadata is empty")
	}
	var m JobMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode job metadata: %w", err)
	}
	if err := m.ValidateFor(op); err != nil {
		return nil, err
	}
	return &m, nil
}

// ValidateFor checks the metadata fields an operation type depends on.
func (m *JobMetadata) ValidateFor(op OperationType) error {
	if m.Quorum <= 0 {
		return errors.New("quorum must be > 0")
	}
	if m.GuardianCount < m.Quorum {
		return errors.New("guardian count must be >= quorum")
	}
	switch op {
	case OperationPartialDecryption:
		if m.GuardianID == "" {
			return errors.New("guardian id is required for partial decryption")
		}
	case OperationCompensatedDecryption:
		if m.GuardianID == "" {
			return errors.New("compensating guardian id is required")
		}
		if m.MissingGuardianID == "" {
			return errors.New("missing guardian id is required")
		}
		if m.GuardianID == m.MissingGuardianID {
			return errors.New("compensating and missing guardian must differ")
		}
	case OperationTally, OperationCombine:
		// No per-guardian fields required.
	}
	return nil
}

// JobStats summarizes jobs per status for one operation type.
type JobStats struct {
	Queued     int `json:"queued"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// JobListOptions filters job listings. Nil or zero fields apply no filter.
type JobListOptions struct {
	ElectionID string
	Status     *JobStatus
	Operation  *OperationType
	Limit      int
	Offset     int
}
