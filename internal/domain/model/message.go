package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ChunkMessage is the wire envelope published once per chunk and consumed
// at-least-once by the worker pool owning the operation type. It is never
// persisted; redelivery safety comes from the consumers' idempotent writes.
type ChunkMessage struct {
	JobID             string        `json:"job_id"`
	ElectionID        string        `json:"election_id"`
	Operation         OperationType `json:"operation_type"`
	ChunkIndex        int           `json:"chunk_index"`
	GuardianID        string        `json:"guardian_id,omitempty"`
	MissingGuardianID string        `json:"missing_guardian_id,omitempty"`
	RetryCount        int           `json:"retry_count"`
}

// Validate checks the envelope fields common to every operation type.
func (m *ChunkMessage) Validate() error {
	if m.JobID == "" {
		return errors.New("job id is required")
	}
	if m.ElectionID == "" {
		return errors.New("election id is required")
	}
	if !m.Operation.Valid() {
		return fmt.Errorf("invalid operation type: %q", m.Operation)
	}
	if m.ChunkIndex < 0 {
		return errors.New("chunk index must be >= 0")
	}
	if m.RetryCount < 0 {
		return errors.New("retry count must be >= 0")
	}
	if m.Operation.Decryption() && m.GuardianID == "" {
		return errors.New("guardian id is required for decryption operations")
	}
	return nil
}

// Encode serializes the message for publication.
func (m *ChunkMessage) Encode() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode chunk message: %w", err)
	}
	return body, nil
}

// DecodeChunkMessage parses and validates a delivery body.
func DecodeChunkMessage(body []byte) (*ChunkMessage, error) {
	var m ChunkMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode chunk message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunk message: %w", err)
	}
	return &m, nil
}
