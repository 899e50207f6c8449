// Package core provides the business logic and service layer for the tallyd orchestration system.
package core

import (
	"context"
	"encoding/json"

	"github.com/quorumworks/tallyd/internal/domain/model"
)

// TallyChunkRequest carries one chunk of encrypted ballots to the engine.
type TallyChunkRequest struct {
	ElectionID  string            `json:"election_id"`
	ChunkIndex  int               `json:"chunk_index"`
	Ciphertexts []json.RawMessage `json:"ciphertexts"`
}

// TallyChunkResult is the homomorphic aggregate the engine returns for a chunk.
type TallyChunkResult struct {
	EncryptedTally json.RawMessage `json:"encrypted_tally"`
	BallotCount    int             `json:"ballot_count"`
}

// PartialShareRequest asks the engine for one guardian's decryption share of a
// chunk tally.
type PartialShareRequest struct {
	ElectionID     string          `json:"election_id"`
	ChunkIndex     int             `json:"chunk_index"`
	GuardianID     string          `json:"guardian_id"`
	EncryptedTally json.RawMessage `json:"encrypted_tally"`
}

// CompensatedShareRequest asks the engine for a share computed on behalf of a
// missing guardian from the requesting guardian's key backup.
type CompensatedShareRequest struct {
	ElectionID        string          `json:"election_id"`
	ChunkIndex        int             `json:"chunk_index"`
	GuardianID        string          `json:"guardian_id"`
	MissingGuardianID string          `json:"missing_guardian_id"`
	EncryptedTally    json.RawMessage `json:"encrypted_tally"`
}

// ShareResult carries a computed share together with its validity proof.
type ShareResult struct {
	Share json.RawMessage `json:"share"`
	Proof json.RawMessage `json:"proof"`
}

// CombineRequest asks the engine to assemble the plaintext for one chunk from
// the accumulated shares.
type CombineRequest struct {
	ElectionID     string             `json:"election_id"`
	ChunkIndex     int                `json:"chunk_index"`
	Quorum         int                `json:"quorum"`
	EncryptedTally json.RawMessage    `json:"encrypted_tally"`
	Shares         *model.ChunkShares `json:"shares"`
}

// CombineResult is the decrypted chunk plaintext.
type CombineResult struct {
	Plaintext json.RawMessage `json:"plaintext"`
}

// CryptoEngine defines the interface to the synchronous service performing the
// actual homomorphic and threshold math. Calls are CPU-heavy on the far side
// and must never run inside a database transaction. Implementations classify
// failures so callers can retry transport and server errors while treating
// rejected inputs as final.
type CryptoEngine interface {
	TallyChunk(ctx context.Context, req *TallyChunkRequest) (*TallyChunkResult, error)
	ComputePartialShare(ctx context.Context, req *PartialShareRequest) (*ShareResult, error)
	ComputeCompensatedShare(ctx context.Context, req *CompensatedShareRequest) (*ShareResult, error)
	CombineShares(ctx context.Context, req *CombineRequest) (*CombineResult, error)
}
