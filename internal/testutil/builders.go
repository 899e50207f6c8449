// Package testutil provides testing utilities and helpers for the tallyd orchestration system.
package testutil

import (
	"encoding/json"

	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/domain/model"
)

// JobParamsBuilder provides a fluent interface for building CreateJobParams objects for testing.
type JobParamsBuilder struct {
	params core.CreateJobParams
}

// NewJobParams creates a new JobParamsBuilder with sensible defaults:
// a four-chunk tally job over a 3-of-5 guardian set.
func NewJobParams() *JobParamsBuilder {
	return &JobParamsBuilder{
		params: core.CreateJobParams{
			ElectionID:  "election-2024-general",
			Operation:   model.OperationTally,
			TotalChunks: 4,
			CreatedBy:   "testutil",
			Metadata: model.JobMetadata{
				Quorum:        3,
				GuardianCount: 5,
			},
		},
	}
}

// WithElection sets the election identifier.
func (b *JobParamsBuilder) WithElection(electionID string) *JobParamsBuilder {
	b.params.ElectionID = electionID
	return b
}

// WithOperation sets the operation type.
func (b *JobParamsBuilder) WithOperation(op model.OperationType) *JobParamsBuilder {
	b.params.Operation = op
	return b
}

// WithTotalChunks sets the fixed chunk count.
func (b *JobParamsBuilder) WithTotalChunks(n int) *JobParamsBuilder {
	b.params.TotalChunks = n
	return b
}

// WithCreatedBy sets the creating principal.
func (b *JobParamsBuilder) WithCreatedBy(createdBy string) *JobParamsBuilder {
	b.params.CreatedBy = createdBy
	return b
}

// WithQuorum sets the quorum and guardian count together.
func (b *JobParamsBuilder) WithQuorum(quorum, guardianCount int) *JobParamsBuilder {
	b.params.Metadata.Quorum = quorum
	b.params.Metadata.GuardianCount = guardianCount
	return b
}

// WithGuardian sets the acting guardian for decryption operations.
func (b *JobParamsBuilder) WithGuardian(guardianID string) *JobParamsBuilder {
	b.params.Metadata.GuardianID = guardianID
	return b
}

// WithMissingGuardian sets the absent guardian for compensated decryption.
func (b *JobParamsBuilder) WithMissingGuardian(missingGuardianID string) *JobParamsBuilder {
	b.params.Metadata.MissingGuardianID = missingGuardianID
	return b
}

// WithPublicMaterial sets the public cryptographic context blob.
func (b *JobParamsBuilder) WithPublicMaterial(material json.RawMessage) *JobParamsBuilder {
	b.params.Metadata.PublicMaterial = material
	return b
}

// WithManifestHash sets the election manifest hash.
func (b *JobParamsBuilder) WithManifestHash(hash string) *JobParamsBuilder {
	b.params.Metadata.ManifestHash = hash
	return b
}

// Build returns the constructed CreateJobParams.
func (b *JobParamsBuilder) Build() core.CreateJobParams {
	return b.params
}

// Common test job parameter presets

// TallyJobParams creates parameters for a tally job with default values.
func TallyJobParams() core.CreateJobParams {
	return NewJobParams().
		WithOperation(model.OperationTally).
		Build()
}

// PartialDecryptionJobParams creates parameters for a partial decryption job.
func PartialDecryptionJobParams(guardianID string) core.CreateJobParams {
	return NewJobParams().
		WithOperation(model.OperationPartialDecryption).
		WithGuardian(guardianID).
		Build()
}

// CompensatedDecryptionJobParams creates parameters for a compensated decryption job.
func CompensatedDecryptionJobParams(guardianID, missingGuardianID string) core.CreateJobParams {
	return NewJobParams().
		WithOperation(model.OperationCompensatedDecryption).
		WithGuardian(guardianID).
		WithMissingGuardian(missingGuardianID).
		Build()
}

// CombineJobParams creates parameters for a combine job.
func CombineJobParams() core.CreateJobParams {
	return NewJobParams().
		WithOperation(model.OperationCombine).
		Build()
}

// SingleChunkJobParams creates parameters for a job whose first completion is also its last.
func SingleChunkJobParams() core.CreateJobParams {
	return NewJobParams().
		WithTotalChunks(1).
		Build()
}
