package chunkworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/data"
	"github.com/quorumworks/tallyd/internal/domain/model"
	apperrors "github.com/quorumworks/tallyd/internal/errors"
	"github.com/quorumworks/tallyd/internal/service"
)

// handleTally aggregates one chunk of encrypted ballots. Inputs come from the
// assignment persisted at partition time, so a redelivered chunk always sees
// the same ballots.
func (r *Runner) handleTally(
	ctx context.Context,
	msg *model.ChunkMessage,
	_ *model.JobMetadata,
) (handlerResult, error) {
	assignment, err := r.chunks.GetAssignment(ctx, msg.ElectionID, msg.ChunkIndex)
	if err != nil {
		if errors.Is(err, data.ErrChunkNotFound) {
			return handlerResult{}, apperrors.Wrapf(err, apperrors.ErrCodeValidation,
				"chunk %d of election %s has no persisted assignment", msg.ChunkIndex, msg.ElectionID)
		}
		return handlerResult{}, fmt.Errorf("load assignment for chunk %d: %w", msg.ChunkIndex, err)
	}

	if len(assignment.ItemIDs) == 0 {
		r.logger.WarnContext(ctx, "chunk has no cipher items, counting as processed",
			"job_id", msg.JobID, "chunk_index", msg.ChunkIndex)
		return handlerResult{Credit: true, Outcome: model.ChunkOutcomeCompleted}, nil
	}

	items, err := r.items.ListByIDs(ctx, msg.ElectionID, assignment.ItemIDs)
	if err != nil {
		return handlerResult{}, fmt.Errorf("load cipher items for chunk %d: %w", msg.ChunkIndex, err)
	}
	if len(items) != len(assignment.ItemIDs) {
		return handlerResult{}, apperrors.Validationf(
			"chunk %d of election %s references %d cipher items but %d exist",
			msg.ChunkIndex, msg.ElectionID, len(assignment.ItemIDs), len(items))
	}

	ciphertexts := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		ciphertexts = append(ciphertexts, item.Ciphertext)
	}

	res, err := r.engine.TallyChunk(ctx, &core.TallyChunkRequest{
		ElectionID:  msg.ElectionID,
		ChunkIndex:  msg.ChunkIndex,
		Ciphertexts: ciphertexts,
	})
	if err != nil {
		return handlerResult{}, fmt.Errorf("tally chunk %d: %w", msg.ChunkIndex, err)
	}

	inserted, err := r.chunks.SaveTally(ctx, &model.ChunkTally{
		ElectionID:     msg.ElectionID,
		ChunkIndex:     msg.ChunkIndex,
		JobID:          msg.JobID,
		EncryptedTally: res.EncryptedTally,
		BallotCount:    res.BallotCount,
	})
	if err != nil {
		return handlerResult{}, fmt.Errorf("persist tally for chunk %d: %w", msg.ChunkIndex, err)
	}
	if inserted {
		return handlerResult{Credit: true, Outcome: model.ChunkOutcomeCompleted}, nil
	}

	existing, err := r.chunks.GetTally(ctx, msg.ElectionID, msg.ChunkIndex)
	if err != nil {
		return handlerResult{}, fmt.Errorf("resolve existing tally for chunk %d: %w", msg.ChunkIndex, err)
	}
	return r.absorbed(ctx, msg, existing.JobID), nil
}

// handlePartialShare computes one guardian's decryption share over a chunk
// tally and triggers the inline combine check once the share exists.
func (r *Runner) handlePartialShare(
	ctx context.Context,
	msg *model.ChunkMessage,
	meta *model.JobMetadata,
) (handlerResult, error) {
	tally, err := r.loadTally(ctx, msg)
	if err != nil {
		return handlerResult{}, err
	}

	res, err := r.engine.ComputePartialShare(ctx, &core.PartialShareRequest{
		ElectionID:     msg.ElectionID,
		ChunkIndex:     msg.ChunkIndex,
		GuardianID:     msg.GuardianID,
		EncryptedTally: tally.EncryptedTally,
	})
	if err != nil {
		return handlerResult{}, fmt.Errorf("compute partial share for chunk %d: %w", msg.ChunkIndex, err)
	}

	inserted, err := r.shares.InsertPartial(ctx, &model.PartialShare{
		ElectionID: msg.ElectionID,
		ChunkIndex: msg.ChunkIndex,
		GuardianID: msg.GuardianID,
		JobID:      msg.JobID,
		Share:      res.Share,
		Proof:      res.Proof,
	})
	if err != nil {
		return handlerResult{}, fmt.Errorf("persist partial share for chunk %d: %w", msg.ChunkIndex, err)
	}

	out := handlerResult{Credit: true, Outcome: model.ChunkOutcomeCompleted}
	if !inserted {
		existing, err := r.shares.GetPartial(ctx, core.ShareLookupParams{
			ElectionID: msg.ElectionID,
			ChunkIndex: msg.ChunkIndex,
			GuardianID: msg.GuardianID,
		})
		if err != nil {
			return handlerResult{}, fmt.Errorf("resolve existing partial share for chunk %d: %w", msg.ChunkIndex, err)
		}
		out = r.absorbed(ctx, msg, existing.JobID)
	}

	r.maybeCombine(ctx, msg, meta)
	return out, nil
}

// handleCompensatedShare computes a share on behalf of a missing guardian from
// the acting guardian's backup material.
func (r *Runner) handleCompensatedShare(
	ctx context.Context,
	msg *model.ChunkMessage,
	meta *model.JobMetadata,
) (handlerResult, error) {
	if msg.MissingGuardianID == "" {
		return handlerResult{}, apperrors.Validation(
			"compensated decryption message lacks a missing guardian id")
	}

	tally, err := r.loadTally(ctx, msg)
	if err != nil {
		return handlerResult{}, err
	}

	res, err := r.engine.ComputeCompensatedShare(ctx, &core.CompensatedShareRequest{
		ElectionID:        msg.ElectionID,
		ChunkIndex:        msg.ChunkIndex,
		GuardianID:        msg.GuardianID,
		MissingGuardianID: msg.MissingGuardianID,
		EncryptedTally:    tally.EncryptedTally,
	})
	if err != nil {
		return handlerResult{}, fmt.Errorf("compute compensated share for chunk %d: %w", msg.ChunkIndex, err)
	}

	inserted, err := r.shares.InsertCompensated(ctx, &model.CompensatedShare{
		ElectionID:        msg.ElectionID,
		ChunkIndex:        msg.ChunkIndex,
		GuardianID:        msg.GuardianID,
		MissingGuardianID: msg.MissingGuardianID,
		JobID:             msg.JobID,
		Share:             res.Share,
		Proof:             res.Proof,
	})
	if err != nil {
		return handlerResult{}, fmt.Errorf("persist compensated share for chunk %d: %w", msg.ChunkIndex, err)
	}

	out := handlerResult{Credit: true, Outcome: model.ChunkOutcomeCompleted}
	if !inserted {
		existing, err := r.shares.GetCompensated(ctx, core.ShareLookupParams{
			ElectionID:        msg.ElectionID,
			ChunkIndex:        msg.ChunkIndex,
			GuardianID:        msg.GuardianID,
			MissingGuardianID: msg.MissingGuardianID,
		})
		if err != nil {
			return handlerResult{}, fmt.Errorf(
				"resolve existing compensated share for chunk %d: %w", msg.ChunkIndex, err)
		}
		out = r.absorbed(ctx, msg, existing.JobID)
	}

	r.maybeCombine(ctx, msg, meta)
	return out, nil
}

// handleCombine drives an explicit combine for one chunk. By the time a
// combine job runs every expected contributor has reported, so a quorum
// deficit surfaces from the combiner as a fatal error.
func (r *Runner) handleCombine(
	ctx context.Context,
	msg *model.ChunkMessage,
	meta *model.JobMetadata,
) (handlerResult, error) {
	outcome, err := r.combiner.CombineChunk(ctx, service.CombineChunkParams{
		ElectionID: msg.ElectionID,
		ChunkIndex: msg.ChunkIndex,
		Quorum:     meta.Quorum,
		JobID:      msg.JobID,
		Explicit:   true,
	})
	if err != nil {
		return handlerResult{}, fmt.Errorf("combine chunk %d: %w", msg.ChunkIndex, err)
	}

	switch outcome {
	case service.CombineOutcomeCombined:
		return handlerResult{Credit: true, Outcome: model.ChunkOutcomeCompleted}, nil
	case service.CombineOutcomeAlreadyDone:
		existing, err := r.results.GetByChunk(ctx, msg.ElectionID, msg.ChunkIndex)
		if err != nil {
			return handlerResult{}, fmt.Errorf("resolve existing result for chunk %d: %w", msg.ChunkIndex, err)
		}
		return r.absorbed(ctx, msg, existing.JobID), nil
	default:
		// Explicit combines report below-quorum as an error, never an outcome.
		return handlerResult{}, fmt.Errorf("unexpected combine outcome %q for chunk %d", outcome, msg.ChunkIndex)
	}
}

// loadTally fetches the chunk's encrypted aggregate, the input for every
// decryption share. A missing tally means the phases ran out of order; that
// cannot heal by retrying.
func (r *Runner) loadTally(ctx context.Context, msg *model.ChunkMessage) (*model.ChunkTally, error) {
	tally, err := r.chunks.GetTally(ctx, msg.ElectionID, msg.ChunkIndex)
	if err != nil {
		if errors.Is(err, data.ErrChunkNotFound) {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation,
				"chunk %d of election %s has no tally; run a tally job first",
				msg.ChunkIndex, msg.ElectionID)
		}
		return nil, fmt.Errorf("load tally for chunk %d: %w", msg.ChunkIndex, err)
	}
	return tally, nil
}

// absorbed decides the outcome of a write the dedup check swallowed. A row
// written by this very job is a redelivered duplicate and must not move the
// counter again; a row from any other job means the chunk is already
// satisfied, which this job may count as processed.
func (r *Runner) absorbed(ctx context.Context, msg *model.ChunkMessage, ownerJobID string) handlerResult {
	if ownerJobID == msg.JobID {
		r.logger.DebugContext(ctx, "duplicate delivery absorbed",
			"job_id", msg.JobID, "chunk_index", msg.ChunkIndex)
		return handlerResult{Credit: false, Outcome: model.ChunkOutcomeSkipped}
	}
	r.logger.DebugContext(ctx, "chunk already satisfied by another job",
		"job_id", msg.JobID, "chunk_index", msg.ChunkIndex, "owner_job_id", ownerJobID)
	return handlerResult{Credit: true, Outcome: model.ChunkOutcomeSkipped}
}

// maybeCombine fires the inline combine check after a share exists for the
// chunk, whether this delivery inserted it or an earlier one did. Readiness
// and dedup live in the combiner; errors here never change the share outcome.
func (r *Runner) maybeCombine(ctx context.Context, msg *model.ChunkMessage, meta *model.JobMetadata) {
	outcome, err := r.combiner.CombineChunk(ctx, service.CombineChunkParams{
		ElectionID: msg.ElectionID,
		ChunkIndex: msg.ChunkIndex,
		Quorum:     meta.Quorum,
		JobID:      msg.JobID,
		Explicit:   false,
	})
	if err != nil {
		r.logger.WarnContext(ctx, "inline combine attempt failed",
			"job_id", msg.JobID, "chunk_index", msg.ChunkIndex, "error", err)
		return
	}
	if outcome == service.CombineOutcomeCombined {
		r.logger.InfoContext(ctx, "inline combine produced chunk result",
			"job_id", msg.JobID, "chunk_index", msg.ChunkIndex)
	}
}
