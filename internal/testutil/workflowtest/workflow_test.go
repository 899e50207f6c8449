package workflowtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/domain/model"
	apperrors "github.com/quorumworks/tallyd/internal/errors"
	"github.com/quorumworks/tallyd/internal/testutil"
)

func TestTallyWorkflowCompletesAcrossChunks(t *testing.T) {
	WithHarness(t, Options{ChunkSize: 4}, func(ctx context.Context, h *Harness) {
		const election = "election-wf-tally"
		ids := h.SeedBallots(ctx, election, 10)

		job := h.Initiate(ctx, testutil.NewJobParams().WithElection(election).Build())
		require.Equal(t, 3, job.TotalChunks, "10 ballots at chunk size 4")
		require.Equal(t, model.JobStatusQueued, job.Status)

		settled := h.RunUntilSettled(ctx, model.OperationTally, job.ID)
		assert.Equal(t, model.JobStatusCompleted, settled.Status)
		assert.Equal(t, 3, settled.ProcessedChunks)
		assert.Zero(t, settled.FailedChunks)
		require.NotNil(t, settled.CompletedAt)

		for idx, want := range []int{4, 4, 2} {
			tally, err := h.Chunks.GetTally(ctx, election, idx)
			require.NoError(t, err, "tally for chunk %d", idx)
			assert.Equal(t, want, tally.BallotCount, "chunk %d", idx)
			assert.Equal(t, job.ID, tally.JobID, "chunk %d", idx)
			assert.JSONEq(t,
				fmt.Sprintf(`{"aggregate":"%s/%d"}`, election, idx),
				string(tally.EncryptedTally), "chunk %d", idx)
		}

		tail, err := h.Chunks.GetAssignment(ctx, election, 2)
		require.NoError(t, err)
		assert.Equal(t, ids[8:], tail.ItemIDs, "last chunk holds the remainder")

		assert.Equal(t, 3, h.Stub.Calls(TallyEndpoint))
		assert.Equal(t, 3, h.Queue.Acks.Acked())
		assert.Zero(t, h.Queue.Acks.DeadLettered())
	})
}

func TestDecryptionRoundTripViaInlineCombine(t *testing.T) {
	WithHarness(t, Options{ChunkSize: 3}, func(ctx context.Context, h *Harness) {
		const election = "election-wf-decrypt"
		h.SeedBallots(ctx, election, 6)

		tallyJob := h.Initiate(ctx, testutil.NewJobParams().WithElection(election).Build())
		require.Equal(t, model.JobStatusCompleted,
			h.RunUntilSettled(ctx, model.OperationTally, tallyJob.ID).Status)

		// Three of five guardians report, one job each. The third share trips
		// the inline combine on both chunks.
		for i, guardian := range []string{"guardian-1", "guardian-2", "guardian-3"} {
			if i > 0 {
				h.ReleaseOperationLock(election, model.OperationPartialDecryption)
			}
			job := h.Initiate(ctx, testutil.NewJobParams().
				WithElection(election).
				WithOperation(model.OperationPartialDecryption).
				WithGuardian(guardian).
				Build())
			require.Equal(t, 2, job.TotalChunks, "decryption reuses the tally chunk plan")

			settled := h.RunUntilSettled(ctx, model.OperationPartialDecryption, job.ID)
			require.Equal(t, model.JobStatusCompleted, settled.Status, "guardian %s", guardian)
			require.Equal(t, 2, settled.ProcessedChunks, "guardian %s", guardian)
		}

		for idx := range 2 {
			count, err := h.Shares.CountForChunk(ctx, election, idx)
			require.NoError(t, err)
			assert.Equal(t, 3, count.Partial, "chunk %d", idx)
			assert.Zero(t, count.Compensated, "chunk %d", idx)

			res, err := h.Results.GetByChunk(ctx, election, idx)
			require.NoError(t, err, "result for chunk %d", idx)
			assert.Equal(t, 3, res.ShareCount, "chunk %d", idx)
			assert.JSONEq(t,
				fmt.Sprintf(`{"chunk":%d,"quorum":3,"tallied":true}`, idx),
				string(res.Plaintext), "chunk %d", idx)
		}
		assert.Equal(t, 2, h.Stub.Calls(CombineEndpoint), "one combine per chunk")

		// An explicit combine job finds every result present and settles by
		// absorption without touching the engine again.
		combineJob := h.Initiate(ctx, testutil.NewJobParams().
			WithElection(election).
			WithOperation(model.OperationCombine).
			Build())
		settled := h.RunUntilSettled(ctx, model.OperationCombine, combineJob.ID)
		assert.Equal(t, model.JobStatusCompleted, settled.Status)
		assert.Equal(t, 2, settled.ProcessedChunks)
		assert.Equal(t, 2, h.Stub.Calls(CombineEndpoint))
	})
}

func TestCompensatedShareFillsQuorumGap(t *testing.T) {
	WithHarness(t, Options{ChunkSize: 4}, func(ctx context.Context, h *Harness) {
		const election = "election-wf-compensated"
		h.SeedBallots(ctx, election, 4)

		tallyJob := h.Initiate(ctx, testutil.NewJobParams().WithElection(election).Build())
		require.Equal(t, model.JobStatusCompleted,
			h.RunUntilSettled(ctx, model.OperationTally, tallyJob.ID).Status)

		for i, guardian := range []string{"guardian-1", "guardian-2"} {
			if i > 0 {
				h.ReleaseOperationLock(election, model.OperationPartialDecryption)
			}
			job := h.Initiate(ctx, testutil.NewJobParams().
				WithElection(election).
				WithOperation(model.OperationPartialDecryption).
				WithGuardian(guardian).
				Build())
			require.Equal(t, model.JobStatusCompleted,
				h.RunUntilSettled(ctx, model.OperationPartialDecryption, job.ID).Status)
		}

		// guardian-3 never reports. guardian-1 covers the gap from backup
		// material, and the compensated share completes the quorum.
		compJob := h.Initiate(ctx, testutil.NewJobParams().
			WithElection(election).
			WithOperation(model.OperationCompensatedDecryption).
			WithGuardian("guardian-1").
			WithMissingGuardian("guardian-3").
			Build())
		require.Equal(t, model.JobStatusCompleted,
			h.RunUntilSettled(ctx, model.OperationCompensatedDecryption, compJob.ID).Status)

		count, err := h.Shares.CountForChunk(ctx, election, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, count.Partial)
		assert.Equal(t, 1, count.Compensated)

		share, err := h.Shares.GetCompensated(ctx, core.ShareLookupParams{
			ElectionID:        election,
			ChunkIndex:        0,
			GuardianID:        "guardian-1",
			MissingGuardianID: "guardian-3",
		})
		require.NoError(t, err)
		assert.JSONEq(t,
			fmt.Sprintf(`{"share":"guardian-1-for-guardian-3/%s/0"}`, election),
			string(share.Share))

		res, err := h.Results.GetByChunk(ctx, election, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, res.ShareCount)
		assert.Equal(t, compJob.ID, res.JobID, "the share completing the quorum owns the combine")
	})
}

func TestTransientEngineFailureRepublishes(t *testing.T) {
	WithHarness(t, Options{ChunkSize: 4, MaxRetries: 2}, func(ctx context.Context, h *Harness) {
		const election = "election-wf-retry"
		h.SeedBallots(ctx, election, 4)
		h.Stub.FailNext(TallyEndpoint, 1)

		job := h.Initiate(ctx, testutil.NewJobParams().WithElection(election).Build())
		settled := h.RunUntilSettled(ctx, model.OperationTally, job.ID)

		assert.Equal(t, model.JobStatusCompleted, settled.Status)
		assert.Equal(t, 1, settled.ProcessedChunks)
		assert.Zero(t, settled.FailedChunks)

		assert.Equal(t, 2, h.Stub.Calls(TallyEndpoint), "one 503, one success")
		assert.Equal(t, 2, h.Queue.Published(), "original delivery plus one republish")
		assert.Equal(t, 2, h.Queue.Acks.Acked(), "retried deliveries are acked, not requeued")
		assert.Zero(t, h.Queue.Acks.DeadLettered())

		failures, err := h.Audit.ListFailures(ctx, job.ID)
		require.NoError(t, err)
		require.Len(t, failures, 1, "the failed attempt leaves an audit row")
		require.NotNil(t, failures[0].ErrorMessage)
		assert.Contains(t, *failures[0].ErrorMessage, "status 503")
	})
}

func TestRetryBudgetExhaustionFailsJob(t *testing.T) {
	WithHarness(t, Options{ChunkSize: 4, MaxRetries: 1}, func(ctx context.Context, h *Harness) {
		const election = "election-wf-budget"
		h.SeedBallots(ctx, election, 4)
		h.Stub.FailNext(TallyEndpoint, 5)

		job := h.Initiate(ctx, testutil.NewJobParams().WithElection(election).Build())
		settled := h.RunUntilSettled(ctx, model.OperationTally, job.ID)

		assert.Equal(t, model.JobStatusFailed, settled.Status)
		assert.Equal(t, 1, settled.FailedChunks)
		assert.Zero(t, settled.ProcessedChunks)
		require.NotNil(t, settled.ErrorMessage)
		assert.Contains(t, *settled.ErrorMessage, "status 503")

		assert.Equal(t, 2, h.Stub.Calls(TallyEndpoint), "initial attempt plus one retry")
		assert.Equal(t, 1, h.Queue.Acks.Acked(), "first delivery acked after republish")
		assert.Equal(t, 1, h.Queue.Acks.DeadLettered(), "exhausted delivery dead-lettered")
	})
}

func TestEngineRejectionFailsWithoutRetry(t *testing.T) {
	WithHarness(t, Options{ChunkSize: 4, MaxRetries: 3}, func(ctx context.Context, h *Harness) {
		const election = "election-wf-reject"
		h.SeedBallots(ctx, election, 4)
		h.Stub.RejectNext(TallyEndpoint, "malformed ciphertext batch", 1)

		job := h.Initiate(ctx, testutil.NewJobParams().WithElection(election).Build())
		settled := h.RunUntilSettled(ctx, model.OperationTally, job.ID)

		assert.Equal(t, model.JobStatusFailed, settled.Status)
		assert.Equal(t, 1, settled.FailedChunks)
		require.NotNil(t, settled.ErrorMessage)
		assert.Contains(t, *settled.ErrorMessage, "malformed ciphertext batch")

		assert.Equal(t, 1, h.Stub.Calls(TallyEndpoint), "rejections are final, never retried")
		assert.Equal(t, 1, h.Queue.Published())
		assert.Equal(t, 1, h.Queue.Acks.DeadLettered())
	})
}

func TestSecondInitiationRejectedWhileLockHeld(t *testing.T) {
	WithHarness(t, Options{ChunkSize: 4}, func(ctx context.Context, h *Harness) {
		const election = "election-wf-lock"
		h.SeedBallots(ctx, election, 4)

		params := testutil.NewJobParams().WithElection(election).Build()
		first := h.Initiate(ctx, params)

		_, err := h.TryInitiate(ctx, params)
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrAlreadyLocked)
		assert.Contains(t, err.Error(), "workflow-harness", "conflict names the holder")

		jobs, err := h.Jobs.List(ctx, model.JobListOptions{ElectionID: election})
		require.NoError(t, err)
		require.Len(t, jobs, 1, "the rejected initiation must not create a job")

		settled := h.RunUntilSettled(ctx, model.OperationTally, first.ID)
		assert.Equal(t, model.JobStatusCompleted, settled.Status)
	})
}

func TestDecryptionBeforeTallyRejected(t *testing.T) {
	WithHarness(t, Options{}, func(ctx context.Context, h *Harness) {
		const election = "election-wf-no-plan"

		params := testutil.NewJobParams().
			WithElection(election).
			WithOperation(model.OperationPartialDecryption).
			WithGuardian("guardian-1").
			Build()

		_, err := h.TryInitiate(ctx, params)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Contains(t, err.Error(), "no chunk plan")

		// The failed initiation released its lock, so the retry hits the same
		// validation error instead of a lock conflict.
		_, err = h.TryInitiate(ctx, params)
		require.Error(t, err)
		assert.NotErrorIs(t, err, core.ErrAlreadyLocked)
		assert.True(t, apperrors.IsValidation(err))

		jobs, err := h.Jobs.List(ctx, model.JobListOptions{ElectionID: election})
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})
}
