package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/domain/model"
	"github.com/quorumworks/tallyd/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createAuditJob(t *testing.T, db *sql.DB) *model.Job {
	t.Helper()
	job, err := NewJobRepo(db, RepoConfig{}).Create(context.Background(), testutil.TallyJobParams())
	require.NoError(t, err)
	return job
}

func TestAuditRepo_RecordLifecycle(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		fixed := NewFixedTimeProvider(testutil.TestTime())
		repo := NewAuditRepo(db, fixed)
		ctx := context.Background()
		job := createAuditJob(t, db)

		// Attempt 1: completes after 1.5s
		id1, err := repo.RecordStart(ctx, core.RecordChunkStartParams{
			JobID:      job.ID,
			ChunkIndex: 0,
			WorkerID:   "worker-1",
		})
		require.NoError(t, err)
		assert.Positive(t, id1)

		fixed.AddTime(1500 * time.Millisecond)
		require.NoError(t, repo.RecordFinish(ctx, core.RecordChunkFinishParams{
			EntryID: id1,
			Outcome: model.ChunkOutcomeCompleted,
		}))

		// Attempt 2: fails after 500ms
		id2, err := repo.RecordStart(ctx, core.RecordChunkStartParams{
			JobID:      job.ID,
			ChunkIndex: 1,
			WorkerID:   "worker-2",
		})
		require.NoError(t, err)
		require.NotEqual(t, id1, id2)

		fixed.AddTime(500 * time.Millisecond)
		require.NoError(t, repo.RecordFinish(ctx, core.RecordChunkFinishParams{
			EntryID:  id2,
			Outcome:  model.ChunkOutcomeFailed,
			ErrorMsg: "engine rejected chunk 1",
		}))

		// Attempt 3: a redelivery absorbed by the dedup check
		id3, err := repo.RecordStart(ctx, core.RecordChunkStartParams{
			JobID:      job.ID,
			ChunkIndex: 0,
			WorkerID:   "worker-3",
		})
		require.NoError(t, err)
		require.NoError(t, repo.RecordFinish(ctx, core.RecordChunkFinishParams{
			EntryID: id3,
			Outcome: model.ChunkOutcomeSkipped,
		}))

		stats, err := repo.TimingStats(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Attempts)
		assert.Equal(t, 1, stats.Completed)
		assert.Equal(t, 1, stats.Failed)
		assert.InDelta(t, 2000.0/3.0, stats.AvgDurationMS, 0.1)
		assert.InDelta(t, 2000.0, stats.TotalDurationMS, 0.1)

		failures, err := repo.ListFailures(ctx, job.ID)
		require.NoError(t, err)
		require.Len(t, failures, 1)
		assert.Equal(t, id2, failures[0].ID)
		assert.Equal(t, 1, failures[0].ChunkIndex)
		assert.Equal(t, "worker-2", failures[0].WorkerID)
		assert.Equal(t, model.ChunkOutcomeFailed, failures[0].Outcome)
		require.NotNil(t, failures[0].ErrorMessage)
		assert.Equal(t, "engine rejected chunk 1", *failures[0].ErrorMessage)
		require.NotNil(t, failures[0].FinishedAt)
	})
}

func TestAuditRepo_RecordStart_Validation(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewAuditRepo(db, nil)

		_, err := repo.RecordStart(context.Background(), core.RecordChunkStartParams{
			ChunkIndex: 0,
			WorkerID:   "worker-1",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "job id is required")
	})
}

func TestAuditRepo_RecordFinish_Validation(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewAuditRepo(db, nil)
		ctx := context.Background()

		err := repo.RecordFinish(ctx, core.RecordChunkFinishParams{
			EntryID: 1,
			Outcome: model.ChunkOutcome("exploded"),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid chunk outcome")

		err = repo.RecordFinish(ctx, core.RecordChunkFinishParams{
			EntryID: 999999,
			Outcome: model.ChunkOutcomeCompleted,
		})
		assert.ErrorIs(t, err, ErrAuditEntryNotFound)
	})
}

func TestAuditRepo_DeleteBefore(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		fixed := NewFixedTimeProvider(testutil.TestTime())
		repo := NewAuditRepo(db, fixed)
		ctx := context.Background()
		job := createAuditJob(t, db)

		start := func(chunk int) int64 {
			id, err := repo.RecordStart(ctx, core.RecordChunkStartParams{
				JobID:      job.ID,
				ChunkIndex: chunk,
				WorkerID:   "worker-1",
			})
			require.NoError(t, err)
			return id
		}

		// Two old rows, one finished and one abandoned mid-flight, then a
		// recent finished row.
		oldID := start(0)
		require.NoError(t, repo.RecordFinish(ctx, core.RecordChunkFinishParams{
			EntryID: oldID,
			Outcome: model.ChunkOutcomeCompleted,
		}))
		start(2)

		fixed.AddTime(2 * time.Hour)
		recentID := start(1)
		require.NoError(t, repo.RecordFinish(ctx, core.RecordChunkFinishParams{
			EntryID: recentID,
			Outcome: model.ChunkOutcomeCompleted,
		}))

		cutoff := testutil.TestTime().Add(time.Hour)
		deleted, err := repo.DeleteBefore(ctx, cutoff, 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		// The unfinished attempt survives regardless of age
		stats, err := repo.TimingStats(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Attempts)

		_, err = repo.DeleteBefore(ctx, cutoff, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch size")
	})
}
