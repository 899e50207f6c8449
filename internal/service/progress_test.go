package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/quorumworks/tallyd/internal/data"
	"github.com/quorumworks/tallyd/internal/domain/model"
	apperrors "github.com/quorumworks/tallyd/internal/errors"
	"github.com/quorumworks/tallyd/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type progressMocks struct {
	jobs  *mocks.MockJobRepository
	audit *mocks.MockAuditRepository
	locks *mocks.MockLockManager
}

func newTestProgress(t *testing.T, ctrl *gomock.Controller) (*ProgressService, progressMocks) {
	t.Helper()

	m := progressMocks{
		jobs:  mocks.NewMockJobRepository(ctrl),
		audit: mocks.NewMockAuditRepository(ctrl),
		locks: mocks.NewMockLockManager(ctrl),
	}

	svc := MustNewProgressService(ProgressOptions{
		Jobs:   m.jobs,
		Audit:  m.audit,
		Locks:  m.locks,
		Logger: slog.Default(),
	})

	return svc, m
}

func TestNewProgressService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	jobs := mocks.NewMockJobRepository(ctrl)
	audit := mocks.NewMockAuditRepository(ctrl)

	t.Run("success without locks", func(t *testing.T) {
		svc, err := NewProgressService(ProgressOptions{Jobs: jobs, Audit: audit})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("missing jobs", func(t *testing.T) {
		_, err := NewProgressService(ProgressOptions{Audit: audit})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JobRepository is required")
	})

	t.Run("missing audit", func(t *testing.T) {
		_, err := NewProgressService(ProgressOptions{Jobs: jobs})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AuditRepository is required")
	})

	t.Run("must panics on error", func(t *testing.T) {
		assert.Panics(t, func() {
			MustNewProgressService(ProgressOptions{})
		})
	})
}

func TestProgressService_GetJob(t *testing.T) {
	activeJob := &model.Job{
		ID:              "job-1",
		ElectionID:      "election-1",
		Operation:       model.OperationTally,
		Status:          model.JobStatusInProgress,
		TotalChunks:     10,
		ProcessedChunks: 4,
	}

	t.Run("returns job with percent, timing and lock", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestProgress(t, ctrl)
		timing := &model.ChunkTimingStats{Attempts: 5, Completed: 4, Failed: 1}
		lock := &model.LockStatus{Holder: "host-a", AcquiredAt: time.Now()}

		m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(activeJob, nil)
		m.audit.EXPECT().TimingStats(gomock.Any(), "job-1").Return(timing, nil)
		m.locks.EXPECT().
			Peek(gomock.Any(), model.LockKey{ElectionID: "election-1", Operation: model.OperationTally}).
			Return(lock, nil)

		progress, err := svc.GetJob(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, activeJob, progress.Job)
		assert.InDelta(t, 40.0, progress.Percent, 0.001)
		assert.Equal(t, timing, progress.Timing)
		assert.Equal(t, lock, progress.Lock)
	})

	t.Run("terminal job skips lock peek", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestProgress(t, ctrl)
		done := &model.Job{
			ID:              "job-2",
			ElectionID:      "election-1",
			Operation:       model.OperationTally,
			Status:          model.JobStatusCompleted,
			TotalChunks:     10,
			ProcessedChunks: 10,
		}

		m.jobs.EXPECT().GetByID(gomock.Any(), "job-2").Return(done, nil)
		m.audit.EXPECT().TimingStats(gomock.Any(), "job-2").Return(nil, nil)

		progress, err := svc.GetJob(context.Background(), "job-2")
		require.NoError(t, err)
		assert.Nil(t, progress.Lock)
		assert.InDelta(t, 100.0, progress.Percent, 0.001)
	})

	t.Run("timing and lock lookups are best effort", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestProgress(t, ctrl)

		m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(activeJob, nil)
		m.audit.EXPECT().TimingStats(gomock.Any(), "job-1").Return(nil, errors.New("stats query failed"))
		m.locks.EXPECT().Peek(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis down"))

		progress, err := svc.GetJob(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Nil(t, progress.Timing)
		assert.Nil(t, progress.Lock)
	})

	t.Run("unknown job", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestProgress(t, ctrl)
		m.jobs.EXPECT().GetByID(gomock.Any(), "nope").Return(nil, data.ErrJobNotFound)

		_, err := svc.GetJob(context.Background(), "nope")
		require.Error(t, err)
		assert.ErrorIs(t, err, data.ErrJobNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, _ := newTestProgress(t, ctrl)

		_, err := svc.GetJob(context.Background(), "")
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestProgressService_GetJobChunks(t *testing.T) {
	job := &model.Job{ID: "job-1", ElectionID: "election-1", Operation: model.OperationTally}

	t.Run("returns timing and failures", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestProgress(t, ctrl)
		timing := &model.ChunkTimingStats{Attempts: 12, Completed: 10, Failed: 2}
		errMsg := "engine rejected chunk"
		failures := []*model.ChunkAuditEntry{
			{JobID: "job-1", ChunkIndex: 3, Outcome: model.ChunkOutcomeFailed, ErrorMessage: &errMsg},
		}

		m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
		m.audit.EXPECT().TimingStats(gomock.Any(), "job-1").Return(timing, nil)
		m.audit.EXPECT().ListFailures(gomock.Any(), "job-1").Return(failures, nil)

		view, err := svc.GetJobChunks(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, "job-1", view.JobID)
		assert.Equal(t, timing, view.Timing)
		assert.Equal(t, failures, view.Failures)
	})

	t.Run("no failures renders as empty list", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestProgress(t, ctrl)
		m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
		m.audit.EXPECT().TimingStats(gomock.Any(), "job-1").Return(&model.ChunkTimingStats{}, nil)
		m.audit.EXPECT().ListFailures(gomock.Any(), "job-1").Return(nil, nil)

		view, err := svc.GetJobChunks(context.Background(), "job-1")
		require.NoError(t, err)
		assert.NotNil(t, view.Failures)
		assert.Empty(t, view.Failures)
	})

	t.Run("unknown job short-circuits", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestProgress(t, ctrl)
		m.jobs.EXPECT().GetByID(gomock.Any(), "nope").Return(nil, data.ErrJobNotFound)

		_, err := svc.GetJobChunks(context.Background(), "nope")
		require.Error(t, err)
		assert.ErrorIs(t, err, data.ErrJobNotFound)
	})
}

func TestProgressService_ListElectionJobs(t *testing.T) {
	t.Run("normalizes pagination", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestProgress(t, ctrl)
		jobs := []*model.Job{{ID: "job-1"}, {ID: "job-2"}}

		m.jobs.EXPECT().
			List(gomock.Any(), model.JobListOptions{ElectionID: "election-1", Limit: 50, Offset: 0}).
			Return(jobs, nil)

		got, err := svc.ListElectionJobs(context.Background(), model.JobListOptions{
			ElectionID: "election-1",
			Limit:      0,
			Offset:     -3,
		})
		require.NoError(t, err)
		assert.Equal(t, jobs, got)
	})

	t.Run("caps excessive limit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestProgress(t, ctrl)
		m.jobs.EXPECT().
			List(gomock.Any(), model.JobListOptions{ElectionID: "election-1", Limit: 1000, Offset: 10}).
			Return(nil, nil)

		_, err := svc.ListElectionJobs(context.Background(), model.JobListOptions{
			ElectionID: "election-1",
			Limit:      99999,
			Offset:     10,
		})
		require.NoError(t, err)
	})

	t.Run("rejects bad filters", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, _ := newTestProgress(t, ctrl)

		_, err := svc.ListElectionJobs(context.Background(), model.JobListOptions{})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))

		badStatus := model.JobStatus("paused")
		_, err = svc.ListElectionJobs(context.Background(), model.JobListOptions{
			ElectionID: "election-1",
			Status:     &badStatus,
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))

		badOp := model.OperationType("recount")
		_, err = svc.ListElectionJobs(context.Background(), model.JobListOptions{
			ElectionID: "election-1",
			Operation:  &badOp,
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestProgressService_ListActive(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, m := newTestProgress(t, ctrl)
	jobs := []*model.Job{
		{ID: "job-1", Status: model.JobStatusQueued},
		{ID: "job-2", Status: model.JobStatusInProgress},
	}
	m.jobs.EXPECT().ListActive(gomock.Any()).Return(jobs, nil)

	got, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, jobs, got)
}

func TestProgressService_Stats(t *testing.T) {
	t.Run("returns stats for a valid operation", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestProgress(t, ctrl)
		stats := &model.JobStats{Queued: 1, InProgress: 2, Completed: 3, Failed: 4}
		m.jobs.EXPECT().Stats(gomock.Any(), model.OperationTally).Return(stats, nil)

		got, err := svc.Stats(context.Background(), model.OperationTally)
		require.NoError(t, err)
		assert.Equal(t, stats, got)
	})

	t.Run("rejects unknown operation", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, _ := newTestProgress(t, ctrl)

		_, err := svc.Stats(context.Background(), "recount")
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestNormalizePagination(t *testing.T) {
	cases := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", 0, 0, 50, 0},
		{"negative", -1, -1, 50, 0},
		{"passthrough", 200, 40, 200, 40},
		{"capped", 5000, 0, 1000, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := normalizePagination(tc.limit, tc.offset)
			assert.Equal(t, tc.wantLimit, p.Limit)
			assert.Equal(t, tc.wantOffset, p.Offset)
		})
	}
}
