package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/data"
	"github.com/quorumworks/tallyd/internal/domain/model"
	apperrors "github.com/quorumworks/tallyd/internal/errors"
	"github.com/quorumworks/tallyd/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type combinerMocks struct {
	shares  *mocks.MockShareRepository
	results *mocks.MockResultRepository
	chunks  *mocks.MockChunkRepository
	engine  *mocks.MockCryptoEngine
}

func newTestCombiner(t *testing.T, ctrl *gomock.Controller) (*CombinerService, combinerMocks) {
	t.Helper()

	m := combinerMocks{
		shares:  mocks.NewMockShareRepository(ctrl),
		results: mocks.NewMockResultRepository(ctrl),
		chunks:  mocks.NewMockChunkRepository(ctrl),
		engine:  mocks.NewMockCryptoEngine(ctrl),
	}

	svc := MustNewCombinerService(CombinerOptions{
		Shares:  m.shares,
		Results: m.results,
		Chunks:  m.chunks,
		Engine:  m.engine,
		Logger:  slog.Default(),
	})

	return svc, m
}

func combineParams(explicit bool) CombineChunkParams {
	return CombineChunkParams{
		ElectionID: "election-1",
		ChunkIndex: 4,
		Quorum:     3,
		JobID:      "job-1",
		Explicit:   explicit,
	}
}

func shareBundle(partial, compensated int) *model.ChunkShares {
	bundle := &model.ChunkShares{}
	for i := 0; i < partial; i++ {
		bundle.Partial = append(bundle.Partial, &model.PartialShare{
			ElectionID: "election-1",
			ChunkIndex: 4,
			GuardianID: string(rune('a' + i)),
		})
	}
	for i := 0; i < compensated; i++ {
		bundle.Compensated = append(bundle.Compensated, &model.CompensatedShare{
			ElectionID:        "election-1",
			ChunkIndex:        4,
			GuardianID:        "guardian-1",
			MissingGuardianID: string(rune('x' + i)),
		})
	}
	return bundle
}

func TestNewCombinerService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	shares := mocks.NewMockShareRepository(ctrl)
	results := mocks.NewMockResultRepository(ctrl)
	chunks := mocks.NewMockChunkRepository(ctrl)
	engine := mocks.NewMockCryptoEngine(ctrl)

	t.Run("success", func(t *testing.T) {
		svc, err := NewCombinerService(CombinerOptions{
			Shares:  shares,
			Results: results,
			Chunks:  chunks,
			Engine:  engine,
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("missing dependencies", func(t *testing.T) {
		cases := []struct {
			name    string
			opts    CombinerOptions
			wantErr string
		}{
			{"shares", CombinerOptions{Results: results, Chunks: chunks, Engine: engine}, "ShareRepository is required"},
			{"results", CombinerOptions{Shares: shares, Chunks: chunks, Engine: engine}, "ResultRepository is required"},
			{"chunks", CombinerOptions{Shares: shares, Results: results, Engine: engine}, "ChunkRepository is required"},
			{"engine", CombinerOptions{Shares: shares, Results: results, Chunks: chunks}, "CryptoEngine is required"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				svc, err := NewCombinerService(tc.opts)
				require.Error(t, err)
				assert.Nil(t, svc)
				assert.Contains(t, err.Error(), tc.wantErr)
			})
		}
	})

	t.Run("must panics on error", func(t *testing.T) {
		assert.Panics(t, func() {
			MustNewCombinerService(CombinerOptions{})
		})
	})
}

func TestCombinerService_CombineChunk(t *testing.T) {
	t.Run("validates input", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, _ := newTestCombiner(t, ctrl)

		_, err := svc.CombineChunk(context.Background(), CombineChunkParams{ChunkIndex: 1, Quorum: 3})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))

		_, err = svc.CombineChunk(context.Background(), CombineChunkParams{ElectionID: "election-1", Quorum: 3})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Contains(t, err.Error(), "job id is required")

		_, err = svc.CombineChunk(context.Background(), CombineChunkParams{ElectionID: "election-1", JobID: "job-1"})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Contains(t, err.Error(), "quorum must be > 0")
	})

	t.Run("existing result short-circuits", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestCombiner(t, ctrl)
		m.results.EXPECT().
			GetByChunk(gomock.Any(), "election-1", 4).
			Return(&model.ChunkResult{ElectionID: "election-1", ChunkIndex: 4}, nil)

		outcome, err := svc.CombineChunk(context.Background(), combineParams(false))
		require.NoError(t, err)
		assert.Equal(t, CombineOutcomeAlreadyDone, outcome)
	})

	t.Run("below quorum on inline trigger is not an error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestCombiner(t, ctrl)
		m.results.EXPECT().GetByChunk(gomock.Any(), "election-1", 4).Return(nil, data.ErrResultNotFound)
		m.shares.EXPECT().
			CountForChunk(gomock.Any(), "election-1", 4).
			Return(model.ShareCount{Partial: 2}, nil)

		outcome, err := svc.CombineChunk(context.Background(), combineParams(false))
		require.NoError(t, err)
		assert.Equal(t, CombineOutcomeBelowQuorum, outcome)
	})

	t.Run("below quorum on explicit combine is fatal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestCombiner(t, ctrl)
		m.results.EXPECT().GetByChunk(gomock.Any(), "election-1", 4).Return(nil, data.ErrResultNotFound)
		m.shares.EXPECT().
			CountForChunk(gomock.Any(), "election-1", 4).
			Return(model.ShareCount{Partial: 1, Compensated: 1}, nil)

		_, err := svc.CombineChunk(context.Background(), combineParams(true))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrQuorumNotMet)
		assert.Contains(t, err.Error(), "have 2 shares (1 partial, 1 compensated), need 3")
	})

	t.Run("combines once quorum is met", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestCombiner(t, ctrl)
		bundle := shareBundle(2, 1)
		tally := &model.ChunkTally{
			ElectionID:     "election-1",
			ChunkIndex:     4,
			EncryptedTally: json.RawMessage(`{"ct":"aggregate"}`),
		}

		m.results.EXPECT().GetByChunk(gomock.Any(), "election-1", 4).Return(nil, data.ErrResultNotFound)
		m.shares.EXPECT().
			CountForChunk(gomock.Any(), "election-1", 4).
			Return(model.ShareCount{Partial: 2, Compensated: 1}, nil)
		m.chunks.EXPECT().GetTally(gomock.Any(), "election-1", 4).Return(tally, nil)
		m.shares.EXPECT().ListForChunk(gomock.Any(), "election-1", 4).Return(bundle, nil)
		m.engine.EXPECT().
			CombineShares(gomock.Any(), &core.CombineRequest{
				ElectionID:     "election-1",
				ChunkIndex:     4,
				Quorum:         3,
				EncryptedTally: tally.EncryptedTally,
				Shares:         bundle,
			}).
			Return(&core.CombineResult{Plaintext: json.RawMessage(`{"alice":12}`)}, nil)
		m.results.EXPECT().
			Insert(gomock.Any(), &model.ChunkResult{
				ElectionID: "election-1",
				ChunkIndex: 4,
				JobID:      "job-1",
				Plaintext:  json.RawMessage(`{"alice":12}`),
				ShareCount: 3,
			}).
			Return(true, nil)

		outcome, err := svc.CombineChunk(context.Background(), combineParams(false))
		require.NoError(t, err)
		assert.Equal(t, CombineOutcomeCombined, outcome)
	})

	t.Run("losing the insert race reads as already done", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestCombiner(t, ctrl)
		bundle := shareBundle(3, 0)

		m.results.EXPECT().GetByChunk(gomock.Any(), "election-1", 4).Return(nil, data.ErrResultNotFound)
		m.shares.EXPECT().
			CountForChunk(gomock.Any(), "election-1", 4).
			Return(model.ShareCount{Partial: 3}, nil)
		m.chunks.EXPECT().GetTally(gomock.Any(), "election-1", 4).Return(&model.ChunkTally{}, nil)
		m.shares.EXPECT().ListForChunk(gomock.Any(), "election-1", 4).Return(bundle, nil)
		m.engine.EXPECT().
			CombineShares(gomock.Any(), gomock.Any()).
			Return(&core.CombineResult{Plaintext: json.RawMessage(`{}`)}, nil)
		m.results.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(false, nil)

		outcome, err := svc.CombineChunk(context.Background(), combineParams(false))
		require.NoError(t, err)
		assert.Equal(t, CombineOutcomeAlreadyDone, outcome)
	})

	t.Run("missing tally is a validation error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestCombiner(t, ctrl)
		m.results.EXPECT().GetByChunk(gomock.Any(), "election-1", 4).Return(nil, data.ErrResultNotFound)
		m.shares.EXPECT().
			CountForChunk(gomock.Any(), "election-1", 4).
			Return(model.ShareCount{Partial: 3}, nil)
		m.chunks.EXPECT().GetTally(gomock.Any(), "election-1", 4).Return(nil, data.ErrChunkNotFound)

		_, err := svc.CombineChunk(context.Background(), combineParams(false))
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Contains(t, err.Error(), "no tally to combine")
	})

	t.Run("engine errors keep their classification", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestCombiner(t, ctrl)
		engineErr := apperrors.Unavailable("engine unreachable")

		m.results.EXPECT().GetByChunk(gomock.Any(), "election-1", 4).Return(nil, data.ErrResultNotFound)
		m.shares.EXPECT().
			CountForChunk(gomock.Any(), "election-1", 4).
			Return(model.ShareCount{Partial: 3}, nil)
		m.chunks.EXPECT().GetTally(gomock.Any(), "election-1", 4).Return(&model.ChunkTally{}, nil)
		m.shares.EXPECT().ListForChunk(gomock.Any(), "election-1", 4).Return(shareBundle(3, 0), nil)
		m.engine.EXPECT().CombineShares(gomock.Any(), gomock.Any()).Return(nil, engineErr)

		_, err := svc.CombineChunk(context.Background(), combineParams(false))
		require.Error(t, err)
		assert.True(t, apperrors.IsUnavailable(err))
		assert.True(t, apperrors.IsTransient(err))
	})
}

func TestCombinerService_AggregateElectionResult(t *testing.T) {
	t.Run("requires election id", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, _ := newTestCombiner(t, ctrl)

		_, err := svc.AggregateElectionResult(context.Background(), "")
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("no chunk plan reads as not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestCombiner(t, ctrl)
		m.chunks.EXPECT().CountAssignments(gomock.Any(), "election-1").Return(0, nil)

		_, err := svc.AggregateElectionResult(context.Background(), "election-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("sums per-option counts across combined chunks", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestCombiner(t, ctrl)
		m.chunks.EXPECT().CountAssignments(gomock.Any(), "election-1").Return(3, nil)
		m.results.EXPECT().ListByElection(gomock.Any(), "election-1").Return([]*model.ChunkResult{
			{ChunkIndex: 0, Plaintext: json.RawMessage(`{"alice":10,"bob":5}`)},
			{ChunkIndex: 2, Plaintext: json.RawMessage(`{"alice":3,"carol":2}`)},
		}, nil)

		result, err := svc.AggregateElectionResult(context.Background(), "election-1")
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"alice": 13, "bob": 5, "carol": 2}, result.Tallies)
		assert.Equal(t, 2, result.ChunksCombined)
		assert.Equal(t, 3, result.TotalChunks)
		assert.False(t, result.Complete)
	})

	t.Run("complete once every chunk has a result", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestCombiner(t, ctrl)
		m.chunks.EXPECT().CountAssignments(gomock.Any(), "election-1").Return(2, nil)
		m.results.EXPECT().ListByElection(gomock.Any(), "election-1").Return([]*model.ChunkResult{
			{ChunkIndex: 0, Plaintext: json.RawMessage(`{"alice":1}`)},
			{ChunkIndex: 1, Plaintext: json.RawMessage(`{"alice":2}`)},
		}, nil)

		result, err := svc.AggregateElectionResult(context.Background(), "election-1")
		require.NoError(t, err)
		assert.True(t, result.Complete)
		assert.Equal(t, map[string]int64{"alice": 3}, result.Tallies)
	})

	t.Run("undecodable plaintext is an internal error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestCombiner(t, ctrl)
		m.chunks.EXPECT().CountAssignments(gomock.Any(), "election-1").Return(1, nil)
		m.results.EXPECT().ListByElection(gomock.Any(), "election-1").Return([]*model.ChunkResult{
			{ChunkIndex: 0, Plaintext: json.RawMessage(`"not a map"`)},
		}, nil)

		_, err := svc.AggregateElectionResult(context.Background(), "election-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsInternal(err))
		assert.Contains(t, err.Error(), "decode plaintext for chunk 0")
	})

	t.Run("repository errors propagate", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, m := newTestCombiner(t, ctrl)
		repoErr := errors.New("connection reset")
		m.chunks.EXPECT().CountAssignments(gomock.Any(), "election-1").Return(3, nil)
		m.results.EXPECT().ListByElection(gomock.Any(), "election-1").Return(nil, repoErr)

		_, err := svc.AggregateElectionResult(context.Background(), "election-1")
		require.Error(t, err)
		assert.ErrorIs(t, err, repoErr)
	})
}
