package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/data"
	"github.com/quorumworks/tallyd/internal/domain/model"
	apperrors "github.com/quorumworks/tallyd/internal/errors"
	obserrors "github.com/quorumworks/tallyd/internal/observability/errors"
	"github.com/quorumworks/tallyd/internal/observability/statsd"
)

// ErrQuorumNotMet indicates a combine attempt ran before enough shares
// accumulated. During an explicit combine job this is fatal for the chunk; on
// the inline trigger path it just means the chunk is not ready yet.
var ErrQuorumNotMet = errors.New("quorum not met")

// CombinerOptions groups dependencies for CombinerService.
type CombinerOptions struct {
	Shares  core.ShareRepository  // Required: accumulated decryption shares
	Results core.ResultRepository // Required: combined chunk plaintexts
	Chunks  core.ChunkRepository  // Required: chunk tallies and assignments
	Engine  core.CryptoEngine     // Required: combine calls
	Logger  *slog.Logger          // Optional: structured logger
	Metrics statsd.Sink           // Optional: metrics sink (StatsD-compatible)
}

// CombinerService assembles chunk plaintexts once enough shares accumulate.
//
// Both trigger paths funnel through CombineChunk: decryption workers call it
// inline right after their share lands, and explicit combine jobs call it once
// per chunk. The persisted result row is the idempotency point, so concurrent
// attempts for the same chunk collapse to one effective combination.
type CombinerService struct {
	shares  core.ShareRepository
	results core.ResultRepository
	chunks  core.ChunkRepository
	engine  core.CryptoEngine
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewCombinerService constructs a new CombinerService.
func NewCombinerService(opts CombinerOptions) (*CombinerService, error) {
	if opts.Shares == nil {
		return nil, errors.New("ShareRepository is required")
	}
	if opts.Results == nil {
		return nil, errors.New("ResultRepository is required")
	}
	if opts.Chunks == nil {
		return nil, errors.New("ChunkRepository is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("CryptoEngine is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "combiner_service")
	}

	return &CombinerService{
		shares:  opts.Shares,
		results: opts.Results,
		chunks:  opts.Chunks,
		engine:  opts.Engine,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewCombinerService constructs a new CombinerService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewCombinerService(opts CombinerOptions) *CombinerService {
	svc, err := NewCombinerService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create CombinerService: %v", err))
	}
	return svc
}

// CombineChunkParams identifies one combination attempt.
type CombineChunkParams struct {
	ElectionID string
	ChunkIndex int
	Quorum     int

	// JobID is the job driving this attempt. On the inline trigger path that
	// is the decryption job whose share completed the quorum; the id is
	// stamped onto the result row as attribution.
	JobID string

	// Explicit marks attempts driven by a combine job, where every expected
	// contributor has already reported and a quorum deficit is final.
	Explicit bool
}

// CombineOutcome reports how a combine attempt ended.
type CombineOutcome string

const (
	// CombineOutcomeCombined means this attempt produced the chunk's result row.
	CombineOutcomeCombined CombineOutcome = "combined"
	// CombineOutcomeAlreadyDone means a result row already existed.
	CombineOutcomeAlreadyDone CombineOutcome = "already_done"
	// CombineOutcomeBelowQuorum means shares have not reached quorum yet.
	CombineOutcomeBelowQuorum CombineOutcome = "below_quorum"
)

// CombineChunk combines the accumulated shares for one chunk into its
// plaintext result. An existing result short-circuits; shares arriving after
// combination are stored but never re-trigger it. Engine errors keep their
// transience classification so the worker retry path stays intact.
func (s *CombinerService) CombineChunk(
	ctx context.Context,
	params CombineChunkParams,
) (CombineOutcome, error) {
	if params.ElectionID == "" {
		return "", apperrors.Validation("election id is required")
	}
	if params.JobID == "" {
		return "", apperrors.Validation("job id is required")
	}
	if params.Quorum <= 0 {
		return "", apperrors.Validation("quorum must be > 0")
	}

	done, err := s.resultExists(ctx, params.ElectionID, params.ChunkIndex)
	if err != nil {
		return "", err
	}
	if done {
		s.emitCombine(CombineOutcomeAlreadyDone, nil)
		return CombineOutcomeAlreadyDone, nil
	}

	count, err := s.shares.CountForChunk(ctx, params.ElectionID, params.ChunkIndex)
	if err != nil {
		return "", fmt.Errorf("count shares for chunk %d: %w", params.ChunkIndex, err)
	}
	if !count.Meets(params.Quorum) {
		if params.Explicit {
			err := fmt.Errorf("%w for chunk %d: have %d shares (%d partial, %d compensated), need %d",
				ErrQuorumNotMet, params.ChunkIndex,
				count.Total(), count.Partial, count.Compensated, params.Quorum)
			s.emitCombine(CombineOutcomeBelowQuorum, err)
			return "", err
		}
		s.emitCombine(CombineOutcomeBelowQuorum, nil)
		return CombineOutcomeBelowQuorum, nil
	}

	outcome, err := s.combine(ctx, params)
	s.emitCombine(outcome, err)
	if err != nil {
		return "", err
	}

	if outcome == CombineOutcomeCombined && s.logger != nil {
		s.logger.InfoContext(ctx, "combined chunk result",
			"election_id", params.ElectionID,
			"chunk_index", params.ChunkIndex,
			"shares", count.Total(),
		)
	}

	return outcome, nil
}

// combine gathers the shares, calls the engine, and persists the plaintext.
// Losing the insert race to a concurrent attempt is reported as already done.
func (s *CombinerService) combine(
	ctx context.Context,
	params CombineChunkParams,
) (CombineOutcome, error) {
	tally, err := s.chunks.GetTally(ctx, params.ElectionID, params.ChunkIndex)
	if err != nil {
		if errors.Is(err, data.ErrChunkNotFound) {
			return "", apperrors.Wrapf(err, apperrors.ErrCodeValidation,
				"chunk %d of election %s has no tally to combine",
				params.ChunkIndex, params.ElectionID)
		}
		return "", fmt.Errorf("load tally for chunk %d: %w", params.ChunkIndex, err)
	}

	bundle, err := s.shares.ListForChunk(ctx, params.ElectionID, params.ChunkIndex)
	if err != nil {
		return "", fmt.Errorf("list shares for chunk %d: %w", params.ChunkIndex, err)
	}

	res, err := s.engine.CombineShares(ctx, &core.CombineRequest{
		ElectionID:     params.ElectionID,
		ChunkIndex:     params.ChunkIndex,
		Quorum:         params.Quorum,
		EncryptedTally: tally.EncryptedTally,
		Shares:         bundle,
	})
	if err != nil {
		return "", fmt.Errorf("combine shares for chunk %d: %w", params.ChunkIndex, err)
	}

	inserted, err := s.results.Insert(ctx, &model.ChunkResult{
		ElectionID: params.ElectionID,
		ChunkIndex: params.ChunkIndex,
		JobID:      params.JobID,
		Plaintext:  res.Plaintext,
		ShareCount: bundle.Count().Total(),
	})
	if err != nil {
		return "", fmt.Errorf("persist result for chunk %d: %w", params.ChunkIndex, err)
	}
	if !inserted {
		if s.logger != nil {
			s.logger.DebugContext(ctx, "chunk result already combined by a concurrent attempt",
				"election_id", params.ElectionID,
				"chunk_index", params.ChunkIndex,
			)
		}
		return CombineOutcomeAlreadyDone, nil
	}

	return CombineOutcomeCombined, nil
}

func (s *CombinerService) resultExists(ctx context.Context, electionID string, chunkIndex int) (bool, error) {
	_, err := s.results.GetByChunk(ctx, electionID, chunkIndex)
	if err != nil {
		if errors.Is(err, data.ErrResultNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check result for chunk %d: %w", chunkIndex, err)
	}
	return true, nil
}

// AggregateElectionResult sums the per-option counts across all combined
// chunks. Complete is true only once every planned chunk has a result; callers
// get partial aggregates before that with the chunk counts to interpret them.
func (s *CombinerService) AggregateElectionResult(
	ctx context.Context,
	electionID string,
) (*model.ElectionResult, error) {
	if electionID == "" {
		return nil, apperrors.Validation("election id is required")
	}

	totalChunks, err := s.chunks.CountAssignments(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("count chunk assignments for election %s: %w", electionID, err)
	}
	if totalChunks == 0 {
		return nil, apperrors.NotFoundf("election %s has no chunk plan", electionID)
	}

	results, err := s.results.ListByElection(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("list chunk results for election %s: %w", electionID, err)
	}

	tallies := make(map[string]int64)
	for _, r := range results {
		var counts map[string]int64
		if err := json.Unmarshal(r.Plaintext, &counts); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal,
				"decode plaintext for chunk %d of election %s", r.ChunkIndex, electionID)
		}
		for option, n := range counts {
			tallies[option] += n
		}
	}

	return &model.ElectionResult{
		ElectionID:     electionID,
		Tallies:        tallies,
		ChunksCombined: len(results),
		TotalChunks:    totalChunks,
		Complete:       len(results) == totalChunks,
	}, nil
}

func (s *CombinerService) emitCombine(outcome CombineOutcome, err error) {
	if s.metrics == nil {
		return
	}

	tags := map[string]string{}
	switch {
	case err != nil && errors.Is(err, ErrQuorumNotMet):
		tags["outcome"] = string(CombineOutcomeBelowQuorum)
		tags["result"] = "fatal"
	case err != nil:
		tags["outcome"] = "error"
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	default:
		tags["outcome"] = string(outcome)
	}

	s.metrics.Count("combine.attempt", 1, tags)
}
