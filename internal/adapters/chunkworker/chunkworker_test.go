package chunkworker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/data"
	"github.com/quorumworks/tallyd/internal/domain/model"
	apperrors "github.com/quorumworks/tallyd/internal/errors"
	"github.com/quorumworks/tallyd/internal/mocks"
	"github.com/quorumworks/tallyd/internal/observability/notify"
	"github.com/quorumworks/tallyd/internal/service"
	"github.com/quorumworks/tallyd/internal/service/failurenotifier"
)

// fakeAcker records acknowledgement decisions so tests can assert whether a
// delivery was acked, requeued, or dead-lettered.
type fakeAcker struct {
	acks  int
	nacks []bool // requeue flag per nack
}

func (f *fakeAcker) Ack(uint64, bool) error { f.acks++; return nil }

func (f *fakeAcker) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacks = append(f.nacks, requeue)
	return nil
}

func (f *fakeAcker) Reject(_ uint64, requeue bool) error {
	f.nacks = append(f.nacks, requeue)
	return nil
}

type workerMocks struct {
	jobs      *mocks.MockJobRepository
	chunks    *mocks.MockChunkRepository
	items     *mocks.MockCipherItemRepository
	shares    *mocks.MockShareRepository
	results   *mocks.MockResultRepository
	engine    *mocks.MockCryptoEngine
	publisher *mocks.MockChunkPublisher
	audit     *mocks.MockAuditRepository
}

func newWorkerMocks(ctrl *gomock.Controller) workerMocks {
	return workerMocks{
		jobs:      mocks.NewMockJobRepository(ctrl),
		chunks:    mocks.NewMockChunkRepository(ctrl),
		items:     mocks.NewMockCipherItemRepository(ctrl),
		shares:    mocks.NewMockShareRepository(ctrl),
		results:   mocks.NewMockResultRepository(ctrl),
		engine:    mocks.NewMockCryptoEngine(ctrl),
		publisher: mocks.NewMockChunkPublisher(ctrl),
		audit:     mocks.NewMockAuditRepository(ctrl),
	}
}

func (m workerMocks) options(op model.OperationType) RunnerOptions {
	combiner := service.MustNewCombinerService(service.CombinerOptions{
		Shares:  m.shares,
		Results: m.results,
		Chunks:  m.chunks,
		Engine:  m.engine,
	})
	return RunnerOptions{
		Operation:  op,
		Deliveries: make(chan amqp091.Delivery),
		Jobs:       m.jobs,
		Chunks:     m.chunks,
		Items:      m.items,
		Shares:     m.shares,
		Results:    m.results,
		Engine:     m.engine,
		Combiner:   combiner,
		Publisher:  m.publisher,
		Audit:      m.audit,
		MaxRetries: 3,
		WorkerID:   "test-host/" + string(op),
	}
}

func newTestRunner(t *testing.T, ctrl *gomock.Controller, op model.OperationType) (*Runner, workerMocks) {
	t.Helper()

	m := newWorkerMocks(ctrl)
	r, err := NewRunner(m.options(op))
	require.NoError(t, err)
	return r, m
}

// allowAudit accepts any audit bookkeeping without asserting on it. Tests
// about the audit trail set exact expectations instead.
func allowAudit(m workerMocks) {
	m.audit.EXPECT().RecordStart(gomock.Any(), gomock.Any()).Return(int64(7), nil).AnyTimes()
	m.audit.EXPECT().RecordFinish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func chunkDelivery(t *testing.T, ack *fakeAcker, msg *model.ChunkMessage) amqp091.Delivery {
	t.Helper()

	body, err := msg.Encode()
	require.NoError(t, err)
	return amqp091.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body}
}

func tallyMessage(retryCount int) *model.ChunkMessage {
	return &model.ChunkMessage{
		JobID:      "job-1",
		ElectionID: "election-1",
		Operation:  model.OperationTally,
		ChunkIndex: 2,
		RetryCount: retryCount,
	}
}

// activeJob builds an in-progress job whose metadata validates for the
// operation under test.
func activeJob(t *testing.T, op model.OperationType) *model.Job {
	t.Helper()

	meta := model.JobMetadata{Quorum: 3, GuardianCount: 5}
	if op.Decryption() {
		meta.GuardianID = "guardian-1"
	}
	if op == model.OperationCompensatedDecryption {
		meta.MissingGuardianID = "guardian-9"
	}
	raw, err := json.Marshal(meta)
	require.NoError(t, err)

	return &model.Job{
		ID:          "job-1",
		ElectionID:  "election-1",
		Operation:   op,
		Status:      model.JobStatusInProgress,
		TotalChunks: 3,
		Metadata:    raw,
	}
}

func TestNewRunner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := newWorkerMocks(ctrl)

	t.Run("success with defaults", func(t *testing.T) {
		opts := m.options(model.OperationTally)
		opts.Concurrency = 0
		opts.MaxRetries = -1
		opts.WorkerID = ""

		r, err := NewRunner(opts)
		require.NoError(t, err)
		assert.Equal(t, 1, r.workers)
		assert.Equal(t, 0, r.maxRetries)
		assert.True(t, strings.HasSuffix(r.workerID, "/tally"))
		assert.Len(t, r.handlers, 4)
	})

	t.Run("invalid operation", func(t *testing.T) {
		opts := m.options(model.OperationTally)
		opts.Operation = "melt"

		_, err := NewRunner(opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid operation type")
	})

	t.Run("missing dependencies", func(t *testing.T) {
		cases := []struct {
			name    string
			mutate  func(*RunnerOptions)
			wantErr string
		}{
			{"deliveries", func(o *RunnerOptions) { o.Deliveries = nil }, "Deliveries channel is required"},
			{"jobs", func(o *RunnerOptions) { o.Jobs = nil }, "JobRepository is required"},
			{"chunks", func(o *RunnerOptions) { o.Chunks = nil }, "ChunkRepository is required"},
			{"items", func(o *RunnerOptions) { o.Items = nil }, "CipherItemRepository is required"},
			{"shares", func(o *RunnerOptions) { o.Shares = nil }, "ShareRepository is required"},
			{"results", func(o *RunnerOptions) { o.Results = nil }, "ResultRepository is required"},
			{"engine", func(o *RunnerOptions) { o.Engine = nil }, "CryptoEngine is required"},
			{"combiner", func(o *RunnerOptions) { o.Combiner = nil }, "CombinerService is required"},
			{"publisher", func(o *RunnerOptions) { o.Publisher = nil }, "ChunkPublisher is required"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				opts := m.options(model.OperationTally)
				tc.mutate(&opts)

				r, err := NewRunner(opts)
				require.Error(t, err)
				assert.Nil(t, r)
				assert.Contains(t, err.Error(), tc.wantErr)
			})
		}
	})
}

func TestRunner_PoisonDeliveries(t *testing.T) {
	t.Run("undecodable body is dead-lettered", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		r, _ := newTestRunner(t, ctrl, model.OperationTally)
		ack := &fakeAcker{}
		d := amqp091.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("{not json")}

		r.processDelivery(context.Background(), d)

		assert.Zero(t, ack.acks)
		require.Len(t, ack.nacks, 1)
		assert.False(t, ack.nacks[0])
	})

	t.Run("operation mismatch is dead-lettered", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		r, _ := newTestRunner(t, ctrl, model.OperationTally)
		ack := &fakeAcker{}
		msg := tallyMessage(0)
		msg.Operation = model.OperationCombine

		r.processDelivery(context.Background(), chunkDelivery(t, ack, msg))

		assert.Zero(t, ack.acks)
		require.Len(t, ack.nacks, 1)
		assert.False(t, ack.nacks[0])
	})

	t.Run("missing job is dead-lettered without counters", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		r, m := newTestRunner(t, ctrl, model.OperationTally)
		m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(nil, data.ErrJobNotFound)

		ack := &fakeAcker{}
		r.processDelivery(context.Background(), chunkDelivery(t, ack, tallyMessage(0)))

		assert.Zero(t, ack.acks)
		require.Len(t, ack.nacks, 1)
		assert.False(t, ack.nacks[0])
	})
}

func TestRunner_TerminalJobDeliveryDropped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, m := newTestRunner(t, ctrl, model.OperationTally)
	job := activeJob(t, model.OperationTally)
	job.Status = model.JobStatusCompleted
	m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)

	ack := &fakeAcker{}
	r.processDelivery(context.Background(), chunkDelivery(t, ack, tallyMessage(0)))

	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, ack.nacks)
}

func TestRunner_MetadataRejectedFailsChunk(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, m := newTestRunner(t, ctrl, model.OperationTally)
	allowAudit(m)

	job := activeJob(t, model.OperationTally)
	job.Metadata = json.RawMessage(`{"quorum":0}`)
	m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
	m.jobs.EXPECT().
		IncrementFailed(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.IncrementFailedParams) (*model.Job, error) {
			assert.Equal(t, "job-1", params.JobID)
			assert.Contains(t, params.ErrorMsg, "job metadata rejected")
			return &model.Job{ID: params.JobID}, nil
		})

	ack := &fakeAcker{}
	r.processDelivery(context.Background(), chunkDelivery(t, ack, tallyMessage(0)))

	assert.Zero(t, ack.acks)
	require.Len(t, ack.nacks, 1)
	assert.False(t, ack.nacks[0])
}

func TestRunner_TransientErrorRepublishes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, m := newTestRunner(t, ctrl, model.OperationTally)
	allowAudit(m)

	m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(activeJob(t, model.OperationTally), nil)
	m.chunks.EXPECT().
		GetAssignment(gomock.Any(), "election-1", 2).
		Return(&model.ChunkAssignment{ElectionID: "election-1", ChunkIndex: 2, ItemIDs: []string{"b-1"}}, nil)
	m.items.EXPECT().
		ListByIDs(gomock.Any(), "election-1", []string{"b-1"}).
		Return([]*model.CipherItem{{ID: "b-1", Ciphertext: json.RawMessage(`{"ct":1}`)}}, nil)
	m.engine.EXPECT().
		TallyChunk(gomock.Any(), gomock.Any()).
		Return(nil, apperrors.Unavailable("engine unreachable"))
	m.publisher.EXPECT().
		PublishChunk(gomock.Any(), &model.ChunkMessage{
			JobID:      "job-1",
			ElectionID: "election-1",
			Operation:  model.OperationTally,
			ChunkIndex: 2,
			RetryCount: 1,
		}).
		Return(nil)

	ack := &fakeAcker{}
	r.processDelivery(context.Background(), chunkDelivery(t, ack, tallyMessage(0)))

	// The original delivery is acked; the retry lives in the republished message.
	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, ack.nacks)
}

func TestRunner_RetriesExhaustedFailsChunk(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, m := newTestRunner(t, ctrl, model.OperationTally)
	allowAudit(m)

	m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(activeJob(t, model.OperationTally), nil)
	m.chunks.EXPECT().
		GetAssignment(gomock.Any(), "election-1", 2).
		Return(&model.ChunkAssignment{ElectionID: "election-1", ChunkIndex: 2, ItemIDs: []string{"b-1"}}, nil)
	m.items.EXPECT().
		ListByIDs(gomock.Any(), "election-1", []string{"b-1"}).
		Return([]*model.CipherItem{{ID: "b-1", Ciphertext: json.RawMessage(`{"ct":1}`)}}, nil)
	m.engine.EXPECT().
		TallyChunk(gomock.Any(), gomock.Any()).
		Return(nil, apperrors.Unavailable("engine unreachable"))
	m.jobs.EXPECT().
		IncrementFailed(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.IncrementFailedParams) (*model.Job, error) {
			assert.Equal(t, "job-1", params.JobID)
			assert.Contains(t, params.ErrorMsg, "engine unreachable")
			return &model.Job{ID: params.JobID}, nil
		})

	ack := &fakeAcker{}
	r.processDelivery(context.Background(), chunkDelivery(t, ack, tallyMessage(3)))

	assert.Zero(t, ack.acks)
	require.Len(t, ack.nacks, 1)
	assert.False(t, ack.nacks[0])
}

func TestRunner_RepublishFailureRequeues(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, m := newTestRunner(t, ctrl, model.OperationTally)
	allowAudit(m)

	m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(activeJob(t, model.OperationTally), nil)
	m.chunks.EXPECT().
		GetAssignment(gomock.Any(), "election-1", 2).
		Return(nil, apperrors.Unavailable("db gone"))
	m.publisher.EXPECT().
		PublishChunk(gomock.Any(), gomock.Any()).
		Return(errors.New("broker unreachable"))

	ack := &fakeAcker{}
	r.processDelivery(context.Background(), chunkDelivery(t, ack, tallyMessage(0)))

	// No counters move; the broker redelivers with the retry count unchanged.
	assert.Zero(t, ack.acks)
	require.Len(t, ack.nacks, 1)
	assert.True(t, ack.nacks[0])
}

func TestRunner_ShutdownInterruptionRequeues(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, m := newTestRunner(t, ctrl, model.OperationTally)
	allowAudit(m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(activeJob(t, model.OperationTally), nil)
	m.chunks.EXPECT().
		GetAssignment(gomock.Any(), "election-1", 2).
		Return(&model.ChunkAssignment{ElectionID: "election-1", ChunkIndex: 2, ItemIDs: []string{"b-1"}}, nil)
	m.items.EXPECT().
		ListByIDs(gomock.Any(), "election-1", []string{"b-1"}).
		Return([]*model.CipherItem{{ID: "b-1", Ciphertext: json.RawMessage(`{"ct":1}`)}}, nil)
	m.engine.EXPECT().
		TallyChunk(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, *core.TallyChunkRequest) (*core.TallyChunkResult, error) {
			cancel()
			return nil, apperrors.Wrap(context.Canceled, apperrors.ErrCodeCanceled, "engine call canceled")
		})

	ack := &fakeAcker{}
	r.processDelivery(ctx, chunkDelivery(t, ack, tallyMessage(0)))

	assert.Zero(t, ack.acks)
	require.Len(t, ack.nacks, 1)
	assert.True(t, ack.nacks[0])
}

func TestRunner_AuditTrailRecordsAttempt(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, m := newTestRunner(t, ctrl, model.OperationTally)

	m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(activeJob(t, model.OperationTally), nil)
	m.audit.EXPECT().
		RecordStart(gomock.Any(), core.RecordChunkStartParams{
			JobID:      "job-1",
			ChunkIndex: 2,
			WorkerID:   "test-host/tally",
		}).
		Return(int64(41), nil)
	m.chunks.EXPECT().
		GetAssignment(gomock.Any(), "election-1", 2).
		Return(&model.ChunkAssignment{ElectionID: "election-1", ChunkIndex: 2, ItemIDs: []string{"b-1"}}, nil)
	m.items.EXPECT().
		ListByIDs(gomock.Any(), "election-1", []string{"b-1"}).
		Return([]*model.CipherItem{{ID: "b-1", Ciphertext: json.RawMessage(`{"ct":1}`)}}, nil)
	m.engine.EXPECT().
		TallyChunk(gomock.Any(), gomock.Any()).
		Return(&core.TallyChunkResult{EncryptedTally: json.RawMessage(`{"agg":1}`), BallotCount: 1}, nil)
	m.chunks.EXPECT().SaveTally(gomock.Any(), gomock.Any()).Return(true, nil)
	m.jobs.EXPECT().IncrementProcessed(gomock.Any(), "job-1").Return(&model.Job{ID: "job-1"}, nil)
	m.audit.EXPECT().
		RecordFinish(gomock.Any(), core.RecordChunkFinishParams{
			EntryID: 41,
			Outcome: model.ChunkOutcomeCompleted,
		}).
		Return(nil)

	ack := &fakeAcker{}
	r.processDelivery(context.Background(), chunkDelivery(t, ack, tallyMessage(0)))

	assert.Equal(t, 1, ack.acks)
}

func TestRunner_AuditFailureDoesNotBlockProcessing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, m := newTestRunner(t, ctrl, model.OperationTally)

	m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(activeJob(t, model.OperationTally), nil)
	m.audit.EXPECT().RecordStart(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("audit table gone"))
	m.chunks.EXPECT().
		GetAssignment(gomock.Any(), "election-1", 2).
		Return(&model.ChunkAssignment{ElectionID: "election-1", ChunkIndex: 2, ItemIDs: []string{"b-1"}}, nil)
	m.items.EXPECT().
		ListByIDs(gomock.Any(), "election-1", []string{"b-1"}).
		Return([]*model.CipherItem{{ID: "b-1", Ciphertext: json.RawMessage(`{"ct":1}`)}}, nil)
	m.engine.EXPECT().
		TallyChunk(gomock.Any(), gomock.Any()).
		Return(&core.TallyChunkResult{EncryptedTally: json.RawMessage(`{"agg":1}`), BallotCount: 1}, nil)
	m.chunks.EXPECT().SaveTally(gomock.Any(), gomock.Any()).Return(true, nil)
	m.jobs.EXPECT().IncrementProcessed(gomock.Any(), "job-1").Return(&model.Job{ID: "job-1"}, nil)
	// No RecordFinish: a zero entry id disables the matching finish.

	ack := &fakeAcker{}
	r.processDelivery(context.Background(), chunkDelivery(t, ack, tallyMessage(0)))

	assert.Equal(t, 1, ack.acks)
}

func TestRunner_IncrementAfterTerminalStatusIsBenign(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, m := newTestRunner(t, ctrl, model.OperationTally)
	allowAudit(m)

	m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(activeJob(t, model.OperationTally), nil)
	m.chunks.EXPECT().
		GetAssignment(gomock.Any(), "election-1", 2).
		Return(&model.ChunkAssignment{ElectionID: "election-1", ChunkIndex: 2, ItemIDs: []string{"b-1"}}, nil)
	m.items.EXPECT().
		ListByIDs(gomock.Any(), "election-1", []string{"b-1"}).
		Return([]*model.CipherItem{{ID: "b-1", Ciphertext: json.RawMessage(`{"ct":1}`)}}, nil)
	m.engine.EXPECT().
		TallyChunk(gomock.Any(), gomock.Any()).
		Return(&core.TallyChunkResult{EncryptedTally: json.RawMessage(`{"agg":1}`), BallotCount: 1}, nil)
	m.chunks.EXPECT().SaveTally(gomock.Any(), gomock.Any()).Return(true, nil)
	m.jobs.EXPECT().IncrementProcessed(gomock.Any(), "job-1").Return(nil, data.ErrJobNotActive)

	ack := &fakeAcker{}
	r.processDelivery(context.Background(), chunkDelivery(t, ack, tallyMessage(0)))

	// The chunk work took effect; a closed counter never turns it into a failure.
	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, ack.nacks)
}

// captureNotifier registers a single recording sink on a real notifier service.
func captureNotifier(captured *[]notify.JobFailurePayload) *failurenotifier.Service {
	return failurenotifier.NewService(failurenotifier.Options{
		Sinks: []failurenotifier.SinkRegistration{{
			Name: "capture",
			Sink: notify.SinkFunc(func(_ context.Context, p notify.JobFailurePayload) error {
				*captured = append(*captured, p)
				return nil
			}),
		}},
	})
}

func TestRunner_FailedSettleNotifies(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := newWorkerMocks(ctrl)
	var captured []notify.JobFailurePayload
	opts := m.options(model.OperationTally)
	opts.Notifier = captureNotifier(&captured)
	r, err := NewRunner(opts)
	require.NoError(t, err)
	allowAudit(m)

	m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(activeJob(t, model.OperationTally), nil)
	m.chunks.EXPECT().
		GetAssignment(gomock.Any(), "election-1", 2).
		Return(nil, data.ErrChunkNotFound)
	m.jobs.EXPECT().
		IncrementFailed(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.IncrementFailedParams) (*model.Job, error) {
			// This increment settles the job as failed.
			return &model.Job{
				ID:              "job-1",
				ElectionID:      "election-1",
				Operation:       model.OperationTally,
				Status:          model.JobStatusFailed,
				TotalChunks:     3,
				ProcessedChunks: 2,
				FailedChunks:    1,
				ErrorMessage:    &params.ErrorMsg,
			}, nil
		})

	ack := &fakeAcker{}
	r.processDelivery(context.Background(), chunkDelivery(t, ack, tallyMessage(0)))

	require.Len(t, captured, 1)
	assert.Equal(t, "job-1", captured[0].JobID)
	assert.Equal(t, "tally", captured[0].Operation)
	assert.Equal(t, "election-1", captured[0].ElectionID)
	assert.Equal(t, 1, captured[0].FailedChunks)
	assert.Equal(t, 3, captured[0].TotalChunks)
	assert.Contains(t, captured[0].Error, "no persisted assignment")
	require.Len(t, ack.nacks, 1)
	assert.False(t, ack.nacks[0])
}

func TestRunner_CompletedSettleDoesNotNotify(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := newWorkerMocks(ctrl)
	var captured []notify.JobFailurePayload
	opts := m.options(model.OperationTally)
	opts.Notifier = captureNotifier(&captured)
	r, err := NewRunner(opts)
	require.NoError(t, err)
	allowAudit(m)

	m.jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(activeJob(t, model.OperationTally), nil)
	m.chunks.EXPECT().
		GetAssignment(gomock.Any(), "election-1", 2).
		Return(&model.ChunkAssignment{ElectionID: "election-1", ChunkIndex: 2, ItemIDs: []string{"b-1"}}, nil)
	m.items.EXPECT().
		ListByIDs(gomock.Any(), "election-1", []string{"b-1"}).
		Return([]*model.CipherItem{{ID: "b-1", Ciphertext: json.RawMessage(`{"ct":1}`)}}, nil)
	m.engine.EXPECT().
		TallyChunk(gomock.Any(), gomock.Any()).
		Return(&core.TallyChunkResult{EncryptedTally: json.RawMessage(`{"agg":1}`), BallotCount: 1}, nil)
	m.chunks.EXPECT().SaveTally(gomock.Any(), gomock.Any()).Return(true, nil)
	m.jobs.EXPECT().
		IncrementProcessed(gomock.Any(), "job-1").
		Return(&model.Job{
			ID:              "job-1",
			Operation:       model.OperationTally,
			Status:          model.JobStatusCompleted,
			TotalChunks:     3,
			ProcessedChunks: 3,
		}, nil)

	ack := &fakeAcker{}
	r.processDelivery(context.Background(), chunkDelivery(t, ack, tallyMessage(0)))

	// Completions emit lifecycle metrics but never page anyone.
	assert.Empty(t, captured)
	assert.Equal(t, 1, ack.acks)
}

func TestRunner_Run(t *testing.T) {
	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		r, _ := newTestRunner(t, ctrl, model.OperationTally)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- r.Run(ctx) }()

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not stop after cancellation")
		}
	})

	t.Run("reports a closed delivery stream", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m := newWorkerMocks(ctrl)
		opts := m.options(model.OperationTally)
		deliveries := make(chan amqp091.Delivery)
		opts.Deliveries = deliveries

		r, err := NewRunner(opts)
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() { done <- r.Run(context.Background()) }()

		close(deliveries)
		select {
		case err := <-done:
			require.Error(t, err)
			assert.Contains(t, err.Error(), "delivery stream")
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not stop after the delivery stream closed")
		}
	})
}
