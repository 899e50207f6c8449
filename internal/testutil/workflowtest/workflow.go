// Package workflowtest wires the tally pipeline end to end for tests: real
// repositories over the test database, the orchestrator, the combiner, and a
// chunk worker pool, with an in-process queue standing in for the broker and
// an httptest server standing in for the crypto engine.
package workflowtest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/quorumworks/tallyd/config"
	"github.com/quorumworks/tallyd/internal/adapters/chunkworker"
	"github.com/quorumworks/tallyd/internal/adapters/engine"
	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/data"
	"github.com/quorumworks/tallyd/internal/domain/model"
	"github.com/quorumworks/tallyd/internal/service"
	"github.com/quorumworks/tallyd/internal/testutil"
)

// Engine endpoint paths, mirrored from the engine service contract.
const (
	TallyEndpoint       = "/tally/chunk"
	PartialEndpoint     = "/decrypt/partial"
	CompensatedEndpoint = "/decrypt/compensated"
	CombineEndpoint     = "/combine"
)

// stubAuthToken is the bearer token the harness client presents and the stub
// engine requires, so the auth header plumbing is covered on every call.
const stubAuthToken = "workflow-test-token"

// Options tunes the harness. Zero values get sensible test defaults.
type Options struct {
	// ChunkSize caps ballots per tally chunk. Small by default so a handful
	// of seeded ballots exercises multi-chunk planning.
	ChunkSize int

	// Concurrency is the worker goroutine count per pool.
	Concurrency int

	// MaxRetries is the transient republish budget per chunk. Defaults to
	// zero so retry behavior only appears when a test asks for it.
	MaxRetries int

	// QueueDepth bounds each operation's in-process queue.
	QueueDepth int

	// SettleTimeout bounds how long RunUntilSettled waits for a terminal
	// job status before dumping state and failing.
	SettleTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.ChunkSize < 1 {
		o.ChunkSize = 4
	}
	if o.Concurrency < 1 {
		o.Concurrency = 2
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.QueueDepth < 1 {
		o.QueueDepth = 64
	}
	if o.SettleTimeout <= 0 {
		o.SettleTimeout = 30 * time.Second
	}
}

// Harness holds every wired component. Fields are exported so tests can reach
// past the helpers when an assertion needs the raw repository or the queue.
type Harness struct {
	t  testutil.TestingTB
	db *sql.DB

	Jobs    *data.JobRepo
	Chunks  *data.ChunkRepo
	Items   *data.CipherItemRepo
	Shares  *data.ShareRepo
	Results *data.ResultRepo
	Audit   *data.AuditRepo

	Stub         *StubEngine
	Engine       *engine.Client
	Queue        *Queue
	Locks        *MemoryLocks
	Combiner     *service.CombinerService
	Orchestrator *service.OrchestratorService

	opts   Options
	logger *slog.Logger
}

// New wires a harness over the given test database.
func New(t testutil.TestingTB, db *sql.DB, opts Options) *Harness {
	t.Helper()
	opts.applyDefaults()

	logger := slog.New(slog.NewTextHandler(logWriter{t: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	stub := NewStubEngine()
	eng, err := engine.NewClient(engine.Config{
		BaseURL:   stub.URL(),
		AuthToken: stubAuthToken,
		Timeout:   10 * time.Second,
	})
	if err != nil {
		stub.Close()
		t.Fatalf("build engine client: %v", err)
	}

	h := &Harness{
		t:       t,
		db:      db,
		Jobs:    data.NewJobRepo(db, data.RepoConfig{Logger: logger}),
		Chunks:  &data.ChunkRepo{DB: db},
		Items:   &data.CipherItemRepo{DB: db},
		Shares:  &data.ShareRepo{DB: db},
		Results: &data.ResultRepo{DB: db},
		Audit:   data.NewAuditRepo(db, nil),
		Stub:    stub,
		Engine:  eng,
		Queue:   NewQueue(opts.QueueDepth),
		Locks:   NewMemoryLocks(),
		opts:    opts,
		logger:  logger,
	}

	h.Combiner = service.MustNewCombinerService(service.CombinerOptions{
		Shares:  h.Shares,
		Results: h.Results,
		Chunks:  h.Chunks,
		Engine:  h.Engine,
		Logger:  logger,
	})
	h.Orchestrator = service.MustNewOrchestratorService(service.OrchestratorOptions{
		Jobs:      h.Jobs,
		Chunks:    h.Chunks,
		Items:     h.Items,
		Locks:     h.Locks,
		Publisher: h.Queue,
		Config: config.OrchestratorConfig{
			ChunkSize:  opts.ChunkSize,
			LockHolder: "workflow-harness",
		},
		Logger: logger,
	})

	return h
}

// Close shuts down the stub engine. The database belongs to the caller.
func (h *Harness) Close() {
	h.Stub.Close()
}

// WithHarness sets up a harness over an auto-provisioned test database, runs
// fn, and tears everything down. Skips when no test database is reachable.
func WithHarness(t testutil.TestingTB, opts Options, fn func(ctx context.Context, h *Harness)) {
	t.Helper()

	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		h := New(t, db, opts)
		defer h.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		fn(ctx, h)
	})
}

// SeedBallots inserts n encrypted ballots for the election and returns their
// ids in cast order. Ids embed the election so parallel tests sharing a
// database never collide.
func (h *Harness) SeedBallots(ctx context.Context, electionID string, n int) []string {
	h.t.Helper()

	cast := time.Now().UTC().Add(-time.Duration(n) * time.Second)
	items := make([]*model.CipherItem, 0, n)
	ids := make([]string, 0, n)
	for i := range n {
		id := fmt.Sprintf("%s-ballot-%04d", electionID, i)
		items = append(items, &model.CipherItem{
			ID:         id,
			ElectionID: electionID,
			Ciphertext: json.RawMessage(fmt.Sprintf(`{"alpha":"a%04d","beta":"b%04d"}`, i, i)),
			CastAt:     cast.Add(time.Duration(i) * time.Second),
		})
		ids = append(ids, id)
	}

	inserted, err := h.Items.BulkInsert(ctx, items)
	if err != nil {
		h.t.Fatalf("seed %d ballots for %s: %v", n, electionID, err)
	}
	if inserted != n {
		h.t.Fatalf("seeded %d of %d ballots for %s", inserted, n, electionID)
	}
	return ids
}

// Initiate starts a job through the orchestrator and fails the test on error.
// The params builder in testutil supplies well-formed metadata per operation.
func (h *Harness) Initiate(ctx context.Context, params core.CreateJobParams) *model.Job {
	h.t.Helper()

	job, err := h.TryInitiate(ctx, params)
	if err != nil {
		h.t.Fatalf("initiate %s for %s: %v", params.Operation, params.ElectionID, err)
	}
	return job
}

// TryInitiate starts a job and returns the orchestrator's error verbatim, for
// tests asserting rejection paths.
func (h *Harness) TryInitiate(ctx context.Context, params core.CreateJobParams) (*model.Job, error) {
	return h.Orchestrator.Initiate(ctx, &service.InitiateRequest{
		ElectionID: params.ElectionID,
		Operation:  params.Operation,
		CreatedBy:  params.CreatedBy,
		Metadata:   params.Metadata,
	})
}

// ReleaseOperationLock force-releases an initiation lock the way an operator
// would between phases. Successful initiations leave the lock to expire with
// its TTL, so back-to-back jobs on the same (election, operation) need this.
func (h *Harness) ReleaseOperationLock(electionID string, op model.OperationType) {
	h.Locks.ForceRelease(model.LockKey{ElectionID: electionID, Operation: op})
}

// RunnerFor builds a worker pool consuming the harness queue for one operation.
func (h *Harness) RunnerFor(op model.OperationType) *chunkworker.Runner {
	h.t.Helper()

	runner, err := chunkworker.NewRunner(chunkworker.RunnerOptions{
		Operation:   op,
		Deliveries:  h.Queue.Deliveries(op),
		Jobs:        h.Jobs,
		Chunks:      h.Chunks,
		Items:       h.Items,
		Shares:      h.Shares,
		Results:     h.Results,
		Engine:      h.Engine,
		Combiner:    h.Combiner,
		Publisher:   h.Queue,
		Audit:       h.Audit,
		Logger:      h.logger,
		Concurrency: h.opts.Concurrency,
		MaxRetries:  h.opts.MaxRetries,
		WorkerID:    "workflow-harness/" + string(op),
	})
	if err != nil {
		h.t.Fatalf("build %s runner: %v", op, err)
	}
	return runner
}

// RunUntilSettled drives one operation's worker pool until the job reaches a
// terminal status and every published delivery has settled, then stops the
// pool and returns the settled row. Waiting for settlement keeps assertions
// deterministic: inline combines and audit writes land before the ack, so a
// drained queue means the database is quiet.
func (h *Harness) RunUntilSettled(ctx context.Context, op model.OperationType, jobID string) *model.Job {
	h.t.Helper()

	runner := h.RunnerFor(op)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- runner.Run(runCtx) }()

	stop := func() {
		cancel()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			h.t.Fatalf("worker pool for %s exited: %v", op, err)
		}
	}

	deadline := time.Now().Add(h.opts.SettleTimeout)
	var settled *model.Job
	for {
		job, err := h.Jobs.GetByID(ctx, jobID)
		if err != nil {
			stop()
			h.t.Fatalf("load job %s: %v", jobID, err)
		}
		if job.Status.Terminal() && h.Queue.Quiet() {
			settled = job
			break
		}
		if time.Now().After(deadline) {
			stop()
			testutil.LogJobStates(h.t, h.db, "job never settled")
			h.t.Fatalf("job %s still %s after %s (published=%d settled=%d)",
				jobID, job.Status, h.opts.SettleTimeout, h.Queue.Published(), h.Queue.Acks.Settled())
		}
		time.Sleep(20 * time.Millisecond)
	}

	stop()
	return settled
}

// logWriter forwards component logs to the test log, so they surface only
// under -v and attach to the test that produced them.
type logWriter struct {
	t testutil.TestingTB
}

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", bytes.TrimRight(p, "\n"))
	return len(p), nil
}

// Queue is an in-process stand-in for the broker. PublishChunk validates and
// encodes exactly like the AMQP publisher, then hands the message back to the
// worker pool as a synthetic delivery on the operation's channel. Requeue
// nacks are counted but not redelivered.
type Queue struct {
	Acks *AckRecorder

	published atomic.Int64
	seq       atomic.Uint64
	chans     map[model.OperationType]chan amqp091.Delivery
}

// NewQueue builds a queue with one buffered channel per operation type.
func NewQueue(depth int) *Queue {
	if depth < 1 {
		depth = 64
	}
	chans := make(map[model.OperationType]chan amqp091.Delivery, len(model.AllOperationTypes()))
	for _, op := range model.AllOperationTypes() {
		chans[op] = make(chan amqp091.Delivery, depth)
	}
	return &Queue{
		Acks:  &AckRecorder{},
		chans: chans,
	}
}

// PublishChunk enqueues a synthetic delivery for the message's operation.
// A full channel fails fast instead of blocking the publishing goroutine.
func (q *Queue) PublishChunk(_ context.Context, msg *model.ChunkMessage) error {
	if msg == nil {
		return errors.New("chunk message is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	body, err := msg.Encode()
	if err != nil {
		return err
	}
	ch, ok := q.chans[msg.Operation]
	if !ok {
		return fmt.Errorf("no queue for operation %q", msg.Operation)
	}

	d := amqp091.Delivery{
		Acknowledger: q.Acks,
		DeliveryTag:  q.seq.Add(1),
		ContentType:  "application/json",
		Timestamp:    time.Now(),
		Body:         body,
	}
	select {
	case ch <- d:
		q.published.Add(1)
		return nil
	default:
		return fmt.Errorf("queue for %s is full", msg.Operation)
	}
}

// Deliveries exposes the consumer side of one operation's queue.
func (q *Queue) Deliveries(op model.OperationType) <-chan amqp091.Delivery {
	return q.chans[op]
}

// Published reports how many deliveries were enqueued, republishes included.
func (q *Queue) Published() int {
	return int(q.published.Load())
}

// Quiet reports whether every published delivery has been settled.
func (q *Queue) Quiet() bool {
	return q.Acks.Settled() == q.Published()
}

var _ core.ChunkPublisher = (*Queue)(nil)

// AckRecorder satisfies amqp091.Acknowledger so synthetic deliveries can be
// settled without a broker connection. Counters let tests assert that every
// delivery ended in exactly one settlement of the expected kind.
type AckRecorder struct {
	mu           sync.Mutex
	acked        int
	requeued     int
	deadLettered int
}

// Ack records a successful settlement.
func (a *AckRecorder) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked++
	return nil
}

// Nack records a negative settlement, split by requeue intent.
func (a *AckRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeued++
	} else {
		a.deadLettered++
	}
	return nil
}

// Reject records a negative settlement, split by requeue intent.
func (a *AckRecorder) Reject(_ uint64, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeued++
	} else {
		a.deadLettered++
	}
	return nil
}

// Acked reports positively settled deliveries.
func (a *AckRecorder) Acked() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acked
}

// Requeued reports nacks that asked for redelivery.
func (a *AckRecorder) Requeued() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requeued
}

// DeadLettered reports nacks that refused redelivery.
func (a *AckRecorder) DeadLettered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deadLettered
}

// Settled reports all settlements regardless of kind.
func (a *AckRecorder) Settled() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acked + a.requeued + a.deadLettered
}

var _ amqp091.Acknowledger = (*AckRecorder)(nil)

// MemoryLocks is an in-memory lock manager with the same observable behavior
// as the Redis one: NX-with-TTL acquire, compare-and-delete release, peek.
type MemoryLocks struct {
	mu    sync.Mutex
	locks map[model.LockKey]memoryLock
}

type memoryLock struct {
	token    string
	holder   string
	acquired time.Time
	expires  time.Time
}

// NewMemoryLocks builds an empty lock table.
func NewMemoryLocks() *MemoryLocks {
	return &MemoryLocks{locks: make(map[model.LockKey]memoryLock)}
}

// Acquire takes the lock unless a live entry exists. The conflict error names
// the current holder, matching the Redis manager's message shape.
func (m *MemoryLocks) Acquire(
	_ context.Context,
	key model.LockKey,
	params core.AcquireLockParams,
) (string, error) {
	if key.ElectionID == "" {
		return "", errors.New("lock key election id cannot be empty")
	}
	if !key.Operation.Valid() {
		return "", fmt.Errorf("invalid lock key operation type: %s", key.Operation)
	}
	if params.Holder == "" {
		return "", errors.New("lock holder cannot be empty")
	}
	if params.TTL <= 0 {
		return "", errors.New("lock ttl must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if l, ok := m.locks[key]; ok && now.Before(l.expires) {
		return "", fmt.Errorf("%w by %s since %s",
			core.ErrAlreadyLocked, l.holder, l.acquired.Format(time.RFC3339))
	}

	l := memoryLock{
		token:    uuid.NewString(),
		holder:   params.Holder,
		acquired: now,
		expires:  now.Add(params.TTL),
	}
	m.locks[key] = l
	return l.token, nil
}

// Release frees the lock only when the token matches a live entry.
func (m *MemoryLocks) Release(_ context.Context, key model.LockKey, token string) error {
	if token == "" {
		return core.ErrNotLockHolder
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[key]
	if !ok || time.Now().UTC().After(l.expires) {
		delete(m.locks, key)
		return core.ErrNotLockHolder
	}
	if l.token != token {
		return core.ErrNotLockHolder
	}
	delete(m.locks, key)
	return nil
}

// Peek reports the current holder, or nil when the lock is free or expired.
func (m *MemoryLocks) Peek(_ context.Context, key model.LockKey) (*model.LockStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[key]
	if !ok || time.Now().UTC().After(l.expires) {
		return nil, nil
	}
	return &model.LockStatus{Holder: l.holder, AcquiredAt: l.acquired}, nil
}

// ForceRelease drops the lock regardless of holder, like the admin CLI does.
// Returns whether an entry existed.
func (m *MemoryLocks) ForceRelease(key model.LockKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.locks[key]
	delete(m.locks, key)
	return ok
}

var _ core.LockManager = (*MemoryLocks)(nil)

// engineEnvelope mirrors the engine service's response wrapper.
type engineEnvelope struct {
	Status string `json:"status"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// rejection is a queued envelope-level error for one endpoint.
type rejection struct {
	reason    string
	remaining int
}

// StubEngine serves the four chunk endpoints with deterministic payloads
// derived from the request, so persisted artifacts can be asserted exactly.
// Tests can queue transient failures (503) or final rejections (error
// envelope) per endpoint to drive the worker's retry classification.
type StubEngine struct {
	ts *httptest.Server

	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int
	rejects  map[string]rejection
}

// NewStubEngine starts the stub server.
func NewStubEngine() *StubEngine {
	s := &StubEngine{
		calls:    make(map[string]int),
		failures: make(map[string]int),
		rejects:  make(map[string]rejection),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+TallyEndpoint, handleEngine(s, TallyEndpoint, tallyResult))
	mux.HandleFunc("POST "+PartialEndpoint, handleEngine(s, PartialEndpoint, partialResult))
	mux.HandleFunc("POST "+CompensatedEndpoint, handleEngine(s, CompensatedEndpoint, compensatedResult))
	mux.HandleFunc("POST "+CombineEndpoint, handleEngine(s, CombineEndpoint, combineResult))
	s.ts = httptest.NewServer(mux)
	return s
}

// URL returns the stub's base URL.
func (s *StubEngine) URL() string {
	return s.ts.URL
}

// Close stops the stub server.
func (s *StubEngine) Close() {
	s.ts.Close()
}

// FailNext makes the next n calls to the endpoint answer 503, which the
// engine client classifies as transient.
func (s *StubEngine) FailNext(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = n
}

// RejectNext makes the next n calls to the endpoint answer an error envelope
// with the given reason, which the engine client classifies as final.
func (s *StubEngine) RejectNext(path, reason string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects[path] = rejection{reason: reason, remaining: n}
}

// Calls reports how many requests reached the endpoint, failures included.
func (s *StubEngine) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// next records the call and consumes one queued failure or rejection.
func (s *StubEngine) next(path string) (fail bool, reject string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[path]++
	if s.failures[path] > 0 {
		s.failures[path]--
		return true, ""
	}
	if r := s.rejects[path]; r.remaining > 0 {
		r.remaining--
		s.rejects[path] = r
		return false, r.reason
	}
	return false, ""
}

func handleEngine[Req any](
	s *StubEngine,
	path string,
	build func(req *Req) any,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+stubAuthToken {
			http.Error(w, "missing or invalid bearer token", http.StatusUnauthorized)
			return
		}

		fail, reject := s.next(path)
		if fail {
			http.Error(w, "engine overloaded", http.StatusServiceUnavailable)
			return
		}
		// Rejections ride a 200 so they exercise the client's envelope branch
		// rather than its status-code classification.
		if reject != "" {
			writeEngineJSON(w, http.StatusOK, engineEnvelope{
				Status: "error",
				Error:  reject,
			})
			return
		}

		var req Req
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		writeEngineJSON(w, http.StatusOK, engineEnvelope{
			Status: "ok",
			Result: build(&req),
		})
	}
}

func writeEngineJSON(w http.ResponseWriter, status int, env engineEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // a truncated body surfaces as a decode error in the client
	_ = json.NewEncoder(w).Encode(env)
}

func tallyResult(req *core.TallyChunkRequest) any {
	return core.TallyChunkResult{
		EncryptedTally: rawf(`{"aggregate":"%s/%d"}`, req.ElectionID, req.ChunkIndex),
		BallotCount:    len(req.Ciphertexts),
	}
}

func partialResult(req *core.PartialShareRequest) any {
	return core.ShareResult{
		Share: rawf(`{"share":"%s/%s/%d"}`, req.GuardianID, req.ElectionID, req.ChunkIndex),
		Proof: rawf(`{"proof":"chaum-pedersen/%s/%d"}`, req.GuardianID, req.ChunkIndex),
	}
}

func compensatedResult(req *core.CompensatedShareRequest) any {
	return core.ShareResult{
		Share: rawf(`{"share":"%s-for-%s/%s/%d"}`,
			req.GuardianID, req.MissingGuardianID, req.ElectionID, req.ChunkIndex),
		Proof: rawf(`{"proof":"compensated/%s/%d"}`, req.GuardianID, req.ChunkIndex),
	}
}

func combineResult(req *core.CombineRequest) any {
	return core.CombineResult{
		Plaintext: rawf(`{"chunk":%d,"quorum":%d,"tallied":true}`, req.ChunkIndex, req.Quorum),
	}
}

func rawf(format string, args ...any) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(format, args...))
}
