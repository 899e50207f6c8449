package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/quorumworks/tallyd/config"
	"github.com/quorumworks/tallyd/internal/domain/model"
	"github.com/quorumworks/tallyd/internal/mocks"
	"github.com/quorumworks/tallyd/internal/service"
)

type routerMocks struct {
	jobs  *mocks.MockJobRepository
	audit *mocks.MockAuditRepository
}

func newTestRouter(t *testing.T) (http.Handler, routerMocks, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)

	jobs := mocks.NewMockJobRepository(ctrl)
	audit := mocks.NewMockAuditRepository(ctrl)

	orchestrator := service.MustNewOrchestratorService(service.OrchestratorOptions{
		Jobs:      jobs,
		Chunks:    mocks.NewMockChunkRepository(ctrl),
		Items:     mocks.NewMockCipherItemRepository(ctrl),
		Locks:     mocks.NewMockLockManager(ctrl),
		Publisher: mocks.NewMockChunkPublisher(ctrl),
		Config:    config.OrchestratorConfig{ChunkSize: 100, LockTTL: time.Minute, LockHolder: "router-test"},
	})
	progress := service.MustNewProgressService(service.ProgressOptions{
		Jobs:  jobs,
		Audit: audit,
	})
	combiner := service.MustNewCombinerService(service.CombinerOptions{
		Shares:  mocks.NewMockShareRepository(ctrl),
		Results: mocks.NewMockResultRepository(ctrl),
		Chunks:  mocks.NewMockChunkRepository(ctrl),
		Engine:  mocks.NewMockCryptoEngine(ctrl),
	})

	router := NewRouter(RouterServices{
		Orchestrator: orchestrator,
		Progress:     progress,
		Combiner:     combiner,
	})
	return router, routerMocks{jobs: jobs, audit: audit}, ctrl
}

func TestRouterHealthz(t *testing.T) {
	router, _, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

// The literal /api/jobs/active segment must win over the /api/jobs/{id}
// wildcard; a job id "active" would otherwise shadow the listing.
func TestRouterActiveJobsPrecedence(t *testing.T) {
	router, m, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	m.jobs.EXPECT().ListActive(gomock.Any()).Return([]*model.Job{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/active", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jobs":[]}`, rec.Body.String())
}

func TestRouterJobByIDUsesPathValue(t *testing.T) {
	router, m, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	m.jobs.EXPECT().GetByID(gomock.Any(), "job-42").
		Return(&model.Job{ID: "job-42", Status: model.JobStatusCompleted, TotalChunks: 1, ProcessedChunks: 1}, nil)
	m.audit.EXPECT().TimingStats(gomock.Any(), "job-42").
		Return(&model.ChunkTimingStats{Attempts: 1, Completed: 1}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/job-42", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"job-42"`)
}

func TestRouterMethodNotAllowed(t *testing.T) {
	router, _, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/jobs/active", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouterUnknownPath(t *testing.T) {
	router, _, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
