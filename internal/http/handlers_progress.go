package httpx

import (
	"errors"
	"net/http"

	"github.com/quorumworks/tallyd/internal/domain/model"
	"github.com/quorumworks/tallyd/internal/service"
)

const maxJobListLimit = 1000

// ProgressHandlers provides the read-only HTTP handlers polling clients use to
// follow jobs and fetch the aggregated election result.
type ProgressHandlers struct {
	Progress *service.ProgressService
	Combiner *service.CombinerService
}

// GetJob handles HTTP requests for the polling view of one job.
func (h *ProgressHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	progress, err := h.Progress.GetJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, serviceErrorParams("get_job_failed", err))
		return
	}
	WriteJSON(w, http.StatusOK, progress)
}

// GetJobChunks handles HTTP requests for a job's per-chunk drill-down.
func (h *ProgressHandlers) GetJobChunks(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	view, err := h.Progress.GetJobChunks(r.Context(), jobID)
	if err != nil {
		WriteError(w, serviceErrorParams("get_job_chunks_failed", err))
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// ListElectionJobs handles HTTP requests for an election's job history.
// Optional query params: status, operation, limit, offset.
func (h *ProgressHandlers) ListElectionJobs(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")
	if electionID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("election id is required")},
		)
		return
	}

	limit, offset := ParseLimitOffset(r, 50, maxJobListLimit)
	opts := model.JobListOptions{
		ElectionID: electionID,
		Status:     statusFilter(r),
		Operation:  operationFilter(r),
		Limit:      limit,
		Offset:     offset,
	}

	jobs, err := h.Progress.ListElectionJobs(r.Context(), opts)
	if err != nil {
		WriteError(w, serviceErrorParams("list_jobs_failed", err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":   jobs,
		"limit":  limit,
		"offset": offset,
	})
}

// ListActive handles HTTP requests for every queued or in-progress job.
func (h *ProgressHandlers) ListActive(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Progress.ListActive(r.Context())
	if err != nil {
		WriteError(w, serviceErrorParams("list_active_failed", err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// GetElectionResult handles HTTP requests for the aggregated plaintext tallies
// of an election. Partial aggregates are served with complete=false until
// every chunk has a combined result.
func (h *ProgressHandlers) GetElectionResult(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")
	if electionID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("election id is required")},
		)
		return
	}

	result, err := h.Combiner.AggregateElectionResult(r.Context(), electionID)
	if err != nil {
		WriteError(w, serviceErrorParams("get_result_failed", err))
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// Stats handles HTTP requests for per-status job counts of one operation type.
func (h *ProgressHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	op := model.OperationType(r.PathValue("type"))
	if op == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("operation type is required")},
		)
		return
	}

	stats, err := h.Progress.Stats(r.Context(), op)
	if err != nil {
		WriteError(w, serviceErrorParams("stats_failed", err))
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
