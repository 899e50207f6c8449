package httpx

import (
	"log/slog"
	"net/http"

	"github.com/quorumworks/tallyd/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Orchestrator *service.OrchestratorService
	Progress     *service.ProgressService
	Combiner     *service.CombinerService
	Logger       *slog.Logger // Logger for handler errors (optional)
}

// NewRouter creates and configures the HTTP router. The operations surface is
// the only mutation path; everything under the progress surface is read-only.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	operationHandlers := &OperationHandlers{
		Orchestrator: services.Orchestrator,
		Logger:       services.Logger,
	}
	progressHandlers := &ProgressHandlers{
		Progress: services.Progress,
		Combiner: services.Combiner,
	}

	registerOperationRoutes(mux, operationHandlers)
	registerProgressRoutes(mux, progressHandlers)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}

func registerOperationRoutes(mux *http.ServeMux, h *OperationHandlers) {
	mux.HandleFunc("POST /api/elections/{id}/tally", h.InitiateTally)
	mux.HandleFunc("POST /api/elections/{id}/decrypt/partial", h.InitiatePartialDecryption)
	mux.HandleFunc("POST /api/elections/{id}/decrypt/compensated", h.InitiateCompensatedDecryption)
	mux.HandleFunc("POST /api/elections/{id}/combine", h.InitiateCombine)
}

func registerProgressRoutes(mux *http.ServeMux, h *ProgressHandlers) {
	mux.HandleFunc("GET /api/jobs/active", h.ListActive)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /api/jobs/{id}/chunks", h.GetJobChunks)
	mux.HandleFunc("GET /api/elections/{id}/jobs", h.ListElectionJobs)
	mux.HandleFunc("GET /api/elections/{id}/result", h.GetElectionResult)
	mux.HandleFunc("GET /api/operations/{type}/stats", h.Stats)
}
