// Package httpx provides HTTP handlers and utilities for the tallyd orchestration API.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/quorumworks/tallyd/internal/domain/model"
	"github.com/quorumworks/tallyd/internal/service"
)

// OperationHandlers provides the HTTP handlers that initiate jobs. Every
// endpoint resolves to one Initiate call; the four routes exist so operation
// semantics live in the URL rather than in a request field.
type OperationHandlers struct {
	Orchestrator *service.OrchestratorService
	Logger       *slog.Logger
}

// initiateBody carries the cryptographic context for a job. The decryption
// endpoints additionally require the guardian fields; ValidateFor rejects
// bodies that miss them before anything is enqueued.
type initiateBody struct {
	CreatedBy         string          `json:"created_by"`
	Quorum            int             `json:"quorum"`
	GuardianCount     int             `json:"guardian_count"`
	GuardianID        string          `json:"guardian_id,omitempty"`
	MissingGuardianID string          `json:"missing_guardian_id,omitempty"`
	PublicMaterial    json.RawMessage `json:"public_material,omitempty"`
	ManifestHash      string          `json:"manifest_hash,omitempty"`
}

// InitiateTally handles HTTP requests to start a homomorphic tally job.
func (h *OperationHandlers) InitiateTally(w http.ResponseWriter, r *http.Request) {
	h.initiate(w, r, model.OperationTally)
}

// InitiatePartialDecryption handles HTTP requests to start a partial decryption job.
func (h *OperationHandlers) InitiatePartialDecryption(w http.ResponseWriter, r *http.Request) {
	h.initiate(w, r, model.OperationPartialDecryption)
}

// InitiateCompensatedDecryption handles HTTP requests to start a compensated
// decryption job on behalf of a missing guardian.
func (h *OperationHandlers) InitiateCompensatedDecryption(w http.ResponseWriter, r *http.Request) {
	h.initiate(w, r, model.OperationCompensatedDecryption)
}

// InitiateCombine handles HTTP requests to start an explicit combine job.
func (h *OperationHandlers) InitiateCombine(w http.ResponseWriter, r *http.Request) {
	h.initiate(w, r, model.OperationCombine)
}

// initiate decodes the shared body shape and calls the orchestrator. A 202
// means the job row exists and its chunk messages are published; chunks
// process asynchronously, so callers poll the progress surface from there.
func (h *OperationHandlers) initiate(w http.ResponseWriter, r *http.Request, op model.OperationType) {
	electionID := r.PathValue("id")
	if electionID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("election id is required")},
		)
		return
	}

	var body initiateBody
	if !DecodeJSON(w, r, &body) {
		return
	}
	createdBy := body.CreatedBy
	if createdBy == "" {
		createdBy = "api"
	}

	job, err := h.Orchestrator.Initiate(r.Context(), &service.InitiateRequest{
		ElectionID: electionID,
		Operation:  op,
		CreatedBy:  createdBy,
		Metadata: model.JobMetadata{
			Quorum:            body.Quorum,
			GuardianCount:     body.GuardianCount,
			GuardianID:        body.GuardianID,
			MissingGuardianID: body.MissingGuardianID,
			PublicMaterial:    body.PublicMaterial,
			ManifestHash:      body.ManifestHash,
		},
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.WarnContext(r.Context(), "initiation rejected",
				"election_id", electionID, "operation", op, "error", err)
		}
		WriteError(w, serviceErrorParams("initiate_failed", err))
		return
	}

	WriteJSON(w, http.StatusAccepted, job)
}
