package httpx

import (
	"errors"
	"net/http"

	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/data"
	apperrors "github.com/quorumworks/tallyd/internal/errors"
)

// serviceErrorParams maps a service error to its response. Initiation
// preconditions read as 409, validation as 422, missing resources as 404, and
// an unreachable dependency as 503; anything unclassified falls back to a 500
// under the handler's own error code.
func serviceErrorParams(fallbackCode string, err error) ErrorParams {
	switch {
	case errors.Is(err, data.ErrDuplicateActiveJob):
		return ErrorParams{Code: http.StatusConflict, ErrCode: "duplicate_active_job", Err: err}
	case errors.Is(err, core.ErrAlreadyLocked):
		return ErrorParams{Code: http.StatusConflict, ErrCode: "operation_locked", Err: err}
	case apperrors.IsConflict(err):
		return ErrorParams{Code: http.StatusConflict, ErrCode: "conflict", Err: err}
	case apperrors.IsValidation(err):
		return ErrorParams{Code: http.StatusUnprocessableEntity, ErrCode: "validation_failed", Err: err}
	case errors.Is(err, data.ErrJobNotFound):
		return ErrorParams{Code: http.StatusNotFound, ErrCode: "job_not_found", Err: err}
	case apperrors.IsNotFound(err):
		return ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: err}
	case apperrors.IsTransient(err):
		return ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "dependency_unavailable", Err: err}
	default:
		return ErrorParams{Code: http.StatusInternalServerError, ErrCode: fallbackCode, Err: err}
	}
}
