package httpx

import (
	"net/http"
	"strconv"

	"github.com/quorumworks/tallyd/internal/domain/model"
)

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// ParseLimitOffset parses common pagination params and clamps to sane bounds.
// - defLimit: default limit when not specified
// - maxLimit: maximum allowed limit (values > maxLimit are clamped to maxLimit).
func ParseLimitOffset(r *http.Request, defLimit, maxLimit int) (int, int) {
	// Defensive: ensure maxLimit is at least 1 to avoid clamping to 0 or negatives
	if maxLimit < 1 {
		maxLimit = 1
	}

	lim := parseIntQuery(r, "limit", defLimit)
	off := parseIntQuery(r, "offset", 0)
	if lim < 1 {
		lim = 1
	}
	if lim > maxLimit {
		lim = maxLimit
	}
	if off < 0 {
		off = 0
	}
	return lim, off
}

// statusFilter reads the optional status query param. The raw value is passed
// through so the service layer rejects unknown statuses as validation errors
// instead of them silently matching nothing.
func statusFilter(r *http.Request) *model.JobStatus {
	if v := r.URL.Query().Get("status"); v != "" {
		s := model.JobStatus(v)
		return &s
	}
	return nil
}

// operationFilter reads the optional operation query param.
func operationFilter(r *http.Request) *model.OperationType {
	if v := r.URL.Query().Get("operation"); v != "" {
		op := model.OperationType(v)
		return &op
	}
	return nil
}
