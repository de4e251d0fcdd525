package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/busmap-core/internal/audit"
)

// handleListAudit returns register writes, most recent first.
//
// Query parameters: record, source, failed=true, limit (default 50, max
// 200), offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Record: q.Get("record"),
		Source: q.Get("source"),
	}
	if v := q.Get("failed"); v != "" {
		failed, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "failed must be a boolean")
			return
		}
		filter.FailedOnly = failed
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list register writes", "error", err)
		writeInternalError(w, "failed to list register writes")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
