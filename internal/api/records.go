package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/busmap-core/internal/record"
)

// writeRecordRequest is the body of PUT /records/{name}.
type writeRecordRequest struct {
	Value *int64 `json:"value"`
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	kind := record.Kind(r.URL.Query().Get("kind"))

	records := s.records.List()
	out := make([]record.State, 0, len(records))
	for _, rec := range records {
		if kind != "" && rec.Config().Kind != kind {
			continue
		}
		out = append(out, rec.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": out,
		"count":   len(out),
	})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupRecord(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec.Snapshot())
}

// handleWriteRecord writes an output record. The response is the record
// state after the write.
func (s *Server) handleWriteRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupRecord(w, r)
	if !ok {
		return
	}

	var req writeRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "value is required")
		return
	}

	source := "api"
	if claims := claimsFromContext(r.Context()); claims != nil {
		source = "api:" + claims.Subject
	}

	if err := rec.Write(*req.Value, source); err != nil {
		s.writeRecordError(w, rec, err)
		return
	}
	s.report(r, rec)
	writeJSON(w, http.StatusOK, rec.Snapshot())
}

// handleProcessRecord runs one processing cycle on demand.
func (s *Server) handleProcessRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupRecord(w, r)
	if !ok {
		return
	}
	if err := rec.Process(); err != nil {
		s.report(r, rec)
		s.writeRecordError(w, rec, err)
		return
	}
	s.report(r, rec)
	writeJSON(w, http.StatusOK, rec.Snapshot())
}

func (s *Server) lookupRecord(w http.ResponseWriter, r *http.Request) (*record.Record, bool) {
	name := chi.URLParam(r, "name")
	rec, err := s.records.Get(name)
	if err != nil {
		writeNotFound(w, "record not found: "+name)
		return nil, false
	}
	return rec, true
}

func (s *Server) report(r *http.Request, rec *record.Record) {
	if s.reporter != nil {
		s.reporter.Report(r.Context(), rec)
	}
}

func (s *Server) writeRecordError(w http.ResponseWriter, rec *record.Record, err error) {
	switch {
	case errors.Is(err, record.ErrNotOutput):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, record.ErrNotBound):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, record.ErrWriteFailed), errors.Is(err, record.ErrReadFailed):
		s.logger.Warn("record I/O failed", "record", rec.Name(), "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeBusError, err.Error())
	default:
		s.logger.Error("record operation failed", "record", rec.Name(), "error", err)
		writeInternalError(w, "record operation failed")
	}
}
