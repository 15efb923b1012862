package api

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strconv"

	"emptyfolder-cleaner/internal/cleanup"
	"emptyfolder-cleaner/internal/database"
	"emptyfolder-cleaner/internal/session"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// ErrorResponse represents error message
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ScanRequest starts a scan of Path.
type ScanRequest struct {
	Path string `json:"path"`
}

// DeleteRequest removes one hierarchy from the current results.
type DeleteRequest struct {
	Path           string `json:"path"`
	AllowElevation bool   `json:"allow_elevation"`
}

// DeleteAllRequest removes every hierarchy in the current results.
type DeleteAllRequest struct {
	AskForElevation bool `json:"ask_for_elevation"`
}

// HistoryResponse is one page of the deletion history.
type HistoryResponse struct {
	Records []database.DeletionRecord `json:"records"`
	Total   int                       `json:"total"`
	Limit   int                       `json:"limit"`
	Offset  int                       `json:"offset"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	respondJSON(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.session.Snapshot(), http.StatusOK)
}

func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		respondError(w, "path is required", http.StatusBadRequest)
		return
	}

	if err := s.session.Scan(r.Context(), req.Path); err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, s.session.Snapshot(), http.StatusAccepted)
}

func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		respondError(w, "path is required", http.StatusBadRequest)
		return
	}

	if err := s.session.DeleteOne(r.Context(), req.Path, req.AllowElevation); err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, s.session.Snapshot(), http.StatusOK)
}

func (s *Server) deleteAllHandler(w http.ResponseWriter, r *http.Request) {
	var req DeleteAllRequest
	if !decode(w, r, &req) {
		return
	}

	if err := s.session.StartDeleteAll(r.Context(), req.AskForElevation); err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, s.session.Snapshot(), http.StatusAccepted)
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, "deletion history is not enabled", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), defaultHistoryLimit)
	if err != nil || limit <= 0 || limit > maxHistoryLimit {
		respondError(w, "limit must be between 1 and 1000", http.StatusBadRequest)
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		respondError(w, "offset must be a non-negative integer", http.StatusBadRequest)
		return
	}

	var (
		records []database.DeletionRecord
		total   int
	)
	if action := q.Get("action"); action != "" {
		records, total, err = s.history.GetDeletionsByActionPaginated(action, limit, offset)
	} else {
		records, total, err = s.history.GetRecentDeletionsPaginated(limit, offset)
	}
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		respondError(w, "failed to query deletion history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []database.DeletionRecord{}
	}

	respondJSON(w, HistoryResponse{Records: records, Total: total, Limit: limit, Offset: offset}, http.StatusOK)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, "no such endpoint", http.StatusNotFound)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, "method not allowed", http.StatusMethodNotAllowed)
}

// statusFor maps session and cleanup errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, session.ErrRootNotAllowed),
		errors.Is(err, cleanup.ErrPermissionDenied),
		errors.Is(err, cleanup.ErrElevationFailed):
		return http.StatusForbidden
	case errors.Is(err, cleanup.ErrUnsafePath):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrClosed), errors.Is(err, session.ErrStaleMount):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v. An empty body leaves v at its zero value.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, "request body too large", http.StatusRequestEntityTooLarge)
		return false
	}
	respondError(w, "invalid request body", http.StatusBadRequest)
	return false
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    status,
		Message: message,
	}, status)
}
