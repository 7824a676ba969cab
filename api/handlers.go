/*
handlers.go - HTTP API handlers for the price quote service

PURPOSE:
  Exposes the import pipeline and range queries via REST API. Handles HTTP
  request/response and JSON serialization, and delegates to quotes.Service.

ENDPOINTS:
  POST   /api/quotes/import?path=<file>        Import a JSON file from disk
  GET    /api/quotes/period?start=&end=        Prices between two months
  GET    /api/quotes/imports?source=&file=&limit=
                                               Import audit history
  GET    /api/quotes/ping                      Liveness

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Missing parameters, malformed records, unparsable periods
  - 404: Import file not found
  - 409: Conflicting concurrent write
  - 500: Internal errors

SEE ALSO:
  - dto.go: Response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/warp/quote-engine/period"
	"github.com/warp/quote-engine/quotes"
	"github.com/warp/quote-engine/store"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *quotes.Service
}

// NewHandler creates a new handler around the given service.
func NewHandler(svc *quotes.Service) *Handler {
	return &Handler{Service: svc}
}

// =============================================================================
// QUOTE HANDLERS
// =============================================================================

// Import reconciles the file named by the path query parameter.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "Query parameter path is required", nil)
		return
	}

	run, err := h.Service.Import(r.Context(), path)
	if err != nil {
		log.Printf("[API] import %s failed: %v", path, err)
		var recErr *quotes.RecordError
		switch {
		case errors.Is(err, os.ErrNotExist):
			writeError(w, http.StatusNotFound, "Import file not found", err)
		case errors.Is(err, quotes.ErrInvalidFile):
			writeError(w, http.StatusBadRequest, "Invalid import file", err)
		case errors.As(err, &recErr) && recErr.Malformed():
			writeError(w, http.StatusBadRequest, "Malformed record", err)
		case store.IsConflict(err):
			writeError(w, http.StatusConflict, "Conflicting write, retry the import", err)
		default:
			writeError(w, http.StatusInternalServerError, "Import failed", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toImportResponse(run))
}

// Period returns the prices between the start and end months.
func (h *Handler) Period(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "Query parameters start and end are required", nil)
		return
	}

	points, err := h.Service.Period(r.Context(), start, end)
	if err != nil {
		if errors.Is(err, period.ErrMalformedPeriod) || errors.Is(err, period.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, "Invalid period", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to query period", err)
		return
	}

	writeJSON(w, http.StatusOK, toPricePointDTOs(points))
}

// ListImports returns the import audit history, newest first.
func (h *Handler) ListImports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := quotes.RunFilter{Source: q.Get("source"), File: q.Get("file")}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		f.Limit = n
	}

	runs, err := h.Service.ImportRuns(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list imports", err)
		return
	}

	dtos := make([]ImportRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toImportRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Ping is a liveness probe.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
