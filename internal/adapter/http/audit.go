package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"costume-portal/internal/core/domain/models"
	"costume-portal/internal/core/domain/types"
	"costume-portal/internal/core/port"
	"costume-portal/pkg/logger"
)

// AuditHandler handles HTTP requests for the communication audit trail
type AuditHandler struct {
	svc port.AuditService
	log logger.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(svc port.AuditService) *AuditHandler {
	return &AuditHandler{
		svc: svc,
		log: logger.InitLogger("audit_handler", logger.LevelDebug),
	}
}

// Search returns one page of audit records matching the criteria
func (h *AuditHandler) Search() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var criteria models.SearchCriteria
		if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
			http.Error(w, models.ErrorValidationFailed.Error(), http.StatusBadRequest)
			return
		}

		result, err := h.svc.Search(r.Context(), criteria)
		if err != nil {
			h.log.Error(r.Context(), types.ActionDBQueryFailed, "audit search failed", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		h.writeJSON(w, r, http.StatusOK, result)
	}
}

// Summarize returns aggregate delivery counts for a time window
func (h *AuditHandler) Summarize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := r.URL.Query().Get("organization_id")
		if orgID == "" {
			http.Error(w, "organization_id is required", http.StatusBadRequest)
			return
		}

		from, err := parseTimeParam(r, "from")
		if err != nil {
			http.Error(w, "invalid from timestamp", http.StatusBadRequest)
			return
		}
		to, err := parseTimeParam(r, "to")
		if err != nil {
			http.Error(w, "invalid to timestamp", http.StatusBadRequest)
			return
		}
		if to.IsZero() {
			to = time.Now()
		}

		summary, err := h.svc.Summarize(r.Context(), orgID, from, to)
		if err != nil {
			h.log.Error(r.Context(), types.ActionDBQueryFailed, "audit summary failed", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		h.writeJSON(w, r, http.StatusOK, summary)
	}
}

// Export produces an audit artifact, inline for small result sets and as a
// pollable job for large ones
func (h *AuditHandler) Export() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Criteria models.SearchCriteria `json:"criteria"`
			Format   models.ExportFormat   `json:"format"`
			Options  models.ExportOptions  `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, models.ErrorValidationFailed.Error(), http.StatusBadRequest)
			return
		}

		result, err := h.svc.Export(r.Context(), req.Criteria, req.Format, req.Options)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrorValidationFailed):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, models.ErrorExportTooLarge):
				http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			default:
				h.log.Error(r.Context(), types.ActionExportFailed, "audit export failed", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		// A job id means the export runs in the background.
		status := http.StatusOK
		if result.JobID != "" {
			status = http.StatusAccepted
		}

		h.writeJSON(w, r, status, result)
	}
}

// JobStatus returns the state of an asynchronous export job
func (h *AuditHandler) JobStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		job, err := h.svc.JobStatus(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, models.ErrorJobNotFound) {
				http.Error(w, "Export job not found", http.StatusNotFound)
				return
			}
			h.log.Error(r.Context(), types.ActionJobStatusQueried, "job status lookup failed", err,
				"job_id", jobID,
			)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		h.writeJSON(w, r, http.StatusOK, job)
	}
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (h *AuditHandler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error(r.Context(), types.ActionResponseFailed, "failed to encode response", err)
	}
}
