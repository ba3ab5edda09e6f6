package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"costume-portal/internal/core/domain/models"
	"costume-portal/internal/core/domain/types"
	"costume-portal/internal/core/port"
	"costume-portal/pkg/logger"
)

// StageHandler handles HTTP requests for the order workflow
type StageHandler struct {
	svc  port.StageService
	repo port.OrderRepository
	log  logger.Logger
}

// NewStageHandler creates a new workflow handler
func NewStageHandler(svc port.StageService, repo port.OrderRepository) *StageHandler {
	return &StageHandler{
		svc:  svc,
		repo: repo,
		log:  logger.InitLogger("stage_handler", logger.LevelDebug),
	}
}

// Advance moves an order forward in the workflow
func (h *StageHandler) Advance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber := chi.URLParam(r, "orderNumber")

		var req models.TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, models.ErrorValidationFailed.Error(), http.StatusBadRequest)
			return
		}

		order, err := h.svc.Advance(r.Context(), orderNumber, req)
		if err != nil {
			h.writeTransitionError(w, r, orderNumber, err)
			return
		}

		h.writeJSON(w, r, http.StatusOK, order)
	}
}

// Revert moves an order back to an earlier stage
func (h *StageHandler) Revert() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber := chi.URLParam(r, "orderNumber")

		var req models.TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, models.ErrorValidationFailed.Error(), http.StatusBadRequest)
			return
		}

		order, err := h.svc.Revert(r.Context(), orderNumber, req)
		if err != nil {
			h.writeTransitionError(w, r, orderNumber, err)
			return
		}

		h.writeJSON(w, r, http.StatusOK, order)
	}
}

// GetOrder returns the current workflow view of an order
func (h *StageHandler) GetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber := chi.URLParam(r, "orderNumber")

		order, err := h.repo.GetOrder(r.Context(), orderNumber)
		if err != nil {
			if errors.Is(err, models.ErrorOrderNotFound) {
				http.Error(w, "Order not found", http.StatusNotFound)
				return
			}
			h.log.Error(r.Context(), types.ActionDBQueryFailed, "failed to get order", err,
				"order_number", orderNumber,
			)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		h.writeJSON(w, r, http.StatusOK, order)
	}
}

// GetHistory returns the stage history of an order
func (h *StageHandler) GetHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber := chi.URLParam(r, "orderNumber")

		history, err := h.repo.GetHistory(r.Context(), orderNumber)
		if err != nil {
			if errors.Is(err, models.ErrorOrderNotFound) {
				http.Error(w, "Order not found", http.StatusNotFound)
				return
			}
			h.log.Error(r.Context(), types.ActionDBQueryFailed, "failed to get order history", err,
				"order_number", orderNumber,
			)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		h.writeJSON(w, r, http.StatusOK, history)
	}
}

func (h *StageHandler) writeTransitionError(w http.ResponseWriter, r *http.Request, orderNumber string, err error) {
	switch {
	case errors.Is(err, models.ErrorOrderNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrorValidationFailed),
		errors.Is(err, models.ErrorInvalidTransition),
		errors.Is(err, models.ErrorRevertNeedsReason):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrorStaffOnly):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		h.log.Error(r.Context(), types.ActionDBTransactionFailed, "stage transition failed", err,
			"order_number", orderNumber,
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *StageHandler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error(r.Context(), types.ActionResponseFailed, "failed to encode response", err)
	}
}
