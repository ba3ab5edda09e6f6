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

// DeliveryHandler exposes the provider callback surface over HTTP for
// providers that push webhooks instead of queue messages.
type DeliveryHandler struct {
	tracker port.DeliveryTracker
	log     logger.Logger
}

func NewDeliveryHandler(tracker port.DeliveryTracker) *DeliveryHandler {
	return &DeliveryHandler{
		tracker: tracker,
		log:     logger.InitLogger("delivery_handler", logger.LevelDebug),
	}
}

// ConfirmDelivery promotes a sent notification to delivered
func (h *DeliveryHandler) ConfirmDelivery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notificationID := chi.URLParam(r, "notificationID")

		var req struct {
			ProviderMessageID string `json:"provider_message_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, models.ErrorValidationFailed.Error(), http.StatusBadRequest)
			return
		}

		if err := h.tracker.ConfirmDelivery(r.Context(), notificationID, req.ProviderMessageID); err != nil {
			if errors.Is(err, models.ErrorValidationFailed) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			h.log.Error(r.Context(), types.ActionDeliveryConfirmed, "failed to confirm delivery", err,
				"notification_id", notificationID,
			)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
