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

// verificationCodeTTL bounds how long a phone verification code stays valid.
const verificationCodeTTL = 10 * time.Minute

// PreferenceHandler handles HTTP requests for notification preferences
type PreferenceHandler struct {
	store port.PreferenceStore
	log   logger.Logger
}

// NewPreferenceHandler creates a new preference handler
func NewPreferenceHandler(store port.PreferenceStore) *PreferenceHandler {
	return &PreferenceHandler{
		store: store,
		log:   logger.InitLogger("preference_handler", logger.LevelDebug),
	}
}

// GetPreference returns a user's notification preferences
func (h *PreferenceHandler) GetPreference() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := chi.URLParam(r, "orgID")
		userID := chi.URLParam(r, "userID")

		pref, err := h.store.GetPreference(r.Context(), orgID, userID)
		if err != nil {
			h.log.Error(r.Context(), types.ActionDBQueryFailed, "failed to get preference", err,
				"user_id", userID,
			)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		h.writeJSON(w, r, http.StatusOK, pref)
	}
}

// SavePreference creates or replaces a user's notification preferences
func (h *PreferenceHandler) SavePreference() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := chi.URLParam(r, "orgID")
		userID := chi.URLParam(r, "userID")

		var pref models.NotificationPreference
		if err := json.NewDecoder(r.Body).Decode(&pref); err != nil {
			http.Error(w, models.ErrorValidationFailed.Error(), http.StatusBadRequest)
			return
		}

		// Path wins over body for identity fields.
		pref.OrganizationID = orgID
		pref.UserID = userID

		if err := h.store.SavePreference(r.Context(), pref); err != nil {
			switch {
			case errors.Is(err, models.ErrorUnverifiedChannel):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, models.ErrorValidationFailed):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				h.log.Error(r.Context(), types.ActionDBTransactionFailed, "failed to save preference", err,
					"user_id", userID,
				)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// RequestPhoneVerification starts the SMS phone verification flow
func (h *PreferenceHandler) RequestPhoneVerification(generateCode func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := chi.URLParam(r, "orgID")
		userID := chi.URLParam(r, "userID")

		var req struct {
			Phone string `json:"phone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
			http.Error(w, models.ErrorValidationFailed.Error(), http.StatusBadRequest)
			return
		}

		code := generateCode()
		expiry := time.Now().Add(verificationCodeTTL)

		if err := h.store.RequestPhoneVerification(r.Context(), orgID, userID, req.Phone, code, expiry); err != nil {
			h.log.Error(r.Context(), types.ActionDBTransactionFailed, "failed to start phone verification", err,
				"user_id", userID,
			)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		h.writeJSON(w, r, http.StatusAccepted, map[string]string{
			"phone_state": string(models.PhonePending),
			"expires_at":  expiry.Format(time.RFC3339),
		})
	}
}

// ConfirmPhoneVerification completes the SMS phone verification flow
func (h *PreferenceHandler) ConfirmPhoneVerification() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := chi.URLParam(r, "orgID")
		userID := chi.URLParam(r, "userID")

		var req struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
			http.Error(w, models.ErrorValidationFailed.Error(), http.StatusBadRequest)
			return
		}

		if err := h.store.ConfirmPhoneVerification(r.Context(), orgID, userID, req.Code); err != nil {
			if errors.Is(err, models.ErrorValidationFailed) {
				http.Error(w, "invalid or expired verification code", http.StatusBadRequest)
				return
			}
			h.log.Error(r.Context(), types.ActionDBTransactionFailed, "failed to confirm phone verification", err,
				"user_id", userID,
			)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		h.writeJSON(w, r, http.StatusOK, map[string]string{
			"phone_state": string(models.PhoneVerified),
		})
	}
}

func (h *PreferenceHandler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error(r.Context(), types.ActionResponseFailed, "failed to encode response", err)
	}
}
