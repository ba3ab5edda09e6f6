package preference_repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"costume-portal/internal/core/domain/models"
)

// PreferenceRepository stores per-user notification preferences including
// milestone subscriptions and phone verification state.
type PreferenceRepository struct {
	pool *pgxpool.Pool
}

func NewPreferenceRepository(pool *pgxpool.Pool) *PreferenceRepository {
	return &PreferenceRepository{pool: pool}
}

const prefColumns = `
	user_id, organization_id, email, email_enabled, sms_enabled,
	COALESCE(phone, ''), phone_state, COALESCE(phone_expiry, 'epoch'::timestamptz),
	milestones, frequency, updated_at
`

func scanPreference(row pgx.Row) (models.NotificationPreference, error) {
	var p models.NotificationPreference
	var milestones []byte

	err := row.Scan(
		&p.UserID,
		&p.OrganizationID,
		&p.Email,
		&p.EmailEnabled,
		&p.SMSEnabled,
		&p.Phone,
		&p.PhoneState,
		&p.PhoneExpiry,
		&milestones,
		&p.Frequency,
		&p.UpdatedAt,
	)
	if err != nil {
		return models.NotificationPreference{}, err
	}

	if len(milestones) > 0 {
		if err := json.Unmarshal(milestones, &p.Milestones); err != nil {
			return models.NotificationPreference{}, fmt.Errorf("failed to decode milestones: %w", err)
		}
	}
	if p.Milestones == nil {
		p.Milestones = make(map[models.Stage]models.Milestone)
	}

	return p, nil
}

func (r *PreferenceRepository) GetPreference(ctx context.Context, orgID, userID string) (models.NotificationPreference, error) {
	query := `SELECT ` + prefColumns + ` FROM notification_preferences WHERE organization_id = $1 AND user_id = $2`

	p, err := scanPreference(r.pool.QueryRow(ctx, query, orgID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Absent rows read as an empty preference: nothing enabled.
			return models.NotificationPreference{
				UserID:         userID,
				OrganizationID: orgID,
				PhoneState:     models.PhoneUnverified,
				Milestones:     make(map[models.Stage]models.Milestone),
				Frequency:      models.FrequencyImmediate,
			}, nil
		}
		return models.NotificationPreference{}, fmt.Errorf("failed to get preference: %w", err)
	}

	return p, nil
}

// ListSubscribers returns every preference in the organization subscribed to
// the given stage. The JSONB predicate keeps the scan inside postgres.
func (r *PreferenceRepository) ListSubscribers(ctx context.Context, orgID string, stage models.Stage) ([]models.NotificationPreference, error) {
	query := `SELECT ` + prefColumns + `
		FROM notification_preferences
		WHERE organization_id = $1
		  AND (milestones -> $2 ->> 'enabled')::boolean IS TRUE
	`

	rows, err := r.pool.Query(ctx, query, orgID, string(stage))
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	var prefs []models.NotificationPreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan preference row: %w", err)
		}
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating preference rows: %w", err)
	}

	return prefs, nil
}

// SavePreference upserts a preference record. Enabling SMS without a
// verified phone is rejected before touching the database.
func (r *PreferenceRepository) SavePreference(ctx context.Context, pref models.NotificationPreference) error {
	if pref.SMSEnabled && pref.PhoneState != models.PhoneVerified {
		return models.ErrorUnverifiedChannel
	}

	milestones, err := json.Marshal(pref.Milestones)
	if err != nil {
		return fmt.Errorf("failed to encode milestones: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO notification_preferences
			(user_id, organization_id, email, email_enabled, sms_enabled, phone, phone_state, milestones, frequency, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, now())
		 ON CONFLICT (organization_id, user_id) DO UPDATE SET
			email = EXCLUDED.email,
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			phone = EXCLUDED.phone,
			phone_state = EXCLUDED.phone_state,
			milestones = EXCLUDED.milestones,
			frequency = EXCLUDED.frequency,
			updated_at = now()`,
		pref.UserID, pref.OrganizationID, pref.Email, pref.EmailEnabled, pref.SMSEnabled,
		pref.Phone, pref.PhoneState, milestones, pref.Frequency,
	)
	if err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}

	return nil
}

// RequestPhoneVerification stores a pending code with its expiry. Any
// previously verified phone drops back to pending, which also disables SMS
// until the new number confirms.
func (r *PreferenceRepository) RequestPhoneVerification(ctx context.Context, orgID, userID, phone, code string, expiry time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notification_preferences SET
			phone = $3,
			phone_state = $4,
			phone_code = $5,
			phone_expiry = $6,
			sms_enabled = FALSE,
			updated_at = now()
		 WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID, phone, models.PhonePending, code, expiry,
	)
	if err != nil {
		return fmt.Errorf("failed to request phone verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// First contact for this user: create the row in pending state.
		_, err = r.pool.Exec(ctx,
			`INSERT INTO notification_preferences
				(user_id, organization_id, email, email_enabled, sms_enabled, phone, phone_state, phone_code, phone_expiry, milestones, frequency, updated_at)
			 VALUES ($1, $2, '', FALSE, FALSE, $3, $4, $5, $6, '{}', $7, now())`,
			userID, orgID, phone, models.PhonePending, code, expiry, models.FrequencyImmediate,
		)
		if err != nil {
			return fmt.Errorf("failed to create pending preference: %w", err)
		}
	}
	return nil
}

// ConfirmPhoneVerification flips a pending phone to verified when the code
// matches and has not expired.
func (r *PreferenceRepository) ConfirmPhoneVerification(ctx context.Context, orgID, userID, code string) error {
	var storedCode string
	var expiry time.Time
	var state models.PhoneState

	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(phone_code, ''), COALESCE(phone_expiry, 'epoch'::timestamptz), phone_state
		 FROM notification_preferences
		 WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID,
	).Scan(&storedCode, &expiry, &state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrorValidationFailed
		}
		return fmt.Errorf("failed to load verification state: %w", err)
	}

	if state != models.PhonePending || storedCode == "" || storedCode != code || time.Now().After(expiry) {
		return models.ErrorValidationFailed
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE notification_preferences SET
			phone_state = $3,
			phone_code = NULL,
			phone_expiry = NULL,
			updated_at = now()
		 WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID, models.PhoneVerified,
	)
	if err != nil {
		return fmt.Errorf("failed to confirm phone verification: %w", err)
	}

	return nil
}
