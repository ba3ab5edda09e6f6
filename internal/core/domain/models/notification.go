package models

import "time"

// NotificationStatus is the delivery-tracking state of a notification.
type NotificationStatus string

const (
	NotificationPending     NotificationStatus = "pending"
	NotificationSent        NotificationStatus = "sent"
	NotificationDelivered   NotificationStatus = "delivered"
	NotificationFailed      NotificationStatus = "failed"
	NotificationRetrying    NotificationStatus = "retrying"
	NotificationFailedFinal NotificationStatus = "failed_final"
)

// Terminal reports whether the status ends the delivery lifecycle.
func (s NotificationStatus) Terminal() bool {
	return s == NotificationDelivered || s == NotificationFailedFinal
}

// AttemptResult is the outcome of a single delivery attempt.
type AttemptResult string

const (
	AttemptPending   AttemptResult = "pending"
	AttemptSent      AttemptResult = "sent"
	AttemptDelivered AttemptResult = "delivered"
	AttemptFailed    AttemptResult = "failed"
	AttemptBounced   AttemptResult = "bounced"
)

// ProviderStatus is the deterministic mapping of a transport provider
// response.
type ProviderStatus string

const (
	ProviderSent            ProviderStatus = "sent"
	ProviderFailedTransient ProviderStatus = "failed_transient"
	ProviderFailedPermanent ProviderStatus = "failed_permanent"
)

// Notification is immutable once created; only delivery attempts are
// appended against it.
type Notification struct {
	ID             string             `json:"id"`
	OrderNumber    string             `json:"order_number"`
	OrganizationID string             `json:"organization_id"`
	Stage          Stage              `json:"stage"`
	UserID         string             `json:"user_id"`
	Channel        Channel            `json:"channel"`
	TemplateID     string             `json:"template_id"`
	Recipient      string             `json:"recipient"`
	Subject        string             `json:"subject"`
	Body           string             `json:"body"`
	Status         NotificationStatus `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
}

// DeliveryAttempt is one try to transmit a notification. Sequence numbers
// are strictly increasing per notification with no gaps.
type DeliveryAttempt struct {
	NotificationID    string        `json:"notification_id"`
	Seq               int           `json:"seq"`
	AttemptedAt       time.Time     `json:"attempted_at"`
	Result            AttemptResult `json:"result"`
	ProviderMessageID string        `json:"provider_message_id,omitempty"`
	ErrorDetail       string        `json:"error_detail,omitempty"`
	CostCents         int           `json:"cost_cents,omitempty"` // SMS only
}

// SendResult is what the transport adapter returns for one provider call.
type SendResult struct {
	Status            ProviderStatus
	ProviderMessageID string
	ErrorDetail       string
	CostCents         int
}
