package port

import (
	"context"
	"time"

	"costume-portal/internal/core/domain/models"
)

// OrderRepository persists orders and their stage history.
type OrderRepository interface {
	GetOrder(ctx context.Context, number string) (models.Order, error)
	GetHistory(ctx context.Context, number string) ([]models.StageHistoryItem, error)
	// TransitionStage atomically moves the order from the given stage to
	// entry.Stage and appends the history entry. When the order is no longer
	// at from (a concurrent transition won) it returns
	// models.ErrorInvalidTransition without writing anything.
	TransitionStage(ctx context.Context, number string, from models.Stage, entry models.StageHistoryItem) error
}

// TransitionPublisher fans a committed stage change out to the dispatch
// worker.
type TransitionPublisher interface {
	PublishStageTransitioned(ctx context.Context, event models.StageTransitioned) error
}

// StageService owns the manufacturing workflow rules.
type StageService interface {
	Advance(ctx context.Context, orderNumber string, req models.TransitionRequest) (models.Order, error)
	Revert(ctx context.Context, orderNumber string, req models.TransitionRequest) (models.Order, error)
}

// PreferenceStore is the synchronous lookup/write surface for notification
// preferences.
type PreferenceStore interface {
	GetPreference(ctx context.Context, orgID, userID string) (models.NotificationPreference, error)
	ListSubscribers(ctx context.Context, orgID string, stage models.Stage) ([]models.NotificationPreference, error)
	SavePreference(ctx context.Context, pref models.NotificationPreference) error
	RequestPhoneVerification(ctx context.Context, orgID, userID, phone, code string, expiry time.Time) error
	ConfirmPhoneVerification(ctx context.Context, orgID, userID, code string) error
}

// NotificationStore persists notifications and their delivery attempts.
type NotificationStore interface {
	// CreateNotification returns models.ErrorAlreadyDispatched when the
	// (order, stage, user, channel) dispatch key already exists.
	CreateNotification(ctx context.Context, n models.Notification) error
	// AppendAttempt records one attempt and moves the notification to the
	// given status in the same transaction.
	AppendAttempt(ctx context.Context, attempt models.DeliveryAttempt, status models.NotificationStatus) error
	// LatestSeq returns the highest recorded attempt sequence, 0 if none.
	LatestSeq(ctx context.Context, notificationID string) (int, error)
	// MarkDelivered promotes a sent notification to delivered and reports
	// whether the promotion happened; callbacks for notifications in any
	// other state leave the row untouched.
	MarkDelivered(ctx context.Context, notificationID string, at time.Time) (bool, error)
	// ListUnfinished returns notifications left pending or retrying, so a
	// restarted worker can pick their delivery back up.
	ListUnfinished(ctx context.Context) ([]models.Notification, error)
	GetNotification(ctx context.Context, notificationID string) (models.Notification, error)
}

// Transport sends a single rendered message through an external provider.
type Transport interface {
	Send(ctx context.Context, ch models.Channel, recipient, subject, body string) (models.SendResult, error)
}

// Dispatcher reacts to stage transitions with notification fan-out.
type Dispatcher interface {
	OnStageTransitioned(ctx context.Context, event models.StageTransitioned) error
}

// DeliveryTracker runs the per-notification delivery state machine.
type DeliveryTracker interface {
	// Submit enqueues a notification for delivery. Attempts for one
	// notification are strictly sequential; across notifications they run in
	// parallel up to the configured limit.
	Submit(n models.Notification)
	// ConfirmDelivery promotes a sent notification to delivered, driven by a
	// provider callback.
	ConfirmDelivery(ctx context.Context, notificationID, providerMessageID string) error
}

// AuditStore is the append-only communication audit projection.
type AuditStore interface {
	Append(ctx context.Context, rec models.CommunicationAuditRecord) error
	// UpdateStatus is a no-op once the record reached a terminal status.
	UpdateStatus(ctx context.Context, notificationID string, status models.NotificationStatus, errorDetail string) error
	Search(ctx context.Context, criteria models.SearchCriteria) (models.SearchResult, error)
	Summarize(ctx context.Context, orgID string, from, to time.Time) (models.AuditSummary, error)
	Count(ctx context.Context, criteria models.SearchCriteria) (int, error)
	// Stream walks every matching record ordered by creation time descending.
	Stream(ctx context.Context, criteria models.SearchCriteria, fn func(models.CommunicationAuditRecord) error) error
}

// JobStore tracks asynchronous export jobs. Lookups must be O(1).
type JobStore interface {
	Create(ctx context.Context, job models.ExportJob) error
	Get(ctx context.Context, id string) (models.ExportJob, error)
	Update(ctx context.Context, job models.ExportJob) error
}

// AuditService is the query surface exposed to the surrounding app.
type AuditService interface {
	Search(ctx context.Context, criteria models.SearchCriteria) (models.SearchResult, error)
	Summarize(ctx context.Context, orgID string, from, to time.Time) (models.AuditSummary, error)
	Export(ctx context.Context, criteria models.SearchCriteria, format models.ExportFormat, opts models.ExportOptions) (models.ExportResult, error)
	JobStatus(ctx context.Context, jobID string) (models.ExportJob, error)
}
