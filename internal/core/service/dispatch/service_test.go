package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"costume-portal/internal/core/domain/models"
)

type fakePreferenceStore struct {
	subscribers []models.NotificationPreference
	listErr     error
}

func (f *fakePreferenceStore) GetPreference(ctx context.Context, orgID, userID string) (models.NotificationPreference, error) {
	return models.NotificationPreference{}, nil
}

func (f *fakePreferenceStore) ListSubscribers(ctx context.Context, orgID string, stage models.Stage) ([]models.NotificationPreference, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.subscribers, nil
}

func (f *fakePreferenceStore) SavePreference(ctx context.Context, pref models.NotificationPreference) error {
	return nil
}

func (f *fakePreferenceStore) RequestPhoneVerification(ctx context.Context, orgID, userID, phone, code string, expiry time.Time) error {
	return nil
}

func (f *fakePreferenceStore) ConfirmPhoneVerification(ctx context.Context, orgID, userID, code string) error {
	return nil
}

type fakeNotificationStore struct {
	mu       sync.Mutex
	created  []models.Notification
	existing map[string]bool // dispatch key -> already created
}

func dispatchKey(n models.Notification) string {
	return n.OrderNumber + "|" + string(n.Stage) + "|" + n.UserID + "|" + string(n.Channel)
}

func (f *fakeNotificationStore) CreateNotification(ctx context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existing == nil {
		f.existing = make(map[string]bool)
	}
	key := dispatchKey(n)
	if f.existing[key] {
		return models.ErrorAlreadyDispatched
	}
	f.existing[key] = true
	f.created = append(f.created, n)
	return nil
}

func (f *fakeNotificationStore) AppendAttempt(ctx context.Context, attempt models.DeliveryAttempt, status models.NotificationStatus) error {
	return nil
}

func (f *fakeNotificationStore) LatestSeq(ctx context.Context, notificationID string) (int, error) {
	return 0, nil
}

func (f *fakeNotificationStore) MarkDelivered(ctx context.Context, notificationID string, at time.Time) (bool, error) {
	return false, nil
}

func (f *fakeNotificationStore) ListUnfinished(ctx context.Context) ([]models.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationStore) GetNotification(ctx context.Context, notificationID string) (models.Notification, error) {
	return models.Notification{}, nil
}

type fakeAuditStore struct {
	mu       sync.Mutex
	appended []models.CommunicationAuditRecord
}

func (f *fakeAuditStore) Append(ctx context.Context, rec models.CommunicationAuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, rec)
	return nil
}

func (f *fakeAuditStore) UpdateStatus(ctx context.Context, notificationID string, status models.NotificationStatus, errorDetail string) error {
	return nil
}

func (f *fakeAuditStore) Search(ctx context.Context, criteria models.SearchCriteria) (models.SearchResult, error) {
	return models.SearchResult{}, nil
}

func (f *fakeAuditStore) Summarize(ctx context.Context, orgID string, from, to time.Time) (models.AuditSummary, error) {
	return models.AuditSummary{}, nil
}

func (f *fakeAuditStore) Count(ctx context.Context, criteria models.SearchCriteria) (int, error) {
	return 0, nil
}

func (f *fakeAuditStore) Stream(ctx context.Context, criteria models.SearchCriteria, fn func(models.CommunicationAuditRecord) error) error {
	return nil
}

type fakeTracker struct {
	mu        sync.Mutex
	submitted []models.Notification
}

func (f *fakeTracker) Submit(n models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, n)
}

func (f *fakeTracker) ConfirmDelivery(ctx context.Context, notificationID, providerMessageID string) error {
	return nil
}

func subscriber(userID string, stages ...models.Stage) models.NotificationPreference {
	milestones := make(map[models.Stage]models.Milestone)
	for _, s := range stages {
		milestones[s] = models.Milestone{Enabled: true}
	}
	return models.NotificationPreference{
		UserID:         userID,
		OrganizationID: "org-1",
		Email:          userID + "@example.com",
		EmailEnabled:   true,
		Milestones:     milestones,
		Frequency:      models.FrequencyImmediate,
	}
}

func sewingEvent() models.StageTransitioned {
	return models.StageTransitioned{
		OrderNumber:    "CG-1042",
		OrganizationID: "org-1",
		FromStage:      models.StageCutting,
		ToStage:        models.StageSewing,
		Actor:          "maria",
		TransitionedAt: time.Now(),
	}
}

func newTestDispatcher(prefs *fakePreferenceStore, store *fakeNotificationStore, audit *fakeAuditStore, tracker *fakeTracker) *Service {
	templates, err := NewTemplateRegistry()
	if err != nil {
		panic(err)
	}
	return NewDispatcher(prefs, store, audit, tracker, templates, 2)
}

func TestFanOutCreatesOneNotificationPerUserChannel(t *testing.T) {
	emailAndSMS := subscriber("anna", models.StageSewing)
	emailAndSMS.SMSEnabled = true
	emailAndSMS.Phone = "+15550100"
	emailAndSMS.PhoneState = models.PhoneVerified

	prefs := &fakePreferenceStore{subscribers: []models.NotificationPreference{
		emailAndSMS,
		subscriber("ben", models.StageSewing),
	}}
	store := &fakeNotificationStore{}
	audit := &fakeAuditStore{}
	tracker := &fakeTracker{}

	svc := newTestDispatcher(prefs, store, audit, tracker)

	if err := svc.OnStageTransitioned(context.Background(), sewingEvent()); err != nil {
		t.Fatalf("OnStageTransitioned returned error: %v", err)
	}

	if len(store.created) != 3 {
		t.Fatalf("created %d notifications, want 3 (anna email+sms, ben email)", len(store.created))
	}
	if len(tracker.submitted) != 3 {
		t.Errorf("submitted %d notifications to tracker, want 3", len(tracker.submitted))
	}
	if len(audit.appended) != 3 {
		t.Errorf("appended %d audit records, want 3", len(audit.appended))
	}

	for _, n := range store.created {
		if n.Status != models.NotificationPending {
			t.Errorf("notification %s created with status %s, want pending", n.ID, n.Status)
		}
		if n.Body == "" {
			t.Errorf("notification %s has empty body", n.ID)
		}
		if n.Channel == models.ChannelEmail && n.Subject == "" {
			t.Errorf("email notification %s has empty subject", n.ID)
		}
		if n.Channel == models.ChannelSMS && n.Recipient != "+15550100" {
			t.Errorf("sms recipient = %s", n.Recipient)
		}
	}
}

func TestUnverifiedPhoneNeverGetsSMS(t *testing.T) {
	pref := subscriber("anna", models.StageSewing)
	pref.SMSEnabled = true
	pref.Phone = "+15550100"
	pref.PhoneState = models.PhonePending

	prefs := &fakePreferenceStore{subscribers: []models.NotificationPreference{pref}}
	store := &fakeNotificationStore{}
	svc := newTestDispatcher(prefs, store, &fakeAuditStore{}, &fakeTracker{})

	if err := svc.OnStageTransitioned(context.Background(), sewingEvent()); err != nil {
		t.Fatalf("OnStageTransitioned returned error: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("created %d notifications, want 1 (email only)", len(store.created))
	}
	if store.created[0].Channel != models.ChannelEmail {
		t.Errorf("channel = %s, want email", store.created[0].Channel)
	}
}

func TestRedeliveredEventDoesNotDoubleNotify(t *testing.T) {
	prefs := &fakePreferenceStore{subscribers: []models.NotificationPreference{
		subscriber("anna", models.StageSewing),
	}}
	store := &fakeNotificationStore{}
	tracker := &fakeTracker{}
	svc := newTestDispatcher(prefs, store, &fakeAuditStore{}, tracker)

	event := sewingEvent()
	if err := svc.OnStageTransitioned(context.Background(), event); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if err := svc.OnStageTransitioned(context.Background(), event); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}

	if len(store.created) != 1 {
		t.Errorf("created %d notifications across redelivery, want 1", len(store.created))
	}
	if len(tracker.submitted) != 1 {
		t.Errorf("submitted %d notifications, want 1", len(tracker.submitted))
	}
}

func TestNonSubscribersAreSkipped(t *testing.T) {
	prefs := &fakePreferenceStore{subscribers: []models.NotificationPreference{
		subscriber("anna", models.StageShipped), // different milestone
	}}
	store := &fakeNotificationStore{}
	svc := newTestDispatcher(prefs, store, &fakeAuditStore{}, &fakeTracker{})

	if err := svc.OnStageTransitioned(context.Background(), sewingEvent()); err != nil {
		t.Fatalf("OnStageTransitioned returned error: %v", err)
	}
	if len(store.created) != 0 {
		t.Errorf("created %d notifications for non-subscriber, want 0", len(store.created))
	}
}

func TestSubscriberLookupFailureIsReturned(t *testing.T) {
	prefs := &fakePreferenceStore{listErr: errors.New("db down")}
	svc := newTestDispatcher(prefs, &fakeNotificationStore{}, &fakeAuditStore{}, &fakeTracker{})

	if err := svc.OnStageTransitioned(context.Background(), sewingEvent()); err == nil {
		t.Fatal("expected error so the event can be redelivered")
	}
}
