package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"costume-portal/internal/core/domain/models"
)

type fakeStore struct {
	mu         sync.Mutex
	attempts   []models.DeliveryAttempt
	statuses   []models.NotificationStatus
	delivered  []string
	sent       map[string]bool
	unfinished []models.Notification
	markErr    error
}

func (f *fakeStore) CreateNotification(ctx context.Context, n models.Notification) error {
	return nil
}

func (f *fakeStore) AppendAttempt(ctx context.Context, attempt models.DeliveryAttempt, status models.NotificationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempt)
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStore) LatestSeq(ctx context.Context, notificationID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, a := range f.attempts {
		if a.NotificationID == notificationID && a.Seq > max {
			max = a.Seq
		}
	}
	return max, nil
}

func (f *fakeStore) MarkDelivered(ctx context.Context, notificationID string, at time.Time) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sent[notificationID] {
		return false, nil
	}
	f.delivered = append(f.delivered, notificationID)
	return true, nil
}

func (f *fakeStore) ListUnfinished(ctx context.Context) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unfinished, nil
}

func (f *fakeStore) GetNotification(ctx context.Context, notificationID string) (models.Notification, error) {
	return models.Notification{}, nil
}

type auditUpdate struct {
	notificationID string
	status         models.NotificationStatus
	errorDetail    string
}

type fakeAudit struct {
	mu      sync.Mutex
	updates []auditUpdate
}

func (f *fakeAudit) Append(ctx context.Context, rec models.CommunicationAuditRecord) error {
	return nil
}

func (f *fakeAudit) UpdateStatus(ctx context.Context, notificationID string, status models.NotificationStatus, errorDetail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, auditUpdate{notificationID, status, errorDetail})
	return nil
}

func (f *fakeAudit) Search(ctx context.Context, criteria models.SearchCriteria) (models.SearchResult, error) {
	return models.SearchResult{}, nil
}

func (f *fakeAudit) Summarize(ctx context.Context, orgID string, from, to time.Time) (models.AuditSummary, error) {
	return models.AuditSummary{}, nil
}

func (f *fakeAudit) Count(ctx context.Context, criteria models.SearchCriteria) (int, error) {
	return 0, nil
}

func (f *fakeAudit) Stream(ctx context.Context, criteria models.SearchCriteria, fn func(models.CommunicationAuditRecord) error) error {
	return nil
}

// scriptedTransport returns its results in order, repeating the last one.
type scriptedTransport struct {
	mu      sync.Mutex
	results []models.SendResult
	errs    []error
	calls   int
}

func (f *scriptedTransport) Send(ctx context.Context, ch models.Channel, recipient, subject, body string) (models.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.results[i], err
}

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:     4,
		BaseBackoff:     time.Millisecond,
		MaxBackoff:      4 * time.Millisecond,
		ProviderTimeout: time.Second,
	}
}

func testNotification(ch models.Channel) models.Notification {
	return models.Notification{
		ID:          "n-1",
		OrderNumber: "CG-1042",
		Stage:       models.StageSewing,
		UserID:      "anna",
		Channel:     ch,
		Recipient:   "anna@example.com",
		Subject:     "update",
		Body:        "your order moved",
		Status:      models.NotificationPending,
	}
}

func TestDeliverSucceedsFirstAttempt(t *testing.T) {
	store := &fakeStore{}
	audit := &fakeAudit{}
	transport := &scriptedTransport{results: []models.SendResult{
		{Status: models.ProviderSent, ProviderMessageID: "pm-1"},
	}}
	tracker := NewTracker(store, audit, transport, fastPolicy(), nil)

	status := tracker.Deliver(context.Background(), testNotification(models.ChannelEmail))

	if status != models.NotificationSent {
		t.Fatalf("status = %s, want sent", status)
	}
	if len(store.attempts) != 1 {
		t.Fatalf("recorded %d attempts, want 1", len(store.attempts))
	}
	if store.attempts[0].Result != models.AttemptSent {
		t.Errorf("attempt result = %s, want sent", store.attempts[0].Result)
	}
	if store.attempts[0].ProviderMessageID != "pm-1" {
		t.Errorf("provider message id = %q", store.attempts[0].ProviderMessageID)
	}
	if len(audit.updates) != 1 || audit.updates[0].status != models.NotificationSent {
		t.Errorf("audit updates = %+v", audit.updates)
	}
}

func TestDeliverPermanentFailureShortCircuits(t *testing.T) {
	store := &fakeStore{}
	audit := &fakeAudit{}
	transport := &scriptedTransport{results: []models.SendResult{
		{Status: models.ProviderFailedPermanent, ErrorDetail: "invalid email address"},
	}}
	tracker := NewTracker(store, audit, transport, fastPolicy(), nil)

	status := tracker.Deliver(context.Background(), testNotification(models.ChannelEmail))

	if status != models.NotificationFailedFinal {
		t.Fatalf("status = %s, want failed_final", status)
	}
	if transport.calls != 1 {
		t.Errorf("provider called %d times, want 1 (no retries on permanent failure)", transport.calls)
	}
	if len(store.attempts) != 1 || store.attempts[0].Result != models.AttemptBounced {
		t.Errorf("attempts = %+v, want one bounced attempt", store.attempts)
	}
	if store.attempts[0].ErrorDetail != "invalid email address" {
		t.Errorf("error detail = %q", store.attempts[0].ErrorDetail)
	}
}

func TestDeliverRetriesTransientThenSucceeds(t *testing.T) {
	store := &fakeStore{}
	audit := &fakeAudit{}
	transport := &scriptedTransport{results: []models.SendResult{
		{Status: models.ProviderFailedTransient, ErrorDetail: "timeout"},
		{Status: models.ProviderFailedTransient, ErrorDetail: "timeout"},
		{Status: models.ProviderSent, ProviderMessageID: "pm-3"},
	}}
	tracker := NewTracker(store, audit, transport, fastPolicy(), nil)

	status := tracker.Deliver(context.Background(), testNotification(models.ChannelEmail))

	if status != models.NotificationSent {
		t.Fatalf("status = %s, want sent", status)
	}
	if len(store.attempts) != 3 {
		t.Fatalf("recorded %d attempts, want 3", len(store.attempts))
	}
	for i, want := range []models.NotificationStatus{
		models.NotificationRetrying, models.NotificationRetrying, models.NotificationSent,
	} {
		if store.statuses[i] != want {
			t.Errorf("attempt %d status = %s, want %s", i+1, store.statuses[i], want)
		}
	}
	// Sequence numbers are gap-free and increasing.
	for i, a := range store.attempts {
		if a.Seq != i+1 {
			t.Errorf("attempt %d has seq %d", i, a.Seq)
		}
	}
}

func TestDeliverExhaustsRetryBudget(t *testing.T) {
	store := &fakeStore{}
	audit := &fakeAudit{}
	transport := &scriptedTransport{
		results: []models.SendResult{{}},
		errs:    []error{errors.New("connection refused")},
	}
	tracker := NewTracker(store, audit, transport, fastPolicy(), nil)

	status := tracker.Deliver(context.Background(), testNotification(models.ChannelEmail))

	if status != models.NotificationFailedFinal {
		t.Fatalf("status = %s, want failed_final", status)
	}
	if transport.calls != 4 {
		t.Errorf("provider called %d times, want 4", transport.calls)
	}
	last := store.statuses[len(store.statuses)-1]
	if last != models.NotificationFailedFinal {
		t.Errorf("final recorded status = %s, want failed_final", last)
	}
	// Audit kept pace with every attempt.
	if len(audit.updates) != len(store.attempts) {
		t.Errorf("audit has %d updates for %d attempts", len(audit.updates), len(store.attempts))
	}
}

func TestDeliverResumesAfterRecordedAttempts(t *testing.T) {
	store := &fakeStore{attempts: []models.DeliveryAttempt{
		{NotificationID: "n-1", Seq: 1, Result: models.AttemptFailed},
		{NotificationID: "n-1", Seq: 2, Result: models.AttemptFailed},
	}}
	transport := &scriptedTransport{results: []models.SendResult{
		{Status: models.ProviderSent, ProviderMessageID: "pm-x"},
	}}
	tracker := NewTracker(store, &fakeAudit{}, transport, fastPolicy(), nil)

	status := tracker.Deliver(context.Background(), testNotification(models.ChannelEmail))

	if status != models.NotificationSent {
		t.Fatalf("status = %s, want sent", status)
	}
	last := store.attempts[len(store.attempts)-1]
	if last.Seq != 3 {
		t.Errorf("resumed attempt seq = %d, want 3", last.Seq)
	}
}

func TestSMSCostRecordedOnSuccess(t *testing.T) {
	store := &fakeStore{}
	transport := &scriptedTransport{results: []models.SendResult{
		{Status: models.ProviderSent, ProviderMessageID: "pm-1", CostCents: 2},
	}}
	tracker := NewTracker(store, &fakeAudit{}, transport, fastPolicy(), nil)

	n := testNotification(models.ChannelSMS)
	n.Recipient = "+15550100"
	tracker.Deliver(context.Background(), n)

	if len(store.attempts) != 1 || store.attempts[0].CostCents != 2 {
		t.Errorf("attempts = %+v, want cost_cents 2", store.attempts)
	}
}

func TestConfirmDelivery(t *testing.T) {
	store := &fakeStore{sent: map[string]bool{"n-1": true}}
	audit := &fakeAudit{}
	tracker := NewTracker(store, audit, &scriptedTransport{results: []models.SendResult{{}}}, fastPolicy(), nil)

	if err := tracker.ConfirmDelivery(context.Background(), "n-1", "pm-1"); err != nil {
		t.Fatalf("ConfirmDelivery: %v", err)
	}
	if len(store.delivered) != 1 || store.delivered[0] != "n-1" {
		t.Errorf("delivered = %v", store.delivered)
	}
	if len(audit.updates) != 1 || audit.updates[0].status != models.NotificationDelivered {
		t.Errorf("audit updates = %+v", audit.updates)
	}
}

func TestConfirmDeliveryIgnoresCallbackBeforeSend(t *testing.T) {
	store := &fakeStore{}
	audit := &fakeAudit{}
	tracker := NewTracker(store, audit, &scriptedTransport{results: []models.SendResult{{}}}, fastPolicy(), nil)

	// The callback races ahead of the attempt loop: the notification is
	// still pending, so nothing may be promoted.
	if err := tracker.ConfirmDelivery(context.Background(), "n-1", "pm-1"); err != nil {
		t.Fatalf("ConfirmDelivery: %v", err)
	}
	if len(store.delivered) != 0 {
		t.Errorf("delivered = %v, want none", store.delivered)
	}
	if len(audit.updates) != 0 {
		t.Errorf("audit moved to %+v although the notification was never sent", audit.updates)
	}
}

func TestConfirmDeliveryPropagatesStoreError(t *testing.T) {
	store := &fakeStore{markErr: errors.New("db down")}
	tracker := NewTracker(store, &fakeAudit{}, &scriptedTransport{results: []models.SendResult{{}}}, fastPolicy(), nil)

	if err := tracker.ConfirmDelivery(context.Background(), "n-1", "pm-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	tracker := NewTracker(&fakeStore{}, &fakeAudit{}, &scriptedTransport{results: []models.SendResult{{}}}, Policy{
		MaxAttempts: 10,
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  10 * time.Second,
	}, nil)

	cases := map[int]time.Duration{
		1: 2 * time.Second,
		2: 4 * time.Second,
		3: 8 * time.Second,
		4: 10 * time.Second,
		9: 10 * time.Second,
	}
	for attempt, want := range cases {
		if got := tracker.backoff(attempt); got != want {
			t.Errorf("backoff(%d) = %s, want %s", attempt, got, want)
		}
	}
}

func TestRecoverResubmitsUnfinishedNotifications(t *testing.T) {
	interrupted := testNotification(models.ChannelEmail)
	interrupted.Status = models.NotificationRetrying
	store := &fakeStore{unfinished: []models.Notification{interrupted}}
	transport := &scriptedTransport{results: []models.SendResult{
		{Status: models.ProviderSent, ProviderMessageID: "pm"},
	}}
	tracker := NewTracker(store, &fakeAudit{}, transport, fastPolicy(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	tracker.Start(ctx, 1)
	if err := tracker.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		store.mu.Lock()
		done := len(store.attempts) >= 1
		store.mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("recovered notification was never attempted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	tracker.Wait()
}

func TestWorkerPoolDrainsQueue(t *testing.T) {
	store := &fakeStore{}
	transport := &scriptedTransport{results: []models.SendResult{
		{Status: models.ProviderSent, ProviderMessageID: "pm"},
	}}
	tracker := NewTracker(store, &fakeAudit{}, transport, fastPolicy(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	tracker.Start(ctx, 3)

	for i := 0; i < 5; i++ {
		n := testNotification(models.ChannelEmail)
		n.ID = string(rune('a' + i))
		tracker.Submit(n)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		store.mu.Lock()
		done := len(store.attempts) >= 5
		store.mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker pool did not drain the queue in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	tracker.Wait()
}
