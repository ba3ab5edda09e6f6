package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"costume-portal/internal/core/domain/models"
	"costume-portal/internal/core/domain/types"
	"costume-portal/internal/core/port"
	"costume-portal/pkg/logger"
)

// Service reacts to stage transitions: it resolves milestone subscribers,
// renders one notification per eligible (user, channel) pair and hands them
// to the delivery tracker. Per-recipient failures never abort siblings and
// never reach the stage-transition caller.
type Service struct {
	log       logger.Logger
	prefs     port.PreferenceStore
	store     port.NotificationStore
	audit     port.AuditStore
	tracker   port.DeliveryTracker
	templates *TemplateRegistry
	fanOut    int // concurrent recipient tasks per transition
}

func NewDispatcher(prefs port.PreferenceStore, store port.NotificationStore, audit port.AuditStore, tracker port.DeliveryTracker, templates *TemplateRegistry, fanOut int) *Service {
	if fanOut < 1 {
		fanOut = 4
	}
	return &Service{
		log:       logger.InitLogger("dispatcher", logger.LevelDebug),
		prefs:     prefs,
		store:     store,
		audit:     audit,
		tracker:   tracker,
		templates: templates,
		fanOut:    fanOut,
	}
}

// OnStageTransitioned fans a committed transition out to subscribers. The
// returned error is infrastructure-level only (subscriber lookup); it lets
// the consumer requeue the event. Everything downstream is per-recipient.
func (svc *Service) OnStageTransitioned(ctx context.Context, event models.StageTransitioned) error {
	svc.log.Debug(ctx, types.ActionDispatchStarted, "dispatching stage transition",
		"order_number", event.OrderNumber,
		"to_stage", event.ToStage,
	)

	subscribers, err := svc.prefs.ListSubscribers(ctx, event.OrganizationID, event.ToStage)
	if err != nil {
		svc.log.Error(ctx, types.ActionDBQueryFailed, "failed to resolve subscribers", err,
			"organization_id", event.OrganizationID,
			"to_stage", event.ToStage,
		)
		return err
	}

	sem := make(chan struct{}, svc.fanOut)
	var wg sync.WaitGroup
	var created int64
	var mu sync.Mutex

	for _, pref := range subscribers {
		if !pref.SubscribedTo(event.ToStage) {
			continue
		}
		for _, ch := range pref.EligibleChannels() {
			wg.Add(1)
			sem <- struct{}{}
			go func(pref models.NotificationPreference, ch models.Channel) {
				defer wg.Done()
				defer func() { <-sem }()

				if svc.dispatchOne(ctx, event, pref, ch) {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}(pref, ch)
		}
	}

	wg.Wait()

	svc.log.Info(ctx, types.ActionDispatchCompleted, "stage transition dispatched",
		"order_number", event.OrderNumber,
		"to_stage", event.ToStage,
		"notifications_created", created,
	)

	return nil
}

// dispatchOne creates and submits a single notification. Returns true when a
// new notification was created.
func (svc *Service) dispatchOne(ctx context.Context, event models.StageTransitioned, pref models.NotificationPreference, ch models.Channel) bool {
	data := TemplateData{
		OrderNumber: event.OrderNumber,
		StageName:   stageLabel(event.ToStage),
		IsRevert:    event.IsRevert,
	}

	msg, err := svc.templates.Render(event.ToStage, ch, data)
	if err != nil {
		svc.log.Error(ctx, types.ActionRenderFailed, "template rendering failed, recipient skipped", err,
			"order_number", event.OrderNumber,
			"user_id", pref.UserID,
			"channel", ch,
		)
		return false
	}

	n := models.Notification{
		ID:             uuid.NewString(),
		OrderNumber:    event.OrderNumber,
		OrganizationID: event.OrganizationID,
		Stage:          event.ToStage,
		UserID:         pref.UserID,
		Channel:        ch,
		TemplateID:     msg.TemplateID,
		Recipient:      pref.Recipient(ch),
		Subject:        msg.Subject,
		Body:           msg.Body,
		Status:         models.NotificationPending,
		CreatedAt:      time.Now().UTC(),
	}

	if err := svc.store.CreateNotification(ctx, n); err != nil {
		if errors.Is(err, models.ErrorAlreadyDispatched) {
			svc.log.Debug(ctx, types.ActionDispatchSkipped, "notification already dispatched for this transition",
				"order_number", event.OrderNumber,
				"to_stage", event.ToStage,
				"user_id", pref.UserID,
				"channel", ch,
			)
			return false
		}
		svc.log.Error(ctx, types.ActionDBTransactionFailed, "failed to create notification", err,
			"order_number", event.OrderNumber,
			"user_id", pref.UserID,
			"channel", ch,
		)
		return false
	}

	rec := models.CommunicationAuditRecord{
		ID:             uuid.NewString(),
		NotificationID: n.ID,
		OrganizationID: n.OrganizationID,
		OrderNumber:    n.OrderNumber,
		Stage:          n.Stage,
		UserID:         n.UserID,
		Channel:        n.Channel,
		Recipient:      n.Recipient,
		Subject:        n.Subject,
		Body:           n.Body,
		Status:         models.NotificationPending,
		CreatedAt:      n.CreatedAt,
		UpdatedAt:      n.CreatedAt,
	}

	if err := svc.audit.Append(ctx, rec); err != nil {
		svc.log.Error(ctx, types.ActionDBTransactionFailed, "failed to append audit record", err,
			"notification_id", n.ID,
		)
		// The notification still exists; delivery proceeds and later status
		// updates will log their own failures.
	}

	svc.log.Debug(ctx, types.ActionNotificationCreated, "notification created",
		"notification_id", n.ID,
		"order_number", n.OrderNumber,
		"user_id", n.UserID,
		"channel", n.Channel,
	)

	svc.tracker.Submit(n)
	return true
}
