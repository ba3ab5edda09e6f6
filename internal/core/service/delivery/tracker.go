package delivery

import (
	"context"
	"sync"
	"time"

	"costume-portal/internal/core/domain/models"
	"costume-portal/internal/core/domain/types"
	"costume-portal/internal/core/port"
	"costume-portal/pkg/logger"
)

// Policy is the retry configuration for delivery attempts.
type Policy struct {
	MaxAttempts     int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	ProviderTimeout time.Duration
}

// DefaultPolicy matches the shipped config defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     4,
		BaseBackoff:     2 * time.Second,
		MaxBackoff:      5 * time.Minute,
		ProviderTimeout: 30 * time.Second,
	}
}

// Metrics receives delivery counters. The prometheus implementation lives in
// the metrics adapter; NopMetrics keeps the tracker usable without one.
type Metrics interface {
	IncAttempt(channel, result string)
	IncOutcome(status string)
}

// NopMetrics discards all counters.
type NopMetrics struct{}

func (NopMetrics) IncAttempt(channel, result string) {}
func (NopMetrics) IncOutcome(status string)          {}

// Tracker runs the per-notification delivery state machine:
// pending -> sent -> delivered on the success path, or
// pending -> failed -> retrying -> ... -> failed_final when the provider
// keeps failing. Attempts for one notification are strictly sequential;
// notifications run in parallel up to the worker count. Every state change
// updates the audit record before the next attempt starts.
type Tracker struct {
	log       logger.Logger
	store     port.NotificationStore
	audit     port.AuditStore
	transport port.Transport
	policy    Policy
	metrics   Metrics

	queue chan models.Notification
	wg    sync.WaitGroup
}

func NewTracker(store port.NotificationStore, audit port.AuditStore, transport port.Transport, policy Policy, metrics Metrics) *Tracker {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Tracker{
		log:       logger.InitLogger("delivery_tracker", logger.LevelDebug),
		store:     store,
		audit:     audit,
		transport: transport,
		policy:    policy,
		metrics:   metrics,
		queue:     make(chan models.Notification, 256),
	}
}

// Start launches the delivery worker pool. Workers drain until the context
// is cancelled; Wait blocks until in-flight deliveries finish.
func (t *Tracker) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case n, ok := <-t.queue:
					if !ok {
						return
					}
					t.Deliver(ctx, n)
				}
			}
		}()
	}
}

// Wait blocks until all workers have stopped.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// Submit enqueues a notification for delivery.
func (t *Tracker) Submit(n models.Notification) {
	t.queue <- n
}

// Deliver runs the full attempt loop for one notification and returns its
// final status. Exposed for the worker pool and for synchronous callers.
func (t *Tracker) Deliver(ctx context.Context, n models.Notification) models.NotificationStatus {
	lastSeq, err := t.store.LatestSeq(ctx, n.ID)
	if err != nil {
		t.log.Error(ctx, types.ActionDBQueryFailed, "failed to load attempt sequence", err,
			"notification_id", n.ID,
		)
		lastSeq = 0
	}

	for seq := lastSeq + 1; seq <= t.policy.MaxAttempts; seq++ {
		t.log.Debug(ctx, types.ActionDeliveryAttempt, "attempting delivery",
			"notification_id", n.ID,
			"channel", n.Channel,
			"seq", seq,
		)

		callCtx, cancel := context.WithTimeout(ctx, t.policy.ProviderTimeout)
		res, sendErr := t.transport.Send(callCtx, n.Channel, n.Recipient, n.Subject, n.Body)
		cancel()

		attempt := models.DeliveryAttempt{
			NotificationID: n.ID,
			Seq:            seq,
			AttemptedAt:    time.Now().UTC(),
		}

		switch {
		case sendErr == nil && res.Status == models.ProviderSent:
			attempt.Result = models.AttemptSent
			attempt.ProviderMessageID = res.ProviderMessageID
			if n.Channel == models.ChannelSMS {
				attempt.CostCents = res.CostCents
			}
			t.record(ctx, n, attempt, models.NotificationSent)
			t.metrics.IncAttempt(string(n.Channel), string(attempt.Result))
			t.metrics.IncOutcome(string(models.NotificationSent))
			t.log.Info(ctx, types.ActionDeliverySent, "notification handed to provider",
				"notification_id", n.ID,
				"provider_message_id", res.ProviderMessageID,
			)
			return models.NotificationSent

		case sendErr == nil && res.Status == models.ProviderFailedPermanent:
			// Bad destination: no amount of retrying will help.
			attempt.Result = models.AttemptBounced
			attempt.ErrorDetail = res.ErrorDetail
			t.record(ctx, n, attempt, models.NotificationFailedFinal)
			t.metrics.IncAttempt(string(n.Channel), string(attempt.Result))
			t.metrics.IncOutcome(string(models.NotificationFailedFinal))
			t.log.Error(ctx, types.ActionDeliveryFailedFinal, "permanent provider failure", models.ErrorPermanentDelivery,
				"notification_id", n.ID,
				"recipient", n.Recipient,
				"detail", res.ErrorDetail,
			)
			return models.NotificationFailedFinal

		default:
			// Transport error, timeout, or a transient provider status.
			attempt.Result = models.AttemptFailed
			if sendErr != nil {
				attempt.ErrorDetail = sendErr.Error()
			} else {
				attempt.ErrorDetail = res.ErrorDetail
			}
			t.metrics.IncAttempt(string(n.Channel), string(attempt.Result))

			if seq == t.policy.MaxAttempts {
				t.record(ctx, n, attempt, models.NotificationFailedFinal)
				t.metrics.IncOutcome(string(models.NotificationFailedFinal))
				t.log.Error(ctx, types.ActionDeliveryFailedFinal, "retry budget exhausted", models.ErrorTransientDelivery,
					"notification_id", n.ID,
					"attempts", seq,
				)
				return models.NotificationFailedFinal
			}

			t.record(ctx, n, attempt, models.NotificationRetrying)
			t.log.Debug(ctx, types.ActionDeliveryRetrying, "transient failure, scheduling retry",
				"notification_id", n.ID,
				"seq", seq,
				"backoff", t.backoff(seq).String(),
			)

			select {
			case <-ctx.Done():
				return models.NotificationRetrying
			case <-time.After(t.backoff(seq)):
			}
		}
	}

	return models.NotificationFailedFinal
}

// Recover re-submits notifications a previous run left pending or retrying.
// Call after Start so workers are draining the queue.
func (t *Tracker) Recover(ctx context.Context) error {
	unfinished, err := t.store.ListUnfinished(ctx)
	if err != nil {
		return err
	}
	for _, n := range unfinished {
		t.Submit(n)
	}
	if len(unfinished) > 0 {
		t.log.Info(ctx, types.ActionDeliveryRetrying, "re-queued unfinished notifications",
			"count", len(unfinished),
		)
	}
	return nil
}

// ConfirmDelivery promotes a sent notification to delivered when the
// provider reports a delivery callback.
func (t *Tracker) ConfirmDelivery(ctx context.Context, notificationID, providerMessageID string) error {
	now := time.Now().UTC()
	promoted, err := t.store.MarkDelivered(ctx, notificationID, now)
	if err != nil {
		return err
	}
	if !promoted {
		// Callback for a notification that is not in the sent state; the
		// audit record must keep following the live attempt loop.
		t.log.Debug(ctx, types.ActionDeliveryConfirmed, "delivery callback ignored, notification not in sent state",
			"notification_id", notificationID,
			"provider_message_id", providerMessageID,
		)
		return nil
	}
	if err := t.audit.UpdateStatus(ctx, notificationID, models.NotificationDelivered, ""); err != nil {
		t.log.Error(ctx, types.ActionAuditUpdated, "failed to update audit record on delivery confirmation", err,
			"notification_id", notificationID,
		)
	}
	t.metrics.IncOutcome(string(models.NotificationDelivered))
	t.log.Info(ctx, types.ActionDeliveryConfirmed, "delivery confirmed by provider",
		"notification_id", notificationID,
		"provider_message_id", providerMessageID,
	)
	return nil
}

// record persists the attempt with the resulting notification status, then
// brings the audit record up to date. Audit must never lag delivery state by
// more than one attempt, so both writes happen before the next attempt.
func (t *Tracker) record(ctx context.Context, n models.Notification, attempt models.DeliveryAttempt, status models.NotificationStatus) {
	if err := t.store.AppendAttempt(ctx, attempt, status); err != nil {
		t.log.Error(ctx, types.ActionDBTransactionFailed, "failed to record delivery attempt", err,
			"notification_id", n.ID,
			"seq", attempt.Seq,
		)
	}
	if err := t.audit.UpdateStatus(ctx, n.ID, status, attempt.ErrorDetail); err != nil {
		t.log.Error(ctx, types.ActionAuditUpdated, "failed to update audit record", err,
			"notification_id", n.ID,
			"status", status,
		)
	}
}

// backoff doubles per attempt and is capped at MaxBackoff.
func (t *Tracker) backoff(attempt int) time.Duration {
	d := t.policy.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= t.policy.MaxBackoff {
			return t.policy.MaxBackoff
		}
	}
	if d > t.policy.MaxBackoff {
		return t.policy.MaxBackoff
	}
	return d
}
