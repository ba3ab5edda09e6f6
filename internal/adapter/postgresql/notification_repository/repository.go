package notification_repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"costume-portal/internal/core/domain/models"
)

const uniqueViolation = "23505"

// NotificationRepository persists notifications and their delivery attempts.
// The unique dispatch key (order, stage, user, channel) makes re-dispatch of
// the same transition detectable.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n models.Notification) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications
			(id, order_number, organization_id, stage, user_id, channel, template_id, recipient, subject, body, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		n.ID, n.OrderNumber, n.OrganizationID, n.Stage, n.UserID, n.Channel,
		n.TemplateID, n.Recipient, n.Subject, n.Body, n.Status, n.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.ErrorAlreadyDispatched
		}
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// AppendAttempt records one attempt and moves the notification to the given
// status in the same transaction, keeping the sequence gap-free.
func (r *NotificationRepository) AppendAttempt(ctx context.Context, attempt models.DeliveryAttempt, status models.NotificationStatus) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO delivery_attempts
			(notification_id, seq, attempted_at, result, provider_message_id, error_detail, cost_cents)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)`,
		attempt.NotificationID, attempt.Seq, attempt.AttemptedAt, attempt.Result,
		attempt.ProviderMessageID, attempt.ErrorDetail, attempt.CostCents,
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery attempt: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE notifications SET status = $2 WHERE id = $1`,
		attempt.NotificationID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *NotificationRepository) LatestSeq(ctx context.Context, notificationID string) (int, error) {
	var seq int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM delivery_attempts WHERE notification_id = $1`,
		notificationID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest attempt seq: %w", err)
	}
	return seq, nil
}

// MarkDelivered promotes a sent notification to delivered and reports
// whether the promotion happened. Notifications in any other state are left
// untouched, so late, duplicate or premature callbacks change nothing.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, notificationID string, at time.Time) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE notifications SET status = $2 WHERE id = $1 AND status = $3`,
		notificationID, models.NotificationDelivered, models.NotificationSent,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx,
		`UPDATE delivery_attempts SET result = $2
		 WHERE notification_id = $1
		   AND seq = (SELECT MAX(seq) FROM delivery_attempts WHERE notification_id = $1)`,
		notificationID, models.AttemptDelivered,
	)
	if err != nil {
		return false, fmt.Errorf("failed to promote delivery attempt: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// ListUnfinished returns notifications whose delivery loop never finished,
// so a restarted worker can resume them.
func (r *NotificationRepository) ListUnfinished(ctx context.Context) ([]models.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_number, organization_id, stage, user_id, channel, template_id, recipient, subject, body, status, created_at
		 FROM notifications WHERE status IN ($1, $2) ORDER BY created_at`,
		models.NotificationPending, models.NotificationRetrying,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished notifications: %w", err)
	}
	defer rows.Close()

	var unfinished []models.Notification
	for rows.Next() {
		var n models.Notification
		err := rows.Scan(
			&n.ID, &n.OrderNumber, &n.OrganizationID, &n.Stage, &n.UserID, &n.Channel,
			&n.TemplateID, &n.Recipient, &n.Subject, &n.Body, &n.Status, &n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		unfinished = append(unfinished, n)
	}
	return unfinished, rows.Err()
}

func (r *NotificationRepository) GetNotification(ctx context.Context, notificationID string) (models.Notification, error) {
	var n models.Notification
	err := r.pool.QueryRow(ctx,
		`SELECT id, order_number, organization_id, stage, user_id, channel, template_id, recipient, subject, body, status, created_at
		 FROM notifications WHERE id = $1`,
		notificationID,
	).Scan(
		&n.ID, &n.OrderNumber, &n.OrganizationID, &n.Stage, &n.UserID, &n.Channel,
		&n.TemplateID, &n.Recipient, &n.Subject, &n.Body, &n.Status, &n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Notification{}, fmt.Errorf("notification not found")
		}
		return models.Notification{}, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}
