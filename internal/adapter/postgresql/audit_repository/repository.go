package audit_repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"costume-portal/internal/core/domain/models"
)

// AuditRepository is the postgres-backed communication audit projection.
// Rows are appended at dispatch time, only their status/error fields change
// afterwards, and terminal rows are frozen by the update predicate.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Append(ctx context.Context, rec models.CommunicationAuditRecord) error {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO communication_audit
			(id, notification_id, organization_id, order_number, stage, user_id, channel,
			 recipient, subject, body, status, error_detail, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14, $15)`,
		rec.ID, rec.NotificationID, rec.OrganizationID, rec.OrderNumber, rec.Stage,
		rec.UserID, rec.Channel, rec.Recipient, rec.Subject, rec.Body, rec.Status,
		rec.ErrorDetail, metadata, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	return nil
}

// UpdateStatus advances the record status unless it already reached a
// terminal state.
func (r *AuditRepository) UpdateStatus(ctx context.Context, notificationID string, status models.NotificationStatus, errorDetail string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE communication_audit SET
			status = $2,
			error_detail = NULLIF($3, ''),
			updated_at = now()
		 WHERE notification_id = $1
		   AND status NOT IN ($4, $5)`,
		notificationID, status, errorDetail,
		models.NotificationDelivered, models.NotificationFailedFinal,
	)
	if err != nil {
		return fmt.Errorf("failed to update audit status: %w", err)
	}

	return nil
}

// whereClause builds the filter shared by search, count, summaries and
// streaming so every query surface agrees on what "matching" means.
func whereClause(criteria models.SearchCriteria) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if criteria.OrganizationID != "" {
		add("organization_id = $%d", criteria.OrganizationID)
	}
	if criteria.OrderNumber != "" {
		add("order_number = $%d", criteria.OrderNumber)
	}
	if !criteria.From.IsZero() {
		add("created_at >= $%d", criteria.From)
	}
	if !criteria.To.IsZero() {
		add("created_at <= $%d", criteria.To)
	}
	if criteria.Channel != "" {
		add("channel = $%d", string(criteria.Channel))
	}
	if criteria.Status != "" {
		add("status = $%d", string(criteria.Status))
	}
	if criteria.FreeText != "" {
		args = append(args, "%"+criteria.FreeText+"%")
		conds = append(conds, fmt.Sprintf("(subject ILIKE $%d OR body ILIKE $%d)", len(args), len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const auditColumns = `
	id, notification_id, organization_id, order_number, stage, user_id, channel,
	recipient, subject, body, status, COALESCE(error_detail, ''), metadata, created_at, updated_at
`

// Both read paths return matching records newest first.
const (
	searchPageQuery = `SELECT %s FROM communication_audit%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`
	streamQuery     = `SELECT %s FROM communication_audit%s ORDER BY created_at DESC`
)

func scanRecord(rows pgx.Rows) (models.CommunicationAuditRecord, error) {
	var rec models.CommunicationAuditRecord
	var metadata []byte

	err := rows.Scan(
		&rec.ID, &rec.NotificationID, &rec.OrganizationID, &rec.OrderNumber, &rec.Stage,
		&rec.UserID, &rec.Channel, &rec.Recipient, &rec.Subject, &rec.Body, &rec.Status,
		&rec.ErrorDetail, &metadata, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return models.CommunicationAuditRecord{}, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return models.CommunicationAuditRecord{}, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}

	return rec, nil
}

// Search returns one page of matching records newest first, plus the total
// and per-status counts for the whole filtered set.
func (r *AuditRepository) Search(ctx context.Context, criteria models.SearchCriteria) (models.SearchResult, error) {
	where, args := whereClause(criteria)

	result := models.SearchResult{
		StatusSummary: make(map[models.NotificationStatus]int),
	}

	// Total + per-status summary over the full filtered set.
	summaryQuery := `SELECT status, COUNT(*) FROM communication_audit` + where + ` GROUP BY status`
	rows, err := r.pool.Query(ctx, summaryQuery, args...)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("failed to query status summary: %w", err)
	}
	for rows.Next() {
		var status models.NotificationStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return models.SearchResult{}, fmt.Errorf("failed to scan summary row: %w", err)
		}
		result.StatusSummary[status] = count
		result.Total += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.SearchResult{}, fmt.Errorf("error iterating summary rows: %w", err)
	}

	page := criteria.Page
	if page < 1 {
		page = 1
	}
	pageSize := criteria.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	pageArgs := append(args, pageSize, (page-1)*pageSize)
	pageQuery := fmt.Sprintf(searchPageQuery, auditColumns, where, len(args)+1, len(args)+2)

	rows, err = r.pool.Query(ctx, pageQuery, pageArgs...)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return models.SearchResult{}, fmt.Errorf("failed to scan audit row: %w", err)
		}
		result.Records = append(result.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return models.SearchResult{}, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return result, nil
}

// Summarize aggregates by status and channel inside [from, to]. The
// created_at index keeps the scan inside the window.
func (r *AuditRepository) Summarize(ctx context.Context, orgID string, from, to time.Time) (models.AuditSummary, error) {
	summary := models.AuditSummary{
		OrganizationID: orgID,
		From:           from,
		To:             to,
		ByStatus:       make(map[models.NotificationStatus]int),
		ByChannel:      make(map[models.Channel]int),
	}

	rows, err := r.pool.Query(ctx,
		`SELECT status, channel, COUNT(*)
		 FROM communication_audit
		 WHERE organization_id = $1 AND created_at >= $2 AND created_at <= $3
		 GROUP BY status, channel`,
		orgID, from, to,
	)
	if err != nil {
		return models.AuditSummary{}, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status models.NotificationStatus
		var channel models.Channel
		var count int
		if err := rows.Scan(&status, &channel, &count); err != nil {
			return models.AuditSummary{}, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary.ByStatus[status] += count
		summary.ByChannel[channel] += count
		summary.Total += count
	}
	if err := rows.Err(); err != nil {
		return models.AuditSummary{}, fmt.Errorf("error iterating summary rows: %w", err)
	}

	return summary, nil
}

func (r *AuditRepository) Count(ctx context.Context, criteria models.SearchCriteria) (int, error) {
	where, args := whereClause(criteria)

	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM communication_audit`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}

// Stream walks every matching record newest first without loading the set
// into memory.
func (r *AuditRepository) Stream(ctx context.Context, criteria models.SearchCriteria, fn func(models.CommunicationAuditRecord) error) error {
	where, args := whereClause(criteria)
	query := fmt.Sprintf(streamQuery, auditColumns, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to stream audit records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return fmt.Errorf("failed to scan audit row: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}
