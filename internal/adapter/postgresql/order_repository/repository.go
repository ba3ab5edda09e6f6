package order_repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"costume-portal/internal/core/domain/models"
)

// OrderRepository persists orders and their stage history.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetOrder returns the order without history.
func (r *OrderRepository) GetOrder(ctx context.Context, number string) (models.Order, error) {
	query := `
		SELECT
			id, number, organization_id, description, current_stage,
			original_ship_date, current_ship_date, active, created_at, updated_at
		FROM orders
		WHERE number = $1
	`

	var o models.Order
	err := r.pool.QueryRow(ctx, query, number).Scan(
		&o.ID,
		&o.Number,
		&o.OrganizationID,
		&o.Description,
		&o.CurrentStage,
		&o.OriginalShipDate,
		&o.CurrentShipDate,
		&o.Active,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, models.ErrorOrderNotFound
		}
		return models.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	return o, nil
}

// GetHistory returns the stage history oldest first.
func (r *OrderRepository) GetHistory(ctx context.Context, number string) ([]models.StageHistoryItem, error) {
	query := `
		SELECT
			osl.stage,
			osl.entered_at,
			osl.actor,
			osl.is_revert,
			COALESCE(osl.reason, '')
		FROM orders o
		JOIN order_stage_log osl ON o.id = osl.order_id
		WHERE o.number = $1
		ORDER BY osl.entered_at ASC
	`

	rows, err := r.pool.Query(ctx, query, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get order history: %w", err)
	}
	defer rows.Close()

	var history []models.StageHistoryItem
	for rows.Next() {
		var item models.StageHistoryItem
		if err := rows.Scan(&item.Stage, &item.EnteredAt, &item.Actor, &item.IsRevert, &item.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		history = append(history, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}

	if len(history) == 0 {
		return nil, models.ErrorOrderNotFound
	}

	return history, nil
}

// TransitionStage atomically updates the current stage and appends the
// history entry. The row lock serializes concurrent transitions and the
// from-stage check rejects the loser: validation done against a read taken
// before the lock does not count.
func (r *OrderRepository) TransitionStage(ctx context.Context, number string, from models.Stage, entry models.StageHistoryItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var orderID int
	var currentStage models.Stage
	err = tx.QueryRow(ctx,
		`SELECT id, current_stage FROM orders WHERE number = $1 FOR UPDATE`,
		number,
	).Scan(&orderID, &currentStage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrorOrderNotFound
		}
		return fmt.Errorf("failed to lock order: %w", err)
	}

	if currentStage != from {
		err = models.ErrorInvalidTransition
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET current_stage = $2, updated_at = now() WHERE id = $1 AND current_stage = $3`,
		orderID, entry.Stage, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update order stage: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO order_stage_log (order_id, stage, entered_at, actor, is_revert, reason)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`,
		orderID, entry.Stage, entry.EnteredAt, entry.Actor, entry.IsRevert, entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to log stage transition: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
