package stage

import (
	"context"
	"errors"
	"strings"
	"time"

	"costume-portal/internal/core/domain/models"
	"costume-portal/internal/core/domain/types"
	"costume-portal/internal/core/port"
	"costume-portal/pkg/logger"
)

// Service enforces the manufacturing workflow: forward advances may skip
// stages, reverts are a staff-only correction with a mandatory reason, and
// every accepted transition is committed before its event is published.
type Service struct {
	log logger.Logger
	db  port.OrderRepository
	pub port.TransitionPublisher
}

func NewStageService(db port.OrderRepository, pub port.TransitionPublisher) *Service {
	return &Service{
		log: logger.InitLogger("stage_machine", logger.LevelDebug),
		db:  db,
		pub: pub,
	}
}

// Advance moves an order to a strictly later stage.
func (svc *Service) Advance(ctx context.Context, orderNumber string, req models.TransitionRequest) (models.Order, error) {
	return svc.transition(ctx, orderNumber, req, false)
}

// Revert moves an order back to an earlier stage. Staff only, reason
// required.
func (svc *Service) Revert(ctx context.Context, orderNumber string, req models.TransitionRequest) (models.Order, error) {
	if !req.StaffRole {
		svc.log.Debug(ctx, types.ActionTransitionRejected, "revert requires staff authority",
			"order_number", orderNumber,
			"actor", req.Actor,
		)
		return models.Order{}, models.ErrorStaffOnly
	}
	if strings.TrimSpace(req.Reason) == "" {
		svc.log.Debug(ctx, types.ActionTransitionRejected, "revert requires a reason",
			"order_number", orderNumber,
			"actor", req.Actor,
		)
		return models.Order{}, models.ErrorRevertNeedsReason
	}
	return svc.transition(ctx, orderNumber, req, true)
}

func (svc *Service) transition(ctx context.Context, orderNumber string, req models.TransitionRequest, isRevert bool) (models.Order, error) {
	targetIdx := models.StageIndex(req.TargetStage)
	if targetIdx < 0 {
		return models.Order{}, models.ErrorValidationFailed
	}
	if strings.TrimSpace(req.Actor) == "" {
		return models.Order{}, models.ErrorValidationFailed
	}

	order, err := svc.db.GetOrder(ctx, orderNumber)
	if err != nil {
		return models.Order{}, err
	}

	currentIdx := models.StageIndex(order.CurrentStage)

	if isRevert {
		if targetIdx >= currentIdx {
			svc.log.Debug(ctx, types.ActionTransitionRejected, "revert target must precede current stage",
				"order_number", orderNumber,
				"current_stage", order.CurrentStage,
				"target_stage", req.TargetStage,
			)
			return models.Order{}, models.ErrorInvalidTransition
		}
	} else {
		if targetIdx <= currentIdx {
			svc.log.Debug(ctx, types.ActionTransitionRejected, "advance target must follow current stage",
				"order_number", orderNumber,
				"current_stage", order.CurrentStage,
				"target_stage", req.TargetStage,
			)
			return models.Order{}, models.ErrorInvalidTransition
		}
	}

	now := time.Now().UTC()
	entry := models.StageHistoryItem{
		Stage:     req.TargetStage,
		EnteredAt: now,
		Actor:     req.Actor,
		IsRevert:  isRevert,
		Reason:    req.Reason,
	}

	if err := svc.db.TransitionStage(ctx, orderNumber, order.CurrentStage, entry); err != nil {
		if errors.Is(err, models.ErrorInvalidTransition) || errors.Is(err, models.ErrorOrderNotFound) {
			svc.log.Debug(ctx, types.ActionTransitionRejected, "order changed while the transition was being validated",
				"order_number", orderNumber,
				"target_stage", req.TargetStage,
			)
			return models.Order{}, err
		}
		svc.log.Error(ctx, types.ActionDBTransactionFailed, "failed to commit stage transition", err,
			"order_number", orderNumber,
			"target_stage", req.TargetStage,
		)
		return models.Order{}, models.ErrorDbTransactionFailed
	}

	action := types.ActionStageAdvanced
	if isRevert {
		action = types.ActionStageReverted
	}
	svc.log.Info(ctx, action, "stage transition committed",
		"order_number", orderNumber,
		"from_stage", order.CurrentStage,
		"to_stage", req.TargetStage,
		"actor", req.Actor,
	)

	event := models.StageTransitioned{
		OrderNumber:    order.Number,
		OrganizationID: order.OrganizationID,
		FromStage:      order.CurrentStage,
		ToStage:        req.TargetStage,
		Actor:          req.Actor,
		IsRevert:       isRevert,
		TransitionedAt: now,
	}

	// The transition is already committed; a publish failure is reported
	// through logs and the audit trail, not to the caller.
	if err := svc.pub.PublishStageTransitioned(ctx, event); err != nil {
		svc.log.Error(ctx, types.ActionRabbitmqPublishFailed, "failed to publish stage transition", err,
			"order_number", orderNumber,
			"to_stage", req.TargetStage,
		)
	} else {
		svc.log.Debug(ctx, types.ActionTransitionPublished, "stage transition published",
			"order_number", orderNumber,
			"to_stage", req.TargetStage,
		)
	}

	order.CurrentStage = req.TargetStage
	order.UpdatedAt = now
	order.History = append(order.History, entry)

	return order, nil
}
