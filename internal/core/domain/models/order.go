package models

import "time"

// Stage is one of the fixed steps in the costume manufacturing workflow.
type Stage string

const (
	StageConsultation   Stage = "consultation"
	StageMeasurements   Stage = "measurements"
	StageDesignApproval Stage = "design_approval"
	StageFabricSourcing Stage = "fabric_sourcing"
	StagePatternMaking  Stage = "pattern_making"
	StageCutting        Stage = "cutting"
	StageSewing         Stage = "sewing"
	StageFirstFitting   Stage = "first_fitting"
	StageAlterations    Stage = "alterations"
	StageFinalFitting   Stage = "final_fitting"
	StageFinishing      Stage = "finishing"
	StageQualityCheck   Stage = "quality_check"
	StageShipped        Stage = "shipped"
)

// StageSequence is the canonical manufacturing order. Transitions are
// validated against positions in this slice.
var StageSequence = []Stage{
	StageConsultation,
	StageMeasurements,
	StageDesignApproval,
	StageFabricSourcing,
	StagePatternMaking,
	StageCutting,
	StageSewing,
	StageFirstFitting,
	StageAlterations,
	StageFinalFitting,
	StageFinishing,
	StageQualityCheck,
	StageShipped,
}

// StageIndex returns the position of a stage in the sequence, or -1 for an
// unknown stage name.
func StageIndex(s Stage) int {
	for i, stage := range StageSequence {
		if stage == s {
			return i
		}
	}
	return -1
}

// Order is the workflow view of a costume order.
type Order struct {
	ID               int                `json:"id"`
	Number           string             `json:"order_number"`
	OrganizationID   string             `json:"organization_id"`
	Description      string             `json:"description"`
	CurrentStage     Stage              `json:"current_stage"`
	OriginalShipDate time.Time          `json:"original_ship_date"`
	CurrentShipDate  time.Time          `json:"current_ship_date"`
	Active           bool               `json:"active"`
	History          []StageHistoryItem `json:"history,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// StageHistoryItem is one entry in an order's stage history. Reverts are
// recorded as their own entries with the reason preserved.
type StageHistoryItem struct {
	Stage     Stage     `json:"stage"`
	EnteredAt time.Time `json:"entered_at"`
	Actor     string    `json:"actor"`
	IsRevert  bool      `json:"is_revert,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// StageTransitioned is published after a stage change commits. The dispatch
// worker consumes it to fan out notifications.
type StageTransitioned struct {
	OrderNumber    string    `json:"order_number"`
	OrganizationID string    `json:"organization_id"`
	FromStage      Stage     `json:"from_stage"`
	ToStage        Stage     `json:"to_stage"`
	Actor          string    `json:"actor"`
	IsRevert       bool      `json:"is_revert"`
	TransitionedAt time.Time `json:"transitioned_at"`
}

// TransitionRequest is the payload for advance and revert calls.
type TransitionRequest struct {
	TargetStage Stage  `json:"target_stage"`
	Actor       string `json:"actor"`
	StaffRole   bool   `json:"staff_role"`
	Reason      string `json:"reason,omitempty"`
}
