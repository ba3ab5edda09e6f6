package types

// Run modes selected by the -mode flag.
const (
	ModeWorkflowService = "workflow"
	ModeDispatchWorker  = "dispatch"
	ModeAuditService    = "audit"
)
