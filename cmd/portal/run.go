package portal

import (
	"fmt"

	"costume-portal/internal/app/audit"
	"costume-portal/internal/app/dispatch"
	"costume-portal/internal/app/workflow"
	"costume-portal/internal/core/domain/types"
	"costume-portal/pkg/flags"
)

// Run initializes and starts the appropriate service based on the mode flag
func Run() {
	flags.ParseFlag()

	switch *flags.Mode {
	case types.ModeWorkflowService:
		app := workflow.NewWorkflowApp()
		app.Start()

	case types.ModeDispatchWorker:
		app := dispatch.NewDispatchApp()
		app.Start()

	case types.ModeAuditService:
		app := audit.NewAuditApp()
		app.Start()

	default:
		fmt.Printf("unknown mode %q: expected %s, %s or %s\n",
			*flags.Mode, types.ModeWorkflowService, types.ModeDispatchWorker, types.ModeAuditService)
	}
}
