package temporal

import (
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// Register wires the workflow and every activity onto a worker.
func Register(w worker.Registry, activities *Activities) {
	w.RegisterWorkflowWithOptions(LoanUnderwritingWorkflow, workflow.RegisterOptions{Name: LoanUnderwritingWorkflowName})
	w.RegisterActivity(activities)
}
