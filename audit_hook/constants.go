package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountCreated  = "account.created"
	ActionAccountFrozen   = "account.frozen"
	ActionAccountUnfrozen = "account.unfrozen"
	ActionAccountDeleted  = "account.deleted"

	// Balance actions
	ActionLimitHit         = "balance.limit_hit"
	ActionThresholdReached = "balance.threshold_reached"

	// Transfer actions
	ActionTransferRecorded = "transfer.recorded"

	// Workflow actions
	ActionWorkflowCompleted  = "workflow.completed"
	ActionWorkflowFailed     = "workflow.failed"
	ActionCompensationFailed = "workflow.compensation_failed"
)

// Resource constants for audit events.
const (
	ResourceAccount  = "account"
	ResourceBalance  = "balance"
	ResourceTransfer = "transfer"
	ResourceWorkflow = "workflow"
)

// Category constants for audit events.
const (
	CategoryLifecycle  = "lifecycle"
	CategoryFunds      = "funds"
	CategoryCompliance = "compliance"
	CategoryWorkflow   = "workflow"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
