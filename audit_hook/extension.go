// Package audithook bridges ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/assetledger/account"
	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/plugin"
	"github.com/xraph/assetledger/transfer"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnAccountCreated    = (*Extension)(nil)
	_ plugin.OnAccountFrozen     = (*Extension)(nil)
	_ plugin.OnAccountUnfrozen   = (*Extension)(nil)
	_ plugin.OnAccountDeleted    = (*Extension)(nil)
	_ plugin.OnLimitHit          = (*Extension)(nil)
	_ plugin.OnThresholdReached  = (*Extension)(nil)
	_ plugin.OnTransferRecorded  = (*Extension)(nil)
	_ plugin.OnWorkflowCompleted = (*Extension)(nil)
	_ plugin.OnWorkflowFailed    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (e *Extension) OnAccountCreated(ctx context.Context, acct *account.Account) error {
	return e.record(ctx, ActionAccountCreated, SeverityInfo, OutcomeSuccess,
		ResourceAccount, acct.ID, CategoryLifecycle, nil,
		"owner", acct.Owner,
	)
}

// OnAccountFrozen implements plugin.OnAccountFrozen.
func (e *Extension) OnAccountFrozen(ctx context.Context, acct *account.Account) error {
	return e.record(ctx, ActionAccountFrozen, SeverityWarning, OutcomeSuccess,
		ResourceAccount, acct.ID, CategoryCompliance, nil,
		"reason", acct.FrozenReason,
		"actor", acct.FrozenBy,
	)
}

// OnAccountUnfrozen implements plugin.OnAccountUnfrozen.
func (e *Extension) OnAccountUnfrozen(ctx context.Context, acct *account.Account) error {
	return e.record(ctx, ActionAccountUnfrozen, SeverityInfo, OutcomeSuccess,
		ResourceAccount, acct.ID, CategoryCompliance, nil,
	)
}

// OnAccountDeleted implements plugin.OnAccountDeleted.
func (e *Extension) OnAccountDeleted(ctx context.Context, acct *account.Account) error {
	return e.record(ctx, ActionAccountDeleted, SeverityWarning, OutcomeSuccess,
		ResourceAccount, acct.ID, CategoryLifecycle, nil,
		"owner", acct.Owner,
	)
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnLimitHit implements plugin.OnLimitHit.
func (e *Extension) OnLimitHit(ctx context.Context, accountID, asset string, requested, available int64) error {
	return e.record(ctx, ActionLimitHit, SeverityWarning, OutcomeFailure,
		ResourceBalance, accountID, CategoryFunds, nil,
		"asset", asset,
		"requested", requested,
		"available", available,
	)
}

// OnThresholdReached implements plugin.OnThresholdReached.
func (e *Extension) OnThresholdReached(ctx context.Context, stream event.Stream, limit int) error {
	return e.record(ctx, ActionThresholdReached, SeverityInfo, OutcomeSuccess,
		string(stream.Type), stream.ID, CategoryCompliance, nil,
		"limit", limit,
	)
}

// ──────────────────────────────────────────────────
// Transfer and workflow hooks
// ──────────────────────────────────────────────────

// OnTransferRecorded implements plugin.OnTransferRecorded.
func (e *Extension) OnTransferRecorded(ctx context.Context, rec *transfer.Record) error {
	return e.record(ctx, ActionTransferRecorded, SeverityInfo, OutcomeSuccess,
		ResourceTransfer, rec.TransferID, CategoryFunds, nil,
		"from", rec.From,
		"to", rec.To,
		"asset", rec.Asset,
		"amount", rec.Amount,
		"hash", rec.Hash,
		"workflow_id", rec.WorkflowID,
	)
}

// OnWorkflowCompleted implements plugin.OnWorkflowCompleted.
func (e *Extension) OnWorkflowCompleted(ctx context.Context, workflowID, kind string, elapsed time.Duration) error {
	return e.record(ctx, ActionWorkflowCompleted, SeverityInfo, OutcomeSuccess,
		ResourceWorkflow, workflowID, CategoryWorkflow, nil,
		"kind", kind,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnWorkflowFailed implements plugin.OnWorkflowFailed. A failed rollback is
// recorded separately at critical severity.
func (e *Extension) OnWorkflowFailed(ctx context.Context, workflowID, kind string, cause, compensationErr error) error {
	if compensationErr != nil {
		_ = e.record(ctx, ActionCompensationFailed, SeverityCritical, OutcomePartial, //nolint:errcheck // record never fails
			ResourceWorkflow, workflowID, CategoryWorkflow, compensationErr,
			"kind", kind,
		)
	}
	return e.record(ctx, ActionWorkflowFailed, SeverityError, OutcomeFailure,
		ResourceWorkflow, workflowID, CategoryWorkflow, cause,
		"kind", kind,
		"compensated", compensationErr == nil,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
