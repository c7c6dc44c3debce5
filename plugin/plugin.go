// Package plugin provides an extensible plugin system for the ledger.
// Plugins hook into account, balance, transfer and workflow events to add
// auditing, metrics and event publishing without touching the engine.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/assetledger/account"
	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/transfer"
	"github.com/xraph/assetledger/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Event log hooks
// ──────────────────────────────────────────────────

// OnEventsAppended is called after a batch of events was durably appended.
type OnEventsAppended interface {
	Plugin
	OnEventsAppended(ctx context.Context, stream event.Stream, events []*event.Event) error
}

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated is called when an account is opened.
type OnAccountCreated interface {
	Plugin
	OnAccountCreated(ctx context.Context, acct *account.Account) error
}

// OnAccountFrozen is called when an account is frozen.
type OnAccountFrozen interface {
	Plugin
	OnAccountFrozen(ctx context.Context, acct *account.Account) error
}

// OnAccountUnfrozen is called when an account is unfrozen.
type OnAccountUnfrozen interface {
	Plugin
	OnAccountUnfrozen(ctx context.Context, acct *account.Account) error
}

// OnAccountDeleted is called when an account is marked deleted.
type OnAccountDeleted interface {
	Plugin
	OnAccountDeleted(ctx context.Context, acct *account.Account) error
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnBalanceChanged is called after a credit or debit. delta is negative for debits.
type OnBalanceChanged interface {
	Plugin
	OnBalanceChanged(ctx context.Context, accountID, asset string, delta, balance int64) error
}

// OnLimitHit is called when a debit was rejected for insufficient funds.
type OnLimitHit interface {
	Plugin
	OnLimitHit(ctx context.Context, accountID, asset string, requested, available int64) error
}

// OnThresholdReached is called when a stream emitted a threshold event.
type OnThresholdReached interface {
	Plugin
	OnThresholdReached(ctx context.Context, stream event.Stream, limit int) error
}

// ──────────────────────────────────────────────────
// Transfer and workflow hooks
// ──────────────────────────────────────────────────

// OnTransferRecorded is called when a transfer workflow completed.
type OnTransferRecorded interface {
	Plugin
	OnTransferRecorded(ctx context.Context, rec *transfer.Record) error
}

// OnWorkflowCompleted is called when a workflow completed.
type OnWorkflowCompleted interface {
	Plugin
	OnWorkflowCompleted(ctx context.Context, workflowID, kind string, elapsed time.Duration) error
}

// OnWorkflowFailed is called when a workflow failed. compensationErr is
// non-nil when the rollback itself did not finish.
type OnWorkflowFailed interface {
	Plugin
	OnWorkflowFailed(ctx context.Context, workflowID, kind string, cause, compensationErr error) error
}

// ──────────────────────────────────────────────────
// Asset providers
// ──────────────────────────────────────────────────

// AssetProvider contributes asset definitions to the ledger's registry.
type AssetProvider interface {
	Plugin
	Assets() []types.Asset
}
