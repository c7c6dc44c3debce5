package extension

import (
	"time"

	"github.com/xraph/assetledger"
	"github.com/xraph/assetledger/plugin"
	"github.com/xraph/assetledger/snapshot"
	"github.com/xraph/assetledger/store"
)

// Option configures the assetledger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithSnapshotStore enables balance snapshots backed by s.
func WithSnapshotStore(s snapshot.Store) Option {
	return func(e *Extension) {
		e.snapshots = s
	}
}

// WithLedgerOption passes an assetledger.Option through to the underlying engine.
func WithLedgerOption(opt assetledger.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, assetledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start. Workflow recovery
// still runs.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithThresholdLimit sets the balance event count that triggers a threshold event.
func WithThresholdLimit(n int) Option {
	return func(e *Extension) { e.config.ThresholdLimit = n }
}

// WithMaxAppendRetries sets the conflict retry bound.
func WithMaxAppendRetries(n int) Option {
	return func(e *Extension) { e.config.MaxAppendRetries = n }
}

// WithStepTimeout sets the per-step workflow timeout.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.StepTimeout = d }
}

// WithParallelCompensation runs compensations concurrently.
func WithParallelCompensation() Option {
	return func(e *Extension) { e.config.ParallelCompensation = true }
}

// WithContinueOnCompensationError keeps compensating after a failed compensation.
func WithContinueOnCompensationError() Option {
	return func(e *Extension) { e.config.ContinueOnCompensationError = true }
}

// WithSnapshotInterval sets the number of balance events between snapshots.
func WithSnapshotInterval(n int) Option {
	return func(e *Extension) { e.config.SnapshotInterval = n }
}
