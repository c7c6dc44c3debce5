package extension

import "time"

// Config holds the assetledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.assetledger" or "assetledger" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start. Workflow recovery
	// and plugin initialization still run.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// ThresholdLimit is the number of balance events after which a
	// ThresholdReached event is emitted (default: 1000).
	ThresholdLimit int `json:"threshold_limit" mapstructure:"threshold_limit" yaml:"threshold_limit"`

	// MaxAppendRetries bounds how often a command is retried after a
	// concurrency conflict (default: 5).
	MaxAppendRetries int `json:"max_append_retries" mapstructure:"max_append_retries" yaml:"max_append_retries"`

	// StepTimeout bounds every workflow step (default: 30s).
	StepTimeout time.Duration `json:"step_timeout" mapstructure:"step_timeout" yaml:"step_timeout"`

	// ParallelCompensation runs the compensations of a failed workflow
	// concurrently instead of in reverse order.
	ParallelCompensation bool `json:"parallel_compensation" mapstructure:"parallel_compensation" yaml:"parallel_compensation"`

	// ContinueOnCompensationError keeps compensating the remaining steps
	// when one compensation fails.
	ContinueOnCompensationError bool `json:"continue_on_compensation_error" mapstructure:"continue_on_compensation_error" yaml:"continue_on_compensation_error"`

	// SnapshotInterval is the number of balance events between snapshots.
	// Only used when a snapshot store is configured (default: 100).
	SnapshotInterval int `json:"snapshot_interval" mapstructure:"snapshot_interval" yaml:"snapshot_interval"`

	// PluginTimeout bounds every plugin hook invocation (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ThresholdLimit:   1000,
		MaxAppendRetries: 5,
		StepTimeout:      30 * time.Second,
		SnapshotInterval: 100,
		PluginTimeout:    5 * time.Second,
	}
}
