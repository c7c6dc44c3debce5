// Package extension provides the Forge extension adapter for assetledger.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.assetledger" or
// "assetledger" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/assetledger"
	"github.com/xraph/assetledger/snapshot"
	"github.com/xraph/assetledger/store"
	"github.com/xraph/assetledger/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "assetledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Event-sourced multi-asset ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *assetledger.Ledger
	store      store.Store
	snapshots  snapshot.Store
	ledgerOpts []assetledger.Option
}

// New creates a new assetledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *assetledger.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	e.buildEngine()

	return vessel.Provide(fapp.Container(), func() (*assetledger.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("assetledger: extension not initialized")
	}

	// DisableMigrate only skips migrations; plugins and workflow recovery
	// still start.
	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	defer e.MarkStopped()
	if e.engine == nil {
		return nil
	}
	return e.engine.Stop()
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("assetledger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngine creates the ledger from the resolved config, on the memory
// store unless one was provided.
func (e *Extension) buildEngine() {
	if e.store == nil {
		e.store = memory.New()
	}
	e.engine = assetledger.New(e.store, e.buildLedgerOpts()...)
}

// buildLedgerOpts constructs assetledger.Option values from the resolved
// config. Pass-through options come last so they win.
func (e *Extension) buildLedgerOpts() []assetledger.Option {
	return buildLedgerOpts(e.config, e.snapshots, e.ledgerOpts)
}

func buildLedgerOpts(cfg Config, snapshots snapshot.Store, extra []assetledger.Option) []assetledger.Option {
	opts := make([]assetledger.Option, 0, len(extra)+8)

	opts = append(opts,
		assetledger.WithThresholdLimit(cfg.ThresholdLimit),
		assetledger.WithMaxAppendRetries(cfg.MaxAppendRetries),
		assetledger.WithStepTimeout(cfg.StepTimeout),
		assetledger.WithPluginTimeout(cfg.PluginTimeout),
		assetledger.WithParallelCompensation(cfg.ParallelCompensation),
		assetledger.WithContinueOnCompensationError(cfg.ContinueOnCompensationError),
	)
	if snapshots != nil {
		opts = append(opts, assetledger.WithSnapshots(snapshots, cfg.SnapshotInterval))
	}
	if cfg.DisableMigrate {
		opts = append(opts, assetledger.WithoutMigrate())
	}

	return append(opts, extra...)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("assetledger: configuration is required but not found in config files; " +
				"ensure 'extensions.assetledger' or 'assetledger' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("assetledger: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("threshold_limit", e.config.ThresholdLimit),
		forge.F("max_append_retries", e.config.MaxAppendRetries),
		forge.F("step_timeout", e.config.StepTimeout),
		forge.F("parallel_compensation", e.config.ParallelCompensation),
		forge.F("snapshot_interval", e.config.SnapshotInterval),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.assetledger", "assetledger"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("assetledger: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("assetledger: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.ThresholdLimit <= 0 {
		cfg.ThresholdLimit = defaults.ThresholdLimit
	}
	if cfg.MaxAppendRetries <= 0 {
		cfg.MaxAppendRetries = defaults.MaxAppendRetries
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = defaults.StepTimeout
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = defaults.SnapshotInterval
	}
	if cfg.PluginTimeout <= 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.ParallelCompensation {
		yamlConfig.ParallelCompensation = true
	}
	if programmaticConfig.ContinueOnCompensationError {
		yamlConfig.ContinueOnCompensationError = true
	}

	if yamlConfig.ThresholdLimit == 0 {
		yamlConfig.ThresholdLimit = programmaticConfig.ThresholdLimit
	}
	if yamlConfig.MaxAppendRetries == 0 {
		yamlConfig.MaxAppendRetries = programmaticConfig.MaxAppendRetries
	}
	if yamlConfig.StepTimeout == 0 {
		yamlConfig.StepTimeout = programmaticConfig.StepTimeout
	}
	if yamlConfig.SnapshotInterval == 0 {
		yamlConfig.SnapshotInterval = programmaticConfig.SnapshotInterval
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}

	return mergeWithDefaults(yamlConfig)
}
