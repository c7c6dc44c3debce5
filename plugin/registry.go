package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/assetledger/account"
	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/transfer"
)

// DefaultTimeout bounds every plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onEventsAppended    []OnEventsAppended
	onAccountCreated    []OnAccountCreated
	onAccountFrozen     []OnAccountFrozen
	onAccountUnfrozen   []OnAccountUnfrozen
	onAccountDeleted    []OnAccountDeleted
	onBalanceChanged    []OnBalanceChanged
	onLimitHit          []OnLimitHit
	onThresholdReached  []OnThresholdReached
	onTransferRecorded  []OnTransferRecorded
	onWorkflowCompleted []OnWorkflowCompleted
	onWorkflowFailed    []OnWorkflowFailed
	assetProviders      []AssetProvider
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnEventsAppended); ok {
		r.onEventsAppended = append(r.onEventsAppended, v)
	}
	if v, ok := p.(OnAccountCreated); ok {
		r.onAccountCreated = append(r.onAccountCreated, v)
	}
	if v, ok := p.(OnAccountFrozen); ok {
		r.onAccountFrozen = append(r.onAccountFrozen, v)
	}
	if v, ok := p.(OnAccountUnfrozen); ok {
		r.onAccountUnfrozen = append(r.onAccountUnfrozen, v)
	}
	if v, ok := p.(OnAccountDeleted); ok {
		r.onAccountDeleted = append(r.onAccountDeleted, v)
	}
	if v, ok := p.(OnBalanceChanged); ok {
		r.onBalanceChanged = append(r.onBalanceChanged, v)
	}
	if v, ok := p.(OnLimitHit); ok {
		r.onLimitHit = append(r.onLimitHit, v)
	}
	if v, ok := p.(OnThresholdReached); ok {
		r.onThresholdReached = append(r.onThresholdReached, v)
	}
	if v, ok := p.(OnTransferRecorded); ok {
		r.onTransferRecorded = append(r.onTransferRecorded, v)
	}
	if v, ok := p.(OnWorkflowCompleted); ok {
		r.onWorkflowCompleted = append(r.onWorkflowCompleted, v)
	}
	if v, ok := p.(OnWorkflowFailed); ok {
		r.onWorkflowFailed = append(r.onWorkflowFailed, v)
	}
	if v, ok := p.(AssetProvider); ok {
		r.assetProviders = append(r.assetProviders, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnEventsAppended)(nil)).Elem(), "OnEventsAppended")
	checkInterface(reflect.TypeOf((*OnAccountCreated)(nil)).Elem(), "OnAccountCreated")
	checkInterface(reflect.TypeOf((*OnAccountFrozen)(nil)).Elem(), "OnAccountFrozen")
	checkInterface(reflect.TypeOf((*OnAccountUnfrozen)(nil)).Elem(), "OnAccountUnfrozen")
	checkInterface(reflect.TypeOf((*OnAccountDeleted)(nil)).Elem(), "OnAccountDeleted")
	checkInterface(reflect.TypeOf((*OnBalanceChanged)(nil)).Elem(), "OnBalanceChanged")
	checkInterface(reflect.TypeOf((*OnLimitHit)(nil)).Elem(), "OnLimitHit")
	checkInterface(reflect.TypeOf((*OnThresholdReached)(nil)).Elem(), "OnThresholdReached")
	checkInterface(reflect.TypeOf((*OnTransferRecorded)(nil)).Elem(), "OnTransferRecorded")
	checkInterface(reflect.TypeOf((*OnWorkflowCompleted)(nil)).Elem(), "OnWorkflowCompleted")
	checkInterface(reflect.TypeOf((*OnWorkflowFailed)(nil)).Elem(), "OnWorkflowFailed")
	checkInterface(reflect.TypeOf((*AssetProvider)(nil)).Elem(), "AssetProvider")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// AssetProviders returns all registered asset providers.
func (r *Registry) AssetProviders() []AssetProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]AssetProvider, len(r.assetProviders))
	copy(result, r.assetProviders)
	return result
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit calls fn for every plugin in list and logs failures. Plugin errors
// never propagate into the ledger.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, list []T, fn func(T) error) {
	for _, p := range list {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func snapshotOf[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	emit(ctx, r, "OnInit", snapshotOf(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, ledger)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", snapshotOf(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitEventsAppended emits an events appended notification.
func (r *Registry) EmitEventsAppended(ctx context.Context, stream event.Stream, events []*event.Event) {
	emit(ctx, r, "OnEventsAppended", snapshotOf(r, &r.onEventsAppended), func(p OnEventsAppended) error {
		return p.OnEventsAppended(ctx, stream, events)
	})
}

// EmitAccountCreated emits an account created event.
func (r *Registry) EmitAccountCreated(ctx context.Context, acct *account.Account) {
	emit(ctx, r, "OnAccountCreated", snapshotOf(r, &r.onAccountCreated), func(p OnAccountCreated) error {
		return p.OnAccountCreated(ctx, acct)
	})
}

// EmitAccountFrozen emits an account frozen event.
func (r *Registry) EmitAccountFrozen(ctx context.Context, acct *account.Account) {
	emit(ctx, r, "OnAccountFrozen", snapshotOf(r, &r.onAccountFrozen), func(p OnAccountFrozen) error {
		return p.OnAccountFrozen(ctx, acct)
	})
}

// EmitAccountUnfrozen emits an account unfrozen event.
func (r *Registry) EmitAccountUnfrozen(ctx context.Context, acct *account.Account) {
	emit(ctx, r, "OnAccountUnfrozen", snapshotOf(r, &r.onAccountUnfrozen), func(p OnAccountUnfrozen) error {
		return p.OnAccountUnfrozen(ctx, acct)
	})
}

// EmitAccountDeleted emits an account deleted event.
func (r *Registry) EmitAccountDeleted(ctx context.Context, acct *account.Account) {
	emit(ctx, r, "OnAccountDeleted", snapshotOf(r, &r.onAccountDeleted), func(p OnAccountDeleted) error {
		return p.OnAccountDeleted(ctx, acct)
	})
}

// EmitBalanceChanged emits a balance changed event.
func (r *Registry) EmitBalanceChanged(ctx context.Context, accountID, asset string, delta, balance int64) {
	emit(ctx, r, "OnBalanceChanged", snapshotOf(r, &r.onBalanceChanged), func(p OnBalanceChanged) error {
		return p.OnBalanceChanged(ctx, accountID, asset, delta, balance)
	})
}

// EmitLimitHit emits a rejected debit.
func (r *Registry) EmitLimitHit(ctx context.Context, accountID, asset string, requested, available int64) {
	emit(ctx, r, "OnLimitHit", snapshotOf(r, &r.onLimitHit), func(p OnLimitHit) error {
		return p.OnLimitHit(ctx, accountID, asset, requested, available)
	})
}

// EmitThresholdReached emits a threshold event.
func (r *Registry) EmitThresholdReached(ctx context.Context, stream event.Stream, limit int) {
	emit(ctx, r, "OnThresholdReached", snapshotOf(r, &r.onThresholdReached), func(p OnThresholdReached) error {
		return p.OnThresholdReached(ctx, stream, limit)
	})
}

// EmitTransferRecorded emits a recorded transfer.
func (r *Registry) EmitTransferRecorded(ctx context.Context, rec *transfer.Record) {
	emit(ctx, r, "OnTransferRecorded", snapshotOf(r, &r.onTransferRecorded), func(p OnTransferRecorded) error {
		return p.OnTransferRecorded(ctx, rec)
	})
}

// EmitWorkflowCompleted emits a completed workflow.
func (r *Registry) EmitWorkflowCompleted(ctx context.Context, workflowID, kind string, elapsed time.Duration) {
	emit(ctx, r, "OnWorkflowCompleted", snapshotOf(r, &r.onWorkflowCompleted), func(p OnWorkflowCompleted) error {
		return p.OnWorkflowCompleted(ctx, workflowID, kind, elapsed)
	})
}

// EmitWorkflowFailed emits a failed workflow.
func (r *Registry) EmitWorkflowFailed(ctx context.Context, workflowID, kind string, cause, compensationErr error) {
	emit(ctx, r, "OnWorkflowFailed", snapshotOf(r, &r.onWorkflowFailed), func(p OnWorkflowFailed) error {
		return p.OnWorkflowFailed(ctx, workflowID, kind, cause, compensationErr)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
