package assetledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/assetledger/account"
	"github.com/xraph/assetledger/balance"
	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/hashchain"
	"github.com/xraph/assetledger/id"
	"github.com/xraph/assetledger/plugin"
	"github.com/xraph/assetledger/saga"
	"github.com/xraph/assetledger/snapshot"
	"github.com/xraph/assetledger/store"
	"github.com/xraph/assetledger/threshold"
	"github.com/xraph/assetledger/transfer"
	"github.com/xraph/assetledger/types"
)

// DefaultMaxAppendRetries bounds the load-modify-append cycle on conflicts.
const DefaultMaxAppendRetries = 5

// Ledger is the multi-asset ledger engine.
type Ledger struct {
	store     store.Store
	plugins   *plugin.Registry
	sagas     *saga.Orchestrator
	snapshots snapshot.Store
	assets    *types.AssetRegistry
	logger    *slog.Logger

	// Per-stream critical sections.
	locks sync.Map

	// Configuration
	thresholdLimit       int
	maxAppendRetries     int
	stepTimeout          time.Duration
	parallelCompensation bool
	continueWithError    bool
	snapshotInterval     int
	skipMigrate          bool
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:            s,
		plugins:          plugin.NewRegistry(),
		assets:           types.NewAssetRegistry(types.DefaultAssets()...),
		logger:           slog.Default(),
		thresholdLimit:   threshold.DefaultLimit,
		maxAppendRetries: DefaultMaxAppendRetries,
		snapshotInterval: snapshot.DefaultInterval,
	}

	for _, opt := range opts {
		opt(l)
	}

	for _, p := range l.plugins.AssetProviders() {
		for _, a := range p.Assets() {
			l.assets.Register(a)
		}
	}

	l.sagas = saga.NewOrchestrator(s, saga.WithLogger(l.logger))
	l.registerCompensations()

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds every plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// WithThresholdLimit sets the number of balance events between two
// ThresholdReached events. Non-positive values keep the default.
func WithThresholdLimit(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.thresholdLimit = n
		}
	}
}

// WithMaxAppendRetries sets how often a command is retried from a fresh load
// after losing an optimistic concurrency race.
func WithMaxAppendRetries(n int) Option {
	return func(l *Ledger) {
		if n >= 0 {
			l.maxAppendRetries = n
		}
	}
}

// WithStepTimeout sets the default timeout of every workflow step.
func WithStepTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.stepTimeout = d
	}
}

// WithParallelCompensation runs the compensations of failed workflows
// concurrently instead of in reverse order.
func WithParallelCompensation(on bool) Option {
	return func(l *Ledger) {
		l.parallelCompensation = on
	}
}

// WithContinueOnCompensationError keeps compensating after a compensation
// fails instead of halting.
func WithContinueOnCompensationError(on bool) Option {
	return func(l *Ledger) {
		l.continueWithError = on
	}
}

// WithSnapshots enables balance snapshots, taken every interval events.
func WithSnapshots(s snapshot.Store, interval int) Option {
	return func(l *Ledger) {
		l.snapshots = s
		if interval > 0 {
			l.snapshotInterval = interval
		}
	}
}

// WithoutMigrate makes Start skip store migrations. Plugin initialization
// and workflow recovery still run.
func WithoutMigrate() Option {
	return func(l *Ledger) {
		l.skipMigrate = true
	}
}

// WithAssets registers additional assets.
func WithAssets(assets ...types.Asset) Option {
	return func(l *Ledger) {
		for _, a := range assets {
			l.assets.Register(a)
		}
	}
}

// Start migrates the store, initializes plugins and compensates workflows
// left unfinished by a previous process.
func (l *Ledger) Start(ctx context.Context) error {
	if !l.skipMigrate {
		if err := l.store.Migrate(ctx); err != nil {
			return err
		}
	}

	l.plugins.EmitInit(ctx, l)

	results, err := l.Recover(ctx)
	if err != nil {
		return fmt.Errorf("assetledger: recover workflows: %w", err)
	}

	l.logger.Info("assetledger started",
		"threshold_limit", l.thresholdLimit,
		"max_append_retries", l.maxAppendRetries,
		"step_timeout", l.stepTimeout,
		"recovered_workflows", len(results),
	)

	return nil
}

// Stop shuts down the Ledger.
func (l *Ledger) Stop() error {
	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// Assets returns the asset registry.
func (l *Ledger) Assets() *types.AssetRegistry { return l.assets }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// ──────────────────────────────────────────────────
// Account Management
// ──────────────────────────────────────────────────

// CreateAccount opens an account. An empty accountID gets a generated one.
func (l *Ledger) CreateAccount(ctx context.Context, accountID, owner string, metadata map[string]string) (*account.Account, error) {
	if accountID == "" {
		accountID = id.NewAccountID().String()
	}

	agg, changed, err := l.lifecycle(ctx, accountID, func(a *account.Aggregate) error {
		return a.Create(owner, metadata)
	})
	if err != nil {
		return nil, err
	}

	acct := agg.Account()
	if changed {
		l.plugins.EmitAccountCreated(ctx, acct)
		l.logger.Info("account created", "account_id", acct.ID, "owner", acct.Owner)
	}
	return acct, nil
}

// FreezeAccount freezes an account. Frozen accounts reject credits, debits
// and transfers. Freezing a frozen account is a no-op.
func (l *Ledger) FreezeAccount(ctx context.Context, accountID, reason, actor string) (*account.Account, error) {
	acct, _, err := l.freeze(ctx, accountID, reason, actor)
	return acct, err
}

// UnfreezeAccount reactivates a frozen account.
func (l *Ledger) UnfreezeAccount(ctx context.Context, accountID, reason, actor string) (*account.Account, error) {
	acct, _, err := l.unfreeze(ctx, accountID, reason, actor)
	return acct, err
}

// DeleteAccount marks an account deleted. Its streams stay readable but no
// further commands are accepted.
func (l *Ledger) DeleteAccount(ctx context.Context, accountID, actor string) (*account.Account, error) {
	agg, changed, err := l.lifecycle(ctx, accountID, func(a *account.Aggregate) error {
		return a.Delete(actor)
	})
	if err != nil {
		return nil, err
	}

	acct := agg.Account()
	if changed {
		l.plugins.EmitAccountDeleted(ctx, acct)
		l.logger.Info("account deleted", "account_id", accountID, "actor", actor)
	}
	return acct, nil
}

// GetAccount returns the current state of an account.
func (l *Ledger) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	agg, err := l.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if agg.State() == account.StateNone {
		return nil, fmt.Errorf("%w: %s", account.ErrAccountNotFound, accountID)
	}
	return agg.Account(), nil
}

func (l *Ledger) freeze(ctx context.Context, accountID, reason, actor string) (*account.Account, bool, error) {
	agg, changed, err := l.lifecycle(ctx, accountID, func(a *account.Aggregate) error {
		return a.Freeze(reason, actor)
	})
	if err != nil {
		return nil, false, err
	}

	acct := agg.Account()
	if changed {
		l.plugins.EmitAccountFrozen(ctx, acct)
		l.logger.Info("account frozen", "account_id", accountID, "reason", reason, "actor", actor)
	}
	return acct, changed, nil
}

func (l *Ledger) unfreeze(ctx context.Context, accountID, reason, actor string) (*account.Account, bool, error) {
	agg, changed, err := l.lifecycle(ctx, accountID, func(a *account.Aggregate) error {
		return a.Unfreeze(reason, actor)
	})
	if err != nil {
		return nil, false, err
	}

	acct := agg.Account()
	if changed {
		l.plugins.EmitAccountUnfrozen(ctx, acct)
		l.logger.Info("account unfrozen", "account_id", accountID, "reason", reason, "actor", actor)
	}
	return acct, changed, nil
}

// lifecycle runs cmd against the account aggregate and reports whether it
// recorded any event.
func (l *Ledger) lifecycle(ctx context.Context, accountID string, cmd func(*account.Aggregate) error) (*account.Aggregate, bool, error) {
	stream := event.AccountStream(accountID)
	agg, events, err := execute(ctx, l, stream, func(ctx context.Context) (*account.Aggregate, error) {
		return l.loadAccount(ctx, accountID)
	}, cmd)
	if len(events) > 0 {
		l.plugins.EmitEventsAppended(ctx, stream, events)
	}
	if err != nil {
		return nil, false, err
	}
	return agg, len(events) > 0, nil
}

func (l *Ledger) loadAccount(ctx context.Context, accountID string) (*account.Aggregate, error) {
	agg := account.New(accountID)
	events, err := l.store.Load(ctx, agg.Stream())
	if err != nil {
		return nil, err
	}
	if err := event.Replay(agg, events); err != nil {
		return nil, err
	}
	return agg, nil
}

func (l *Ledger) requireTransactable(ctx context.Context, accountID string) error {
	agg, err := l.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	return agg.CanTransact()
}

// ──────────────────────────────────────────────────
// Balances
// ──────────────────────────────────────────────────

// CommandOption configures a single credit or debit.
type CommandOption func(*commandOptions)

type commandOptions struct {
	reference string
}

// WithReference makes the command idempotent: a command whose reference was
// already recorded on the account is a no-op.
func WithReference(ref string) CommandOption {
	return func(o *commandOptions) { o.reference = ref }
}

// Credit adds amount of asset to an account and returns the new balance.
func (l *Ledger) Credit(ctx context.Context, accountID, asset string, amount int64, opts ...CommandOption) (int64, error) {
	o := applyCommandOptions(opts)
	agg, err := l.adjust(ctx, adjustment{AccountID: accountID, Asset: asset, Amount: amount, Reference: o.reference}, false, true)
	if err != nil {
		return 0, err
	}
	return agg.Balance(asset), nil
}

// Debit removes amount of asset from an account and returns the new balance.
// An overdraft is rejected with an *InsufficientFundsError; the attempt is
// still recorded as an AccountLimitHit event.
func (l *Ledger) Debit(ctx context.Context, accountID, asset string, amount int64, opts ...CommandOption) (int64, error) {
	o := applyCommandOptions(opts)
	agg, err := l.adjust(ctx, adjustment{AccountID: accountID, Asset: asset, Amount: amount, Reference: o.reference}, true, true)
	if err != nil {
		return 0, err
	}
	return agg.Balance(asset), nil
}

// GetBalance returns the balance of asset, 0 if it was never credited.
func (l *Ledger) GetBalance(ctx context.Context, accountID, asset string) (int64, error) {
	if err := l.assets.Validate(asset); err != nil {
		return 0, err
	}
	agg, err := l.balanceOf(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return agg.Balance(asset), nil
}

// GetAllBalances returns every asset balance of an account.
func (l *Ledger) GetAllBalances(ctx context.Context, accountID string) (map[string]int64, error) {
	agg, err := l.balanceOf(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return agg.Balances(), nil
}

func (l *Ledger) balanceOf(ctx context.Context, accountID string) (*balance.Aggregate, error) {
	if _, err := l.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return l.loadBalance(ctx, accountID)
}

func applyCommandOptions(opts []CommandOption) commandOptions {
	var o commandOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// adjustment is a credit or debit. It doubles as the payload of the
// balance compensations.
type adjustment struct {
	AccountID string `json:"account_id"`
	Asset     string `json:"asset"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference,omitempty"`
	// Undoes names the forward reference this adjustment reverses. The
	// adjustment is skipped when that reference was never recorded.
	Undoes string `json:"undoes,omitempty"`
}

// adjust applies a credit or debit. checkAccount is false for compensations,
// which must go through even on frozen accounts.
func (l *Ledger) adjust(ctx context.Context, adj adjustment, debit, checkAccount bool) (*balance.Aggregate, error) {
	if err := l.assets.Validate(adj.Asset); err != nil {
		return nil, err
	}
	if err := types.ValidateAmount(adj.Amount); err != nil {
		return nil, err
	}
	agg, events, err := l.applyAdjustment(ctx, adj, debit, checkAccount)
	if len(events) > 0 {
		l.publish(ctx, event.BalanceStream(adj.AccountID), events, agg)
		l.maybeSnapshot(ctx, agg, len(events))
	}
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// applyAdjustment appends the balance events of adj. Lifecycle commands take
// the account lock too, so the account cannot be frozen or deleted between
// the check and the append. Plugins are notified after the lock is released.
func (l *Ledger) applyAdjustment(ctx context.Context, adj adjustment, debit, checkAccount bool) (*balance.Aggregate, []*event.Event, error) {
	if checkAccount {
		unlock := l.lock(event.AccountStream(adj.AccountID).String())
		defer unlock()
		if err := l.requireTransactable(ctx, adj.AccountID); err != nil {
			return nil, nil, err
		}
	}

	return execute(ctx, l, event.BalanceStream(adj.AccountID), func(ctx context.Context) (*balance.Aggregate, error) {
		return l.loadBalance(ctx, adj.AccountID)
	}, func(a *balance.Aggregate) error {
		if adj.Undoes != "" && !a.HasReference(adj.Undoes) {
			return nil
		}
		if debit {
			return a.Debit(adj.Asset, adj.Amount, adj.Reference)
		}
		return a.Credit(adj.Asset, adj.Amount, adj.Reference)
	})
}

// loadBalance rebuilds the balance aggregate, starting from the latest
// snapshot when one is available.
func (l *Ledger) loadBalance(ctx context.Context, accountID string) (*balance.Aggregate, error) {
	agg := balance.New(accountID, l.thresholdLimit)

	if l.snapshots != nil {
		s, err := l.snapshots.Load(ctx, accountID)
		switch {
		case err == nil:
			agg = balance.FromSnapshot(s, l.thresholdLimit)
		case errors.Is(err, snapshot.ErrNotFound):
		default:
			l.logger.Warn("snapshot load failed, replaying full stream",
				"account_id", accountID,
				"error", err,
			)
		}
	}

	events, err := l.store.LoadFrom(ctx, agg.Stream(), agg.Version())
	if err != nil {
		return nil, err
	}
	if err := event.Replay(agg, events); err != nil {
		return nil, err
	}
	return agg, nil
}

func (l *Ledger) maybeSnapshot(ctx context.Context, agg *balance.Aggregate, committed int) {
	if l.snapshots == nil {
		return
	}
	after := agg.Version()
	if !snapshot.Due(after-int64(committed), after, l.snapshotInterval) {
		return
	}
	if err := l.snapshots.Save(ctx, agg.Snapshot()); err != nil {
		l.logger.Warn("snapshot save failed",
			"account_id", agg.AccountID(),
			"version", after,
			"error", err,
		)
	}
}

// publish forwards committed balance-stream events to plugins. bal holds
// the state after the events were applied.
func (l *Ledger) publish(ctx context.Context, stream event.Stream, events []*event.Event, bal *balance.Aggregate) {
	l.plugins.EmitEventsAppended(ctx, stream, events)

	for _, e := range events {
		p, err := e.Decode()
		if err != nil {
			continue
		}
		switch p := p.(type) {
		case event.MoneyAdded:
			if bal != nil {
				l.plugins.EmitBalanceChanged(ctx, stream.ID, p.Asset, p.Amount, bal.Balance(p.Asset))
			}
		case event.MoneySubtracted:
			if bal != nil {
				l.plugins.EmitBalanceChanged(ctx, stream.ID, p.Asset, -p.Amount, bal.Balance(p.Asset))
			}
		case event.AccountLimitHit:
			l.logger.Info("debit rejected",
				"account_id", stream.ID,
				"asset", p.Asset,
				"requested", p.Requested,
				"available", p.Available,
			)
			l.plugins.EmitLimitHit(ctx, stream.ID, p.Asset, p.Requested, p.Available)
		case event.ThresholdReached:
			l.plugins.EmitThresholdReached(ctx, stream, p.Limit)
		}
	}
}

// ──────────────────────────────────────────────────
// Streams
// ──────────────────────────────────────────────────

// GetEventStream returns the ordered events of a stream.
func (l *Ledger) GetEventStream(ctx context.Context, stream event.Stream) ([]*event.Event, error) {
	return l.store.Load(ctx, stream)
}

// VerifyStream walks the hash chain of a stream and returns its head.
// Tampered or reordered events yield an *InvalidHashError.
func (l *Ledger) VerifyStream(ctx context.Context, stream event.Stream) (string, error) {
	events, err := l.store.Load(ctx, stream)
	if err != nil {
		return "", err
	}
	return hashchain.Verify(events)
}

// GetTransfer returns the records of a transfer aggregate.
func (l *Ledger) GetTransfer(ctx context.Context, transferID string) ([]transfer.Record, error) {
	agg, err := l.loadTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	records := agg.Records()
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", transfer.ErrTransferNotFound, transferID)
	}
	return records, nil
}

func (l *Ledger) loadTransfer(ctx context.Context, transferID string) (*transfer.Aggregate, error) {
	agg := transfer.New(transferID, l.thresholdLimit)
	events, err := l.store.Load(ctx, agg.Stream())
	if err != nil {
		return nil, err
	}
	if err := event.Replay(agg, events); err != nil {
		return nil, err
	}
	return agg, nil
}

// ──────────────────────────────────────────────────
// Command execution
// ──────────────────────────────────────────────────

// execute loads the aggregate of stream, runs cmd and appends the events it
// recorded. Commands on the same stream are serialized in-process; losing
// an append race against another process retries from a fresh load.
//
// Events are persisted even when cmd fails, so that rejected attempts such
// as a debit overdraft stay on record. The committed events are returned
// together with the command error.
func execute[A event.Aggregate](
	ctx context.Context,
	l *Ledger,
	stream event.Stream,
	load func(context.Context) (A, error),
	cmd func(A) error,
) (A, []*event.Event, error) {
	unlock := l.lock(stream.String())
	defer unlock()

	var zero A
	for attempt := 0; ; attempt++ {
		agg, err := load(ctx)
		if err != nil {
			return zero, nil, err
		}

		cmdErr := cmd(agg)
		pending := agg.Uncommitted()
		if len(pending) == 0 {
			return agg, nil, cmdErr
		}

		if _, err := l.store.Append(ctx, stream, agg.Version(), pending); err != nil {
			if errors.Is(err, event.ErrConcurrencyConflict) && attempt < l.maxAppendRetries {
				l.logger.Debug("append conflict, retrying",
					"stream", stream.String(),
					"attempt", attempt+1,
				)
				continue
			}
			return zero, nil, err
		}

		agg.MarkCommitted()
		return agg, pending, cmdErr
	}
}

func (l *Ledger) lock(key string) func() {
	v, _ := l.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
