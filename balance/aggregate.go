package balance

import (
	"fmt"
	"math"
	"sort"

	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/hashchain"
	"github.com/xraph/assetledger/threshold"
	"github.com/xraph/assetledger/types"
)

// Aggregate holds all asset balances of one account.
type Aggregate struct {
	event.Base

	accountID  string
	balances   map[string]int64
	lastHash   string
	counter    threshold.Counter
	references map[string]Reference
}

var _ event.Aggregate = (*Aggregate)(nil)

// New returns an empty balance aggregate. limit is the threshold limit.
func New(accountID string, limit int) *Aggregate {
	return &Aggregate{
		accountID:  accountID,
		balances:   make(map[string]int64),
		lastHash:   hashchain.SeedHash,
		counter:    threshold.New(limit),
		references: make(map[string]Reference),
	}
}

// FromSnapshot restores an aggregate from s. Events after s.Version must be
// replayed on top.
func FromSnapshot(s *Snapshot, limit int) *Aggregate {
	a := New(s.AccountID, limit)
	for asset, amount := range s.Balances {
		a.balances[asset] = amount
	}
	for _, ref := range s.References {
		a.references[ref.Ref] = ref
	}
	if s.LastHash != "" {
		a.lastHash = s.LastHash
	}
	a.counter.Restore(s.Count)
	a.Restore(s.Version)
	return a
}

// Snapshot captures the committed state.
func (a *Aggregate) Snapshot() *Snapshot {
	refs := make([]Reference, 0, len(a.references))
	for _, ref := range a.references {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Ref < refs[j].Ref })

	return &Snapshot{
		AccountID:  a.accountID,
		Version:    a.Version(),
		Balances:   a.Balances(),
		LastHash:   a.lastHash,
		Count:      a.counter.Count(),
		References: refs,
	}
}

// Stream implements event.Aggregate.
func (a *Aggregate) Stream() event.Stream { return event.BalanceStream(a.accountID) }

// AccountID returns the owning account.
func (a *Aggregate) AccountID() string { return a.accountID }

// Balance returns the balance of asset, 0 if never credited.
func (a *Aggregate) Balance(asset string) int64 {
	return a.balances[types.NormalizeAssetCode(asset)]
}

// Balances returns a copy of all balances.
func (a *Aggregate) Balances() map[string]int64 {
	out := make(map[string]int64, len(a.balances))
	for k, v := range a.balances {
		out[k] = v
	}
	return out
}

// LastHash returns the head of the hash chain.
func (a *Aggregate) LastHash() string { return a.lastHash }

// ThresholdCount returns the number of balance events since the last threshold event.
func (a *Aggregate) ThresholdCount() int { return a.counter.Count() }

// HasReference reports whether a balance event with ref was recorded.
func (a *Aggregate) HasReference(ref string) bool {
	_, ok := a.references[ref]
	return ok
}

// Credit adds amount of asset.
func (a *Aggregate) Credit(asset string, amount int64, ref string) error {
	if err := types.ValidateAmount(amount); err != nil {
		return err
	}
	asset = types.NormalizeAssetCode(asset)
	if seen, err := a.seen(Reference{Ref: ref, Asset: asset, Amount: amount}); seen || err != nil {
		return err
	}
	if current := a.balances[asset]; current > math.MaxInt64-amount {
		return fmt.Errorf("%w: %s holds %d %s, credit of %d", ErrBalanceOverflow, a.accountID, current, asset, amount)
	}
	return a.raiseBalance(event.MoneyAdded{Asset: asset, Amount: amount, Reference: ref})
}

// Debit removes amount of asset. When the balance is too low it records an
// AccountLimitHit event and returns an *InsufficientFundsError; the caller is
// expected to persist the pending events anyway.
func (a *Aggregate) Debit(asset string, amount int64, ref string) error {
	if err := types.ValidateAmount(amount); err != nil {
		return err
	}
	asset = types.NormalizeAssetCode(asset)
	if seen, err := a.seen(Reference{Ref: ref, Asset: asset, Amount: amount, Debit: true}); seen || err != nil {
		return err
	}

	available := a.balances[asset]
	if available < amount {
		if err := a.raise(event.AccountLimitHit{Asset: asset, Requested: amount, Available: available, Reference: ref}); err != nil {
			return err
		}
		return &InsufficientFundsError{AccountID: a.accountID, Asset: asset, Requested: amount, Available: available}
	}
	return a.raiseBalance(event.MoneySubtracted{Asset: asset, Amount: amount, Reference: ref})
}

// seen reports whether cmd was already recorded under its reference.
func (a *Aggregate) seen(cmd Reference) (bool, error) {
	if cmd.Ref == "" {
		return false, nil
	}
	prev, ok := a.references[cmd.Ref]
	if !ok {
		return false, nil
	}
	if prev != cmd {
		return false, fmt.Errorf("%w: %q on %s", ErrReferenceConflict, cmd.Ref, a.accountID)
	}
	return true, nil
}

func (a *Aggregate) raiseBalance(p event.Payload) error {
	if err := a.raise(p); err != nil {
		return err
	}
	if a.counter.Reached() {
		return a.raise(event.ThresholdReached{Limit: a.counter.Limit()})
	}
	return nil
}

func (a *Aggregate) raise(p event.Payload) error {
	e, err := event.New(a.Stream(), p)
	if err != nil {
		return err
	}
	if e.Chained() {
		hashchain.Link(e, a.lastHash)
	}
	if err := a.Apply(e); err != nil {
		return err
	}
	a.Track(e)
	return nil
}

// Apply implements event.Aggregate. Chained events are validated against
// the current chain head.
func (a *Aggregate) Apply(e *event.Event) error {
	if e.Chained() {
		if err := hashchain.Validate(e, a.lastHash); err != nil {
			return err
		}
	}

	p, err := e.Decode()
	if err != nil {
		return err
	}

	switch p := p.(type) {
	case event.MoneyAdded:
		if p.Amount < 0 || a.balances[p.Asset] > math.MaxInt64-p.Amount {
			return fmt.Errorf("%w: %s#%d %s out of range", ErrNegativeBalance, e.Stream(), e.Sequence, p.Asset)
		}
		a.balances[p.Asset] += p.Amount
		a.afterBalanceEvent(e, Reference{Ref: p.Reference, Asset: p.Asset, Amount: p.Amount})
	case event.MoneySubtracted:
		if a.balances[p.Asset] < p.Amount {
			return fmt.Errorf("%w: %s#%d %s", ErrNegativeBalance, e.Stream(), e.Sequence, p.Asset)
		}
		a.balances[p.Asset] -= p.Amount
		a.afterBalanceEvent(e, Reference{Ref: p.Reference, Asset: p.Asset, Amount: p.Amount, Debit: true})
	case event.AccountLimitHit:
	case event.ThresholdReached:
		a.counter.Reset()
	default:
		return fmt.Errorf("balance: unexpected event %s", e.Type)
	}
	return nil
}

func (a *Aggregate) afterBalanceEvent(e *event.Event, ref Reference) {
	a.lastHash = e.Hash
	a.counter.Increment()
	if ref.Ref != "" {
		a.references[ref.Ref] = ref
	}
}
