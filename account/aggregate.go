package account

import (
	"fmt"

	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/types"
)

// Aggregate is the lifecycle aggregate of one account.
type Aggregate struct {
	event.Base

	acct Account
}

var _ event.Aggregate = (*Aggregate)(nil)

// New returns an empty aggregate for accountID.
func New(accountID string) *Aggregate {
	return &Aggregate{acct: Account{ID: accountID}}
}

// Stream implements event.Aggregate.
func (a *Aggregate) Stream() event.Stream { return event.AccountStream(a.acct.ID) }

// Account returns a copy of the current state.
func (a *Aggregate) Account() *Account {
	cp := a.acct
	if a.acct.Metadata != nil {
		cp.Metadata = make(map[string]string, len(a.acct.Metadata))
		for k, v := range a.acct.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// State returns the lifecycle state.
func (a *Aggregate) State() State { return a.acct.State }

// Create opens the account.
func (a *Aggregate) Create(owner string, metadata map[string]string) error {
	if a.acct.State != StateNone {
		return fmt.Errorf("%w: %s", ErrAccountExists, a.acct.ID)
	}
	if owner == "" {
		return types.ValidationError{Field: "owner", Message: "owner is required"}
	}
	return a.raise(event.AccountCreated{AccountID: a.acct.ID, Owner: owner, Metadata: metadata})
}

// Freeze moves an active account to frozen. Freezing a frozen account is a no-op.
func (a *Aggregate) Freeze(reason, actor string) error {
	if err := a.requireExisting(); err != nil {
		return err
	}
	if a.acct.State == StateFrozen {
		return nil
	}
	return a.raise(event.AccountFrozen{Reason: reason, Actor: actor})
}

// Unfreeze moves a frozen account back to active. Unfreezing an active account is a no-op.
func (a *Aggregate) Unfreeze(reason, actor string) error {
	if err := a.requireExisting(); err != nil {
		return err
	}
	if a.acct.State == StateActive {
		return nil
	}
	return a.raise(event.AccountUnfrozen{Reason: reason, Actor: actor})
}

// Delete marks the account deleted. No further events are accepted afterwards.
func (a *Aggregate) Delete(actor string) error {
	if err := a.requireExisting(); err != nil {
		return err
	}
	return a.raise(event.AccountDeleted{Actor: actor})
}

// CanTransact returns nil when the account exists and is active.
func (a *Aggregate) CanTransact() error {
	if err := a.requireExisting(); err != nil {
		return err
	}
	if a.acct.State == StateFrozen {
		return fmt.Errorf("%w: %s", ErrAccountFrozen, a.acct.ID)
	}
	return nil
}

func (a *Aggregate) requireExisting() error {
	switch a.acct.State {
	case StateNone:
		return fmt.Errorf("%w: %s", ErrAccountNotFound, a.acct.ID)
	case StateDeleted:
		return fmt.Errorf("%w: %s", ErrAccountDeleted, a.acct.ID)
	default:
		return nil
	}
}

func (a *Aggregate) raise(p event.Payload) error {
	e, err := event.New(a.Stream(), p)
	if err != nil {
		return err
	}
	if err := a.Apply(e); err != nil {
		return err
	}
	a.Track(e)
	return nil
}

// Apply implements event.Aggregate.
func (a *Aggregate) Apply(e *event.Event) error {
	p, err := e.Decode()
	if err != nil {
		return err
	}

	switch p := p.(type) {
	case event.AccountCreated:
		a.acct.Owner = p.Owner
		a.acct.Metadata = p.Metadata
		a.acct.State = StateActive
		a.acct.Entity = types.EntityAt(e.ProducedAt)
	case event.AccountFrozen:
		a.acct.State = StateFrozen
		a.acct.FrozenReason = p.Reason
		a.acct.FrozenBy = p.Actor
	case event.AccountUnfrozen:
		a.acct.State = StateActive
		a.acct.FrozenReason = ""
		a.acct.FrozenBy = ""
	case event.AccountDeleted:
		a.acct.State = StateDeleted
	default:
		return fmt.Errorf("account: unexpected event %s", e.Type)
	}

	a.acct.TouchAt(e.ProducedAt)
	return nil
}
