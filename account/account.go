// Package account implements the account lifecycle aggregate:
// creation, freezing, unfreezing and deletion. It holds no balances.
package account

import (
	"errors"

	"github.com/xraph/assetledger/types"
)

// State is the lifecycle state of an account.
type State string

const (
	StateNone    State = ""
	StateActive  State = "active"
	StateFrozen  State = "frozen"
	StateDeleted State = "deleted"
)

var (
	ErrAccountNotFound = errors.New("assetledger: account not found")
	ErrAccountExists   = errors.New("assetledger: account already exists")
	ErrAccountFrozen   = errors.New("assetledger: account is frozen")
	ErrAccountDeleted  = errors.New("assetledger: account is deleted")
)

// Account is the read model folded from an account stream.
type Account struct {
	types.Entity

	ID           string            `json:"id"`
	Owner        string            `json:"owner"`
	State        State             `json:"state"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	FrozenReason string            `json:"frozen_reason,omitempty"`
	FrozenBy     string            `json:"frozen_by,omitempty"`
}

// IsActive reports whether the account accepts balance changes.
func (a *Account) IsActive() bool { return a.State == StateActive }

// IsFrozen reports whether the account is frozen.
func (a *Account) IsFrozen() bool { return a.State == StateFrozen }

// IsDeleted reports whether the account is deleted.
func (a *Account) IsDeleted() bool { return a.State == StateDeleted }
