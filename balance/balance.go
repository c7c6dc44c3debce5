// Package balance implements the per-account multi-asset balance aggregate.
//
// Credits and debits are hash-chained events. Every command also advances the
// threshold counter and emits ThresholdReached within the same command when
// the limit is hit. A non-empty reference makes a command idempotent: if the
// stream already holds the same command under that reference the command is a
// no-op. Reusing a reference for a different command is rejected.
package balance

import (
	"errors"
	"fmt"

	"github.com/xraph/assetledger/types"
)

// ErrInsufficientFunds is matched by every InsufficientFundsError.
var ErrInsufficientFunds = errors.New("assetledger: insufficient funds")

// ErrNegativeBalance is returned when a stream would drive a balance below zero.
// It indicates a corrupted stream rather than a rejected command.
var ErrNegativeBalance = errors.New("assetledger: negative balance in stream")

// ErrBalanceOverflow is returned by Credit when the balance would exceed MaxInt64.
var ErrBalanceOverflow = errors.New("assetledger: balance overflow")

// ErrReferenceConflict is returned when a reference is reused for a different command.
var ErrReferenceConflict = errors.New("assetledger: reference reused for a different command")

// Reference is the command a reference was recorded with.
type Reference struct {
	Ref    string `json:"ref"`
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
	Debit  bool   `json:"debit,omitempty"`
}

// InsufficientFundsError is returned by Debit when the balance is too low.
type InsufficientFundsError struct {
	AccountID string
	Asset     string
	Requested int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("assetledger: insufficient funds on %s: requested %s, available %s",
		e.AccountID,
		types.NewMoney(e.Asset, e.Requested),
		types.NewMoney(e.Asset, e.Available),
	)
}

// Is makes errors.Is(err, ErrInsufficientFunds) hold.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Snapshot is a point-in-time copy of aggregate state. It is an optimisation
// only; replaying the full stream always yields the same state.
type Snapshot struct {
	AccountID  string           `json:"account_id"`
	Version    int64            `json:"version"`
	Balances   map[string]int64 `json:"balances"`
	LastHash   string           `json:"last_hash"`
	Count      int              `json:"count"`
	References []Reference      `json:"references,omitempty"`
}
