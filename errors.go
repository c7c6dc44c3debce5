package assetledger

import (
	"errors"
	"fmt"

	"github.com/xraph/assetledger/account"
	"github.com/xraph/assetledger/balance"
	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/hashchain"
	"github.com/xraph/assetledger/saga"
	"github.com/xraph/assetledger/snapshot"
	"github.com/xraph/assetledger/transfer"
	"github.com/xraph/assetledger/types"
)

// Sentinel errors, re-exported from the packages that raise them.
var (
	// Account errors
	ErrAccountNotFound = account.ErrAccountNotFound
	ErrAccountExists   = account.ErrAccountExists
	ErrAccountFrozen   = account.ErrAccountFrozen
	ErrAccountDeleted  = account.ErrAccountDeleted

	// Balance errors
	ErrInsufficientFunds = balance.ErrInsufficientFunds
	ErrNegativeBalance   = balance.ErrNegativeBalance
	ErrBalanceOverflow   = balance.ErrBalanceOverflow
	ErrReferenceConflict = balance.ErrReferenceConflict

	// Event log errors
	ErrConcurrencyConflict = event.ErrConcurrencyConflict
	ErrUnknownEventType    = event.ErrUnknownType
	ErrForeignEvent        = event.ErrForeignEvent
	ErrInvalidHash         = hashchain.ErrInvalidHash
	ErrSnapshotNotFound    = snapshot.ErrNotFound

	// Transfer errors
	ErrTransferNotFound = transfer.ErrTransferNotFound

	// Workflow errors
	ErrWorkflowNotFound    = saga.ErrWorkflowNotFound
	ErrStepTimeout         = saga.ErrStepTimeout
	ErrUnknownCompensation = saga.ErrUnknownCompensation
	ErrInvalidSaga         = saga.ErrInvalidSaga
)

// Typed errors carrying context.
type (
	// ValidationError represents a validation failure with details.
	ValidationError = types.ValidationError
	// InsufficientFundsError is returned when a debit exceeds the balance.
	InsufficientFundsError = balance.InsufficientFundsError
	// InvalidHashError is returned when a hash chain link does not verify.
	InvalidHashError = hashchain.InvalidHashError
	// ConflictError is returned when an append loses an optimistic concurrency race.
	ConflictError = event.ConflictError
)

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "assetledger: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("assetledger: %d errors occurred: %v", len(e.Errors), e.Errors[0])
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTransferNotFound) ||
		errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrSnapshotNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) ||
		errors.Is(err, ErrStepTimeout)
}

// IsDomainError returns true if the error is a rejected command rather than
// an infrastructure failure.
func IsDomainError(err error) bool {
	var verr ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrBalanceOverflow) ||
		errors.Is(err, ErrReferenceConflict) ||
		errors.Is(err, ErrAccountFrozen) ||
		errors.Is(err, ErrAccountDeleted) ||
		errors.Is(err, ErrAccountExists) ||
		errors.Is(err, ErrAccountNotFound)
}

// IsIntegrityError returns true if the error signals a corrupted or
// tampered stream.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrInvalidHash) ||
		errors.Is(err, ErrNegativeBalance)
}
