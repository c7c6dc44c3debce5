// Package transfer implements the transfer aggregate, the record of fact for
// a single-asset movement between two accounts. It does not change balances;
// the saga orchestrator drives the debit and credit on the balance aggregates.
package transfer

import (
	"errors"
	"time"
)

// ErrTransferNotFound is returned when a transfer stream is empty.
var ErrTransferNotFound = errors.New("assetledger: transfer not found")

// Record is one transfer fact.
type Record struct {
	TransferID string            `json:"transfer_id"`
	From       string            `json:"from"`
	To         string            `json:"to"`
	Asset      string            `json:"asset"`
	Amount     int64             `json:"amount"`
	Hash       string            `json:"hash"`
	Reference  string            `json:"reference,omitempty"`
	WorkflowID string            `json:"workflow_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// IsSelfTransfer reports whether both parties are the same account.
func (r *Record) IsSelfTransfer() bool { return r.From == r.To }
