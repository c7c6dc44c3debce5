// Package event defines the persisted event envelope, the typed payload
// variants and the append-only event log contract.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/assetledger/id"
)

// AggregateType names the kind of aggregate that owns a stream.
type AggregateType string

const (
	AggregateAccount  AggregateType = "account"
	AggregateBalance  AggregateType = "balance"
	AggregateTransfer AggregateType = "transfer"
)

// Stream identifies one append-only event partition.
type Stream struct {
	Type AggregateType `json:"aggregate_type"`
	ID   string        `json:"aggregate_id"`
}

// AccountStream returns the lifecycle stream of an account.
func AccountStream(accountID string) Stream {
	return Stream{Type: AggregateAccount, ID: accountID}
}

// BalanceStream returns the asset balance stream of an account.
func BalanceStream(accountID string) Stream {
	return Stream{Type: AggregateBalance, ID: accountID}
}

// TransferStream returns the stream of a transfer aggregate.
func TransferStream(transferID string) Stream {
	return Stream{Type: AggregateTransfer, ID: transferID}
}

// String returns "type/id".
func (s Stream) String() string {
	return string(s.Type) + "/" + s.ID
}

// Type is the discriminator of an event payload.
type Type string

const (
	TypeAccountCreated   Type = "account_created"
	TypeAccountFrozen    Type = "account_frozen"
	TypeAccountUnfrozen  Type = "account_unfrozen"
	TypeAccountDeleted   Type = "account_deleted"
	TypeMoneyAdded       Type = "money_added"
	TypeMoneySubtracted  Type = "money_subtracted"
	TypeAccountLimitHit  Type = "account_limit_hit"
	TypeThresholdReached Type = "threshold_reached"
	TypeAssetTransferred Type = "asset_transferred"
)

// IsBalanceAffecting reports whether events of type t move value and
// therefore participate in the hash chain and the threshold count.
func IsBalanceAffecting(t Type) bool {
	switch t {
	case TypeMoneyAdded, TypeMoneySubtracted, TypeAssetTransferred:
		return true
	default:
		return false
	}
}

// Event is the persisted envelope. Payload holds the canonical JSON bytes
// of the typed payload; the hash chain is computed over exactly these bytes.
type Event struct {
	ID            id.EventID        `json:"id"`
	AggregateType AggregateType     `json:"aggregate_type"`
	AggregateID   string            `json:"aggregate_id"`
	Sequence      int64             `json:"sequence"`
	Type          Type              `json:"type"`
	Payload       json.RawMessage   `json:"payload"`
	ProducedAt    time.Time         `json:"produced_at"`
	PrevHash      string            `json:"prev_hash,omitempty"`
	Hash          string            `json:"hash,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// New wraps a payload in an envelope for stream. Sequence is assigned on append.
func New(stream Stream, p Payload) (*Event, error) {
	data, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            id.NewEventID(),
		AggregateType: stream.Type,
		AggregateID:   stream.ID,
		Type:          p.EventType(),
		Payload:       data,
		ProducedAt:    time.Now().UTC(),
	}, nil
}

// Stream returns the stream the event belongs to.
func (e *Event) Stream() Stream {
	return Stream{Type: e.AggregateType, ID: e.AggregateID}
}

// Chained reports whether the event carries a hash-chain link.
func (e *Event) Chained() bool {
	return IsBalanceAffecting(e.Type)
}

// Decode returns the typed payload of the event.
func (e *Event) Decode() (Payload, error) {
	return Decode(e.Type, e.Payload)
}

// String implements fmt.Stringer.
func (e *Event) String() string {
	return fmt.Sprintf("%s#%d(%s)", e.Stream(), e.Sequence, e.Type)
}
