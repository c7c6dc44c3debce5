package event

import (
	"encoding/json"
	"fmt"
)

// Payload is implemented by every typed event variant.
type Payload interface {
	EventType() Type
}

// AccountCreated records the creation of an account.
type AccountCreated struct {
	AccountID string            `json:"account_id"`
	Owner     string            `json:"owner"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AccountFrozen records a freeze.
type AccountFrozen struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// AccountUnfrozen records an unfreeze.
type AccountUnfrozen struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// AccountDeleted marks an account as deleted. Terminal.
type AccountDeleted struct {
	Actor string `json:"actor,omitempty"`
}

// MoneyAdded credits an asset balance.
type MoneyAdded struct {
	Asset     string `json:"asset"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

// MoneySubtracted debits an asset balance.
type MoneySubtracted struct {
	Asset     string `json:"asset"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

// AccountLimitHit records a rejected debit. Diagnostic only.
type AccountLimitHit struct {
	Asset     string `json:"asset"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
	Reference string `json:"reference,omitempty"`
}

// ThresholdReached is emitted after Limit balance-affecting events.
type ThresholdReached struct {
	Limit int `json:"limit"`
}

// AssetTransferred records a transfer fact between two accounts.
type AssetTransferred struct {
	From       string            `json:"from"`
	To         string            `json:"to"`
	Asset      string            `json:"asset"`
	Amount     int64             `json:"amount"`
	Reference  string            `json:"reference,omitempty"`
	WorkflowID string            `json:"workflow_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (AccountCreated) EventType() Type   { return TypeAccountCreated }
func (AccountFrozen) EventType() Type    { return TypeAccountFrozen }
func (AccountUnfrozen) EventType() Type  { return TypeAccountUnfrozen }
func (AccountDeleted) EventType() Type   { return TypeAccountDeleted }
func (MoneyAdded) EventType() Type       { return TypeMoneyAdded }
func (MoneySubtracted) EventType() Type  { return TypeMoneySubtracted }
func (AccountLimitHit) EventType() Type  { return TypeAccountLimitHit }
func (ThresholdReached) EventType() Type { return TypeThresholdReached }
func (AssetTransferred) EventType() Type { return TypeAssetTransferred }

var decoders = map[Type]func([]byte) (Payload, error){
	TypeAccountCreated:   decodeAs[AccountCreated],
	TypeAccountFrozen:    decodeAs[AccountFrozen],
	TypeAccountUnfrozen:  decodeAs[AccountUnfrozen],
	TypeAccountDeleted:   decodeAs[AccountDeleted],
	TypeMoneyAdded:       decodeAs[MoneyAdded],
	TypeMoneySubtracted:  decodeAs[MoneySubtracted],
	TypeAccountLimitHit:  decodeAs[AccountLimitHit],
	TypeThresholdReached: decodeAs[ThresholdReached],
	TypeAssetTransferred: decodeAs[AssetTransferred],
}

func decodeAs[T Payload](data []byte) (Payload, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// Encode returns the canonical bytes of p. Struct fields are emitted in
// declaration order and map keys sorted, so equal payloads encode equally.
func Encode(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("event: encode %s: %w", p.EventType(), err)
	}
	return data, nil
}

// Decode turns persisted payload bytes back into the typed variant for t.
func Decode(t Type, data []byte) (Payload, error) {
	dec, ok := decoders[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	p, err := dec(data)
	if err != nil {
		return nil, fmt.Errorf("event: decode %s: %w", t, err)
	}
	return p, nil
}
