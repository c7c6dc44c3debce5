package transfer

import (
	"fmt"

	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/hashchain"
	"github.com/xraph/assetledger/threshold"
	"github.com/xraph/assetledger/types"
)

// Aggregate is the stream of one transfer id.
type Aggregate struct {
	event.Base

	id         string
	lastHash   string
	counter    threshold.Counter
	records    []Record
	references map[string]struct{}
}

var _ event.Aggregate = (*Aggregate)(nil)

// New returns an empty transfer aggregate. limit is the threshold limit.
func New(transferID string, limit int) *Aggregate {
	return &Aggregate{
		id:         transferID,
		lastHash:   hashchain.SeedHash,
		counter:    threshold.New(limit),
		references: make(map[string]struct{}),
	}
}

// Stream implements event.Aggregate.
func (a *Aggregate) Stream() event.Stream { return event.TransferStream(a.id) }

// Records returns the recorded transfers in order.
func (a *Aggregate) Records() []Record {
	out := make([]Record, len(a.records))
	copy(out, a.records)
	return out
}

// LastHash returns the head of the hash chain.
func (a *Aggregate) LastHash() string { return a.lastHash }

// ThresholdCount returns the number of transfers since the last threshold event.
func (a *Aggregate) ThresholdCount() int { return a.counter.Count() }

// Transfer records a movement of amount of asset from one account to another.
// from == to is accepted. A repeated non-empty ref is a no-op.
func (a *Aggregate) Transfer(from, to, asset string, amount int64, metadata map[string]string, ref, workflowID string) error {
	if err := types.ValidateAmount(amount); err != nil {
		return err
	}
	if from == "" {
		return types.ValidationError{Field: "from", Message: "source account is required"}
	}
	if to == "" {
		return types.ValidationError{Field: "to", Message: "destination account is required"}
	}
	if ref != "" {
		if _, ok := a.references[ref]; ok {
			return nil
		}
	}

	if err := a.raise(event.AssetTransferred{
		From:       from,
		To:         to,
		Asset:      types.NormalizeAssetCode(asset),
		Amount:     amount,
		Reference:  ref,
		WorkflowID: workflowID,
		Metadata:   metadata,
	}); err != nil {
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

// Apply implements event.Aggregate.
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
	case event.AssetTransferred:
		a.records = append(a.records, Record{
			TransferID: a.id,
			From:       p.From,
			To:         p.To,
			Asset:      p.Asset,
			Amount:     p.Amount,
			Hash:       e.Hash,
			Reference:  p.Reference,
			WorkflowID: p.WorkflowID,
			Metadata:   p.Metadata,
			RecordedAt: e.ProducedAt,
		})
		a.lastHash = e.Hash
		a.counter.Increment()
		if p.Reference != "" {
			a.references[p.Reference] = struct{}{}
		}
	case event.ThresholdReached:
		a.counter.Reset()
	default:
		return fmt.Errorf("transfer: unexpected event %s", e.Type)
	}
	return nil
}
