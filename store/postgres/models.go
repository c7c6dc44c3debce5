package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/id"
	"github.com/xraph/assetledger/saga"
	"github.com/xraph/assetledger/types"
)

// ==================== Event models ====================

// Payload is kept as TEXT rather than JSONB: the hash chain covers the exact
// bytes, and JSONB would normalize key order and whitespace.
type eventModel struct {
	grove.BaseModel `grove:"table:assetledger_events"`

	ID            string            `grove:"id,pk"`
	AggregateType string            `grove:"aggregate_type"`
	AggregateID   string            `grove:"aggregate_id"`
	Sequence      int64             `grove:"sequence"`
	Type          string            `grove:"type"`
	Payload       string            `grove:"payload"`
	ProducedAt    time.Time         `grove:"produced_at"`
	PrevHash      string            `grove:"prev_hash"`
	Hash          string            `grove:"hash"`
	Metadata      map[string]string `grove:"metadata,type:jsonb"`
}

func toEventModel(e *event.Event) *eventModel {
	return &eventModel{
		ID:            e.ID.String(),
		AggregateType: string(e.AggregateType),
		AggregateID:   e.AggregateID,
		Sequence:      e.Sequence,
		Type:          string(e.Type),
		Payload:       string(e.Payload),
		ProducedAt:    e.ProducedAt,
		PrevHash:      e.PrevHash,
		Hash:          e.Hash,
		Metadata:      e.Metadata,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	eventID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, err
	}
	return &event.Event{
		ID:            eventID,
		AggregateType: event.AggregateType(m.AggregateType),
		AggregateID:   m.AggregateID,
		Sequence:      m.Sequence,
		Type:          event.Type(m.Type),
		Payload:       json.RawMessage(m.Payload),
		ProducedAt:    m.ProducedAt.UTC(),
		PrevHash:      m.PrevHash,
		Hash:          m.Hash,
		Metadata:      m.Metadata,
	}, nil
}

// ==================== Workflow models ====================

type workflowModel struct {
	grove.BaseModel `grove:"table:assetledger_workflows"`

	ID                   string          `grove:"id,pk"`
	Kind                 string          `grove:"kind"`
	ParentID             string          `grove:"parent_id"`
	Status               string          `grove:"status"`
	Input                json.RawMessage `grove:"input,type:jsonb"`
	Steps                json.RawMessage `grove:"steps,type:jsonb"`
	Compensations        json.RawMessage `grove:"compensations,type:jsonb"`
	ParallelCompensation bool            `grove:"parallel_compensation"`
	ContinueWithError    bool            `grove:"continue_with_error"`
	Compensated          bool            `grove:"compensated"`
	Error                string          `grove:"error"`
	CompensationErrors   []string        `grove:"compensation_errors,type:jsonb"`
	CreatedAt            time.Time       `grove:"created_at"`
	UpdatedAt            time.Time       `grove:"updated_at"`
}

func toWorkflowModel(w *saga.Workflow) *workflowModel {
	steps, _ := json.Marshal(w.Steps)                 //nolint:errcheck // plain structs
	compensations, _ := json.Marshal(w.Compensations) //nolint:errcheck // plain structs

	input := w.Input
	if len(input) == 0 {
		input = json.RawMessage("null")
	}

	return &workflowModel{
		ID:                   w.ID,
		Kind:                 w.Kind,
		ParentID:             w.ParentID,
		Status:               string(w.Status),
		Input:                input,
		Steps:                steps,
		Compensations:        compensations,
		ParallelCompensation: w.ParallelCompensation,
		ContinueWithError:    w.ContinueWithError,
		Compensated:          w.Compensated,
		Error:                w.Error,
		CompensationErrors:   w.CompensationErrors,
		CreatedAt:            w.CreatedAt,
		UpdatedAt:            w.UpdatedAt,
	}
}

func fromWorkflowModel(m *workflowModel) (*saga.Workflow, error) {
	w := &saga.Workflow{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                   m.ID,
		Kind:                 m.Kind,
		ParentID:             m.ParentID,
		Status:               saga.Status(m.Status),
		ParallelCompensation: m.ParallelCompensation,
		ContinueWithError:    m.ContinueWithError,
		Compensated:          m.Compensated,
		Error:                m.Error,
		CompensationErrors:   m.CompensationErrors,
	}
	if len(m.Input) > 0 && string(m.Input) != "null" {
		w.Input = m.Input
	}
	if len(m.Steps) > 0 {
		if err := json.Unmarshal(m.Steps, &w.Steps); err != nil {
			return nil, err
		}
	}
	if len(m.Compensations) > 0 {
		if err := json.Unmarshal(m.Compensations, &w.Compensations); err != nil {
			return nil, err
		}
	}
	return w, nil
}
