package sqlite

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/id"
	"github.com/xraph/assetledger/saga"
	"github.com/xraph/assetledger/types"
)

// SQLite has no JSON column type; structured fields are stored as TEXT.

type eventModel struct {
	grove.BaseModel `grove:"table:assetledger_events"`

	ID            string    `grove:"id,pk"`
	AggregateType string    `grove:"aggregate_type"`
	AggregateID   string    `grove:"aggregate_id"`
	Sequence      int64     `grove:"sequence"`
	Type          string    `grove:"type"`
	Payload       string    `grove:"payload"`
	ProducedAt    time.Time `grove:"produced_at"`
	PrevHash      string    `grove:"prev_hash"`
	Hash          string    `grove:"hash"`
	Metadata      string    `grove:"metadata"`
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
		Metadata:      encodeJSON(e.Metadata, "{}"),
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	eventID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, err
	}
	e := &event.Event{
		ID:            eventID,
		AggregateType: event.AggregateType(m.AggregateType),
		AggregateID:   m.AggregateID,
		Sequence:      m.Sequence,
		Type:          event.Type(m.Type),
		Payload:       json.RawMessage(m.Payload),
		ProducedAt:    m.ProducedAt.UTC(),
		PrevHash:      m.PrevHash,
		Hash:          m.Hash,
	}
	if m.Metadata != "" && m.Metadata != "{}" && m.Metadata != "null" {
		if err := json.Unmarshal([]byte(m.Metadata), &e.Metadata); err != nil {
			return nil, err
		}
	}
	return e, nil
}

type workflowModel struct {
	grove.BaseModel `grove:"table:assetledger_workflows"`

	ID                   string    `grove:"id,pk"`
	Kind                 string    `grove:"kind"`
	ParentID             string    `grove:"parent_id"`
	Status               string    `grove:"status"`
	Input                string    `grove:"input"`
	Steps                string    `grove:"steps"`
	Compensations        string    `grove:"compensations"`
	ParallelCompensation bool      `grove:"parallel_compensation"`
	ContinueWithError    bool      `grove:"continue_with_error"`
	Compensated          bool      `grove:"compensated"`
	Error                string    `grove:"error"`
	CompensationErrors   string    `grove:"compensation_errors"`
	CreatedAt            time.Time `grove:"created_at"`
	UpdatedAt            time.Time `grove:"updated_at"`
}

func toWorkflowModel(w *saga.Workflow) *workflowModel {
	input := "null"
	if len(w.Input) > 0 {
		input = string(w.Input)
	}
	return &workflowModel{
		ID:                   w.ID,
		Kind:                 w.Kind,
		ParentID:             w.ParentID,
		Status:               string(w.Status),
		Input:                input,
		Steps:                encodeJSON(w.Steps, "[]"),
		Compensations:        encodeJSON(w.Compensations, "[]"),
		ParallelCompensation: w.ParallelCompensation,
		ContinueWithError:    w.ContinueWithError,
		Compensated:          w.Compensated,
		Error:                w.Error,
		CompensationErrors:   encodeJSON(w.CompensationErrors, "[]"),
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
	}
	if m.Input != "" && m.Input != "null" {
		w.Input = json.RawMessage(m.Input)
	}
	for _, f := range []struct {
		raw string
		dst any
	}{
		{m.Steps, &w.Steps},
		{m.Compensations, &w.Compensations},
		{m.CompensationErrors, &w.CompensationErrors},
	} {
		if f.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func encodeJSON(v any, empty string) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return empty
	}
	return string(data)
}
