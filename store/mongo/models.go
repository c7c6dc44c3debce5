package mongo

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

// Payload is stored as a string so the hashed bytes survive BSON round trips.
type eventModel struct {
	grove.BaseModel `grove:"table:assetledger_events"`

	ID            string            `grove:"id,pk"          bson:"_id"`
	AggregateType string            `grove:"aggregate_type" bson:"aggregate_type"`
	AggregateID   string            `grove:"aggregate_id"   bson:"aggregate_id"`
	Sequence      int64             `grove:"sequence"       bson:"sequence"`
	Type          string            `grove:"type"           bson:"type"`
	Payload       string            `grove:"payload"        bson:"payload"`
	ProducedAt    time.Time         `grove:"produced_at"    bson:"produced_at"`
	PrevHash      string            `grove:"prev_hash"      bson:"prev_hash,omitempty"`
	Hash          string            `grove:"hash"           bson:"hash,omitempty"`
	Metadata      map[string]string `grove:"metadata"       bson:"metadata,omitempty"`
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

	ID                   string              `grove:"id,pk"                 bson:"_id"`
	Kind                 string              `grove:"kind"                  bson:"kind"`
	ParentID             string              `grove:"parent_id"             bson:"parent_id"`
	Status               string              `grove:"status"                bson:"status"`
	Input                string              `grove:"input"                 bson:"input,omitempty"`
	Steps                []stepModel         `grove:"steps"                 bson:"steps"`
	Compensations        []compensationModel `grove:"compensations"         bson:"compensations"`
	ParallelCompensation bool                `grove:"parallel_compensation" bson:"parallel_compensation"`
	ContinueWithError    bool                `grove:"continue_with_error"   bson:"continue_with_error"`
	Compensated          bool                `grove:"compensated"           bson:"compensated"`
	Error                string              `grove:"error"                 bson:"error,omitempty"`
	CompensationErrors   []string            `grove:"compensation_errors"   bson:"compensation_errors,omitempty"`
	CreatedAt            time.Time           `grove:"created_at"            bson:"created_at"`
	UpdatedAt            time.Time           `grove:"updated_at"            bson:"updated_at"`
}

type stepModel struct {
	Name       string    `bson:"name"`
	Status     string    `bson:"status"`
	Error      string    `bson:"error,omitempty"`
	StartedAt  time.Time `bson:"started_at"`
	FinishedAt time.Time `bson:"finished_at,omitempty"`
}

type compensationModel struct {
	Kind        string `bson:"kind"`
	Payload     string `bson:"payload,omitempty"`
	Step        string `bson:"step,omitempty"`
	Provisional bool   `bson:"provisional,omitempty"`
	Done        bool   `bson:"done,omitempty"`
	Error       string `bson:"error,omitempty"`
}

func toWorkflowModel(w *saga.Workflow) *workflowModel {
	steps := make([]stepModel, len(w.Steps))
	for i, st := range w.Steps {
		steps[i] = stepModel{
			Name:       st.Name,
			Status:     string(st.Status),
			Error:      st.Error,
			StartedAt:  st.StartedAt,
			FinishedAt: st.FinishedAt,
		}
	}

	comps := make([]compensationModel, len(w.Compensations))
	for i, c := range w.Compensations {
		comps[i] = compensationModel{
			Kind:        c.Kind,
			Payload:     string(c.Payload),
			Step:        c.Step,
			Provisional: c.Provisional,
			Done:        c.Done,
			Error:       c.Error,
		}
	}

	return &workflowModel{
		ID:                   w.ID,
		Kind:                 w.Kind,
		ParentID:             w.ParentID,
		Status:               string(w.Status),
		Input:                string(w.Input),
		Steps:                steps,
		Compensations:        comps,
		ParallelCompensation: w.ParallelCompensation,
		ContinueWithError:    w.ContinueWithError,
		Compensated:          w.Compensated,
		Error:                w.Error,
		CompensationErrors:   w.CompensationErrors,
		CreatedAt:            w.CreatedAt,
		UpdatedAt:            w.UpdatedAt,
	}
}

func fromWorkflowModel(m *workflowModel) *saga.Workflow {
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
	if m.Input != "" {
		w.Input = json.RawMessage(m.Input)
	}
	for _, st := range m.Steps {
		w.Steps = append(w.Steps, saga.StepRecord{
			Name:       st.Name,
			Status:     saga.StepStatus(st.Status),
			Error:      st.Error,
			StartedAt:  st.StartedAt,
			FinishedAt: st.FinishedAt,
		})
	}
	for _, c := range m.Compensations {
		comp := saga.Compensation{
			Kind:        c.Kind,
			Step:        c.Step,
			Provisional: c.Provisional,
			Done:        c.Done,
			Error:       c.Error,
		}
		if c.Payload != "" {
			comp.Payload = json.RawMessage(c.Payload)
		}
		w.Compensations = append(w.Compensations, comp)
	}
	return w
}
