// Package saga runs multi-step operations that span several aggregates.
//
// A Saga is an ordered list of steps built by value with New. Each step
// returns the compensation that undoes it; compensations are registered only
// for steps whose effect happened and are replayed in reverse order (or
// concurrently) when a later step fails. Workflow progress is persisted after
// every transition so that Recover can compensate work left behind by a crash.
package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/assetledger/types"
)

// Status is the lifecycle state of a workflow.
type Status string

const (
	StatusPending      Status = "pending"
	StatusRunning      Status = "running"
	StatusCompensating Status = "compensating"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// IsTerminal reports whether no further transition is expected.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StepStatus is the state of one step record.
type StepStatus string

const (
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// KindWorkflow is the built-in compensation kind that compensates a child workflow.
const KindWorkflow = "saga.workflow"

var (
	ErrWorkflowNotFound    = errors.New("assetledger: workflow not found")
	ErrStepTimeout         = errors.New("assetledger: workflow step timed out")
	ErrUnknownCompensation = errors.New("assetledger: no handler for compensation kind")
	ErrInvalidSaga         = errors.New("assetledger: invalid saga")
)

// StepError wraps the failure of a named step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("assetledger: step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Compensation is a persisted, serializable undo action. Kind selects the
// Handler; Payload carries its arguments.
type Compensation struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Step is the name of the step that registered it.
	Step string `json:"step,omitempty"`
	// Provisional marks a recovery compensation persisted before its step ran.
	// It only survives in the log when the process died mid-step.
	Provisional bool   `json:"provisional,omitempty"`
	Done        bool   `json:"done,omitempty"`
	Error       string `json:"error,omitempty"`
}

// NewCompensation encodes v as the payload of a compensation of the given kind.
func NewCompensation(kind string, v any) (*Compensation, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("saga: encode %s compensation: %w", kind, err)
	}
	return &Compensation{Kind: kind, Payload: data}, nil
}

// Decode unmarshals the payload into v.
func (c *Compensation) Decode(v any) error {
	return json.Unmarshal(c.Payload, v)
}

// WorkflowRef is the payload of a KindWorkflow compensation.
type WorkflowRef struct {
	WorkflowID string `json:"workflow_id"`
}

// StepRecord is the persisted trace of one executed step.
type StepRecord struct {
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at,omitzero"`
}

// Workflow is the durable state of one saga execution.
type Workflow struct {
	types.Entity

	ID                   string          `json:"id"`
	Kind                 string          `json:"kind"`
	ParentID             string          `json:"parent_id,omitempty"`
	Status               Status          `json:"status"`
	Input                json.RawMessage `json:"input,omitempty"`
	Steps                []StepRecord    `json:"steps"`
	Compensations        []Compensation  `json:"compensations"`
	ParallelCompensation bool            `json:"parallel_compensation"`
	ContinueWithError    bool            `json:"continue_with_error"`
	Compensated          bool            `json:"compensated"`
	Error                string          `json:"error,omitempty"`
	CompensationErrors   []string        `json:"compensation_errors,omitempty"`
}

// Clone returns a deep copy.
func (w *Workflow) Clone() *Workflow {
	cp := *w
	cp.Input = append(json.RawMessage(nil), w.Input...)
	cp.Steps = append([]StepRecord(nil), w.Steps...)
	cp.Compensations = make([]Compensation, len(w.Compensations))
	for i, c := range w.Compensations {
		c.Payload = append(json.RawMessage(nil), c.Payload...)
		cp.Compensations[i] = c
	}
	cp.CompensationErrors = append([]string(nil), w.CompensationErrors...)
	return &cp
}

// Pending returns the indexes of compensations not yet executed.
func (w *Workflow) Pending() []int {
	var out []int
	for i, c := range w.Compensations {
		if !c.Done {
			out = append(out, i)
		}
	}
	return out
}

// ListOpts filters ListWorkflows.
type ListOpts struct {
	Statuses []Status
	ParentID string
	Limit    int
}

// Store persists workflows.
type Store interface {
	// SaveWorkflow inserts or replaces the workflow with w.ID.
	SaveWorkflow(ctx context.Context, w *Workflow) error

	// GetWorkflow returns ErrWorkflowNotFound for unknown ids.
	GetWorkflow(ctx context.Context, workflowID string) (*Workflow, error)

	// ListWorkflows returns matching workflows, oldest first.
	ListWorkflows(ctx context.Context, opts ListOpts) ([]*Workflow, error)
}

// Result is the outcome of running or compensating a workflow.
type Result struct {
	WorkflowID string
	Status     Status
	// Err is the step failure that triggered compensation.
	Err error
	// CompensationErr joins every compensation failure.
	CompensationErr error
	Compensated     bool
}

// OK reports whether the workflow completed.
func (r Result) OK() bool { return r.Status == StatusCompleted }

// Error returns the most relevant failure, or nil.
func (r Result) Error() error {
	if r.Err == nil && r.CompensationErr == nil {
		return nil
	}
	return errors.Join(r.Err, r.CompensationErr)
}
