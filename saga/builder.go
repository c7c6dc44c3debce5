package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Action performs a step. On success it returns the compensation that undoes
// the step, or nil when there is nothing to undo. An action that fails after
// its effect was recorded may return both.
type Action func(ctx context.Context) (*Compensation, error)

// Step is one forward step of a saga.
type Step struct {
	Name   string
	Action Action
	// Recovery is persisted before Action runs and executed only if the
	// process dies before the step finishes. Its handler must no-op when the
	// step left no effect.
	Recovery *Compensation
	// Timeout overrides the saga step timeout when positive.
	Timeout time.Duration
}

// Saga is an immutable workflow definition. Build it with New.
type Saga struct {
	id                string
	kind              string
	parentID          string
	input             json.RawMessage
	steps             []Step
	parallel          bool
	continueWithError bool
	stepTimeout       time.Duration
}

// ID returns the fixed workflow id, empty when one is generated on Run.
func (s *Saga) ID() string { return s.id }

// Kind returns the workflow kind.
func (s *Saga) Kind() string { return s.kind }

// Steps returns the number of steps.
func (s *Saga) Steps() int { return len(s.steps) }

// Builder composes a Saga.
type Builder struct {
	s   Saga
	err error
}

// New starts a saga of the given kind.
func New(kind string) *Builder {
	return &Builder{s: Saga{kind: kind}}
}

// WithID fixes the workflow id. Steps usually derive idempotency references from it.
func (b *Builder) WithID(id string) *Builder {
	b.s.id = id
	return b
}

// WithParent links the workflow to a parent workflow.
func (b *Builder) WithParent(parentID string) *Builder {
	b.s.parentID = parentID
	return b
}

// WithInput stores v as the workflow input for inspection.
func (b *Builder) WithInput(v any) *Builder {
	data, err := json.Marshal(v)
	if err != nil {
		b.err = fmt.Errorf("%w: encode input: %v", ErrInvalidSaga, err)
		return b
	}
	b.s.input = data
	return b
}

// Step appends a step.
func (b *Builder) Step(name string, action Action) *Builder {
	return b.Add(Step{Name: name, Action: action})
}

// StepWithRecovery appends a step whose recovery compensation is persisted before it runs.
func (b *Builder) StepWithRecovery(name string, recovery *Compensation, action Action) *Builder {
	return b.Add(Step{Name: name, Action: action, Recovery: recovery})
}

// Add appends a fully specified step.
func (b *Builder) Add(step Step) *Builder {
	b.s.steps = append(b.s.steps, step)
	return b
}

// ParallelCompensation runs compensations concurrently instead of LIFO.
func (b *Builder) ParallelCompensation(on bool) *Builder {
	b.s.parallel = on
	return b
}

// ContinueWithError keeps compensating after a compensation fails.
func (b *Builder) ContinueWithError(on bool) *Builder {
	b.s.continueWithError = on
	return b
}

// StepTimeout bounds every step without its own timeout. Zero disables it.
func (b *Builder) StepTimeout(d time.Duration) *Builder {
	b.s.stepTimeout = d
	return b
}

// Build validates and returns the saga.
func (b *Builder) Build() (*Saga, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.s.kind == "" {
		return nil, fmt.Errorf("%w: kind is required", ErrInvalidSaga)
	}
	if len(b.s.steps) == 0 {
		return nil, fmt.Errorf("%w: %s has no steps", ErrInvalidSaga, b.s.kind)
	}

	seen := make(map[string]struct{}, len(b.s.steps))
	for i, st := range b.s.steps {
		if st.Name == "" {
			return nil, fmt.Errorf("%w: step %d has no name", ErrInvalidSaga, i)
		}
		if st.Action == nil {
			return nil, fmt.Errorf("%w: step %q has no action", ErrInvalidSaga, st.Name)
		}
		if _, dup := seen[st.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate step %q", ErrInvalidSaga, st.Name)
		}
		seen[st.Name] = struct{}{}
	}

	s := b.s
	s.steps = append([]Step(nil), b.s.steps...)
	return &s, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Saga {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
