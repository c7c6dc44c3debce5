package types

import "time"

// Entity carries creation and modification timestamps.
// Aggregates set them from event timestamps so a replay yields the same values.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates a new Entity with current timestamps.
func NewEntity() Entity {
	return EntityAt(time.Now().UTC())
}

// EntityAt creates an Entity whose timestamps are both t.
func EntityAt(t time.Time) Entity {
	return Entity{CreatedAt: t, UpdatedAt: t}
}

// Touch updates the UpdatedAt timestamp to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// TouchAt moves UpdatedAt to t if t is later than the current value.
func (e *Entity) TouchAt(t time.Time) {
	if t.After(e.UpdatedAt) {
		e.UpdatedAt = t
	}
}

// IsZero reports whether the entity was never initialised.
func (e Entity) IsZero() bool {
	return e.CreatedAt.IsZero()
}

// Age returns how long ago the entity was created.
func (e Entity) Age() time.Duration {
	return time.Since(e.CreatedAt)
}
