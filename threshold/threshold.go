// Package threshold counts balance-affecting events per aggregate and tells
// the aggregate when to emit a ThresholdReached event.
//
// The counter is ordinary aggregate state: it is incremented when a balance
// event is applied and reset when a ThresholdReached event is applied, so a
// replay of the same stream reproduces the same threshold points.
package threshold

// DefaultLimit is the number of balance events between threshold events.
const DefaultLimit = 1000

// Counter is aggregate-local threshold state.
type Counter struct {
	limit int
	count int
}

// New returns a Counter with the given limit. A non-positive limit selects DefaultLimit.
func New(limit int) Counter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Counter{limit: limit}
}

// Increment records one balance-affecting event.
func (c *Counter) Increment() { c.count++ }

// Reached reports whether the next output of the command must be a threshold event.
func (c *Counter) Reached() bool { return c.count >= c.limit }

// Reset returns the count to zero.
func (c *Counter) Reset() { c.count = 0 }

// Count returns the number of balance events since the last reset.
func (c Counter) Count() int { return c.count }

// Limit returns the configured limit.
func (c Counter) Limit() int { return c.limit }

// Restore sets the count, used when rebuilding from a snapshot.
func (c *Counter) Restore(count int) { c.count = count }
