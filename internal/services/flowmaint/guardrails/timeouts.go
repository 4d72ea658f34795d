// Package guardrails holds the budgets and locks that keep sweeps bounded and exclusive
package guardrails

import (
	"context"
	"time"
)

// Timeouts bounds one sweep. Zero values mean no extra limit at that level
type Timeouts struct {
	// Sweep is the overall budget for a whole sweep
	Sweep time.Duration

	// Step caps each sub-step (watermark, engine, prune, reconcile, report log)
	Step time.Duration

	// Record caps writing the finished report to the history sink
	Record time.Duration
}

// WithSweep returns a context limited by the sweep budget without extending any parent deadline
func WithSweep(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Sweep)
}

// ForStep returns a sub context for one sub-step bounded by Step and any remaining sweep budget
func ForStep(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Step)
}

// Split caps Step so that steps sub-steps run back to back fit inside Sweep. A zero Step
// shares the sweep budget evenly. Without a sweep budget t is returned unchanged
func (t Timeouts) Split(steps int) Timeouts {
	if t.Sweep <= 0 || steps <= 0 {
		return t
	}
	share := t.Sweep / time.Duration(steps)
	if t.Step <= 0 || t.Step > share {
		t.Step = share
	}
	return t
}

// ForRecord returns a context for writes that must land after the sweep: the state
// checkpoint and the history record. It is detached from parent cancellation and the sweep
// deadline so a sweep cut short by its budget still saves what it computed
func ForRecord(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	d := t.Record
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(parent), d)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout takes the tighter of d and the parent remainder. When d is zero the child
// only inherits the parent deadline
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
