package guardrails

import (
	"context"
	"errors"
	"sync/atomic"

	perr "flowkeeper/internal/platform/errors"
	"flowkeeper/internal/platform/logger"
	"flowkeeper/internal/platform/store"
)

// ErrSweepHeld signals another sweep, in this process or another, is already running
var ErrSweepHeld = perr.New(perr.ErrorCodeConflict, "flowmaint: sweep already running")

// SingleSweep admits one sweep at a time. The in-process flag is always checked;
// when a Locker is present a session advisory lock on Key extends that across processes
type SingleSweep struct {
	Locker store.Locker
	Key    int64

	running atomic.Bool
}

// Running reports whether this process is inside Do
func (g *SingleSweep) Running() bool { return g.running.Load() }

// Do runs fn while holding the guard, or returns ErrSweepHeld without running it
func (g *SingleSweep) Do(ctx context.Context, fn func(context.Context) error) error {
	if !g.running.CompareAndSwap(false, true) {
		return ErrSweepHeld
	}
	defer g.running.Store(false)

	if g.Locker == nil {
		return fn(ctx)
	}

	unlock, ok, err := g.Locker.TryLock(ctx, g.Key)
	if err != nil {
		return perr.FromPostgres(err, "flowmaint: acquire sweep lock")
	}
	if !ok {
		return ErrSweepHeld
	}
	defer func() {
		// the lock is session scoped; release even when the sweep ctx is done
		uctx, cancel := ForRecord(ctx, Timeouts{})
		defer cancel()
		if uerr := unlock(uctx); uerr != nil {
			logger.C(ctx).Warn().Err(uerr).Int64("lock_key", g.Key).Msg("flowmaint: release sweep lock failed")
		}
	}()
	return fn(ctx)
}

// IsHeld reports whether err means the sweep was refused by the guard
func IsHeld(err error) bool { return errors.Is(err, ErrSweepHeld) }
