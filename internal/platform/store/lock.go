package store

import "context"

// Unlock releases a lock obtained from a Locker
type Unlock func(ctx context.Context) error

// Locker hands out cross-process, session-scoped advisory locks.
// ok is false when another session holds key
type Locker interface {
	TryLock(ctx context.Context, key int64) (unlock Unlock, ok bool, err error)
}
