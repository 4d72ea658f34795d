package domain

import (
	"context"
	"time"
)

// StorageRepo is every storage action a sweep performs against the flow database
type StorageRepo interface {
	// ListTables returns relations named like prefix%, newest name first
	ListTables(ctx context.Context, prefix string) ([]TableInfo, error)
	TableExists(ctx context.Context, name string) (bool, error)
	DropTable(ctx context.Context, name string) error
	SetEngine(ctx context.Context, name, engine string) error

	// CountSince tallies rows with end_time at or after since
	CountSince(ctx context.Context, table string, since time.Time) (Tally, error)
	// CountAfter tallies rows with sequence strictly greater than seq
	CountAfter(ctx context.Context, table string, seq int64) (Tally, error)
	CountAll(ctx context.Context, table string) (Tally, error)

	ListShardCache(ctx context.Context) ([]ShardCacheEntry, error)
	DeleteShardCache(ctx context.Context, e ShardCacheEntry) (int64, error)

	// ExpireReportLog deletes log rows of source sent more than days ago
	ExpireReportLog(ctx context.Context, days int, source string) (int64, error)

	GetSettings(ctx context.Context, names ...string) (map[string]string, error)
	PutSettings(ctx context.Context, kv map[string]string) error

	CountListeners(ctx context.Context) (int64, error)
	// CountDueSchedules counts enabled schedules whose send interval has elapsed at now
	CountDueSchedules(ctx context.Context, now time.Time, source string) (int64, error)
}

// StateStore loads and saves the sweep checkpoint
type StateStore interface {
	// Load returns the stored watermark; found is false when nothing was ever written
	Load(ctx context.Context) (w Watermark, found bool, err error)
	Save(ctx context.Context, cp Checkpoint) error
}

// PolicySource layers stored overrides on top of configured defaults
type PolicySource interface {
	Policy(ctx context.Context, defaults Policy) (Policy, error)
}

// HistorySink records finished sweeps somewhere queryable
type HistorySink interface {
	Record(ctx context.Context, r Report) error
}

// SweepRequest asks for one sweep
type SweepRequest struct {
	// Force runs the retention steps even if the day has not rolled over
	Force bool `json:"maintenance"`
}

// SweepPort runs sweeps
type SweepPort interface {
	Sweep(ctx context.Context, req SweepRequest) (Report, error)
}

// ReportPort exposes the last finished sweep
type ReportPort interface {
	LastReport() (Report, bool)
}

// CutoffPort evaluates the retention boundary with the effective policy
type CutoffPort interface {
	CutoffAt(ctx context.Context, day time.Time) (Key, Policy, error)
}

// SchedulerPort drives periodic sweeps until ctx is done
type SchedulerPort interface {
	Run(ctx context.Context) error
	Next() time.Time
}
