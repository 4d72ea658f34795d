package module

import (
	"time"

	"flowkeeper/internal/platform/config"
	"flowkeeper/internal/platform/net/http/bind"
	"flowkeeper/internal/services/flowmaint/domain"
	"flowkeeper/internal/services/flowmaint/service"
)

// DefaultLockKey is the advisory lock key shared by flowkeeper processes on one database
const DefaultLockKey int64 = 0x666c6f776b6565 // "flowkee"

// Options for the flowmaint module
type Options struct {
	Prefix         string        `json:"prefix" validate:"required,max=48"`
	RetentionDays  int           `json:"retention_days" validate:"min=0,max=3650"`
	Mode           string        `json:"mode" validate:"oneof=daily hourly"`
	DefaultEngine  string        `json:"default_engine" validate:"omitempty,max=63"`
	PollerInterval time.Duration `json:"poller_interval" validate:"min=1s"`
	EngineWindow   int           `json:"engine_window" validate:"min=0,max=48"`
	EngineSkip     int           `json:"engine_skip" validate:"min=0,max=48"`
	ReportSource   string        `json:"report_source" validate:"required"`

	StepTimeout   time.Duration `json:"step_timeout" validate:"min=0"`
	SweepTimeout  time.Duration `json:"sweep_timeout" validate:"min=0"`
	RecordTimeout time.Duration `json:"record_timeout" validate:"min=0"`

	Schedule     string         `json:"schedule" validate:"required"`
	Location     *time.Location `json:"-"`
	LockKey      int64          `json:"lock_key"`
	HistoryTable string         `json:"history_table" validate:"omitempty,max=128"`
}

// FromConfig fills options from environment
// FLOWMAINT_PARTITION_PREFIX (default plugin_flowview_raw_) names the flow partitions
// FLOWMAINT_RETENTION_DAYS (default 30) is how many days of partitions are kept
// FLOWMAINT_PARTITION_MODE (default daily) is daily or hourly
// FLOWMAINT_DEFAULT_ENGINE (default heap) is the access method recent partitions are moved to; empty disables
// FLOWMAINT_POLLER_INTERVAL (default 5m) seeds the first run's last change time
// FLOWMAINT_ENGINE_WINDOW (default 3) and FLOWMAINT_ENGINE_SKIP (default 1) bound engine checks
// FLOWMAINT_STEP_TIMEOUT (default 30s), FLOWMAINT_SWEEP_TIMEOUT (default 10m) and FLOWMAINT_RECORD_TIMEOUT (default 5s) are budgets
// FLOWMAINT_SCHEDULE (default @every 1m) is a cron spec
// FLOWMAINT_TZ (default Local) decides calendar days
func FromConfig(cfg config.Conf) Options {
	n := cfg.Prefix("FLOWMAINT_")
	return Options{
		Prefix:         n.MayString("PARTITION_PREFIX", "plugin_flowview_raw_"),
		RetentionDays:  n.MayInt("RETENTION_DAYS", 30),
		Mode:           n.MayEnum("PARTITION_MODE", "daily", "daily", "hourly"),
		DefaultEngine:  n.MayString("DEFAULT_ENGINE", "heap"),
		PollerInterval: n.MayDuration("POLLER_INTERVAL", 5*time.Minute),
		EngineWindow:   n.MayInt("ENGINE_WINDOW", 3),
		EngineSkip:     n.MayInt("ENGINE_SKIP", 1),
		ReportSource:   n.MayString("REPORT_SOURCE", "flowview"),
		StepTimeout:    n.MayDuration("STEP_TIMEOUT", 30*time.Second),
		SweepTimeout:   n.MayDuration("SWEEP_TIMEOUT", 10*time.Minute),
		RecordTimeout:  n.MayDuration("RECORD_TIMEOUT", 5*time.Second),
		Schedule:       n.MayString("SCHEDULE", service.DefaultSchedule),
		Location:       n.MayLocation("TZ", time.Local),
		LockKey:        int64(n.MayInt("LOCK_KEY", int(DefaultLockKey))),
		HistoryTable:   n.MayString("HISTORY_TABLE", service.DefaultHistoryTable),
	}
}

// Validate checks the option ranges
func (o Options) Validate() error { return bind.Validate(o) }

// Overrides are programmatic changes layered over FromConfig. Empty strings, zero durations
// and nil pointers keep the configured value; the counts are pointers because zero retention
// and zero skip are valid
type Overrides struct {
	Prefix         string
	RetentionDays  *int
	Mode           string
	DefaultEngine  string
	PollerInterval time.Duration
	EngineWindow   *int
	EngineSkip     *int
	StepTimeout    time.Duration
	SweepTimeout   time.Duration
	Schedule       string
	Location       *time.Location
	LockKey        int64
	HistoryTable   string
}

// Apply returns o with ov layered on top
func (o Options) Apply(ov Overrides) Options {
	if ov.Prefix != "" {
		o.Prefix = ov.Prefix
	}
	if ov.RetentionDays != nil {
		o.RetentionDays = *ov.RetentionDays
	}
	if ov.Mode != "" {
		o.Mode = ov.Mode
	}
	if ov.DefaultEngine != "" {
		o.DefaultEngine = ov.DefaultEngine
	}
	if ov.PollerInterval != 0 {
		o.PollerInterval = ov.PollerInterval
	}
	if ov.EngineWindow != nil {
		o.EngineWindow = *ov.EngineWindow
	}
	if ov.EngineSkip != nil {
		o.EngineSkip = *ov.EngineSkip
	}
	if ov.StepTimeout != 0 {
		o.StepTimeout = ov.StepTimeout
	}
	if ov.SweepTimeout != 0 {
		o.SweepTimeout = ov.SweepTimeout
	}
	if ov.Schedule != "" {
		o.Schedule = ov.Schedule
	}
	if ov.Location != nil {
		o.Location = ov.Location
	}
	if ov.LockKey != 0 {
		o.LockKey = ov.LockKey
	}
	if ov.HistoryTable != "" {
		o.HistoryTable = ov.HistoryTable
	}
	return o
}

// Policy converts the options into the default maintenance policy
func (o Options) Policy() domain.Policy {
	g, err := domain.ParseGranularity(o.Mode)
	if err != nil {
		g = domain.Daily
	}
	return domain.Policy{
		Prefix:         o.Prefix,
		RetentionDays:  o.RetentionDays,
		Granularity:    g,
		DefaultEngine:  o.DefaultEngine,
		PollerInterval: o.PollerInterval,
		EngineSkip:     o.EngineSkip,
		EngineWindow:   o.EngineWindow,
		ReportSource:   o.ReportSource,
	}
}
