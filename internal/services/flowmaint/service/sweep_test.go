package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	perr "flowkeeper/internal/platform/errors"
	"flowkeeper/internal/platform/metrics"
	kit "flowkeeper/internal/platform/testkit"
	"flowkeeper/internal/services/flowmaint/domain"
	"flowkeeper/internal/services/flowmaint/guardrails"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memHistory struct {
	mu      sync.Mutex
	reports []domain.Report
	err     error
}

func (h *memHistory) Record(_ context.Context, r domain.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reports = append(h.reports, r)
	return h.err
}

type fixture struct {
	m       *memRepo
	db      *memDB
	hist    *memHistory
	metrics *metrics.SweepMetrics
	svc     *Service
	now     time.Time
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{m: newMemRepo(), db: &memDB{}, hist: &memHistory{}, now: now}
	f.metrics = metrics.NewSweepMetricsWithRegistry(prometheus.NewRegistry())
	cfg := Config{
		Policy: domain.Policy{
			Prefix:         prefix,
			RetentionDays:  30,
			Granularity:    domain.Daily,
			DefaultEngine:  "heap",
			PollerInterval: time.Minute,
			EngineSkip:     1,
			EngineWindow:   3,
			ReportSource:   "flowview",
		},
		Timeouts: guardrails.Timeouts{Step: time.Second},
		Location: time.UTC,
		LockKey:  42,
	}
	f.svc = New(f.db, binderFor(f.m), cfg,
		WithClock(func() time.Time { return f.now }),
		WithMetrics(f.metrics),
		WithHistory(f.hist),
	)
	f.svc.NewRunID = func() string { return "run-1" }
	return f
}

func (f *fixture) lastChange(t time.Time) {
	f.m.settings[SettingLastChange] = strconv.FormatInt(t.Unix(), 10)
}

func TestSweep_FirstRunSameDay(t *testing.T) {
	now := kit.YearDay(2024, 100, 12)
	f := newFixture(t, now)
	f.m.addTable(prefix+"2024100", "heap", seq(1, 50, now.Add(-30*time.Second))...)
	f.m.listeners, f.m.schedules = 2, 1

	rep, err := f.svc.Sweep(context.Background(), domain.SweepRequest{})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, rep.Status)
	assert.False(t, rep.Maintenance)
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, int64(50), rep.Records)
	assert.Equal(t, "Time:0.00 Listeners:2 Newrecs:50 Schedules:1", rep.Stats())
	require.Len(t, rep.Steps, 2)
	assert.Equal(t, domain.StepWatermark, rep.Steps[0].Step)
	assert.Equal(t, domain.StepEngine, rep.Steps[1].Step)

	assert.Equal(t, "50", f.m.settings[SettingLastSequence])
	assert.Equal(t, prefix+"2024100", f.m.settings[SettingLastTable])
	assert.Equal(t, strconv.FormatInt(now.Unix(), 10), f.m.settings[SettingLastChange])
	assert.Equal(t, rep.Stats(), f.m.settings[SettingStats])
	assert.Len(t, f.m.puts, 1, "state is written once per sweep")

	last, ok := f.svc.LastReport()
	require.True(t, ok)
	assert.Equal(t, rep.RunID, last.RunID)
	require.Len(t, f.hist.reports, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Runs.WithLabelValues("success")))
	assert.Equal(t, 50.0, testutil.ToFloat64(f.metrics.WatermarkSequence))
}

func TestSweep_DayRolloverRunsMaintenance(t *testing.T) {
	now := kit.YearDay(2024, 100, 0).Add(5 * time.Minute)
	f := newFixture(t, now)
	f.lastChange(now.Add(-10 * time.Minute))
	f.m.settings[SettingLastSequence] = "7"
	f.m.settings[SettingLastTable] = prefix + "2024099"

	f.m.addTable(prefix+"2024099", "heap", seq(1, 9, now.Add(-20*time.Minute))...)
	f.m.addTable(prefix+"2024100", "heap", seq(1, 3, now.Add(-time.Minute))...)
	f.m.addTable(prefix+"2024069", "heap")
	f.m.addTable(prefix+"2024070", "heap")
	f.m.cache = []domain.ShardCacheEntry{
		{Checksum: "a", MappedTable: prefix + "2024069"},
		{Checksum: "b", MappedTable: prefix + "2024070"},
	}
	f.m.reportLog = 4

	rep, err := f.svc.Sweep(context.Background(), domain.SweepRequest{})
	require.NoError(t, err)

	assert.True(t, rep.Maintenance)
	assert.Equal(t, domain.StatusSuccess, rep.Status)
	assert.Equal(t, "2024070", rep.Cutoff)
	assert.Equal(t, 1, rep.Dropped)
	assert.Equal(t, 1, rep.Removed, "reconcile must see the partition prune just dropped")
	assert.Equal(t, int64(4), rep.Expired)
	assert.Equal(t, int64(2+3), rep.Records)
	assert.False(t, f.m.has(prefix+"2024069"))
	assert.True(t, f.m.has(prefix+"2024070"))

	var order []domain.Step
	for _, s := range rep.Steps {
		order = append(order, s.Step)
	}
	assert.Equal(t, []domain.Step{domain.StepWatermark, domain.StepEngine, domain.StepPrune, domain.StepReconcile, domain.StepReportLog}, order)
	assert.Equal(t, "3", f.m.settings[SettingLastSequence])
	assert.Equal(t, prefix+"2024100", f.m.settings[SettingLastTable])
}

func TestSweep_PruneFailureStillPersistsWatermark(t *testing.T) {
	now := kit.YearDay(2024, 100, 12)
	f := newFixture(t, now)
	f.m.addTable(prefix+"2024100", "heap", seq(1, 5, now.Add(-time.Second))...)
	f.m.addTable(prefix+"2024001", "heap")
	f.m.failDrop[prefix+"2024001"] = errors.New("lock not available")

	rep, err := f.svc.Sweep(context.Background(), domain.SweepRequest{Force: true})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPartialFailure, rep.Status)
	prune, ok := rep.Step(domain.StepPrune)
	require.True(t, ok)
	assert.Equal(t, "drop_failed", prune.Code)
	rec, ok := rep.Step(domain.StepReconcile)
	require.True(t, ok)
	assert.False(t, rec.Failed(), "later steps still run")

	assert.Equal(t, "5", f.m.settings[SettingLastSequence])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StepFailures.WithLabelValues("prune", "drop_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Runs.WithLabelValues("partial_failure")))
}

func TestSweep_StateUnavailable(t *testing.T) {
	now := kit.YearDay(2024, 100, 12)
	f := newFixture(t, now)
	f.m.addTable(prefix+"2024001", "heap")
	f.m.failGet = errors.New("settings table locked")

	rep, err := f.svc.Sweep(context.Background(), domain.SweepRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartialFailure, rep.Status)
	assert.False(t, rep.Maintenance, "unknown last run must not trigger maintenance")
	assert.True(t, rep.Steps[0].Skipped)
	assert.Empty(t, f.m.puts, "nothing is persisted without a loaded watermark")

	rep, err = f.svc.Sweep(context.Background(), domain.SweepRequest{Force: true})
	require.NoError(t, err)
	assert.True(t, rep.Maintenance)
	assert.Equal(t, 1, rep.Dropped)
}

func TestSweep_StepTimeoutOnlyFailsThatStep(t *testing.T) {
	now := kit.YearDay(2024, 100, 12)
	f := newFixture(t, now)
	f.svc.Cfg.Timeouts.Step = 20 * time.Millisecond
	f.m.addTable(prefix+"2024001", "heap")
	f.m.addTable(prefix+"2024002", "heap")
	f.m.blockDrop = true

	rep, err := f.svc.Sweep(context.Background(), domain.SweepRequest{Force: true})
	require.NoError(t, err)

	prune, _ := rep.Step(domain.StepPrune)
	assert.True(t, prune.Timeout)
	assert.True(t, perr.IsTimeout(prune.Err))
	for _, name := range []domain.Step{domain.StepReconcile, domain.StepReportLog} {
		o, ok := rep.Step(name)
		require.True(t, ok)
		assert.False(t, o.Failed(), name)
	}
	assert.Equal(t, domain.StatusPartialFailure, rep.Status)
}

// deadlineState refuses saves on a context that is already done
type deadlineState struct{ SettingsState }

func (d deadlineState) Save(ctx context.Context, cp domain.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.SettingsState.Save(ctx, cp)
}

func TestSweep_SpentDeadlineStillPersistsAdvance(t *testing.T) {
	now := kit.YearDay(2024, 100, 12)
	f := newFixture(t, now)
	f.svc.State = deadlineState{SettingsState{DB: f.db, Binder: binderFor(f.m)}}
	f.m.addTable(prefix+"2024100", "heap", seq(1, 5, now.Add(-time.Second))...)
	f.m.addTable(prefix+"2024001", "heap")
	f.m.blockDrop = true

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	rep, err := f.svc.Sweep(ctx, domain.SweepRequest{Force: true})
	require.NoError(t, err)

	wm, _ := rep.Step(domain.StepWatermark)
	assert.False(t, wm.Failed())
	prune, _ := rep.Step(domain.StepPrune)
	assert.True(t, prune.Timeout)
	_, failed := rep.Step(domain.StepPersist)
	assert.False(t, failed, "checkpoint must not inherit the spent deadline")
	assert.Equal(t, "5", f.m.settings[SettingLastSequence])
	assert.Equal(t, prefix+"2024100", f.m.settings[SettingLastTable])
}

func TestSweep_ZeroStepBudgetSharesSweepBudget(t *testing.T) {
	now := kit.YearDay(2024, 100, 12)
	f := newFixture(t, now)
	st := deadlineState{SettingsState{DB: f.db, Binder: binderFor(f.m)}}
	f.svc = New(f.db, binderFor(f.m), Config{
		Policy:   f.svc.Cfg.Policy,
		Timeouts: guardrails.Timeouts{Sweep: 80 * time.Millisecond},
		Location: time.UTC,
	}, WithClock(func() time.Time { return f.now }), WithState(st, st))
	require.Equal(t, 10*time.Millisecond, f.svc.Cfg.Timeouts.Step)

	f.m.addTable(prefix+"2024100", "heap", seq(1, 5, now.Add(-time.Second))...)
	f.m.addTable(prefix+"2024001", "heap")
	f.m.cache = []domain.ShardCacheEntry{{Checksum: "a", MappedTable: prefix + "2023001"}}
	f.m.blockDrop = true

	rep, err := f.svc.Sweep(context.Background(), domain.SweepRequest{Force: true})
	require.NoError(t, err)

	prune, _ := rep.Step(domain.StepPrune)
	assert.True(t, prune.Timeout, "a hung drop only uses its own share")
	for _, name := range []domain.Step{domain.StepReconcile, domain.StepReportLog} {
		o, ok := rep.Step(name)
		require.True(t, ok)
		assert.False(t, o.Failed(), name)
	}
	assert.Equal(t, 1, rep.Removed)
	assert.Equal(t, "5", f.m.settings[SettingLastSequence])
	assert.Equal(t, domain.StatusPartialFailure, rep.Status)
}

func TestSweep_PolicyOverridesApply(t *testing.T) {
	now := kit.YearDay(2024, 100, 12)
	f := newFixture(t, now)
	f.m.settings[SettingRetention] = "10"
	f.m.addTable(prefix+"2024089", "heap")
	f.m.addTable(prefix+"2024090", "heap")

	rep, err := f.svc.Sweep(context.Background(), domain.SweepRequest{Force: true})
	require.NoError(t, err)
	assert.Equal(t, "2024090", rep.Cutoff)
	assert.Equal(t, 1, rep.Dropped)

	k, p, err := f.svc.CutoffAt(context.Background(), kit.YearDay(2025, 5, 0))
	require.NoError(t, err)
	assert.Equal(t, 10, p.RetentionDays)
	assert.Equal(t, "2024360", k.String())
}

func TestSweep_PersistFailure(t *testing.T) {
	f := newFixture(t, kit.YearDay(2024, 100, 12))
	f.m.failPut = errors.New("read only transaction")

	rep, err := f.svc.Sweep(context.Background(), domain.SweepRequest{})
	require.NoError(t, err)
	o, ok := rep.Step(domain.StepPersist)
	require.True(t, ok)
	assert.True(t, o.Failed())
	assert.Equal(t, domain.StatusPartialFailure, rep.Status)
}

func TestSweep_RefusesOverlap(t *testing.T) {
	f := newFixture(t, kit.YearDay(2024, 100, 12))
	inside := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = f.svc.Guard.Do(context.Background(), func(context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside
	defer close(release)

	last, _ := f.svc.LastReport()
	assert.Equal(t, domain.StatusRunning, last.Status)

	_, err := f.svc.Sweep(context.Background(), domain.SweepRequest{})
	assert.True(t, guardrails.IsHeld(err))
	assert.True(t, perr.IsCode(err, perr.ErrorCodeConflict))
}

func TestSweep_HistoryFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, kit.YearDay(2024, 100, 12))
	f.hist.err = errors.New("clickhouse down")
	rep, err := f.svc.Sweep(context.Background(), domain.SweepRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, rep.Status)
}

func TestNew_PanicsWithoutDeps(t *testing.T) {
	kit.MustPanic(t, func() { New(nil, binderFor(newMemRepo()), Config{}) })
	kit.MustPanic(t, func() { New(&memDB{}, nil, Config{}) })
}
