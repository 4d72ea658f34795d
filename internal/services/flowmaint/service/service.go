// Package service provides the flow partition maintenance implementation
package service

import (
	"context"
	"sync"
	"time"

	"flowkeeper/internal/modkit/repokit"
	"flowkeeper/internal/platform/metrics"
	"flowkeeper/internal/platform/store"
	ptime "flowkeeper/internal/platform/time"
	"flowkeeper/internal/services/flowmaint/domain"
	"flowkeeper/internal/services/flowmaint/guardrails"

	"github.com/google/uuid"
)

// Config is the static part of the maintenance policy plus its budgets
type Config struct {
	// Policy holds the defaults that settings overrides are layered on
	Policy domain.Policy

	Timeouts guardrails.Timeouts

	// Location decides calendar days for partition names and the daily trigger
	Location *time.Location

	// LockKey is the advisory lock key shared by every flowkeeper process
	LockKey int64
}

// Service runs sweeps against one flow database
type Service struct {
	DB       repokit.TxRunner
	Binder   repokit.Binder[domain.StorageRepo]
	Cfg      Config
	State    domain.StateStore
	Policies domain.PolicySource
	History  domain.HistorySink
	Metrics  *metrics.SweepMetrics
	Guard    *guardrails.SingleSweep
	Clock    ptime.Clock
	NewRunID func() string

	mu   sync.RWMutex
	last *domain.Report
}

var (
	_ domain.SweepPort  = (*Service)(nil)
	_ domain.ReportPort = (*Service)(nil)
	_ domain.CutoffPort = (*Service)(nil)
)

// Option customizes a Service
type Option func(*Service)

// WithHistory records every finished sweep to h
func WithHistory(h domain.HistorySink) Option { return func(s *Service) { s.History = h } }

// WithMetrics exports sweep metrics through m
func WithMetrics(m *metrics.SweepMetrics) Option { return func(s *Service) { s.Metrics = m } }

// WithLocker adds cross-process exclusion on Cfg.LockKey
func WithLocker(l store.Locker) Option { return func(s *Service) { s.Guard.Locker = l } }

// WithClock replaces the wall clock
func WithClock(c ptime.Clock) Option { return func(s *Service) { s.Clock = c } }

// WithState replaces the settings-backed state and policy stores
func WithState(st domain.StateStore, ps domain.PolicySource) Option {
	return func(s *Service) { s.State, s.Policies = st, ps }
}

// sweepSteps counts the sub-steps of one sweep bounded by Timeouts.Step: policy, state load,
// watermark, engine, prune, reconcile, report log and the summary counts
const sweepSteps = 8

// New constructs the maintenance service. Timeouts.Step is capped so every sub-step fits in
// the sweep budget; the checkpoint save runs on its own budget after it
func New(db repokit.TxRunner, binder repokit.Binder[domain.StorageRepo], cfg Config, opts ...Option) *Service {
	if db == nil {
		panic("flowmaint.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("flowmaint.Service requires a non nil Repo binder")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	cfg.Timeouts = cfg.Timeouts.Split(sweepSteps)
	st := SettingsState{DB: db, Binder: binder}
	s := &Service{
		DB:       db,
		Binder:   binder,
		Cfg:      cfg,
		State:    st,
		Policies: st,
		Guard:    &guardrails.SingleSweep{Key: cfg.LockKey},
		Clock:    ptime.System,
		NewRunID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LastReport returns the most recent finished sweep
func (s *Service) LastReport() (domain.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return domain.Report{Status: s.idleStatus()}, false
	}
	return *s.last, true
}

func (s *Service) idleStatus() domain.Status {
	if s.Guard.Running() {
		return domain.StatusRunning
	}
	return domain.StatusIdle
}

// Running reports whether a sweep is in progress in this process
func (s *Service) Running() bool { return s.Guard.Running() }

// CutoffAt evaluates the retention boundary for day under the effective policy
func (s *Service) CutoffAt(ctx context.Context, day time.Time) (domain.Key, domain.Policy, error) {
	p, err := s.Policies.Policy(ctx, s.Cfg.Policy)
	if err != nil {
		return domain.Key{}, p, err
	}
	return domain.Cutoff(day.In(s.Cfg.Location), p.RetentionDays, p.Granularity), p, nil
}
