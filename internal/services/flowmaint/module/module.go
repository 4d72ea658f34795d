// Package module wires up the flowmaint service as a modkit.Module
package module

import (
	"context"
	"time"

	"flowkeeper/internal/modkit"
	modreg "flowkeeper/internal/modkit/module"
	"flowkeeper/internal/platform/logger"
	"flowkeeper/internal/platform/metrics"
	phttp "flowkeeper/internal/platform/net/http"
	"flowkeeper/internal/platform/store"

	fmdom "flowkeeper/internal/services/flowmaint/domain"
	"flowkeeper/internal/services/flowmaint/guardrails"
	fmhttp "flowkeeper/internal/services/flowmaint/http"
	fmrepo "flowkeeper/internal/services/flowmaint/repo"
	fmservice "flowkeeper/internal/services/flowmaint/service"
)

// Name is the registry name of the module
const Name = "flowmaint"

// Ports exported by the flowmaint module
type Ports struct {
	Sweeper   fmdom.SweepPort
	Reports   fmdom.ReportPort
	Cutoff    fmdom.CutoffPort
	Scheduler fmdom.SchedulerPort
}

// Module implements modkit.Module for flowmaint
type Module struct {
	deps    modkit.Deps
	opts    Options
	ports   Ports
	started time.Time
}

var _ modkit.Module = (*Module)(nil)

// New constructs and wires the module. Options come from deps.Cfg with overrides
// layered on top; invalid options panic
func New(deps modkit.Deps, overrides Overrides) *Module {
	opts := FromConfig(deps.Cfg).Apply(overrides)
	if err := opts.Validate(); err != nil {
		logger.Get().Panic().Err(err).Msg("flowmaint: invalid options")
	}

	svcOpts := []fmservice.Option{
		fmservice.WithMetrics(metrics.NewSweepMetricsWithRegistry(deps.Registerer())),
	}
	if deps.Locker != nil {
		svcOpts = append(svcOpts, fmservice.WithLocker(deps.Locker))
	}
	if deps.CH != nil {
		svcOpts = append(svcOpts, fmservice.WithHistory(fmservice.CHHistory{CH: deps.CH, Table: opts.HistoryTable}))
	}

	svc := fmservice.New(
		deps.PG,
		fmrepo.NewPG(),
		fmservice.Config{
			Policy: opts.Policy(),
			Timeouts: guardrails.Timeouts{
				Sweep:  opts.SweepTimeout,
				Step:   opts.StepTimeout,
				Record: opts.RecordTimeout,
			},
			Location: opts.Location,
			LockKey:  opts.LockKey,
		},
		svcOpts...,
	)

	sched, err := fmservice.NewScheduler(svc, opts.Schedule, opts.Location)
	if err != nil {
		logger.Get().Panic().Err(err).Str("schedule", opts.Schedule).Msg("flowmaint: invalid schedule")
	}

	m := &Module{deps: deps, opts: opts, started: time.Now()}
	m.ports = Ports{Sweeper: svc, Reports: svc, Cutoff: svc, Scheduler: sched}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return Name }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Options returns the effective options
func (m *Module) Options() Options { return m.opts }

// EnsureHistory creates the ClickHouse history table; a no-op without ClickHouse
func (m *Module) EnsureHistory(ctx context.Context) error {
	if m.deps.CH == nil {
		return nil
	}
	return fmservice.CHHistory{CH: m.deps.CH, Table: m.opts.HistoryTable}.Ensure(ctx)
}

// MountRoutes mounts the ops endpoints
func (m *Module) MountRoutes(r phttp.Router) {
	fmhttp.Register(r, fmhttp.Deps{
		Sweeper:   m.ports.Sweeper,
		Reports:   m.ports.Reports,
		Cutoff:    m.ports.Cutoff,
		Ready:     m.ready,
		Location:  m.opts.Location,
		StartedAt: m.started,
	})
}

func (m *Module) ready(ctx context.Context) error {
	if p, ok := m.deps.PG.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Register builds the module and publishes its ports in the registry
func Register(deps modkit.Deps, overrides Overrides) *Module {
	m := New(deps, overrides)
	modreg.Register(Name, m.Ports())
	return m
}
