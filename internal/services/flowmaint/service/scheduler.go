package service

import (
	"context"
	"time"

	perr "flowkeeper/internal/platform/errors"
	"flowkeeper/internal/platform/logger"
	"flowkeeper/internal/services/flowmaint/domain"
	"flowkeeper/internal/services/flowmaint/guardrails"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule matches the collector poller cadence
const DefaultSchedule = "@every 1m"

// Scheduler triggers sweeps on a cron schedule. A tick that lands while the previous
// sweep is still running is skipped
type Scheduler struct {
	Sweeper  domain.SweepPort
	Location *time.Location

	spec  string
	sched cron.Schedule
	now   func() time.Time
}

var _ domain.SchedulerPort = (*Scheduler)(nil)

// NewScheduler validates spec (standard 5 field cron or a descriptor such as @every 1m)
func NewScheduler(sw domain.SweepPort, spec string, loc *time.Location) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "flowmaint: bad schedule %q", spec)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{Sweeper: sw, Location: loc, spec: spec, sched: sched, now: time.Now}, nil
}

// Next returns when the next tick fires
func (s *Scheduler) Next() time.Time { return s.sched.Next(s.now().In(s.Location)) }

// Run blocks until ctx is done, then waits for a running sweep to return
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{l: *logger.Named("flowmaint.cron")}
	c := cron.New(
		cron.WithLocation(s.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(s.sched, cron.FuncJob(func() { s.tick(ctx) }))

	logger.C(ctx).Info().Str("schedule", s.spec).Time("next", s.Next()).Msg("flowmaint: scheduler started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	logger.C(ctx).Info().Msg("flowmaint: scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	rep, err := s.Sweeper.Sweep(ctx, domain.SweepRequest{})
	switch {
	case guardrails.IsHeld(err):
		logger.C(ctx).Debug().Msg("flowmaint: sweep already running elsewhere; tick skipped")
	case err != nil:
		logger.C(ctx).Error().Err(err).Msg("flowmaint: sweep refused")
	default:
		logger.C(ctx).Debug().Str("run_id", rep.RunID).Str("status", string(rep.Status)).Msg("flowmaint: tick done")
	}
}

// cronLogger routes cron's key/value logging into zerolog
type cronLogger struct{ l logger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
