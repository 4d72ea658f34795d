package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	perr "flowkeeper/internal/platform/errors"
	"flowkeeper/internal/platform/logger"
	ptime "flowkeeper/internal/platform/time"
	"flowkeeper/internal/services/flowmaint/domain"
	"flowkeeper/internal/services/flowmaint/guardrails"
)

// Sweep runs one maintenance pass. The only error is guardrails.ErrSweepHeld when another
// sweep is active; every storage failure is folded into the report instead
func (s *Service) Sweep(ctx context.Context, req domain.SweepRequest) (domain.Report, error) {
	var rep domain.Report
	err := s.Guard.Do(ctx, func(ctx context.Context) error {
		rep = s.sweep(ctx, req)
		return nil
	})
	if err != nil {
		return domain.Report{}, err
	}
	return rep, nil
}

func (s *Service) sweep(parent context.Context, req domain.SweepRequest) domain.Report {
	runID := s.NewRunID()
	ctx, cancel := guardrails.WithSweep(logger.WithRun(parent, runID), s.Cfg.Timeouts)
	defer cancel()
	l := logger.C(ctx).With().Str("mod", "flowmaint").Logger()

	now := s.Clock()
	rep := domain.Report{RunID: runID, Started: now, Forced: req.Force}

	pctx, pcancel := guardrails.ForStep(ctx, s.Cfg.Timeouts)
	policy, err := s.Policies.Policy(pctx, s.Cfg.Policy)
	pcancel()
	if err != nil {
		l.Warn().Err(err).Msg("flowmaint: policy overrides unavailable; using configured defaults")
		policy = s.Cfg.Policy
	}

	lctx, lcancel := guardrails.ForStep(ctx, s.Cfg.Timeouts)
	wm, found, loadErr := s.State.Load(lctx)
	lcancel()
	if loadErr != nil {
		l.Error().Err(loadErr).Msg("flowmaint: watermark unavailable; skipping advance and persistence")
	} else if !found {
		wm = domain.Watermark{LastChange: now.Add(-policy.PollerInterval)}
	}
	rep.Maintenance = req.Force || (loadErr == nil && !ptime.SameDay(wm.LastChange, now, s.Cfg.Location))

	r := s.Binder.Bind(s.DB)
	cat := Catalog{Repo: r}

	var adv domain.Advance
	if loadErr != nil {
		o := domain.Outcome(domain.StepWatermark, 0, 0, loadErr)
		o.Skipped = true
		rep.Steps = append(rep.Steps, o)
	} else {
		tracker := WatermarkTracker{Catalog: cat, Repo: r, Location: s.Cfg.Location}
		rep.Steps = append(rep.Steps, s.step(ctx, domain.StepWatermark, func(ctx context.Context) (int64, error) {
			a, err := tracker.Advance(ctx, policy.Prefix, policy.Granularity, wm.LastChange, now, wm)
			if err != nil {
				return 0, err
			}
			adv = a
			return a.Records, nil
		}))
	}
	advanced := loadErr == nil && !rep.Steps[0].Failed()
	if advanced {
		rep.Records = adv.Records
	}

	norm := EngineNormalizer{Catalog: cat, Repo: r}
	rep.Steps = append(rep.Steps, s.step(ctx, domain.StepEngine, func(ctx context.Context) (int64, error) {
		n, err := norm.Normalize(ctx, policy.Prefix, policy.DefaultEngine, policy.EngineSkip, policy.EngineWindow)
		rep.Altered = n
		return int64(n), err
	}))

	if rep.Maintenance {
		l.Info().Bool("forced", req.Force).Msg("flowmaint: performing table maintenance")
		cutoff := domain.Cutoff(now.In(s.Cfg.Location), policy.RetentionDays, policy.Granularity)
		rep.Cutoff = cutoff.String()

		pruner := Pruner{Catalog: cat, Repo: r}
		rep.Steps = append(rep.Steps, s.step(ctx, domain.StepPrune, func(ctx context.Context) (int64, error) {
			dropped, err := pruner.Prune(ctx, policy.Prefix, cutoff)
			rep.Dropped = len(dropped)
			return int64(len(dropped)), err
		}))

		rec := Reconciler{Catalog: cat, Repo: r}
		rep.Steps = append(rep.Steps, s.step(ctx, domain.StepReconcile, func(ctx context.Context) (int64, error) {
			n, err := rec.Reconcile(ctx)
			rep.Removed = n
			return int64(n), err
		}))

		rep.Steps = append(rep.Steps, s.step(ctx, domain.StepReportLog, func(ctx context.Context) (int64, error) {
			n, err := r.ExpireReportLog(ctx, policy.RetentionDays, policy.ReportSource)
			rep.Expired = n
			return n, perr.FromPostgres(err, "flowmaint: expire report log")
		}))
	}

	rep.Listeners, rep.Schedules = s.counts(ctx, policy, now)
	rep.Finished = s.Clock()

	rep.Watermark = wm
	if loadErr == nil {
		cp := domain.Checkpoint{LastChange: now, Stats: rep.Stats()}
		if advanced {
			next := adv.Apply(wm)
			next.LastChange = now
			cp.Watermark = &next
		}
		// saved on its own budget; an exhausted sweep deadline must not lose the advance
		o := s.run(ctx, domain.StepPersist, guardrails.ForRecord, func(ctx context.Context) (int64, error) {
			return 0, s.State.Save(ctx, cp)
		})
		if o.Failed() {
			rep.Steps = append(rep.Steps, o)
		} else if cp.Watermark != nil {
			rep.Watermark = *cp.Watermark
		} else {
			rep.Watermark.LastChange = now
		}
	}

	rep.Status = domain.Fold(rep.Steps)
	s.finish(ctx, l, rep)
	return rep
}

// step runs fn under the step budget
func (s *Service) step(ctx context.Context, name domain.Step, fn func(context.Context) (int64, error)) domain.StepOutcome {
	return s.run(ctx, name, guardrails.ForStep, fn)
}

// run runs fn under the context built by budget. A deadline that fired inside fn is
// attached to its error so the outcome reads as a timeout
func (s *Service) run(ctx context.Context, name domain.Step,
	budget func(context.Context, guardrails.Timeouts) (context.Context, context.CancelFunc),
	fn func(context.Context) (int64, error),
) domain.StepOutcome {
	sctx, cancel := budget(ctx, s.Cfg.Timeouts)
	defer cancel()

	t0 := time.Now()
	n, err := fn(sctx)
	if err != nil && errors.Is(sctx.Err(), context.DeadlineExceeded) && !perr.IsTimeout(err) {
		err = fmt.Errorf("%w: %w", err, sctx.Err())
	}
	o := domain.Outcome(name, n, time.Since(t0), err)

	s.Metrics.ObserveStep(string(name), o.Elapsed, o.Code)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Str("step", string(name)).Str("code", o.Code).Bool("timeout", o.Timeout).
			Msg("flowmaint: step failed")
	}
	return o
}

// counts feeds the summary line; failures only cost the number
func (s *Service) counts(ctx context.Context, p domain.Policy, now time.Time) (listeners, schedules int64) {
	sctx, cancel := guardrails.ForStep(ctx, s.Cfg.Timeouts)
	defer cancel()

	r := s.Binder.Bind(s.DB)
	l := logger.C(ctx)
	var err error
	if listeners, err = r.CountListeners(sctx); err != nil {
		l.Debug().Err(err).Msg("flowmaint: listener count unavailable")
	}
	if schedules, err = r.CountDueSchedules(sctx, now, p.ReportSource); err != nil {
		l.Debug().Err(err).Msg("flowmaint: schedule count unavailable")
	}
	return listeners, schedules
}

func (s *Service) finish(ctx context.Context, l logger.Logger, rep domain.Report) {
	s.Metrics.ObserveSweep(string(rep.Status), rep.Elapsed(), rep.Finished)
	s.Metrics.AddCounts(rep.Dropped, rep.Removed, rep.Altered, rep.Records)
	s.Metrics.SetWatermark(rep.Watermark.LastSequence)

	ev := l.Info()
	if rep.Status != domain.StatusSuccess {
		ev = l.Warn()
	}
	ev.Str("status", string(rep.Status)).
		Bool("maintenance", rep.Maintenance).
		Str("cutoff", rep.Cutoff).
		Int("dropped", rep.Dropped).
		Int("removed", rep.Removed).
		Int("altered", rep.Altered).
		Int64("expired", rep.Expired).
		Int64("last_sequence", rep.Watermark.LastSequence).
		Str("last_partition", rep.Watermark.LastPartition).
		Msg("STATS: " + rep.Stats())

	if s.History != nil {
		hctx, cancel := guardrails.ForRecord(ctx, s.Cfg.Timeouts)
		defer cancel()
		if err := s.History.Record(hctx, rep); err != nil {
			l.Warn().Err(err).Msg("flowmaint: history record failed")
		}
	}

	s.mu.Lock()
	s.last = &rep
	s.mu.Unlock()
}
